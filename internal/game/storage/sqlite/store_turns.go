package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/exquisite/internal/game/storage"
)

// GetSentenceByTurn loads the sentence occupying one turn slot.
func (s *Store) GetSentenceByTurn(ctx context.Context, gameID string, turnNumber int) (storage.SentenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SentenceRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SentenceRecord{}, fmt.Errorf("storage is not configured")
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" || turnNumber < 1 {
		return storage.SentenceRecord{}, storage.ErrNotFound
	}
	return getSentenceByTurnQuery(ctx, s.sqlDB, gameID, turnNumber)
}

// InsertSentenceIfAbsent atomically claims one (game, turn) sentence slot.
// When the slot is already taken the existing row is returned with
// created=false; the unique index decides the winner under races.
func (s *Store) InsertSentenceIfAbsent(ctx context.Context, record storage.SentenceRecord) (bool, storage.SentenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.SentenceRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return false, storage.SentenceRecord{}, fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeSentenceRecord(record)
	if err != nil {
		return false, storage.SentenceRecord{}, err
	}

	created, err := insertSentenceExec(ctx, s.sqlDB, normalized)
	if err != nil {
		return false, storage.SentenceRecord{}, err
	}
	if created {
		return true, normalized, nil
	}
	existing, err := getSentenceByTurnQuery(ctx, s.sqlDB, normalized.GameID, normalized.TurnNumber)
	if err != nil {
		return false, storage.SentenceRecord{}, fmt.Errorf("read back conflicting sentence: %w", err)
	}
	return false, existing, nil
}

// ListSentences lists one game's sentences ordered by turn number.
func (s *Store) ListSentences(ctx context.Context, gameID string) ([]storage.SentenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, fmt.Errorf("game id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, game_id, turn_number, author_email, sentence_text, created_at
FROM sentences
WHERE game_id = ?
ORDER BY turn_number ASC
`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list sentences: %w", err)
	}
	defer rows.Close()

	var results []storage.SentenceRecord
	for rows.Next() {
		record, scanErr := scanSentence(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan sentence row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sentence rows: %w", err)
	}
	return results, nil
}

// CommitTurn runs the sentence insert, participant completion, and game
// advance as one transaction. A losing racer observes created=false and the
// winner's sentence; the game row is then left untouched.
func (s *Store) CommitTurn(ctx context.Context, input storage.CommitTurnInput) (storage.CommitTurnResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.CommitTurnResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CommitTurnResult{}, fmt.Errorf("storage is not configured")
	}
	sentence, err := normalizeSentenceRecord(input.Sentence)
	if err != nil {
		return storage.CommitTurnResult{}, err
	}
	participantID := strings.TrimSpace(input.ParticipantID)
	if participantID == "" {
		return storage.CommitTurnResult{}, fmt.Errorf("participant id is required")
	}
	if !input.Complete && input.NextTurn < 1 {
		return storage.CommitTurnResult{}, fmt.Errorf("next turn must be at least 1")
	}
	if input.Complete && input.CompletedAt.IsZero() {
		return storage.CommitTurnResult{}, fmt.Errorf("completed_at is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.CommitTurnResult{}, fmt.Errorf("begin turn commit: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback turn commit: %v", cause, rollbackErr)
		}
		return cause
	}

	created, err := insertSentenceExec(ctx, tx, sentence)
	if err != nil {
		return storage.CommitTurnResult{}, rollbackWith(err)
	}
	if !created {
		// Slot already taken: surface the winner without mutating anything.
		existing, lookupErr := getSentenceByTurnQuery(ctx, tx, sentence.GameID, sentence.TurnNumber)
		if lookupErr != nil {
			return storage.CommitTurnResult{}, rollbackWith(fmt.Errorf("read back conflicting sentence: %w", lookupErr))
		}
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return storage.CommitTurnResult{}, fmt.Errorf("rollback losing turn commit: %w", rollbackErr)
		}
		return storage.CommitTurnResult{Created: false, Sentence: existing}, nil
	}

	if err := updateParticipantCompletedExec(ctx, tx, participantID, true); err != nil {
		return storage.CommitTurnResult{}, rollbackWith(err)
	}

	update := storage.GameUpdate{}
	if input.Complete {
		status := storage.GameStatusCompleted
		completedAt := input.CompletedAt.UTC()
		update.Status = &status
		update.CompletedAt = &completedAt
	} else {
		nextTurn := input.NextTurn
		update.CurrentTurn = &nextTurn
	}
	if err := updateGameProgressExec(ctx, tx, sentence.GameID, update); err != nil {
		return storage.CommitTurnResult{}, rollbackWith(err)
	}

	if err := tx.Commit(); err != nil {
		return storage.CommitTurnResult{}, fmt.Errorf("commit turn: %w", err)
	}
	return storage.CommitTurnResult{Created: true, Sentence: sentence}, nil
}

// ListExpirableGames returns active games whose expiry passed at now.
func (s *Store) ListExpirableGames(ctx context.Context, now time.Time) ([]storage.GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if now.IsZero() {
		return nil, fmt.Errorf("now is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, title, max_participants, current_turn, status, host_email, theme_id, created_at, completed_at, expires_at
FROM games
WHERE status = ?
  AND expires_at IS NOT NULL
  AND expires_at <= ?
ORDER BY expires_at ASC, id ASC
`, string(storage.GameStatusActive), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list expirable games: %w", err)
	}
	defer rows.Close()

	var results []storage.GameRecord
	for rows.Next() {
		record, scanErr := scanGame(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan expirable game row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expirable game rows: %w", err)
	}
	return results, nil
}

// ExpireGames marks overdue active games as expired.
func (s *Store) ExpireGames(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if now.IsZero() {
		return 0, fmt.Errorf("now is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE games
SET status = ?, completed_at = ?
WHERE status = ?
  AND expires_at IS NOT NULL
  AND expires_at <= ?
`, string(storage.GameStatusExpired), toMillis(now), string(storage.GameStatusActive), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("expire games: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire games rows affected: %w", err)
	}
	return int(affected), nil
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSentenceByTurnQuery(ctx context.Context, querier sqlQuerier, gameID string, turnNumber int) (storage.SentenceRecord, error) {
	row := querier.QueryRowContext(ctx, `
SELECT id, game_id, turn_number, author_email, sentence_text, created_at
FROM sentences
WHERE game_id = ? AND turn_number = ?
`, gameID, turnNumber)
	record, err := scanSentence(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SentenceRecord{}, storage.ErrNotFound
		}
		return storage.SentenceRecord{}, fmt.Errorf("get sentence by turn: %w", err)
	}
	return record, nil
}

func insertSentenceExec(ctx context.Context, execer sqlExecer, record storage.SentenceRecord) (bool, error) {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO sentences (
		id, game_id, turn_number, author_email, sentence_text, created_at
	) VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.GameID,
		record.TurnNumber,
		record.AuthorEmail,
		record.Text,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		if isForeignKeyConstraintError(err) {
			return false, storage.ErrConflict
		}
		return false, fmt.Errorf("insert sentence: %w", err)
	}
	return true, nil
}

func scanSentence(scan scanner) (storage.SentenceRecord, error) {
	var record storage.SentenceRecord
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.GameID,
		&record.TurnNumber,
		&record.AuthorEmail,
		&record.Text,
		&createdAt,
	); err != nil {
		return storage.SentenceRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
