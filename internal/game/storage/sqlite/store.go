// Package sqlite provides SQLite-backed persistence for game state.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/exquisite/internal/game/storage"
	"github.com/louisbranch/exquisite/internal/game/storage/sqlite/migrations"
	sqlitemigrate "github.com/louisbranch/exquisite/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for game, participant, and
// sentence state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a game SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite db is required")
	}
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

// GetGame loads one game by id.
func (s *Store) GetGame(ctx context.Context, gameID string) (storage.GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.GameRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.GameRecord{}, fmt.Errorf("storage is not configured")
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return storage.GameRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, title, max_participants, current_turn, status, host_email, theme_id, created_at, completed_at, expires_at
FROM games
WHERE id = ?
`, gameID)
	record, err := scanGame(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GameRecord{}, storage.ErrNotFound
		}
		return storage.GameRecord{}, fmt.Errorf("get game: %w", err)
	}
	return record, nil
}

// GetParticipant loads one participant scoped to its game.
func (s *Store) GetParticipant(ctx context.Context, gameID string, participantID string) (storage.ParticipantRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParticipantRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ParticipantRecord{}, fmt.Errorf("storage is not configured")
	}
	gameID = strings.TrimSpace(gameID)
	participantID = strings.TrimSpace(participantID)
	if gameID == "" || participantID == "" {
		return storage.ParticipantRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, game_id, email, turn_order, has_completed, created_at
FROM participants
WHERE game_id = ? AND id = ?
`, gameID, participantID)
	record, err := scanParticipant(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ParticipantRecord{}, storage.ErrNotFound
		}
		return storage.ParticipantRecord{}, fmt.Errorf("get participant: %w", err)
	}
	return record, nil
}

// GetParticipantByTurn loads the participant holding one turn slot.
func (s *Store) GetParticipantByTurn(ctx context.Context, gameID string, turnOrder int) (storage.ParticipantRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParticipantRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ParticipantRecord{}, fmt.Errorf("storage is not configured")
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" || turnOrder < 1 {
		return storage.ParticipantRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, game_id, email, turn_order, has_completed, created_at
FROM participants
WHERE game_id = ? AND turn_order = ?
`, gameID, turnOrder)
	record, err := scanParticipant(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ParticipantRecord{}, storage.ErrNotFound
		}
		return storage.ParticipantRecord{}, fmt.Errorf("get participant by turn: %w", err)
	}
	return record, nil
}

// UpdateParticipantCompleted sets one participant completion flag.
func (s *Store) UpdateParticipantCompleted(ctx context.Context, participantID string, hasCompleted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return fmt.Errorf("participant id is required")
	}
	return updateParticipantCompletedExec(ctx, s.sqlDB, participantID, hasCompleted)
}

// UpdateGameProgress applies a partial game progress update.
func (s *Store) UpdateGameProgress(ctx context.Context, gameID string, update storage.GameUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return fmt.Errorf("game id is required")
	}
	return updateGameProgressExec(ctx, s.sqlDB, gameID, update)
}

// ListParticipants lists one game's participants ordered by turn slot.
func (s *Store) ListParticipants(ctx context.Context, gameID string) ([]storage.ParticipantRecord, error) {
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
SELECT id, game_id, email, turn_order, has_completed, created_at
FROM participants
WHERE game_id = ?
ORDER BY turn_order ASC
`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var results []storage.ParticipantRecord
	for rows.Next() {
		record, scanErr := scanParticipant(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan participant row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant rows: %w", err)
	}
	return results, nil
}

// CreateGame atomically persists a game, its participants, and the optional
// opening sentence.
func (s *Store) CreateGame(ctx context.Context, bootstrap storage.GameBootstrap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	game, err := normalizeGameRecord(bootstrap.Game)
	if err != nil {
		return err
	}
	participants := make([]storage.ParticipantRecord, 0, len(bootstrap.Participants))
	for _, participant := range bootstrap.Participants {
		normalized, normalizeErr := normalizeParticipantRecord(participant)
		if normalizeErr != nil {
			return normalizeErr
		}
		participants = append(participants, normalized)
	}
	var opening *storage.SentenceRecord
	if bootstrap.Opening != nil {
		normalized, normalizeErr := normalizeSentenceRecord(*bootstrap.Opening)
		if normalizeErr != nil {
			return normalizeErr
		}
		opening = &normalized
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin game bootstrap write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback game bootstrap write: %v", cause, rollbackErr)
		}
		return cause
	}

	if err := insertGameExec(ctx, tx, game); err != nil {
		return rollbackWith(err)
	}
	for _, participant := range participants {
		if err := insertParticipantExec(ctx, tx, participant); err != nil {
			return rollbackWith(err)
		}
	}
	if opening != nil {
		created, insertErr := insertSentenceExec(ctx, tx, *opening)
		if insertErr != nil {
			return rollbackWith(insertErr)
		}
		if !created {
			return rollbackWith(storage.ErrConflict)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit game bootstrap write: %w", err)
	}
	return nil
}

// GetTheme loads one theme from the catalog.
func (s *Store) GetTheme(ctx context.Context, themeID string) (storage.ThemeRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ThemeRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ThemeRecord{}, fmt.Errorf("storage is not configured")
	}
	themeID = strings.TrimSpace(themeID)
	if themeID == "" {
		return storage.ThemeRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, description, starting_prompts, created_at
FROM themes
WHERE id = ?
`, themeID)
	record, err := scanTheme(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ThemeRecord{}, storage.ErrNotFound
		}
		return storage.ThemeRecord{}, fmt.Errorf("get theme: %w", err)
	}
	return record, nil
}

// ListThemes lists the theme catalog by name.
func (s *Store) ListThemes(ctx context.Context) ([]storage.ThemeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, description, starting_prompts, created_at
FROM themes
ORDER BY name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	defer rows.Close()

	var results []storage.ThemeRecord
	for rows.Next() {
		record, scanErr := scanTheme(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan theme row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate theme rows: %w", err)
	}
	return results, nil
}

type scanner func(dest ...any) error

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func normalizeGameRecord(record storage.GameRecord) (storage.GameRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.Title = strings.TrimSpace(record.Title)
	record.HostEmail = strings.TrimSpace(record.HostEmail)
	record.ThemeID = strings.TrimSpace(record.ThemeID)
	if record.Status == "" {
		record.Status = storage.GameStatusActive
	}
	if record.ID == "" {
		return storage.GameRecord{}, fmt.Errorf("game id is required")
	}
	if record.Title == "" {
		return storage.GameRecord{}, fmt.Errorf("game title is required")
	}
	if record.HostEmail == "" {
		return storage.GameRecord{}, fmt.Errorf("host email is required")
	}
	if record.MaxParticipants < 1 {
		return storage.GameRecord{}, fmt.Errorf("max participants must be at least 1")
	}
	if record.CurrentTurn < 1 || record.CurrentTurn > record.MaxParticipants {
		return storage.GameRecord{}, fmt.Errorf("current turn %d is outside [1, %d]", record.CurrentTurn, record.MaxParticipants)
	}
	if record.CreatedAt.IsZero() {
		return storage.GameRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	if record.CompletedAt != nil {
		completedAt := record.CompletedAt.UTC()
		record.CompletedAt = &completedAt
	}
	if record.ExpiresAt != nil {
		expiresAt := record.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	return record, nil
}

func normalizeParticipantRecord(record storage.ParticipantRecord) (storage.ParticipantRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.GameID = strings.TrimSpace(record.GameID)
	record.Email = strings.TrimSpace(record.Email)
	if record.ID == "" {
		return storage.ParticipantRecord{}, fmt.Errorf("participant id is required")
	}
	if record.GameID == "" {
		return storage.ParticipantRecord{}, fmt.Errorf("participant game id is required")
	}
	if record.Email == "" {
		return storage.ParticipantRecord{}, fmt.Errorf("participant email is required")
	}
	if record.TurnOrder < 1 {
		return storage.ParticipantRecord{}, fmt.Errorf("participant turn order must be at least 1")
	}
	if record.CreatedAt.IsZero() {
		return storage.ParticipantRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

func normalizeSentenceRecord(record storage.SentenceRecord) (storage.SentenceRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.GameID = strings.TrimSpace(record.GameID)
	record.AuthorEmail = strings.TrimSpace(record.AuthorEmail)
	record.Text = strings.TrimSpace(record.Text)
	if record.ID == "" {
		return storage.SentenceRecord{}, fmt.Errorf("sentence id is required")
	}
	if record.GameID == "" {
		return storage.SentenceRecord{}, fmt.Errorf("sentence game id is required")
	}
	if record.TurnNumber < 1 {
		return storage.SentenceRecord{}, fmt.Errorf("sentence turn number must be at least 1")
	}
	if record.AuthorEmail == "" {
		return storage.SentenceRecord{}, fmt.Errorf("sentence author email is required")
	}
	if record.Text == "" {
		return storage.SentenceRecord{}, fmt.Errorf("sentence text is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.SentenceRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

func insertGameExec(ctx context.Context, execer sqlExecer, record storage.GameRecord) error {
	var completedAt sql.NullInt64
	if record.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: toMillis(*record.CompletedAt), Valid: true}
	}
	var expiresAt sql.NullInt64
	if record.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: toMillis(*record.ExpiresAt), Valid: true}
	}

	_, err := execer.ExecContext(ctx, `
	INSERT INTO games (
		id, title, max_participants, current_turn, status, host_email, theme_id, created_at, completed_at, expires_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.Title,
		record.MaxParticipants,
		record.CurrentTurn,
		string(record.Status),
		record.HostEmail,
		record.ThemeID,
		toMillis(record.CreatedAt),
		completedAt,
		expiresAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func insertParticipantExec(ctx context.Context, execer sqlExecer, record storage.ParticipantRecord) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO participants (
		id, game_id, email, turn_order, has_completed, created_at
	) VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.GameID,
		record.Email,
		record.TurnOrder,
		boolToInt(record.HasCompleted),
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) || isForeignKeyConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func updateParticipantCompletedExec(ctx context.Context, execer sqlExecer, participantID string, hasCompleted bool) error {
	result, err := execer.ExecContext(ctx, `
UPDATE participants
SET has_completed = ?
WHERE id = ?
`, boolToInt(hasCompleted), participantID)
	if err != nil {
		return fmt.Errorf("update participant completed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update participant completed rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func updateGameProgressExec(ctx context.Context, execer sqlExecer, gameID string, update storage.GameUpdate) error {
	setClauses := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if update.CurrentTurn != nil {
		setClauses = append(setClauses, "current_turn = ?")
		args = append(args, *update.CurrentTurn)
	}
	if update.Status != nil {
		setClauses = append(setClauses, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.CompletedAt != nil {
		setClauses = append(setClauses, "completed_at = ?")
		args = append(args, toMillis(*update.CompletedAt))
	}
	if len(setClauses) == 0 {
		return fmt.Errorf("game update is empty")
	}
	args = append(args, gameID)

	result, err := execer.ExecContext(ctx,
		"UPDATE games SET "+strings.Join(setClauses, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update game progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game progress rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanGame(scan scanner) (storage.GameRecord, error) {
	var record storage.GameRecord
	var status string
	var createdAt int64
	var completedAt sql.NullInt64
	var expiresAt sql.NullInt64
	if err := scan(
		&record.ID,
		&record.Title,
		&record.MaxParticipants,
		&record.CurrentTurn,
		&status,
		&record.HostEmail,
		&record.ThemeID,
		&createdAt,
		&completedAt,
		&expiresAt,
	); err != nil {
		return storage.GameRecord{}, err
	}
	record.Status = storage.GameStatus(status)
	record.CreatedAt = fromMillis(createdAt)
	if completedAt.Valid {
		value := fromMillis(completedAt.Int64)
		record.CompletedAt = &value
	}
	if expiresAt.Valid {
		value := fromMillis(expiresAt.Int64)
		record.ExpiresAt = &value
	}
	return record, nil
}

func scanParticipant(scan scanner) (storage.ParticipantRecord, error) {
	var record storage.ParticipantRecord
	var hasCompleted int
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.GameID,
		&record.Email,
		&record.TurnOrder,
		&hasCompleted,
		&createdAt,
	); err != nil {
		return storage.ParticipantRecord{}, err
	}
	record.HasCompleted = hasCompleted != 0
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func scanTheme(scan scanner) (storage.ThemeRecord, error) {
	var record storage.ThemeRecord
	var prompts string
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.Name,
		&record.Description,
		&prompts,
		&createdAt,
	); err != nil {
		return storage.ThemeRecord{}, err
	}
	if prompts != "" {
		if err := json.Unmarshal([]byte(prompts), &record.StartingPrompts); err != nil {
			return storage.ThemeRecord{}, fmt.Errorf("decode starting prompts: %w", err)
		}
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
