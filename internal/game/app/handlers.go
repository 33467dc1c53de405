package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/louisbranch/exquisite/internal/game/access"
	"github.com/louisbranch/exquisite/internal/game/domain"
	"github.com/louisbranch/exquisite/internal/game/storage"
)

const maxRequestBodyBytes = 64 * 1024

type gameHandler struct {
	deps handlerDeps
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createGameRequest struct {
	Title           string   `json:"title"`
	HostEmail       string   `json:"host_email"`
	InviteeEmails   []string `json:"invitee_emails"`
	OpeningSentence string   `json:"opening_sentence,omitempty"`
	ThemeID         string   `json:"theme_id,omitempty"`
}

type participantPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	TurnOrder int    `json:"turn_order"`
	Grant     string `json:"grant,omitempty"`
}

type createGameResponse struct {
	GameID          string               `json:"game_id"`
	Title           string               `json:"title"`
	CurrentTurn     int                  `json:"current_turn"`
	MaxParticipants int                  `json:"max_participants"`
	Status          string               `json:"status"`
	ExpiresAt       *time.Time           `json:"expires_at,omitempty"`
	Participants    []participantPayload `json:"participants"`
}

type participantViewResponse struct {
	State           string `json:"state"`
	GameID          string `json:"game_id"`
	GameTitle       string `json:"game_title"`
	CurrentTurn     int    `json:"current_turn"`
	MaxParticipants int    `json:"max_participants"`
	TurnOrder       int    `json:"turn_order"`
	PreviousText    string `json:"previous_text,omitempty"`
	HasPrevious     bool   `json:"has_previous"`
	SubmittedText   string `json:"submitted_text,omitempty"`
}

type submitSentenceRequest struct {
	Text string `json:"text"`
}

type submitSentenceResponse struct {
	SentenceID       string `json:"sentence_id"`
	TurnNumber       int    `json:"turn_number"`
	Text             string `json:"text"`
	AlreadySubmitted bool   `json:"already_submitted"`
	GameCompleted    bool   `json:"game_completed"`
	NextTurn         int    `json:"next_turn"`
}

type storySentencePayload struct {
	TurnNumber  int    `json:"turn_number"`
	AuthorEmail string `json:"author_email"`
	Text        string `json:"text"`
}

type storyResponse struct {
	GameID    string                 `json:"game_id"`
	GameTitle string                 `json:"game_title"`
	Status    string                 `json:"status"`
	Sentences []storySentencePayload `json:"sentences"`
}

type summaryResponse struct {
	GameID                string `json:"game_id"`
	GameTitle             string `json:"game_title"`
	Status                string `json:"status"`
	CurrentTurn           int    `json:"current_turn"`
	MaxParticipants       int    `json:"max_participants"`
	TotalParticipants     int    `json:"total_participants"`
	CompletedParticipants int    `json:"completed_participants"`
	SentencesWritten      int    `json:"sentences_written"`
}

type themePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h *gameHandler) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *gameHandler) listThemes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.deps.themes == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "theme catalog is not configured")
		return
	}
	themes, err := h.deps.themes.ListThemes(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	payloads := make([]themePayload, 0, len(themes))
	for _, theme := range themes {
		payloads = append(payloads, themePayload{
			ID:          theme.ID,
			Name:        theme.Name,
			Description: theme.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"themes": payloads})
}

func (h *gameHandler) createGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createGameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.deps.creator.Create(r.Context(), domain.CreateGameInput{
		Title:           req.Title,
		HostEmail:       req.HostEmail,
		InviteeEmails:   req.InviteeEmails,
		OpeningSentence: req.OpeningSentence,
		ThemeID:         req.ThemeID,
		ExpiresIn:       h.deps.defaultExpiry,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := createGameResponse{
		GameID:          created.Game.ID,
		Title:           created.Game.Title,
		CurrentTurn:     created.Game.CurrentTurn,
		MaxParticipants: created.Game.MaxParticipants,
		Status:          string(created.Game.Status),
		ExpiresAt:       created.Game.ExpiresAt,
	}
	for _, participant := range created.Participants {
		resp.Participants = append(resp.Participants, participantPayload{
			ID:        participant.ID,
			Email:     participant.Email,
			TurnOrder: participant.TurnOrder,
			Grant:     created.Grants[participant.ID],
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *gameHandler) participantView(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	gameID := params.ByName("game_id")
	participantID := params.ByName("participant_id")
	if !h.authorizeParticipant(w, r, gameID, participantID) {
		return
	}

	view, err := h.deps.reader.ResolveView(r.Context(), gameID, participantID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participantViewResponse{
		State:           string(view.State),
		GameID:          view.GameID,
		GameTitle:       view.GameTitle,
		CurrentTurn:     view.CurrentTurn,
		MaxParticipants: view.MaxParticipants,
		TurnOrder:       view.TurnOrder,
		PreviousText:    view.PreviousText,
		HasPrevious:     view.HasPrevious,
		SubmittedText:   view.SubmittedText,
	})
}

func (h *gameHandler) submitSentence(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	gameID := params.ByName("game_id")
	participantID := params.ByName("participant_id")
	if !h.authorizeParticipant(w, r, gameID, participantID) {
		return
	}

	var req submitSentenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.deps.coordinator.Submit(r.Context(), gameID, participantID, req.Text)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitSentenceResponse{
		SentenceID:       result.Sentence.ID,
		TurnNumber:       result.Sentence.TurnNumber,
		Text:             result.Sentence.Text,
		AlreadySubmitted: result.AlreadySubmitted,
		GameCompleted:    result.GameCompleted,
		NextTurn:         result.NextTurn,
	})
}

func (h *gameHandler) story(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	story, err := h.deps.reader.Story(r.Context(), params.ByName("game_id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	resp := storyResponse{
		GameID:    story.GameID,
		GameTitle: story.GameTitle,
		Status:    string(story.Status),
	}
	for _, sentence := range story.Sentences {
		resp.Sentences = append(resp.Sentences, storySentencePayload{
			TurnNumber:  sentence.TurnNumber,
			AuthorEmail: sentence.AuthorEmail,
			Text:        sentence.Text,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *gameHandler) hostSummary(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	summary, err := h.deps.reader.HostSummary(r.Context(), params.ByName("game_id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		GameID:                summary.GameID,
		GameTitle:             summary.GameTitle,
		Status:                string(summary.Status),
		CurrentTurn:           summary.CurrentTurn,
		MaxParticipants:       summary.MaxParticipants,
		TotalParticipants:     summary.TotalParticipants,
		CompletedParticipants: summary.CompletedParticipants,
		SentencesWritten:      summary.SentencesWritten,
	})
}

// authorizeParticipant enforces the grant check when a verifier is
// configured. Without one, participant links are unauthenticated.
func (h *gameHandler) authorizeParticipant(w http.ResponseWriter, r *http.Request, gameID string, participantID string) bool {
	if h.deps.verifier == nil {
		return true
	}
	grant := strings.TrimSpace(r.URL.Query().Get("grant"))
	if grant == "" {
		if auth := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(auth, "Bearer ") {
			grant = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}

	_, err := h.deps.verifier.VerifyParticipantGrant(grant, gameID, participantID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, access.ErrGrantExpired):
		writeError(w, http.StatusUnauthorized, "grant_expired", "the play link has expired")
	case errors.Is(err, access.ErrGrantMismatch):
		writeError(w, http.StatusForbidden, "grant_mismatch", "the play link does not match this participant")
	default:
		writeError(w, http.StatusUnauthorized, "grant_invalid", "a valid play link is required")
	}
	return false
}

func (h *gameHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "game or participant not found")
	case errors.Is(err, domain.ErrGameCompleted):
		writeError(w, http.StatusConflict, "game_completed", "the game accepts no further sentences")
	case errors.Is(err, domain.ErrNotYourTurn):
		writeError(w, http.StatusConflict, "not_your_turn", "another participant holds the current turn")
	case errors.Is(err, domain.ErrInvalidSentence):
		writeError(w, http.StatusUnprocessableEntity, "invalid_sentence", "the sentence is empty or too long")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", "the game creation input is invalid")
	case errors.Is(err, domain.ErrInvalidGameState):
		writeError(w, http.StatusInternalServerError, "invalid_state", "the game state is inconsistent")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "the write conflicts with existing state")
	case errors.Is(err, domain.ErrStoreNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "persistence is not configured")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "an unexpected error occurred")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "the request body is not valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
