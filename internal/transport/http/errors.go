package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"math-dash-service/internal/domain"

	"go.uber.org/zap"
)

var (
	errBadPayload  = errors.New("malformed payload")
	errUnsupported = errors.New("unsupported message type")
	errRateLimited = errors.New("too many messages")
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrRoundNotFound, http.StatusNotFound, "round_not_found"},
	{domain.ErrArchiveDisabled, http.StatusNotFound, "archive_disabled"},
	{domain.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{domain.ErrRoundNotActive, http.StatusConflict, "round_not_active"},
	{domain.ErrRoundStarted, http.StatusConflict, "round_started"},
	{domain.ErrRoundPaused, http.StatusConflict, "round_paused"},
	{domain.ErrAnswerPending, http.StatusConflict, "answer_pending"},
	{domain.ErrItemLocked, http.StatusConflict, "item_locked"},
	{domain.ErrInvalidAnswer, http.StatusBadRequest, "invalid_answer"},
	{domain.ErrInvalidSettings, http.StatusBadRequest, "invalid_settings"},
	{domain.ErrInvalidDifficulty, http.StatusBadRequest, "invalid_difficulty"},
	{domain.ErrInvalidMode, http.StatusBadRequest, "invalid_mode"},
	{errBadPayload, http.StatusBadRequest, "bad_payload"},
	{errUnsupported, http.StatusBadRequest, "unsupported"},
	{errRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// classify maps domain errors to an HTTP status and a stable code.
func classify(err error) (int, errorPayload) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, errorPayload{Code: e.code, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, errorPayload{Code: "internal", Message: "internal error"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, payload := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]errorPayload{"error": payload})
}
