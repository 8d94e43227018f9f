package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"math-dash-service/internal/app"
	"math-dash-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// APIHandler serves the player-facing JSON endpoints.
type APIHandler struct {
	service *app.GameService
	log     *zap.Logger
}

func NewAPIHandler(service *app.GameService, log *zap.Logger) *APIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandler{service: service, log: log}
}

// Routes mounts the player endpoints under r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Route("/players/{id}", func(r chi.Router) {
		r.Get("/stats", h.stats)
		r.Get("/achievements", h.achievements)
		r.Post("/visit", h.visit)
		r.Delete("/progress", h.resetProgress)
		r.Get("/settings", h.settings)
		r.Put("/settings", h.updateSettings)
		r.Get("/audio", h.audio)
		r.Put("/audio", h.updateAudio)
		r.Get("/personalization", h.personalization)
		r.Put("/personalization", h.selectItem)
		r.Get("/history", h.history)
		r.Get("/round", h.round)
	})
}

func (h *APIHandler) stats(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.service.Progress().Ledger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (h *APIHandler) achievements(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Progress().Achievements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) visit(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.service.Visit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (h *APIHandler) resetProgress(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Progress().Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Preferences().Settings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *APIHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.log, errBadPayload)
		return
	}
	settings, err := h.service.Preferences().UpdateSettings(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *APIHandler) audio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.service.Preferences().Audio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, audio)
}

func (h *APIHandler) updateAudio(w http.ResponseWriter, r *http.Request) {
	var body domain.AudioSettings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.log, errBadPayload)
		return
	}
	audio, err := h.service.Preferences().UpdateAudio(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, audio)
}

func (h *APIHandler) personalization(w http.ResponseWriter, r *http.Request) {
	pers, err := h.service.Preferences().Personalization(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pers)
}

type selectRequest struct {
	Kind domain.ItemKind `json:"kind"`
	ID   string          `json:"id"`
}

func (h *APIHandler) selectItem(w http.ResponseWriter, r *http.Request) {
	var body selectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.log, errBadPayload)
		return
	}
	pers, err := h.service.Preferences().Select(r.Context(), chi.URLParam(r, "id"), body.Kind, body.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pers)
}

func (h *APIHandler) history(w http.ResponseWriter, r *http.Request) {
	// Zero lets the archive apply its own default.
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, h.log, errBadPayload)
			return
		}
		limit = n
	}
	rounds, err := h.service.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if rounds == nil {
		rounds = []domain.RoundSummary{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (h *APIHandler) round(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
