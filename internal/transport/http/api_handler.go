package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"duel-service/internal/app"
	"duel-service/internal/domain"
)

// APIHandler exposes the duel lifecycle over REST. Event delivery happens
// over the websocket hub; these endpoints drive the transitions.
type APIHandler struct {
	engine *app.DuelEngine
}

func NewAPIHandler(engine *app.DuelEngine) *APIHandler {
	return &APIHandler{engine: engine}
}

// Register mounts all routes on the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /duels", h.createDuel)
	mux.HandleFunc("GET /duels/{id}", h.getDuel)
	mux.HandleFunc("PUT /duels/{id}/accept", h.acceptDuel)
	mux.HandleFunc("POST /duels/{id}/answer", h.submitAnswer)
	mux.HandleFunc("DELETE /duels/{id}", h.cancelDuel)
	mux.HandleFunc("GET /duels/user/{userId}", h.listUserDuels)
	mux.HandleFunc("GET /leaderboard", h.leaderboard)
	mux.HandleFunc("GET /users/{id}/history", h.history)
}

type createDuelRequest struct {
	ChallengerID string `json:"challengerId"`
	OpponentID   string `json:"opponentId"`
	Category     string `json:"category"`
}

func (h *APIHandler) createDuel(w http.ResponseWriter, r *http.Request) {
	var req createDuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidRequest)
		return
	}
	duel, err := h.engine.Create(r.Context(), req.ChallengerID, req.OpponentID, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, duel)
}

func (h *APIHandler) getDuel(w http.ResponseWriter, r *http.Request) {
	duel, err := h.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, duel)
}

func (h *APIHandler) acceptDuel(w http.ResponseWriter, r *http.Request) {
	duel, err := h.engine.Accept(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, duel)
}

type submitAnswerRequest struct {
	UserID string `json:"userId"`
	Answer string `json:"answer"`
}

func (h *APIHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidRequest)
		return
	}
	duel, err := h.engine.SubmitAnswer(r.Context(), r.PathValue("id"), req.UserID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, duel)
}

func (h *APIHandler) cancelDuel(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "duel cancelled"})
}

func (h *APIHandler) listUserDuels(w http.ResponseWriter, r *http.Request) {
	duels, err := h.engine.ListForUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if duels == nil {
		duels = []*domain.Duel{}
	}
	writeJSON(w, http.StatusOK, duels)
}

func (h *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type historyResponse struct {
	Duels       []domain.HistoryEntry `json:"duels"`
	TotalPages  int                   `json:"totalPages"`
	CurrentPage int                   `json:"currentPage"`
}

func (h *APIHandler) history(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	entries, total, err := h.engine.History(r.Context(), r.PathValue("id"), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	totalPages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, historyResponse{Duels: entries, TotalPages: totalPages, CurrentPage: page})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrSelfDuel),
		errors.Is(err, domain.ErrDuplicateAnswer):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuelNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrQuestionUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbiddenParticipant):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrStoreConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}
