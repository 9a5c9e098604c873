package match

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/codearena/puzzleduel-backend/internal/auth"
)

type Handler struct {
	service *Service
	auth    *auth.Service
}

func NewHandler(service *Service, authService *auth.Service) *Handler {
	return &Handler{
		service: service,
		auth:    authService,
	}
}

// Routes registers the match API on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/puzzles", h.auth.RequireAuth(h.ListPuzzles))
	mux.HandleFunc("GET /api/v1/puzzles/{id}", h.auth.RequireAuth(h.GetPuzzle))
	mux.HandleFunc("POST /api/v1/matches/create", h.auth.RequireAuth(h.CreateMatch))
	mux.HandleFunc("POST /api/v1/matches/join", h.auth.RequireAuth(h.JoinMatch))
	mux.HandleFunc("POST /api/v1/matches/{id}/start", h.auth.RequireAuth(h.StartMatch))
	mux.HandleFunc("POST /api/v1/matches/{id}/submit", h.auth.RequireAuth(h.SubmitAnswer))
	mux.HandleFunc("POST /api/v1/matches/{id}/abandon", h.auth.RequireAuth(h.AbandonMatch))
	mux.HandleFunc("GET /api/v1/matches/user/history", h.auth.RequireAuth(h.UserHistory))
	mux.HandleFunc("GET /api/v1/matches/{id}", h.auth.RequireAuth(h.GetMatchDetails))
	mux.HandleFunc("GET /api/v1/leaderboard", h.Leaderboard)
	mux.HandleFunc("GET /api/v1/stats/me", h.auth.RequireAuth(h.MyStats))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the operation error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrSelfJoin), errors.Is(err, ErrMatchFull):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAPlayer):
		return http.StatusForbidden
	default:
		// ErrNoInstance and generation failures are server-side bug signals.
		return http.StatusInternalServerError
	}
}

func (h *Handler) ListPuzzles(w http.ResponseWriter, r *http.Request) {
	puzzles, err := h.service.ListPuzzles()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, puzzles)
}

func (h *Handler) GetPuzzle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid puzzle id", http.StatusBadRequest)
		return
	}
	p, err := h.service.GetPuzzle(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PuzzleID int64   `json:"puzzle_id"`
		RoomCode *string `json:"room_code,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	m, err := h.service.CreateMatch(auth.UserID(r), req.PuzzleID, req.RoomCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MatchID  string `json:"match_id"`
		RoomCode string `json:"room_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	m, err := h.service.JoinMatch(auth.UserID(r), req.MatchID, req.RoomCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) StartMatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.StartMatch(auth.UserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	// The expected answer is deliberately absent: adjudication is
	// server-side only.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"match_id": result.Match.ID,
		"status":   result.Match.Status,
		"puzzle": map[string]interface{}{
			"id":          result.Puzzle.ID,
			"day":         result.Puzzle.Day,
			"title":       result.Puzzle.Title,
			"description": result.Puzzle.Description,
			"story":       result.Puzzle.Story,
		},
		"input_data": result.InputData,
		"started_at": result.Match.StartedAt,
	})
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.SubmitAnswer(auth.UserID(r), r.PathValue("id"), req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) AbandonMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.AbandonMatch(auth.UserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) GetMatchDetails(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetMatchDetails(auth.UserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) UserHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.service.UserHistory(auth.UserID(r), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.Leaderboard(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) MyStats(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	stats, err := h.service.UserStats(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":    stats,
		"win_rate": stats.WinRate(),
	})
}
