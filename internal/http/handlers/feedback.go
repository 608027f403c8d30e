package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/sqlinline"
)

type feedbackRequest struct {
	Category   string `json:"category"`
	Message    string `json:"message"`
	Rating     int    `json:"rating"`
	ExerciseID string `json:"exercise_id"`
}

type feedbackDTO struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	Rating     int       `json:"rating"`
	ExerciseID string    `json:"exercise_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *App) FeedbackCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		a.error(w, http.StatusBadRequest, "message required")
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		a.error(w, http.StatusBadRequest, "rating must be between 0 and 5")
		return
	}
	if req.Category == "" {
		req.Category = "general"
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertFeedback,
		uuid.NewString(), userID, req.Category, req.Message, req.Rating, req.ExerciseID)
	var id string
	var createdAt time.Time
	if err := row.Scan(&id, &createdAt); err != nil {
		a.Logger.Error().Err(err).Msg("insert feedback failed")
		a.error(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}
	a.json(w, http.StatusCreated, "feedback recorded", feedbackDTO{
		ID:         id,
		Category:   req.Category,
		Message:    req.Message,
		Rating:     req.Rating,
		ExerciseID: req.ExerciseID,
		CreatedAt:  createdAt,
	})
}

func (a *App) FeedbackRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectRecentFeedback, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list feedback failed")
		a.error(w, http.StatusInternalServerError, "failed to list feedback")
		return
	}
	defer rows.Close()

	items := []feedbackDTO{}
	for rows.Next() {
		var (
			fb     feedbackDTO
			userID string
		)
		if err := rows.Scan(&fb.ID, &userID, &fb.Category, &fb.Message, &fb.Rating, &fb.ExerciseID, &fb.CreatedAt); err != nil {
			a.error(w, http.StatusInternalServerError, "failed to read feedback")
			return
		}
		items = append(items, fb)
	}
	a.json(w, http.StatusOK, "ok", items)
}
