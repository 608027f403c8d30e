package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/domain/jsoncfg"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/sqlinline"
)

type generateRequest struct {
	DocumentID string              `json:"document_id"`
	TopicID    string              `json:"topic_id"`
	Title      string              `json:"title"`
	Request    jsoncfg.RequestJSON `json:"request"`
}

type generateResponse struct {
	ExerciseID string `json:"exercise_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}

type exerciseDTO struct {
	ID        string          `json:"id"`
	TopicID   string          `json:"topic_id,omitempty"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	Segments  json.RawMessage `json:"segments"`
	Summary   json.RawMessage `json:"summary"`
	Questions json.RawMessage `json:"questions"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type jobDTO struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	TargetID     string          `json:"target_id"`
	Status       string          `json:"status"`
	Stages       json.RawMessage `json:"stages"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ExerciseGenerate validates the generation request, checks the caller's
// daily quota, mints the pending exercise row and enqueues the job. The
// worker picks it up from there.
func (a *App) ExerciseGenerate(w http.ResponseWriter, r *http.Request) {
	principal := a.currentPrincipal(r)
	if principal.UserID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.DocumentID == "" {
		a.error(w, http.StatusBadRequest, "document_id required")
		return
	}
	req.Request.Normalize(middleware.LocaleFromContext(r.Context()))
	if err := req.Request.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	var used, quotaOverride int
	usageRow := a.SQL.QueryRow(r.Context(), sqlinline.QSelectDailyGenerationUsage, principal.UserID)
	if err := usageRow.Scan(&used, &quotaOverride); err != nil && !infra.IsNoRows(err) {
		a.Logger.Error().Err(err).Msg("quota lookup failed")
		a.error(w, http.StatusInternalServerError, "failed to check quota")
		return
	}
	if used >= quotaFor(principal.Plan, quotaOverride) {
		a.error(w, http.StatusTooManyRequests, "daily generation quota exceeded")
		return
	}

	docRow := a.SQL.QueryRow(r.Context(), sqlinline.QSelectDocumentByID, req.DocumentID)
	var (
		docID, docUserID, filename, kind, storageKey string
		sizeBytes                                    int64
		docCreatedAt                                 time.Time
	)
	if err := docRow.Scan(&docID, &docUserID, &filename, &kind, &sizeBytes, &storageKey, &docCreatedAt); err != nil {
		a.error(w, http.StatusNotFound, "document not found")
		return
	}
	if docUserID != principal.UserID {
		a.error(w, http.StatusForbidden, "document belongs to another user")
		return
	}

	title := req.Title
	if title == "" {
		title = filename
	}
	exerciseID := uuid.NewString()
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertExercise, exerciseID, req.TopicID, principal.UserID, title)
	var insertedID string
	var createdAt time.Time
	if err := row.Scan(&insertedID, &createdAt); err != nil {
		a.Logger.Error().Err(err).Msg("insert exercise failed")
		a.error(w, http.StatusInternalServerError, "failed to create exercise")
		return
	}

	jobID := uuid.NewString()
	jobRow := a.SQL.QueryRow(r.Context(), sqlinline.QInsertGenerationJob,
		jobID, principal.UserID, string(domain.JobKindExercise), exerciseID, docID, jsoncfg.MustMarshal(req.Request))
	var jid string
	var jobCreatedAt time.Time
	if err := jobRow.Scan(&jid, &jobCreatedAt); err != nil {
		a.Logger.Error().Err(err).Msg("enqueue exercise job failed")
		a.error(w, http.StatusInternalServerError, "failed to enqueue generation")
		return
	}
	a.logUsage(r, principal.UserID, "generation_enqueued")

	a.json(w, http.StatusAccepted, "generation queued", generateResponse{
		ExerciseID: exerciseID,
		JobID:      jobID,
		Status:     string(domain.JobStatusQueued),
	})
}

// ExerciseGet returns one exercise with whatever content has landed so far.
func (a *App) ExerciseGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	exerciseID := chi.URLParam(r, "id")
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectExerciseByID, exerciseID)
	var (
		dto       exerciseDTO
		topicID   *string
		ownerID   string
		segments  []byte
		summary   []byte
		questions []byte
	)
	if err := row.Scan(&dto.ID, &topicID, &ownerID, &dto.Title, &dto.Status, &segments, &summary, &questions, &dto.CreatedAt, &dto.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "exercise not found")
		} else {
			a.error(w, http.StatusInternalServerError, "failed to load exercise")
		}
		return
	}
	if ownerID != userID {
		a.error(w, http.StatusForbidden, "exercise belongs to another user")
		return
	}
	if topicID != nil {
		dto.TopicID = *topicID
	}
	dto.Segments = orEmptyArray(segments)
	dto.Summary = orEmptyArray(summary)
	dto.Questions = orEmptyArray(questions)
	a.json(w, http.StatusOK, "ok", dto)
}

// JobGet returns a generation job's status with its per-stage results.
func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	jobID := chi.URLParam(r, "id")
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectGenerationJobByID, jobID)
	var (
		dto         jobDTO
		ownerID     string
		documentID  string
		requestJSON []byte
		stages      []byte
	)
	if err := row.Scan(&dto.ID, &ownerID, &dto.Kind, &dto.TargetID, &documentID, &dto.Status, &requestJSON, &stages, &dto.ErrorMessage, &dto.CreatedAt, &dto.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "job not found")
		} else {
			a.error(w, http.StatusInternalServerError, "failed to load job")
		}
		return
	}
	if ownerID != userID {
		a.error(w, http.StatusForbidden, "job belongs to another user")
		return
	}
	dto.Stages = orEmptyArray(stages)
	a.json(w, http.StatusOK, "ok", dto)
}
