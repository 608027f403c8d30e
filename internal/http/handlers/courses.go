package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/infra"
	"server/internal/sqlinline"
	pkgzip "server/pkg/zip"
)

type courseCreateRequest struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
}

type courseDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	JobID       string     `json:"job_id,omitempty"`
	Topics      []topicDTO `json:"topics,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type topicDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// CourseCreate mints a pending course row from a syllabus document and
// enqueues the outline generation job. The row exists before the job so the
// worker never races another pipeline for it.
func (a *App) CourseCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req courseCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.DocumentID == "" {
		a.error(w, http.StatusBadRequest, "document_id required")
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
	if docUserID != userID {
		a.error(w, http.StatusForbidden, "document belongs to another user")
		return
	}

	courseID := uuid.NewString()
	name := req.Name
	if name == "" {
		name = filename
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertCourse, courseID, userID, name, "")
	var insertedID string
	var createdAt time.Time
	if err := row.Scan(&insertedID, &createdAt); err != nil {
		a.Logger.Error().Err(err).Msg("insert course failed")
		a.error(w, http.StatusInternalServerError, "failed to create course")
		return
	}

	jobID := uuid.NewString()
	jobRow := a.SQL.QueryRow(r.Context(), sqlinline.QInsertGenerationJob,
		jobID, userID, "COURSE_OUTLINE", courseID, docID, json.RawMessage(`{}`))
	var jid string
	var jobCreatedAt time.Time
	if err := jobRow.Scan(&jid, &jobCreatedAt); err != nil {
		a.Logger.Error().Err(err).Msg("enqueue outline job failed")
		a.error(w, http.StatusInternalServerError, "failed to enqueue generation")
		return
	}
	a.logUsage(r, userID, "course_created")

	a.json(w, http.StatusAccepted, "course queued", courseDTO{
		ID:        courseID,
		Name:      name,
		Status:    "pending",
		JobID:     jobID,
		CreatedAt: createdAt,
	})
}

// CourseList returns the caller's courses.
func (a *App) CourseList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectCoursesByUser, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list courses failed")
		a.error(w, http.StatusInternalServerError, "failed to list courses")
		return
	}
	defer rows.Close()

	courses := []courseDTO{}
	for rows.Next() {
		var (
			c         courseDTO
			ownerID   string
			updatedAt time.Time
		)
		if err := rows.Scan(&c.ID, &ownerID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &updatedAt); err != nil {
			a.error(w, http.StatusInternalServerError, "failed to read courses")
			return
		}
		courses = append(courses, c)
	}
	a.json(w, http.StatusOK, "ok", courses)
}

// CourseGet returns one course with its topics in order.
func (a *App) CourseGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	courseID := chi.URLParam(r, "id")
	course, ok := a.loadOwnedCourse(w, r, courseID, userID)
	if !ok {
		return
	}

	topicRows, err := a.SQL.Query(r.Context(), sqlinline.QSelectTopicsByCourse, courseID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list topics failed")
		a.error(w, http.StatusInternalServerError, "failed to list topics")
		return
	}
	defer topicRows.Close()
	for topicRows.Next() {
		var (
			t              topicDTO
			topicCourseID  string
			topicCreatedAt time.Time
		)
		if err := topicRows.Scan(&t.ID, &topicCourseID, &t.Name, &t.Position, &topicCreatedAt); err != nil {
			a.error(w, http.StatusInternalServerError, "failed to read topics")
			return
		}
		course.Topics = append(course.Topics, t)
	}
	a.json(w, http.StatusOK, "ok", course)
}

// CourseDelete removes a course the caller owns.
func (a *App) CourseDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	courseID := chi.URLParam(r, "id")
	tag, err := a.SQL.Exec(r.Context(), sqlinline.QDeleteCourse, courseID, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("delete course failed")
		a.error(w, http.StatusInternalServerError, "failed to delete course")
		return
	}
	if tag.RowsAffected() == 0 {
		a.error(w, http.StatusNotFound, "course not found")
		return
	}
	a.json(w, http.StatusOK, "course deleted", nil)
}

// CourseExport bundles the course's exercises into a downloadable zip: one
// JSON file per exercise plus a manifest.
func (a *App) CourseExport(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	courseID := chi.URLParam(r, "id")
	course, ok := a.loadOwnedCourse(w, r, courseID, userID)
	if !ok {
		return
	}

	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectExercisesByCourse, courseID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list exercises failed")
		a.error(w, http.StatusInternalServerError, "failed to load exercises")
		return
	}
	defer rows.Close()

	entries := []pkgzip.Entry{}
	manifest := []map[string]string{}
	for rows.Next() {
		var (
			id, title, status string
			topicID           *string
			exUserID          string
			segments          []byte
			summary           []byte
			questions         []byte
			createdAt         time.Time
			updatedAt         time.Time
		)
		if err := rows.Scan(&id, &topicID, &exUserID, &title, &status, &segments, &summary, &questions, &createdAt, &updatedAt); err != nil {
			a.error(w, http.StatusInternalServerError, "failed to read exercises")
			return
		}
		payload, err := json.MarshalIndent(map[string]any{
			"id":        id,
			"title":     title,
			"status":    status,
			"segments":  json.RawMessage(orEmptyArray(segments)),
			"summary":   json.RawMessage(orEmptyArray(summary)),
			"questions": json.RawMessage(orEmptyArray(questions)),
		}, "", "  ")
		if err != nil {
			a.error(w, http.StatusInternalServerError, "failed to encode exercise")
			return
		}
		filename := fmt.Sprintf("exercises/%s.json", id)
		entries = append(entries, pkgzip.Entry{Filename: filename, Data: payload})
		manifest = append(manifest, map[string]string{"id": id, "title": title, "file": filename})
	}

	manifestJSON, err := json.MarshalIndent(map[string]any{
		"course_id":   courseID,
		"course_name": course.Name,
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"exercises":   manifest,
	}, "", "  ")
	if err != nil {
		a.error(w, http.StatusInternalServerError, "failed to build manifest")
		return
	}
	entries = append(entries, pkgzip.Entry{Filename: "manifest.json", Data: manifestJSON})

	archive, err := pkgzip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Msg("build export archive failed")
		a.error(w, http.StatusInternalServerError, "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="course-%s.zip"`, courseID))
	_, _ = w.Write(archive)
}

func (a *App) loadOwnedCourse(w http.ResponseWriter, r *http.Request, courseID, userID string) (*courseDTO, bool) {
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectCourseByID, courseID)
	var (
		c         courseDTO
		ownerID   string
		updatedAt time.Time
	)
	if err := row.Scan(&c.ID, &ownerID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &updatedAt); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "course not found")
		} else {
			a.error(w, http.StatusInternalServerError, "failed to load course")
		}
		return nil, false
	}
	if ownerID != userID {
		a.error(w, http.StatusForbidden, "course belongs to another user")
		return nil, false
	}
	return &c, true
}

func orEmptyArray(b []byte) []byte {
	if len(b) == 0 {
		return []byte("[]")
	}
	return b
}

func (a *App) logUsage(r *http.Request, userID, event string) {
	_, err := a.SQL.Exec(r.Context(), sqlinline.QInsertUsageEvent, userID, event, json.RawMessage(`{}`))
	if err != nil {
		a.Logger.Warn().Err(err).Str("event", event).Msg("log usage failed")
	}
}
