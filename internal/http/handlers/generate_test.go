package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"server/internal/middleware"
	"server/internal/sqlinline"
)

type stubSQL struct {
	dailyCount    int
	quotaOverride int
	docOwnerID    string
	jobInserts    [][]any
	exerciseRows  [][]any
	usageEvents   []string
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if query == sqlinline.QInsertUsageEvent {
		s.usageEvents = append(s.usageEvents, args[1].(string))
		return pgconn.CommandTag{}, nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unsupported exec: %.40s", query)
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unsupported query: %.40s", query)
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	switch query {
	case sqlinline.QSelectDailyGenerationUsage:
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*int)) = s.dailyCount
			*(dest[1].(*int)) = s.quotaOverride
			return nil
		})
	case sqlinline.QSelectDocumentByID:
		if s.docOwnerID == "" {
			return NewSimpleRow(nil)
		}
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = args[0].(string)
			*(dest[1].(*string)) = s.docOwnerID
			*(dest[2].(*string)) = "lesson.txt"
			*(dest[3].(*string)) = "txt"
			*(dest[4].(*int64)) = 42
			*(dest[5].(*string)) = "documents/key"
			*(dest[6].(*time.Time)) = time.Now()
			return nil
		})
	case sqlinline.QInsertExercise:
		s.exerciseRows = append(s.exerciseRows, args)
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = args[0].(string)
			*(dest[1].(*time.Time)) = time.Now()
			return nil
		})
	case sqlinline.QInsertGenerationJob:
		s.jobInserts = append(s.jobInserts, args)
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = args[0].(string)
			*(dest[1].(*time.Time)) = time.Now()
			return nil
		})
	default:
		return NewSimpleRow(func(dest ...any) error {
			return errors.New("unsupported query")
		})
	}
}

func newTestApp(sql *stubSQL) *App {
	return &App{SQL: sql, Logger: zerolog.Nop(), JWTSecret: "secret"}
}

func doGenerate(t *testing.T, app *App, userID string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/v1/exercises/generate", bytes.NewReader(raw))
	if userID != "" {
		r = r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
	}
	w := httptest.NewRecorder()
	app.ExerciseGenerate(w, r)
	return w
}

func generateBody() map[string]any {
	return map[string]any{
		"document_id": "7b5ad9b0-3f61-4f2a-9c57-12e04da6b901",
		"title":       "Biology 101",
		"request": map[string]any{
			"sensory_modes": []string{"write", "type"},
			"with_summary":  true,
		},
	}
}

func TestExerciseGenerateEnqueues(t *testing.T) {
	sql := &stubSQL{docOwnerID: "user-1"}
	app := newTestApp(sql)

	w := doGenerate(t, app, "user-1", generateBody())
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ExerciseID string `json:"exercise_id"`
			JobID      string `json:"job_id"`
			Status     string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.Status != "QUEUED" {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
	if len(sql.exerciseRows) != 1 || len(sql.jobInserts) != 1 {
		t.Fatalf("exercise rows = %d, job inserts = %d", len(sql.exerciseRows), len(sql.jobInserts))
	}
	if got := sql.jobInserts[0][2]; got != "EXERCISE_GEN" {
		t.Fatalf("job kind = %v", got)
	}
	if len(sql.usageEvents) != 1 || sql.usageEvents[0] != "generation_enqueued" {
		t.Fatalf("usage events = %v", sql.usageEvents)
	}

	// The persisted request JSON carries the normalized contract.
	reqJSON := sql.jobInserts[0][5].([]byte)
	var persisted map[string]any
	if err := json.Unmarshal(reqJSON, &persisted); err != nil {
		t.Fatalf("decode persisted request: %v", err)
	}
	if persisted["version"] != "2025-06" {
		t.Fatalf("persisted version = %v", persisted["version"])
	}
	if persisted["target_level"] != "Auto" {
		t.Fatalf("persisted target_level = %v", persisted["target_level"])
	}
}

func TestExerciseGenerateQuotaExceeded(t *testing.T) {
	sql := &stubSQL{docOwnerID: "user-1", dailyCount: 3}
	app := newTestApp(sql)

	w := doGenerate(t, app, "user-1", generateBody())
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if len(sql.jobInserts) != 0 {
		t.Fatalf("job inserted despite quota: %v", sql.jobInserts)
	}
}

func TestExerciseGenerateQuotaOverride(t *testing.T) {
	// A per-user quota_daily property raises the limit above the plan default.
	sql := &stubSQL{docOwnerID: "user-1", dailyCount: 3, quotaOverride: 50}
	app := newTestApp(sql)

	w := doGenerate(t, app, "user-1", generateBody())
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(sql.jobInserts) != 1 {
		t.Fatalf("job inserts = %d", len(sql.jobInserts))
	}
}

func TestExerciseGenerateRejectsUnknownMode(t *testing.T) {
	sql := &stubSQL{docOwnerID: "user-1"}
	app := newTestApp(sql)

	body := generateBody()
	body["request"] = map[string]any{"sensory_modes": []string{"write", "osmosis"}}
	w := doGenerate(t, app, "user-1", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestExerciseGenerateForeignDocument(t *testing.T) {
	sql := &stubSQL{docOwnerID: "someone-else"}
	app := newTestApp(sql)

	w := doGenerate(t, app, "user-1", generateBody())
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestExerciseGenerateRequiresAuth(t *testing.T) {
	app := newTestApp(&stubSQL{})
	w := doGenerate(t, app, "", generateBody())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
