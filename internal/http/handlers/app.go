// Package handlers implements the HTTP API. Every response uses the uniform
// envelope {success, message, data}; handlers talk to Postgres through the
// marker-checked SQL runner and inline query constants.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/storage"
)

// GoogleTokenVerifier verifies a Google ID token and returns its claims.
type GoogleTokenVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (map[string]any, error)
}

type App struct {
	SQL            infra.SQLExecutor
	Logger         zerolog.Logger
	JWTSecret      string
	GoogleVerifier GoogleTokenVerifier
	Store          *storage.FileStore
	MaxUploadBytes int64
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (a *App) json(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: code < 400, Message: message, Data: data})
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, message, nil)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) currentPrincipal(r *http.Request) domain.Principal {
	return middleware.PrincipalFromContext(r.Context())
}

// quotaFor resolves the caller's daily allowance: a per-user quota_daily
// property written by the plan CLI overrides the plan default.
func quotaFor(plan domain.Plan, override int) int {
	if override > 0 {
		return override
	}
	return quotaDaily(plan)
}

// quotaDaily is the per-plan generation allowance per calendar day.
func quotaDaily(plan domain.Plan) int {
	switch plan {
	case domain.PlanPro:
		return 100
	case domain.PlanSupporter:
		return 25
	default:
		return 3
	}
}
