package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/sqlinline"
)

type googleVerifyRequest struct {
	IDToken string `json:"id_token"`
}

type googleVerifyResponse struct {
	Token string         `json:"token"`
	User  userProfileDTO `json:"user"`
}

type userProfileDTO struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Plan       string `json:"plan"`
	Locale     string `json:"locale"`
	QuotaDaily int    `json:"quota_daily"`
	QuotaUsed  int    `json:"quota_used_today"`
}

func (a *App) AuthGoogleVerify(w http.ResponseWriter, r *http.Request) {
	var req googleVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.IDToken == "" {
		a.error(w, http.StatusBadRequest, "id_token required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	claims, err := a.GoogleVerifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		a.Logger.Error().Err(err).Msg("google verify failed")
		a.error(w, http.StatusUnauthorized, "invalid google token")
		return
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	locale := middleware.LocaleFromContext(r.Context())
	if v, _ := claims["locale"].(string); v != "" {
		locale = v
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QUpsertGoogleUser, sub, email, name, picture, locale)
	var (
		userID, googleSub, outEmail, outName, avatarURL, outLocale, plan string
		propsBytes                                                       []byte
		createdAt, updatedAt                                             time.Time
	)
	if err := row.Scan(&userID, &googleSub, &outEmail, &outName, &avatarURL, &outLocale, &plan, &propsBytes, &createdAt, &updatedAt); err != nil {
		a.Logger.Error().Err(err).Msg("upsert user failed")
		a.error(w, http.StatusInternalServerError, "failed to persist user")
		return
	}

	token, err := middleware.SignJWT(a.JWTSecret, middleware.TokenClaims{
		Sub:      userID,
		Plan:     plan,
		Locale:   outLocale,
		Exp:      time.Now().Add(24 * time.Hour).Unix(),
		Issuer:   "learning-platform",
		Audience: "learning-clients",
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	a.json(w, http.StatusOK, "authenticated", googleVerifyResponse{
		Token: token,
		User: userProfileDTO{
			ID:     userID,
			Email:  outEmail,
			Name:   outName,
			Plan:   plan,
			Locale: outLocale,
		},
	})
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	principal := a.currentPrincipal(r)
	if principal.UserID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectUserByID, principal.UserID)
	var (
		id, googleSub, email, name, avatarURL, locale, plan string
		propsBytes                                          []byte
		createdAt, updatedAt                                time.Time
	)
	if err := row.Scan(&id, &googleSub, &email, &name, &avatarURL, &locale, &plan, &propsBytes, &createdAt, &updatedAt); err != nil {
		a.error(w, http.StatusNotFound, "user not found")
		return
	}

	used, quotaOverride := 0, 0
	usageRow := a.SQL.QueryRow(r.Context(), sqlinline.QSelectDailyGenerationUsage, id)
	if err := usageRow.Scan(&used, &quotaOverride); err != nil && !infra.IsNoRows(err) {
		a.Logger.Warn().Err(err).Msg("daily usage lookup failed")
	}

	a.json(w, http.StatusOK, "ok", userProfileDTO{
		ID:         id,
		Email:      email,
		Name:       name,
		Plan:       plan,
		Locale:     locale,
		QuotaDaily: quotaFor(domain.Plan(plan), quotaOverride),
		QuotaUsed:  used,
	})
}
