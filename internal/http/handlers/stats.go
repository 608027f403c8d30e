package handlers

import (
	"net/http"

	"server/internal/sqlinline"
)

// StatsSummary returns the 30-day aggregate generation counters.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectStatsSummary)
	var exercises, courses, succeeded, failed, calls int64
	if err := row.Scan(&exercises, &courses, &succeeded, &failed, &calls); err != nil {
		a.Logger.Error().Err(err).Msg("load stats failed")
		a.error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, "ok", map[string]int64{
		"exercises_created":  exercises,
		"courses_created":    courses,
		"generation_success": succeeded,
		"generation_failed":  failed,
		"completion_calls":   calls,
	})
}
