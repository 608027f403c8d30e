package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// AnalyticsRepositoryPG implements domain.AnalyticsRepository on the
// analytics_daily counters table.
type AnalyticsRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepositoryPG {
	return &AnalyticsRepositoryPG{pool: pool}
}

// IncrementCounters adds the given deltas to one day's row, creating it on
// first touch.
func (r *AnalyticsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	query := `
INSERT INTO analytics_daily (day, exercises_created, courses_created, generation_success, generation_failed, completion_calls)
VALUES ($1::date, $2, $3, $4, $5, $6)
ON CONFLICT (day) DO UPDATE SET
    exercises_created = analytics_daily.exercises_created + EXCLUDED.exercises_created,
    courses_created = analytics_daily.courses_created + EXCLUDED.courses_created,
    generation_success = analytics_daily.generation_success + EXCLUDED.generation_success,
    generation_failed = analytics_daily.generation_failed + EXCLUDED.generation_failed,
    completion_calls = analytics_daily.completion_calls + EXCLUDED.completion_calls;
`
	_, err := r.pool.Exec(ctx, query,
		day,
		counters["exercises_created"],
		counters["courses_created"],
		counters["generation_success"],
		counters["generation_failed"],
		counters["completion_calls"],
	)
	return err
}

// GetSummary aggregates the last 30 days of counters.
func (r *AnalyticsRepositoryPG) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	row := r.pool.QueryRow(ctx, `
SELECT
    COALESCE(SUM(exercises_created), 0),
    COALESCE(SUM(courses_created), 0),
    COALESCE(SUM(generation_success), 0),
    COALESCE(SUM(generation_failed), 0),
    COALESCE(SUM(completion_calls), 0)
FROM analytics_daily
WHERE day >= CURRENT_DATE - INTERVAL '30 days';
`)
	var s domain.AnalyticsDaily
	if err := row.Scan(&s.ExercisesCreated, &s.CoursesCreated, &s.GenerationSuccess, &s.GenerationFailed, &s.CompletionCalls); err != nil {
		return nil, err
	}
	return &s, nil
}
