package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// ExerciseRepositoryPG implements domain.ExerciseRepository. Content columns
// are jsonb and land one pipeline stage at a time.
type ExerciseRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewExerciseRepository(pool *pgxpool.Pool) *ExerciseRepositoryPG {
	return &ExerciseRepositoryPG{pool: pool}
}

const exerciseColumns = `id, topic_id, user_id, title, status, segments, summary, questions, created_at, updated_at`

// Create inserts a pending exercise row.
func (r *ExerciseRepositoryPG) Create(ctx context.Context, exercise *domain.Exercise) error {
	query := `
INSERT INTO exercises (id, topic_id, user_id, title, status)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, exercise.ID, exercise.TopicID, exercise.UserID, exercise.Title, exercise.Status)
	return err
}

// GetByID fetches an exercise with its generated content.
func (r *ExerciseRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Exercise, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = $1;`, id)
	return scanExercise(row)
}

// SaveSegments stores the tagging stage output.
func (r *ExerciseRepositoryPG) SaveSegments(ctx context.Context, exerciseID string, segments []domain.TaggedSegment) (*domain.Exercise, error) {
	raw, err := json.Marshal(segments)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
UPDATE exercises
SET segments = $2::jsonb, updated_at = NOW()
WHERE id = $1
RETURNING `+exerciseColumns+`;
`, exerciseID, raw)
	return scanExercise(row)
}

// SaveSummary stores the summary stage output.
func (r *ExerciseRepositoryPG) SaveSummary(ctx context.Context, exerciseID string, summary []domain.SummaryEntry) (*domain.Exercise, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
UPDATE exercises
SET summary = $2::jsonb, updated_at = NOW()
WHERE id = $1
RETURNING `+exerciseColumns+`;
`, exerciseID, raw)
	return scanExercise(row)
}

// SaveQuestions stores the quiz stage output.
func (r *ExerciseRepositoryPG) SaveQuestions(ctx context.Context, exerciseID string, questions []domain.Question) (*domain.Exercise, error) {
	raw, err := json.Marshal(questions)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
UPDATE exercises
SET questions = $2::jsonb, updated_at = NOW()
WHERE id = $1
RETURNING `+exerciseColumns+`;
`, exerciseID, raw)
	return scanExercise(row)
}

// UpdateStatus moves the exercise's lifecycle state.
func (r *ExerciseRepositoryPG) UpdateStatus(ctx context.Context, exerciseID string, status domain.ExerciseStatus) error {
	_, err := r.pool.Exec(ctx, `
UPDATE exercises
SET status = $2, updated_at = NOW()
WHERE id = $1;
`, exerciseID, status)
	return err
}

func scanExercise(row pgx.Row) (*domain.Exercise, error) {
	var (
		e         domain.Exercise
		topicID   *string
		segments  []byte
		summary   []byte
		questions []byte
	)
	if err := row.Scan(&e.ID, &topicID, &e.UserID, &e.Title, &e.Status, &segments, &summary, &questions, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if topicID != nil {
		e.TopicID = *topicID
	}
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &e.Segments); err != nil {
			return nil, err
		}
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &e.Summary); err != nil {
			return nil, err
		}
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &e.Questions); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
