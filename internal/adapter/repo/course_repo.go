package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// CourseRepositoryPG implements domain.CourseRepository.
type CourseRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewCourseRepository(pool *pgxpool.Pool) *CourseRepositoryPG {
	return &CourseRepositoryPG{pool: pool}
}

// Create inserts a pending course row.
func (r *CourseRepositoryPG) Create(ctx context.Context, course *domain.Course) error {
	query := `
INSERT INTO courses (id, user_id, name, description, status)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, course.ID, course.UserID, course.Name, course.Description, course.Status)
	return err
}

// GetByID fetches a course by its identifier.
func (r *CourseRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Course, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, name, description, status, created_at, updated_at
FROM courses
WHERE id = $1;
`, id)
	return scanCourse(row)
}

// ApplyOutline fills the pending course with its generated outline and
// inserts the topics in order, all in one transaction.
func (r *CourseRepositoryPG) ApplyOutline(ctx context.Context, courseID string, outline domain.CourseOutline) (*domain.Course, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `
UPDATE courses
SET name = $2,
    description = $3,
    status = 'ready',
    updated_at = NOW()
WHERE id = $1
RETURNING id, user_id, name, description, status, created_at, updated_at;
`, courseID, outline.CourseName, outline.CourseDescription)
	course, err := scanCourse(row)
	if err != nil {
		return nil, err
	}

	for i, topic := range outline.Topics {
		if _, err := tx.Exec(ctx, `
INSERT INTO topics (id, course_id, name, position)
VALUES (gen_random_uuid(), $1, $2, $3);
`, courseID, topic, i); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return course, nil
}

// MarkFailed records a terminal generation failure on the course row.
func (r *CourseRepositoryPG) MarkFailed(ctx context.Context, courseID string, reason string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE courses
SET status = 'failed',
    description = $2,
    updated_at = NOW()
WHERE id = $1;
`, courseID, reason)
	return err
}

// ListTopics returns the course's topics in position order.
func (r *CourseRepositoryPG) ListTopics(ctx context.Context, courseID string) ([]domain.Topic, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, course_id, name, position, created_at
FROM topics
WHERE course_id = $1
ORDER BY position ASC;
`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.ID, &t.CourseID, &t.Name, &t.Position, &t.CreatedAt); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func scanCourse(row pgx.Row) (*domain.Course, error) {
	var c domain.Course
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
