package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	UpsertByGoogleSub(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetDailyUsage(ctx context.Context, userID string) (int, error)
}

// CourseRepository persists courses and their topics.
type CourseRepository interface {
	Create(ctx context.Context, course *Course) error
	GetByID(ctx context.Context, id string) (*Course, error)
	// ApplyOutline fills the pending course row with a validated outline and
	// inserts its topics in order. Returns the updated course.
	ApplyOutline(ctx context.Context, courseID string, outline CourseOutline) (*Course, error)
	MarkFailed(ctx context.Context, courseID string, reason string) error
	ListTopics(ctx context.Context, courseID string) ([]Topic, error)
}

// ExerciseRepository persists exercise rows and their generated content.
// Each Save* method updates a single column set so multi-stage pipelines can
// land partial results incrementally.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *Exercise) error
	GetByID(ctx context.Context, id string) (*Exercise, error)
	SaveSegments(ctx context.Context, exerciseID string, segments []TaggedSegment) (*Exercise, error)
	SaveSummary(ctx context.Context, exerciseID string, summary []SummaryEntry) (*Exercise, error)
	SaveQuestions(ctx context.Context, exerciseID string, questions []Question) (*Exercise, error)
	UpdateStatus(ctx context.Context, exerciseID string, status ExerciseStatus) error
}

// DocumentRepository stores uploaded-document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id string) (*Document, error)
}

// JobRepository defines persistence for generation jobs.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, id string) (*GenerationJob, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg *string, stagesJSON []byte) error
}

// AnalyticsRepository updates metrics counters.
type AnalyticsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
	GetSummary(ctx context.Context) (*AnalyticsDaily, error)
}
