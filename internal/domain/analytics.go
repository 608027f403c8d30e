package domain

// AnalyticsDaily aggregates generation activity counters for one day.
type AnalyticsDaily struct {
	Day               string
	ExercisesCreated  int64
	CoursesCreated    int64
	GenerationSuccess int64
	GenerationFailed  int64
	CompletionCalls   int64
}
