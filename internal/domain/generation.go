package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindCourseOutline JobKind = "COURSE_OUTLINE"
	JobKindExercise      JobKind = "EXERCISE_GEN"
)

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusPartial   JobStatus = "PARTIAL"
	JobStatusFailed    JobStatus = "FAILED"
)

// TargetLevel is the requested depth for generated exercise material.
// LevelAuto means no depth constraint is injected into the prompt.
type TargetLevel string

const (
	LevelAuto         TargetLevel = "Auto"
	LevelBeginner     TargetLevel = "Beginner"
	LevelIntermediate TargetLevel = "Intermediate"
	LevelAdvanced     TargetLevel = "Advanced"
	LevelMaster       TargetLevel = "Master"
)

// TargetLength is the requested minimum word count; 0 means Auto.
type TargetLength int

const LengthAuto TargetLength = 0

// AllowedTargetLengths are the selectable non-Auto word counts.
var AllowedTargetLengths = []TargetLength{200, 400, 600, 800, 1000}

// GenerationRequest captures the caller's preferences for one
// document-to-exercise conversion. Created per user action, consumed once.
type GenerationRequest struct {
	PriorKnowledge []string      `json:"prior_knowledge" validate:"dive,min=1"`
	TargetLevel    TargetLevel   `json:"target_level" validate:"oneof=Auto Beginner Intermediate Advanced Master"`
	TargetLength   TargetLength  `json:"target_length" validate:"oneof=0 200 400 600 800 1000"`
	SensoryModes   []SensoryMode `json:"sensory_modes" validate:"required,min=1,dive,oneof=write type listen mermaid"`
	PrePrompt      string        `json:"pre_prompt" validate:"max=2000"`
	PostPrompt     string        `json:"post_prompt" validate:"max=2000"`
	WithSummary    bool          `json:"with_summary"`
	WithQuiz       bool          `json:"with_quiz"`
}

// GenerationJob is the queued unit of work the worker claims. Exactly one
// job targets one course or exercise row; the enqueuing handler mints the
// target row first.
type GenerationJob struct {
	ID           string
	UserID       string
	Kind         JobKind
	TargetID     string
	DocumentID   string
	Status       JobStatus
	RequestJSON  json.RawMessage
	StagesJSON   json.RawMessage
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
