package domain

import (
	"fmt"
	"strings"
	"time"
)

// SensoryMode indicates the recommended study interaction for a paragraph.
type SensoryMode string

const (
	ModeWrite   SensoryMode = "write"
	ModeType    SensoryMode = "type"
	ModeListen  SensoryMode = "listen"
	ModeMermaid SensoryMode = "mermaid"
)

// AllSensoryModes lists every supported mode in canonical documentation
// order. Request handling preserves the caller's order instead.
var AllSensoryModes = []SensoryMode{ModeWrite, ModeType, ModeListen, ModeMermaid}

// ParseSensoryMode validates a single mode string.
func ParseSensoryMode(s string) (SensoryMode, error) {
	switch m := SensoryMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeWrite, ModeType, ModeListen, ModeMermaid:
		return m, nil
	default:
		return "", fmt.Errorf("unknown sensory mode %q", s)
	}
}

// TaggedSegment is one paragraph of lesson text annotated with exactly one
// sensory mode. Text is verbatim source material; tagging never rewords.
type TaggedSegment struct {
	Text string      `json:"text"`
	Mode SensoryMode `json:"mode"`
}

// SummaryEntry labels one paragraph with a 2-3 word heading.
type SummaryEntry struct {
	ParagraphIndex int    `json:"paragraph_index"`
	Label          string `json:"label"`
}

// Option is a single multiple-choice answer.
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question carries exactly four options with exactly one correct answer.
// The invariant is enforced by pipeline validation, never trusted from the
// provider.
type Question struct {
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// ExerciseContent is the pipeline's full output for one exercise: ordered
// tagged segments plus the optional per-paragraph summary and quiz.
type ExerciseContent struct {
	Segments  []TaggedSegment `json:"segments"`
	Summary   []SummaryEntry  `json:"summary,omitempty"`
	Questions []Question      `json:"questions,omitempty"`
}

// ExerciseStatus enumerates exercise lifecycle states.
type ExerciseStatus string

const (
	ExerciseStatusPending ExerciseStatus = "pending"
	ExerciseStatusPartial ExerciseStatus = "partial"
	ExerciseStatusReady   ExerciseStatus = "ready"
	ExerciseStatusFailed  ExerciseStatus = "failed"
)

// Exercise is the persisted record a generation job targets. The embedded
// content block is filled incrementally, one pipeline stage at a time.
type Exercise struct {
	ID      string
	TopicID string
	UserID  string
	Title   string
	Status  ExerciseStatus
	ExerciseContent
	CreatedAt time.Time
	UpdatedAt time.Time
}
