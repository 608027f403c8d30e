package promptgen

import (
	"github.com/invopop/jsonschema"

	"server/internal/domain"
)

// OutlinePayload is the schema contract for course-outline generation.
type OutlinePayload = domain.CourseOutline

// TaggingPayload is the schema contract for segment tagging: the lesson
// split into ordered paragraphs, each annotated with one sensory mode.
type TaggingPayload struct {
	Segments []domain.TaggedSegment `json:"segments"`
}

// SummaryPayload carries per-paragraph 2-3 word labels joined by "|".
type SummaryPayload struct {
	ParagraphSummary string `json:"paragraph_summary"`
}

// ExamPayload is the schema contract for quiz generation.
type ExamPayload struct {
	Questions []domain.Question `json:"questions"`
}

// ExercisePayload is the schema contract for free-form exercise generation.
type ExercisePayload struct {
	Exercise string `json:"exercise"`
}

// schemaFor reflects a payload struct into a strict JSON schema: every
// declared field required, additional properties rejected.
func schemaFor(v any) *jsonschema.Schema {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	return r.Reflect(v)
}

// taggingSchema narrows the segment mode enum to the caller's requested
// modes, preserving their order.
func taggingSchema(modes []domain.SensoryMode) *jsonschema.Schema {
	s := schemaFor(&TaggingPayload{})
	segs, ok := s.Properties.Get("segments")
	if !ok || segs.Items == nil {
		return s
	}
	mode, ok := segs.Items.Properties.Get("mode")
	if !ok {
		return s
	}
	enum := make([]any, 0, len(modes))
	for _, m := range modes {
		enum = append(enum, string(m))
	}
	mode.Enum = enum
	return s
}
