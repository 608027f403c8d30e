package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/promptgen"
)

// Defect describes a provider response that decoded but broke a contract, or
// failed to decode at all. Defects are repairable: the message is echoed
// back to the model in a corrective turn.
type Defect struct {
	Msg string
}

func (d *Defect) Error() string { return d.Msg }

func defectf(format string, args ...any) *Defect {
	return &Defect{Msg: fmt.Sprintf(format, args...)}
}

// decodeStrict unmarshals a provider response rejecting unknown fields and
// trailing garbage. Any decode failure is a Defect, not a hard error; the
// model may fix it on repair.
func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return defectf("response is not valid JSON for the schema: %v", err)
	}
	if dec.More() {
		return defectf("response contains trailing data after the JSON object")
	}
	return nil
}

// normalizeText collapses all whitespace runs to single spaces so verbatim
// comparisons ignore formatting differences the provider cannot control.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitParagraphs returns the non-empty blank-line-separated blocks of a
// lesson, trimmed.
func splitParagraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// validateTagging checks the tagging payload against the source lesson:
// strict decode, at least one segment, every mode within the requested set,
// and the whitespace-normalized concatenation of segment texts equal to the
// normalized input. The last check is the content-fidelity guarantee; a
// model that rewords a single word fails here.
func validateTagging(input string, raw json.RawMessage, modes []domain.SensoryMode) (*promptgen.TaggingPayload, error) {
	var payload promptgen.TaggingPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}
	if len(payload.Segments) == 0 {
		return nil, defectf("segments must contain at least one entry")
	}
	allowed := make(map[domain.SensoryMode]bool, len(modes))
	for _, m := range modes {
		allowed[m] = true
	}
	parts := make([]string, 0, len(payload.Segments))
	for i, seg := range payload.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			return nil, defectf("segment %d has empty text", i)
		}
		if !allowed[seg.Mode] {
			return nil, defectf("segment %d uses mode %q which was not requested", i, seg.Mode)
		}
		parts = append(parts, seg.Text)
	}
	if normalizeText(strings.Join(parts, " ")) != normalizeText(input) {
		return nil, defectf("segment texts do not reproduce the lesson verbatim; copy every paragraph exactly")
	}
	return &payload, nil
}

// validateSummary checks the paragraph_summary payload: one non-empty label
// per source paragraph, pipe-separated. Returns the parsed entries in
// paragraph order.
func validateSummary(input string, raw json.RawMessage) ([]domain.SummaryEntry, error) {
	var payload promptgen.SummaryPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}
	labels := strings.Split(payload.ParagraphSummary, "|")
	want := len(splitParagraphs(input))
	if len(labels) != want {
		return nil, defectf("paragraph_summary has %d labels but the lesson has %d paragraphs", len(labels), want)
	}
	entries := make([]domain.SummaryEntry, 0, len(labels))
	for i, label := range labels {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			return nil, defectf("label %d is empty", i)
		}
		entries = append(entries, domain.SummaryEntry{ParagraphIndex: i, Label: trimmed})
	}
	return entries, nil
}

// validateQuestions checks the quiz payload: at least one question, exactly
// four options each, exactly one option marked correct.
func validateQuestions(raw json.RawMessage) ([]domain.Question, error) {
	var payload promptgen.ExamPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}
	if len(payload.Questions) == 0 {
		return nil, defectf("questions must contain at least one entry")
	}
	for i, q := range payload.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return nil, defectf("question %d has empty text", i)
		}
		if len(q.Options) != 4 {
			return nil, defectf("question %d has %d options, want exactly 4", i, len(q.Options))
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return nil, defectf("question %d has %d correct options, want exactly 1", i, correct)
		}
	}
	return payload.Questions, nil
}

// validateOutline checks the course-outline payload: a non-empty course
// name of at most three words and a non-empty ordered topic list.
func validateOutline(raw json.RawMessage) (*domain.CourseOutline, error) {
	var payload promptgen.OutlinePayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(payload.CourseName)
	if name == "" {
		return nil, defectf("course_name is empty")
	}
	if words := len(strings.Fields(name)); words > 3 {
		return nil, defectf("course_name has %d words, want at most 3", words)
	}
	if len(payload.Topics) == 0 {
		return nil, defectf("topics must contain at least one entry")
	}
	for i, topic := range payload.Topics {
		if strings.TrimSpace(topic) == "" {
			return nil, defectf("topic %d is empty", i)
		}
	}
	out := domain.CourseOutline{
		CourseName:        name,
		CourseDescription: strings.TrimSpace(payload.CourseDescription),
		Topics:            payload.Topics,
	}
	return &out, nil
}
