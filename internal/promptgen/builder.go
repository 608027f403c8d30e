// Package promptgen builds the prompt/schema pairs the generation pipeline
// sends to the completion provider. Every function is pure: plain data in,
// messages plus a strict response schema out, no I/O.
package promptgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"server/internal/domain"
)

// Message is one role-tagged chunk of a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Prompt pairs ordered messages with the JSON schema the provider must
// enforce on its response.
type Prompt struct {
	Messages   []Message
	SchemaName string
	Schema     *jsonschema.Schema
}

// CourseOutline builds the prompt turning a syllabus into a course skeleton.
func CourseOutline(syllabus string) Prompt {
	system := "You are a curriculum planner. Respond with a JSON object with exactly the keys " +
		"course_name, course_description and topics. course_name is at most 3 words. " +
		"topics is an ordered array of topic names, 1-2 words each, covering the syllabus from first to last. " +
		"Do not add any other keys."
	return Prompt{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: "Syllabus:\n" + syllabus},
		},
		SchemaName: "course_outline",
		Schema:     schemaFor(&OutlinePayload{}),
	}
}

// SegmentTagging builds the prompt that annotates each paragraph of the
// lesson with one sensory mode. Only the caller's requested modes appear in
// the instruction, in the caller's order; the instruction forbids rewording.
func SegmentTagging(lesson string, modes []domain.SensoryMode) Prompt {
	sb := &strings.Builder{}
	sb.WriteString("Split the lesson into its paragraphs and assign each paragraph exactly one study mode. ")
	sb.WriteString("Copy every paragraph verbatim: do not reword, drop, merge or add a single word. ")
	sb.WriteString("Allowed modes, in priority order:\n")
	for _, m := range modes {
		inst, ok := Instruction(m)
		if !ok {
			continue
		}
		fmt.Fprintf(sb, "- %s: %s (e.g. %s)\n", inst.Mode, inst.Description, inst.Examples)
	}
	sb.WriteString("Return a JSON object with a single key segments: an ordered array of {text, mode}.")
	return Prompt{
		Messages: []Message{
			{Role: RoleSystem, Content: sb.String()},
			{Role: RoleUser, Content: "Lesson:\n" + lesson},
		},
		SchemaName: "segment_tagging",
		Schema:     taggingSchema(modes),
	}
}

// Summary builds the prompt producing 2-3 word labels per paragraph, joined
// by "|" in the single field paragraph_summary.
func Summary(lesson string) Prompt {
	system := "Label every paragraph of the lesson with a short heading of 2-3 words. " +
		"Respond with a JSON object with the single key paragraph_summary whose value is " +
		"the headings in paragraph order joined by the character |."
	return Prompt{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: "Lesson:\n" + lesson},
		},
		SchemaName: "paragraph_summary",
		Schema:     schemaFor(&SummaryPayload{}),
	}
}

// Exam builds the prompt producing multiple-choice questions: four options
// per question, exactly one correct.
func Exam(lesson string) Prompt {
	system := "Write multiple-choice questions testing the lesson's key points. " +
		"Each question has exactly 4 options and exactly one option with is_correct true. " +
		"Respond with a JSON object with the single key questions."
	return Prompt{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: "Lesson:\n" + lesson},
		},
		SchemaName: "exam_questions",
		Schema:     schemaFor(&ExamPayload{}),
	}
}

// ExerciseOptions feed the free-form exercise prompt. Zero values mean the
// corresponding clause is omitted entirely.
type ExerciseOptions struct {
	PriorKnowledge []string
	Level          domain.TargetLevel
	Length         domain.TargetLength
	Content        string
	PrePrompt      string
	PostPrompt     string
}

// Exercise assembles a single user message from guarded clauses. A clause is
// a complete line when present and fully absent when its guard is false;
// omission never leaves blank lines or dangling punctuation.
func Exercise(opts ExerciseOptions) Prompt {
	var lines []string
	if pre := strings.TrimSpace(opts.PrePrompt); pre != "" {
		lines = append(lines, pre)
	}
	lines = append(lines, "Create a study exercise from the following material.")
	if len(opts.PriorKnowledge) > 0 {
		lines = append(lines, "Assume the learner already knows: "+strings.Join(opts.PriorKnowledge, ", ")+". Exclude these topics.")
	}
	if opts.Level != "" && opts.Level != domain.LevelAuto {
		lines = append(lines, fmt.Sprintf("Target the %s level in depth and terminology.", strings.ToLower(string(opts.Level))))
	}
	if opts.Length != domain.LengthAuto {
		lines = append(lines, fmt.Sprintf("The exercise text must be at least %d words long.", int(opts.Length)))
	}
	lines = append(lines, "Material:", opts.Content)
	if post := strings.TrimSpace(opts.PostPrompt); post != "" {
		lines = append(lines, post)
	}
	return Prompt{
		Messages:   []Message{{Role: RoleUser, Content: strings.Join(lines, "\n")}},
		SchemaName: "exercise_text",
		Schema:     schemaFor(&ExercisePayload{}),
	}
}

// ExerciseTagging combines the tagging instruction with the caller's
// generation preferences: the system turn comes from SegmentTagging, the user
// turn from the Exercise clause builder with the lesson as material. opts
// left at their zero values change nothing about the user turn.
func ExerciseTagging(lesson string, modes []domain.SensoryMode, opts ExerciseOptions) Prompt {
	opts.Content = lesson
	tagging := SegmentTagging(lesson, modes)
	clauses := Exercise(opts)
	return Prompt{
		Messages:   []Message{tagging.Messages[0], clauses.Messages[0]},
		SchemaName: tagging.SchemaName,
		Schema:     tagging.Schema,
	}
}

// Repair extends a failed exchange with a corrective turn echoing the
// detected defect. The schema is unchanged; the model gets one chance to
// fix its output.
func Repair(prev Prompt, response json.RawMessage, defect string) Prompt {
	messages := make([]Message, 0, len(prev.Messages)+2)
	messages = append(messages, prev.Messages...)
	messages = append(messages,
		Message{Role: RoleAssistant, Content: string(response)},
		Message{Role: RoleUser, Content: "Your previous response was rejected: " + defect +
			" Produce a corrected response that satisfies the original instructions and schema exactly."},
	)
	return Prompt{Messages: messages, SchemaName: prev.SchemaName, Schema: prev.Schema}
}
