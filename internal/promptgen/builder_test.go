package promptgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
)

func taggingInstruction(t *testing.T, modes ...domain.SensoryMode) string {
	t.Helper()
	p := SegmentTagging("Some lesson text.", modes)
	require.Len(t, p.Messages, 2)
	require.Equal(t, RoleSystem, p.Messages[0].Role)
	return p.Messages[0].Content
}

func TestSegmentTaggingMentionsOnlyRequestedModes(t *testing.T) {
	instruction := taggingInstruction(t, domain.ModeWrite, domain.ModeType)

	assert.Contains(t, instruction, "- write:")
	assert.Contains(t, instruction, "- type:")
	assert.NotContains(t, instruction, "listen")
	assert.NotContains(t, instruction, "mermaid")
}

func TestSegmentTaggingPreservesCallerOrder(t *testing.T) {
	instruction := taggingInstruction(t, domain.ModeListen, domain.ModeWrite)

	listenIdx := strings.Index(instruction, "- listen:")
	writeIdx := strings.Index(instruction, "- write:")
	require.GreaterOrEqual(t, listenIdx, 0)
	require.GreaterOrEqual(t, writeIdx, 0)
	assert.Less(t, listenIdx, writeIdx, "caller-supplied mode order must survive in the instruction")
}

func TestSegmentTaggingForbidsRewording(t *testing.T) {
	instruction := taggingInstruction(t, domain.ModeWrite)
	assert.Contains(t, instruction, "verbatim")
}

func TestSegmentTaggingSchemaNarrowsModeEnum(t *testing.T) {
	p := SegmentTagging("text", []domain.SensoryMode{domain.ModeType, domain.ModeListen})
	require.NotNil(t, p.Schema)

	segs, ok := p.Schema.Properties.Get("segments")
	require.True(t, ok)
	require.NotNil(t, segs.Items)
	mode, ok := segs.Items.Properties.Get("mode")
	require.True(t, ok)
	assert.Equal(t, []any{"type", "listen"}, mode.Enum)
}

func TestCourseOutlinePrompt(t *testing.T) {
	p := CourseOutline("Week 1: Cells. Week 2: Genetics.")
	require.Len(t, p.Messages, 2)
	assert.Contains(t, p.Messages[0].Content, "course_name")
	assert.Contains(t, p.Messages[0].Content, "topics")
	assert.Contains(t, p.Messages[1].Content, "Week 2: Genetics.")
	assert.Equal(t, "course_outline", p.SchemaName)
	require.NotNil(t, p.Schema)
	_, ok := p.Schema.Properties.Get("course_description")
	assert.True(t, ok)
}

func TestSummaryPromptRequestsPipeJoinedLabels(t *testing.T) {
	p := Summary("One.\n\nTwo.")
	assert.Contains(t, p.Messages[0].Content, "paragraph_summary")
	assert.Contains(t, p.Messages[0].Content, "|")
}

func TestExercisePromptGuardedClauses(t *testing.T) {
	full := Exercise(ExerciseOptions{
		PriorKnowledge: []string{"algebra", "sets"},
		Level:          domain.LevelAdvanced,
		Length:         600,
		Content:        "Graph theory basics.",
		PrePrompt:      "Be encouraging.",
		PostPrompt:     "End with a challenge.",
	})
	require.Len(t, full.Messages, 1)
	body := full.Messages[0].Content
	assert.Contains(t, body, "Be encouraging.")
	assert.Contains(t, body, "algebra, sets")
	assert.Contains(t, body, "advanced level")
	assert.Contains(t, body, "at least 600 words")
	assert.Contains(t, body, "End with a challenge.")

	idxPre := strings.Index(body, "Be encouraging.")
	idxPost := strings.Index(body, "End with a challenge.")
	assert.Less(t, idxPre, idxPost, "pre_prompt must precede post_prompt")
}

func TestExercisePromptOmitsClausesCleanly(t *testing.T) {
	p := Exercise(ExerciseOptions{
		Level:   domain.LevelAuto,
		Length:  domain.LengthAuto,
		Content: "Graph theory basics.",
	})
	body := p.Messages[0].Content
	assert.NotContains(t, body, "already knows")
	assert.NotContains(t, body, "level in depth")
	assert.NotContains(t, body, "words long")
	assert.NotContains(t, body, "\n\n", "omitted clauses must not leave blank lines")
}

func TestExerciseTaggingCarriesPreferences(t *testing.T) {
	p := ExerciseTagging("Graph theory basics.", []domain.SensoryMode{domain.ModeWrite}, ExerciseOptions{
		PriorKnowledge: []string{"algebra"},
		Level:          domain.LevelAdvanced,
		Length:         600,
		PrePrompt:      "Be encouraging.",
	})
	require.Len(t, p.Messages, 2)
	assert.Equal(t, RoleSystem, p.Messages[0].Role)
	assert.Contains(t, p.Messages[0].Content, "- write:")

	user := p.Messages[1]
	assert.Equal(t, RoleUser, user.Role)
	assert.Contains(t, user.Content, "Be encouraging.")
	assert.Contains(t, user.Content, "algebra")
	assert.Contains(t, user.Content, "advanced level")
	assert.Contains(t, user.Content, "at least 600 words")
	assert.Contains(t, user.Content, "Graph theory basics.")

	// The response contract is the tagging one, not the free-form exercise.
	assert.Equal(t, "segment_tagging", p.SchemaName)
}

func TestExerciseTaggingZeroOptionsMatchesPlainTagging(t *testing.T) {
	p := ExerciseTagging("Graph theory basics.", []domain.SensoryMode{domain.ModeWrite}, ExerciseOptions{
		Level: domain.LevelAuto,
	})
	user := p.Messages[1].Content
	assert.NotContains(t, user, "already knows")
	assert.NotContains(t, user, "level in depth")
	assert.NotContains(t, user, "words long")
	assert.Contains(t, user, "Graph theory basics.")
}

func TestRepairEchoesDefect(t *testing.T) {
	orig := Summary("One.")
	repaired := Repair(orig, []byte(`{"paragraph_summary":""}`), "paragraph_summary was empty.")

	require.Len(t, repaired.Messages, len(orig.Messages)+2)
	last := repaired.Messages[len(repaired.Messages)-1]
	assert.Equal(t, RoleUser, last.Role)
	assert.Contains(t, last.Content, "paragraph_summary was empty.")
	assert.Equal(t, orig.SchemaName, repaired.SchemaName)
	assert.Same(t, orig.Schema, repaired.Schema)
}
