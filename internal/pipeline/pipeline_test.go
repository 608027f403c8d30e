package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/completion"
	"server/internal/domain"
)

const lesson = "Cats are small carnivorous mammals.\n\nDogs are loyal companions to humans."

var principal = domain.Principal{UserID: "user-1", Plan: domain.PlanFree}

type scripted struct {
	raw json.RawMessage
	err error
}

type fakeClient struct {
	responses []scripted
	requests  []completion.Request
}

func (f *fakeClient) Complete(_ context.Context, req completion.Request) (json.RawMessage, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, errors.New("fake client: no scripted response left")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next.raw, next.err
}

func (f *fakeClient) Model() string { return "fake-model" }

func (f *fakeClient) calls() int { return len(f.requests) }

type memExercises struct {
	exercise *domain.Exercise
	statuses []domain.ExerciseStatus
}

func (m *memExercises) Create(_ context.Context, ex *domain.Exercise) error {
	m.exercise = ex
	return nil
}

func (m *memExercises) GetByID(_ context.Context, id string) (*domain.Exercise, error) {
	if m.exercise == nil || m.exercise.ID != id {
		return nil, domain.ErrNotFound
	}
	cp := *m.exercise
	return &cp, nil
}

func (m *memExercises) SaveSegments(_ context.Context, _ string, segments []domain.TaggedSegment) (*domain.Exercise, error) {
	m.exercise.Segments = segments
	cp := *m.exercise
	return &cp, nil
}

func (m *memExercises) SaveSummary(_ context.Context, _ string, summary []domain.SummaryEntry) (*domain.Exercise, error) {
	m.exercise.Summary = summary
	cp := *m.exercise
	return &cp, nil
}

func (m *memExercises) SaveQuestions(_ context.Context, _ string, questions []domain.Question) (*domain.Exercise, error) {
	m.exercise.Questions = questions
	cp := *m.exercise
	return &cp, nil
}

func (m *memExercises) UpdateStatus(_ context.Context, _ string, status domain.ExerciseStatus) error {
	m.exercise.Status = status
	m.statuses = append(m.statuses, status)
	return nil
}

type memCourses struct {
	course   *domain.Course
	outline  *domain.CourseOutline
	failures []string
}

func (m *memCourses) Create(_ context.Context, c *domain.Course) error {
	m.course = c
	return nil
}

func (m *memCourses) GetByID(_ context.Context, id string) (*domain.Course, error) {
	if m.course == nil || m.course.ID != id {
		return nil, domain.ErrNotFound
	}
	cp := *m.course
	return &cp, nil
}

func (m *memCourses) ApplyOutline(_ context.Context, _ string, outline domain.CourseOutline) (*domain.Course, error) {
	m.outline = &outline
	m.course.Name = outline.CourseName
	m.course.Status = domain.CourseStatusReady
	cp := *m.course
	return &cp, nil
}

func (m *memCourses) MarkFailed(_ context.Context, _ string, reason string) error {
	m.failures = append(m.failures, reason)
	m.course.Status = domain.CourseStatusFailed
	return nil
}

func (m *memCourses) ListTopics(_ context.Context, _ string) ([]domain.Topic, error) {
	return nil, nil
}

func passthroughExtract(_ string, data []byte) (string, error) {
	return string(data), nil
}

func newTestPipeline(client *fakeClient, exercises *memExercises, courses *memCourses) *Pipeline {
	return New(Options{
		Client:     client,
		Courses:    courses,
		Exercises:  exercises,
		Logger:     zerolog.Nop(),
		Extractor:  passthroughExtract,
		Attempts:   3,
		RetryDelay: time.Millisecond,
	})
}

func taggingJSON(t *testing.T, segments []domain.TaggedSegment) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"segments": segments})
	require.NoError(t, err)
	return raw
}

func validTagging(t *testing.T) json.RawMessage {
	return taggingJSON(t, []domain.TaggedSegment{
		{Text: "Cats are small carnivorous mammals.", Mode: domain.ModeWrite},
		{Text: "Dogs are loyal companions to humans.", Mode: domain.ModeType},
	})
}

func baseRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		TargetLevel:  domain.LevelAuto,
		SensoryModes: []domain.SensoryMode{domain.ModeWrite, domain.ModeType},
	}
}

func TestGenerateExerciseHappyPath(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	client := &fakeClient{responses: []scripted{
		{raw: validTagging(t)},
		{raw: json.RawMessage(`{"paragraph_summary":"Small cats|Loyal dogs"}`)},
		{raw: json.RawMessage(`{"questions":[{"text":"What are cats?","options":[{"text":"Mammals","is_correct":true},{"text":"Birds","is_correct":false},{"text":"Fish","is_correct":false},{"text":"Plants","is_correct":false}]}]}`)},
	}}
	p := newTestPipeline(client, exercises, nil)

	req := baseRequest()
	req.WithSummary = true
	req.WithQuiz = true
	result, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), req)
	require.NoError(t, err)

	assert.False(t, result.Partial)
	assert.Equal(t, 3, client.calls())
	assert.Equal(t, domain.ExerciseStatusReady, result.Exercise.Status)
	require.Len(t, result.Exercise.Segments, 2)
	assert.Equal(t, domain.ModeWrite, result.Exercise.Segments[0].Mode)
	require.Len(t, result.Exercise.Summary, 2)
	assert.Equal(t, "Small cats", result.Exercise.Summary[0].Label)
	assert.Equal(t, 1, result.Exercise.Summary[1].ParagraphIndex)
	require.Len(t, result.Exercise.Questions, 1)

	wantStages := []StageOutcome{
		{Stage: StageTagging, OK: true},
		{Stage: StageSummary, OK: true},
		{Stage: StageQuiz, OK: true},
	}
	assert.Equal(t, wantStages, result.Stages)
}

func TestGenerateExerciseEmptyDocumentFailsFast(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	client := &fakeClient{}
	p := newTestPipeline(client, exercises, nil)

	_, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte("   \n\t  "), baseRequest())
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, FailureValidation, se.Kind)
	assert.Equal(t, 0, client.calls())
	assert.Equal(t, domain.ExerciseStatusFailed, exercises.exercise.Status)
}

func TestGenerateExerciseRetriesTransientThenSucceeds(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	transient := &completion.ProviderError{Provider: "fake", Status: 503, Transient: true, Message: "overloaded"}
	client := &fakeClient{responses: []scripted{
		{err: transient},
		{err: transient},
		{raw: validTagging(t)},
	}}
	p := newTestPipeline(client, exercises, nil)

	result, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.NoError(t, err)

	// Two transient failures consume two attempts; the third succeeds. No
	// repair turn appears in any request.
	assert.Equal(t, 3, client.calls())
	for _, req := range client.requests {
		for _, msg := range req.Messages {
			assert.NotContains(t, msg.Content, "rejected")
		}
	}
	assert.Equal(t, domain.ExerciseStatusReady, result.Exercise.Status)
}

func TestGenerateExerciseTransientBudgetExhausted(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	transient := &completion.ProviderError{Provider: "fake", Status: 429, Transient: true, Message: "rate limited"}
	client := &fakeClient{responses: []scripted{{err: transient}, {err: transient}, {err: transient}}}
	p := newTestPipeline(client, exercises, nil)

	_, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, FailureProviderTransient, se.Kind)
	assert.Equal(t, 3, client.calls())
	assert.Equal(t, domain.ExerciseStatusFailed, exercises.exercise.Status)
}

func TestGenerateExerciseFatalProviderErrorDoesNotRetry(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	fatal := &completion.ProviderError{Provider: "fake", Status: 401, Transient: false, Message: "bad key"}
	client := &fakeClient{responses: []scripted{{err: fatal}}}
	p := newTestPipeline(client, exercises, nil)

	_, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, FailureProviderFatal, se.Kind)
	assert.Equal(t, 1, client.calls())
}

func TestGenerateExerciseRewordedTaggingIsRepaired(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	reworded := taggingJSON(t, []domain.TaggedSegment{
		{Text: "Cats are little carnivorous mammals.", Mode: domain.ModeWrite},
		{Text: "Dogs are loyal companions to humans.", Mode: domain.ModeType},
	})
	client := &fakeClient{responses: []scripted{
		{raw: reworded},
		{raw: validTagging(t)},
	}}
	p := newTestPipeline(client, exercises, nil)

	result, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.NoError(t, err)

	require.Equal(t, 2, client.calls())
	repair := client.requests[1]
	last := repair.Messages[len(repair.Messages)-1]
	assert.Contains(t, last.Content, "rejected")
	assert.Contains(t, last.Content, "verbatim")
	assert.Equal(t, "Cats are small carnivorous mammals.", result.Exercise.Segments[0].Text)
}

func TestGenerateExerciseRepairFailsTwice(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	reworded := taggingJSON(t, []domain.TaggedSegment{
		{Text: "Completely different text.", Mode: domain.ModeWrite},
	})
	client := &fakeClient{responses: []scripted{{raw: reworded}, {raw: reworded}}}
	p := newTestPipeline(client, exercises, nil)

	_, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, FailureInvariant, se.Kind)
	assert.Equal(t, 2, client.calls())
	assert.Equal(t, domain.ExerciseStatusFailed, exercises.exercise.Status)
}

func TestGenerateExerciseQuizTwoCorrectRoutedToRepair(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	twoCorrect := json.RawMessage(`{"questions":[{"text":"Pick one","options":[{"text":"A","is_correct":true},{"text":"B","is_correct":true},{"text":"C","is_correct":false},{"text":"D","is_correct":false}]}]}`)
	oneCorrect := json.RawMessage(`{"questions":[{"text":"Pick one","options":[{"text":"A","is_correct":true},{"text":"B","is_correct":false},{"text":"C","is_correct":false},{"text":"D","is_correct":false}]}]}`)
	client := &fakeClient{responses: []scripted{
		{raw: validTagging(t)},
		{raw: twoCorrect},
		{raw: oneCorrect},
	}}
	p := newTestPipeline(client, exercises, nil)

	req := baseRequest()
	req.WithQuiz = true
	result, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), req)
	require.NoError(t, err)

	assert.Equal(t, 3, client.calls())
	repair := client.requests[2]
	last := repair.Messages[len(repair.Messages)-1]
	assert.Contains(t, last.Content, "correct options")
	assert.False(t, result.Partial)
	require.Len(t, result.Exercise.Questions, 1)
}

func TestGenerateExerciseOptionalStageFailureIsPartial(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	badSummary := json.RawMessage(`{"paragraph_summary":"Only one label"}`)
	client := &fakeClient{responses: []scripted{
		{raw: validTagging(t)},
		{raw: badSummary},
		{raw: badSummary},
	}}
	p := newTestPipeline(client, exercises, nil)

	req := baseRequest()
	req.WithSummary = true
	result, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), req)
	require.NoError(t, err)

	assert.True(t, result.Partial)
	assert.Equal(t, domain.ExerciseStatusPartial, result.Exercise.Status)
	require.Len(t, result.Stages, 2)
	assert.True(t, result.Stages[0].OK)
	assert.False(t, result.Stages[1].OK)
	assert.NotEmpty(t, result.Stages[1].Error)
	assert.Empty(t, result.Exercise.Summary)
	require.Len(t, result.Exercise.Segments, 2)
}

func TestGenerateExercisePreferencesReachProvider(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	client := &fakeClient{responses: []scripted{{raw: validTagging(t)}}}
	p := newTestPipeline(client, exercises, nil)

	req := baseRequest()
	req.TargetLevel = domain.LevelAdvanced
	req.TargetLength = 600
	req.PriorKnowledge = []string{"algebra"}
	req.PrePrompt = "Be encouraging."
	_, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), req)
	require.NoError(t, err)

	require.Equal(t, 1, client.calls())
	user := client.requests[0].Messages[len(client.requests[0].Messages)-1]
	assert.Equal(t, "user", user.Role)
	assert.Contains(t, user.Content, "advanced level")
	assert.Contains(t, user.Content, "at least 600 words")
	assert.Contains(t, user.Content, "algebra")
	assert.Contains(t, user.Content, "Be encouraging.")
}

func TestGenerateExerciseAutoPreferencesAddNothing(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	client := &fakeClient{responses: []scripted{{raw: validTagging(t)}}}
	p := newTestPipeline(client, exercises, nil)

	_, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.NoError(t, err)

	require.Equal(t, 1, client.calls())
	user := client.requests[0].Messages[len(client.requests[0].Messages)-1]
	assert.NotContains(t, user.Content, "level in depth")
	assert.NotContains(t, user.Content, "words long")
	assert.NotContains(t, user.Content, "already knows")
}

// cancellingClient cancels the run's context while the provider call is in
// flight, then hands back a valid response anyway.
type cancellingClient struct {
	fakeClient
	cancel context.CancelFunc
}

func (c *cancellingClient) Complete(ctx context.Context, req completion.Request) (json.RawMessage, error) {
	c.cancel()
	return c.fakeClient.Complete(ctx, req)
}

func TestGenerateExerciseCancelledDuringCallNeverPersists(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &cancellingClient{
		fakeClient: fakeClient{responses: []scripted{{raw: validTagging(t)}}},
		cancel:     cancel,
	}
	p := New(Options{
		Client:     client,
		Exercises:  exercises,
		Logger:     zerolog.Nop(),
		Extractor:  passthroughExtract,
		RetryDelay: time.Millisecond,
	})

	_, err := p.GenerateExercise(ctx, principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, exercises.exercise.Segments)
	assert.Empty(t, exercises.statuses, "a cancelled run must not move the exercise status")
}

func TestGenerateExerciseCancelledBeforeCall(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "user-1", Status: domain.ExerciseStatusPending}}
	client := &fakeClient{responses: []scripted{{raw: validTagging(t)}}}
	p := newTestPipeline(client, exercises, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.GenerateExercise(ctx, principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, client.calls())
	assert.Empty(t, exercises.exercise.Segments)
}

func TestGenerateExerciseRejectsForeignPrincipal(t *testing.T) {
	exercises := &memExercises{exercise: &domain.Exercise{ID: "ex-1", UserID: "someone-else", Status: domain.ExerciseStatusPending}}
	client := &fakeClient{}
	p := newTestPipeline(client, exercises, nil)

	_, err := p.GenerateExercise(context.Background(), principal, "ex-1", "lesson.txt", []byte(lesson), baseRequest())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, client.calls())
}

func TestGenerateOutlineHappyPath(t *testing.T) {
	courses := &memCourses{course: &domain.Course{ID: "c-1", UserID: "user-1", Status: domain.CourseStatusPending}}
	client := &fakeClient{responses: []scripted{
		{raw: json.RawMessage(`{"course_name":"Go Basics","course_description":"An introduction to Go.","topics":["Syntax","Types","Concurrency"]}`)},
	}}
	p := newTestPipeline(client, nil, courses)

	course, err := p.GenerateOutline(context.Background(), principal, "c-1", "syllabus.txt", []byte("Week 1: syntax. Week 2: types. Week 3: concurrency."))
	require.NoError(t, err)

	assert.Equal(t, "Go Basics", course.Name)
	assert.Equal(t, domain.CourseStatusReady, course.Status)
	require.NotNil(t, courses.outline)
	assert.Equal(t, []string{"Syntax", "Types", "Concurrency"}, courses.outline.Topics)
}

func TestGenerateOutlineRejectsTopicsAsString(t *testing.T) {
	courses := &memCourses{course: &domain.Course{ID: "c-1", UserID: "user-1", Status: domain.CourseStatusPending}}
	bad := json.RawMessage(`{"course_name":"Go Basics","course_description":"d","topics":"Syntax, Types"}`)
	client := &fakeClient{responses: []scripted{{raw: bad}, {raw: bad}}}
	p := newTestPipeline(client, nil, courses)

	_, err := p.GenerateOutline(context.Background(), principal, "c-1", "syllabus.txt", []byte("syllabus"))
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, FailureInvariant, se.Kind)
	assert.Equal(t, 2, client.calls())
	assert.Equal(t, domain.CourseStatusFailed, courses.course.Status)
	require.Len(t, courses.failures, 1)
}

func TestGenerateOutlineLongCourseNameRepaired(t *testing.T) {
	courses := &memCourses{course: &domain.Course{ID: "c-1", UserID: "user-1", Status: domain.CourseStatusPending}}
	client := &fakeClient{responses: []scripted{
		{raw: json.RawMessage(`{"course_name":"A Very Long Course Name","course_description":"d","topics":["One"]}`)},
		{raw: json.RawMessage(`{"course_name":"Short Name","course_description":"d","topics":["One"]}`)},
	}}
	p := newTestPipeline(client, nil, courses)

	course, err := p.GenerateOutline(context.Background(), principal, "c-1", "syllabus.txt", []byte("syllabus"))
	require.NoError(t, err)
	assert.Equal(t, "Short Name", course.Name)
	assert.Equal(t, 2, client.calls())
}
