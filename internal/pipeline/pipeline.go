// Package pipeline runs document-to-exercise generation as an explicit
// state machine: extract, build prompt, await completion, validate, repair
// at most once, persist. Every stage failure carries a kind the API maps to
// its uniform response envelope.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/completion"
	"server/internal/domain"
	"server/internal/extract"
	"server/internal/promptgen"
)

// State names the machine's position. States only move forward; Failed
// absorbs from any non-terminal state.
type State string

const (
	StatePending            State = "PENDING"
	StateExtracting         State = "EXTRACTING"
	StateBuildingPrompt     State = "BUILDING_PROMPT"
	StateAwaitingCompletion State = "AWAITING_COMPLETION"
	StateValidating         State = "VALIDATING"
	StateRepairing          State = "REPAIRING"
	StatePersisting         State = "PERSISTING"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// FailureKind classifies terminal pipeline failures.
type FailureKind string

const (
	FailureExtraction        FailureKind = "ExtractionError"
	FailureValidation        FailureKind = "ValidationError"
	FailureProviderTransient FailureKind = "ProviderTransientError"
	FailureProviderFatal     FailureKind = "ProviderFatalError"
	FailureInvariant         FailureKind = "GenerationInvariantViolation"
	FailurePersistence       FailureKind = "PersistenceError"
)

// StageError is a terminal failure of one pipeline stage.
type StageError struct {
	Stage string
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage names used in logs and per-stage job results.
const (
	StageOutline = "outline"
	StageTagging = "tagging"
	StageSummary = "summary"
	StageQuiz    = "quiz"
)

// StageOutcome records one stage's result for the job's stages column.
type StageOutcome struct {
	Stage string `json:"stage"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ExerciseResult is the aggregate of a multi-stage exercise run. Partial is
// true when tagging landed but an optional stage failed.
type ExerciseResult struct {
	Exercise *domain.Exercise
	Stages   []StageOutcome
	Partial  bool
}

// Extractor turns an uploaded document into plain lesson text.
type Extractor func(filename string, data []byte) (string, error)

// Options wires a Pipeline. Zero Attempts/RetryDelay take the defaults;
// Extractor defaults to the document extractor.
type Options struct {
	Client     completion.Client
	Courses    domain.CourseRepository
	Exercises  domain.ExerciseRepository
	Logger     zerolog.Logger
	Extractor  Extractor
	Attempts   int
	RetryDelay time.Duration
}

// Pipeline executes generation jobs. Safe for concurrent use; each run is
// independent state.
type Pipeline struct {
	client     completion.Client
	courses    domain.CourseRepository
	exercises  domain.ExerciseRepository
	log        zerolog.Logger
	extract    Extractor
	attempts   int
	retryDelay time.Duration
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		client:     opts.Client,
		courses:    opts.Courses,
		exercises:  opts.Exercises,
		log:        opts.Logger,
		extract:    opts.Extractor,
		attempts:   opts.Attempts,
		retryDelay: opts.RetryDelay,
	}
	if p.extract == nil {
		p.extract = extract.Text
	}
	if p.attempts <= 0 {
		p.attempts = 3
	}
	if p.retryDelay <= 0 {
		p.retryDelay = 500 * time.Millisecond
	}
	return p
}

// GenerateOutline runs the outline machine for a pending course row: extract
// the syllabus, one completion with validation and repair, then apply the
// outline to the course. The course is marked failed on any terminal error.
func (p *Pipeline) GenerateOutline(ctx context.Context, principal domain.Principal, courseID, filename string, data []byte) (*domain.Course, error) {
	course, err := p.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, &StageError{Stage: StageOutline, Kind: FailurePersistence, Err: err}
	}
	if course.UserID != principal.UserID {
		return nil, &StageError{Stage: StageOutline, Kind: FailurePersistence, Err: domain.ErrUnauthorized}
	}

	text, err := p.extractText(StageOutline, filename, data)
	if err != nil {
		p.markCourseFailed(ctx, courseID, err)
		return nil, err
	}

	p.transition(StageOutline, StateBuildingPrompt)
	prompt := promptgen.CourseOutline(text)

	raw, err := p.completeValidated(ctx, StageOutline, prompt, func(raw json.RawMessage) error {
		_, err := validateOutline(raw)
		return err
	})
	if err != nil {
		p.markCourseFailed(ctx, courseID, err)
		return nil, err
	}
	outline, err := validateOutline(raw)
	if err != nil {
		p.markCourseFailed(ctx, courseID, err)
		return nil, &StageError{Stage: StageOutline, Kind: FailureInvariant, Err: err}
	}

	p.transition(StageOutline, StatePersisting)
	updated, err := p.courses.ApplyOutline(ctx, courseID, *outline)
	if err != nil {
		return nil, &StageError{Stage: StageOutline, Kind: FailurePersistence, Err: err}
	}
	p.transition(StageOutline, StateDone)
	return updated, nil
}

// GenerateExercise runs the multi-stage exercise machine. Tagging is
// required; summary and quiz run as independent instances whose failures
// leave the exercise partial instead of failed. Each stage's output is
// persisted as soon as it validates.
func (p *Pipeline) GenerateExercise(ctx context.Context, principal domain.Principal, exerciseID, filename string, data []byte, req domain.GenerationRequest) (*ExerciseResult, error) {
	exercise, err := p.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		return nil, &StageError{Stage: StageTagging, Kind: FailurePersistence, Err: err}
	}
	if exercise.UserID != principal.UserID {
		return nil, &StageError{Stage: StageTagging, Kind: FailurePersistence, Err: domain.ErrUnauthorized}
	}

	text, err := p.extractText(StageTagging, filename, data)
	if err != nil {
		p.markExerciseFailed(ctx, exerciseID)
		return nil, err
	}

	result := &ExerciseResult{}

	// Tagging is the required stage; everything else hangs off its success.
	// The caller's preferences ride along as guarded clauses in the user turn.
	p.transition(StageTagging, StateBuildingPrompt)
	prompt := promptgen.ExerciseTagging(text, req.SensoryModes, promptgen.ExerciseOptions{
		PriorKnowledge: req.PriorKnowledge,
		Level:          req.TargetLevel,
		Length:         req.TargetLength,
		PrePrompt:      req.PrePrompt,
		PostPrompt:     req.PostPrompt,
	})
	raw, err := p.completeValidated(ctx, StageTagging, prompt, func(raw json.RawMessage) error {
		_, err := validateTagging(text, raw, req.SensoryModes)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			p.markExerciseFailed(ctx, exerciseID)
		}
		return nil, err
	}
	tagged, err := validateTagging(text, raw, req.SensoryModes)
	if err != nil {
		p.markExerciseFailed(ctx, exerciseID)
		return nil, &StageError{Stage: StageTagging, Kind: FailureInvariant, Err: err}
	}

	p.transition(StageTagging, StatePersisting)
	exercise, err = p.exercises.SaveSegments(ctx, exerciseID, tagged.Segments)
	if err != nil {
		return nil, &StageError{Stage: StageTagging, Kind: FailurePersistence, Err: err}
	}
	result.Stages = append(result.Stages, StageOutcome{Stage: StageTagging, OK: true})
	p.transition(StageTagging, StateDone)

	if req.WithSummary {
		outcome := p.runSummary(ctx, exerciseID, text, &exercise)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Stages = append(result.Stages, outcome)
		result.Partial = result.Partial || !outcome.OK
	}
	if req.WithQuiz {
		outcome := p.runQuiz(ctx, exerciseID, text, &exercise)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Stages = append(result.Stages, outcome)
		result.Partial = result.Partial || !outcome.OK
	}

	status := domain.ExerciseStatusReady
	if result.Partial {
		status = domain.ExerciseStatusPartial
	}
	if err := p.exercises.UpdateStatus(ctx, exerciseID, status); err != nil {
		return nil, &StageError{Stage: StageTagging, Kind: FailurePersistence, Err: err}
	}
	exercise.Status = status
	result.Exercise = exercise
	return result, nil
}

func (p *Pipeline) runSummary(ctx context.Context, exerciseID, text string, exercise **domain.Exercise) StageOutcome {
	p.transition(StageSummary, StateBuildingPrompt)
	prompt := promptgen.Summary(text)
	raw, err := p.completeValidated(ctx, StageSummary, prompt, func(raw json.RawMessage) error {
		_, err := validateSummary(text, raw)
		return err
	})
	if err != nil {
		return p.optionalFailure(StageSummary, err)
	}
	entries, err := validateSummary(text, raw)
	if err != nil {
		return p.optionalFailure(StageSummary, &StageError{Stage: StageSummary, Kind: FailureInvariant, Err: err})
	}
	p.transition(StageSummary, StatePersisting)
	updated, err := p.exercises.SaveSummary(ctx, exerciseID, entries)
	if err != nil {
		return p.optionalFailure(StageSummary, &StageError{Stage: StageSummary, Kind: FailurePersistence, Err: err})
	}
	*exercise = updated
	p.transition(StageSummary, StateDone)
	return StageOutcome{Stage: StageSummary, OK: true}
}

func (p *Pipeline) runQuiz(ctx context.Context, exerciseID, text string, exercise **domain.Exercise) StageOutcome {
	p.transition(StageQuiz, StateBuildingPrompt)
	prompt := promptgen.Exam(text)
	raw, err := p.completeValidated(ctx, StageQuiz, prompt, func(raw json.RawMessage) error {
		_, err := validateQuestions(raw)
		return err
	})
	if err != nil {
		return p.optionalFailure(StageQuiz, err)
	}
	questions, err := validateQuestions(raw)
	if err != nil {
		return p.optionalFailure(StageQuiz, &StageError{Stage: StageQuiz, Kind: FailureInvariant, Err: err})
	}
	p.transition(StageQuiz, StatePersisting)
	updated, err := p.exercises.SaveQuestions(ctx, exerciseID, questions)
	if err != nil {
		return p.optionalFailure(StageQuiz, &StageError{Stage: StageQuiz, Kind: FailurePersistence, Err: err})
	}
	*exercise = updated
	p.transition(StageQuiz, StateDone)
	return StageOutcome{Stage: StageQuiz, OK: true}
}

func (p *Pipeline) optionalFailure(stage string, err error) StageOutcome {
	p.log.Warn().Str("stage", stage).Err(err).Msg("optional stage failed")
	return StageOutcome{Stage: stage, OK: false, Error: err.Error()}
}

// extractText runs the Extracting state. Empty text after trimming fails
// fast: the provider is never called for a document with nothing in it.
func (p *Pipeline) extractText(stage, filename string, data []byte) (string, error) {
	p.transition(stage, StateExtracting)
	text, err := p.extract(filename, data)
	if err != nil {
		return "", &StageError{Stage: stage, Kind: FailureExtraction, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &StageError{Stage: stage, Kind: FailureValidation, Err: fmt.Errorf("document contains no text")}
	}
	return text, nil
}

// completeValidated is one instance of the completion loop: call the
// provider with retry, validate, and on a defect run exactly one repair
// round trip. A second defect is a terminal invariant violation.
func (p *Pipeline) completeValidated(ctx context.Context, stage string, prompt promptgen.Prompt, check func(json.RawMessage) error) (json.RawMessage, error) {
	raw, err := p.complete(ctx, stage, prompt)
	if err != nil {
		return nil, err
	}
	p.transition(stage, StateValidating)
	defect := check(raw)
	if defect == nil {
		// Cancellation may land while the provider call was in flight; catch
		// it here so a canceled run never reaches Persisting.
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return raw, nil
	}

	p.transition(stage, StateRepairing)
	p.log.Info().Str("stage", stage).Str("defect", defect.Error()).Msg("repairing response")
	repaired, err := p.complete(ctx, stage, promptgen.Repair(prompt, raw, defect.Error()))
	if err != nil {
		return nil, err
	}
	p.transition(stage, StateValidating)
	if defect = check(repaired); defect != nil {
		return nil, &StageError{Stage: stage, Kind: FailureInvariant, Err: defect}
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	return repaired, nil
}

// complete calls the provider with the attempt budget. Only transient
// failures retry, with a cancellable inter-attempt wait. Context errors
// bubble up unwrapped so callers can tell shutdown from failure.
func (p *Pipeline) complete(ctx context.Context, stage string, prompt promptgen.Prompt) (json.RawMessage, error) {
	p.transition(stage, StateAwaitingCompletion)
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := p.client.Complete(ctx, completion.Request{
			Messages:   prompt.Messages,
			SchemaName: prompt.SchemaName,
			Schema:     prompt.Schema,
		})
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !completion.IsTransient(err) {
			return nil, &StageError{Stage: stage, Kind: FailureProviderFatal, Err: err}
		}
		lastErr = err
		p.log.Warn().Str("stage", stage).Int("attempt", attempt).Err(err).Msg("transient provider failure")
		if attempt < p.attempts {
			timer := time.NewTimer(p.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, &StageError{Stage: stage, Kind: FailureProviderTransient, Err: lastErr}
}

func (p *Pipeline) transition(stage string, state State) {
	p.log.Debug().Str("stage", stage).Str("state", string(state)).Msg("pipeline state")
}

func (p *Pipeline) markCourseFailed(ctx context.Context, courseID string, cause error) {
	if err := p.courses.MarkFailed(context.WithoutCancel(ctx), courseID, cause.Error()); err != nil {
		p.log.Error().Str("course_id", courseID).Err(err).Msg("mark course failed")
	}
}

func (p *Pipeline) markExerciseFailed(ctx context.Context, exerciseID string) {
	if err := p.exercises.UpdateStatus(context.WithoutCancel(ctx), exerciseID, domain.ExerciseStatusFailed); err != nil {
		p.log.Error().Str("exercise_id", exerciseID).Err(err).Msg("mark exercise failed")
	}
}
