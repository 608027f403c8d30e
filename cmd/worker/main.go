package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"server/internal/adapter/repo"
	"server/internal/completion"
	"server/internal/domain"
	"server/internal/domain/jsoncfg"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/pipeline"
	"server/internal/storage"
)

const jobPollInterval = 2 * time.Second

type jobWorker struct {
	logger    zerolog.Logger
	pipeline  *pipeline.Pipeline
	jobs      *repo.JobRepositoryPG
	users     *repo.UserRepositoryPG
	documents *repo.DocumentRepositoryPG
	analytics *repo.AnalyticsRepositoryPG
	store     *storage.FileStore
	calls     *completion.CountingClient
}

func main() {
	_ = godotenv.Load(".env", ".env.local")

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	runner := infra.NewSQLRunner(pool, logger)
	client, err := buildCompletionClient(ctx, cfg, credentials.NewStore(runner), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure completion client")
	}
	calls := completion.NewCountingClient(client)

	courses := repo.NewCourseRepository(pool)
	exercises := repo.NewExerciseRepository(pool)

	worker := &jobWorker{
		logger: logger,
		pipeline: pipeline.New(pipeline.Options{
			Client:     calls,
			Courses:    courses,
			Exercises:  exercises,
			Logger:     logger,
			Attempts:   cfg.CompletionAttempts,
			RetryDelay: cfg.CompletionRetryDelay,
		}),
		jobs:      repo.NewJobRepository(pool),
		users:     repo.NewUserRepository(pool),
		documents: repo.NewDocumentRepository(pool),
		analytics: repo.NewAnalyticsRepository(pool),
		store:     fileStore,
		calls:     calls,
	}

	if err := worker.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func buildCompletionClient(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger zerolog.Logger) (completion.Client, error) {
	counter, err := completion.NewTokenCounter(completionModel(cfg))
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.CompletionProvider) {
	case credentials.ProviderOpenAI:
		key := strings.TrimSpace(cfg.OpenAIAPIKey)
		if key == "" {
			if key, err = creds.OpenAIAPIKey(ctx); err != nil {
				logger.Warn().Err(err).Msg("worker: openai key lookup failed")
			}
		}
		return completion.NewOpenAIClient(completion.OpenAIOptions{
			APIKey:       key,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Temperature:  cfg.CompletionTemperature,
			TokenCeiling: cfg.PromptTokenCeiling,
			RatePerMin:   cfg.CompletionRatePerMin,
			Counter:      counter,
		})
	case credentials.ProviderGemini:
		key := strings.TrimSpace(cfg.GeminiAPIKey)
		if key == "" {
			if key, err = creds.GeminiAPIKey(ctx); err != nil {
				logger.Warn().Err(err).Msg("worker: gemini key lookup failed")
			}
		}
		return completion.NewGeminiClient(completion.GeminiOptions{
			APIKey:       key,
			Model:        cfg.GeminiModel,
			BaseURL:      cfg.GeminiBaseURL,
			Temperature:  cfg.CompletionTemperature,
			TokenCeiling: cfg.PromptTokenCeiling,
			RatePerMin:   cfg.CompletionRatePerMin,
			Counter:      counter,
		})
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.CompletionProvider)
	}
}

func completionModel(cfg *infra.Config) string {
	if strings.ToLower(cfg.CompletionProvider) == credentials.ProviderOpenAI {
		return cfg.OpenAIModel
	}
	return cfg.GeminiModel
}

func (w *jobWorker) run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.jobs.Claim(ctx)
		if err != nil {
			if errors.Is(err, repo.ErrNoJobAvailable) {
				w.sleep(ctx, jobPollInterval)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("worker: failed to claim job")
			w.sleep(ctx, jobPollInterval)
			continue
		}

		w.handleJob(ctx, job)
	}
}

func (w *jobWorker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *jobWorker) handleJob(ctx context.Context, job *domain.GenerationJob) {
	w.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("worker: picked job")

	callsBefore := w.calls.Calls()
	status, stages, runErr := w.dispatch(ctx, job)
	if ctx.Err() != nil {
		// Shutdown mid-job: leave the row RUNNING for the operator to requeue.
		w.logger.Warn().Str("job_id", job.ID).Msg("worker: interrupted mid-job")
		return
	}

	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
		w.logger.Error().Err(runErr).Str("job_id", job.ID).Msg("worker: job failed")
	}
	var stagesJSON []byte
	if len(stages) > 0 {
		stagesJSON, _ = json.Marshal(stages)
	}
	if err := w.jobs.UpdateStatus(ctx, job.ID, status, errMsg, stagesJSON); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: update status failed")
	}
	w.recordAnalytics(ctx, job.Kind, status, int(w.calls.Calls()-callsBefore))
}

func (w *jobWorker) dispatch(ctx context.Context, job *domain.GenerationJob) (domain.JobStatus, []pipeline.StageOutcome, error) {
	principal, err := w.principalFor(ctx, job.UserID)
	if err != nil {
		return domain.JobStatusFailed, nil, err
	}
	filename, data, err := w.loadDocument(ctx, job.DocumentID)
	if err != nil {
		return domain.JobStatusFailed, nil, err
	}

	switch job.Kind {
	case domain.JobKindCourseOutline:
		if _, err := w.pipeline.GenerateOutline(ctx, principal, job.TargetID, filename, data); err != nil {
			return domain.JobStatusFailed, nil, err
		}
		return domain.JobStatusSucceeded, []pipeline.StageOutcome{{Stage: pipeline.StageOutline, OK: true}}, nil

	case domain.JobKindExercise:
		var reqJSON jsoncfg.RequestJSON
		if err := json.Unmarshal(job.RequestJSON, &reqJSON); err != nil {
			return domain.JobStatusFailed, nil, fmt.Errorf("decode request json: %w", err)
		}
		reqJSON.Normalize(principal.Locale)
		if err := reqJSON.Validate(); err != nil {
			return domain.JobStatusFailed, nil, err
		}
		result, err := w.pipeline.GenerateExercise(ctx, principal, job.TargetID, filename, data, reqJSON.ToDomain())
		if err != nil {
			return domain.JobStatusFailed, nil, err
		}
		if result.Partial {
			return domain.JobStatusPartial, result.Stages, nil
		}
		return domain.JobStatusSucceeded, result.Stages, nil

	default:
		return domain.JobStatusFailed, nil, fmt.Errorf("unsupported job kind %q", job.Kind)
	}
}

func (w *jobWorker) principalFor(ctx context.Context, userID string) (domain.Principal, error) {
	user, err := w.users.GetByID(ctx, userID)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("load job owner: %w", err)
	}
	return domain.Principal{UserID: user.ID, Plan: user.Plan, Locale: user.Locale}, nil
}

func (w *jobWorker) loadDocument(ctx context.Context, documentID string) (string, []byte, error) {
	doc, err := w.documents.GetByID(ctx, documentID)
	if err != nil {
		return "", nil, fmt.Errorf("load document: %w", err)
	}
	data, err := w.store.Read(ctx, doc.StorageKey)
	if err != nil {
		return "", nil, fmt.Errorf("read document bytes: %w", err)
	}
	return doc.Filename, data, nil
}

func (w *jobWorker) recordAnalytics(ctx context.Context, kind domain.JobKind, status domain.JobStatus, completionCalls int) {
	day := time.Now().UTC().Format("2006-01-02")
	if err := w.analytics.IncrementCounters(ctx, day, analyticsCounters(kind, status, completionCalls)); err != nil {
		w.logger.Warn().Err(err).Msg("worker: analytics update failed")
	}
}

// analyticsCounters maps one finished job onto the daily counter increments,
// including the number of provider round trips the job consumed.
func analyticsCounters(kind domain.JobKind, status domain.JobStatus, completionCalls int) map[string]int {
	counters := map[string]int{}
	switch status {
	case domain.JobStatusSucceeded, domain.JobStatusPartial:
		counters["generation_success"] = 1
		if kind == domain.JobKindCourseOutline {
			counters["courses_created"] = 1
		} else {
			counters["exercises_created"] = 1
		}
	default:
		counters["generation_failed"] = 1
	}
	if completionCalls > 0 {
		counters["completion_calls"] = completionCalls
	}
	return counters
}
