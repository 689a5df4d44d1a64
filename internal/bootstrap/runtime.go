// Package bootstrap assembles the generation runtime shared by the API and
// worker binaries from a loaded infra.Config.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mentorapi/internal/adapter/repo"
	"mentorapi/internal/domain"
	"mentorapi/internal/infra"
	"mentorapi/internal/providers/prompt"
	"mentorapi/internal/providers/video"
	"mentorapi/internal/videogen"
)

const (
	lockPrefix = "videogen:lock:"
	lockTTL    = 2 * time.Minute

	translatorTimeout = 20 * time.Second
)

// Runtime holds the wired generation components. Close releases the store
// and lock backends.
type Runtime struct {
	Store        domain.JobRepository
	Gateway      *video.Client
	Orchestrator *videogen.Orchestrator
	Service      *videogen.Service
	Sweeper      *videogen.Sweeper

	closers []func()
}

func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Runtime, error) {
	rt := &Runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	store, err := rt.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.Store = store

	locker, err := rt.openLocker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	gateway, err := video.NewClient(video.Options{
		APIKey:        cfg.VideoAPIKey,
		BaseURL:       cfg.VideoBaseURL,
		APIVersion:    cfg.VideoAPIVersion,
		DefaultModel:  cfg.VideoModel,
		SubmitTimeout: cfg.VideoSubmitTimeout,
		StatusTimeout: cfg.VideoStatusTimeout,
		Logger:        &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("video client: %w", err)
	}
	rt.Gateway = gateway

	orch, err := videogen.NewOrchestrator(videogen.OrchestratorOptions{
		Store:   store,
		Gateway: gateway,
		Locker:  locker,
		Poll:    videogen.PollPolicy{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		Logger:  &logger,
	})
	if err != nil {
		return nil, err
	}
	rt.Orchestrator = orch

	normalizer := prompt.NewNormalizer(prompt.NormalizerOptions{
		Translator: NewTranslator(cfg, logger),
		Logger:     &logger,
	})
	svc, err := videogen.NewService(videogen.ServiceOptions{
		Orchestrator: orch,
		Store:        store,
		Gateway:      gateway,
		Normalizer:   normalizer,
		Logger:       &logger,
	})
	if err != nil {
		return nil, err
	}
	rt.Service = svc

	sweeper, err := videogen.NewSweeper(videogen.SweeperOptions{
		Orchestrator: orch,
		Store:        store,
		Schedule:     cfg.SweepSchedule,
		StaleAfter:   cfg.SweepStaleAfter,
		BatchSize:    cfg.SweepBatchSize,
		Logger:       &logger,
	})
	if err != nil {
		return nil, err
	}
	rt.Sweeper = sweeper

	ok = true
	return rt, nil
}

// Close runs the registered cleanups in reverse order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.JobRepository, error) {
	switch cfg.StoreDriver {
	case infra.StoreDriverPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		store := repo.NewJobRepository(infra.NewSQLRunner(pool, logger))
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info().Str("driver", cfg.StoreDriver).Msg("bootstrap: job store ready")
		return store, nil
	case infra.StoreDriverSQLite:
		db, err := infra.NewSQLiteDB(cfg, logger)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			rt.closers = append(rt.closers, func() { _ = sqlDB.Close() })
		}
		store := repo.NewJobRepositoryGorm(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		logger.Info().Str("driver", cfg.StoreDriver).Str("path", cfg.SQLitePath).Msg("bootstrap: job store ready")
		return store, nil
	case infra.StoreDriverMemory:
		logger.Warn().Msg("bootstrap: using in-memory job store, jobs are lost on restart")
		return repo.NewMemoryJobRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func (rt *Runtime) openLocker(ctx context.Context, cfg *infra.Config, logger infra.Logger) (videogen.Locker, error) {
	if cfg.RedisAddr == "" {
		return infra.NewKeyedMutex(), nil
	}
	client, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = client.Close() })
	logger.Info().Str("addr", cfg.RedisAddr).Msg("bootstrap: using redis job locks")
	return infra.NewRedisLocker(client, lockPrefix, lockTTL), nil
}

// NewTranslator picks the prompt translator named by PROMPT_PROVIDER. It
// returns nil when the provider is disabled or has no credentials, in which
// case prompts are forwarded untranslated.
func NewTranslator(cfg *infra.Config, logger infra.Logger) prompt.Translator {
	httpClient := &http.Client{Timeout: translatorTimeout}
	switch cfg.PromptProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			break
		}
		t, err := prompt.NewOpenAITranslator(prompt.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			HTTPClient:   httpClient,
			OnWarning: func(reason, detail string) {
				logger.Warn().Str("reason", reason).Str("detail", detail).Msg("prompt: openai configuration adjusted")
			},
		})
		if err != nil {
			logger.Warn().Err(err).Msg("bootstrap: openai translator disabled")
			break
		}
		logger.Info().Str("provider", t.Name()).Str("model", t.Model()).Msg("bootstrap: prompt translator ready")
		return t
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			break
		}
		t, err := prompt.NewGeminiTranslator(prompt.GeminiOptions{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: httpClient,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("bootstrap: gemini translator disabled")
			break
		}
		return t
	case "none", "":
		return nil
	default:
		logger.Warn().Str("provider", cfg.PromptProvider).Msg("bootstrap: unknown prompt provider")
		return nil
	}
	logger.Warn().Str("provider", cfg.PromptProvider).Msg("bootstrap: prompt translator has no api key, prompts pass through untranslated")
	return nil
}
