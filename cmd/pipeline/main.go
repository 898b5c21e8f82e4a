// Package main provides the CLI entry point for the paper evaluation
// pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/reasoninghub/paper-eval-service/internal/config"
	"github.com/reasoninghub/paper-eval-service/internal/database"
	"github.com/reasoninghub/paper-eval-service/internal/llm"
	"github.com/reasoninghub/paper-eval-service/internal/observability"
	"github.com/reasoninghub/paper-eval-service/internal/pipeline"
	"github.com/reasoninghub/paper-eval-service/internal/repository"
	"github.com/reasoninghub/paper-eval-service/internal/scoring"
)

// pipelineLockKey is the advisory lock shared by every pipeline instance.
// Holding it keeps two concurrent runs from double-processing papers.
const pipelineLockKey int64 = 0x70617065

const (
	stageAll       = "all"
	stageSummarize = "summarize"
	stageScore     = "score"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	stage := flag.String("stage", stageAll, "Pipeline stage to run: all, summarize, or score")
	force := flag.Bool("force", false, "Reprocess papers that already carry stage output")
	limit := flag.Int("limit", 0, "Maximum papers per stage (0 uses the configured batch size)")
	flag.Parse()

	switch *stage {
	case stageAll, stageSummarize, stageScore:
	default:
		return fmt.Errorf("invalid stage %q: use all, summarize, or score", *stage)
	}

	// Positional arguments are specific paper IDs to process.
	ids, err := parseIDs(flag.Args())
	if err != nil {
		return err
	}

	// Load .env for local development; secrets come from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "pipeline").Logger()
	logger.Info().Str("stage", *stage).Bool("force", *force).Msg("paper evaluation pipeline starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics are always recorded; the registry is kept private when the
	// metrics endpoint is disabled.
	var registerer prometheus.Registerer = prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registerer = prometheus.DefaultRegisterer
	}
	metrics := observability.NewMetrics(cfg.Metrics.Namespace, registerer)

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	acquired, err := db.AcquireAdvisoryLock(ctx, pipelineLockKey)
	if err != nil {
		return fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another pipeline run is already in progress")
	}
	defer func() {
		if err := db.ReleaseAdvisoryLock(context.Background(), pipelineLockKey); err != nil {
			logger.Error().Err(err).Msg("failed to release pipeline lock")
		}
	}()

	store := repository.NewPgPaperStore(db)

	gateway, err := buildGateway(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	orchestrator, err := buildOrchestrator(cfg, store, gateway, logger, metrics)
	if err != nil {
		return err
	}

	opts := pipeline.BatchOptions{IDs: ids, Force: *force}

	if *stage == stageAll || *stage == stageSummarize {
		opts.Limit = batchLimit(*limit, *force, cfg.Pipeline.SummaryBatchSize, cfg.Pipeline.RefreshBatchSize)
		report, err := orchestrator.Summarize(ctx, opts)
		if err != nil {
			return fmt.Errorf("summarize stage: %w", err)
		}
		fmt.Printf("summarize: %d selected, %d summarized, %d skipped, %d failed\n",
			report.Selected, report.Summarized, report.Skipped, report.Failed)
	}

	if *stage == stageAll || *stage == stageScore {
		opts.Limit = batchLimit(*limit, *force, cfg.Pipeline.ScoreBatchSize, cfg.Pipeline.RefreshBatchSize)
		report, err := orchestrator.Score(ctx, opts)
		if err != nil {
			return fmt.Errorf("score stage: %w", err)
		}
		fmt.Printf("score: %d selected, %d scored, %d rescaled, %d failed\n",
			report.Selected, report.Scored, report.Rescaled, report.Failed)
	}

	return nil
}

// buildGateway creates the provider client and wraps it in the model gateway.
// A missing provider or credential is not fatal: the gateway runs in degraded
// mode, where triage falls back to accepting every paper.
func buildGateway(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*llm.Gateway, error) {
	client, err := llm.NewClient(ctx, llm.FactoryConfig{
		Provider: cfg.LLM.Provider,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
		Gemini: llm.GeminiConfig{
			APIKey: cfg.LLM.Gemini.APIKey,
			Model:  cfg.LLM.Gemini.Model,
		},
		Ollama: llm.OllamaConfig{
			Endpoint: cfg.LLM.Ollama.Endpoint,
			Model:    cfg.LLM.Ollama.Model,
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("no model provider available, running in degraded mode")
		client = nil
	} else {
		logger.Info().
			Str("provider", client.Provider()).
			Str("model", client.Model()).
			Msg("model provider ready")
	}

	return llm.NewGateway(client, llm.GatewayConfig{
		Retry: llm.RetryPolicy{
			Multiplier:  cfg.LLM.Retry.Multiplier,
			MinWait:     cfg.LLM.Retry.MinWait,
			MaxWait:     cfg.LLM.Retry.MaxWait,
			MaxAttempts: cfg.LLM.Retry.MaxAttempts,
		},
		Full: llm.CallOptions{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		Triage: llm.CallOptions{
			Temperature: cfg.LLM.TriageTemperature,
			MaxTokens:   cfg.LLM.TriageMaxTokens,
		},
		CallTimeout:    cfg.LLM.Timeout,
		RateLimitRPS:   cfg.LLM.RateLimitRPS,
		RateLimitBurst: cfg.LLM.RateLimitBurst,
	}, logger, metrics), nil
}

// buildOrchestrator assembles the rubric, tier table and rescaler from
// configuration and wires them into the batch orchestrator.
func buildOrchestrator(
	cfg *config.Config,
	store repository.PaperStore,
	gateway *llm.Gateway,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) (*pipeline.Orchestrator, error) {
	dimensions := make([]scoring.Dimension, 0, len(cfg.Scoring.Dimensions))
	for _, d := range cfg.Scoring.Dimensions {
		dimensions = append(dimensions, scoring.Dimension{Name: d.Name, Min: d.Min, Max: d.Max})
	}
	rubric, err := scoring.NewRubric(dimensions, cfg.Scoring.MinReasoningLength)
	if err != nil {
		return nil, fmt.Errorf("build rubric: %w", err)
	}

	bands := make([]scoring.TierBand, 0, len(cfg.Scoring.Tiers))
	for _, t := range cfg.Scoring.Tiers {
		bands = append(bands, scoring.TierBand{Tier: t.Tier, MinScore: t.MinScore})
	}
	tiers, err := scoring.NewTierTable(bands)
	if err != nil {
		return nil, fmt.Errorf("build tier table: %w", err)
	}

	rescaler, err := scoring.NewRescaler(
		cfg.Scoring.Rescale.Enabled,
		scoring.RescaleMode(strings.ToLower(cfg.Scoring.Rescale.Mode)),
		cfg.Scoring.Rescale.TargetMean,
		cfg.Scoring.Rescale.TargetStd,
		rubric,
	)
	if err != nil {
		return nil, fmt.Errorf("build rescaler: %w", err)
	}

	return pipeline.NewOrchestrator(
		store,
		gateway,
		rubric,
		tiers,
		rescaler,
		cfg.Scoring.SummaryTruncateLength,
		logger,
		metrics,
	), nil
}

// parseIDs converts positional arguments into paper IDs.
func parseIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid paper ID %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// batchLimit resolves the effective selection limit for one stage. Explicit
// IDs bypass the limit entirely, an explicit flag wins otherwise, and forced
// runs default to the larger refresh batch size.
func batchLimit(flagLimit int, force bool, stageDefault, refreshDefault int) int {
	if flagLimit > 0 {
		return flagLimit
	}
	if force {
		return refreshDefault
	}
	return stageDefault
}
