package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wearevision/wav-btl-ingest/internal/config"
	"github.com/wearevision/wav-btl-ingest/internal/media"
	"github.com/wearevision/wav-btl-ingest/internal/pipeline"
	"github.com/wearevision/wav-btl-ingest/internal/store"
	"github.com/wearevision/wav-btl-ingest/internal/textgen"
	"github.com/wearevision/wav-btl-ingest/internal/vision"
	"github.com/wearevision/wav-btl-ingest/internal/wav"
	"github.com/wearevision/wav-btl-ingest/internal/worker"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	baseDir := flag.String("dir", "", "directory containing one subdirectory per event (required)")
	purge := flag.Bool("purge", false, "delete all stored events before ingesting")
	dryRun := flag.Bool("dry-run", false, "build payloads but skip media upload and submission")
	flag.Parse()

	if *baseDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -dir <events-dir> [-purge] [-dry-run]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Environment:\n")
		fmt.Fprintf(os.Stderr, "  SUPABASE_URL, SUPABASE_SERVICE_ROLE - storage endpoint (required)\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY                      - vision + gemini text provider\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY                      - openai text provider\n")
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is not set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	journal, err := store.OpenJournal(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open run journal")
	}
	defer journal.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("run journal initialized")

	client := store.NewClient(store.ClientOpts{
		BaseURL:  cfg.SupabaseURL,
		Key:      cfg.SupabaseKey,
		Table:    cfg.Table,
		Bucket:   cfg.Bucket,
		Retries:  cfg.MaxRetries,
		WaitTime: cfg.RetryBackoff,
		Timeout:  cfg.CallTimeout,
	})

	if *purge {
		log.Info().Str("table", cfg.Table).Msg("purging events table")
		if err := client.DeleteAll(ctx); err != nil {
			log.Fatal().Err(err).Msg("purge failed")
		}
	}

	gemini, err := vision.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.MaxRetries, cfg.RetryBackoff, cfg.CallTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize vision classifier")
	}
	classifier := vision.NewCachedClassifier(gemini, journal)

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize text providers")
	}
	generator := textgen.NewGenerator(providers, cfg.ConfidenceThreshold, cfg.CallTimeout)

	orch := pipeline.NewOrchestrator(classifier, generator, client, client, journal)

	eventDirs, err := listEventDirs(*baseDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list event directories")
	}
	if len(eventDirs) == 0 {
		log.Warn().Str("dir", *baseDir).Msg("no event directories found")
		return
	}
	log.Info().Int("events", len(eventDirs)).Int("concurrency", cfg.Concurrency).Msg("starting ingest")

	pool := worker.NewPool(ctx, cfg.Concurrency)
	for _, dir := range eventDirs {
		dir := dir
		name := filepath.Base(dir)
		pool.Go(name, func(ctx context.Context) error {
			assets, err := media.ScanDir(dir)
			if err != nil {
				return err
			}
			if assets.Empty() {
				log.Warn().Str("event", name).Msg("no usable media, skipping")
				return nil
			}
			result, err := orch.Run(ctx, pipeline.RunInput{
				SlugHint: wav.Slugify(name),
				Facts:    wav.BaseFacts{TitleHint: name},
				Assets:   assets,
				DryRun:   *dryRun,
			})
			if err != nil {
				return err
			}
			log.Info().Str("event", name).Str("slug", result.Event.Slug).
				Bool("needsReview", result.Event.NeedsReview).Msg("event ingested")
			return nil
		})
	}

	failed := 0
	for _, r := range pool.Wait() {
		if r.Err != nil {
			failed++
			log.Error().Err(r.Err).Str("event", r.Name).Str("errorKind", wav.ErrorKind(r.Err)).Msg("event failed")
		}
	}
	if failed > 0 {
		log.Error().Int("failed", failed).Int("total", len(eventDirs)).Msg("ingest finished with failures")
		os.Exit(1)
	}
	log.Info().Int("total", len(eventDirs)).Msg("ingest complete")
}

func buildProviders(ctx context.Context, cfg *config.Config) ([]textgen.Provider, error) {
	var providers []textgen.Provider
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "openai":
			providers = append(providers, textgen.NewOpenAIProvider(cfg.OpenAIAPIKey))
		case "gemini":
			p, err := textgen.NewGeminiProvider(ctx, cfg.GeminiAPIKey)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown text provider: %s", name)
		}
	}
	return providers, nil
}

func listEventDirs(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(baseDir, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
