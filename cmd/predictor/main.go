package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"creditcard-fraud/internal/cfg"
	"creditcard-fraud/internal/metrics"
	"creditcard-fraud/internal/ml"
	"creditcard-fraud/internal/predictor"
	"creditcard-fraud/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		modelFile   = flag.String("model", "", "Model archive path or gs:// URI (default: active registry version, then assets output)")
		datasetFile = flag.String("dataset", "", "Test dataset CSV (default: assets output testData.csv)")
		count       = flag.Int("n", 0, "Transactions to score per class (overrides config)")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	model := *modelFile
	if model == "" {
		model = activeModel(config)
	}
	testData := *datasetFile
	if testData == "" {
		testData = config.TestDataPath()
	}
	n := config.NumTransactions
	if *count > 0 {
		n = *count
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	p, err := predictor.New(model, testData, predictor.WithMetrics(metrics.NewWrapper(m)))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create predictor")
	}

	if _, err := p.RunMultiplePredictions(ctx, n); err != nil {
		log.Fatal().Err(err).Msg("Prediction failed")
	}

	if config.MetricsFile != "" {
		if err := m.WriteTextfile(config.MetricsFile); err != nil {
			log.Error().Err(err).Str("file", config.MetricsFile).Msg("Failed to write metrics")
		}
	}
}

// activeModel prefers the active registry version over the configured path.
func activeModel(config cfg.Settings) string {
	if config.ModelFile != "" {
		return config.ModelFile
	}
	if _, err := os.Stat(config.RegistryDir()); err != nil {
		return config.ModelPath()
	}

	store, err := storage.New(config.RegistryDir())
	if err != nil {
		log.Warn().Err(err).Msg("Registry unavailable, using default model path")
		return config.ModelPath()
	}
	defer store.Close()

	current, err := ml.NewModelManager(store).GetCurrentVersion()
	if err != nil || current == nil {
		return config.ModelPath()
	}
	log.Info().Str("version", current.Version).Str("path", current.Path).Msg("Using active model version")
	return current.Path
}
