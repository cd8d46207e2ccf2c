package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"creditcard-fraud/internal/artifacts"
	"creditcard-fraud/internal/cfg"
	"creditcard-fraud/internal/common"
	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/dataset"
	"creditcard-fraud/internal/metrics"
	"creditcard-fraud/internal/storage"
	"creditcard-fraud/internal/trainer"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		assetsPath    = flag.String("assets", "", "Assets directory (overrides config)")
		datasetFile   = flag.String("dataset", "", "Source dataset CSV (overrides config)")
		logLevel      = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		numLeaves     = flag.Int("num-leaves", 0, "Maximum leaves per tree (overrides config)")
		numTrees      = flag.Int("num-trees", 0, "Number of boosted trees (overrides config)")
		minDocs       = flag.Int("min-docs", 0, "Minimum documents per leaf (overrides config)")
		learningRate  = flag.Float64("learning-rate", 0, "Boosting learning rate (overrides config)")
		cvFolds       = flag.Int("cv-folds", 0, "Cross validation folds (overrides config)")
		crossValidate = flag.Bool("cross-validate", false, "Run k-fold cross validation before the final fit")
		noRegistry    = flag.Bool("no-registry", false, "Do not record the run in the model registry")
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

	if *assetsPath != "" {
		config.AssetsPath = *assetsPath
	}
	if *datasetFile != "" {
		config.DatasetFile = *datasetFile
	}
	if *crossValidate {
		config.CrossValidate = true
	}

	params := trainer.Params{
		CVNumFolds:          firstPositive(*cvFolds, config.CVNumFolds),
		NumLeaves:           firstPositive(*numLeaves, config.NumLeaves),
		NumTrees:            firstPositive(*numTrees, config.NumTrees),
		MinDocumentsInLeafs: firstPositive(*minDocs, config.MinDocsInLeaf),
		LearningRate:        config.LearningRate,
	}
	if *learningRate > 0 {
		params.LearningRate = *learningRate
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	opts := []trainer.Option{
		trainer.WithHasHeader(config.DatasetHeader),
		trainer.WithSplitOptions(data.SplitOptions{
			TestFraction:    config.TestFraction,
			Seed:            config.Seed,
			StratifyByLabel: config.StratifyByLabel,
		}),
		trainer.WithDataset(dataset.Options{URL: config.DatasetURL, Timeout: config.DownloadTimeout}),
		trainer.WithMetrics(metrics.NewWrapper(m)),
		trainer.WithCrossValidation(config.CrossValidate),
	}

	if !*noRegistry {
		if err := os.MkdirAll(config.RegistryDir(), 0o755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create registry directory")
		}
		store, err := storage.New(config.RegistryDir())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open registry")
		}
		defer store.Close()
		opts = append(opts,
			trainer.WithRegistry(store),
			trainer.WithVersionArchive(artifacts.DirPublisher{Root: config.RegistryDir(), Prefix: common.VersionsDir}),
		)
	}

	if publisher := artifacts.NewGCSPublisher(config.GCSBucket, config.GCSPrefix); publisher != nil {
		opts = append(opts, trainer.WithPublisher(publisher))
	}

	builder, err := trainer.NewModelBuilder(config.AssetsPath, config.DatasetFile, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model builder")
	}

	log.Info().
		Str("assets", config.AssetsPath).
		Str("dataset", config.DatasetFile).
		Int("num_trees", params.NumTrees).
		Int("num_leaves", params.NumLeaves).
		Msg("Starting training")

	if err := builder.PreProcessData(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare data")
	}

	result, err := builder.TrainFastTreeAndSaveModels(ctx, params)
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}

	if config.MetricsFile != "" {
		if err := m.WriteTextfile(config.MetricsFile); err != nil {
			log.Error().Err(err).Str("file", config.MetricsFile).Msg("Failed to write metrics")
		}
	}

	log.Info().
		Str("model", result.ModelPath).
		Str("version", result.Version).
		Str("version_path", result.VersionPath).
		Str("published", result.PublishedTo).
		Msg("Done")
}

func firstPositive(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}
