package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"creditcard-fraud/internal/cfg"
	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/ml"
	"creditcard-fraud/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: registry [flags] <command>

commands:
  list                 list model versions, newest first
  activate <version>   make <version> the active model
  rollback             activate the version preceding the active one
  runs [days]          list training runs of the last [days] days (default 30)
  compare <a> <b>      score the test split with versions a (champion) and b (challenger)
`

func main() {
	var (
		registryPath = flag.String("registry", "", "Registry directory (overrides config)")
		datasetFile  = flag.String("dataset", "", "Labelled split file for compare (default: output test data)")
		alpha        = flag.Float64("alpha", ml.DefaultSignificance, "Significance level for compare")
		logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *registryPath != "" {
		config.RegistryPath = *registryPath
	}

	if err := os.MkdirAll(config.RegistryDir(), 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create registry directory")
	}
	store, err := storage.New(config.RegistryDir())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open registry")
	}
	defer store.Close()

	manager := ml.NewModelManager(store)

	switch cmd := flag.Arg(0); cmd {
	case "list":
		versions, err := manager.ListVersions()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list versions")
		}
		printVersions(versions)
	case "activate":
		if flag.NArg() < 2 {
			log.Fatal().Msg("activate needs a version")
		}
		if err := manager.ActivateVersion(flag.Arg(1)); err != nil {
			log.Fatal().Err(err).Msg("Failed to activate version")
		}
	case "rollback":
		previous, err := manager.Rollback()
		if err != nil {
			log.Fatal().Err(err).Msg("Rollback failed")
		}
		fmt.Printf("Active version: %s (%s)\n", previous.Version, previous.Path)
	case "runs":
		days := 30
		if flag.NArg() > 1 {
			d, err := strconv.Atoi(flag.Arg(1))
			if err != nil || d <= 0 {
				log.Fatal().Str("days", flag.Arg(1)).Msg("Invalid number of days")
			}
			days = d
		}
		end := time.Now()
		runs, err := store.GetRuns(end.AddDate(0, 0, -days), end)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list runs")
		}
		printRuns(runs)
	case "compare":
		if flag.NArg() < 3 {
			log.Fatal().Msg("compare needs two versions")
		}
		path := *datasetFile
		if path == "" {
			path = config.TestDataPath()
		}
		cmp, err := compareVersions(store, flag.Arg(1), flag.Arg(2), path, *alpha)
		if err != nil {
			log.Fatal().Err(err).Msg("Comparison failed")
		}
		printComparison(flag.Arg(1), flag.Arg(2), cmp)
	default:
		log.Error().Str("command", cmd).Msg("Unknown command")
		flag.Usage()
		os.Exit(2)
	}
}

func compareVersions(store *storage.Store, champion, challenger, datasetFile string, alpha float64) (*ml.ModelComparison, error) {
	var models [2]*ml.TransformerChain
	for i, version := range []string{champion, challenger} {
		v, err := store.GetModelVersion(version)
		if err != nil {
			return nil, err
		}
		if models[i], _, err = ml.LoadModel(v.Path); err != nil {
			return nil, fmt.Errorf("load %s: %w", version, err)
		}
	}
	view, err := data.NewTextLoader(data.SplitColumns(), ',', true).Load(datasetFile)
	if err != nil {
		return nil, err
	}
	return ml.CompareModels(models[0], models[1], view, data.LabelColumn, alpha)
}

func printComparison(champion, challenger string, cmp *ml.ModelComparison) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tROLE\tAUC\tACCURACY\tONLY CORRECT")
	fmt.Fprintf(w, "%s\tchampion\t%.4f\t%.4f\t%d\n", champion, cmp.Champion.AreaUnderRocCurve, cmp.Champion.Accuracy, cmp.ChampionOnlyCorrect)
	fmt.Fprintf(w, "%s\tchallenger\t%.4f\t%.4f\t%d\n", challenger, cmp.Challenger.AreaUnderRocCurve, cmp.Challenger.Accuracy, cmp.ChallengerOnlyCorrect)
	w.Flush()
	fmt.Printf("AUC delta: %+.4f | McNemar p-value: %.4f | Winner: %s\n", cmp.AUCDelta, cmp.PValue, cmp.Winner)
}

func printVersions(versions []storage.ModelVersion) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tACTIVE\tCREATED\tAUC\tACCURACY\tPATH")
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%s\n",
			v.Version, active, v.CreatedAt.Format(time.RFC3339), v.Metrics.AUCScore, v.Metrics.Accuracy, v.Path)
	}
	w.Flush()
}

func printRuns(runs []storage.TrainingRun) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tTRAIN\tTEST\tCACHED\tAUC\tVERSION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%.4f\t%s\n",
			r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond),
			r.TrainRows, r.TestRows, r.SplitCached, r.Metrics["auc"], r.Version)
	}
	w.Flush()
}
