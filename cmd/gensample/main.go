package main

import (
	"flag"
	"os"

	"creditcard-fraud/internal/dataset"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		output    = flag.String("output", "assets/input/creditcard.csv", "Output CSV path")
		rows      = flag.Int("rows", 20000, "Number of transactions")
		fraudRate = flag.Float64("fraud-rate", 0.01, "Share of fraudulent transactions")
		seed      = flag.Int64("seed", 1, "Random seed")
		logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	opts := dataset.SyntheticOptions{Rows: *rows, FraudRate: *fraudRate, Seed: *seed}
	if err := dataset.WriteSyntheticFile(*output, opts); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate dataset")
	}

	log.Info().
		Str("file", *output).
		Int("rows", *rows).
		Float64("fraud_rate", *fraudRate).
		Msg("Synthetic dataset written")
}
