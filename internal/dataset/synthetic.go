package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"creditcard-fraud/internal/data"
)

// SyntheticOptions shapes a generated dataset.
type SyntheticOptions struct {
	Rows      int
	FraudRate float64
	Seed      int64
}

// GenerateSynthetic writes transactions in the layout of the public credit
// card dataset: Time, V1..V28, Amount, Class. Fraud rows are shifted on V1,
// V2, V4 and V14 so that a model can separate them.
func GenerateSynthetic(w io.Writer, opts SyntheticOptions) error {
	if opts.Rows <= 0 {
		return fmt.Errorf("rows must be positive, got %d", opts.Rows)
	}
	if opts.FraudRate < 0 || opts.FraudRate > 1 {
		return fmt.Errorf("fraud rate must be in [0, 1], got %f", opts.FraudRate)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	cw := csv.NewWriter(w)

	header := make([]string, 0, data.NumAnonymizedFeatures+3)
	header = append(header, "Time")
	for i := 1; i <= data.NumAnonymizedFeatures; i++ {
		header = append(header, data.VName(i))
	}
	header = append(header, data.AmountColumn, "Class")
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	elapsed := 0.0
	for r := 0; r < opts.Rows; r++ {
		fraud := rng.Float64() < opts.FraudRate
		elapsed += math.Floor(rng.ExpFloat64() * 3)

		record[0] = strconv.FormatFloat(elapsed, 'f', -1, 64)
		for i := 1; i <= data.NumAnonymizedFeatures; i++ {
			v := rng.NormFloat64()
			if fraud {
				v += fraudShift(i)
			}
			record[i] = formatSingle(v)
		}

		amount := rng.ExpFloat64() * 88
		if fraud {
			amount = rng.ExpFloat64() * 120
		}
		record[data.NumAnonymizedFeatures+1] = strconv.FormatFloat(math.Round(amount*100)/100, 'f', 2, 64)
		record[data.NumAnonymizedFeatures+2] = "0"
		if fraud {
			record[data.NumAnonymizedFeatures+2] = "1"
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSyntheticFile generates a dataset into path, creating its directory.
func WriteSyntheticFile(path string, opts SyntheticOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	if err := GenerateSynthetic(f, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fraudShift(feature int) float64 {
	switch feature {
	case 1:
		return -3
	case 2:
		return 2.5
	case 4:
		return 3
	case 14:
		return -4
	default:
		return 0
	}
}

func formatSingle(v float64) string {
	return strconv.FormatFloat(float64(float32(v)), 'g', -1, 32)
}
