package data

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

// Split file names inside the output directory.
const (
	TrainDataFile = "trainData.csv"
	TestDataFile  = "testData.csv"
)

// SplitOptions configures TrainTestSplit.
type SplitOptions struct {
	TestFraction    float64
	Seed            int64
	StratifyByLabel bool
}

// DefaultSplitOptions is an 80/20 split with seed 1.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{TestFraction: 0.2, Seed: 1}
}

// TrainTestData holds both halves of a split.
type TrainTestData struct {
	TrainSet *DataView
	TestSet  *DataView
}

// TrainTestSplit assigns every row a seeded random key in [0,1), stored as
// StratificationColumn, and partitions rows on that key. Row order is kept
// within both sets.
func TrainTestSplit(view *DataView, opts SplitOptions) (TrainTestData, error) {
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		return TrainTestData{}, fmt.Errorf("test fraction must be in (0, 1), got %f", opts.TestFraction)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	keys := make([]float64, view.Len())
	for i := range keys {
		keys[i] = float64(float32(rng.Float64()))
	}

	keyed, err := view.WithScalar(Column{Name: StratificationColumn, Kind: Single, Index: 30}, keys)
	if err != nil {
		return TrainTestData{}, err
	}

	inTest := make([]bool, view.Len())
	if opts.StratifyByLabel {
		label, err := view.Scalar(LabelColumn)
		if err != nil {
			return TrainTestData{}, fmt.Errorf("stratify by label: %w", err)
		}
		stratify(inTest, label, keys, opts.TestFraction)
	} else {
		for i, k := range keys {
			inTest[i] = k < opts.TestFraction
		}
	}

	var trainRows, testRows []int
	for i, t := range inTest {
		if t {
			testRows = append(testRows, i)
		} else {
			trainRows = append(trainRows, i)
		}
	}

	return TrainTestData{
		TrainSet: keyed.Select(trainRows),
		TestSet:  keyed.Select(testRows),
	}, nil
}

// stratify marks the round(fraction*size) lowest-keyed rows of every label
// class as test rows.
func stratify(inTest []bool, label, keys []float64, fraction float64) {
	classes := make(map[float64][]int)
	for i, l := range label {
		classes[l] = append(classes[l], i)
	}
	for _, rows := range classes {
		sort.SliceStable(rows, func(a, b int) bool {
			return keys[rows[a]] < keys[rows[b]]
		})
		n := int(math.Round(fraction * float64(len(rows))))
		for _, r := range rows[:n] {
			inTest[r] = true
		}
	}
}

// SplitCache stores a split as two CSV files. The pair of files is the cache
// key: the split is reused only when both exist.
type SplitCache struct {
	TrainPath string
	TestPath  string
}

// NewSplitCache returns the cache located in dir.
func NewSplitCache(dir string) SplitCache {
	return SplitCache{
		TrainPath: filepath.Join(dir, TrainDataFile),
		TestPath:  filepath.Join(dir, TestDataFile),
	}
}

// Exists reports whether both split files are present.
func (c SplitCache) Exists() bool {
	return fileExists(c.TrainPath) && fileExists(c.TestPath)
}

// Load reads both split files with SplitColumns.
func (c SplitCache) Load() (TrainTestData, error) {
	loader := NewTextLoader(SplitColumns(), ',', true)
	train, err := loader.Load(c.TrainPath)
	if err != nil {
		return TrainTestData{}, err
	}
	test, err := loader.Load(c.TestPath)
	if err != nil {
		return TrainTestData{}, err
	}
	return TrainTestData{TrainSet: train, TestSet: test}, nil
}

// Save writes the test split and then the train split, with a header row.
func (c SplitCache) Save(split TrainTestData) error {
	if err := SaveFile(c.TestPath, split.TestSet, ',', true); err != nil {
		return err
	}
	if err := SaveFile(c.TrainPath, split.TrainSet, ',', true); err != nil {
		return err
	}
	log.Info().
		Str("train", c.TrainPath).
		Str("test", c.TestPath).
		Int("train_rows", split.TrainSet.Len()).
		Int("test_rows", split.TestSet.Len()).
		Msg("Saved train/test split")
	return nil
}

// LoadOrSplit reuses the cached split when both files exist; otherwise it
// calls load for the source view, splits it and saves the result. The
// returned bool reports whether the cache was used.
func (c SplitCache) LoadOrSplit(load func() (*DataView, error), opts SplitOptions) (TrainTestData, bool, error) {
	if c.Exists() {
		split, err := c.Load()
		return split, true, err
	}

	source, err := load()
	if err != nil {
		return TrainTestData{}, false, err
	}
	split, err := TrainTestSplit(source, opts)
	if err != nil {
		return TrainTestData{}, false, err
	}
	if err := c.Save(split); err != nil {
		return TrainTestData{}, false, err
	}
	return split, false, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
