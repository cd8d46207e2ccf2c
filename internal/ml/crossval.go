package ml

import (
	"fmt"
	"math/rand"
	"sort"

	"creditcard-fraud/internal/data"

	"github.com/rs/zerolog/log"
)

// CrossValidationResult holds the test metrics of every fold.
type CrossValidationResult struct {
	Folds []BinaryClassificationMetrics
}

// MeanAccuracy averages accuracy over the folds.
func (r CrossValidationResult) MeanAccuracy() float64 {
	return r.mean(func(m BinaryClassificationMetrics) float64 { return m.Accuracy })
}

// MeanAUC averages the area under the ROC curve over the folds.
func (r CrossValidationResult) MeanAUC() float64 {
	return r.mean(func(m BinaryClassificationMetrics) float64 { return m.AreaUnderRocCurve })
}

func (r CrossValidationResult) mean(f func(BinaryClassificationMetrics) float64) float64 {
	if len(r.Folds) == 0 {
		return 0
	}
	var sum float64
	for _, m := range r.Folds {
		sum += f(m)
	}
	return sum / float64(len(r.Folds))
}

// KFold assigns n row indices to k folds after a seeded shuffle. Indices
// inside a fold are sorted so row order is kept.
func KFold(n, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)
	for i, idx := range rng.Perm(n) {
		folds[i%k] = append(folds[i%k], idx)
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// CrossValidate fits chain on k-1 folds and evaluates it on the remaining
// fold, for each of the k folds.
func CrossValidate(view *data.DataView, chain *EstimatorChain, folds int, seed int64, labelColumn string) (CrossValidationResult, error) {
	if folds < 2 {
		return CrossValidationResult{}, fmt.Errorf("cross validation needs at least 2 folds, got %d", folds)
	}
	if view.Len() < folds {
		return CrossValidationResult{}, fmt.Errorf("cross validation: %d rows cannot fill %d folds", view.Len(), folds)
	}

	assignment := KFold(view.Len(), folds, seed)
	var result CrossValidationResult
	for k, testRows := range assignment {
		var trainRows []int
		for j, rows := range assignment {
			if j != k {
				trainRows = append(trainRows, rows...)
			}
		}
		sort.Ints(trainRows)

		model, err := chain.Fit(view.Select(trainRows))
		if err != nil {
			return result, fmt.Errorf("fold %d: %w", k, err)
		}
		scored, err := model.Transform(view.Select(testRows))
		if err != nil {
			return result, fmt.Errorf("fold %d: %w", k, err)
		}
		metrics, err := Evaluate(scored, labelColumn)
		if err != nil {
			return result, fmt.Errorf("fold %d: %w", k, err)
		}

		log.Info().
			Int("fold", k).
			Int("train_rows", len(trainRows)).
			Int("test_rows", len(testRows)).
			Float64("accuracy", metrics.Accuracy).
			Float64("auc", metrics.AreaUnderRocCurve).
			Msg("Cross validation fold evaluated")
		result.Folds = append(result.Folds, metrics)
	}
	return result, nil
}
