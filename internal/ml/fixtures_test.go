package ml

import (
	"math/rand"
	"testing"

	"creditcard-fraud/internal/data"

	"github.com/stretchr/testify/require"
)

// syntheticObservations draws n transactions; fraud rows have V1 shifted up
// and V2 shifted down so the classes are easy to separate.
func syntheticObservations(n int, fraudRate float64, seed int64) []data.TransactionObservation {
	rng := rand.New(rand.NewSource(seed))
	out := make([]data.TransactionObservation, n)
	for i := range out {
		o := &out[i]
		o.Label = rng.Float64() < fraudRate
		for j := range o.V {
			o.V[j] = float32(rng.NormFloat64())
		}
		o.Amount = float32(rng.ExpFloat64() * 80)
		if o.Label {
			o.V[0] += 4
			o.V[1] -= 3
		}
	}
	return out
}

func featureNames() []string {
	names := make([]string, 0, data.NumAnonymizedFeatures+1)
	for i := 1; i <= data.NumAnonymizedFeatures; i++ {
		names = append(names, data.VName(i))
	}
	return append(names, data.AmountColumn)
}

func testPipeline(numTrees int) *EstimatorChain {
	opts := DefaultFastTreeOptions()
	opts.NumTrees = numTrees
	return NewEstimatorChain(Concatenate(data.FeaturesColumn, featureNames()...)).
		Append(NormalizeMeanVariance(data.FeaturesColumn, "FeaturesNormalizedByMeanVar")).
		Append(FastTree(opts))
}

func fitTestModel(t *testing.T, numTrees int) (*TransformerChain, *data.DataView) {
	t.Helper()
	train := data.FromObservations(syntheticObservations(600, 0.2, 1))
	test := data.FromObservations(syntheticObservations(300, 0.2, 2))
	model, err := testPipeline(numTrees).Fit(train)
	require.NoError(t, err)
	return model, test
}
