package ml

import (
	"testing"

	"creditcard-fraud/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareModels(t *testing.T) {
	champion, test := fitTestModel(t, 15)

	same, err := CompareModels(champion, champion, test, data.LabelColumn, 0)
	require.NoError(t, err)
	assert.Zero(t, same.AUCDelta)
	assert.Zero(t, same.ChampionOnlyCorrect+same.ChallengerOnlyCorrect)
	assert.Equal(t, 1.0, same.PValue)
	assert.False(t, same.Significant)
	assert.Equal(t, "none", same.Winner)

	// a challenger that only sees the amount cannot separate the classes
	opts := DefaultFastTreeOptions()
	opts.NumTrees = 15
	weak, err := NewEstimatorChain(Concatenate(data.FeaturesColumn, data.AmountColumn)).
		Append(FastTree(opts)).
		Fit(data.FromObservations(syntheticObservations(600, 0.2, 1)))
	require.NoError(t, err)

	cmp, err := CompareModels(champion, weak, test, data.LabelColumn, 0)
	require.NoError(t, err)
	assert.Less(t, cmp.AUCDelta, -0.2)
	assert.Greater(t, cmp.ChampionOnlyCorrect, cmp.ChallengerOnlyCorrect)
	assert.True(t, cmp.Significant)
	assert.Equal(t, "champion", cmp.Winner)

	_, err = CompareModels(nil, weak, test, data.LabelColumn, 0)
	assert.Error(t, err)
}

func TestMcNemarPValue(t *testing.T) {
	assert.Equal(t, 1.0, mcNemarPValue(0, 0))
	assert.InDelta(t, 1.0, mcNemarPValue(5, 6), 1e-9)
	assert.Less(t, mcNemarPValue(40, 5), 0.001)
	assert.InDelta(t, mcNemarPValue(40, 5), mcNemarPValue(5, 40), 1e-12)
}
