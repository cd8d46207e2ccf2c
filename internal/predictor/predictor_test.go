package predictor

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"creditcard-fraud/internal/common"
	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/dataset"
	"creditcard-fraud/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prepare trains a small model on a synthetic split and returns the model
// archive, the saved test split and the test observations in file order.
func prepare(t *testing.T) (string, string, []data.TransactionObservation) {
	t.Helper()
	var src bytes.Buffer
	require.NoError(t, dataset.GenerateSynthetic(&src, dataset.SyntheticOptions{Rows: 1200, FraudRate: 0.1, Seed: 4}))
	view, err := data.NewTextLoader(data.SourceColumns(), ',', true).LoadReader(&src)
	require.NoError(t, err)

	split, err := data.TrainTestSplit(view, data.DefaultSplitOptions())
	require.NoError(t, err)

	dir := t.TempDir()
	testPath := filepath.Join(dir, data.TestDataFile)
	require.NoError(t, data.SaveFile(testPath, split.TestSet, ',', true))

	opts := ml.DefaultFastTreeOptions()
	opts.NumTrees = 10
	model, err := ml.NewEstimatorChain(ml.Concatenate(data.FeaturesColumn, split.TrainSet.Schema().FeatureNames()...)).
		Append(ml.NormalizeMeanVariance(data.FeaturesColumn, "FeaturesNormalizedByMeanVar")).
		Append(ml.FastTree(opts)).
		Fit(split.TrainSet)
	require.NoError(t, err)

	modelPath := filepath.Join(dir, common.ModelFileName)
	require.NoError(t, ml.SaveModel(modelPath, model, data.SplitColumns()))

	saved, err := data.NewTextLoader(data.SplitColumns(), ',', true).Load(testPath)
	require.NoError(t, err)
	obs, err := saved.Observations()
	require.NoError(t, err)
	return modelPath, testPath, obs
}

func TestNew_InvalidArguments(t *testing.T) {
	_, err := New("", "testData.csv")
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	_, err = New("fastTree.zip", "")
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}

func TestRunMultiplePredictions(t *testing.T) {
	modelPath, testPath, obs := prepare(t)
	metrics := &ml.MockMetrics{}
	var out bytes.Buffer

	p, err := New(modelPath, testPath, WithOutput(&out), WithMetrics(metrics))
	require.NoError(t, err)

	report, err := p.RunMultiplePredictions(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, report.Fraud, 3)
	require.Len(t, report.NonFraud, 3)

	// the first rows of each class, in file order
	assert.Equal(t, data.TakeByLabel(obs, true, 3), outcomesObservations(report.Fraud))
	assert.Equal(t, data.TakeByLabel(obs, false, 3), outcomesObservations(report.NonFraud))

	correct := 0
	for _, o := range append(report.Fraud, report.NonFraud...) {
		if o.Prediction.PredictedLabel == o.Observation.Label {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 5)

	text := out.String()
	assert.Contains(t, text, "Predictions from saved model:")
	assert.Contains(t, text, "that should be predicted as fraud (true)")
	assert.Contains(t, text, "that should NOT be predicted as fraud (false)")
	assert.Equal(t, 6, strings.Count(text, "--- Transaction ---"))
	assert.Equal(t, 6, strings.Count(text, "Predicted Label:"))

	predictions, failures := metrics.Counts()
	assert.Equal(t, 6, predictions)
	assert.Zero(t, failures)
}

func TestRunMultiplePredictions_FewerThanRequested(t *testing.T) {
	modelPath, testPath, obs := prepare(t)
	frauds := len(data.TakeByLabel(obs, true, len(obs)))

	p, err := New(modelPath, testPath, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	report, err := p.RunMultiplePredictions(context.Background(), frauds+50)
	require.NoError(t, err)
	assert.Len(t, report.Fraud, frauds)
	assert.Len(t, report.NonFraud, frauds+50)
}

func TestRunMultiplePredictions_MissingValues(t *testing.T) {
	modelPath, testPath, _ := prepare(t)

	// blank V5 of the first fraud row
	body, err := os.ReadFile(testPath)
	require.NoError(t, err)
	lines := strings.Split(string(body), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "true,") {
			fields := strings.Split(line, ",")
			fields[5] = ""
			lines[i] = strings.Join(fields, ",")
			break
		}
	}
	require.NoError(t, os.WriteFile(testPath, []byte(strings.Join(lines, "\n")), 0o644))

	metrics := &ml.MockMetrics{}
	p, err := New(modelPath, testPath, WithOutput(&bytes.Buffer{}), WithMetrics(metrics))
	require.NoError(t, err)

	report, err := p.RunMultiplePredictions(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, report.Fraud, 2)
	assert.True(t, math.IsNaN(float64(report.Fraud[0].Observation.V[4])))
	assert.False(t, math.IsNaN(float64(report.Fraud[0].Prediction.Score)))

	predictions, failures := metrics.Counts()
	assert.Equal(t, 4, predictions)
	assert.Zero(t, failures)
}

func TestRunMultiplePredictions_Errors(t *testing.T) {
	modelPath, testPath, _ := prepare(t)

	p, err := New(modelPath, testPath, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	_, err = p.RunMultiplePredictions(context.Background(), 0)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	missingModel, err := New(filepath.Join(t.TempDir(), "missing.zip"), testPath, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	_, err = missingModel.RunMultiplePredictions(context.Background(), 2)
	assert.Error(t, err)

	missingData, err := New(modelPath, filepath.Join(t.TempDir(), "missing.csv"), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	_, err = missingData.RunMultiplePredictions(context.Background(), 2)
	assert.Error(t, err)
}

func outcomesObservations(outcomes []Outcome) []data.TransactionObservation {
	out := make([]data.TransactionObservation, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Observation
	}
	return out
}
