package console

import (
	"bytes"
	"strings"
	"testing"

	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observations() []data.TransactionObservation {
	obs := make([]data.TransactionObservation, 6)
	for i := range obs {
		obs[i].Label = i%3 == 0
		obs[i].V[0] = float32(i)
		obs[i].Amount = float32(i) * 10
	}
	return obs
}

func TestWriteHeaderAndSection(t *testing.T) {
	var buf bytes.Buffer
	WriteHeader(&buf, "Test Metrics:")
	WriteSection(&buf, "first", "second")

	out := buf.String()
	assert.Contains(t, out, strings.Repeat("=", ruleWidth)+"\nTest Metrics:\n")
	assert.Contains(t, out, "first\nsecond\n"+strings.Repeat("-", ruleWidth))
}

func TestInspectData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InspectData(&buf, data.FromObservations(observations()), 4))

	out := buf.String()
	assert.Contains(t, out, "Label=true: 2 of 4 requested")
	assert.Contains(t, out, "Label=false: 4 of 4 requested")
	assert.Equal(t, 6, strings.Count(out, "| Amount:"))

	// fraud rows come first, in file order
	first := strings.Index(out, "V1: 0 ")
	second := strings.Index(out, "V1: 3 ")
	nonFraud := strings.Index(out, "V1: 1 ")
	assert.True(t, first < second && second < nonFraud, out)
}

func TestPrintObservationAndPrediction(t *testing.T) {
	var buf bytes.Buffer
	obs := data.TransactionObservation{Label: true, Amount: 149.62}
	obs.V[27] = -0.5
	PrintObservation(&buf, obs)
	PrintPrediction(&buf, data.TransactionFraudPrediction{PredictedLabel: true, Score: 3.25, Probability: 0.5})

	out := buf.String()
	assert.Contains(t, out, "Label: true | V1: 0")
	assert.Contains(t, out, "V28: -0.5 | Amount: 149.62\n")
	assert.Contains(t, out, "Predicted Label: true | Probability: 0.5 | Score: 3.25\n")
}

func TestPrintMetrics(t *testing.T) {
	var buf bytes.Buffer
	PrintMetrics(&buf, "FastTree", ml.BinaryClassificationMetrics{
		Accuracy:          0.9991,
		AreaUnderRocCurve: 0.97,
		ConfusionMatrix:   ml.ConfusionMatrix{TruePositive: 80, FalseNegative: 20, TrueNegative: 900, FalsePositive: 1},
	})
	PrintCrossValidation(&buf, ml.CrossValidationResult{Folds: []ml.BinaryClassificationMetrics{
		{Accuracy: 0.9, AreaUnderRocCurve: 0.8},
		{Accuracy: 0.7, AreaUnderRocCurve: 0.6},
	}})

	out := buf.String()
	assert.Contains(t, out, "Metrics for FastTree binary classification model")
	assert.Contains(t, out, "Accuracy: 0.9991\n")
	assert.Contains(t, out, "Area Under ROC Curve: 0.9700\n")
	assert.Regexp(t, `Actual true\s+80\s+20`, out)
	assert.Regexp(t, `Actual false\s+1\s+900`, out)
	assert.Contains(t, out, "Fold 2: Accuracy 0.7000 | AUC 0.6000")
	assert.Contains(t, out, "Mean: Accuracy 0.8000 | AUC 0.7000")
}
