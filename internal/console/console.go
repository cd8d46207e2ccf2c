// Package console renders headers, sample transactions, predictions and
// evaluation metrics as plain text.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/ml"
)

const ruleWidth = 60

// WriteHeader writes lines framed by '=' rules.
func WriteHeader(w io.Writer, lines ...string) {
	writeFramed(w, '=', lines)
}

// WriteSection writes lines framed by '-' rules.
func WriteSection(w io.Writer, lines ...string) {
	writeFramed(w, '-', lines)
}

func writeFramed(w io.Writer, ch rune, lines []string) {
	rule := strings.Repeat(string(ch), ruleWidth)
	fmt.Fprintf(w, "\n%s\n", rule)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w, rule)
}

// InspectData prints up to n fraud and n non-fraud rows of view, in row order.
func InspectData(w io.Writer, view *data.DataView, n int) error {
	obs, err := view.Observations()
	if err != nil {
		return fmt.Errorf("inspect data: %w", err)
	}

	for _, label := range []bool{true, false} {
		rows := data.TakeByLabel(obs, label, n)
		fmt.Fprintf(w, "Label=%t: %d of %d requested\n", label, len(rows), n)
		for _, o := range rows {
			PrintObservation(w, o)
		}
	}
	return nil
}

// PrintObservation writes one transaction on a single line.
func PrintObservation(w io.Writer, o data.TransactionObservation) {
	var b strings.Builder
	fmt.Fprintf(&b, "Label: %t", o.Label)
	for i, v := range o.V {
		fmt.Fprintf(&b, " | %s: %s", data.VName(i+1), formatFloat(v))
	}
	fmt.Fprintf(&b, " | Amount: %s", formatFloat(o.Amount))
	fmt.Fprintln(w, b.String())
}

// PrintPrediction writes the model output for one transaction.
func PrintPrediction(w io.Writer, p data.TransactionFraudPrediction) {
	fmt.Fprintf(w, "Predicted Label: %t | Probability: %s | Score: %s\n",
		p.PredictedLabel, formatFloat(p.Probability), formatFloat(p.Score))
}

// PrintMetrics writes the binary classification metrics of an evaluation.
func PrintMetrics(w io.Writer, name string, m ml.BinaryClassificationMetrics) {
	WriteHeader(w, fmt.Sprintf("Metrics for %s binary classification model", name))
	fmt.Fprintf(w, "Accuracy: %.4f\n", m.Accuracy)
	fmt.Fprintf(w, "Area Under ROC Curve: %.4f\n", m.AreaUnderRocCurve)
	fmt.Fprintf(w, "Area Under PR Curve: %.4f\n", m.AreaUnderPrecisionRecallCurve)
	fmt.Fprintf(w, "F1 Score: %.4f\n", m.F1Score)
	fmt.Fprintf(w, "Positive Precision: %.4f\n", m.PositivePrecision)
	fmt.Fprintf(w, "Positive Recall: %.4f\n", m.PositiveRecall)
	fmt.Fprintf(w, "Negative Precision: %.4f\n", m.NegativePrecision)
	fmt.Fprintf(w, "Negative Recall: %.4f\n", m.NegativeRecall)
	fmt.Fprintf(w, "Log Loss: %.4f\n", m.LogLoss)
	fmt.Fprintf(w, "Log Loss Reduction: %.4f\n", m.LogLossReduction)
	fmt.Fprintf(w, "Entropy: %.4f\n", m.Entropy)

	cm := m.ConfusionMatrix
	fmt.Fprintln(w, "Confusion Matrix:")
	fmt.Fprintf(w, "%16s %10s %10s\n", "", "Pred true", "Pred false")
	fmt.Fprintf(w, "%16s %10d %10d\n", "Actual true", cm.TruePositive, cm.FalseNegative)
	fmt.Fprintf(w, "%16s %10d %10d\n", "Actual false", cm.FalsePositive, cm.TrueNegative)
}

// PrintCrossValidation writes per-fold accuracy and AUC and their means.
func PrintCrossValidation(w io.Writer, r ml.CrossValidationResult) {
	WriteSection(w, fmt.Sprintf("Cross validation (%d folds)", len(r.Folds)))
	for i, f := range r.Folds {
		fmt.Fprintf(w, "Fold %d: Accuracy %.4f | AUC %.4f\n", i+1, f.Accuracy, f.AreaUnderRocCurve)
	}
	fmt.Fprintf(w, "Mean: Accuracy %.4f | AUC %.4f\n", r.MeanAccuracy(), r.MeanAUC())
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
