package ml

import (
	"fmt"
	"math"
	"sort"

	"creditcard-fraud/internal/data"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

const logLossEps = 1e-15

// ConfusionMatrix counts predictions against the true label.
type ConfusionMatrix struct {
	TruePositive  int `json:"true_positive"`
	FalsePositive int `json:"false_positive"`
	TrueNegative  int `json:"true_negative"`
	FalseNegative int `json:"false_negative"`
}

// Total returns the number of counted rows.
func (c ConfusionMatrix) Total() int {
	return c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative
}

// BinaryClassificationMetrics is the evaluation result of a binary classifier.
type BinaryClassificationMetrics struct {
	Accuracy                      float64         `json:"accuracy"`
	AreaUnderRocCurve             float64         `json:"auc"`
	AreaUnderPrecisionRecallCurve float64         `json:"auprc"`
	F1Score                       float64         `json:"f1_score"`
	PositivePrecision             float64         `json:"positive_precision"`
	PositiveRecall                float64         `json:"positive_recall"`
	NegativePrecision             float64         `json:"negative_precision"`
	NegativeRecall                float64         `json:"negative_recall"`
	LogLoss                       float64         `json:"log_loss"`
	LogLossReduction              float64         `json:"log_loss_reduction"`
	Entropy                       float64         `json:"entropy"`
	ConfusionMatrix               ConfusionMatrix `json:"confusion_matrix"`
}

// Evaluate scores a view that has already been transformed by a model, i.e.
// one carrying the Score, Probability and PredictedLabel columns.
func Evaluate(view *data.DataView, labelColumn string) (BinaryClassificationMetrics, error) {
	var m BinaryClassificationMetrics
	labels, err := view.Scalar(labelColumn)
	if err != nil {
		return m, fmt.Errorf("evaluate: %w", err)
	}
	scores, err := view.Scalar(ScoreColumn)
	if err != nil {
		return m, fmt.Errorf("evaluate: %w", err)
	}
	probs, err := view.Scalar(ProbabilityColumn)
	if err != nil {
		return m, fmt.Errorf("evaluate: %w", err)
	}
	predicted, err := view.Scalar(PredictedLabelColumn)
	if err != nil {
		return m, fmt.Errorf("evaluate: %w", err)
	}
	n := len(labels)
	if n == 0 {
		return m, fmt.Errorf("evaluate: empty data view")
	}

	classes := make([]bool, n)
	var cm ConfusionMatrix
	var logLoss float64
	for i, l := range labels {
		actual := l != 0
		classes[i] = actual
		switch {
		case actual && predicted[i] != 0:
			cm.TruePositive++
		case actual:
			cm.FalseNegative++
		case predicted[i] != 0:
			cm.FalsePositive++
		default:
			cm.TrueNegative++
		}

		p := math.Min(math.Max(probs[i], logLossEps), 1-logLossEps)
		if actual {
			logLoss -= math.Log2(p)
		} else {
			logLoss -= math.Log2(1 - p)
		}
	}

	m.ConfusionMatrix = cm
	m.Accuracy = float64(cm.TruePositive+cm.TrueNegative) / float64(n)
	m.PositivePrecision = ratio(cm.TruePositive, cm.TruePositive+cm.FalsePositive)
	m.PositiveRecall = ratio(cm.TruePositive, cm.TruePositive+cm.FalseNegative)
	m.NegativePrecision = ratio(cm.TrueNegative, cm.TrueNegative+cm.FalseNegative)
	m.NegativeRecall = ratio(cm.TrueNegative, cm.TrueNegative+cm.FalsePositive)
	if pr := m.PositivePrecision + m.PositiveRecall; pr > 0 {
		m.F1Score = 2 * m.PositivePrecision * m.PositiveRecall / pr
	}

	m.LogLoss = logLoss / float64(n)
	m.Entropy = binaryEntropy(float64(cm.TruePositive+cm.FalseNegative) / float64(n))
	if m.Entropy > 0 {
		m.LogLossReduction = (m.Entropy - m.LogLoss) / m.Entropy
	}

	positives := cm.TruePositive + cm.FalseNegative
	if positives == 0 || positives == n {
		log.Warn().
			Int("rows", n).
			Int("positives", positives).
			Msg("Only one class present, AUC and AUPRC are undefined")
		return m, nil
	}
	m.AreaUnderRocCurve = areaUnderROC(scores, classes)
	m.AreaUnderPrecisionRecallCurve = averagePrecision(scores, classes)
	return m, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func binaryEntropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p*math.Log2(p) - (1-p)*math.Log2(1-p)
}

func areaUnderROC(scores []float64, classes []bool) float64 {
	y := append([]float64(nil), scores...)
	c := append([]bool(nil), classes...)
	stat.SortWeightedLabeled(y, c, nil)
	tpr, fpr, _ := stat.ROC(nil, y, c, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// averagePrecision is the area under the precision/recall curve computed as
// the step-wise sum of precision weighted by recall increments. Tied scores
// are treated as one threshold.
func averagePrecision(scores []float64, classes []bool) float64 {
	order := make([]int, len(scores))
	positives := 0
	for i := range order {
		order[i] = i
		if classes[i] {
			positives++
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	var ap, prevRecall float64
	tp, seen := 0, 0
	for i := 0; i < len(order); {
		s := scores[order[i]]
		for i < len(order) && scores[order[i]] == s {
			if classes[order[i]] {
				tp++
			}
			seen++
			i++
		}
		recall := float64(tp) / float64(positives)
		ap += (recall - prevRecall) * float64(tp) / float64(seen)
		prevRecall = recall
	}
	return ap
}
