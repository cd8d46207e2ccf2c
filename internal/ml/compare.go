package ml

import (
	"fmt"
	"math"

	"creditcard-fraud/internal/data"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSignificance is the p-value below which a comparison is significant.
const DefaultSignificance = 0.05

// ModelComparison is the champion/challenger evaluation of two models on the
// same rows.
type ModelComparison struct {
	Champion   BinaryClassificationMetrics `json:"champion"`
	Challenger BinaryClassificationMetrics `json:"challenger"`
	AUCDelta   float64                     `json:"auc_delta"`

	// Rows only one of the two models labels correctly.
	ChampionOnlyCorrect   int `json:"champion_only_correct"`
	ChallengerOnlyCorrect int `json:"challenger_only_correct"`

	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
	Winner      string  `json:"winner"`
}

// CompareModels scores view with both models and runs McNemar's test with
// continuity correction on their disagreements. A non-positive alpha
// selects DefaultSignificance.
func CompareModels(champion, challenger *TransformerChain, view *data.DataView, labelColumn string, alpha float64) (*ModelComparison, error) {
	if alpha <= 0 {
		alpha = DefaultSignificance
	}

	label, err := view.Scalar(labelColumn)
	if err != nil {
		return nil, err
	}

	cmp := &ModelComparison{Winner: "none"}
	var champ, chall []data.TransactionFraudPrediction
	for _, side := range []struct {
		model   *TransformerChain
		metrics *BinaryClassificationMetrics
		preds   *[]data.TransactionFraudPrediction
		name    string
	}{
		{champion, &cmp.Champion, &champ, "champion"},
		{challenger, &cmp.Challenger, &chall, "challenger"},
	} {
		if side.model == nil {
			return nil, fmt.Errorf("%s model is nil", side.name)
		}
		scored, err := side.model.Transform(view)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", side.name, err)
		}
		if *side.metrics, err = Evaluate(scored, labelColumn); err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", side.name, err)
		}
		if *side.preds, err = ReadPredictions(scored); err != nil {
			return nil, err
		}
	}

	for i, l := range label {
		actual := l != 0
		a, b := champ[i].PredictedLabel == actual, chall[i].PredictedLabel == actual
		switch {
		case a && !b:
			cmp.ChampionOnlyCorrect++
		case b && !a:
			cmp.ChallengerOnlyCorrect++
		}
	}

	cmp.AUCDelta = cmp.Challenger.AreaUnderRocCurve - cmp.Champion.AreaUnderRocCurve
	cmp.PValue = mcNemarPValue(cmp.ChampionOnlyCorrect, cmp.ChallengerOnlyCorrect)
	cmp.Significant = cmp.PValue < alpha
	if cmp.Significant {
		cmp.Winner = "champion"
		if cmp.ChallengerOnlyCorrect > cmp.ChampionOnlyCorrect {
			cmp.Winner = "challenger"
		}
	}

	log.Info().
		Float64("auc_delta", cmp.AUCDelta).
		Int("champion_only", cmp.ChampionOnlyCorrect).
		Int("challenger_only", cmp.ChallengerOnlyCorrect).
		Float64("p_value", cmp.PValue).
		Str("winner", cmp.Winner).
		Msg("Models compared")
	return cmp, nil
}

func mcNemarPValue(b, c int) float64 {
	if b+c == 0 {
		return 1
	}
	diff := math.Max(math.Abs(float64(b-c))-1, 0)
	chi2 := diff * diff / float64(b+c)
	return 1 - distuv.ChiSquared{K: 1}.CDF(chi2)
}
