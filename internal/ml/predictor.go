package ml

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"creditcard-fraud/internal/data"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the prediction engine
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	PredictionLatencyObserve(float64)
	PredictionScoresObserve(float64)
	ModelAgeSet(float64)
}

// ErrInvalidFeatures is returned for feature vectors the model cannot score.
var ErrInvalidFeatures = errors.New("invalid features")

// PredictionEngine scores single transactions with a fitted model.
type PredictionEngine struct {
	model   *TransformerChain
	schema  data.Schema
	metrics MetricsInterface
}

// NewPredictionEngine wraps a fitted model. metrics may be nil.
func NewPredictionEngine(model *TransformerChain, schema data.Schema, metrics MetricsInterface) (*PredictionEngine, error) {
	if model == nil || len(model.Transformers) == 0 {
		return nil, fmt.Errorf("prediction engine needs a fitted model")
	}
	return &PredictionEngine{model: model, schema: schema, metrics: metrics}, nil
}

// LoadPredictionEngine loads the model archive at path.
func LoadPredictionEngine(path string, metrics MetricsInterface) (*PredictionEngine, error) {
	model, schema, err := LoadModel(path)
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(path); err == nil {
		if metrics != nil {
			metrics.ModelAgeSet(time.Since(info.ModTime()).Seconds())
		}
	} else {
		log.Warn().Err(err).Str("model_path", path).Msg("Failed to get model file info")
	}

	return NewPredictionEngine(model, schema, metrics)
}

// Schema returns the input schema the model was trained with.
func (e *PredictionEngine) Schema() data.Schema {
	return e.schema
}

// Predict scores one observation.
func (e *PredictionEngine) Predict(obs data.TransactionObservation) (data.TransactionFraudPrediction, error) {
	out, err := e.PredictBatch([]data.TransactionObservation{obs})
	if err != nil {
		return data.TransactionFraudPrediction{}, err
	}
	return out[0], nil
}

// PredictFeatures scores a raw vector of V1..V28 followed by Amount.
func (e *PredictionEngine) PredictFeatures(features []float64) (data.TransactionFraudPrediction, error) {
	if len(features) != data.NumAnonymizedFeatures+1 {
		e.failure()
		return data.TransactionFraudPrediction{}, fmt.Errorf("%w: expected %d values, got %d",
			ErrInvalidFeatures, data.NumAnonymizedFeatures+1, len(features))
	}
	var obs data.TransactionObservation
	for i := range obs.V {
		obs.V[i] = float32(features[i])
	}
	obs.Amount = float32(features[data.NumAnonymizedFeatures])
	return e.Predict(obs)
}

// PredictBatch scores observations in one pass through the model.
func (e *PredictionEngine) PredictBatch(obs []data.TransactionObservation) ([]data.TransactionFraudPrediction, error) {
	if e == nil {
		return nil, errors.New("prediction engine not initialised")
	}
	if len(obs) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		}
	}()

	// NaN is a missing value and follows the right branch like in training.
	for i, o := range obs {
		for j, v := range o.Features() {
			if math.IsInf(v, 0) {
				e.failure()
				return nil, fmt.Errorf("%w: observation %d, feature %d is %v", ErrInvalidFeatures, i, j, v)
			}
		}
	}

	scored, err := e.model.Transform(data.FromObservations(obs))
	if err != nil {
		e.failure()
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	out, err := ReadPredictions(scored)
	if err != nil {
		e.failure()
		return nil, err
	}

	if e.metrics != nil {
		for _, p := range out {
			e.metrics.PredictionsInc()
			e.metrics.PredictionScoresObserve(float64(p.Probability))
		}
	}
	return out, nil
}

func (e *PredictionEngine) failure() {
	if e != nil && e.metrics != nil {
		e.metrics.PredictionFailuresInc()
	}
}

// ReadPredictions extracts the model output columns of a scored view.
func ReadPredictions(view *data.DataView) ([]data.TransactionFraudPrediction, error) {
	score, err := view.Scalar(ScoreColumn)
	if err != nil {
		return nil, err
	}
	prob, err := view.Scalar(ProbabilityColumn)
	if err != nil {
		return nil, err
	}
	label, err := view.Scalar(PredictedLabelColumn)
	if err != nil {
		return nil, err
	}

	out := make([]data.TransactionFraudPrediction, view.Len())
	for i := range out {
		out[i] = data.TransactionFraudPrediction{
			PredictedLabel: label[i] != 0,
			Score:          float32(score[i]),
			Probability:    float32(prob[i]),
		}
	}
	return out, nil
}
