// Package predictor loads a saved fraud model and scores sample
// transactions from the cached test split.
package predictor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"creditcard-fraud/internal/artifacts"
	"creditcard-fraud/internal/common"
	"creditcard-fraud/internal/console"
	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/ml"

	"github.com/rs/zerolog/log"
)

// Outcome pairs an observation with the model's prediction for it.
type Outcome struct {
	Observation data.TransactionObservation
	Prediction  data.TransactionFraudPrediction
}

// Report holds the scored fraud and non-fraud samples in file order.
type Report struct {
	Fraud    []Outcome
	NonFraud []Outcome
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithOutput sets where the console report is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Predictor) { p.out = w }
}

// WithMetrics reports prediction collectors to m.
func WithMetrics(m ml.MetricsInterface) Option {
	return func(p *Predictor) { p.metrics = m }
}

// Predictor scores transactions of a dataset with a saved model.
type Predictor struct {
	modelFile   string
	datasetFile string
	out         io.Writer
	metrics     ml.MetricsInterface
}

// New returns a predictor for the model archive and the test dataset.
// modelFile may be a local path or a gs:// URI.
func New(modelFile, datasetFile string, opts ...Option) (*Predictor, error) {
	if modelFile == "" {
		return nil, fmt.Errorf("model file is required: %w", common.ErrInvalidArgument)
	}
	if datasetFile == "" {
		return nil, fmt.Errorf("dataset file is required: %w", common.ErrInvalidArgument)
	}

	p := &Predictor{modelFile: modelFile, datasetFile: datasetFile, out: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunMultiplePredictions prints n fraud and n non-fraud transactions of the
// dataset, each followed by the model's prediction. Fewer are printed when
// the dataset does not hold n of a class.
func (p *Predictor) RunMultiplePredictions(ctx context.Context, n int) (*Report, error) {
	if n <= 0 {
		return nil, fmt.Errorf("number of transactions must be positive, got %d: %w", n, common.ErrInvalidArgument)
	}

	view, err := data.NewTextLoader(data.SplitColumns(), ',', true).Load(p.datasetFile)
	if err != nil {
		return nil, err
	}

	console.WriteSection(p.out, fmt.Sprintf("Inspect %d transactions observed as fraud and %d not observed as fraud, from the test datasource:", n, n))
	if err := console.InspectData(p.out, view, n); err != nil {
		return nil, err
	}

	console.WriteHeader(p.out, "Predictions from saved model:")

	modelPath, cleanup, err := p.resolveModel(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	engine, err := ml.LoadPredictionEngine(modelPath, p.metrics)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, label := range []bool{true, false} {
		if label {
			console.WriteSection(p.out, fmt.Sprintf("Test %d transactions, from the test datasource, that should be predicted as fraud (true):", n))
		} else {
			console.WriteSection(p.out, fmt.Sprintf("Test %d transactions, from the test datasource, that should NOT be predicted as fraud (false):", n))
		}

		outcomes, err := p.predictLabel(engine, view, label, n)
		if err != nil {
			return nil, err
		}
		if label {
			report.Fraud = outcomes
		} else {
			report.NonFraud = outcomes
		}
	}

	log.Info().
		Str("model", p.modelFile).
		Int("fraud", len(report.Fraud)).
		Int("non_fraud", len(report.NonFraud)).
		Msg("Predictions completed")
	return report, nil
}

func (p *Predictor) predictLabel(engine *ml.PredictionEngine, view *data.DataView, label bool, n int) ([]Outcome, error) {
	want := 0.0
	if label {
		want = 1
	}
	matching, err := view.Where(data.LabelColumn, func(v float64) bool { return v == want })
	if err != nil {
		return nil, err
	}
	obs, err := matching.Take(n).Observations()
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(obs))
	for _, o := range obs {
		prediction, err := engine.Predict(o)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(p.out, "--- Transaction ---")
		console.PrintObservation(p.out, o)
		console.PrintPrediction(p.out, prediction)
		fmt.Fprintln(p.out, "-------------------")
		outcomes = append(outcomes, Outcome{Observation: o, Prediction: prediction})
	}
	return outcomes, nil
}

// resolveModel returns a local path for the model, downloading gs:// URIs
// into a temporary directory removed by the returned cleanup.
func (p *Predictor) resolveModel(ctx context.Context) (string, func(), error) {
	if !artifacts.IsGCSURI(p.modelFile) {
		return p.modelFile, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "fraud-model-")
	if err != nil {
		return "", nil, fmt.Errorf("create model download directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	local := filepath.Join(dir, common.ModelFileName)
	if err := artifacts.FetchGCS(ctx, p.modelFile, local); err != nil {
		cleanup()
		return "", nil, err
	}
	return local, cleanup, nil
}
