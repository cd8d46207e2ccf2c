// Package metrics provides Prometheus metrics collection for the fraud
// detection trainer and predictor. Both commands run as batch jobs, so the
// collected values are written to a node_exporter textfile instead of being
// served over HTTP.
//
// The package includes metrics for data loading, the train/test split,
// training runs, evaluation results and predictions.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of a run.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Data metrics
	RowsLoaded *prometheus.CounterVec // Rows read from text files, by file role
	SplitRows  *prometheus.GaugeVec   // Rows in the train and test split

	// Training metrics
	TrainingRuns     prometheus.Counter   // Completed training runs
	TrainingDuration prometheus.Histogram // Duration of model fitting
	EvalAccuracy     prometheus.Gauge     // Test accuracy of the last trained model
	EvalAUC          prometheus.Gauge     // Test area under the ROC curve
	EvalF1           prometheus.Gauge     // Test F1 score
	EvalLogLoss      prometheus.Gauge     // Test log-loss

	// Prediction metrics
	Predictions        prometheus.Counter   // Total number of predictions made
	PredictionFailures prometheus.Counter   // Total number of prediction failures
	PredictionLatency  prometheus.Histogram // Prediction latency in seconds
	PredictionScores   prometheus.Histogram // Distribution of fraud probabilities
	ModelAge           prometheus.Gauge     // Age of the loaded model in seconds
}

// New creates metrics on a fresh registry, so repeated runs in one process
// never collide on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		RowsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_rows_loaded_total",
			Help: "Rows read from text data files",
		}, []string{"role"}),
		SplitRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fraud_split_rows",
			Help: "Rows in the train/test split",
		}, []string{"set"}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_training_runs_total",
			Help: "Total number of completed training runs",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraud_training_duration_seconds",
			Help:    "Duration of model fitting in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		EvalAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fraud_eval_accuracy",
			Help: "Test set accuracy of the last trained model",
		}),
		EvalAUC: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fraud_eval_auc",
			Help: "Test set area under the ROC curve of the last trained model",
		}),
		EvalF1: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fraud_eval_f1",
			Help: "Test set F1 score of the last trained model",
		}),
		EvalLogLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fraud_eval_log_loss",
			Help: "Test set log-loss of the last trained model",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_predictions_total",
			Help: "Total number of predictions made",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_prediction_failures_total",
			Help: "Total number of prediction failures",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraud_prediction_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraud_prediction_scores",
			Help:    "Distribution of predicted fraud probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fraud_model_age_seconds",
			Help: "Age of the loaded model archive in seconds",
		}),
	}
}

// ObserveSplit records the size of both halves of the split.
func (m *Metrics) ObserveSplit(trainRows, testRows int) {
	m.SplitRows.WithLabelValues("train").Set(float64(trainRows))
	m.SplitRows.WithLabelValues("test").Set(float64(testRows))
}

// ObserveEvaluation records the test metrics of a trained model.
func (m *Metrics) ObserveEvaluation(accuracy, auc, f1, logLoss float64) {
	m.EvalAccuracy.Set(accuracy)
	m.EvalAUC.Set(auc)
	m.EvalF1.Set(f1)
	m.EvalLogLoss.Set(logLoss)
}

// WriteTextfile writes every collected metric to path in the Prometheus text
// format, for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
