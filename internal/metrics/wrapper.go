package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the prediction engine's MetricsInterface
// and to the trainer's TrainingMetrics.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.Predictions.Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(v float64) {
	w.m.PredictionLatency.Observe(v)
}

func (w *MetricsWrapper) PredictionScoresObserve(v float64) {
	w.m.PredictionScores.Observe(v)
}

func (w *MetricsWrapper) ModelAgeSet(v float64) {
	w.m.ModelAge.Set(v)
}

// RowsLoaded returns the loaded-rows counter for a file role such as
// "source", "train" or "test".
func (w *MetricsWrapper) RowsLoaded(role string) MetricsCounter {
	return &CounterWrapper{w.m.RowsLoaded.WithLabelValues(role)}
}

func (w *MetricsWrapper) TrainingRuns() MetricsCounter {
	return &CounterWrapper{w.m.TrainingRuns}
}

func (w *MetricsWrapper) TrainingDuration() MetricsHistogram {
	return &HistogramWrapper{w.m.TrainingDuration}
}

func (w *MetricsWrapper) ObserveSplit(trainRows, testRows int) {
	w.m.ObserveSplit(trainRows, testRows)
}

func (w *MetricsWrapper) ObserveEvaluation(accuracy, auc, f1, logLoss float64) {
	w.m.ObserveEvaluation(accuracy, auc, f1, logLoss)
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

func (cw *CounterWrapper) Add(v float64) {
	cw.c.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
