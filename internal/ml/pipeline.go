// Package ml trains, evaluates and serves the FastTree fraud classifier.
// Estimators fit Transformers on a data view; chains of them form the
// pipeline that is saved to and loaded from a model archive.
package ml

import (
	"fmt"

	"creditcard-fraud/internal/data"
)

// Transformer maps a data view to a new view with extra or replaced columns.
type Transformer interface {
	Transform(view *data.DataView) (*data.DataView, error)
}

// Estimator learns a Transformer from training data.
type Estimator interface {
	Fit(view *data.DataView) (Transformer, error)
}

// EstimatorChain is a linear pipeline of estimators. Each estimator is fitted
// on the output of the transformers fitted before it.
type EstimatorChain struct {
	estimators []Estimator
}

// NewEstimatorChain starts a chain with the given estimators.
func NewEstimatorChain(estimators ...Estimator) *EstimatorChain {
	return &EstimatorChain{estimators: append([]Estimator(nil), estimators...)}
}

// Append returns a new chain with e added at the end.
func (c *EstimatorChain) Append(e Estimator) *EstimatorChain {
	next := make([]Estimator, 0, len(c.estimators)+1)
	next = append(next, c.estimators...)
	return &EstimatorChain{estimators: append(next, e)}
}

// Fit fits every estimator in order and returns the fitted chain.
func (c *EstimatorChain) Fit(view *data.DataView) (*TransformerChain, error) {
	if len(c.estimators) == 0 {
		return nil, fmt.Errorf("empty estimator chain")
	}

	model := &TransformerChain{}
	current := view
	for i, e := range c.estimators {
		t, err := e.Fit(current)
		if err != nil {
			return nil, fmt.Errorf("fit step %d: %w", i, err)
		}
		model.Transformers = append(model.Transformers, t)
		if i == len(c.estimators)-1 {
			break
		}
		if current, err = t.Transform(current); err != nil {
			return nil, fmt.Errorf("transform step %d: %w", i, err)
		}
	}
	return model, nil
}

// TransformerChain is a fitted pipeline, i.e. the trained model.
type TransformerChain struct {
	Transformers []Transformer
}

// Transform applies every transformer in order.
func (t *TransformerChain) Transform(view *data.DataView) (*data.DataView, error) {
	var err error
	for i, tr := range t.Transformers {
		if view, err = tr.Transform(view); err != nil {
			return nil, fmt.Errorf("transform step %d: %w", i, err)
		}
	}
	return view, nil
}

// LastTransformer returns the final step, usually the predictor.
func (t *TransformerChain) LastTransformer() Transformer {
	if len(t.Transformers) == 0 {
		return nil
	}
	return t.Transformers[len(t.Transformers)-1]
}
