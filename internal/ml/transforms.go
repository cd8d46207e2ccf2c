package ml

import (
	"fmt"
	"math"

	"creditcard-fraud/internal/data"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ColumnConcatenatingTransformer stacks scalar columns into one vector column.
type ColumnConcatenatingTransformer struct {
	OutputColumn string   `json:"output_column"`
	InputColumns []string `json:"input_columns"`
}

type columnConcatenatingEstimator struct {
	t *ColumnConcatenatingTransformer
}

// Concatenate returns an estimator that builds the output vector column from
// the input scalar columns, in the given order.
func Concatenate(output string, inputs ...string) Estimator {
	return columnConcatenatingEstimator{t: &ColumnConcatenatingTransformer{
		OutputColumn: output,
		InputColumns: append([]string(nil), inputs...),
	}}
}

func (e columnConcatenatingEstimator) Fit(view *data.DataView) (Transformer, error) {
	if len(e.t.InputColumns) == 0 {
		return nil, fmt.Errorf("concatenate %s: no input columns", e.t.OutputColumn)
	}
	for _, name := range e.t.InputColumns {
		if _, err := view.Scalar(name); err != nil {
			return nil, fmt.Errorf("concatenate %s: %w", e.t.OutputColumn, err)
		}
	}
	return e.t, nil
}

// Transform implements Transformer.
func (t *ColumnConcatenatingTransformer) Transform(view *data.DataView) (*data.DataView, error) {
	if view.Len() == 0 {
		return nil, fmt.Errorf("concatenate %s: empty data view", t.OutputColumn)
	}
	m := mat.NewDense(view.Len(), len(t.InputColumns), nil)
	for j, name := range t.InputColumns {
		col, err := view.Scalar(name)
		if err != nil {
			return nil, fmt.Errorf("concatenate %s: %w", t.OutputColumn, err)
		}
		m.SetCol(j, col)
	}
	return view.WithVector(t.OutputColumn, m)
}

// NormalizingTransformer applies (x - Mean[j]) * Scale[j] to every slot of a
// vector column. Scale is 1/stddev, or 0 for constant slots.
type NormalizingTransformer struct {
	InputColumn  string    `json:"input_column"`
	OutputColumn string    `json:"output_column"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

type normalizingEstimator struct {
	input, output string
}

// NormalizeMeanVariance returns an estimator for per-slot mean/variance
// normalization of a vector column.
func NormalizeMeanVariance(input, output string) Estimator {
	return normalizingEstimator{input: input, output: output}
}

func (e normalizingEstimator) Fit(view *data.DataView) (Transformer, error) {
	m, err := view.Vector(e.input)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", e.input, err)
	}
	rows, cols := m.Dims()
	t := &NormalizingTransformer{
		InputColumn:  e.input,
		OutputColumn: e.output,
		Mean:         make([]float64, cols),
		Scale:        make([]float64, cols),
	}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		finite := col[:0]
		for i := 0; i < rows; i++ {
			if v := m.At(i, j); !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite = append(finite, v)
			}
		}
		if len(finite) < 2 {
			continue
		}
		mean, variance := stat.MeanVariance(finite, nil)
		t.Mean[j] = mean
		if variance > 0 {
			t.Scale[j] = 1 / math.Sqrt(variance)
		}
	}
	return t, nil
}

// Transform implements Transformer.
func (t *NormalizingTransformer) Transform(view *data.DataView) (*data.DataView, error) {
	m, err := view.Vector(t.InputColumn)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", t.InputColumn, err)
	}
	rows, cols := m.Dims()
	if cols != len(t.Mean) {
		return nil, fmt.Errorf("normalize %s: expected %d slots, got %d", t.InputColumn, len(t.Mean), cols)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - t.Mean[j]) * t.Scale[j]
	}, m)
	return view.WithVector(t.OutputColumn, out)
}
