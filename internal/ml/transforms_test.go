package ml

import (
	"math"
	"testing"

	"creditcard-fraud/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoColumnView(t *testing.T, a, b []float64) *data.DataView {
	t.Helper()
	v, err := data.NewDataView(len(a)).WithScalar(data.Column{Name: "a", Kind: data.Single}, a)
	require.NoError(t, err)
	v, err = v.WithScalar(data.Column{Name: "b", Kind: data.Single}, b)
	require.NoError(t, err)
	return v
}

func TestConcatenate(t *testing.T) {
	view := twoColumnView(t, []float64{1, 2, 3}, []float64{4, 5, 6})

	tr, err := Concatenate("F", "b", "a").Fit(view)
	require.NoError(t, err)
	out, err := tr.Transform(view)
	require.NoError(t, err)

	m, err := out.Vector("F")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 2}, m.RawRowView(1))

	col, ok := out.Schema().Lookup("F")
	require.True(t, ok)
	assert.Equal(t, 2, col.Size)
}

func TestConcatenate_Errors(t *testing.T) {
	view := twoColumnView(t, []float64{1}, []float64{2})

	_, err := Concatenate("F").Fit(view)
	assert.Error(t, err)

	_, err = Concatenate("F", "a", "missing").Fit(view)
	assert.Error(t, err)

	tr := &ColumnConcatenatingTransformer{OutputColumn: "F", InputColumns: []string{"a"}}
	_, err = tr.Transform(data.NewDataView(0))
	assert.Error(t, err)
}

func TestNormalizeMeanVariance(t *testing.T) {
	view := twoColumnView(t, []float64{1, 2, 3, math.NaN()}, []float64{7, 7, 7, 7})
	tr, err := Concatenate("F", "a", "b").Fit(view)
	require.NoError(t, err)
	view, err = tr.Transform(view)
	require.NoError(t, err)

	norm, err := NormalizeMeanVariance("F", "N").Fit(view)
	require.NoError(t, err)
	nt := norm.(*NormalizingTransformer)
	assert.InDelta(t, 2, nt.Mean[0], 1e-12)
	assert.InDelta(t, 1, nt.Scale[0], 1e-12) // sample variance of 1,2,3 is 1
	assert.Zero(t, nt.Scale[1], "constant slot")

	out, err := norm.Transform(view)
	require.NoError(t, err)
	m, err := out.Vector("N")
	require.NoError(t, err)
	assert.InDelta(t, -1, m.At(0, 0), 1e-12)
	assert.InDelta(t, 1, m.At(2, 0), 1e-12)
	assert.Zero(t, m.At(1, 1))
	assert.True(t, math.IsNaN(m.At(3, 0)))

	original, err := out.Vector("F")
	require.NoError(t, err)
	assert.Equal(t, 3.0, original.At(2, 0), "input column is kept")
}

func TestEstimatorChain_AppendDoesNotShare(t *testing.T) {
	base := NewEstimatorChain(Concatenate("F", "a"))
	left := base.Append(NormalizeMeanVariance("F", "L"))
	right := base.Append(NormalizeMeanVariance("F", "R"))

	view := twoColumnView(t, []float64{1, 2}, []float64{3, 4})
	lm, err := left.Fit(view)
	require.NoError(t, err)
	rm, err := right.Fit(view)
	require.NoError(t, err)

	assert.Equal(t, "L", lm.LastTransformer().(*NormalizingTransformer).OutputColumn)
	assert.Equal(t, "R", rm.LastTransformer().(*NormalizingTransformer).OutputColumn)

	_, err = NewEstimatorChain().Fit(view)
	assert.Error(t, err)
	assert.Nil(t, (&TransformerChain{}).LastTransformer())
}
