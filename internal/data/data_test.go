package data

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featureValue(row, i int) float32 {
	return float32(row) + float32(i)/100
}

// sourceLine builds a raw dataset row where V_i = row + i/100 and
// Amount = row * 10.
func sourceLine(row int, fraud bool) string {
	fields := []string{fmt.Sprintf("%d", row*3)} // Time
	for i := 1; i <= NumAnonymizedFeatures; i++ {
		fields = append(fields, fmt.Sprintf("%g", featureValue(row, i)))
	}
	fields = append(fields, fmt.Sprintf("%d", row*10))
	class := "0"
	if fraud {
		class = "1"
	}
	fields = append(fields, `"`+class+`"`)
	return strings.Join(fields, ",")
}

func sourceCSV(rows int, fraudEvery int) string {
	var b strings.Builder
	b.WriteString(`"Time","V1","V2","V3","V4","V5","V6","V7","V8","V9","V10","V11","V12","V13","V14","V15","V16","V17","V18","V19","V20","V21","V22","V23","V24","V25","V26","V27","V28","Amount","Class"` + "\n")
	for r := 0; r < rows; r++ {
		b.WriteString(sourceLine(r, fraudEvery > 0 && r%fraudEvery == 0))
		b.WriteString("\n")
	}
	return b.String()
}

func TestSourceColumns_Layout(t *testing.T) {
	s := SourceColumns()
	require.Len(t, s, 30)

	label, ok := s.Lookup(LabelColumn)
	require.True(t, ok)
	assert.Equal(t, 30, label.Index)
	assert.Equal(t, Boolean, label.Kind)

	amount, ok := s.Lookup(AmountColumn)
	require.True(t, ok)
	assert.Equal(t, 29, amount.Index)

	for i := 1; i <= NumAnonymizedFeatures; i++ {
		c, ok := s.Lookup(VName(i))
		require.True(t, ok, "missing V%d", i)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, Single, c.Kind)
	}

	_, ok = s.Lookup(StratificationColumn)
	assert.False(t, ok)
}

func TestSplitColumns_Layout(t *testing.T) {
	s := SplitColumns()
	require.Len(t, s, 31)

	label, _ := s.Lookup(LabelColumn)
	assert.Equal(t, 0, label.Index)
	strat, ok := s.Lookup(StratificationColumn)
	require.True(t, ok)
	assert.Equal(t, 30, strat.Index)

	features := s.FeatureNames()
	require.Len(t, features, 29)
	assert.Equal(t, "V1", features[0])
	assert.Equal(t, "V28", features[27])
	assert.Equal(t, AmountColumn, features[28])
}

func TestTextLoader_ReadsNamedColumns(t *testing.T) {
	loader := NewTextLoader(SourceColumns(), ',', true)
	view, err := loader.LoadReader(strings.NewReader(sourceCSV(5, 2)))
	require.NoError(t, err)
	require.Equal(t, 5, view.Len())

	label, err := view.Scalar(LabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1, 0, 1}, label)

	amount, err := view.Scalar(AmountColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20, 30, 40}, amount)

	v3, err := view.Scalar("V3")
	require.NoError(t, err)
	assert.Equal(t, float64(featureValue(4, 3)), v3[4])

	obs, err := view.Observations()
	require.NoError(t, err)
	assert.True(t, obs[0].Label)
	assert.Equal(t, featureValue(2, 28), obs[2].V[27])
	assert.Equal(t, float32(30), obs[3].Amount)
}

func TestTextLoader_WithoutHeader(t *testing.T) {
	loader := NewTextLoader(SourceColumns(), ',', false)
	view, err := loader.LoadReader(strings.NewReader(sourceLine(1, true) + "\n" + sourceLine(2, false) + "\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, view.Len())
}

func TestTextLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"short row", "1,2,3\n", "expected at least 31 fields"},
		{"bad number", strings.Replace(sourceLine(1, false), "1.01", "abc", 1) + "\n", "invalid number"},
		{"bad boolean", strings.Replace(sourceLine(1, false), `"0"`, "maybe", 1) + "\n", "invalid boolean"},
		{"empty boolean", strings.Replace(sourceLine(1, false), `"0"`, `""`, 1) + "\n", "line 1, column Label: empty boolean"},
	}

	loader := NewTextLoader(SourceColumns(), ',', false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.LoadReader(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTextLoader_EmptySingleIsNaN(t *testing.T) {
	line := strings.Replace(sourceLine(1, false), "1.01", "", 1)
	view, err := NewTextLoader(SourceColumns(), ',', false).LoadReader(strings.NewReader(line + "\n"))
	require.NoError(t, err)
	v1, _ := view.Scalar("V1")
	assert.True(t, math.IsNaN(v1[0]))
}

func TestSaveAsText_RoundTrip(t *testing.T) {
	view, err := NewTextLoader(SourceColumns(), ',', true).LoadReader(strings.NewReader(sourceCSV(20, 3)))
	require.NoError(t, err)
	split, err := TrainTestSplit(view, DefaultSplitOptions())
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, SaveAsText(&b, split.TrainSet, ',', true))
	assert.True(t, strings.HasPrefix(b.String(), "Label,V1,V2,"))

	reloaded, err := NewTextLoader(SplitColumns(), ',', true).LoadReader(strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Equal(t, split.TrainSet.Len(), reloaded.Len())

	for _, name := range SplitColumns().Names() {
		want, err := split.TrainSet.Scalar(name)
		require.NoError(t, err)
		got, err := reloaded.Scalar(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, "column %s", name)
	}
}

func TestTrainTestSplit(t *testing.T) {
	view, err := NewTextLoader(SourceColumns(), ',', true).LoadReader(strings.NewReader(sourceCSV(500, 10)))
	require.NoError(t, err)

	split, err := TrainTestSplit(view, DefaultSplitOptions())
	require.NoError(t, err)
	assert.Equal(t, 500, split.TrainSet.Len()+split.TestSet.Len())
	assert.InDelta(t, 100, split.TestSet.Len(), 40)

	keys, err := split.TestSet.Scalar(StratificationColumn)
	require.NoError(t, err)
	for _, k := range keys {
		assert.Less(t, k, 0.2)
	}

	// order is preserved: Amount grows with the source row
	amount, _ := split.TrainSet.Scalar(AmountColumn)
	for i := 1; i < len(amount); i++ {
		assert.Less(t, amount[i-1], amount[i])
	}

	again, err := TrainTestSplit(view, DefaultSplitOptions())
	require.NoError(t, err)
	assert.Equal(t, split.TestSet.Len(), again.TestSet.Len())
}

func TestTrainTestSplit_Stratified(t *testing.T) {
	view, err := NewTextLoader(SourceColumns(), ',', true).LoadReader(strings.NewReader(sourceCSV(200, 4)))
	require.NoError(t, err)

	split, err := TrainTestSplit(view, SplitOptions{TestFraction: 0.25, Seed: 7, StratifyByLabel: true})
	require.NoError(t, err)

	label, _ := split.TestSet.Scalar(LabelColumn)
	fraud := 0
	for _, l := range label {
		if l == 1 {
			fraud++
		}
	}
	// 50 fraud and 150 legitimate rows
	assert.Equal(t, 13, fraud)
	assert.Equal(t, 13+38, split.TestSet.Len())
}

func TestTrainTestSplit_InvalidFraction(t *testing.T) {
	view := NewDataView(0)
	for _, f := range []float64{0, 1, -0.5, 1.5} {
		_, err := TrainTestSplit(view, SplitOptions{TestFraction: f})
		assert.Error(t, err, "fraction %v", f)
	}
}

func TestSplitCache_Idempotent(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "creditcard.csv")
	require.NoError(t, os.WriteFile(source, []byte(sourceCSV(300, 7)), 0o600))

	cache := NewSplitCache(dir)
	assert.False(t, cache.Exists())

	loads := 0
	load := func() (*DataView, error) {
		loads++
		return NewTextLoader(SourceColumns(), ',', true).Load(source)
	}

	first, cached, err := cache.LoadOrSplit(load, DefaultSplitOptions())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.True(t, cache.Exists())

	trainBytes, err := os.ReadFile(cache.TrainPath)
	require.NoError(t, err)
	testBytes, err := os.ReadFile(cache.TestPath)
	require.NoError(t, err)

	second, cached, err := cache.LoadOrSplit(load, SplitOptions{TestFraction: 0.5, Seed: 99})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, loads, "source must not be reloaded when both split files exist")
	assert.Equal(t, first.TestSet.Len(), second.TestSet.Len())

	trainAfter, _ := os.ReadFile(cache.TrainPath)
	testAfter, _ := os.ReadFile(cache.TestPath)
	assert.Equal(t, trainBytes, trainAfter)
	assert.Equal(t, testBytes, testAfter)
}

func TestSplitCache_MissingOneFileResplits(t *testing.T) {
	dir := t.TempDir()
	cache := NewSplitCache(dir)
	require.NoError(t, os.WriteFile(cache.TrainPath, []byte("Label\n"), 0o600))
	assert.False(t, cache.Exists())
}

func TestTakeByLabel(t *testing.T) {
	var obs []TransactionObservation
	for i := 0; i < 10; i++ {
		obs = append(obs, TransactionObservation{Label: i%3 == 0, Amount: float32(i)})
	}

	fraud := TakeByLabel(obs, true, 2)
	require.Len(t, fraud, 2)
	assert.Equal(t, float32(0), fraud[0].Amount)
	assert.Equal(t, float32(3), fraud[1].Amount)

	all := TakeByLabel(obs, true, 100)
	assert.Len(t, all, 4)

	legit := TakeByLabel(obs, false, 3)
	require.Len(t, legit, 3)
	assert.Equal(t, []float32{1, 2, 4}, []float32{legit[0].Amount, legit[1].Amount, legit[2].Amount})

	assert.Empty(t, TakeByLabel(obs, false, 0))
}

func TestDataView_WhereTake(t *testing.T) {
	view, err := NewTextLoader(SourceColumns(), ',', true).LoadReader(strings.NewReader(sourceCSV(12, 3)))
	require.NoError(t, err)

	fraud, err := view.Where(LabelColumn, func(l float64) bool { return l == 1 })
	require.NoError(t, err)
	assert.Equal(t, 4, fraud.Len())

	first := fraud.Take(2)
	amount, _ := first.Scalar(AmountColumn)
	assert.Equal(t, []float64{0, 30}, amount)

	assert.Equal(t, 4, fraud.Take(10).Len())

	_, err = view.Where("missing", func(float64) bool { return true })
	assert.Error(t, err)
}

func TestDataView_WithScalarReplacesInPlace(t *testing.T) {
	v := NewDataView(2)
	v, err := v.WithScalar(Column{Name: "a", Kind: Single}, []float64{1, 2})
	require.NoError(t, err)
	v, err = v.WithScalar(Column{Name: "b", Kind: Single}, []float64{3, 4})
	require.NoError(t, err)
	replaced, err := v.WithScalar(Column{Name: "a", Kind: Single}, []float64{5, 6})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, replaced.Schema().Names())
	a, _ := replaced.Scalar("a")
	assert.Equal(t, []float64{5, 6}, a)
	orig, _ := v.Scalar("a")
	assert.Equal(t, []float64{1, 2}, orig)

	_, err = v.WithScalar(Column{Name: "c", Kind: Single}, []float64{1})
	assert.Error(t, err)
}
