package ml

import (
	"os"
	"path/filepath"
	"testing"

	"creditcard-fraud/internal/data"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadModel_PreservesPredictionsBitForBit(t *testing.T) {
	model, test := fitTestModel(t, 15)
	path := filepath.Join(t.TempDir(), "fastTree.zip")

	require.NoError(t, SaveModel(path, model, data.SplitColumns()))

	loaded, schema, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, data.SplitColumns(), schema)
	require.Len(t, loaded.Transformers, 3)

	before, err := model.Transform(test)
	require.NoError(t, err)
	after, err := loaded.Transform(test)
	require.NoError(t, err)

	for _, col := range []string{ScoreColumn, ProbabilityColumn, PredictedLabelColumn} {
		want, err := before.Scalar(col)
		require.NoError(t, err)
		got, err := after.Scalar(col)
		require.NoError(t, err)
		assert.Equal(t, want, got, "column %s", col)
	}

	want, err := before.Vector("FeaturesNormalizedByMeanVar")
	require.NoError(t, err)
	got, err := after.Vector("FeaturesNormalizedByMeanVar")
	require.NoError(t, err)
	assert.Equal(t, want.RawMatrix().Data, got.RawMatrix().Data)
}

func TestLoadModel_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadModel(filepath.Join(dir, "missing.zip"))
	assert.Error(t, err)

	notZip := filepath.Join(dir, "model.zip")
	require.NoError(t, os.WriteFile(notZip, []byte("not a zip"), 0o600))
	_, _, err = LoadModel(notZip)
	assert.Error(t, err)

	partial := filepath.Join(dir, "partial.zip")
	f, err := os.Create(partial)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(modelEntry)
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"format_version":1,"transformers":[]}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, _, err = LoadModel(partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), schemaEntry)
}

func TestDecodeTransformer_UnknownKind(t *testing.T) {
	_, err := decodeTransformer(transformerEntry{Kind: "mystery", Params: []byte(`{}`)})
	assert.Error(t, err)
}

type opaqueTransformer struct{}

func (opaqueTransformer) Transform(v *data.DataView) (*data.DataView, error) { return v, nil }

func TestSaveModel_UnknownTransformer(t *testing.T) {
	model := &TransformerChain{Transformers: []Transformer{opaqueTransformer{}}}
	err := SaveModel(filepath.Join(t.TempDir(), "m.zip"), model, nil)
	assert.Error(t, err)
}

func TestSaveModel_ReplacesArchiveAtomically(t *testing.T) {
	first, test := fitTestModel(t, 2)
	second, _ := fitTestModel(t, 6)
	dir := t.TempDir()
	path := filepath.Join(dir, "fastTree.zip")

	require.NoError(t, SaveModel(path, first, data.SplitColumns()))
	require.NoError(t, SaveModel(path, second, data.SplitColumns()))
	assert.NoFileExists(t, path+".tmp")

	loaded, _, err := LoadModel(path)
	require.NoError(t, err)
	assert.Len(t, loaded.LastTransformer().(*FastTreeBinaryModel).Trees, 6)

	// a failed save leaves the previous archive loadable
	require.NoError(t, os.Mkdir(path+".tmp", 0o755))
	require.Error(t, SaveModel(path, first, data.SplitColumns()))

	loaded, _, err = LoadModel(path)
	require.NoError(t, err)
	assert.Len(t, loaded.LastTransformer().(*FastTreeBinaryModel).Trees, 6)
	_, err = loaded.Transform(test)
	assert.NoError(t, err)
}
