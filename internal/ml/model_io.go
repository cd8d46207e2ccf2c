package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"creditcard-fraud/internal/data"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
)

// Entries of a model archive.
const (
	modelEntry  = "model.json"
	schemaEntry = "schema.json"

	modelFormatVersion = 1
)

// Transformer kinds stored in model.json.
const (
	kindConcatenate           = "concatenate"
	kindNormalizeMeanVariance = "normalize_mean_variance"
	kindFastTreeBinary        = "fast_tree_binary"
)

type modelEnvelope struct {
	FormatVersion int                `json:"format_version"`
	Transformers  []transformerEntry `json:"transformers"`
}

type transformerEntry struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// SaveModel writes the fitted chain and the input schema it was trained on
// to a zip archive at path.
func SaveModel(path string, model *TransformerChain, schema data.Schema) error {
	env := modelEnvelope{FormatVersion: modelFormatVersion}
	for i, t := range model.Transformers {
		kind, err := transformerKind(t)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		params, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		env.Transformers = append(env.Transformers, transformerEntry{Kind: kind, Params: params})
	}

	// path is replaced only once the archive is complete
	tmp := path + ".tmp"
	if err := writeModelArchive(tmp, env, schema); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace model file: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("transformers", len(env.Transformers)).
		Msg("Model saved")
	return nil
}

func writeModelArchive(path string, env modelEnvelope, schema data.Schema) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	zw := zip.NewWriter(file)
	if err := writeJSONEntry(zw, modelEntry, env); err != nil {
		file.Close()
		return err
	}
	if err := writeJSONEntry(zw, schemaEntry, schema); err != nil {
		file.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finish model archive: %w", err)
	}
	return file.Close()
}

func transformerKind(t Transformer) (string, error) {
	switch t.(type) {
	case *ColumnConcatenatingTransformer:
		return kindConcatenate, nil
	case *NormalizingTransformer:
		return kindNormalizeMeanVariance, nil
	case *FastTreeBinaryModel:
		return kindFastTreeBinary, nil
	default:
		return "", fmt.Errorf("transformer %T cannot be saved", t)
	}
}

func writeJSONEntry(zw *zip.Writer, name string, v any) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// LoadModel reads a model archive written by SaveModel.
func LoadModel(path string) (*TransformerChain, data.Schema, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer zr.Close()

	var env modelEnvelope
	var schema data.Schema
	found := map[string]bool{}
	for _, f := range zr.File {
		switch f.Name {
		case modelEntry:
			err = readJSONEntry(f, &env)
		case schemaEntry:
			err = readJSONEntry(f, &schema)
		default:
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		found[f.Name] = true
	}
	for _, name := range []string{modelEntry, schemaEntry} {
		if !found[name] {
			return nil, nil, fmt.Errorf("model archive %s: missing %s", path, name)
		}
	}
	if env.FormatVersion != modelFormatVersion {
		return nil, nil, fmt.Errorf("model archive %s: unsupported format version %d", path, env.FormatVersion)
	}

	model := &TransformerChain{}
	for i, entry := range env.Transformers {
		t, err := decodeTransformer(entry)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", i, err)
		}
		model.Transformers = append(model.Transformers, t)
	}

	log.Info().
		Str("path", path).
		Int("transformers", len(model.Transformers)).
		Msg("Model loaded")
	return model, schema, nil
}

func readJSONEntry(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", f.Name, err)
	}
	return nil
}

func decodeTransformer(entry transformerEntry) (Transformer, error) {
	var t Transformer
	switch entry.Kind {
	case kindConcatenate:
		t = &ColumnConcatenatingTransformer{}
	case kindNormalizeMeanVariance:
		t = &NormalizingTransformer{}
	case kindFastTreeBinary:
		t = &FastTreeBinaryModel{}
	default:
		return nil, fmt.Errorf("unknown transformer kind %q", entry.Kind)
	}
	if err := json.Unmarshal(entry.Params, t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entry.Kind, err)
	}
	return t, nil
}
