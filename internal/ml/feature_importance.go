package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FeatureImportance is the split gain attributed to one feature.
type FeatureImportance struct {
	Name       string  `json:"name"`
	Gain       float64 `json:"gain"`
	Normalized float64 `json:"normalized"` // gain / max gain
	Splits     int     `json:"splits"`
}

// GainImportance returns the importance of every feature, most important
// first. names label the feature vector slots.
func (m *FastTreeBinaryModel) GainImportance(names []string) ([]FeatureImportance, error) {
	if len(names) != m.NumFeatures {
		return nil, fmt.Errorf("expected %d feature names, got %d", m.NumFeatures, len(names))
	}

	maxGain := 0.0
	for _, g := range m.Gains {
		if g > maxGain {
			maxGain = g
		}
	}

	out := make([]FeatureImportance, len(names))
	for i, name := range names {
		out[i] = FeatureImportance{Name: name, Gain: m.Gains[i], Splits: m.SplitCounts[i]}
		if maxGain > 0 {
			out[i].Normalized = m.Gains[i] / maxGain
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Gain > out[j].Gain
	})
	return out, nil
}

// TopFeatures returns the names of the n most important features.
func TopFeatures(importance []FeatureImportance, n int) []string {
	if n > len(importance) {
		n = len(importance)
	}
	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = importance[i].Name
	}
	return result
}

// SaveFeatureImportance writes importance as indented JSON.
func SaveFeatureImportance(path string, importance []FeatureImportance) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(importance, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// LoadFeatureImportance reads a file written by SaveFeatureImportance.
func LoadFeatureImportance(path string) ([]FeatureImportance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var importance []FeatureImportance
	if err := json.Unmarshal(data, &importance); err != nil {
		return nil, err
	}
	return importance, nil
}
