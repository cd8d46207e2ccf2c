package cfg

import (
	"strings"
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		AssetsPath:      "assets",
		DatasetFile:     "assets/input/creditcard.csv",
		DatasetHeader:   true,
		TestFraction:    0.2,
		Seed:            1,
		CVNumFolds:      2,
		NumLeaves:       20,
		NumTrees:        100,
		MinDocsInLeaf:   10,
		LearningRate:    0.2,
		NumTransactions: 5,
		DownloadTimeout: 2 * time.Minute,
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantMsg string
	}{
		{"empty assets path", func(s *Settings) { s.AssetsPath = "" }, "assets path"},
		{"empty dataset file", func(s *Settings) { s.DatasetFile = "" }, "dataset file"},
		{"zero test fraction", func(s *Settings) { s.TestFraction = 0 }, "test fraction"},
		{"whole dataset as test", func(s *Settings) { s.TestFraction = 1 }, "test fraction"},
		{"too many folds", func(s *Settings) { s.CVNumFolds = 50 }, "cv folds"},
		{"single leaf", func(s *Settings) { s.NumLeaves = 1 }, "num leaves"},
		{"no trees", func(s *Settings) { s.NumTrees = 0 }, "num trees"},
		{"empty leaves allowed", func(s *Settings) { s.MinDocsInLeaf = 0 }, "min documents"},
		{"negative learning rate", func(s *Settings) { s.LearningRate = -0.1 }, "learning rate"},
		{"no transactions", func(s *Settings) { s.NumTransactions = 0 }, "number of transactions"},
		{"sub-second timeout", func(s *Settings) { s.DownloadTimeout = 10 * time.Millisecond }, "download timeout"},
		{"prefix without bucket", func(s *Settings) { s.GCSPrefix = "fraud" }, "without a bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestValidateSettings_Boundaries(t *testing.T) {
	settings := createValidSettings()
	settings.NumLeaves = 2
	settings.LearningRate = 1
	settings.CVNumFolds = 20
	settings.GCSBucket = "fraud-models"
	settings.GCSPrefix = "creditcard"

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected boundary values to pass, got error: %v", err)
	}
}
