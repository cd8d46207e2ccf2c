package cfg

import (
	"path/filepath"

	"creditcard-fraud/internal/common"
	"creditcard-fraud/internal/data"
)

// OutputPath is where the split files, the model and its feature importance
// are written.
func (s *Settings) OutputPath() string {
	return filepath.Join(s.AssetsPath, common.OutputDir)
}

// ModelPath returns the configured model file, falling back to the archive
// written by the trainer.
func (s *Settings) ModelPath() string {
	if s.ModelFile != "" {
		return s.ModelFile
	}
	return filepath.Join(s.OutputPath(), common.ModelFileName)
}

// TestDataPath is the cached test split read by the predictor.
func (s *Settings) TestDataPath() string {
	return filepath.Join(s.OutputPath(), data.TestDataFile)
}

// RegistryDir holds the bbolt run and model registry.
func (s *Settings) RegistryDir() string {
	if s.RegistryPath != "" {
		return s.RegistryPath
	}
	return filepath.Join(s.AssetsPath, common.RegistryDir)
}
