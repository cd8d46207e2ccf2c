package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"creditcard-fraud/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	AssetsPath      string
	DatasetFile     string
	DatasetURL      string
	DatasetHeader   bool
	TestFraction    float64
	Seed            int64
	StratifyByLabel bool
	CrossValidate   bool
	CVNumFolds      int
	NumLeaves       int
	NumTrees        int
	MinDocsInLeaf   int
	LearningRate    float64
	NumTransactions int
	ModelFile       string
	RegistryPath    string
	MetricsFile     string
	GCSBucket       string
	GCSPrefix       string
	DownloadTimeout time.Duration
}

type ConfigFile struct {
	Dataset struct {
		AssetsPath string `yaml:"assetsPath"`
		File       string `yaml:"file"`
		URL        string `yaml:"url"`
		HasHeader  *bool  `yaml:"hasHeader"`
		Timeout    string `yaml:"downloadTimeout"`
	} `yaml:"dataset"`

	Split struct {
		TestFraction    float64 `yaml:"testFraction"`
		Seed            int64   `yaml:"seed"`
		StratifyByLabel bool    `yaml:"stratifyByLabel"`
	} `yaml:"split"`

	Training struct {
		NumLeaves     int     `yaml:"numLeaves"`
		NumTrees      int     `yaml:"numTrees"`
		MinDocsInLeaf int     `yaml:"minDocsInLeaf"`
		LearningRate  float64 `yaml:"learningRate"`
		CVNumFolds    int     `yaml:"cvNumFolds"`
		CrossValidate bool    `yaml:"crossValidate"`
	} `yaml:"training"`

	Prediction struct {
		ModelFile       string `yaml:"modelFile"`
		NumTransactions int    `yaml:"numTransactions"`
	} `yaml:"prediction"`

	System struct {
		RegistryPath string `yaml:"registryPath"`
		MetricsFile  string `yaml:"metricsFile"`
	} `yaml:"system"`

	Publish struct {
		Bucket string `yaml:"gcsBucket"`
		Prefix string `yaml:"gcsPrefix"`
	} `yaml:"publish"`
}

// Load reads an optional .env file, then the YAML file named by CONFIG_FILE
// if set, and applies environment overrides on top.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := time.ParseDuration(config.Dataset.Timeout)
	if err != nil {
		timeout = common.DefaultDownloadTimeout
	}
	timeout = getDurationOrDefault(common.EnvDownloadTimeout, timeout)

	hasHeader := true
	if config.Dataset.HasHeader != nil {
		hasHeader = *config.Dataset.HasHeader
	}

	assets := getEnvOrDefault(common.EnvAssetsPath, firstNonEmpty(config.Dataset.AssetsPath, common.DefaultAssetsPath))

	settings := Settings{
		AssetsPath:      assets,
		DatasetFile:     getEnvOrDefault(common.EnvDatasetFile, firstNonEmpty(config.Dataset.File, defaultDatasetFile(assets))),
		DatasetURL:      getEnvOrDefault(common.EnvDatasetURL, config.Dataset.URL),
		DatasetHeader:   getBoolFromEnvOrConfig(common.EnvDatasetHasHeader, hasHeader),
		TestFraction:    getFloatFromEnvOrConfig(common.EnvTestFraction, config.Split.TestFraction, common.DefaultTestFraction),
		Seed:            int64(getIntFromEnvOrConfig(common.EnvSeed, int(config.Split.Seed), common.DefaultSeed)),
		StratifyByLabel: getBoolFromEnvOrConfig(common.EnvStratifyByLabel, config.Split.StratifyByLabel),
		CrossValidate:   getBoolFromEnvOrConfig(common.EnvCrossValidate, config.Training.CrossValidate),
		CVNumFolds:      getIntFromEnvOrConfig(common.EnvCVNumFolds, config.Training.CVNumFolds, common.DefaultCVNumFolds),
		NumLeaves:       getIntFromEnvOrConfig(common.EnvNumLeaves, config.Training.NumLeaves, common.DefaultNumLeaves),
		NumTrees:        getIntFromEnvOrConfig(common.EnvNumTrees, config.Training.NumTrees, common.DefaultNumTrees),
		MinDocsInLeaf:   getIntFromEnvOrConfig(common.EnvMinDocsInLeaf, config.Training.MinDocsInLeaf, common.DefaultMinDocsInLeaf),
		LearningRate:    getFloatFromEnvOrConfig(common.EnvLearningRate, config.Training.LearningRate, common.DefaultLearningRate),
		NumTransactions: getIntFromEnvOrConfig(common.EnvNumTransactions, config.Prediction.NumTransactions, common.DefaultNumTransactions),
		ModelFile:       getEnvOrDefault(common.EnvModelFile, config.Prediction.ModelFile),
		RegistryPath:    getEnvOrDefault(common.EnvRegistryPath, config.System.RegistryPath),
		MetricsFile:     getEnvOrDefault(common.EnvMetricsFile, config.System.MetricsFile),
		GCSBucket:       getEnvOrDefault(common.EnvGCSBucket, config.Publish.Bucket),
		GCSPrefix:       getEnvOrDefault(common.EnvGCSPrefix, config.Publish.Prefix),
		DownloadTimeout: timeout,
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	assets := getEnvOrDefault(common.EnvAssetsPath, common.DefaultAssetsPath)

	settings := Settings{
		AssetsPath:      assets,
		DatasetFile:     getEnvOrDefault(common.EnvDatasetFile, defaultDatasetFile(assets)),
		DatasetURL:      os.Getenv(common.EnvDatasetURL), // optional
		DatasetHeader:   getBoolOrDefault(common.EnvDatasetHasHeader, true),
		TestFraction:    getFloatOrDefault(common.EnvTestFraction, common.DefaultTestFraction),
		Seed:            int64(getIntOrDefault(common.EnvSeed, common.DefaultSeed)),
		StratifyByLabel: getBoolOrDefault(common.EnvStratifyByLabel, false),
		CrossValidate:   getBoolOrDefault(common.EnvCrossValidate, false),
		CVNumFolds:      getIntOrDefault(common.EnvCVNumFolds, common.DefaultCVNumFolds),
		NumLeaves:       getIntOrDefault(common.EnvNumLeaves, common.DefaultNumLeaves),
		NumTrees:        getIntOrDefault(common.EnvNumTrees, common.DefaultNumTrees),
		MinDocsInLeaf:   getIntOrDefault(common.EnvMinDocsInLeaf, common.DefaultMinDocsInLeaf),
		LearningRate:    getFloatOrDefault(common.EnvLearningRate, common.DefaultLearningRate),
		NumTransactions: getIntOrDefault(common.EnvNumTransactions, common.DefaultNumTransactions),
		ModelFile:       os.Getenv(common.EnvModelFile),
		RegistryPath:    os.Getenv(common.EnvRegistryPath),
		MetricsFile:     os.Getenv(common.EnvMetricsFile),
		GCSBucket:       os.Getenv(common.EnvGCSBucket),
		GCSPrefix:       os.Getenv(common.EnvGCSPrefix),
		DownloadTimeout: getDurationOrDefault(common.EnvDownloadTimeout, common.DefaultDownloadTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func defaultDatasetFile(assets string) string {
	return filepath.Join(assets, "input", "creditcard.csv")
}

func firstNonEmpty(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getIntOrDefault(key, defaultValue)
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getFloatOrDefault(key, defaultValue)
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	return getBoolOrDefault(key, configValue)
}

// validateSettings checks ranges before any file is touched
func validateSettings(settings *Settings) error {
	if settings.AssetsPath == "" {
		return fmt.Errorf("assets path cannot be empty")
	}
	if settings.DatasetFile == "" {
		return fmt.Errorf("dataset file cannot be empty")
	}

	if settings.TestFraction <= 0 || settings.TestFraction >= 1 {
		return fmt.Errorf("test fraction must be between 0 and 1 (exclusive), got %f", settings.TestFraction)
	}
	if settings.CVNumFolds < 2 || settings.CVNumFolds > 20 {
		return fmt.Errorf("cv folds must be between 2 and 20, got %d", settings.CVNumFolds)
	}

	if settings.NumLeaves < 2 || settings.NumLeaves > 1024 {
		return fmt.Errorf("num leaves must be between 2 and 1024, got %d", settings.NumLeaves)
	}
	if settings.NumTrees <= 0 || settings.NumTrees > 10000 {
		return fmt.Errorf("num trees must be between 1 and 10000, got %d", settings.NumTrees)
	}
	if settings.MinDocsInLeaf <= 0 {
		return fmt.Errorf("min documents in leaf must be positive, got %d", settings.MinDocsInLeaf)
	}
	if settings.LearningRate <= 0 || settings.LearningRate > 1 {
		return fmt.Errorf("learning rate must be between 0 and 1, got %f", settings.LearningRate)
	}

	if settings.NumTransactions <= 0 || settings.NumTransactions > 1000 {
		return fmt.Errorf("number of transactions must be between 1 and 1000, got %d", settings.NumTransactions)
	}
	if settings.DownloadTimeout < time.Second || settings.DownloadTimeout > time.Hour {
		return fmt.Errorf("download timeout must be between 1s and 1h, got %v", settings.DownloadTimeout)
	}

	if settings.GCSPrefix != "" && settings.GCSBucket == "" {
		return fmt.Errorf("GCS prefix %q set without a bucket", settings.GCSPrefix)
	}

	return nil
}
