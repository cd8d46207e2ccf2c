package common

import (
	"errors"
	"time"
)

// ErrInvalidArgument is returned by constructors given empty or out of range
// arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// Asset layout
const (
	OutputDir             = "output"
	RegistryDir           = "registry"
	VersionsDir           = "models"
	ModelFileName         = "fastTree.zip"
	FeatureImportanceFile = "featureImportance.json"
)

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvAssetsPath       = "ASSETS_PATH"
	EnvDatasetFile      = "DATASET_FILE"
	EnvDatasetURL       = "DATASET_URL"
	EnvDatasetHasHeader = "DATASET_HAS_HEADER"
	EnvTestFraction     = "TEST_FRACTION"
	EnvSeed             = "SEED"
	EnvStratifyByLabel  = "STRATIFY_BY_LABEL"
	EnvCrossValidate    = "CROSS_VALIDATE"
	EnvCVNumFolds       = "CV_NUM_FOLDS"
	EnvNumLeaves        = "NUM_LEAVES"
	EnvNumTrees         = "NUM_TREES"
	EnvMinDocsInLeaf    = "MIN_DOCS_IN_LEAF"
	EnvLearningRate     = "LEARNING_RATE"
	EnvNumTransactions  = "NUM_TRANSACTIONS"
	EnvModelFile        = "MODEL_FILE"
	EnvRegistryPath     = "REGISTRY_PATH"
	EnvMetricsFile      = "METRICS_FILE"
	EnvGCSBucket        = "GCS_BUCKET"
	EnvGCSPrefix        = "GCS_PREFIX"
	EnvDownloadTimeout  = "DOWNLOAD_TIMEOUT"
)

// Configuration defaults
const (
	DefaultAssetsPath      = "assets"
	DefaultTestFraction    = 0.2
	DefaultSeed            = 1
	DefaultCVNumFolds      = 2
	DefaultNumLeaves       = 20
	DefaultNumTrees        = 100
	DefaultMinDocsInLeaf   = 10
	DefaultLearningRate    = 0.2
	DefaultNumTransactions = 5
	DefaultDownloadTimeout = 2 * time.Minute
)
