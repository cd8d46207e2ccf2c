// Package trainer prepares the train/test split, fits the FastTree fraud
// model, evaluates it and saves it together with its run record.
package trainer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"creditcard-fraud/internal/artifacts"
	"creditcard-fraud/internal/common"
	"creditcard-fraud/internal/console"
	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/dataset"
	"creditcard-fraud/internal/metrics"
	"creditcard-fraud/internal/ml"
	"creditcard-fraud/internal/storage"

	"github.com/rs/zerolog/log"
)

const (
	normalizedFeaturesColumn = "FeaturesNormalizedByMeanVar"
	inspectRows              = 4
	topFeaturesLogged        = 5
)

// RunRecorder stores training runs. *storage.Store implements it.
type RunRecorder interface {
	StoreRun(run *storage.TrainingRun) error
}

// TrainingMetrics receives the trainer's collectors.
// *metrics.MetricsWrapper implements it.
type TrainingMetrics interface {
	RowsLoaded(role string) metrics.MetricsCounter
	ObserveSplit(trainRows, testRows int)
	TrainingRuns() metrics.MetricsCounter
	TrainingDuration() metrics.MetricsHistogram
	ObserveEvaluation(accuracy, auc, f1, logLoss float64)
}

// Params are the training hyperparameters.
type Params struct {
	CVNumFolds          int
	NumLeaves           int
	NumTrees            int
	MinDocumentsInLeafs int
	LearningRate        float64
}

// DefaultParams returns 2 folds and 100 trees of 20 leaves with at least 10
// documents per leaf and a 0.2 learning rate.
func DefaultParams() Params {
	return Params{
		CVNumFolds:          common.DefaultCVNumFolds,
		NumLeaves:           common.DefaultNumLeaves,
		NumTrees:            common.DefaultNumTrees,
		MinDocumentsInLeafs: common.DefaultMinDocsInLeaf,
		LearningRate:        common.DefaultLearningRate,
	}
}

func (p Params) asMap() map[string]float64 {
	return map[string]float64{
		"cv_num_folds":           float64(p.CVNumFolds),
		"num_leaves":             float64(p.NumLeaves),
		"num_trees":              float64(p.NumTrees),
		"min_documents_in_leafs": float64(p.MinDocumentsInLeafs),
		"learning_rate":          p.LearningRate,
	}
}

// Result is the outcome of TrainFastTreeAndSaveModels.
type Result struct {
	Metrics         ml.BinaryClassificationMetrics
	CrossValidation *ml.CrossValidationResult
	Importance      []ml.FeatureImportance
	ModelPath       string // latest model, overwritten by every run
	VersionPath     string // copy owned by Version
	Version         string
	PublishedTo     string
	Duration        time.Duration
}

// ModelBuilder trains the fraud model from the dataset under assetsPath.
type ModelBuilder struct {
	assetsPath  string
	dataSetFile string
	outputPath  string

	out           io.Writer
	split         data.SplitOptions
	hasHeader     bool
	datasetOpts   dataset.Options
	runs          RunRecorder
	models        *ml.ModelManager
	archive       ml.Archiver
	metrics       TrainingMetrics
	publisher     artifacts.Publisher
	crossValidate bool

	trainData   *data.DataView
	testData    *data.DataView
	splitCached bool
	drift       *ml.DriftReport
}

// NewModelBuilder returns a builder writing its artifacts to
// <assetsPath>/output. Both paths are required.
func NewModelBuilder(assetsPath, dataSetFile string, opts ...Option) (*ModelBuilder, error) {
	if assetsPath == "" {
		return nil, fmt.Errorf("assets path is required: %w", common.ErrInvalidArgument)
	}
	if dataSetFile == "" {
		return nil, fmt.Errorf("dataset file is required: %w", common.ErrInvalidArgument)
	}

	b := &ModelBuilder{
		assetsPath:  assetsPath,
		dataSetFile: dataSetFile,
		outputPath:  filepath.Join(assetsPath, common.OutputDir),
		out:         os.Stdout,
		split:       data.DefaultSplitOptions(),
		hasHeader:   true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// OutputPath is the directory holding the split files and the model.
func (b *ModelBuilder) OutputPath() string {
	return b.outputPath
}

// PreProcessData reuses the cached split when both split files exist;
// otherwise it makes sure the dataset is present, loads it, splits it and
// caches the split. Sample rows of every view are printed.
func (b *ModelBuilder) PreProcessData(ctx context.Context) error {
	if err := os.MkdirAll(b.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cache := data.NewSplitCache(b.outputPath)
	split, cached, err := cache.LoadOrSplit(func() (*data.DataView, error) {
		return b.loadSource(ctx)
	}, b.split)
	if err != nil {
		return fmt.Errorf("prepare data: %w", err)
	}

	b.trainData, b.testData, b.splitCached = split.TrainSet, split.TestSet, cached

	console.WriteHeader(b.out, "Show 4 transactions fraud (true) and 4 transactions not fraud (false) -  (traindata)")
	if err := console.InspectData(b.out, b.trainData, inspectRows); err != nil {
		return err
	}
	console.WriteHeader(b.out, "Show 4 transactions fraud (true) and 4 transactions not fraud (false) -  (testData)")
	if err := console.InspectData(b.out, b.testData, inspectRows); err != nil {
		return err
	}

	if b.metrics != nil {
		b.metrics.RowsLoaded("train").Add(float64(b.trainData.Len()))
		b.metrics.RowsLoaded("test").Add(float64(b.testData.Len()))
		b.metrics.ObserveSplit(b.trainData.Len(), b.testData.Len())
	}

	b.drift, err = ml.ComputeDrift(b.trainData, b.testData, b.trainData.Schema().FeatureNames(), ml.DefaultDriftThreshold)
	if err != nil {
		return fmt.Errorf("split drift: %w", err)
	}

	log.Info().
		Bool("cached", cached).
		Int("train_rows", b.trainData.Len()).
		Int("test_rows", b.testData.Len()).
		Int("drifted_features", len(b.drift.Drifted())).
		Msg("Data prepared")
	return nil
}

func (b *ModelBuilder) loadSource(ctx context.Context) (*data.DataView, error) {
	if err := dataset.Ensure(ctx, b.dataSetFile, b.datasetOpts); err != nil {
		return nil, err
	}

	view, err := data.NewTextLoader(data.SourceColumns(), ',', b.hasHeader).Load(b.dataSetFile)
	if err != nil {
		return nil, err
	}
	if b.metrics != nil {
		b.metrics.RowsLoaded("source").Add(float64(view.Len()))
	}

	console.WriteHeader(b.out, "Show 4 transactions fraud (true) and 4 transactions not fraud (false) -  (source)")
	if err := console.InspectData(b.out, view, inspectRows); err != nil {
		return nil, err
	}
	return view, nil
}

// TrainFastTreeAndSaveModels fits Concatenate -> NormalizeMeanVariance ->
// FastTree on the train split, evaluates it on the test split and saves
// fastTree.zip plus its feature importance in the output path.
func (b *ModelBuilder) TrainFastTreeAndSaveModels(ctx context.Context, p Params) (*Result, error) {
	if b.trainData == nil || b.testData == nil {
		return nil, fmt.Errorf("no training data, call PreProcessData first")
	}

	started := time.Now()
	featureNames := b.trainData.Schema().FeatureNames()
	pipeline := b.pipeline(featureNames, p)
	result := &Result{}

	if b.crossValidate {
		cv, err := ml.CrossValidate(b.trainData, pipeline, p.CVNumFolds, b.split.Seed, data.LabelColumn)
		if err != nil {
			return nil, fmt.Errorf("cross validation: %w", err)
		}
		console.PrintCrossValidation(b.out, cv)
		result.CrossValidation = &cv
	}

	model, err := pipeline.Fit(b.trainData)
	if err != nil {
		return nil, fmt.Errorf("fit pipeline: %w", err)
	}

	scored, err := model.Transform(b.testData)
	if err != nil {
		return nil, fmt.Errorf("score test data: %w", err)
	}
	evaluation, err := ml.Evaluate(scored, data.LabelColumn)
	if err != nil {
		return nil, fmt.Errorf("evaluate model: %w", err)
	}
	result.Metrics = evaluation

	console.WriteHeader(b.out, "Test Metrics:")
	fmt.Fprintf(b.out, "Accuracy: %v\n", evaluation.Accuracy)
	console.PrintMetrics(b.out, "FastTree", evaluation)

	result.ModelPath = filepath.Join(b.outputPath, common.ModelFileName)
	if err := ml.SaveModel(result.ModelPath, model, data.SplitColumns()); err != nil {
		return nil, err
	}
	fmt.Fprintf(b.out, "Saved model to %s\n", result.ModelPath)

	if ft, ok := model.LastTransformer().(*ml.FastTreeBinaryModel); ok {
		result.Importance, err = ft.GainImportance(featureNames)
		if err != nil {
			return nil, err
		}
		if err := ml.SaveFeatureImportance(filepath.Join(b.outputPath, common.FeatureImportanceFile), result.Importance); err != nil {
			return nil, err
		}
		log.Info().Strs("top_features", ml.TopFeatures(result.Importance, topFeaturesLogged)).Msg("Feature importance computed")
	}

	result.Duration = time.Since(started)
	if err := b.register(ctx, p, started, result); err != nil {
		return nil, err
	}

	log.Info().
		Str("model", result.ModelPath).
		Str("version", result.Version).
		Float64("accuracy", evaluation.Accuracy).
		Float64("auc", evaluation.AreaUnderRocCurve).
		Dur("duration", result.Duration).
		Msg("Training completed")
	return result, nil
}

func (b *ModelBuilder) pipeline(featureNames []string, p Params) *ml.EstimatorChain {
	opts := ml.DefaultFastTreeOptions()
	opts.LabelColumn = data.LabelColumn
	opts.FeatureColumn = data.FeaturesColumn
	opts.NumLeaves = p.NumLeaves
	opts.NumTrees = p.NumTrees
	opts.MinDatapointsInLeaves = p.MinDocumentsInLeafs
	opts.LearningRate = p.LearningRate

	return ml.NewEstimatorChain(ml.Concatenate(data.FeaturesColumn, featureNames...)).
		Append(ml.NormalizeMeanVariance(data.FeaturesColumn, normalizedFeaturesColumn)).
		Append(ml.FastTree(opts))
}

// register reports metrics, archives and activates a model version, stores
// the run and publishes the archive, each when configured.
func (b *ModelBuilder) register(ctx context.Context, p Params, started time.Time, result *Result) error {
	m := result.Metrics

	if b.metrics != nil {
		b.metrics.TrainingRuns().Inc()
		b.metrics.TrainingDuration().Observe(result.Duration.Seconds())
		b.metrics.ObserveEvaluation(m.Accuracy, m.AreaUnderRocCurve, m.F1Score, m.LogLoss)
	}

	if b.models != nil {
		archive := b.archive
		if archive == nil {
			archive = artifacts.DirPublisher{Root: b.outputPath, Prefix: common.VersionsDir}
		}
		version, err := b.models.StoreVersion(ctx, result.ModelPath, archive, storage.ModelMetrics{
			Accuracy:        m.Accuracy,
			AUCScore:        m.AreaUnderRocCurve,
			F1Score:         m.F1Score,
			Precision:       m.PositivePrecision,
			Recall:          m.PositiveRecall,
			LogLoss:         m.LogLoss,
			TrainingSamples: b.trainData.Len(),
		})
		if err != nil {
			return err
		}
		if err := b.models.ActivateVersion(version.Version); err != nil {
			return err
		}
		result.Version = version.Version
		result.VersionPath = version.Path
	}

	runModel := result.ModelPath
	if result.VersionPath != "" {
		runModel = result.VersionPath
	}

	if b.runs != nil {
		run := &storage.TrainingRun{
			StartedAt:       started,
			FinishedAt:      started.Add(result.Duration),
			Dataset:         b.dataSetFile,
			TrainRows:       b.trainData.Len(),
			TestRows:        b.testData.Len(),
			SplitCached:     b.splitCached,
			Hyperparameters: p.asMap(),
			Metrics: map[string]float64{
				"accuracy":           m.Accuracy,
				"auc":                m.AreaUnderRocCurve,
				"auprc":              m.AreaUnderPrecisionRecallCurve,
				"f1":                 m.F1Score,
				"log_loss":           m.LogLoss,
				"log_loss_reduction": m.LogLossReduction,
			},
			ModelPath: runModel,
			Version:   result.Version,
		}
		if err := b.runs.StoreRun(run); err != nil {
			return fmt.Errorf("store training run: %w", err)
		}
	}

	if b.publisher != nil {
		version := result.Version
		if version == "" {
			version = started.UTC().Format("20060102-150405")
		}
		uri, err := b.publisher.Publish(ctx, result.ModelPath, version)
		if err != nil {
			return fmt.Errorf("publish model: %w", err)
		}
		result.PublishedTo = uri
	}
	return nil
}

// Drift returns the train/test drift report computed by PreProcessData.
func (b *ModelBuilder) Drift() *ml.DriftReport {
	return b.drift
}
