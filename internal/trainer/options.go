package trainer

import (
	"io"

	"creditcard-fraud/internal/artifacts"
	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/dataset"
	"creditcard-fraud/internal/ml"
	"creditcard-fraud/internal/storage"
)

// Option configures a ModelBuilder.
type Option func(*ModelBuilder)

// WithOutput sets where the console report is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(b *ModelBuilder) { b.out = w }
}

// WithSplitOptions overrides the 80/20 split.
func WithSplitOptions(opts data.SplitOptions) Option {
	return func(b *ModelBuilder) { b.split = opts }
}

// WithHasHeader tells the loader whether the source dataset has a header row.
func WithHasHeader(hasHeader bool) Option {
	return func(b *ModelBuilder) { b.hasHeader = hasHeader }
}

// WithDataset configures how a missing dataset is fetched.
func WithDataset(opts dataset.Options) Option {
	return func(b *ModelBuilder) { b.datasetOpts = opts }
}

// WithRegistry records runs and model versions in store.
func WithRegistry(store *storage.Store) Option {
	return func(b *ModelBuilder) {
		b.runs = store
		b.models = ml.NewModelManager(store)
	}
}

// WithMetrics reports training collectors to m.
func WithMetrics(m TrainingMetrics) Option {
	return func(b *ModelBuilder) { b.metrics = m }
}

// WithVersionArchive sets where registered versions keep their own copy of
// the model. Defaults to <output>/models/<version>/fastTree.zip.
func WithVersionArchive(a ml.Archiver) Option {
	return func(b *ModelBuilder) { b.archive = a }
}

// WithPublisher uploads every saved model through p.
func WithPublisher(p artifacts.Publisher) Option {
	return func(b *ModelBuilder) { b.publisher = p }
}

// WithCrossValidation runs k-fold cross validation on the train set before
// the final fit.
func WithCrossValidation(enabled bool) Option {
	return func(b *ModelBuilder) { b.crossValidate = enabled }
}
