package piven

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/core/model"
	"github.com/YuminosukeSato/piven/core/parallel"
	"github.com/YuminosukeSato/piven/loss"
	"github.com/YuminosukeSato/piven/nn"
	"github.com/YuminosukeSato/piven/pkg/errors"
	"github.com/YuminosukeSato/piven/pkg/log"
)

// ModelFile is the name of the serialised network inside a model directory.
const ModelFile = "piven_model.json"

// predictParallelThreshold is the row count above which inference is split
// across CPUs.
const predictParallelThreshold = 2048

// BuildFunc creates an untrained network for inputDim features.
type BuildFunc func(inputDim int) (*nn.Network, error)

// Regressor trains a network with a Piven head and turns its output into
// point predictions and prediction intervals.
type Regressor struct {
	*model.StateManager

	build BuildFunc
	net   *nn.Network

	epochs          int
	batchSize       int
	shuffle         bool
	validationSplit float64
	callbacks       []Callback
	objective       loss.Objective
	optimizer       nn.AdamConfig
	seed            uint64
	logger          log.Logger

	history *History
}

// Option configures a Regressor.
type Option func(*Regressor)

// WithEpochs sets the number of passes over the training data.
func WithEpochs(epochs int) Option {
	return func(r *Regressor) {
		r.epochs = epochs
	}
}

// WithBatchSize sets the mini-batch size.
func WithBatchSize(size int) Option {
	return func(r *Regressor) {
		r.batchSize = size
	}
}

// WithShuffle sets whether training rows are shuffled before each epoch.
func WithShuffle(shuffle bool) Option {
	return func(r *Regressor) {
		r.shuffle = shuffle
	}
}

// WithValidationSplit holds out the last fraction of the rows for
// validation. The held-out loss is reported as "val_loss".
func WithValidationSplit(split float64) Option {
	return func(r *Regressor) {
		r.validationSplit = split
	}
}

// WithCallbacks appends training callbacks.
func WithCallbacks(callbacks ...Callback) Option {
	return func(r *Regressor) {
		r.callbacks = append(r.callbacks, callbacks...)
	}
}

// WithObjective replaces the default Piven objective.
func WithObjective(obj loss.Objective) Option {
	return func(r *Regressor) {
		r.objective = obj
	}
}

// WithOptimizer configures the Adam optimizer.
func WithOptimizer(cfg nn.AdamConfig) Option {
	return func(r *Regressor) {
		r.optimizer = cfg
	}
}

// WithSeed sets the seed used for shuffling.
func WithSeed(seed uint64) Option {
	return func(r *Regressor) {
		r.seed = seed
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Regressor) {
		r.logger = logger
	}
}

// NewRegressor creates a Regressor that builds its network with build on
// every call to Fit.
func NewRegressor(build BuildFunc, opts ...Option) *Regressor {
	r := &Regressor{
		StateManager: model.NewStateManager(),
		build:        build,
		epochs:       10,
		batchSize:    32,
		shuffle:      true,
		objective:    loss.NewPiven(loss.DefaultLambda),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("Regressor")
	}
	return r
}

// Network returns the trained network, or nil before Fit.
func (r *Regressor) Network() *nn.Network { return r.net }

// History returns the metrics recorded by the last Fit.
func (r *Regressor) History() *History { return r.history }

func (r *Regressor) validate() error {
	if r.build == nil {
		return errors.NewValidationError("build", "a build function is required", nil)
	}
	if r.epochs < 1 {
		return errors.NewValidationError("epochs", "must be at least 1", r.epochs)
	}
	if r.batchSize < 1 {
		return errors.NewValidationError("batch_size", "must be at least 1", r.batchSize)
	}
	if r.validationSplit < 0 || r.validationSplit >= 1 {
		return errors.NewValidationError("validation_split", "must be in [0, 1)", r.validationSplit)
	}
	return nil
}

// targetVector accepts y as a vector or an n×1 matrix.
func targetVector(op string, y mat.Matrix) ([]float64, error) {
	n, c := y.Dims()
	if c != 1 {
		return nil, errors.NewDimensionError(op, 1, c, 1)
	}
	return mat.Col(make([]float64, n), 0, y), nil
}

// Fit trains a freshly built network on X and y. y may be a vector or an
// n×1 matrix.
func (r *Regressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Regressor.Fit")

	if err := r.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("Regressor.Fit", "empty data", errors.ErrEmptyData)
	}
	target, err := targetVector("Regressor.Fit", y)
	if err != nil {
		return err
	}
	if len(target) != nSamples {
		return errors.NewDimensionError("Regressor.Fit", nSamples, len(target), 0)
	}

	nTrain := int(float64(nSamples) * (1 - r.validationSplit))
	if nTrain == 0 || (r.validationSplit > 0 && nTrain == nSamples) {
		return errors.NewValidationError("validation_split",
			fmt.Sprintf("leaves an empty train or validation set for %d samples", nSamples), r.validationSplit)
	}

	net, err := r.build(nFeatures)
	if err != nil {
		return errors.NewModelError("Regressor.Fit", "build failed", err)
	}
	if net.InputDim() != nFeatures {
		return errors.NewDimensionError("Regressor.Fit", net.InputDim(), nFeatures, 1)
	}

	logger := r.logger.With(log.OperationKey, log.OperationFit)
	logger.Info("Training started",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.EpochsKey, r.epochs,
		log.BatchSizeKey, r.batchSize,
		"objective", r.objective.Name(),
	)
	start := time.Now()

	xAll := mat.DenseCopyOf(X)
	if err := errors.CheckMatrix("Regressor.Fit", xAll, nSamples, nFeatures, 0); err != nil {
		return err
	}
	var xVal *mat.Dense
	yVal := target[nTrain:]
	if len(yVal) > 0 {
		xVal = mat.DenseCopyOf(xAll.Slice(nTrain, nSamples, 0, nFeatures))
	}

	opt := nn.NewAdam(r.optimizer)
	rng := rand.New(nn.NewSource(r.seed))
	order := make([]int, nTrain)
	for i := range order {
		order[i] = i
	}

	r.Reset()
	r.net = net
	r.history = NewHistory()
	cbs := NewCallbackList(r, r.epochs, append([]Callback{RecordHistory(r.history)}, r.callbacks...)...)

	xb := mat.NewDense(min(r.batchSize, nTrain), nFeatures, nil)
	yb := make([]float64, 0, r.batchSize)
	for epoch := 0; epoch < r.epochs; epoch++ {
		if r.shuffle {
			rng.Shuffle(nTrain, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var epochLoss, gradNorm float64
		for s := 0; s < nTrain; s += r.batchSize {
			e := min(s+r.batchSize, nTrain)
			batch := xb.Slice(0, e-s, 0, nFeatures).(*mat.Dense)
			yb = yb[:0]
			for i, idx := range order[s:e] {
				batch.SetRow(i, xAll.RawRowView(idx))
				yb = append(yb, target[idx])
			}

			res, err := r.objective.Evaluate(yb, net.Forward(batch, true))
			if err != nil {
				return err
			}
			if err := errors.CheckScalar("Regressor.Fit", res.Loss, epoch); err != nil {
				return err
			}
			net.Backward(res.Grad)
			gradNorm = opt.Step(net.Parameters())
			epochLoss += res.Loss * float64(e-s)
		}

		logs := map[string]float64{MetricLoss: epochLoss / float64(nTrain)}
		if len(yVal) > 0 {
			res, err := r.objective.Evaluate(yVal, net.Forward(xVal, false))
			if err != nil {
				return err
			}
			logs[MetricValLoss] = res.Loss
		}
		logger.Debug("Epoch",
			log.EpochKey, epoch,
			log.LossKey, logs[MetricLoss],
			log.GradNormKey, gradNorm,
		)

		if err := cbs.AfterEpoch(epoch, logs); err != nil {
			return err
		}
		if cbs.ShouldStop() {
			break
		}
	}

	r.SetDimensions(nFeatures, nSamples)
	r.SetFitted()

	last, _ := r.history.Last(MetricLoss)
	logger.Info("Training finished",
		log.EpochsKey, r.history.Len(),
		log.LossKey, last,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// forward runs inference on X, splitting large inputs across CPUs.
func (r *Regressor) forward(op string, X mat.Matrix) (*mat.Dense, error) {
	if err := r.RequireFitted("Regressor", op); err != nil {
		return nil, err
	}
	n, c := X.Dims()
	if err := r.CheckFeatures("Regressor."+op, c); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.NewModelError("Regressor."+op, "empty data", errors.ErrEmptyData)
	}

	x := mat.DenseCopyOf(X)
	out := mat.NewDense(n, 3, nil)
	parallel.ParallelizeWithThreshold(n, predictParallelThreshold, func(start, end int) {
		chunk := x.Slice(start, end, 0, c).(*mat.Dense)
		out.Slice(start, end, 0, 3).(*mat.Dense).Copy(r.net.Forward(chunk, false))
	})
	return out, nil
}

// Predict returns the point predictions value*upper + (1-value)*lower.
func (r *Regressor) Predict(X mat.Matrix) (*mat.VecDense, error) {
	iv, err := r.PredictIntervals(X)
	if err != nil {
		return nil, err
	}
	return iv.Point, nil
}

// PredictIntervals returns the point predictions with their lower and upper
// bounds.
func (r *Regressor) PredictIntervals(X mat.Matrix) (model.Intervals, error) {
	out, err := r.forward("Predict", X)
	if err != nil {
		return model.Intervals{}, err
	}
	n, _ := out.Dims()
	iv := model.Intervals{
		Point: mat.NewVecDense(n, nil),
		Lower: mat.NewVecDense(n, nil),
		Upper: mat.NewVecDense(n, nil),
	}
	for i := 0; i < n; i++ {
		upper, lower := out.At(i, nn.ColUpper), out.At(i, nn.ColLower)
		iv.Upper.SetVec(i, upper)
		iv.Lower.SetVec(i, lower)
		iv.Point.SetVec(i, nn.PointPrediction(upper, lower, out.At(i, nn.ColValue)))
	}
	return iv, nil
}

// Save writes the network to dir/piven_model.json. hyperparameters are
// stored alongside the weights.
func (r *Regressor) Save(dir string, hyperparameters map[string]interface{}) error {
	if err := r.RequireFitted("Regressor", "Save"); err != nil {
		return err
	}
	mw := r.net.Export(hyperparameters)
	if r.history != nil {
		mw.Metadata = map[string]interface{}{"epochs_trained": r.history.Len()}
	}
	return mw.WriteFile(filepath.Join(dir, ModelFile))
}

// LoadRegressor restores a Regressor saved with Save. build is kept for
// later calls to Fit.
func LoadRegressor(dir string, build BuildFunc, opts ...Option) (*Regressor, error) {
	path := filepath.Join(dir, ModelFile)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "no model file found in %s", dir)
	}
	mw, err := model.ReadWeightsFile(path)
	if err != nil {
		return nil, err
	}

	r := NewRegressor(build, opts...)
	net, err := nn.NetworkFromWeights(mw, r.seed)
	if err != nil {
		return nil, err
	}
	r.net = net
	r.SetDimensions(net.InputDim(), 0)
	r.SetFitted()
	r.logger.Info("Model loaded", log.OperationKey, log.OperationLoad, log.PathKey, dir)
	return r, nil
}

var _ model.IntervalRegressor = (*Regressor)(nil)
