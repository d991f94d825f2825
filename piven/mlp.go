package piven

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/chart"
	"github.com/YuminosukeSato/piven/core/model"
	"github.com/YuminosukeSato/piven/loss"
	"github.com/YuminosukeSato/piven/metrics"
	"github.com/YuminosukeSato/piven/nn"
	"github.com/YuminosukeSato/piven/pkg/errors"
	"github.com/YuminosukeSato/piven/pkg/log"
)

// Files written by MLPModel.Log.
const (
	MetricsFile     = "metrics.json"
	PredictionsFile = "predictions.csv"
	ChartFile       = "predictions.png"
	ModelDir        = "model"
)

// MLPModel is a multilayer perceptron with a Piven head, configured by
// Params. It is the entry point for training, scoring and experiment
// logging.
//
//	m := piven.NewMLPModel(piven.DefaultParams())
//	if err := m.Fit(X, y); err != nil { ... }
//	iv, err := m.PredictIntervals(XTest)
type MLPModel struct {
	params    Params
	opts      []Option
	regressor *Regressor
	logger    log.Logger
}

// NewMLPModel creates an unfitted model. opts are passed to the underlying
// Regressor on every Fit and override the fit settings in params.
func NewMLPModel(params Params, opts ...Option) *MLPModel {
	return &MLPModel{
		params: params,
		opts:   opts,
		logger: log.GetLoggerWithName("MLPModel"),
	}
}

// Params returns the model configuration.
func (m *MLPModel) Params() Params { return m.params }

// Regressor returns the underlying regressor, or nil before Fit.
func (m *MLPModel) Regressor() *Regressor { return m.regressor }

// IsFitted reports whether the model has been fitted or loaded.
func (m *MLPModel) IsFitted() bool {
	return m.regressor != nil && m.regressor.IsFitted()
}

// GetParams returns the configuration keyed by parameter name.
func (m *MLPModel) GetParams() map[string]interface{} {
	out, err := m.params.ToMap()
	if err != nil {
		m.logger.Error("Failed to encode params", err)
		return map[string]interface{}{}
	}
	return out
}

// SetParams updates the configuration. The change takes effect on the next
// Fit; an already trained network is kept until then.
func (m *MLPModel) SetParams(values map[string]interface{}) error {
	params, err := DecodeParams(m.params, values)
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	m.params = params
	return nil
}

// Build creates an untrained network for inputDim features.
func (m *MLPModel) Build(inputDim int) (*nn.Network, error) {
	if err := m.params.Validate(); err != nil {
		return nil, err
	}
	return nn.NewNetwork(m.params.NetworkConfig(inputDim))
}

func (m *MLPModel) regressorOptions() []Option {
	opts := []Option{
		WithObjective(loss.NewPiven(m.params.Lambda)),
		WithOptimizer(nn.AdamConfig{LR: m.params.LearningRate, ClipNorm: m.params.ClipNorm}),
		WithSeed(m.params.Seed),
		WithValidationSplit(m.params.ValidationSplit),
	}
	if m.params.Epochs > 0 {
		opts = append(opts, WithEpochs(m.params.Epochs))
	}
	if m.params.BatchSize > 0 {
		opts = append(opts, WithBatchSize(m.params.BatchSize))
	}
	return append(opts, m.opts...)
}

// Fit trains a new network on X and y.
func (m *MLPModel) Fit(X, y mat.Matrix) error {
	if err := m.params.Validate(); err != nil {
		return err
	}
	r := NewRegressor(m.Build, m.regressorOptions()...)
	if err := r.Fit(X, y); err != nil {
		return err
	}
	m.regressor = r
	return nil
}

// Predict returns point predictions.
func (m *MLPModel) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MLPModel", "Predict")
	}
	return m.regressor.Predict(X)
}

// PredictIntervals returns point predictions with their bounds.
func (m *MLPModel) PredictIntervals(X mat.Matrix) (model.Intervals, error) {
	if !m.IsFitted() {
		return model.Intervals{}, errors.NewNotFittedError("MLPModel", "PredictIntervals")
	}
	return m.regressor.PredictIntervals(X)
}

// Scores are the evaluation metrics of a set of predictions.
type Scores struct {
	Loss     float64 `json:"loss"`
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	Coverage float64 `json:"coverage"`
	PIWidth  float64 `json:"pi_width"`
}

// Score evaluates predictions against y. The loss uses the model's lambda
// with the default softening factor and alpha.
func (m *MLPModel) Score(y, pred, low, high []float64) (Scores, error) {
	var s Scores
	var err error
	if s.Loss, err = metrics.PivenLoss(y, pred, low, high, m.params.Lambda, loss.DefaultSoften, loss.DefaultAlpha); err != nil {
		return Scores{}, err
	}
	yv, pv := mat.NewVecDense(len(y), y), mat.NewVecDense(len(pred), pred)
	if s.MAE, err = metrics.MAE(yv, pv); err != nil {
		return Scores{}, err
	}
	if s.RMSE, err = metrics.RMSE(yv, pv); err != nil {
		return Scores{}, err
	}
	if s.Coverage, err = metrics.Coverage(y, low, high); err != nil {
		return Scores{}, err
	}
	if s.PIWidth, err = metrics.PIWidth(low, high); err != nil {
		return Scores{}, err
	}
	return s, nil
}

// Save writes experiment_params.json and the network weights into dir,
// which must exist.
func (m *MLPModel) Save(dir string) error {
	if !m.IsFitted() {
		return errors.NewNotFittedError("MLPModel", "Save")
	}
	if err := WriteParams(dir, m.params); err != nil {
		return err
	}
	hyper, err := m.params.ToMap()
	if err != nil {
		return err
	}
	if err := m.regressor.Save(dir, hyper); err != nil {
		return err
	}
	m.logger.Info("Model saved", log.OperationKey, log.OperationSave, log.PathKey, dir)
	return nil
}

// LoadMLPModel restores a model written by Save.
func LoadMLPModel(dir string, opts ...Option) (*MLPModel, error) {
	params, err := LoadModelConfig(dir)
	if err != nil {
		return nil, err
	}
	m := NewMLPModel(params, opts...)
	r, err := LoadRegressor(dir, m.Build, m.regressorOptions()...)
	if err != nil {
		return nil, err
	}
	m.regressor = r
	return m, nil
}

// LogOptions selects the artefacts written by Log.
type LogOptions struct {
	Model       bool
	Predictions bool
	Chart       bool
}

// DefaultLogOptions writes the model and predictions but no chart.
func DefaultLogOptions() LogOptions {
	return LogOptions{Model: true, Predictions: true}
}

// Log predicts on X, scores the predictions against y and writes the
// results into dir, which must be an existing directory:
//
//	metrics.json      always
//	model/            when opts.Model
//	predictions.csv   when opts.Predictions
//	predictions.png   when opts.Chart
func (m *MLPModel) Log(X, y mat.Matrix, dir string, opts LogOptions) (Scores, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return Scores{}, errors.Wrapf(errors.ErrNotADirectory, "path %s", dir)
	}
	target, err := targetVector("MLPModel.Log", y)
	if err != nil {
		return Scores{}, err
	}
	iv, err := m.PredictIntervals(X)
	if err != nil {
		return Scores{}, err
	}
	if len(target) != iv.Len() {
		return Scores{}, errors.NewDimensionError("MLPModel.Log", iv.Len(), len(target), 0)
	}
	pred, low, high := iv.Point.RawVector().Data, iv.Lower.RawVector().Data, iv.Upper.RawVector().Data

	scores, err := m.Score(target, pred, low, high)
	if err != nil {
		return Scores{}, err
	}
	data, err := json.MarshalIndent(scores, "", "  ")
	if err != nil {
		return Scores{}, errors.Wrap(err, "failed to encode metrics")
	}
	if err := os.WriteFile(filepath.Join(dir, MetricsFile), data, 0o644); err != nil {
		return Scores{}, errors.Wrap(err, "failed to write metrics")
	}

	if opts.Model {
		modelDir := filepath.Join(dir, ModelDir)
		if err := os.Mkdir(modelDir, 0o755); err != nil {
			return Scores{}, errors.Wrapf(err, "failed to create %s", modelDir)
		}
		if err := m.Save(modelDir); err != nil {
			return Scores{}, err
		}
	}
	if opts.Predictions {
		if err := writePredictions(filepath.Join(dir, PredictionsFile), target, pred, low, high); err != nil {
			return Scores{}, err
		}
	}
	if opts.Chart {
		chartOpts := chart.DefaultOptions()
		if err := chart.SaveIntervals(filepath.Join(dir, ChartFile), target, iv, chartOpts); err != nil {
			return Scores{}, err
		}
	}

	m.logger.Info("Experiment logged",
		log.OperationKey, log.OperationLog,
		log.PathKey, dir,
		log.LossKey, scores.Loss,
		log.MAEKey, scores.MAE,
		log.RMSEKey, scores.RMSE,
		log.CoverageKey, scores.Coverage,
		log.PIWidthKey, scores.PIWidth,
	)
	return scores, nil
}

func writePredictions(path string, y, pred, low, high []float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"index", "y_true", "y_pred", "y_pi_low", "y_pi_high"}); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i := range y {
		record := []string{strconv.Itoa(i), format(y[i]), format(pred[i]), format(low[i]), format(high[i])}
		if err := w.Write(record); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush predictions")
	}
	return nil
}

var (
	_ model.Persistable       = (*MLPModel)(nil)
	_ model.ParameterGetter   = (*MLPModel)(nil)
	_ model.ParameterSetter   = (*MLPModel)(nil)
	_ model.IntervalPredictor = (*MLPModel)(nil)
)
