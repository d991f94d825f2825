package piven

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/core/model"
	"github.com/YuminosukeSato/piven/pkg/errors"
	"github.com/YuminosukeSato/piven/preprocessing"
)

// ScalerFile holds the gob-encoded target scaler of a
// TransformedTargetRegressor.
const ScalerFile = "target_scaler.gob"

// TransformedTargetRegressor standardises the target before training the
// wrapped regressor and maps point predictions and both bounds back to the
// original scale.
type TransformedTargetRegressor struct {
	regressor   model.IntervalRegressor
	transformer *preprocessing.StandardScaler
}

// NewTransformedTargetRegressor wraps regressor.
func NewTransformedTargetRegressor(regressor model.IntervalRegressor) *TransformedTargetRegressor {
	return &TransformedTargetRegressor{
		regressor:   regressor,
		transformer: preprocessing.NewStandardScalerDefault(),
	}
}

// Regressor returns the wrapped regressor.
func (t *TransformedTargetRegressor) Regressor() model.IntervalRegressor { return t.regressor }

// Transformer returns the target scaler.
func (t *TransformedTargetRegressor) Transformer() *preprocessing.StandardScaler {
	return t.transformer
}

// IsFitted reports whether both the scaler and the regressor are fitted.
func (t *TransformedTargetRegressor) IsFitted() bool {
	return t.transformer.IsFitted() && t.regressor.IsFitted()
}

// Fit fits the scaler on y and the regressor on the scaled target.
func (t *TransformedTargetRegressor) Fit(X, y mat.Matrix) error {
	if _, c := y.Dims(); c != 1 {
		return errors.NewDimensionError("TransformedTargetRegressor.Fit", 1, c, 1)
	}
	scaled, err := t.transformer.FitTransform(y)
	if err != nil {
		return err
	}
	return t.regressor.Fit(X, scaled)
}

// Predict returns point predictions on the original scale.
func (t *TransformedTargetRegressor) Predict(X mat.Matrix) (*mat.VecDense, error) {
	iv, err := t.PredictIntervals(X)
	if err != nil {
		return nil, err
	}
	return iv.Point, nil
}

// PredictIntervals returns point predictions and bounds on the original
// scale.
func (t *TransformedTargetRegressor) PredictIntervals(X mat.Matrix) (model.Intervals, error) {
	if !t.IsFitted() {
		return model.Intervals{}, errors.NewNotFittedError("TransformedTargetRegressor", "PredictIntervals")
	}
	iv, err := t.regressor.PredictIntervals(X)
	if err != nil {
		return model.Intervals{}, err
	}
	var out model.Intervals
	for _, pair := range []struct {
		dst **mat.VecDense
		src *mat.VecDense
	}{{&out.Point, iv.Point}, {&out.Lower, iv.Lower}, {&out.Upper, iv.Upper}} {
		v, err := t.transformer.InverseTransformVec(pair.src)
		if err != nil {
			return model.Intervals{}, err
		}
		*pair.dst = v
	}
	return out, nil
}

// Save writes the wrapped regressor and the scaler into dir. It fails when
// the wrapped regressor has no way to be saved.
func (t *TransformedTargetRegressor) Save(dir string) error {
	if !t.IsFitted() {
		return errors.NewNotFittedError("TransformedTargetRegressor", "Save")
	}
	var err error
	switch r := t.regressor.(type) {
	case model.Persistable:
		err = r.Save(dir)
	case *Regressor:
		err = r.Save(dir, nil)
	default:
		return errors.NewValueError("TransformedTargetRegressor.Save",
			fmt.Sprintf("wrapped regressor %T cannot be saved", t.regressor))
	}
	if err != nil {
		return err
	}
	return model.SaveModel(t.transformer, filepath.Join(dir, ScalerFile))
}

// LoadTransformedTargetRegressor restores the scaler saved in dir around an
// already loaded regressor.
func LoadTransformedTargetRegressor(dir string, regressor model.IntervalRegressor) (*TransformedTargetRegressor, error) {
	scaler := &preprocessing.StandardScaler{}
	if err := model.LoadModel(scaler, filepath.Join(dir, ScalerFile)); err != nil {
		return nil, err
	}
	if scaler.StateManager == nil || !scaler.IsFitted() {
		return nil, errors.NewValueError("LoadTransformedTargetRegressor", "scaler in "+dir+" is not fitted")
	}
	return &TransformedTargetRegressor{regressor: regressor, transformer: scaler}, nil
}

var _ model.IntervalRegressor = (*TransformedTargetRegressor)(nil)
