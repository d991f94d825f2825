package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/YuminosukeSato/piven/pkg/errors"
)

// LayerWeights is the serialised form of one dense layer. Kernel is stored
// row-major with shape Inputs×Units.
type LayerWeights struct {
	Name       string    `json:"name"`
	Inputs     int       `json:"inputs"`
	Units      int       `json:"units"`
	Activation string    `json:"activation"`
	Kernel     []float64 `json:"kernel"`
	Bias       []float64 `json:"bias"`
	Dropout    float64   `json:"dropout,omitempty"`
}

// ModelWeights is the serialised form of a trained network.
type ModelWeights struct {
	// ModelType names the network topology, e.g. "PivenMLP".
	ModelType string `json:"model_type"`

	// Version guards against loading weights written by an incompatible
	// layout.
	Version string `json:"version"`

	// Hidden holds the hidden layers in forward order.
	Hidden []LayerWeights `json:"hidden"`

	// Interval is the two-unit projection producing [upper, lower].
	Interval LayerWeights `json:"interval"`

	// Value is the one-unit sigmoid projection producing the gate v.
	Value LayerWeights `json:"value"`

	// Hyperparameters used to build the network.
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata such as the training history length.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	IsFitted bool `json:"is_fitted"`
}

// ToJSON serialises the weights as indented JSON.
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON deserialises weights written by ToJSON.
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// WriteFile writes the weights as JSON to path.
func (mw *ModelWeights) WriteFile(path string) error {
	data, err := mw.ToJSON()
	if err != nil {
		return errors.Wrap(err, "failed to encode weights")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// ReadWeightsFile reads and validates weights written by WriteFile.
func ReadWeightsFile(path string) (*ModelWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	mw := &ModelWeights{}
	if err := mw.FromJSON(data); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return mw, nil
}

func (lw LayerWeights) validate() error {
	if lw.Inputs <= 0 || lw.Units <= 0 {
		return errors.Newf("layer %q has invalid shape %dx%d", lw.Name, lw.Inputs, lw.Units)
	}
	if len(lw.Kernel) != lw.Inputs*lw.Units {
		return errors.Newf("layer %q: kernel has %d values, want %d", lw.Name, len(lw.Kernel), lw.Inputs*lw.Units)
	}
	if len(lw.Bias) != lw.Units {
		return errors.Newf("layer %q: bias has %d values, want %d", lw.Name, len(lw.Bias), lw.Units)
	}
	return nil
}

// Validate checks that the layer shapes are consistent with each other.
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted {
		return errors.NewValidationError("is_fitted", "only fitted networks can be restored", false)
	}

	layers := append(append([]LayerWeights{}, mw.Hidden...), mw.Interval)
	for i, lw := range layers {
		if err := lw.validate(); err != nil {
			return errors.NewModelError("ModelWeights.Validate", "invalid layer", err)
		}
		if i > 0 && lw.Inputs != layers[i-1].Units {
			return errors.NewDimensionError("ModelWeights.Validate", layers[i-1].Units, lw.Inputs, 1)
		}
	}
	if err := mw.Value.validate(); err != nil {
		return errors.NewModelError("ModelWeights.Validate", "invalid layer", err)
	}
	if mw.Value.Inputs != mw.Interval.Inputs {
		return errors.NewDimensionError("ModelWeights.Validate", mw.Interval.Inputs, mw.Value.Inputs, 1)
	}
	if mw.Interval.Units != 2 || mw.Value.Units != 1 {
		return errors.NewValueError("ModelWeights.Validate", "output head must have 2 interval units and 1 value unit")
	}
	return nil
}

// Hash returns a SHA-256 digest of all parameters, used to check that a
// saved and reloaded network is bit-identical.
func (mw *ModelWeights) Hash() string {
	var data []float64
	for _, lw := range mw.Hidden {
		data = append(data, lw.Kernel...)
		data = append(data, lw.Bias...)
	}
	for _, lw := range []LayerWeights{mw.Interval, mw.Value} {
		data = append(data, lw.Kernel...)
		data = append(data, lw.Bias...)
	}
	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}
