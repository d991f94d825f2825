package piven

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"

	"github.com/YuminosukeSato/piven/nn"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

// ParamsFile is the experiment configuration written next to a saved model.
const ParamsFile = "experiment_params.json"

// Params is the experiment configuration of an MLPModel.
type Params struct {
	// Lambda weights the coverage penalty of the Piven objective.
	Lambda float64 `json:"lambda_" mapstructure:"lambda_"`

	DenseUnits  []int     `json:"dense_units" mapstructure:"dense_units"`
	DropoutRate []float64 `json:"dropout_rate" mapstructure:"dropout_rate"`

	BiasInitLow  float64 `json:"bias_init_low" mapstructure:"bias_init_low"`
	BiasInitHigh float64 `json:"bias_init_high" mapstructure:"bias_init_high"`

	LearningRate float64 `json:"lr" mapstructure:"lr"`
	ClipNorm     float64 `json:"clip_norm,omitempty" mapstructure:"clip_norm"`
	Seed         uint64  `json:"seed" mapstructure:"seed"`

	Epochs          int     `json:"epochs" mapstructure:"epochs"`
	BatchSize       int     `json:"batch_size" mapstructure:"batch_size"`
	ValidationSplit float64 `json:"validation_split" mapstructure:"validation_split"`
}

// DefaultParams returns the default MLP configuration: one hidden layer of
// 64 units with 10% dropout, lambda 15 and a learning rate of 1e-4.
func DefaultParams() Params {
	return Params{
		Lambda:       15,
		DenseUnits:   []int{64},
		DropoutRate:  []float64{0.1},
		BiasInitLow:  -3,
		BiasInitHigh: 3,
		LearningRate: 1e-4,
		Epochs:       10,
		BatchSize:    32,
	}
}

// Validate checks the configuration.
func (p Params) Validate() error {
	if p.Lambda < 0 {
		return errors.NewValidationError("lambda_", "must be non-negative", p.Lambda)
	}
	if len(p.DropoutRate) != len(p.DenseUnits) {
		return errors.NewValidationError("dropout_rate", "must have one rate per dense layer", p.DropoutRate)
	}
	for _, units := range p.DenseUnits {
		if units < 1 {
			return errors.NewValidationError("dense_units", "must be positive", p.DenseUnits)
		}
	}
	if p.BiasInitLow >= p.BiasInitHigh {
		return errors.NewValidationError("bias_init_low", "must be below bias_init_high", p.BiasInitLow)
	}
	if p.LearningRate <= 0 {
		return errors.NewValidationError("lr", "must be positive", p.LearningRate)
	}
	return nil
}

// NetworkConfig converts the parameters into a network configuration.
func (p Params) NetworkConfig(inputDim int) nn.NetworkConfig {
	return nn.NetworkConfig{
		InputDim:     inputDim,
		Units:        p.DenseUnits,
		Dropout:      p.DropoutRate,
		BiasInitHigh: p.BiasInitHigh,
		BiasInitLow:  p.BiasInitLow,
		Seed:         p.Seed,
	}
}

// ToMap returns the parameters keyed by their configuration names.
func (p Params) ToMap() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := mapstructure.Decode(p, &out); err != nil {
		return nil, errors.Wrap(err, "failed to encode params")
	}
	return out, nil
}

// DecodeParams overlays values onto base. Numeric values are converted
// leniently so maps decoded from JSON work unchanged.
func DecodeParams(base Params, values map[string]interface{}) (Params, error) {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &base,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
	})
	if err != nil {
		return base, errors.Wrap(err, "failed to create params decoder")
	}
	if err := decoder.Decode(values); err != nil {
		return base, errors.NewValidationError("params", err.Error(), values)
	}
	return base, nil
}

// WriteParams writes params to dir/experiment_params.json.
func WriteParams(dir string, params Params) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode params")
	}
	path := filepath.Join(dir, ParamsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// LoadModelConfig reads dir/experiment_params.json. Missing keys keep
// their defaults. A missing file yields an error matching fs.ErrNotExist.
func LoadModelConfig(dir string) (Params, error) {
	path := filepath.Join(dir, ParamsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, errors.Wrapf(err, "no experiment file found in %s", dir)
	}
	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return Params{}, errors.Wrapf(err, "failed to decode %s", path)
	}
	return DecodeParams(DefaultParams(), values)
}
