package model

// ParameterGetter exposes a model's hyperparameters in scikit-learn's
// get_params form.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter updates hyperparameters from a get_params style map.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Persistable models are written to and read from a directory.
type Persistable interface {
	Save(dir string) error
}
