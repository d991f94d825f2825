package nn

import "gonum.org/v1/gonum/mat"

// Parameter is a trainable tensor flattened to a slice, paired with the
// gradient slice written by the owning layer's Backward.
type Parameter struct {
	Name  string
	Value []float64
	Grad  []float64
}

// Layer is a differentiable transformation of a batch (one row per sample).
type Layer interface {
	// Forward maps an n×in batch to n×out. With training set, the layer
	// caches whatever Backward needs.
	Forward(x *mat.Dense, training bool) *mat.Dense

	// Backward takes ∂loss/∂output for the last training Forward, stores
	// parameter gradients and returns ∂loss/∂input.
	Backward(dOut *mat.Dense) *mat.Dense

	// Parameters returns the trainable parameters, possibly none.
	Parameters() []*Parameter
}
