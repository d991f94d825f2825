// Package nn implements the small feed-forward networks used by piven.
//
// A network is a stack of Dense layers (optionally followed by Dropout)
// ending in a PivenHead. The head emits three columns per sample:
//
//	[upper, lower, value]
//
// where value ∈ (0,1) interpolates between the bounds to give the point
// prediction value*upper + (1-value)*lower.
//
// Every layer implements an analytic backward pass. Training code runs
// Forward with training=true, computes ∂loss/∂output, calls Backward, then
// hands Parameters() to an Optimizer:
//
//	out := net.Forward(xBatch, true)
//	res, _ := objective.Evaluate(yBatch, out)
//	net.Backward(res.Grad)
//	opt.Step(net.Parameters())
package nn
