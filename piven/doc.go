// Package piven trains neural networks that predict a value together with
// a prediction interval.
//
// A Piven network ends in a head with three outputs per sample: an upper
// bound U, a lower bound L and a gate v in (0, 1). The point prediction is
// v*U + (1-v)*L. Training minimises a mix of interval width, a coverage
// penalty and the squared error of the point prediction (see package loss).
//
// Regressor wraps any network built by a BuildFunc; MLPModel is a ready
// configured multilayer perceptron that can also be saved, loaded and
// logged to disk:
//
//	m := piven.NewMLPModel(piven.DefaultParams(),
//		piven.WithCallbacks(piven.EarlyStopping(piven.MetricValLoss, 5, true)),
//	)
//	if err := m.Fit(X, y); err != nil {
//		return err
//	}
//	scores, err := m.Log(XTest, yTest, dir, piven.DefaultLogOptions())
package piven
