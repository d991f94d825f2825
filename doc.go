// Package piven predicts regression targets together with prediction
// intervals from a single neural network.
//
// A Piven network ends in a head producing an upper bound, a lower bound
// and a gate v for every sample. The point prediction is
// v*upper + (1-v)*lower, so one forward pass yields the value and the
// interval around it.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/piven/piven"
//	)
//
//	func main() {
//	    m := piven.NewMLPModel(piven.DefaultParams())
//	    if err := m.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    iv, err := m.PredictIntervals(XTest)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(iv.Point, iv.Lower, iv.Upper)
//	}
//
// # Packages
//
//   - piven: Regressor, MLPModel, TransformedTargetRegressor, callbacks
//   - nn: dense layers, the Piven head, optimizers
//   - loss: the Piven objective and its gradient
//   - metrics: MAE, RMSE, R², coverage, interval width, Piven loss
//   - preprocessing: StandardScaler
//   - chart: prediction interval plots
//   - core/model: estimator interfaces, state and weight serialisation
//   - core/parallel: parallel processing utilities
//   - pkg/errors, pkg/log: error types and structured logging
//
// # Performance
//
// Inference on more than 2048 rows is split across all CPU cores. Training
// is single-threaded; each mini-batch is one matrix product per layer.
package piven
