// Package emissions estimates vehicle CO2 emissions with a linear model fitted
// on synthetic data, and serves the fitted model from a single artifact file.
//
// The model regresses emissions on fuel consumption, distance, engine size,
// a country emission factor and a one-hot encoded vehicle type. Training data
// is generated deterministically from a seed, so the same seed always yields
// the same dataset, split and coefficients.
//
// # Quick Start
//
// Train and save a model, then predict from the saved artifact:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//
//	    "github.com/YuminosukeSato/emissions/inference"
//	    "github.com/YuminosukeSato/emissions/training"
//	)
//
//	func main() {
//	    cfg := training.DefaultConfig()
//	    if _, err := training.Run(context.Background(), cfg, nil); err != nil {
//	        panic(err)
//	    }
//
//	    predictor, err := inference.Open(cfg.ArtifactPath)
//	    if err != nil {
//	        panic(err)
//	    }
//	    g, err := predictor.Predict(10, "car", 100, 2000, 2.5)
//	    if err != nil {
//	        panic(err)
//	    }
//	    fmt.Printf("%.2f g CO2\n", g)
//	}
//
// The same workflow is available from the command line:
//
//	emissions train --seed 42 --n-samples 1000 --model model/model.json
//	emissions predict --fuel-consumption 10 --vehicle-type car --distance 100 --engine-size 2000 --country-factor 2.5
//	emissions serve --addr :8080
//
// # Packages
//
//   - dataset: synthetic data generation, train/test split, CSV export
//   - preprocessing: one-hot encoding of the vehicle type
//   - linear: ordinary least squares with rank checking
//   - metrics: MSE, RMSE, MAE, R²
//   - pipeline: encoder + regressor as one fitted model, artifact save/load
//   - training: generate → split → fit → evaluate → save
//   - inference: read-only predictor over a loaded artifact
//   - core/model: estimator contracts and the checksummed artifact envelope
//   - core/parallel: chunked row loops
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//   - internal/config, internal/server: configuration and the HTTP API
//
// Unknown vehicle types are rejected at prediction time rather than encoded
// as all zeros.
package emissions
