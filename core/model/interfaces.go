// Package model provides the estimator contracts, fitted-state bookkeeping and
// artifact persistence shared by the encoder, the regressor and the pipeline.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Fitter
	Predictor
	Scorer
	LinearModel
}

// WeightExporter is implemented by models whose parameters can be moved in and
// out of a ModelWeights value, which is what gets persisted.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}
