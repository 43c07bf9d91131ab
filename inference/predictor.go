// Package inference は保存済みモデルを1度だけ読み込み、排出量の予測を提供する。
package inference

import (
	"time"

	"github.com/YuminosukeSato/emissions/dataset"
	"github.com/YuminosukeSato/emissions/pipeline"
	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// Predictor は学習済み Pipeline をラップした読み取り専用の予測器
//
// 内部状態を変更しないため、ロックなしで複数のゴルーチンから共有できる。
type Predictor struct {
	model *pipeline.Pipeline
}

// ModelInfo はAPIやCLIで表示するモデルのメタデータ
type ModelInfo struct {
	ArtifactID   string               `json:"artifact_id,omitempty"`
	Path         string               `json:"path,omitempty"`
	CreatedAt    *time.Time           `json:"created_at,omitempty"`
	FeatureNames []string             `json:"feature_names"`
	Categories   []string             `json:"categories"`
	Coefficients map[string]float64   `json:"coefficients"`
	Intercept    float64              `json:"intercept"`
	Provenance   *pipeline.Provenance `json:"provenance,omitempty"`
}

// Open はアーティファクトを読み込んで Predictor を作成する
func Open(path string) (*Predictor, error) {
	p, err := pipeline.Load(path)
	if err != nil {
		return nil, err
	}
	return New(p)
}

// New は学習済み Pipeline から Predictor を作成する
func New(p *pipeline.Pipeline) (*Predictor, error) {
	if p == nil {
		return nil, errors.NewValidationError("pipeline", "must not be nil", nil)
	}
	if err := p.RequireFitted("Predictor", "New"); err != nil {
		return nil, err
	}
	return &Predictor{model: p}, nil
}

// Predict は5つの入力値から排出量を予測する
func (pr *Predictor) Predict(fuelConsumption float64, vehicleType string, distance, engineSize, countryFactor float64) (float64, error) {
	return pr.PredictRow(dataset.Features{
		FuelConsumption: fuelConsumption,
		VehicleType:     vehicleType,
		Distance:        distance,
		EngineSize:      engineSize,
		CountryFactor:   countryFactor,
	})
}

// PredictRow は1行の排出量を予測する
func (pr *Predictor) PredictRow(row dataset.Features) (float64, error) {
	return pr.model.Predict(row)
}

// PredictBatch は複数行の排出量をまとめて予測する
func (pr *Predictor) PredictBatch(rows []dataset.Features) ([]float64, error) {
	return pr.model.PredictBatch(rows)
}

// Pipeline は内部の学習済みモデルを返す
func (pr *Predictor) Pipeline() *pipeline.Pipeline {
	return pr.model
}

// Model はモデルのメタデータを返す
func (pr *Predictor) Model() ModelInfo {
	info := pr.model.Info()
	out := ModelInfo{
		ArtifactID:   info.ArtifactID,
		Path:         info.Path,
		FeatureNames: pr.model.FeatureNames(),
		Categories:   pr.model.Categories(),
		Coefficients: pr.model.CoefficientMap(),
		Intercept:    pr.model.Intercept(),
		Provenance:   info.Provenance,
	}
	if !info.CreatedAt.IsZero() {
		created := info.CreatedAt
		out.CreatedAt = &created
	}
	return out
}
