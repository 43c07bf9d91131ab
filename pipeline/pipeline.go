// Package pipeline は車種のワンホット化と線形回帰を1つの学習済みモデルにまとめる。
//
// 学習済みの Pipeline は読み取り専用で、複数のゴルーチンから同時に Predict できる。
package pipeline

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emissions/core/model"
	"github.com/YuminosukeSato/emissions/dataset"
	"github.com/YuminosukeSato/emissions/linear"
	"github.com/YuminosukeSato/emissions/metrics"
	"github.com/YuminosukeSato/emissions/preprocessing"
	"github.com/YuminosukeSato/emissions/pkg/errors"
)

const modelName = "Pipeline"

// Pipeline は OneHotEncoder と LinearRegression を組み合わせた学習済みモデル
//
// 特徴量の並びは [vehicle_type_<カテゴリ>..., fuel_consumption, distance,
// engine_size, country_factor] で、カテゴリは辞書順。
type Pipeline struct {
	model.BaseEstimator

	encoder      *preprocessing.OneHotEncoder
	regressor    *linear.LinearRegression
	featureNames []string

	// 学習時の設計行列のランク（読み込んだモデルでは特徴量数）
	rank int

	info Info
}

// Info は保存・読み込みに関するメタデータ
type Info struct {
	ArtifactID string      `json:"artifact_id,omitempty"`
	Path       string      `json:"path,omitempty"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// Provenance は学習条件と評価結果
type Provenance struct {
	Seed         int64            `json:"seed"`
	NSamples     int              `json:"n_samples"`
	TestSize     float64          `json:"test_size"`
	TrainSamples int              `json:"train_samples"`
	TestSamples  int              `json:"test_samples"`
	Evaluation   *metrics.Summary `json:"evaluation,omitempty"`
}

// New は未学習の Pipeline を作成する
func New() *Pipeline {
	return &Pipeline{}
}

// Fit は学習データでエンコーダーと回帰モデルを学習する
//
// パラメータ:
//   - samples: 学習用サンプル（評価用データを含めないこと）
//
// 戻り値:
//   - error: 入力が不正な場合、設計行列がランク落ちの場合、または学習済みの場合のエラー
//
// 回帰は切片なしで解く。ワンホット列の和が定数列になるため、切片を加えると
// 設計行列は必ずランク落ちする。得られたカテゴリごとの基準値を、平均を切片、
// 平均からの差をカテゴリ係数として表し直す（カテゴリ係数の和は0）。予測値は変わらない。
func (p *Pipeline) Fit(samples []dataset.Sample) error {
	if err := p.RequireUnfitted(modelName); err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.NewValidationError("samples", "must contain at least one sample", 0)
	}
	for i, s := range samples {
		if err := s.Validate("training"); err != nil {
			return errors.Wrapf(err, "sample %d", i)
		}
		if err := errors.CheckFinite(dataset.ColEmissions, s.Emissions); err != nil {
			return errors.Wrapf(err, "sample %d", i)
		}
	}

	encoder := preprocessing.NewOneHotEncoder(dataset.ColVehicleType)
	if err := encoder.Fit(dataset.VehicleTypesOf(samples)); err != nil {
		return err
	}
	if missing := encoder.MissingFrom(dataset.VehicleTypes); len(missing) > 0 {
		errors.Warn(errors.NewMissingCategoryWarning(dataset.ColVehicleType, missing))
	}

	names := featureNames(encoder)
	X, err := encodeRows(encoder, dataset.Rows(samples))
	if err != nil {
		return err
	}
	y := mat.NewDense(len(samples), 1, dataset.Targets(samples))

	baseline := linear.NewLinearRegression(linear.WithFitIntercept(false))
	if err := baseline.Fit(X, y); err != nil {
		return err
	}

	weights, err := centerCategories(baseline, encoder.NumOutputs(), names)
	if err != nil {
		return err
	}
	regressor := linear.NewLinearRegression()
	if err := regressor.ImportWeights(weights); err != nil {
		return err
	}

	p.encoder = encoder
	p.regressor = regressor
	p.featureNames = names
	p.rank = baseline.Rank()
	p.SetFitted(len(names), len(samples))
	return nil
}

// centerCategories はカテゴリ係数の平均を切片に移した重みを作る
func centerCategories(lr *linear.LinearRegression, k int, names []string) (*model.ModelWeights, error) {
	exported, err := lr.ExportWeights()
	if err != nil {
		return nil, err
	}
	coef := exported.Coefficients

	var intercept float64
	for j := 0; j < k; j++ {
		intercept += coef[j]
	}
	intercept /= float64(k)
	for j := 0; j < k; j++ {
		coef[j] -= intercept
	}

	exported.Coefficients = coef
	exported.Intercept = intercept
	exported.Features = names
	exported.Hyperparameters["fit_intercept"] = true
	return exported, nil
}

func featureNames(encoder *preprocessing.OneHotEncoder) []string {
	names := encoder.FeatureNames()
	return append(names, dataset.NumericColumns...)
}

func encodeRows(encoder *preprocessing.OneHotEncoder, rows []dataset.Features) (*mat.Dense, error) {
	k := encoder.NumOutputs()
	X := mat.NewDense(len(rows), k+len(dataset.NumericColumns), nil)
	for i, row := range rows {
		if err := encodeInto(encoder, X.RawRowView(i), row); err != nil {
			return nil, err
		}
	}
	return X, nil
}

func encodeInto(encoder *preprocessing.OneHotEncoder, dst []float64, row dataset.Features) error {
	k := encoder.NumOutputs()
	if err := encoder.EncodeInto(dst[:k], row.VehicleType); err != nil {
		return err
	}
	numeric := row.Numeric()
	copy(dst[k:], numeric[:])
	return nil
}

// Encode は1行を学習時と同じ特徴量レイアウトのベクトルに変換する
func (p *Pipeline) Encode(row dataset.Features) (*mat.VecDense, error) {
	if err := p.RequireFitted(modelName, "Encode"); err != nil {
		return nil, err
	}
	if err := row.Validate("prediction"); err != nil {
		return nil, err
	}

	data := make([]float64, len(p.featureNames))
	if err := encodeInto(p.encoder, data, row); err != nil {
		return nil, err
	}
	return mat.NewVecDense(len(data), data), nil
}

// Predict は1行の排出量を予測する
//
// Pipeline を変更しないため、同じ入力には常に同じ値を返す。
func (p *Pipeline) Predict(row dataset.Features) (float64, error) {
	x, err := p.Encode(row)
	if err != nil {
		return 0, err
	}

	pred, err := p.regressor.Predict(x.T())
	if err != nil {
		return 0, err
	}
	y := pred.At(0, 0)
	if err := errors.CheckScalar("prediction", y, 0); err != nil {
		return 0, err
	}
	return y, nil
}

// PredictBatch は複数行の排出量をまとめて予測する
//
// いずれかの行が不正な場合はその行番号を付けたエラーを返し、部分的な結果は返さない。
func (p *Pipeline) PredictBatch(rows []dataset.Features) ([]float64, error) {
	if err := p.RequireFitted(modelName, "PredictBatch"); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []float64{}, nil
	}
	for i, row := range rows {
		if err := row.Validate("prediction"); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
	}

	X, err := encodeRows(p.encoder, rows)
	if err != nil {
		return nil, err
	}
	pred, err := p.regressor.Predict(X)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for i := range out {
		out[i] = pred.At(i, 0)
	}
	if err := errors.CheckNumericalStability("prediction", out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// Evaluate は評価用サンプルに対する MSE, RMSE, MAE, R² を計算する
func (p *Pipeline) Evaluate(samples []dataset.Sample) (metrics.Summary, error) {
	if len(samples) == 0 {
		return metrics.Summary{}, errors.NewValidationError("samples", "must contain at least one sample", 0)
	}
	pred, err := p.PredictBatch(dataset.Rows(samples))
	if err != nil {
		return metrics.Summary{}, err
	}
	targets := dataset.Targets(samples)
	return metrics.Summarize(mat.NewVecDense(len(targets), targets), mat.NewVecDense(len(pred), pred))
}

// FeatureNames は特徴量名をレイアウト順で返す
func (p *Pipeline) FeatureNames() []string {
	return append([]string(nil), p.featureNames...)
}

// Categories は学習済みの車種カテゴリ（辞書順）を返す
func (p *Pipeline) Categories() []string {
	if p.encoder == nil {
		return nil
	}
	return p.encoder.Categories()
}

// Coefficients は特徴量名と同じ順序の係数を返す
func (p *Pipeline) Coefficients() []float64 {
	if p.regressor == nil {
		return nil
	}
	return p.regressor.GetWeights()
}

// CoefficientMap は特徴量名から係数への対応を返す
func (p *Pipeline) CoefficientMap() map[string]float64 {
	coef := p.Coefficients()
	out := make(map[string]float64, len(coef))
	for i, name := range p.featureNames {
		out[name] = coef[i]
	}
	return out
}

// Intercept は切片を返す
func (p *Pipeline) Intercept() float64 {
	if p.regressor == nil {
		return 0
	}
	return p.regressor.GetIntercept()
}

// Rank は学習時の設計行列のランクを返す
func (p *Pipeline) Rank() int {
	return p.rank
}

// Info は保存・読み込み時に付与されたメタデータを返す
func (p *Pipeline) Info() Info {
	return p.info
}

func (prov *Provenance) sanitized() *Provenance {
	if prov == nil {
		return nil
	}
	out := *prov
	if e := out.Evaluation; e != nil {
		for _, v := range []float64{e.MSE, e.RMSE, e.MAE, e.R2} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				out.Evaluation = nil
				break
			}
		}
	}
	return &out
}
