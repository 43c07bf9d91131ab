package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emissions/core/model"
	"github.com/YuminosukeSato/emissions/core/parallel"
	"github.com/YuminosukeSato/emissions/metrics"
	"github.com/YuminosukeSato/emissions/pkg/errors"
)

const (
	modelType    = "LinearRegression"
	modelVersion = "1.0"

	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	defaultParallelThreshold = 1000

	// ランク判定に使う相対許容誤差の既定値
	defaultTol = 1e-10
)

// LinearRegression は最小二乗法による線形回帰モデル
//
// 設計行列のSVDでランクを確認し、フルランクの場合のみQR分解で解く。
// ランク落ちの場合は疑似逆行列で解を選ばず RankDeficientError を返す。
type LinearRegression struct {
	model.BaseEstimator
	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
	NFeatures int           // 特徴量の数

	fitIntercept      bool
	tol               float64
	parallelThreshold int

	rank     int
	singular []float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
//
// 使用例:
//
//	lr := linear.NewLinearRegression(linear.WithFitIntercept(false))
//	err := lr.Fit(X, y)
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		fitIntercept:      true,
		tol:               defaultTol,
		parallelThreshold: defaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
//
// パラメータ:
//   - X: 特徴量行列 (n_samples × n_features)
//   - y: 目的変数 (n_samples × 1)
//
// 戻り値:
//   - error: 入力が空・非有限・形状不一致の場合、または設計行列がランク落ちの場合のエラー
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	return errors.SafeExecute("LinearRegression.Fit", func() error {
		return lr.fit(X, y)
	})
}

func (lr *LinearRegression) fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v := y.At(i, 0)
		if err := errors.CheckFinite("y", v); err != nil {
			return err
		}
		yVec.SetVec(i, v)
	}

	design, err := lr.designMatrix(X)
	if err != nil {
		return err
	}
	_, cols := design.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDNone); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	singular := svd.Values(nil)
	rank := numericalRank(singular, lr.tol)
	if rank < cols {
		return errors.NewRankDeficientError("LinearRegression.Fit", rank, cols, conditionNumber(singular))
	}

	var qr mat.QR
	qr.Factorize(design)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, yVec); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "least squares solve failed", err)
	}
	if err := errors.CheckNumericalStability("coefficients", coef.RawVector().Data, 0); err != nil {
		return err
	}

	offset := 0
	lr.Intercept = 0
	if lr.fitIntercept {
		lr.Intercept = coef.AtVec(0)
		offset = 1
	}
	lr.Weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.Weights.SetVec(j, coef.AtVec(j+offset))
	}

	lr.NFeatures = c
	lr.rank = rank
	lr.singular = singular
	lr.SetFitted(c, r)

	return nil
}

// designMatrix は X をコピーし、必要なら先頭に切片用の 1 の列を追加する
func (lr *LinearRegression) designMatrix(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	design := mat.NewDense(r, c+offset, nil)

	errs := make([]error, r)
	parallel.ParallelizeWithThreshold(r, lr.parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if offset == 1 {
				design.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				v := X.At(i, j)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					errs[i] = errors.NewValidationError("X", "must contain only finite values", v)
					break
				}
				design.Set(i, j+offset, v)
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return design, nil
}

// numericalRank は tol*σmax を超える特異値の数を返す
func numericalRank(singular []float64, tol float64) int {
	if len(singular) == 0 || singular[0] == 0 {
		return 0
	}
	if tol <= 0 {
		tol = defaultTol
	}
	cutoff := tol * singular[0]
	rank := 0
	for _, s := range singular {
		if s > cutoff {
			rank++
		}
	}
	return rank
}

func conditionNumber(singular []float64) float64 {
	if len(singular) == 0 {
		return math.Inf(1)
	}
	smallest := singular[len(singular)-1]
	if smallest == 0 {
		return math.Inf(1)
	}
	return singular[0] / smallest
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.RequireFitted(modelType, "Predict"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	// y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, lr.parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := lr.Intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * lr.Weights.AtVec(j)
			}
			predictions.Set(i, 0, pred)
		}
	})

	return predictions, nil
}

// GetWeights は学習された重み（係数）のコピーを返す
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	weights := make([]float64, lr.Weights.Len())
	for i := range weights {
		weights[i] = lr.Weights.AtVec(i)
	}
	return weights
}

// GetIntercept は学習された切片を返す
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.Intercept
}

// FitIntercept は切片を推定する設定かどうかを返す
func (lr *LinearRegression) FitIntercept() bool {
	return lr.fitIntercept
}

// Rank は学習時の設計行列のランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank
}

// SingularValues は学習時の設計行列の特異値（降順）を返す
func (lr *LinearRegression) SingularValues() []float64 {
	out := make([]float64, len(lr.singular))
	copy(out, lr.singular)
	return out
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	r, _ := y.Dims()
	rp, _ := yPred.Dims()
	if r != rp {
		return 0, errors.NewDimensionError("LinearRegression.Score", rp, r, 0)
	}

	yTrue := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yTrue.SetVec(i, y.At(i, 0))
	}
	return metrics.R2Score(yTrue, mat.VecDenseCopyOf(yPred.(*mat.Dense).ColView(0)))
}

// ExportWeights はモデルの重みをシリアライズ可能な形で返す
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.RequireFitted(modelType, "ExportWeights"); err != nil {
		return nil, err
	}

	_, nSamples := lr.Dimensions()
	return &model.ModelWeights{
		ModelType:    modelType,
		Version:      modelVersion,
		Coefficients: lr.GetWeights(),
		Intercept:    lr.Intercept,
		Hyperparameters: map[string]interface{}{
			"fit_intercept": lr.fitIntercept,
			"tol":           lr.tol,
		},
		Metadata: map[string]interface{}{
			"n_samples": nSamples,
			"rank":      lr.rank,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights は保存された重みからモデルを復元する
//
// 復元したモデルは学習済みとして扱われる。特異値は保存されないため空になる。
func (lr *LinearRegression) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValidationError("weights", "must not be nil", nil)
	}
	if weights.ModelType != modelType {
		return errors.NewValidationError("model_type", "unexpected model type", weights.ModelType)
	}
	if err := weights.Validate(); err != nil {
		return errors.NewModelError("LinearRegression.ImportWeights", "invalid weights", err)
	}
	if !weights.IsFitted {
		return errors.NewNotFittedError(modelType, "ImportWeights")
	}

	if fit, ok := weights.Hyperparameters["fit_intercept"].(bool); ok {
		lr.fitIntercept = fit
	}
	if tol, ok := weights.Hyperparameters["tol"].(float64); ok {
		lr.tol = tol
	}

	c := len(weights.Coefficients)
	coef := make([]float64, c)
	copy(coef, weights.Coefficients)
	lr.Weights = mat.NewVecDense(c, coef)
	lr.Intercept = weights.Intercept
	lr.NFeatures = c
	lr.rank = c
	if lr.fitIntercept {
		lr.rank++
	}
	lr.singular = nil

	nSamples := 0
	if n, ok := weights.Metadata["n_samples"].(float64); ok {
		nSamples = int(n)
	} else if n, ok := weights.Metadata["n_samples"].(int); ok {
		nSamples = n
	}
	lr.SetFitted(c, nSamples)
	return nil
}

var (
	_ model.Regressor      = (*LinearRegression)(nil)
	_ model.WeightExporter = (*LinearRegression)(nil)
)
