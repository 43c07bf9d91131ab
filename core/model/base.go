package model

import "github.com/YuminosukeSato/emissions/pkg/errors"

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// String は状態名を返す
func (s EstimatorState) String() string {
	if s == Fitted {
		return "fitted"
	}
	return "not_fitted"
}

// BaseEstimator は全てのモデルの基底となる構造体
//
// 学習後は読み取り専用として扱う。学習済みモデルへの Fit の再実行は
// RequireUnfitted で拒否し、複数のゴルーチンからの同時予測を安全にする。
type BaseEstimator struct {
	state EstimatorState

	// 学習時に観測した形状
	nFeatures int
	nSamples  int
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定し、学習時の形状を記録する
func (e *BaseEstimator) SetFitted(nFeatures, nSamples int) {
	e.state = Fitted
	e.nFeatures = nFeatures
	e.nSamples = nSamples
}

// Dimensions は学習時の特徴量数とサンプル数を返す
func (e *BaseEstimator) Dimensions() (nFeatures, nSamples int) {
	return e.nFeatures, e.nSamples
}

// RequireFitted は未学習の場合に NotFittedError を返す
func (e *BaseEstimator) RequireFitted(modelName, method string) error {
	if !e.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// RequireUnfitted は学習済みモデルを再学習しようとした場合にエラーを返す
func (e *BaseEstimator) RequireUnfitted(modelName string) error {
	if e.IsFitted() {
		return errors.NewValidationError(modelName, "already fitted; fitted models are immutable, create a new instance to retrain", e.state.String())
	}
	return nil
}
