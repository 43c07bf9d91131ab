package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emissions/core/model"
	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// OneHotEncoder は1つのカテゴリ列をワンホット表現に変換するエンコーダー
//
// カテゴリは学習データに出現した値を辞書順に並べたもので、出力列もこの順になる。
// 学習時に見ていない値は0ベクトルにせず UnknownCategoryError を返す。
type OneHotEncoder struct {
	model.BaseEstimator

	// Column は特徴量名の接頭辞に使う列名
	Column string

	categories []string
	index      map[string]int
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
//
// パラメータ:
//   - column: エンコード対象の列名（例: "vehicle_type"）
//
// 使用例:
//
//	enc := preprocessing.NewOneHotEncoder("vehicle_type")
//	err := enc.Fit([]string{"car", "truck", "bus"})
//	X, err := enc.Transform([]string{"truck"})
func NewOneHotEncoder(column string) *OneHotEncoder {
	return &OneHotEncoder{Column: column}
}

// NewOneHotEncoderFromCategories は保存済みのカテゴリ集合から学習済みのエンコーダーを復元する
//
// categories は空でなく、重複がなく、辞書順に並んでいる必要がある。
func NewOneHotEncoderFromCategories(column string, categories []string) (*OneHotEncoder, error) {
	if len(categories) == 0 {
		return nil, errors.NewValidationError("categories", "must not be empty", categories)
	}
	for i, c := range categories {
		if c == "" {
			return nil, errors.NewValidationError("categories", "must not contain empty values", categories)
		}
		if i > 0 && categories[i-1] >= c {
			return nil, errors.NewValidationError("categories", "must be unique and sorted", categories)
		}
	}

	enc := NewOneHotEncoder(column)
	enc.setCategories(append([]string(nil), categories...), 0)
	return enc, nil
}

// Fit は訓練データに出現するカテゴリを学習する
//
// パラメータ:
//   - values: カテゴリ値のスライス
//
// 戻り値:
//   - error: values が空、または空文字列を含む場合のエラー
func (e *OneHotEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]struct{})
	for _, v := range values {
		if v == "" {
			return errors.NewInputShapeError("training", e.Column, "non-empty category", "empty string")
		}
		seen[v] = struct{}{}
	}

	categories := make([]string, 0, len(seen))
	for v := range seen {
		categories = append(categories, v)
	}
	sort.Strings(categories)

	e.setCategories(categories, len(values))
	return nil
}

func (e *OneHotEncoder) setCategories(categories []string, nSamples int) {
	e.categories = categories
	e.index = make(map[string]int, len(categories))
	for i, c := range categories {
		e.index[c] = i
	}
	e.SetFitted(len(categories), nSamples)
}

// Transform はカテゴリ値を (len(values) × カテゴリ数) のワンホット行列に変換する
func (e *OneHotEncoder) Transform(values []string) (*mat.Dense, error) {
	if err := e.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(len(values), len(e.categories), nil)
	for i, v := range values {
		if err := e.EncodeInto(out.RawRowView(i), v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FitTransform はFitとTransformを同時に実行する
func (e *OneHotEncoder) FitTransform(values []string) (*mat.Dense, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// EncodeInto は1つの値のワンホット表現を dst に書き込む
//
// dst の長さはカテゴリ数と一致している必要がある。1行ずつ推論する経路で
// 行列を確保せずに済ませるために使う。
func (e *OneHotEncoder) EncodeInto(dst []float64, value string) error {
	if err := e.RequireFitted("OneHotEncoder", "EncodeInto"); err != nil {
		return err
	}
	if len(dst) != len(e.categories) {
		return errors.NewDimensionError("OneHotEncoder.EncodeInto", len(e.categories), len(dst), 1)
	}
	if value == "" {
		return errors.NewInputShapeError("prediction", e.Column, "non-empty category", "empty string")
	}

	idx, ok := e.index[value]
	if !ok {
		return errors.NewUnknownCategoryError(e.Column, value, e.categories)
	}
	for j := range dst {
		dst[j] = 0
	}
	dst[idx] = 1
	return nil
}

// Index はカテゴリの出力列番号を返す
func (e *OneHotEncoder) Index(value string) (int, bool) {
	idx, ok := e.index[value]
	return idx, ok
}

// Categories は学習済みカテゴリ（辞書順）のコピーを返す
func (e *OneHotEncoder) Categories() []string {
	return append([]string(nil), e.categories...)
}

// NumOutputs は出力列数（カテゴリ数）を返す
func (e *OneHotEncoder) NumOutputs() int {
	return len(e.categories)
}

// FeatureNames は出力列の名前を "<column>_<category>" の形式で返す
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, len(e.categories))
	for i, c := range e.categories {
		names[i] = fmt.Sprintf("%s_%s", e.Column, c)
	}
	return names
}

// MissingFrom は expected のうち学習データに出現しなかったカテゴリを返す
func (e *OneHotEncoder) MissingFrom(expected []string) []string {
	var missing []string
	for _, c := range expected {
		if _, ok := e.index[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

var _ model.CategoricalTransformer = (*OneHotEncoder)(nil)
