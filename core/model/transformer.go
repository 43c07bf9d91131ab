package model

import "gonum.org/v1/gonum/mat"

// CategoricalTransformer はカテゴリ値（文字列）を数値行列に変換するインターフェース
type CategoricalTransformer interface {
	// Fit は変換に必要なカテゴリ集合を学習する
	Fit(values []string) error

	// Transform はカテゴリ値を行列に変換する
	Transform(values []string) (*mat.Dense, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(values []string) (*mat.Dense, error)
}
