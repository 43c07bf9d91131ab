package pipeline

import (
	"io"
	"slices"

	"github.com/YuminosukeSato/emissions/core/model"
	"github.com/YuminosukeSato/emissions/linear"
	"github.com/YuminosukeSato/emissions/preprocessing"
	"github.com/YuminosukeSato/emissions/pkg/errors"
)

const (
	// ArtifactKind はアーティファクトの kind フィールドの値
	ArtifactKind = "EmissionPipeline"

	payloadVersion = "1.0"
)

type encoderState struct {
	Column     string   `json:"column"`
	Categories []string `json:"categories"`
}

// payload はアーティファクトに保存する内容。ファイル単体で特徴量の並びを復元できる。
type payload struct {
	Version      string              `json:"version"`
	FeatureNames []string            `json:"feature_names"`
	Encoder      encoderState        `json:"encoder"`
	Regressor    *model.ModelWeights `json:"regressor"`
	Rank         int                 `json:"rank"`
	Provenance   *Provenance         `json:"provenance,omitempty"`
}

// NewArtifact は学習済み Pipeline をアーティファクトに変換する
func NewArtifact(p *Pipeline, prov *Provenance) (*model.Artifact, error) {
	if err := p.RequireFitted(modelName, "Save"); err != nil {
		return nil, err
	}

	weights, err := p.regressor.ExportWeights()
	if err != nil {
		return nil, err
	}
	weights.Features = p.FeatureNames()

	return model.NewArtifact(ArtifactKind, payload{
		Version:      payloadVersion,
		FeatureNames: p.FeatureNames(),
		Encoder: encoderState{
			Column:     p.encoder.Column,
			Categories: p.encoder.Categories(),
		},
		Regressor:  weights,
		Rank:       p.rank,
		Provenance: prov.sanitized(),
	})
}

// Save は学習済み Pipeline をファイルにアトミックに保存する
//
// 戻り値のヘッダーにはアーティファクトIDとチェックサムが含まれる。
// ファイル操作の失敗は *errors.ArtifactError になる。
func Save(p *Pipeline, path string, prov *Provenance) (*model.ArtifactHeader, error) {
	a, err := NewArtifact(p, prov)
	if err != nil {
		return nil, errors.NewArtifactError("save", path, err)
	}
	if err := model.SaveArtifact(path, a); err != nil {
		return nil, err
	}
	return &a.ArtifactHeader, nil
}

// Write は学習済み Pipeline をアーティファクトとして w に書き出す
func Write(w io.Writer, p *Pipeline, prov *Provenance) (*model.ArtifactHeader, error) {
	a, err := NewArtifact(p, prov)
	if err != nil {
		return nil, err
	}
	if err := model.WriteArtifact(w, a); err != nil {
		return nil, err
	}
	return &a.ArtifactHeader, nil
}

// Load はファイルから Pipeline を復元する
//
// 形式・バージョン・チェックサムに加え、特徴量名がカテゴリと数値列から
// 再構成したレイアウトと一致するか、係数の数が一致するかを検証する。
// 失敗はすべて *errors.ArtifactError になる。
func Load(path string) (*Pipeline, error) {
	a, err := model.LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	p, err := FromArtifact(a)
	if err != nil {
		return nil, errors.NewArtifactError("load", path, err)
	}
	p.info.Path = path
	return p, nil
}

// Read は r からアーティファクトを読み込んで Pipeline を復元する
func Read(r io.Reader) (*Pipeline, error) {
	a, err := model.ReadArtifact(r)
	if err != nil {
		return nil, err
	}
	return FromArtifact(a)
}

// FromArtifact は検証済みアーティファクトから Pipeline を復元する
func FromArtifact(a *model.Artifact) (*Pipeline, error) {
	var pl payload
	if err := a.Decode(ArtifactKind, &pl); err != nil {
		return nil, err
	}
	if pl.Version != payloadVersion {
		return nil, errors.Newf("unsupported pipeline payload version %q", pl.Version)
	}
	if pl.Regressor == nil {
		return nil, errors.New("artifact has no regressor weights")
	}

	encoder, err := preprocessing.NewOneHotEncoderFromCategories(pl.Encoder.Column, pl.Encoder.Categories)
	if err != nil {
		return nil, err
	}

	expected := featureNames(encoder)
	if !slices.Equal(pl.FeatureNames, expected) {
		return nil, errors.Newf("feature names %v do not match layout %v", pl.FeatureNames, expected)
	}
	if len(pl.Regressor.Features) > 0 && !slices.Equal(pl.Regressor.Features, expected) {
		return nil, errors.Newf("regressor features %v do not match layout %v", pl.Regressor.Features, expected)
	}
	if len(pl.Regressor.Coefficients) != len(expected) {
		return nil, errors.NewDimensionError("pipeline.Load", len(expected), len(pl.Regressor.Coefficients), 1)
	}

	regressor := linear.NewLinearRegression()
	if err := regressor.ImportWeights(pl.Regressor); err != nil {
		return nil, err
	}
	if !regressor.FitIntercept() {
		return nil, errors.New("regressor must carry an intercept")
	}

	p := &Pipeline{
		encoder:      encoder,
		regressor:    regressor,
		featureNames: expected,
		rank:         pl.Rank,
		info: Info{
			ArtifactID: a.ID,
			CreatedAt:  a.CreatedAt,
			Provenance: pl.Provenance,
		},
	}
	_, nSamples := regressor.Dimensions()
	p.SetFitted(len(expected), nSamples)
	return p, nil
}
