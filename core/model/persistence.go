package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/emissions/pkg/errors"
)

const (
	// ArtifactFormat はアーティファクトファイルの識別子
	ArtifactFormat = "emissions-artifact"
	// ArtifactFormatVersion はエンベロープ形式のバージョン
	ArtifactFormatVersion = "1.0"
)

// ArtifactHeader はアーティファクトのメタデータ
type ArtifactHeader struct {
	Format        string    `json:"format"`
	FormatVersion string    `json:"format_version"`
	Kind          string    `json:"kind"`
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	// Checksum はコンパクト化したペイロードの SHA-256（16進）
	Checksum string `json:"checksum"`
}

// Artifact は学習済みモデルを1ファイルに保存するためのエンベロープ
//
// ペイロードはモデル種別ごとのJSONで、Checksum により途中で切れたファイルや
// 改ざんされたファイルを読み込み時に検出する。
type Artifact struct {
	ArtifactHeader
	Payload json.RawMessage `json:"payload"`
}

// NewArtifact はペイロードをシリアライズし、IDとチェックサムを付与したアーティファクトを作成する
//
// パラメータ:
//   - kind: ペイロードの種類（例: "EmissionPipeline"）
//   - payload: JSONにシリアライズ可能な値
//
// 戻り値:
//   - *Artifact: 新しいアーティファクト
//   - error: シリアライズに失敗した場合のエラー
func NewArtifact(kind string, payload interface{}) (*Artifact, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s payload", kind)
	}

	sum, err := checksum(raw)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		ArtifactHeader: ArtifactHeader{
			Format:        ArtifactFormat,
			FormatVersion: ArtifactFormatVersion,
			Kind:          kind,
			ID:            uuid.NewString(),
			CreatedAt:     time.Now().UTC(),
			Checksum:      sum,
		},
		Payload: raw,
	}, nil
}

// Verify はエンベロープの形式とチェックサムを検証する
func (a *Artifact) Verify() error {
	if a.Format != ArtifactFormat {
		return errors.Newf("unexpected artifact format %q", a.Format)
	}
	if a.FormatVersion != ArtifactFormatVersion {
		return errors.Newf("unsupported artifact format version %q", a.FormatVersion)
	}
	if len(a.Payload) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "artifact has no payload")
	}

	sum, err := checksum(a.Payload)
	if err != nil {
		return err
	}
	if sum != a.Checksum {
		return errors.Wrapf(errors.ErrChecksumMismatch, "expected %s, computed %s", a.Checksum, sum)
	}
	return nil
}

// Decode は検証済みのペイロードを into にデコードする
func (a *Artifact) Decode(kind string, into interface{}) error {
	if a.Kind != kind {
		return errors.Newf("artifact kind %q, want %q", a.Kind, kind)
	}
	if err := a.Verify(); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(a.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return errors.Wrapf(err, "failed to decode %s payload", kind)
	}
	return nil
}

// WriteArtifact はアーティファクトを w に書き出す
func WriteArtifact(w io.Writer, a *Artifact) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(a); err != nil {
		return errors.Wrap(err, "failed to encode artifact")
	}
	return nil
}

// ReadArtifact は r からアーティファクトを読み込み、検証する
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, errors.Wrap(err, "failed to decode artifact")
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveArtifact はアーティファクトをファイルにアトミックに保存する
//
// 同じディレクトリの一時ファイルに書き込み、fsync してから rename する。
// 途中で失敗しても path には以前の内容が残るか、何も存在しない。
// 失敗はすべて *errors.ArtifactError として返す。
//
// 使用例:
//
//	artifact, err := model.NewArtifact("EmissionPipeline", payload)
//	err = model.SaveArtifact("model/model.json", artifact)
func SaveArtifact(path string, a *Artifact) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewArtifactError("save", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.NewArtifactError("save", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = WriteArtifact(tmp, a); err != nil {
		return errors.NewArtifactError("save", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return errors.NewArtifactError("save", path, err)
	}
	if err = tmp.Close(); err != nil {
		return errors.NewArtifactError("save", path, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return errors.NewArtifactError("save", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return errors.NewArtifactError("save", path, err)
	}

	syncDir(dir)
	return nil
}

// LoadArtifact はファイルからアーティファクトを読み込み、検証する
func LoadArtifact(path string) (*Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewArtifactError("load", path, err)
	}
	defer file.Close()

	a, err := ReadArtifact(file)
	if err != nil {
		return nil, errors.NewArtifactError("load", path, err)
	}
	return a, nil
}

func checksum(raw []byte) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", errors.Wrap(err, "payload is not valid JSON")
	}
	sum := sha256.Sum256(compact.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// syncDir flushes the rename to disk where the platform allows opening directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
