// Package dataset は車両の CO2 排出量を模した合成データセットを生成する。
//
// 同じシードとサンプル数からは常にビット単位で同一のデータセットが得られる。
package dataset

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// 列名。CSV のヘッダーと特徴量名に使う。
const (
	ColFuelConsumption = "fuel_consumption"
	ColVehicleType     = "vehicle_type"
	ColDistance        = "distance"
	ColEngineSize      = "engine_size"
	ColCountryFactor   = "country_factor"
	ColEmissions       = "emissions"
)

// NumericColumns は数値特徴量の列名（特徴量レイアウトの順序）
var NumericColumns = []string{ColFuelConsumption, ColDistance, ColEngineSize, ColCountryFactor}

// VehicleTypes は生成器が出力する車種。インデックスが乱数の出力に対応する。
var VehicleTypes = []string{"car", "truck", "bus"}

// 各特徴量の一様分布の範囲
const (
	FuelMin, FuelMax         = 5.0, 20.0
	DistanceMin, DistanceMax = 10.0, 500.0
	EngineMin, EngineMax     = 1000.0, 5000.0
	CountryMin, CountryMax   = 1.0, 5.0

	// NoiseSigma は目的変数に加える正規ノイズの標準偏差
	NoiseSigma = 5.0
)

// Features は1台分の入力特徴量（推論時の入力行）
type Features struct {
	FuelConsumption float64 `json:"fuel_consumption"` // L/100km
	VehicleType     string  `json:"vehicle_type"`
	Distance        float64 `json:"distance"`    // km
	EngineSize      float64 `json:"engine_size"` // cc
	CountryFactor   float64 `json:"country_factor"`
}

// Validate は推論・学習に使える行かどうかを検証する
//
// VehicleType が空の場合は InputShapeError、数値が非有限の場合は ValidationError を返す。
// カテゴリが既知かどうかはエンコーダーが判定する。
func (f Features) Validate(phase string) error {
	if f.VehicleType == "" {
		return errors.NewInputShapeError(phase, ColVehicleType, "non-empty string", "empty string")
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{ColFuelConsumption, f.FuelConsumption},
		{ColDistance, f.Distance},
		{ColEngineSize, f.EngineSize},
		{ColCountryFactor, f.CountryFactor},
	} {
		if err := errors.CheckFinite(field.name, field.value); err != nil {
			return err
		}
	}
	return nil
}

// Numeric は数値特徴量を NumericColumns の順で返す
func (f Features) Numeric() [4]float64 {
	return [4]float64{f.FuelConsumption, f.Distance, f.EngineSize, f.CountryFactor}
}

// Sample は特徴量と目的変数（排出量）の組
type Sample struct {
	Features
	Emissions float64 `json:"emissions"`
}

// Dataset は生成されたサンプル集合
type Dataset struct {
	Samples  []Sample
	Seed     int64
	NSamples int
}

// Emission は排出量の決定的な部分 2.3·fuel + engine/1000 + 10·country を返す
//
// 距離は目的変数の式に含まれない。
func Emission(fuel, engine, country float64) float64 {
	return 2.3*fuel + engine/1000 + 10*country
}

// Generate は合成データセットを生成する
//
// パラメータ:
//   - seed: 乱数シード
//   - nSamples: サンプル数（1以上）
//
// 戻り値:
//   - *Dataset: 生成されたデータセット
//   - error: nSamples が0以下の場合の ValidationError
//
// 乱数は列ごとに引く。燃費をすべて引いてから車種、距離、排気量、国係数、
// 最後にノイズの順で、1つの PCG ソースを共有する。
func Generate(seed int64, nSamples int) (*Dataset, error) {
	if nSamples <= 0 {
		return nil, errors.NewValidationError("n_samples", "must be a positive integer", nSamples)
	}

	src := rand.NewPCG(uint64(seed), uint64(seed))
	rng := rand.New(src)

	uniform := func(lo, hi float64) []float64 {
		dist := distuv.Uniform{Min: lo, Max: hi, Src: src}
		out := make([]float64, nSamples)
		for i := range out {
			out[i] = dist.Rand()
		}
		return out
	}

	fuel := uniform(FuelMin, FuelMax)
	vehicles := make([]string, nSamples)
	for i := range vehicles {
		vehicles[i] = VehicleTypes[rng.IntN(len(VehicleTypes))]
	}
	distance := uniform(DistanceMin, DistanceMax)
	engine := uniform(EngineMin, EngineMax)
	country := uniform(CountryMin, CountryMax)

	noise := distuv.Normal{Mu: 0, Sigma: NoiseSigma, Src: src}

	samples := make([]Sample, nSamples)
	for i := range samples {
		samples[i] = Sample{
			Features: Features{
				FuelConsumption: fuel[i],
				VehicleType:     vehicles[i],
				Distance:        distance[i],
				EngineSize:      engine[i],
				CountryFactor:   country[i],
			},
			Emissions: Emission(fuel[i], engine[i], country[i]) + noise.Rand(),
		}
	}

	return &Dataset{Samples: samples, Seed: seed, NSamples: nSamples}, nil
}

// Targets は排出量を Samples の順で返す
func (d *Dataset) Targets() []float64 {
	return Targets(d.Samples)
}

// Rows は特徴量を Samples の順で返す
func (d *Dataset) Rows() []Features {
	return Rows(d.Samples)
}

// Targets はサンプルの排出量を取り出す
func Targets(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Emissions
	}
	return out
}

// Rows はサンプルの特徴量を取り出す
func Rows(samples []Sample) []Features {
	out := make([]Features, len(samples))
	for i, s := range samples {
		out[i] = s.Features
	}
	return out
}

// VehicleTypesOf はサンプルの車種を取り出す
func VehicleTypesOf(samples []Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.VehicleType
	}
	return out
}
