// Package training は合成データの生成からモデルの保存までの学習処理を実行する。
package training

import (
	"context"
	"time"

	"github.com/YuminosukeSato/emissions/dataset"
	"github.com/YuminosukeSato/emissions/metrics"
	"github.com/YuminosukeSato/emissions/pipeline"
	"github.com/YuminosukeSato/emissions/pkg/errors"
	"github.com/YuminosukeSato/emissions/pkg/log"
)

// Config は学習の設定
type Config struct {
	Seed         int64   `mapstructure:"seed"`
	NSamples     int     `mapstructure:"n_samples"`
	TestSize     float64 `mapstructure:"test_size"`
	ArtifactPath string  `mapstructure:"artifact_path"`
	// PlotPath が空でなければ評価データの予測値と実測値の散布図を保存する
	PlotPath string `mapstructure:"plot_path"`
}

// DefaultConfig は既定の学習設定を返す
func DefaultConfig() Config {
	return Config{
		Seed:         42,
		NSamples:     1000,
		TestSize:     0.2,
		ArtifactPath: "model/model.json",
	}
}

// Validate は設定値を検証する
func (c Config) Validate() error {
	if c.NSamples <= 0 {
		return errors.NewValidationError("n_samples", "must be a positive integer", c.NSamples)
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewValidationError("test_size", "must be in the open interval (0, 1)", c.TestSize)
	}
	if c.ArtifactPath == "" {
		return errors.NewValidationError("artifact_path", "must not be empty", c.ArtifactPath)
	}
	return nil
}

// Report は学習結果のまとめ
type Report struct {
	ArtifactID   string             `json:"artifact_id"`
	ArtifactPath string             `json:"artifact_path"`
	Seed         int64              `json:"seed"`
	NSamples     int                `json:"n_samples"`
	TrainSamples int                `json:"train_samples"`
	TestSamples  int                `json:"test_samples"`
	Evaluation   metrics.Summary    `json:"evaluation"`
	FeatureNames []string           `json:"feature_names"`
	Coefficients map[string]float64 `json:"coefficients"`
	Intercept    float64            `json:"intercept"`
	PlotPath     string             `json:"plot_path,omitempty"`
	Duration     time.Duration      `json:"duration"`
}

// Run は データ生成 → 分割 → 学習 → 評価 → 保存 を順に実行する
//
// 各段階の前に ctx を確認し、キャンセルされていれば ctx.Err() を返す。
// エラーは再試行せずそのまま返す。
func Run(ctx context.Context, cfg Config, logger log.Logger) (*Report, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger = logger.With(
		log.ComponentKey, "training",
		log.RandomSeedKey, cfg.Seed,
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := dataset.Generate(cfg.Seed, cfg.NSamples)
	if err != nil {
		return nil, err
	}
	logger.Debug("Generated dataset",
		log.OperationKey, log.OperationGenerate,
		log.SamplesKey, len(ds.Samples),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	train, test, err := dataset.TrainTestSplit(ds, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	logger.Debug("Split dataset",
		log.OperationKey, log.OperationSplit,
		log.TrainSamplesKey, len(train),
		log.TestSamplesKey, len(test),
		log.TestSizeKey, cfg.TestSize,
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fitStart := time.Now()
	model := pipeline.New()
	if err := model.Fit(train); err != nil {
		logger.Error("Model training failed",
			log.OperationKey, log.OperationFit,
			log.ErrAttrKey, err,
		)
		return nil, err
	}
	logger.Info("Model trained",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, len(train),
		log.FeaturesKey, len(model.FeatureNames()),
		log.CategoriesKey, model.Categories(),
		log.RankKey, model.Rank(),
		log.DurationMsKey, time.Since(fitStart).Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	eval, err := model.Evaluate(test)
	if err != nil {
		return nil, err
	}
	logger.Info("Model evaluated",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseValidation,
		log.SamplesKey, eval.Samples,
		log.MSEKey, eval.MSE,
		log.RMSEKey, eval.RMSE,
		log.MAEKey, eval.MAE,
		log.R2ScoreKey, eval.R2,
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, err := pipeline.Save(model, cfg.ArtifactPath, &pipeline.Provenance{
		Seed:         cfg.Seed,
		NSamples:     cfg.NSamples,
		TestSize:     cfg.TestSize,
		TrainSamples: len(train),
		TestSamples:  len(test),
		Evaluation:   &eval,
	})
	if err != nil {
		logger.Error("Failed to save model",
			log.OperationKey, log.OperationSave,
			log.ArtifactPathKey, cfg.ArtifactPath,
			log.ErrAttrKey, err,
		)
		return nil, err
	}
	logger.Info("Model saved",
		log.OperationKey, log.OperationSave,
		log.ArtifactIDKey, header.ID,
		log.ArtifactPathKey, cfg.ArtifactPath,
	)

	report := &Report{
		ArtifactID:   header.ID,
		ArtifactPath: cfg.ArtifactPath,
		Seed:         cfg.Seed,
		NSamples:     cfg.NSamples,
		TrainSamples: len(train),
		TestSamples:  len(test),
		Evaluation:   eval,
		FeatureNames: model.FeatureNames(),
		Coefficients: model.CoefficientMap(),
		Intercept:    model.Intercept(),
	}

	if cfg.PlotPath != "" {
		predicted, err := model.PredictBatch(dataset.Rows(test))
		if err != nil {
			return nil, err
		}
		if err := WritePredictionPlot(cfg.PlotPath, dataset.Targets(test), predicted); err != nil {
			logger.Warn("Failed to write prediction plot",
				log.ArtifactPathKey, cfg.PlotPath,
				log.ErrAttrKey, err,
			)
		} else {
			report.PlotPath = cfg.PlotPath
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}
