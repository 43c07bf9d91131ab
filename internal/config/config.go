package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// EnvPrefix is prepended to every environment override, e.g. EMISSIONS_SERVER_ADDR.
const EnvPrefix = "EMISSIONS"

type Config struct {
	Training TrainingConfig `mapstructure:"training"`
	Model    ModelConfig    `mapstructure:"model"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type TrainingConfig struct {
	Seed     int64   `mapstructure:"seed"`
	NSamples int     `mapstructure:"n_samples"`
	TestSize float64 `mapstructure:"test_size"`
	PlotPath string  `mapstructure:"plot_path"`
}

type ModelConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var defaults = map[string]interface{}{
	"training.seed":           42,
	"training.n_samples":      1000,
	"training.test_size":      0.2,
	"training.plot_path":      "",
	"model.path":              "model/model.json",
	"server.addr":             ":8080",
	"server.read_timeout":     10 * time.Second,
	"server.write_timeout":    10 * time.Second,
	"server.shutdown_timeout": 15 * time.Second,
	"server.max_body_bytes":   1 << 20,
	"log.level":               "info",
	"log.format":              "console",
	"log.file":                "",
	"log.max_size_mb":         100,
	"log.max_backups":         3,
	"log.max_age_days":        28,
}

// LoadConfig reads the optional config file at path (YAML, JSON or TOML),
// a .env file in the working directory if present, and EMISSIONS_* variables.
// Precedence: environment > file > defaults.
func LoadConfig(path string) (*Config, error) {
	return Load(viper.New(), path, ".env")
}

// Load is LoadConfig with an explicit viper instance and dotenv file.
// An empty dotenvPath skips .env loading.
func Load(v *viper.Viper, path, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to load %s", dotenvPath)
		}
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks value ranges. Log level and format are checked by log.Setup.
func (c *Config) Validate() error {
	if c.Training.NSamples <= 0 {
		return errors.NewValidationError("training.n_samples", "must be a positive integer", c.Training.NSamples)
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return errors.NewValidationError("training.test_size", "must be in the open interval (0, 1)", c.Training.TestSize)
	}
	if c.Model.Path == "" {
		return errors.NewValidationError("model.path", "must not be empty", c.Model.Path)
	}
	if c.Server.Addr == "" {
		return errors.NewValidationError("server.addr", "must not be empty", c.Server.Addr)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.NewValidationError("server.max_body_bytes", "must be positive", c.Server.MaxBodyBytes)
	}
	return nil
}
