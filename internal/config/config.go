package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Models ModelsConfig `yaml:"models" mapstructure:"models"`
	Train  TrainConfig  `yaml:"train" mapstructure:"train"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Track  TrackConfig  `yaml:"track" mapstructure:"track"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the feature store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DataConfig points at the raw input files.
type DataConfig struct {
	NPPESFile  string `yaml:"nppes_file" mapstructure:"nppes_file"`
	ClaimsFile string `yaml:"claims_file" mapstructure:"claims_file"`
	RatesFile  string `yaml:"rates_file" mapstructure:"rates_file"`
	SampleSize int    `yaml:"sample_size" mapstructure:"sample_size"`
}

// ModelsConfig configures model bundle persistence.
type ModelsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// TrainConfig configures training behavior.
type TrainConfig struct {
	Seed            uint64  `yaml:"seed" mapstructure:"seed"`
	TestFraction    float64 `yaml:"test_fraction" mapstructure:"test_fraction"`
	ValFraction     float64 `yaml:"val_fraction" mapstructure:"val_fraction"`
	UseSMOTE        bool    `yaml:"use_smote" mapstructure:"use_smote"`
	UseClassWeights bool    `yaml:"use_class_weights" mapstructure:"use_class_weights"`
}

// ServerConfig configures the prediction API server.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// TrackConfig configures the optional metrics webhook.
type TrackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Project    string `yaml:"project" mapstructure:"project"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROVIDERRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "provider_risk.db")
	v.SetDefault("data.nppes_file", "data/npidata_pfile.csv")
	v.SetDefault("data.sample_size", 0)
	v.SetDefault("models.dir", "models")
	v.SetDefault("train.seed", 42)
	v.SetDefault("train.test_fraction", 0.2)
	v.SetDefault("train.val_fraction", 0.2)
	v.SetDefault("train.use_smote", true)
	v.SetDefault("train.use_class_weights", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("track.project", "provider-denial-risk")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
