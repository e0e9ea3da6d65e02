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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the metrics history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MetricsConfig holds the metric policy constants and the optional path to a
// column-keyed weight profile.
type MetricsConfig struct {
	AdjustmentThreshold float64 `yaml:"adjustment_threshold" mapstructure:"adjustment_threshold"`
	TextualAccuracy     float64 `yaml:"textual_accuracy" mapstructure:"textual_accuracy"`
	IQRMultiplier       float64 `yaml:"iqr_multiplier" mapstructure:"iqr_multiplier"`
	ProfilePath         string  `yaml:"profile" mapstructure:"profile"`
}

// IngestConfig configures table loading.
type IngestConfig struct {
	NullMarkers      []string `yaml:"null_markers" mapstructure:"null_markers"`
	NormalizeHeaders bool     `yaml:"normalize_headers" mapstructure:"normalize_headers"`
	Limit            int      `yaml:"limit" mapstructure:"limit"`
}

// MonitoringConfig configures trend alerting.
type MonitoringConfig struct {
	WebhookURL                string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackHours             int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CompletenessDropThreshold float64 `yaml:"completeness_drop_threshold" mapstructure:"completeness_drop_threshold"`
	CompletenessFloor         float64 `yaml:"completeness_floor" mapstructure:"completeness_floor"`
	OutlierSurgeThreshold     int     `yaml:"outlier_surge_threshold" mapstructure:"outlier_surge_threshold"`
	AlertRatePerSec           float64 `yaml:"alert_rate_per_sec" mapstructure:"alert_rate_per_sec"`
	WebhookAttempts           int     `yaml:"webhook_attempts" mapstructure:"webhook_attempts"`
	Schedule                  string  `yaml:"schedule" mapstructure:"schedule"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("DQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dqmetrics.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("metrics.adjustment_threshold", 95.0)
	v.SetDefault("metrics.textual_accuracy", 60.0)
	v.SetDefault("metrics.iqr_multiplier", 1.5)
	v.SetDefault("ingest.normalize_headers", false)
	v.SetDefault("ingest.limit", 0)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.completeness_drop_threshold", 5.0)
	v.SetDefault("monitoring.completeness_floor", 80.0)
	v.SetDefault("monitoring.outlier_surge_threshold", 10)
	v.SetDefault("monitoring.alert_rate_per_sec", 1.0)
	v.SetDefault("monitoring.webhook_attempts", 3)

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
