package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Workload   WorkloadConfig   `yaml:"workload" mapstructure:"workload"`
	Forecast   ForecastConfig   `yaml:"forecast" mapstructure:"forecast"`
	Rubric     RubricConfig     `yaml:"rubric" mapstructure:"rubric"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CorsOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeout   int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	SubmitRatePerMin float64  `yaml:"submit_rate_per_min" mapstructure:"submit_rate_per_min"`
	SubmitBurst      int      `yaml:"submit_burst" mapstructure:"submit_burst"`
}

// AuthConfig configures bearer credential checks. The engine never issues
// tokens; an empty secret disables the check.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer" mapstructure:"jwt_issuer"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Apportionment policies for logs submitted without a per-study breakdown.
const (
	ApportionEvenSplit = "even_split"
	ApportionNone      = "none"
)

// WorkloadConfig configures the actuals window and the hours-to-points
// translation.
type WorkloadConfig struct {
	WindowWeeks             int     `yaml:"window_weeks" mapstructure:"window_weeks"`
	TrendWeeks              int     `yaml:"trend_weeks" mapstructure:"trend_weeks"`
	HistoryWeeks            int     `yaml:"history_weeks" mapstructure:"history_weeks"`
	Apportion               string  `yaml:"apportion" mapstructure:"apportion"`
	ReferenceScreeningHours float64 `yaml:"reference_screening_hours" mapstructure:"reference_screening_hours"`
	ReferenceQueryHours     float64 `yaml:"reference_query_hours" mapstructure:"reference_query_hours"`
	MeetingPointsPerHour    float64 `yaml:"meeting_points_per_hour" mapstructure:"meeting_points_per_hour"`
	WeeksPerMonth           float64 `yaml:"weeks_per_month" mapstructure:"weeks_per_month"`
}

// ForecastConfig tunes how far the forecast may drift from configuration.
type ForecastConfig struct {
	Blend        float64 `yaml:"blend" mapstructure:"blend"`
	DampingBound float64 `yaml:"damping_bound" mapstructure:"damping_bound"`
}

// RubricConfig points at optional rubric option tables.
type RubricConfig struct {
	TablesPath string `yaml:"tables_path" mapstructure:"tables_path"`
}

// CacheConfig configures the portfolio snapshot cache.
type CacheConfig struct {
	TTLSecs    int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// ResilienceConfig configures retries and the circuit breaker around the store.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WORKLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

// Defaults returns the configuration with only built-in defaults applied.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("server.submit_rate_per_min", 30)
	v.SetDefault("server.submit_burst", 5)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("workload.window_weeks", 4)
	v.SetDefault("workload.trend_weeks", 8)
	v.SetDefault("workload.history_weeks", 12)
	v.SetDefault("workload.apportion", ApportionEvenSplit)
	v.SetDefault("workload.reference_screening_hours", 4.0)
	v.SetDefault("workload.reference_query_hours", 2.0)
	v.SetDefault("workload.meeting_points_per_hour", 1.0)
	v.SetDefault("workload.weeks_per_month", 52.0/12.0)
	v.SetDefault("rubric.tables_path", "")
	v.SetDefault("forecast.blend", 0.5)
	v.SetDefault("forecast.damping_bound", 0.25)
	v.SetDefault("cache.ttl_secs", 300)
	v.SetDefault("cache.max_entries", 64)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 200)
	v.SetDefault("resilience.max_backoff_ms", 2000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
}

// Validate checks the configuration. Mode "serve" additionally requires
// server settings; "store" only checks what the store needs.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite (got %q)", c.Store.Driver))
	}

	if mode != "store" {
		w := c.Workload
		if w.WindowWeeks < 1 {
			errs = append(errs, "workload.window_weeks must be >= 1")
		}
		if w.TrendWeeks < 1 {
			errs = append(errs, "workload.trend_weeks must be >= 1")
		}
		if w.HistoryWeeks < 1 {
			errs = append(errs, "workload.history_weeks must be >= 1")
		}
		if w.Apportion != ApportionEvenSplit && w.Apportion != ApportionNone {
			errs = append(errs, fmt.Sprintf("workload.apportion must be %s or %s (got %q)", ApportionEvenSplit, ApportionNone, w.Apportion))
		}
		if w.ReferenceScreeningHours <= 0 || w.ReferenceQueryHours <= 0 {
			errs = append(errs, "workload reference hours must be > 0")
		}
		if w.MeetingPointsPerHour < 0 || w.WeeksPerMonth <= 0 {
			errs = append(errs, "workload.meeting_points_per_hour must be >= 0 and weeks_per_month > 0")
		}
		if c.Forecast.Blend < 0 || c.Forecast.Blend > 1 {
			errs = append(errs, "forecast.blend must be between 0 and 1")
		}
		if c.Forecast.DampingBound < 0 || c.Forecast.DampingBound > 1 {
			errs = append(errs, "forecast.damping_bound must be between 0 and 1")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.SubmitRatePerMin < 0 {
			errs = append(errs, "server.submit_rate_per_min must be >= 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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
