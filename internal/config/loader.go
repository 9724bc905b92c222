package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")             // Current directory
		v.AddConfigPath("./configs")     // Project configs directory
		v.AddConfigPath("/etc/ratecast") // System-wide config
	}

	loadDotEnv(configPath)

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides, e.g. RATECAST_FORECAST_HORIZON
	v.SetEnvPrefix("RATECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// loadDotEnv exports variables from a .env file beside the config file and
// from the working directory. Variables already set in the environment win.
func loadDotEnv(configPath string) {
	if configPath != "" {
		envPath := filepath.Join(filepath.Dir(configPath), ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server defaults
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.metrics", d.Server.Metrics)

	// Data defaults
	v.SetDefault("data.date_column", d.Data.DateColumn)
	v.SetDefault("data.value_column", d.Data.ValueColumn)
	v.SetDefault("data.date_format", d.Data.DateFormat)
	v.SetDefault("data.start_date", d.Data.StartDate)
	v.SetDefault("data.anomaly_detector", d.Data.AnomalyDetector)
	v.SetDefault("data.anomaly_threshold", d.Data.AnomalyThreshold)
	v.SetDefault("data.stale_run", d.Data.StaleRun)

	// Forecast defaults
	v.SetDefault("forecast.seed", d.Forecast.Seed)
	v.SetDefault("forecast.strategy", d.Forecast.Strategy)
	v.SetDefault("forecast.horizon", d.Forecast.Horizon)
	v.SetDefault("forecast.step", d.Forecast.Step)
	v.SetDefault("forecast.lag_offsets", d.Forecast.LagOffsets)
	v.SetDefault("forecast.rolling_offsets", d.Forecast.RollingOffsets)
	v.SetDefault("forecast.stationarity_windows", d.Forecast.StationarityWindows)
	v.SetDefault("forecast.row_caps.short_horizon_max", d.Forecast.RowCaps.ShortHorizonMax)
	v.SetDefault("forecast.row_caps.long_horizon_min", d.Forecast.RowCaps.LongHorizonMin)
	v.SetDefault("forecast.row_caps.default", d.Forecast.RowCaps.Default)
	v.SetDefault("forecast.row_caps.mid", d.Forecast.RowCaps.Mid)
	v.SetDefault("forecast.row_caps.recursive", d.Forecast.RowCaps.Recursive)
	v.SetDefault("forecast.feature_selection", d.Forecast.FeatureSelection)
	v.SetDefault("forecast.selection_timeout", d.Forecast.SelectionTimeout)
	v.SetDefault("forecast.selection_short_max", d.Forecast.SelectionShortMax)
	v.SetDefault("forecast.max_concurrent_runs", d.Forecast.MaxConcurrentRuns)

	// Model defaults
	v.SetDefault("model.type", d.Model.Type)
	v.SetDefault("model.num_estimators", d.Model.NumEstimators)
	v.SetDefault("model.learning_rate", d.Model.LearningRate)
	v.SetDefault("model.max_depth", d.Model.MaxDepth)
	v.SetDefault("model.num_leaves", d.Model.NumLeaves)
	v.SetDefault("model.min_child_weight", d.Model.MinChildWeight)
	v.SetDefault("model.min_data_in_leaf", d.Model.MinDataInLeaf)
	v.SetDefault("model.feature_fraction", d.Model.FeatureFraction)
	v.SetDefault("model.lambda_l1", d.Model.LambdaL1)
	v.SetDefault("model.lambda_l2", d.Model.LambdaL2)
	v.SetDefault("model.min_split_gain", d.Model.MinSplitGain)
	v.SetDefault("model.max_bin", d.Model.MaxBin)
	v.SetDefault("model.ridge_alpha", d.Model.RidgeAlpha)

	// Store defaults
	v.SetDefault("store.type", d.Store.Type)
	v.SetDefault("store.key_prefix", d.Store.KeyPrefix)
	v.SetDefault("store.ttl", d.Store.TTL)
	v.SetDefault("store.compress", d.Store.Compress)

	// Queue defaults
	v.SetDefault("queue.enabled", d.Queue.Enabled)
	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.subject", d.Queue.Subject)
	v.SetDefault("queue.redis_stream", d.Queue.RedisStream)
	v.SetDefault("queue.group", d.Queue.Group)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			HTTPPort:     5580,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			BodyLimit:    8 * 1024 * 1024,
			Metrics:      true,
		},
		Data: DataConfig{
			DateColumn:  "date",
			ValueColumn: "exrate",
			DateFormat:  "02.01.2006",
			StartDate:   "2015-04-01",

			AnomalyDetector:  "iqr",
			AnomalyThreshold: 4,
			StaleRun:         10,
		},
		Forecast: ForecastConfig{
			Seed:                47,
			Strategy:            "direct",
			Horizon:             7,
			Step:                7,
			LagOffsets:          []int{0, 2, 4},
			RollingOffsets:      []int{0, 2, 4, 6},
			StationarityWindows: []int{7, 14, 30},
			RowCaps: RowCapConfig{
				ShortHorizonMax: 7,
				LongHorizonMin:  20,
				Default:         1200,
				Mid:             1500,
				Recursive:       1200,
			},
			FeatureSelection:  false,
			SelectionTimeout:  2 * time.Minute,
			SelectionShortMax: 7,
			MaxConcurrentRuns: 2,
		},
		Model: ModelConfig{
			Type:            "gbm",
			NumEstimators:   1000,
			LearningRate:    0.025,
			MaxDepth:        7,
			NumLeaves:       10,
			MinChildWeight:  1,
			MinDataInLeaf:   20,
			FeatureFraction: 1,
			MaxBin:          255,
			RidgeAlpha:      1e-3,
		},
		Store: StoreConfig{
			Type:      "memory",
			KeyPrefix: "ratecast:run:",
			TTL:       24 * time.Hour,
			Compress:  true,
		},
		Queue: QueueConfig{
			Enabled:     false,
			Type:        "nats",
			URL:         "nats://localhost:4222",
			Subject:     "forecast.completed",
			RedisStream: "ratecast",
			Group:       "ratecast-watchers",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
			MaxSizeMB:  16,
			MaxBackups: 8,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}
