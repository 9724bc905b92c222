package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Data     DataConfig     `mapstructure:"data"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Model    ModelConfig    `mapstructure:"model"`
	Store    StoreConfig    `mapstructure:"store"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort     int           `mapstructure:"http_port"` // HTTP server port
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"` // Max request body in bytes
	Metrics      bool          `mapstructure:"metrics"`    // Expose Prometheus metrics on /metrics
}

// DataConfig describes the default input series
type DataConfig struct {
	Path        string `mapstructure:"path"`         // CSV file with a date and a value column
	DateColumn  string `mapstructure:"date_column"`  // Header of the date column
	ValueColumn string `mapstructure:"value_column"` // Header of the value column
	DateFormat  string `mapstructure:"date_format"`  // Go layout, default 02.01.2006
	StartDate   string `mapstructure:"start_date"`   // Observations before this date are dropped (YYYY-MM-DD)
	Timezone    string `mapstructure:"timezone"`     // IANA name or offset like +03:00

	// Input screening; an empty detector disables it
	AnomalyDetector  string  `mapstructure:"anomaly_detector"`  // zscore, iqr
	AnomalyThreshold float64 `mapstructure:"anomaly_threshold"` // z-score or IQR multiplier
	StaleRun         int     `mapstructure:"stale_run"`         // Identical quotes flagged as stale
}

// ForecastConfig holds the feature layout and run defaults
type ForecastConfig struct {
	Seed                int64         `mapstructure:"seed"`
	Strategy            string        `mapstructure:"strategy"` // direct, recursive
	Horizon             int           `mapstructure:"horizon"`
	Step                int           `mapstructure:"step"`
	LagOffsets          []int         `mapstructure:"lag_offsets"`
	RollingOffsets      []int         `mapstructure:"rolling_offsets"`
	StationarityWindows []int         `mapstructure:"stationarity_windows"`
	RowCaps             RowCapConfig  `mapstructure:"row_caps"`
	FeatureSelection    bool          `mapstructure:"feature_selection"`
	SelectionTimeout    time.Duration `mapstructure:"selection_timeout"`
	SelectionShortMax   int           `mapstructure:"selection_short_max"` // Horizons up to this use the larger selector model
	MaxConcurrentRuns   int           `mapstructure:"max_concurrent_runs"`
}

// RowCapConfig bounds the number of trailing training rows
type RowCapConfig struct {
	ShortHorizonMax int `mapstructure:"short_horizon_max"`
	LongHorizonMin  int `mapstructure:"long_horizon_min"`
	Default         int `mapstructure:"default"`
	Mid             int `mapstructure:"mid"`
	Recursive       int `mapstructure:"recursive"`
}

// ModelConfig selects the regressor and its hyperparameters
type ModelConfig struct {
	Type            string  `mapstructure:"type"` // gbm, ridge
	NumEstimators   int     `mapstructure:"num_estimators"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	MaxDepth        int     `mapstructure:"max_depth"`
	NumLeaves       int     `mapstructure:"num_leaves"`
	MinChildWeight  float64 `mapstructure:"min_child_weight"`
	MinDataInLeaf   int     `mapstructure:"min_data_in_leaf"`
	FeatureFraction float64 `mapstructure:"feature_fraction"`
	LambdaL1        float64 `mapstructure:"lambda_l1"`
	LambdaL2        float64 `mapstructure:"lambda_l2"`
	MinSplitGain    float64 `mapstructure:"min_split_gain"`
	MaxBin          int     `mapstructure:"max_bin"`
	RidgeAlpha      float64 `mapstructure:"ridge_alpha"`
}

// StoreConfig represents the result store configuration
type StoreConfig struct {
	Type      string        `mapstructure:"type"` // memory (default), redis
	URL       string        `mapstructure:"url"`  // redis://localhost:6379
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"` // 0 keeps results forever
	Compress  bool          `mapstructure:"compress"`
}

// QueueConfig represents message queue configuration for run events
type QueueConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"`     // Queue type: nats (default), redis, kafka, memory
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication
	Subject  string `mapstructure:"subject"`  // Subject for completed runs (default: forecast.completed)
	Group    string `mapstructure:"group"`    // Consumer group for redis and kafka watchers

	// Redis-specific options
	RedisDB     int    `mapstructure:"redis_db"`     // Redis database number (default: 0)
	RedisStream string `mapstructure:"redis_stream"` // Redis stream prefix (default: "ratecast")

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"` // Kafka broker addresses
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen

	// File rotation, used when OutputPath is a file
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Data.Validate(); err != nil {
		return fmt.Errorf("data config: %w", err)
	}

	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast config: %w", err)
	}

	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	if c.BodyLimit < 0 {
		return fmt.Errorf("body_limit cannot be negative")
	}

	return nil
}

// Validate validates data configuration
func (c *DataConfig) Validate() error {
	if c.DateFormat == "" {
		return fmt.Errorf("data.date_format is required")
	}

	if c.StartDate != "" {
		if _, err := time.Parse(time.DateOnly, c.StartDate); err != nil {
			return fmt.Errorf("data.start_date must be YYYY-MM-DD: %w", err)
		}
	}

	switch c.AnomalyDetector {
	case "", "zscore", "iqr":
	default:
		return fmt.Errorf("data.anomaly_detector must be 'zscore', 'iqr' or empty")
	}

	if c.AnomalyDetector != "" && c.AnomalyThreshold <= 0 {
		return fmt.Errorf("data.anomaly_threshold must be positive")
	}

	return nil
}

// Validate validates forecast configuration
func (c *ForecastConfig) Validate() error {
	if c.Strategy != "direct" && c.Strategy != "recursive" {
		return fmt.Errorf("forecast.strategy must be 'direct' or 'recursive'")
	}

	if c.Horizon < 1 {
		return fmt.Errorf("forecast.horizon must be at least 1")
	}

	if c.Step < 1 || c.Step > c.Horizon {
		return fmt.Errorf("forecast.step must be between 1 and forecast.horizon")
	}

	if len(c.LagOffsets) == 0 || c.LagOffsets[0] != 0 {
		return fmt.Errorf("forecast.lag_offsets must start with 0")
	}

	if err := increasing("forecast.lag_offsets", c.LagOffsets); err != nil {
		return err
	}

	if err := increasing("forecast.rolling_offsets", c.RollingOffsets); err != nil {
		return err
	}

	if err := increasing("forecast.stationarity_windows", c.StationarityWindows); err != nil {
		return err
	}

	if c.StationarityWindows[0] < 1 {
		return fmt.Errorf("forecast.stationarity_windows must be positive")
	}

	caps := c.RowCaps
	if caps.Default < 1 || caps.Mid < 1 || caps.Recursive < 1 {
		return fmt.Errorf("forecast.row_caps must be positive")
	}

	if caps.ShortHorizonMax >= caps.LongHorizonMin {
		return fmt.Errorf("forecast.row_caps.short_horizon_max must be below long_horizon_min")
	}

	if c.SelectionTimeout < 0 {
		return fmt.Errorf("forecast.selection_timeout cannot be negative")
	}

	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("forecast.max_concurrent_runs must be at least 1")
	}

	return nil
}

func increasing(name string, values []int) error {
	if len(values) == 0 {
		return fmt.Errorf("%s cannot be empty", name)
	}
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			return fmt.Errorf("%s must be strictly increasing", name)
		}
	}
	if values[0] < 0 {
		return fmt.Errorf("%s cannot be negative", name)
	}
	return nil
}

// Validate validates model configuration
func (c *ModelConfig) Validate() error {
	switch c.Type {
	case "gbm":
		if c.NumEstimators < 1 {
			return fmt.Errorf("model.num_estimators must be at least 1")
		}
		if c.LearningRate <= 0 {
			return fmt.Errorf("model.learning_rate must be positive")
		}
		if c.NumLeaves < 2 {
			return fmt.Errorf("model.num_leaves must be at least 2")
		}
		if c.FeatureFraction <= 0 || c.FeatureFraction > 1 {
			return fmt.Errorf("model.feature_fraction must be in (0, 1]")
		}
	case "ridge":
		if c.RidgeAlpha <= 0 {
			return fmt.Errorf("model.ridge_alpha must be positive")
		}
	default:
		return fmt.Errorf("model.type must be 'gbm' or 'ridge'")
	}

	return nil
}

// Validate validates store configuration
func (c *StoreConfig) Validate() error {
	switch c.Type {
	case "memory":
	case "redis":
		if c.URL == "" {
			return fmt.Errorf("store.url is required for redis")
		}
	default:
		return fmt.Errorf("store.type must be 'memory' or 'redis'")
	}

	if c.TTL < 0 {
		return fmt.Errorf("store.ttl cannot be negative")
	}

	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	validTypes := map[string]bool{
		"nats":   true,
		"redis":  true,
		"kafka":  true,
		"memory": true,
	}

	if !validTypes[c.Type] {
		return fmt.Errorf("queue.type must be one of: nats, redis, kafka, memory")
	}

	if c.Subject == "" {
		return fmt.Errorf("queue.subject is required")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits cannot be negative")
	}

	return nil
}
