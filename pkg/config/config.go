package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DirectoryEnv overrides the configured file directory when set
const DirectoryEnv = "TINYHTTPD_DIRECTORY"

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Compression CompressionConfig `yaml:"compression"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	AccessLog   AccessLogConfig   `yaml:"access_log"`
	Retry       RetryConfig       `yaml:"retry"`
	Logging     LogConfig         `yaml:"logging"`
}

// ServerConfig contains listener and request handling settings
type ServerConfig struct {
	Address          string `yaml:"address"`
	Directory        string `yaml:"directory"`
	ReadBufferSize   int    `yaml:"read_buffer_size"` // bytes per read
	MaxHeaderBytes   int    `yaml:"max_header_bytes"`
	MaxBodyBytes     int    `yaml:"max_body_bytes"`
	MaxConnections   int    `yaml:"max_connections"` // 0 means unbounded
	ReadTimeout      int    `yaml:"read_timeout"`    // in seconds, 0 means none
	SingleRead       bool   `yaml:"single_read"`
	AllowUnsafePaths bool   `yaml:"allow_unsafe_paths"`
}

// CompressionConfig contains settings for response compression
type CompressionConfig struct {
	Disable bool `yaml:"disable"`
	Level   int  `yaml:"level"` // 0 selects the gzip default
}

// MetricsConfig contains settings for the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// AccessLogConfig contains settings for per-request console output
type AccessLogConfig struct {
	Disable bool `yaml:"disable"`
	NoColor bool `yaml:"no_color"`
}

// RetryConfig contains settings for retrying transient accept errors
type RetryConfig struct {
	MaxRetries    int     `yaml:"max_retries"`
	InitialDelay  int     `yaml:"initial_delay"` // in milliseconds
	MaxDelay      int     `yaml:"max_delay"`     // in milliseconds
	BackoffFactor float64 `yaml:"backoff_factor"`
	JitterFactor  float64 `yaml:"jitter_factor"`
}

// LogConfig contains settings for logging
type LogConfig struct {
	LogToFile   bool   `yaml:"log_to_file"`
	LogFilePath string `yaml:"log_file_path"`
	MaxSize     int    `yaml:"max_size"`    // maximum size in megabytes
	MaxBackups  int    `yaml:"max_backups"` // maximum number of old log files to retain
	MaxAge      int    `yaml:"max_age"`     // maximum number of days to retain old log files
	Compress    bool   `yaml:"compress"`    // compress determines if the rotated log files should be compressed
}

// LoadDefault returns a configuration with default values
func LoadDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        "0.0.0.0:4221",
			Directory:      "",
			ReadBufferSize: 2048,
			MaxHeaderBytes: 8 << 10,
			MaxBodyBytes:   10 << 20,
			MaxConnections: 0,
			ReadTimeout:    0,
		},
		Compression: CompressionConfig{
			Disable: false,
			Level:   0,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9090",
		},
		Retry: RetryConfig{
			MaxRetries:    10,
			InitialDelay:  5,
			MaxDelay:      1000,
			BackoffFactor: 2.0,
			JitterFactor:  0.1,
		},
		Logging: LogConfig{
			LogToFile:   false,
			LogFilePath: "tinyhttpd.log",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      28,
			Compress:    true,
		},
	}
}

// Default returns the default configuration with environment overrides
// applied
func Default() *Config {
	cfg := LoadDefault()
	applyEnv(cfg)
	return cfg
}

// Load reads configuration from a file and merges it with default values
func Load(configPath string) (*Config, error) {
	// Start with default configuration
	cfg := LoadDefault()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge server configuration
	if fileCfg.Server.Address != "" {
		cfg.Server.Address = fileCfg.Server.Address
	}
	if fileCfg.Server.Directory != "" {
		cfg.Server.Directory = fileCfg.Server.Directory
	}
	if fileCfg.Server.ReadBufferSize > 0 {
		cfg.Server.ReadBufferSize = fileCfg.Server.ReadBufferSize
	}
	if fileCfg.Server.MaxHeaderBytes > 0 {
		cfg.Server.MaxHeaderBytes = fileCfg.Server.MaxHeaderBytes
	}
	if fileCfg.Server.MaxBodyBytes > 0 {
		cfg.Server.MaxBodyBytes = fileCfg.Server.MaxBodyBytes
	}
	if fileCfg.Server.MaxConnections > 0 {
		cfg.Server.MaxConnections = fileCfg.Server.MaxConnections
	}
	if fileCfg.Server.ReadTimeout > 0 {
		cfg.Server.ReadTimeout = fileCfg.Server.ReadTimeout
	}
	if fileCfg.Server.SingleRead {
		cfg.Server.SingleRead = true
	}
	if fileCfg.Server.AllowUnsafePaths {
		cfg.Server.AllowUnsafePaths = true
	}

	// Merge compression configuration
	if fileCfg.Compression.Disable {
		cfg.Compression.Disable = true
	}
	if fileCfg.Compression.Level != 0 {
		cfg.Compression.Level = fileCfg.Compression.Level
	}

	// Merge metrics configuration
	if fileCfg.Metrics.Enabled {
		cfg.Metrics.Enabled = true
	}
	if fileCfg.Metrics.Address != "" {
		cfg.Metrics.Address = fileCfg.Metrics.Address
	}

	// Merge access log configuration
	if fileCfg.AccessLog.Disable {
		cfg.AccessLog.Disable = true
	}
	if fileCfg.AccessLog.NoColor {
		cfg.AccessLog.NoColor = true
	}

	// Merge retry configuration
	if fileCfg.Retry.MaxRetries > 0 {
		cfg.Retry.MaxRetries = fileCfg.Retry.MaxRetries
	}
	if fileCfg.Retry.InitialDelay > 0 {
		cfg.Retry.InitialDelay = fileCfg.Retry.InitialDelay
	}
	if fileCfg.Retry.MaxDelay > 0 {
		cfg.Retry.MaxDelay = fileCfg.Retry.MaxDelay
	}
	if fileCfg.Retry.BackoffFactor > 0 {
		cfg.Retry.BackoffFactor = fileCfg.Retry.BackoffFactor
	}
	if fileCfg.Retry.JitterFactor > 0 {
		cfg.Retry.JitterFactor = fileCfg.Retry.JitterFactor
	}

	// Merge logging configuration
	if fileCfg.Logging.LogToFile {
		cfg.Logging.LogToFile = fileCfg.Logging.LogToFile
	}
	if fileCfg.Logging.LogFilePath != "" {
		cfg.Logging.LogFilePath = fileCfg.Logging.LogFilePath
	}
	if fileCfg.Logging.MaxSize > 0 {
		cfg.Logging.MaxSize = fileCfg.Logging.MaxSize
	}
	if fileCfg.Logging.MaxBackups > 0 {
		cfg.Logging.MaxBackups = fileCfg.Logging.MaxBackups
	}
	if fileCfg.Logging.MaxAge > 0 {
		cfg.Logging.MaxAge = fileCfg.Logging.MaxAge
	}
	if fileCfg.Logging.Compress {
		cfg.Logging.Compress = fileCfg.Logging.Compress
	}

	applyEnv(cfg)

	return cfg, nil
}

// LoadOrDefault attempts to load configuration from a file
// If the file doesn't exist or can't be parsed, it returns default configuration
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Log the error but continue with defaults
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", configPath, err)
		fmt.Fprintf(os.Stderr, "Using default configuration\n")
		cfg = LoadDefault()
		applyEnv(cfg)
	}
	return cfg
}

// applyEnv applies environment variable overrides
func applyEnv(cfg *Config) {
	if dir := os.Getenv(DirectoryEnv); dir != "" {
		cfg.Server.Directory = dir
	}
}

// Validate checks settings that cannot be merged into something sensible
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address must not be empty")
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative, got %d", c.Server.MaxConnections)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must not be negative, got %d", c.Server.ReadTimeout)
	}
	if c.Server.Directory != "" {
		info, err := os.Stat(c.Server.Directory)
		if err != nil {
			return fmt.Errorf("directory %s: %w", c.Server.Directory, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("directory %s is not a directory", c.Server.Directory)
		}
	}
	return nil
}
