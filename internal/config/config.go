package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost      = "0.0.0.0"
	DefaultPort      = 10000
	DefaultKeepAlive = 5
	defaultPath      = "config.json"

	defaultMinWorkers        = 1
	defaultQueueSize         = 64
	defaultWorkerIdleSeconds = 30
	defaultSweepMinutes      = 10
	defaultTempTTLMinutes    = 60
	defaultResultTTLMinutes  = 60

	DefaultFFmpegBin  = "ffmpeg"
	DefaultFFprobeBin = "ffprobe"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig    `json:"basic_config" yaml:"basic_config"`
	Analysis    AnalysisConfig `json:"analysis" yaml:"analysis"`
	Database    DatabaseConfig `json:"database" yaml:"database"`
	Redis       RedisConfig    `json:"redis" yaml:"redis"`
}

type BasicConfig struct {
	Host             string `json:"host" yaml:"host"`
	Port             int    `json:"port" yaml:"port"`
	KeepAliveSeconds int    `json:"keep_alive_seconds" yaml:"keep_alive_seconds"`
	TempDir          string `json:"temp_dir" yaml:"temp_dir"`
	MaxUploadBytes   int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	MinWorkers        int `json:"min_workers" yaml:"min_workers"`
	MaxWorkers        int `json:"max_workers" yaml:"max_workers"`
	QueueSize         int `json:"queue_size" yaml:"queue_size"`
	WorkerIdleTimeout int `json:"worker_idle_timeout_seconds" yaml:"worker_idle_timeout_seconds"`

	TempSweepInterval int `json:"temp_sweep_interval_minutes" yaml:"temp_sweep_interval_minutes"`
	TempFileTTL       int `json:"temp_file_ttl_minutes" yaml:"temp_file_ttl_minutes"`
}

// AnalysisConfig points at the optional external decoders used for formats
// the built-in WAV and Vorbis readers do not handle.
type AnalysisConfig struct {
	FFmpegBin  string `json:"ffmpeg_bin" yaml:"ffmpeg_bin"`
	FFprobeBin string `json:"ffprobe_bin" yaml:"ffprobe_bin"`
}

// DatabaseConfig selects the history backend. An empty Driver disables it.
type DatabaseConfig struct {
	Driver   string `json:"driver" yaml:"driver"`
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	ResultTTL int    `json:"result_ttl_minutes" yaml:"result_ttl_minutes"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path. JSON and YAML are
// accepted, chosen by extension. When path is empty and the default
// config.json does not exist, defaults are returned. The PORT environment
// variable overrides the configured port.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = defaultPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := decode(absPath, data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Database.Driver != "" && isSQLite(cfg.Database.Driver) && cfg.Database.DSN != "" &&
		!strings.HasPrefix(cfg.Database.DSN, ":memory:") && !strings.HasPrefix(cfg.Database.DSN, "file:") &&
		!filepath.IsAbs(cfg.Database.DSN) {
		cfg.Database.DSN = filepath.Join(filepath.Dir(absPath), cfg.Database.DSN)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid PORT %q", v)
		}
		cfg.BasicConfig.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.Host == "" {
		c.BasicConfig.Host = DefaultHost
	}
	if c.BasicConfig.Port == 0 {
		c.BasicConfig.Port = DefaultPort
	}
	if c.BasicConfig.KeepAliveSeconds <= 0 {
		c.BasicConfig.KeepAliveSeconds = DefaultKeepAlive
	}
	if c.BasicConfig.MinWorkers <= 0 {
		c.BasicConfig.MinWorkers = defaultMinWorkers
	}
	if c.BasicConfig.MaxWorkers <= 0 {
		c.BasicConfig.MaxWorkers = runtime.NumCPU()
	}
	if c.BasicConfig.MaxWorkers < c.BasicConfig.MinWorkers {
		c.BasicConfig.MaxWorkers = c.BasicConfig.MinWorkers
	}
	if c.BasicConfig.QueueSize <= 0 {
		c.BasicConfig.QueueSize = defaultQueueSize
	}
	if c.BasicConfig.WorkerIdleTimeout <= 0 {
		c.BasicConfig.WorkerIdleTimeout = defaultWorkerIdleSeconds
	}
	if c.BasicConfig.TempSweepInterval <= 0 {
		c.BasicConfig.TempSweepInterval = defaultSweepMinutes
	}
	if c.BasicConfig.TempFileTTL <= 0 {
		c.BasicConfig.TempFileTTL = defaultTempTTLMinutes
	}
	if c.Analysis.FFmpegBin == "" {
		c.Analysis.FFmpegBin = DefaultFFmpegBin
	}
	if c.Analysis.FFprobeBin == "" {
		c.Analysis.FFprobeBin = DefaultFFprobeBin
	}
	if c.Redis.ResultTTL <= 0 {
		c.Redis.ResultTTL = defaultResultTTLMinutes
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "127.0.0.1"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
}

// Address joins host and port for http.Server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.BasicConfig.Host, c.BasicConfig.Port)
}

func isSQLite(driver string) bool {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}
