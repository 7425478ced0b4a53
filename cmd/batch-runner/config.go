package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/unitools/pkg/dbconn"
	"github.com/Sternrassler/unitools/pkg/dispatch"
)

// Config is the batch-runner configuration.
//
// Precedence: defaults, YAML file (-config), environment, flags.
type Config struct {
	Input        string        `yaml:"input"`
	UserAgent    string        `yaml:"user_agent"`
	QPSLimit     int           `yaml:"qps_limit"`
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MetricsAddr  string        `yaml:"metrics_addr"`

	// RedisURL enables the shared QPS counter and the result store.
	// Accepts host:port or a redis:// URL.
	RedisURL  string        `yaml:"redis_url"`
	Namespace string        `yaml:"namespace"`
	ResultTTL time.Duration `yaml:"result_ttl"`

	// Resume skips tasks already recorded as successful (requires RedisURL).
	Resume bool `yaml:"resume"`

	Log   LogConfig   `yaml:"log"`
	MySQL MySQLConfig `yaml:"mysql"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level    string `yaml:"level"`
	Pretty   bool   `yaml:"pretty"`
	File     string `yaml:"file"`
	FileOnly bool   `yaml:"file_only"`
}

// MySQLConfig enables writing results to a MySQL table when Host is set.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Enabled reports whether results should be written to MySQL.
func (m MySQLConfig) Enabled() bool {
	return m.Host != ""
}

// DBConfig converts to a dbconn configuration.
func (m MySQLConfig) DBConfig() dbconn.Config {
	cfg := dbconn.DefaultConfig()
	cfg.Host = m.Host
	if m.Port > 0 {
		cfg.Port = m.Port
	}
	cfg.User = m.User
	cfg.Password = m.Password
	cfg.Database = m.Database
	return cfg
}

func defaultConfig() Config {
	d := dispatch.DefaultConfig()
	return Config{
		UserAgent:    "unitools-batch-runner/0.1.0",
		QPSLimit:     d.QPSLimit,
		Concurrency:  d.Concurrency,
		PollInterval: d.PollInterval,
		Timeout:      30 * time.Second,
		Namespace:    "batch",
		ResultTTL:    24 * time.Hour,
		Log:          LogConfig{Level: "info"},
		MySQL:        MySQLConfig{Port: 3306, Table: "fetch_results"},
	}
}

// loadConfig resolves the configuration from args and the environment.
func loadConfig(args []string, getenv func(string) string, stderr io.Writer) (Config, error) {
	var (
		configPath string
		flagCfg    Config
	)

	fs := flag.NewFlagSet("batch-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&flagCfg.Input, "input", "", "file with one URL per line (default: stdin)")
	fs.StringVar(&flagCfg.UserAgent, "user-agent", "", "User-Agent header")
	fs.IntVar(&flagCfg.QPSLimit, "qps", 0, "total requests per second (<= 0: unlimited)")
	fs.IntVar(&flagCfg.Concurrency, "concurrency", 0, "number of workers (< 1: synchronous)")
	fs.DurationVar(&flagCfg.PollInterval, "poll-interval", 0, "result polling interval")
	fs.DurationVar(&flagCfg.Timeout, "timeout", 0, "per-request timeout")
	fs.StringVar(&flagCfg.MetricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	fs.StringVar(&flagCfg.RedisURL, "redis", "", "Redis address for shared throttling and results")
	fs.StringVar(&flagCfg.Namespace, "namespace", "", "name of the shared counter and result namespace")
	fs.BoolVar(&flagCfg.Resume, "resume", false, "skip URLs already fetched successfully")
	fs.StringVar(&flagCfg.Log.Level, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&flagCfg.Log.Pretty, "log-pretty", false, "human-readable log output")
	fs.StringVar(&flagCfg.Log.File, "log-file", "", "append logs to this file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	if configPath != "" {
		if err := loadYAML(configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input = flagCfg.Input
		case "user-agent":
			cfg.UserAgent = flagCfg.UserAgent
		case "qps":
			cfg.QPSLimit = flagCfg.QPSLimit
		case "concurrency":
			cfg.Concurrency = flagCfg.Concurrency
		case "poll-interval":
			cfg.PollInterval = flagCfg.PollInterval
		case "timeout":
			cfg.Timeout = flagCfg.Timeout
		case "metrics-addr":
			cfg.MetricsAddr = flagCfg.MetricsAddr
		case "redis":
			cfg.RedisURL = flagCfg.RedisURL
		case "namespace":
			cfg.Namespace = flagCfg.Namespace
		case "resume":
			cfg.Resume = flagCfg.Resume
		case "log-level":
			cfg.Log.Level = flagCfg.Log.Level
		case "log-pretty":
			cfg.Log.Pretty = flagCfg.Log.Pretty
		case "log-file":
			cfg.Log.File = flagCfg.Log.File
		}
	})

	if cfg.Resume && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("-resume requires a Redis address")
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	cfg.RedisURL = getEnv(getenv, "REDIS_URL", cfg.RedisURL)
	cfg.MetricsAddr = getEnv(getenv, "METRICS_ADDR", cfg.MetricsAddr)
	cfg.UserAgent = getEnv(getenv, "USER_AGENT", cfg.UserAgent)
	cfg.Log.Level = getEnv(getenv, "LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv(getenv, "LOG_FILE", cfg.Log.File)

	cfg.MySQL.Host = getEnv(getenv, "MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.User = getEnv(getenv, "MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv(getenv, "MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.Database = getEnv(getenv, "MYSQL_DATABASE", cfg.MySQL.Database)
	cfg.MySQL.Table = getEnv(getenv, "MYSQL_TABLE", cfg.MySQL.Table)

	var err error
	if cfg.QPSLimit, err = getEnvInt(getenv, "QPS_LIMIT", cfg.QPSLimit); err != nil {
		return err
	}
	if cfg.Concurrency, err = getEnvInt(getenv, "CONCURRENCY", cfg.Concurrency); err != nil {
		return err
	}
	if cfg.MySQL.Port, err = getEnvInt(getenv, "MYSQL_PORT", cfg.MySQL.Port); err != nil {
		return err
	}
	if cfg.PollInterval, err = getEnvDuration(getenv, "POLL_INTERVAL", cfg.PollInterval); err != nil {
		return err
	}
	if cfg.Log.Pretty, err = getEnvBool(getenv, "LOG_PRETTY", cfg.Log.Pretty); err != nil {
		return err
	}
	return nil
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(getenv func(string) string, key string, defaultValue int) (int, error) {
	value := getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(getenv func(string) string, key string, defaultValue bool) (bool, error) {
	value := getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func getEnvDuration(getenv func(string) string, key string, defaultValue time.Duration) (time.Duration, error) {
	value := getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
