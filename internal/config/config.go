package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string        `yaml:"port" env:"FOCUSBLOCK_PORT" env-default:"8080"`
	DBPath      string        `yaml:"db_path" env:"FOCUSBLOCK_DB_PATH" env-default:"focusblock.db"`
	LogLevel    string        `yaml:"log_level" env:"FOCUSBLOCK_LOG_LEVEL" env-default:"info"`
	LogFormat   string        `yaml:"log_format" env:"FOCUSBLOCK_LOG_FORMAT" env-default:"text"`
	SessionTTL  time.Duration `yaml:"session_ttl" env:"FOCUSBLOCK_SESSION_TTL" env-default:"720h"`
	CleanupCron string        `yaml:"cleanup_cron" env:"FOCUSBLOCK_CLEANUP_CRON" env-default:"@hourly"`

	RateLimit  int           `yaml:"rate_limit" env:"FOCUSBLOCK_RATE_LIMIT" env-default:"120"`
	RatePeriod time.Duration `yaml:"rate_period" env:"FOCUSBLOCK_RATE_PERIOD" env-default:"1m"`

	// Origins allowed to open the websocket, as accepted by
	// websocket.AcceptOptions.OriginPatterns.
	AllowedOrigins []string `yaml:"allowed_origins" env:"FOCUSBLOCK_ALLOWED_ORIGINS" env-separator:","`

	Backup BackupConfig `yaml:"backup"`
}

// BackupConfig controls database snapshots. An empty Cron disables scheduled
// backups; an S3 bucket replaces the local Dir.
type BackupConfig struct {
	Dir        string   `yaml:"dir" env:"FOCUSBLOCK_BACKUP_DIR" env-default:"backups"`
	Cron       string   `yaml:"cron" env:"FOCUSBLOCK_BACKUP_CRON"`
	Keep       int      `yaml:"keep" env:"FOCUSBLOCK_BACKUP_KEEP" env-default:"14"`
	Passphrase string   `yaml:"passphrase" env:"FOCUSBLOCK_BACKUP_PASSPHRASE"`
	S3         S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"FOCUSBLOCK_S3_ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"FOCUSBLOCK_S3_BUCKET"`
	Region    string `yaml:"region" env:"FOCUSBLOCK_S3_REGION" env-default:"us-east-1"`
	AccessKey string `yaml:"access_key" env:"FOCUSBLOCK_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"FOCUSBLOCK_S3_SECRET_KEY"`
	Prefix    string `yaml:"prefix" env:"FOCUSBLOCK_S3_PREFIX"`
}

// Enabled reports whether snapshots go to S3.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:        "8080",
		DBPath:      "focusblock.db",
		LogLevel:    "info",
		LogFormat:   "text",
		SessionTTL:  720 * time.Hour,
		CleanupCron: "@hourly",
		RateLimit:   120,
		RatePeriod:  time.Minute,
		Backup: BackupConfig{
			Dir:  "backups",
			Keep: 14,
			S3:   S3Config{Region: "us-east-1"},
		},
	}
}

// Load reads path, when given, and applies environment overrides. A missing
// file is not an error: the environment and defaults still apply.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
		return cfg, cfg.Validate()
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		cfg = Config{}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("port is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL)
	}
	if c.RateLimit <= 0 || c.RatePeriod <= 0 {
		return errors.New("rate_limit and rate_period must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := cron.ParseStandard(c.CleanupCron); err != nil {
		return fmt.Errorf("cleanup_cron: %w", err)
	}
	if c.Backup.Cron != "" {
		if _, err := cron.ParseStandard(c.Backup.Cron); err != nil {
			return fmt.Errorf("backup.cron: %w", err)
		}
	}
	if s3 := c.Backup.S3; s3.Enabled() && (s3.AccessKey == "" || s3.SecretKey == "") {
		return errors.New("backup.s3 needs access_key and secret_key when bucket is set")
	}
	return nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// WriteDefault writes a starter config file. It refuses to overwrite an
// existing file.
func WriteDefault(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(fileConfig(Default()))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".focusblock-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	return os.Rename(tmpName, path)
}

// fileConfigShape is the on-disk shape. Durations are written as strings so the
// file reads the way cleanenv parses it.
type fileConfigShape struct {
	Port           string   `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
	SessionTTL     string   `yaml:"session_ttl"`
	CleanupCron    string   `yaml:"cleanup_cron"`
	RateLimit      int      `yaml:"rate_limit"`
	RatePeriod     string   `yaml:"rate_period"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Backup         struct {
		Dir  string `yaml:"dir"`
		Cron string `yaml:"cron"`
		Keep int    `yaml:"keep"`
	} `yaml:"backup"`
}

func fileConfig(c Config) fileConfigShape {
	origins := c.AllowedOrigins
	if origins == nil {
		origins = []string{}
	}
	f := fileConfigShape{
		Port:           c.Port,
		DBPath:         c.DBPath,
		LogLevel:       c.LogLevel,
		LogFormat:      c.LogFormat,
		SessionTTL:     c.SessionTTL.String(),
		CleanupCron:    c.CleanupCron,
		RateLimit:      c.RateLimit,
		RatePeriod:     c.RatePeriod.String(),
		AllowedOrigins: origins,
	}
	f.Backup.Dir = c.Backup.Dir
	f.Backup.Cron = c.Backup.Cron
	f.Backup.Keep = c.Backup.Keep
	return f
}
