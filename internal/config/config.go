package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir = ".cmdmask"
	DefaultRulesFile = "rules.json"
	DefaultAuditFile = "audit.jsonl"
	DefaultHostKey   = "host_key"
	DefaultShell     = "/bin/bash"
	DefaultTimeout   = 5 * time.Second

	envPrefix = "CMDMASK"
)

type Config struct {
	ConfigDir string
	RulesPath string
	AuditLog  string
	Shell     string
	Timeout   time.Duration
	LogLevel  string
	LogFormat string
	Serve     ServeConfig
}

// ServeConfig controls the honeypot SSH front-end.
type ServeConfig struct {
	Listen        string
	HostKeyPath   string
	MetricsListen string // empty disables /metrics
	MaxConns      int
	Hostname      string
	Prompt        string
	Banner        string
	Watch         bool
}

// Overrides carries command-line values. Empty fields leave the lower
// precedence value in place.
type Overrides struct {
	RulesPath string
	AuditLog  string
	LogLevel  string
}

// Load resolves configuration from defaults, an optional YAML/JSON/TOML
// config file, CMDMASK_* environment variables and finally overrides.
// A configFile of "" uses <ConfigDir>/config.yaml when it exists.
func Load(configFile string, o Overrides) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	configDir := filepath.Join(homeDir, DefaultConfigDir)

	v := viper.New()
	v.SetDefault("rules", filepath.Join(configDir, DefaultRulesFile))
	v.SetDefault("audit_log", filepath.Join(configDir, DefaultAuditFile))
	v.SetDefault("shell", DefaultShell)
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("serve.listen", "0.0.0.0:2222")
	v.SetDefault("serve.host_key", filepath.Join(configDir, DefaultHostKey))
	v.SetDefault("serve.metrics_listen", "")
	v.SetDefault("serve.max_conns", 256)
	v.SetDefault("serve.hostname", "web01")
	v.SetDefault("serve.prompt", "")
	v.SetDefault("serve.banner", "")
	v.SetDefault("serve.watch", true)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		ConfigDir: configDir,
		RulesPath: v.GetString("rules"),
		AuditLog:  v.GetString("audit_log"),
		Shell:     v.GetString("shell"),
		Timeout:   v.GetDuration("timeout"),
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		Serve: ServeConfig{
			Listen:        v.GetString("serve.listen"),
			HostKeyPath:   v.GetString("serve.host_key"),
			MetricsListen: v.GetString("serve.metrics_listen"),
			MaxConns:      v.GetInt("serve.max_conns"),
			Hostname:      v.GetString("serve.hostname"),
			Prompt:        v.GetString("serve.prompt"),
			Banner:        v.GetString("serve.banner"),
			Watch:         v.GetBool("serve.watch"),
		},
	}

	if o.RulesPath != "" {
		cfg.RulesPath = o.RulesPath
	}
	if o.AuditLog != "" {
		cfg.AuditLog = o.AuditLog
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", cfg.Timeout)
	}
	if cfg.Serve.MaxConns <= 0 {
		return fmt.Errorf("serve.max_conns must be positive, got %d", cfg.Serve.MaxConns)
	}
	if cfg.RulesPath == "" {
		return fmt.Errorf("rules path must not be empty")
	}
	return nil
}

// EnsureDir creates path with owner-only permissions if it is missing.
func EnsureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
