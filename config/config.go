package config

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport   string `mapstructure:"transport"`
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string   `mapstructure:"backend"`
	Image              string   `mapstructure:"image"`
	AllowedImages      []string `mapstructure:"allowed_images"`
	Interpreter        string   `mapstructure:"interpreter"`
	ResultsDir         string   `mapstructure:"results_dir"`
	ScriptName         string   `mapstructure:"script_name"`
	ContainerWorkdir   string   `mapstructure:"container_workdir"`
	StagingMode        string   `mapstructure:"staging_mode"`
	TimeoutSec         int      `mapstructure:"timeout_sec"`
	MemoryMB           int      `mapstructure:"memory_mb"`
	NetworkEnabled     bool     `mapstructure:"network_enabled"`
	EnableLocalBackend bool     `mapstructure:"enable_local_backend"`
	ExcludePatterns    []string `mapstructure:"exclude_patterns"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Backend names
const (
	BackendDocker = "docker"
	BackendPodman = "podman"
	BackendLocal  = "local"
)

// Staging modes
const (
	StagingIsolated = "isolated"
	StagingShared   = "shared"
)

// EnvPrefix is the prefix for environment overrides, e.g. RUNBOX_SANDBOX_IMAGE.
const EnvPrefix = "RUNBOX"

// New loads and validates the application configuration from the default search paths
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from configFile, or from config.yaml in the current
// directory and ./config when configFile is empty. A missing default file is not an
// error; defaults and environment overrides still apply.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("sandbox.backend", BackendDocker)
	v.SetDefault("sandbox.image", "")
	v.SetDefault("sandbox.allowed_images", []string{})
	v.SetDefault("sandbox.interpreter", "python3")
	v.SetDefault("sandbox.results_dir", "results")
	v.SetDefault("sandbox.script_name", "_temp_script.py")
	v.SetDefault("sandbox.container_workdir", "/app")
	v.SetDefault("sandbox.staging_mode", StagingIsolated)
	v.SetDefault("sandbox.timeout_sec", 300)
	v.SetDefault("sandbox.memory_mb", 0)
	v.SetDefault("sandbox.network_enabled", true)
	v.SetDefault("sandbox.enable_local_backend", false)
	v.SetDefault("sandbox.exclude_patterns", []string{"__pycache__/"})

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // flat list of independent checks
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	supportedBackends := map[string]bool{
		BackendDocker: true,
		BackendPodman: true,
		BackendLocal:  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MemoryMB < 0 {
		return fmt.Errorf("sandbox.memory_mb must not be negative, got: %d", c.Sandbox.MemoryMB)
	}

	if strings.TrimSpace(c.Sandbox.Interpreter) == "" {
		return errors.New("sandbox.interpreter must not be empty")
	}

	if c.Sandbox.ResultsDir == "" {
		return errors.New("sandbox.results_dir must not be empty")
	}

	if c.Sandbox.ScriptName == "" || c.Sandbox.ScriptName != filepath.Base(c.Sandbox.ScriptName) ||
		c.Sandbox.ScriptName == "." || c.Sandbox.ScriptName == ".." {
		return fmt.Errorf("invalid sandbox.script_name: %q, must be a bare filename", c.Sandbox.ScriptName)
	}

	if !path.IsAbs(c.Sandbox.ContainerWorkdir) {
		return fmt.Errorf("invalid sandbox.container_workdir: %q, must be an absolute path", c.Sandbox.ContainerWorkdir)
	}

	if c.Sandbox.StagingMode != StagingIsolated && c.Sandbox.StagingMode != StagingShared {
		return fmt.Errorf("invalid sandbox.staging_mode: %s, must be '%s' or '%s'",
			c.Sandbox.StagingMode, StagingIsolated, StagingShared)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}
