package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gridfed/hginventory/pkg/errors"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global      GlobalConfig      `yaml:"global"`
	Router      RouterConfig      `yaml:"router"`
	Connector   ConnectorConfig   `yaml:"connector"`
	Local       LocalConfig       `yaml:"local"`
	Identity    IdentityConfig    `yaml:"identity"`
	Server      ServerConfig      `yaml:"server"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// RouterConfig represents inventory routing settings
type RouterConfig struct {
	ConnectorTTL           time.Duration `yaml:"connector_ttl"`
	SerializeLocalReads    bool          `yaml:"serialize_local_reads"`
	MultiFolderConcurrency int           `yaml:"multi_folder_concurrency"`
	TrackRemoteCalls       bool          `yaml:"track_remote_calls"`
}

// ConnectorConfig represents remote connector settings
type ConnectorConfig struct {
	// Timeout of zero leaves remote calls bounded only by the caller's context
	Timeout    time.Duration `yaml:"timeout"`
	PathPrefix string        `yaml:"path_prefix"`
	UserAgent  string        `yaml:"user_agent"`
}

// LocalConfig selects the local inventory service
type LocalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// IdentityConfig represents the static user directory
type IdentityConfig struct {
	ForeignUsers []ForeignUser `yaml:"foreign_users"`
}

// ForeignUser records the home inventory of a user served by another grid
type ForeignUser struct {
	UserID       string `yaml:"user_id"`
	InventoryURL string `yaml:"inventory_url"`
}

// ServerConfig represents the inventory RPC server settings
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	// RouterPathPrefix serves the router itself for hosted sessions; empty disables it
	RouterPathPrefix string `yaml:"router_path_prefix"`
	// Sessions enables the presence management endpoints
	Sessions     bool          `yaml:"sessions"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DiagnosticsConfig represents concurrency diagnostics settings
type DiagnosticsConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Verbose           bool          `yaml:"verbose"`
	RaceWindow        time.Duration `yaml:"race_window"`
	SlowThreshold     time.Duration `yaml:"slow_threshold"`
	DeadlockThreshold time.Duration `yaml:"deadlock_threshold"`
	StaleTimeout      time.Duration `yaml:"stale_timeout"`
	ScanInterval      time.Duration `yaml:"scan_interval"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "json",
		},
		Router: RouterConfig{
			ConnectorTTL:           60 * time.Second,
			SerializeLocalReads:    true,
			MultiFolderConcurrency: 8,
			TrackRemoteCalls:       true,
		},
		Connector: ConnectorConfig{
			Timeout:    0,
			PathPrefix: "/inventory",
			UserAgent:  "hginventory",
		},
		Local: LocalConfig{
			Driver: "sqlite",
			DSN:    "inventory.db",
		},
		Server: ServerConfig{
			Enabled:          true,
			Address:          ":8003",
			RouterPathPrefix: "/router",
			Sessions:         true,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:           true,
			Verbose:           false,
			RaceWindow:        10 * time.Millisecond,
			SlowThreshold:     5 * time.Second,
			DeadlockThreshold: 30 * time.Second,
			StaleTimeout:      5 * time.Minute,
			ScanInterval:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Port:      9103,
			Path:      "/metrics",
			Namespace: "hginventory",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigLoad, "failed to read config file", err).
			WithContext("file", filename)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(errors.ErrCodeConfigLoad, "failed to parse config file", err).
			WithContext("file", filename)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv("HGINV_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("HGINV_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	// Router settings
	if val := os.Getenv("HGINV_CONNECTOR_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Router.ConnectorTTL = duration
		}
	}
	if val := os.Getenv("HGINV_SERIALIZE_LOCAL_READS"); val != "" {
		c.Router.SerializeLocalReads = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("HGINV_MULTI_FOLDER_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Router.MultiFolderConcurrency = n
		}
	}

	// Connector settings
	if val := os.Getenv("HGINV_CONNECTOR_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Connector.Timeout = duration
		}
	}

	// Local store
	if val := os.Getenv("HGINV_LOCAL_DRIVER"); val != "" {
		c.Local.Driver = val
	}
	if val := os.Getenv("HGINV_LOCAL_DSN"); val != "" {
		c.Local.DSN = val
	}

	// Server and metrics
	if val := os.Getenv("HGINV_SERVER_ADDRESS"); val != "" {
		c.Server.Address = val
	}
	if val := os.Getenv("HGINV_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	// Diagnostics
	if val := os.Getenv("HGINV_DIAGNOSTICS_ENABLED"); val != "" {
		c.Diagnostics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("HGINV_DIAGNOSTICS_VERBOSE"); val != "" {
		c.Diagnostics.Verbose = strings.ToLower(val) == "true"
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigSave, "failed to marshal config", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.Wrap(errors.ErrCodeConfigSave, "failed to create config directory", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeConfigSave, "failed to write config file", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.Local.Driver) == "" {
		return errors.NewError(errors.ErrCodeMissingLocalService,
			"no local inventory service configured; set local.driver").
			WithComponent("config")
	}

	if c.Router.ConnectorTTL <= 0 {
		return invalid("connector_ttl must be greater than 0")
	}

	if c.Router.MultiFolderConcurrency <= 0 {
		return invalid("multi_folder_concurrency must be greater than 0")
	}

	if c.Connector.Timeout < 0 {
		return invalid("connector timeout must not be negative")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return invalid(fmt.Sprintf("invalid metrics port: %d", c.Metrics.Port))
	}

	if c.Server.Enabled && c.Server.Address == "" {
		return invalid("server address must be set when the server is enabled")
	}

	if c.Server.RouterPathPrefix != "" && c.Server.RouterPathPrefix == c.Connector.PathPrefix {
		return invalid("server router_path_prefix must differ from connector path_prefix")
	}

	if c.Diagnostics.Enabled {
		if c.Diagnostics.RaceWindow <= 0 || c.Diagnostics.SlowThreshold <= 0 ||
			c.Diagnostics.DeadlockThreshold <= 0 || c.Diagnostics.StaleTimeout <= 0 {
			return invalid("diagnostics thresholds must be greater than 0")
		}
	}

	for i, u := range c.Identity.ForeignUsers {
		if u.UserID == "" || u.InventoryURL == "" {
			return invalid(fmt.Sprintf("identity.foreign_users[%d] needs user_id and inventory_url", i))
		}
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return invalid(fmt.Sprintf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	switch c.Global.LogFormat {
	case "json", "console":
	default:
		return invalid(fmt.Sprintf("invalid log_format: %s (must be json or console)", c.Global.LogFormat))
	}

	return nil
}

func invalid(msg string) error {
	return errors.NewError(errors.ErrCodeInvalidConfig, msg).WithComponent("config")
}
