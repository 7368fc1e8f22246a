// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Node      NodeConfig      `mapstructure:"node"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// NodeConfig holds node connection configuration.
type NodeConfig struct {
	URI            string        `mapstructure:"uri"`
	PoAMode        bool          `mapstructure:"poa_mode"`
	AsDeployer     bool          `mapstructure:"as_deployer"`
	FullSync       bool          `mapstructure:"full_sync"`
	RPCTimeout     time.Duration `mapstructure:"rpc_timeout"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
	Process        ProcessConfig `mapstructure:"process"`
}

// ProcessConfig describes an optional child node process. When Binary is
// empty the node at URI is assumed to be externally managed.
type ProcessConfig struct {
	Binary      string        `mapstructure:"binary"`
	Args        []string      `mapstructure:"args"`
	DataDir     string        `mapstructure:"data_dir"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// SyncConfig holds sync coordination budgets.
type SyncConfig struct {
	Timeout              time.Duration `mapstructure:"timeout"`
	PeerWaitBudget       time.Duration `mapstructure:"peer_wait_budget"`
	PeerPollsPerSecond   float64       `mapstructure:"peer_polls_per_second"`
	ProgressPollInterval time.Duration `mapstructure:"progress_poll_interval"`
}

// RegistryConfig holds contract registry configuration.
type RegistryConfig struct {
	PublicationURL string        `mapstructure:"publication_url"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("CHS")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "CHS_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "CHS_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "CHS_LOG_LEVEL", "LOG_LEVEL")

	// Node
	v.BindEnv("node.uri", "CHS_NODE_URI", "NODE_URI")
	v.BindEnv("node.poa_mode", "CHS_NODE_POA", "NODE_POA")
	v.BindEnv("node.as_deployer", "CHS_NODE_DEPLOYER")
	v.BindEnv("node.full_sync", "CHS_NODE_FULL_SYNC")
	v.BindEnv("node.process.binary", "CHS_NODE_BINARY")
	v.BindEnv("node.process.data_dir", "CHS_NODE_DATA_DIR")

	// Sync
	v.BindEnv("sync.timeout", "CHS_SYNC_TIMEOUT")
	v.BindEnv("sync.peer_wait_budget", "CHS_SYNC_PEER_WAIT_BUDGET")

	// Registry
	v.BindEnv("registry.publication_url", "CHS_REGISTRY_URL", "REGISTRY_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "CHS_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "CHS_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "CHS_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "chainsync")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Node defaults
	v.SetDefault("node.uri", "http://localhost:8545")
	v.SetDefault("node.poa_mode", false)
	v.SetDefault("node.as_deployer", false)
	v.SetDefault("node.full_sync", true)
	v.SetDefault("node.rpc_timeout", "15s")
	v.SetDefault("node.receipt_timeout", "120s")
	v.SetDefault("node.process.stop_timeout", "10s")

	// Sync defaults
	v.SetDefault("sync.timeout", "600s")
	v.SetDefault("sync.peer_wait_budget", "30s")
	v.SetDefault("sync.peer_polls_per_second", 4.0)
	v.SetDefault("sync.progress_poll_interval", "1s")

	// Registry defaults
	v.SetDefault("registry.fetch_timeout", "30s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "chainsync")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Node.URI == "" && c.Node.Process.Binary == "" {
		return fmt.Errorf("node.uri is required when no node.process.binary is configured")
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync.timeout must be positive")
	}
	if c.Sync.PeerWaitBudget <= 0 {
		return fmt.Errorf("sync.peer_wait_budget must be positive")
	}
	if c.Sync.PeerPollsPerSecond <= 0 {
		return fmt.Errorf("sync.peer_polls_per_second must be positive")
	}
	if c.Sync.ProgressPollInterval <= 0 {
		return fmt.Errorf("sync.progress_poll_interval must be positive")
	}
	if c.Node.ReceiptTimeout <= 0 {
		return fmt.Errorf("node.receipt_timeout must be positive")
	}
	return nil
}
