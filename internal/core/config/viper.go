package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RD_ADMIN_API_PORT.
const EnvPrefix = "RD"

// LoadConfig loads configuration using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller.
func LoadConfig(configPath string) (*AdminAPIConfig, error) {
	v := viper.New()

	d := DefaultAdminAPIConfig()
	v.SetDefault("admin_api.host", d.Host)
	v.SetDefault("admin_api.port", d.Port)
	v.SetDefault("admin_api.request_timeout", d.RequestTimeout.String())
	v.SetDefault("admin_api.store", d.Store)
	v.SetDefault("admin_api.database_url", "")
	v.SetDefault("admin_api.mock_latency", d.MockLatency.String())
	v.SetDefault("admin_api.fault_every", 0)
	v.SetDefault("admin_api.catalog_path", d.CatalogPath)
	v.SetDefault("admin_api.seed_path", "")
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(configPath); err != nil {
		return nil, err
	}

	cfg := &AdminAPIConfig{
		Host:           v.GetString("admin_api.host"),
		Port:           v.GetInt("admin_api.port"),
		RequestTimeout: v.GetDuration("admin_api.request_timeout"),
		Store:          strings.ToLower(v.GetString("admin_api.store")),
		DatabaseURL:    v.GetString("admin_api.database_url"),
		MockLatency:    v.GetDuration("admin_api.mock_latency"),
		FaultEvery:     v.GetInt("admin_api.fault_every"),
		CatalogPath:    v.GetString("admin_api.catalog_path"),
		SeedPath:       v.GetString("admin_api.seed_path"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a fully assembled configuration. Callers that apply CLI
// flags after LoadConfig validate again.
func Validate(cfg *AdminAPIConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MockLatency < 0 {
		return fmt.Errorf("mock_latency must not be negative, got %v", cfg.MockLatency)
	}
	if cfg.FaultEvery < 0 {
		return fmt.Errorf("fault_every must not be negative, got %d", cfg.FaultEvery)
	}
	switch cfg.Store {
	case StoreMemory:
	case StoreSQL:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("store %q requires database_url (or --db-url)", StoreSQL)
		}
	default:
		return fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StoreSQL, cfg.Store)
	}
	if cfg.CatalogPath == "" {
		return fmt.Errorf("catalog_path is required")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}

// validateNoSecretsInConfig rejects database passwords written into the
// config file; they belong in RD_ADMIN_API_DATABASE_URL. The file is read
// without environment overrides so only its own value is checked.
func validateNoSecretsInConfig(configPath string) error {
	if configPath == "" {
		return nil
	}
	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if databasePassword(file.GetString("admin_api.database_url")) {
		return fmt.Errorf("database passwords not allowed in config files (use %s_ADMIN_API_DATABASE_URL environment variable)", EnvPrefix)
	}
	return nil
}
