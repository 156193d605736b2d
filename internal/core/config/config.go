// Package config provides configuration management for the RuleDesk admin
// service.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQL    = "sql"
)

// AdminAPIConfig holds configuration for the gRPC admin API service.
type AdminAPIConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration

	// Store selects the rule repository: "memory" or "sql".
	Store       string
	DatabaseURL string

	// MockLatency and FaultEvery configure the in-memory store's simulated
	// service behaviour. FaultEvery of 0 disables fault injection.
	MockLatency time.Duration
	FaultEvery  int

	CatalogPath string
	SeedPath    string

	LogLevel  string
	LogFormat string
}

// DefaultAdminAPIConfig returns configuration with default values.
func DefaultAdminAPIConfig() *AdminAPIConfig {
	return &AdminAPIConfig{
		Host:           "0.0.0.0",
		Port:           50061,
		RequestTimeout: 10 * time.Second,
		Store:          StoreMemory,
		MockLatency:    0,
		CatalogPath:    "./catalog.yaml",
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Addr returns the listen address.
func (c *AdminAPIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// databasePassword reports whether a database URL embeds a password.
func databasePassword(dbURL string) bool {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
