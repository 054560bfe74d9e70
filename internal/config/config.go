// Package config loads regtree settings from the environment.
package config

import (
	"fmt"
	"runtime"

	"github.com/kelseyhightower/envconfig"
)

// Backend names accepted by REGTREE_BACKEND and --backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
	BackendWindows  = "windows"
)

// Config holds all application configuration.
type Config struct {
	Store   StoreConfig
	Dynamo  DynamoConfig
	Logging LogConfig
}

// StoreConfig selects the backend and, for sqlite, the database file.
type StoreConfig struct {
	Backend string `envconfig:"REGTREE_BACKEND"`
	DB      string `envconfig:"REGTREE_DB"`
}

// DynamoConfig holds DynamoDB backend configuration.
type DynamoConfig struct {
	Table             string `envconfig:"REGTREE_DYNAMO_TABLE" default:"regtree_sections"`
	RelationshipTable string `envconfig:"REGTREE_DYNAMO_RELATIONSHIP_TABLE" default:"regtree_relationships"`
	Shards            int    `envconfig:"REGTREE_DYNAMO_SHARDS" default:"1"`
	DeferredDelete    bool   `envconfig:"REGTREE_DYNAMO_DEFERRED_DELETE" default:"false"`
	Endpoint          string `envconfig:"REGTREE_DYNAMO_ENDPOINT"`
	Profile           string `envconfig:"AWS_PROFILE"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"warn"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultBackend()
	}
	if err := ValidateBackend(cfg.Store.Backend); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: DefaultBackend(),
		},
		Dynamo: DynamoConfig{
			Table:             "regtree_sections",
			RelationshipTable: "regtree_relationships",
			Shards:            1,
		},
		Logging: LogConfig{
			Level: "warn",
		},
	}
}

// DefaultBackend is the native registry on Windows and a SQLite file elsewhere.
func DefaultBackend() string {
	if runtime.GOOS == "windows" {
		return BackendWindows
	}
	return BackendSQLite
}

// ValidateBackend rejects unknown backend names.
func ValidateBackend(name string) error {
	switch name {
	case BackendMemory, BackendSQLite, BackendDynamoDB, BackendWindows:
		return nil
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s, %s or %s)",
			name, BackendMemory, BackendSQLite, BackendDynamoDB, BackendWindows)
	}
}
