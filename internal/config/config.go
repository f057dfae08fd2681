// Package config loads the chess server configuration from YAML with
// defaults for every field. A missing config file means pure defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable overriding the config path.
const EnvConfigPath = "CHESSD_CONFIG"

// DefaultPath is the config file location when the env var is unset.
const DefaultPath = "config.yaml"

// BackendJSON and BackendPostgres are the supported storage backends.
const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the chess server.
type Config struct {
	// Network
	BindAddress  string        `yaml:"bind_address"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // per-read deadline
	WriteTimeout time.Duration `yaml:"write_timeout"` // per-send deadline

	// Matchmaking
	DefaultElo    uint16        `yaml:"default_elo"`
	EloThreshold  uint16        `yaml:"elo_threshold"`
	MatchInterval time.Duration `yaml:"match_interval"`

	// Storage
	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects and parameterizes the user-store backend.
type StorageConfig struct {
	Backend   string         `yaml:"backend"` // json | postgres
	UsersPath string         `yaml:"users_path"`
	Database  DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Default returns Config with sensible defaults.
func Default() Config {
	return Config{
		BindAddress:   "0.0.0.0",
		Port:          8088,
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		DefaultElo:    1200,
		EloThreshold:  200,
		MatchInterval: time.Second,
		Storage: StorageConfig{
			Backend:   BackendJSON,
			UsersPath: "users.json",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "chessd",
				Password: "chessd",
				DBName:   "chessd",
				SSLMode:  "disable",
			},
		},
	}
}

// Load loads the config from a YAML file, merged over defaults.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Path resolves the config file location from the environment, falling
// back to DefaultPath.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}
