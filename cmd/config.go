package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/illarion/haredb/internal/core"
	"github.com/illarion/haredb/internal/storage"
)

const (
	// EnvPrefix prefixes every environment variable the CLI reads
	EnvPrefix = "HAREDB_"
	// EnvConfigFile names an optional YAML config file
	EnvConfigFile = EnvPrefix + "CONFIG"

	DefaultPath = "haredb.db"
)

// Config is the resolved CLI configuration. Flags override environment,
// environment overrides the config file.
type Config struct {
	Path            string        `koanf:"path"`
	Driver          string        `koanf:"driver"`
	SecretKey       string        `koanf:"secret_key"`
	LogLevel        string        `koanf:"log_level"`
	LockTimeout     time.Duration `koanf:"lock_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Globals are the flags every data command accepts
type Globals struct {
	DB     string
	Driver string
	Prompt bool
	// Metrics prints the metrics registry to stderr when the command ends
	Metrics bool
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Path:            DefaultPath,
		Driver:          string(storage.DriverBolt),
		LogLevel:        "warn",
		LockTimeout:     storage.DefaultLockTimeout,
		ShutdownTimeout: core.DefaultShutdownTimeout,
	}
}

// LoadConfig reads the config file named by HAREDB_CONFIG, then HAREDB_*
// variables, then applies g.
func LoadConfig(g Globals) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// HAREDB_SECRET_KEY -> secret_key
	envTransformer := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if g.DB != "" {
		cfg.Path = g.DB
	}
	if g.Driver != "" {
		cfg.Driver = g.Driver
	}

	if _, err := storage.ParseDriver(cfg.Driver); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// StoreOptions returns the storage options for cfg
func (c *Config) StoreOptions() storage.Options {
	driver, _ := storage.ParseDriver(c.Driver)
	return storage.Options{
		Driver:      driver,
		LockTimeout: c.LockTimeout,
	}
}
