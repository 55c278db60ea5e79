package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"obd-telemetry-log/internal/entries"
	"obd-telemetry-log/internal/readings"
)

// Config is the obdlog configuration file.
type Config struct {
	DBPath       string   `toml:"db_path"`
	TankCapacity *float64 `toml:"tank_capacity"` // L
	LogLevel     string   `toml:"log_level"`
	ReadingsKey  string   `toml:"readings_key"`
	EntriesKey   string   `toml:"entries_key"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DBPath:      "obdlog.db",
		LogLevel:    "info",
		ReadingsKey: readings.DefaultKey,
		EntriesKey:  entries.DefaultKey,
	}
}

// LoadFile reads the configuration from fileName.
func LoadFile(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return Load(file)
}

// Load reads the configuration from r. Missing keys keep their defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.ReadingsKey == "" || c.EntriesKey == "" {
		return errors.New("readings_key and entries_key must not be empty")
	}
	if c.ReadingsKey == c.EntriesKey {
		return errors.Errorf("readings_key and entries_key must differ, both are %q", c.ReadingsKey)
	}
	if c.TankCapacity != nil && *c.TankCapacity <= 0 {
		return errors.Errorf("tank_capacity must be positive, got %v", *c.TankCapacity)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log_level")
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
