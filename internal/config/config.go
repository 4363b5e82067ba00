// Package config reads fkschema settings from the environment, or from a
// .env file when one exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	configLoader "github.com/andiksetyawan/config"
	"github.com/caarlos0/env/v11"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/migrate"
)

// Prefix is prepended to every variable name.
const Prefix = "FKSCHEMA_"

// Config holds the settings shared by all commands. Command-line flags
// override them.
type Config struct {
	DatabaseURL  string `env:"DATABASE_URL"`
	Format       string `env:"FORMAT" envDefault:"script"`
	Schema       string `env:"SCHEMA"`
	SQLiteDriver string `env:"SQLITE_DRIVER" envDefault:"sqlite3"`

	ForeignKeys ForeignKeyConfig `envPrefix:"FK_"`
}

// ForeignKeyConfig holds the defaults for new constraints.
type ForeignKeyConfig struct {
	OnUpdate   string `env:"ON_UPDATE"`
	OnDelete   string `env:"ON_DELETE"`
	AutoCreate bool   `env:"AUTO_CREATE" envDefault:"false"`
}

type environment struct {
	Config Config `envPrefix:"FKSCHEMA_"`
}

// Load reads the configuration. envPath is used when the file exists;
// otherwise only the process environment is read.
func Load(envPath string) (*Config, error) {
	var e environment

	_, err := os.Stat(envPath)
	switch {
	case envPath != "" && err == nil:
		loader := configLoader.New(configLoader.WithEnvPath(envPath))
		if err := loader.Load(&e); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", envPath, err)
		}
	case envPath == "" || errors.Is(err, fs.ErrNotExist):
		if err := env.Parse(&e); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", envPath, err)
	}

	return &e.Config, nil
}

// Migrate converts the constraint defaults for the migration layer.
func (c *Config) Migrate() (migrate.Config, error) {
	onUpdate, err := fk.ParseAction(c.ForeignKeys.OnUpdate)
	if err != nil {
		return migrate.Config{}, fmt.Errorf("invalid %sFK_ON_UPDATE: %w", Prefix, err)
	}
	onDelete, err := fk.ParseAction(c.ForeignKeys.OnDelete)
	if err != nil {
		return migrate.Config{}, fmt.Errorf("invalid %sFK_ON_DELETE: %w", Prefix, err)
	}
	return migrate.Config{
		OnUpdate:   onUpdate,
		OnDelete:   onDelete,
		AutoCreate: c.ForeignKeys.AutoCreate,
	}, nil
}
