package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"

	"tweetledger/pkg"
	"tweetledger/pkg/database"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore: TWEETLEDGER_SERVER__API_KEY sets server.api_key.
const EnvPrefix = "TWEETLEDGER_"

// DefaultProgramID is the address the tweet program is deployed at unless
// program.id says otherwise.
const DefaultProgramID = "7wcobSpj8qrNtHycFaop7BxEWzbf81SRQUd8rsc6kNS5"

type Config struct {
	Server struct {
		Port   string `koanf:"port"`
		APIKey string `koanf:"api_key"`
	} `koanf:"server"`
	Database struct {
		Driver string `koanf:"driver"`
		Path   string `koanf:"path"`
	} `koanf:"database"`
	Journal struct {
		Path string `koanf:"path"`
	} `koanf:"journal"`
	Program struct {
		ID string `koanf:"id"`
	} `koanf:"program"`
	Log struct {
		Level       string `koanf:"level"`
		Development bool   `koanf:"development"`
	} `koanf:"log"`
}

// LoadConfig reads the yaml file at path, if it exists, then applies
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverBolt
	}
	if c.Database.Path == "" {
		c.Database.Path = "tweetledger.db"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "journal.log"
	}
	if c.Program.ID == "" {
		c.Program.ID = DefaultProgramID
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverBolt, database.DriverSQLite:
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	if _, err := c.ProgramID(); err != nil {
		return fmt.Errorf("program.id: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) ProgramID() (pkg.PublicKey, error) {
	return pkg.ParsePublicKey(c.Program.ID)
}
