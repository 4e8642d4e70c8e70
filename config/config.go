package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Names of the extension objects the generated query calls into.
type Names struct {
	InternalSchema                     string `yaml:"internalSchema"`
	BoundaryFunction                   string `yaml:"boundaryFunction"`
	ToDateFunction                     string `yaml:"toDate"`
	ToTimestampFunction                string `yaml:"toTimestamp"`
	ToTimestampWithoutTimezoneFunction string `yaml:"toTimestampWithoutTimezone"`
}

func DefaultNames() Names {
	return Names{
		InternalSchema:                     "_timescaledb_internal",
		BoundaryFunction:                   "cagg_watermark",
		ToDateFunction:                     "to_date",
		ToTimestampFunction:                "to_timestamp",
		ToTimestampWithoutTimezoneFunction: "to_timestamp_without_timezone",
	}
}

type CatalogConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	// File is relative to the home directory unless absolute. Empty means stderr.
	File string `yaml:"file"`
}

type Config struct {
	Names   Names         `yaml:"names"`
	Catalog CatalogConfig `yaml:"catalog"`
	Logging LoggingConfig `yaml:"logging"`
}

func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

// HomeDir is where the default configuration file and log file live.
var HomeDir = func() string {
	dir, err := homedir.Dir()
	if err != nil {
		return ".caggunion"
	}
	return filepath.Join(dir, ".caggunion")
}()

func DefaultPath() string {
	return filepath.Join(HomeDir, "config.yaml")
}

func ReadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't open file")
	}
	defer f.Close()

	var config Config

	err = yaml.NewDecoder(f).Decode(&config)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't decode yaml configuration")
	}
	config.applyDefaults()

	return &config, nil
}

// Read reads the configuration at path, falling back to defaults
// if path is the default location and nothing is there.
func Read(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	config, err := ReadConfig(path)
	if err != nil {
		if path == DefaultPath() && os.IsNotExist(errors.Cause(err)) {
			return Default(), nil
		}
		return nil, err
	}
	return config, nil
}

func (config *Config) applyDefaults() {
	defaults := DefaultNames()
	if config.Names.InternalSchema == "" {
		config.Names.InternalSchema = defaults.InternalSchema
	}
	if config.Names.BoundaryFunction == "" {
		config.Names.BoundaryFunction = defaults.BoundaryFunction
	}
	if config.Names.ToDateFunction == "" {
		config.Names.ToDateFunction = defaults.ToDateFunction
	}
	if config.Names.ToTimestampFunction == "" {
		config.Names.ToTimestampFunction = defaults.ToTimestampFunction
	}
	if config.Names.ToTimestampWithoutTimezoneFunction == "" {
		config.Names.ToTimestampWithoutTimezoneFunction = defaults.ToTimestampWithoutTimezoneFunction
	}
	if config.Catalog.Type == "" {
		config.Catalog.Type = "builtin"
	}
	if config.Catalog.Config == nil {
		config.Catalog.Config = map[string]interface{}{}
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "warning"
	}
}
