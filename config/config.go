// Package config loads narrowck settings from defaults, a YAML file, a
// .env file and the environment, in increasing order of precedence.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/panyam/pynarrow/logging"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile    = ".narrowck.yaml"
	DefaultEnvFile = ".env"
	EnvPrefix      = "NARROWCK_"
)

type Config struct {
	LogLevel string `yaml:"log_level"`
	Color    bool   `yaml:"color"`

	// MaxErrors caps the diagnostics kept per file. 0 means no limit.
	MaxErrors int `yaml:"max_errors"`

	MaxLoopIterations int `yaml:"max_loop_iterations"`

	// ShowInfo prints informational diagnostics such as reveal_type output
	// alongside errors and warnings.
	ShowInfo bool `yaml:"show_info"`
}

func Default() *Config {
	return &Config{
		LogLevel:          "warn",
		Color:             true,
		MaxErrors:         100,
		MaxLoopIterations: 16,
		ShowInfo:          true,
	}
}

// Sources names where Load reads from. Empty paths fall back to the
// defaults; a missing default file is not an error but a missing explicit
// file is. Getenv defaults to os.LookupEnv.
type Sources struct {
	File    string
	EnvFile string
	Getenv  func(string) (string, bool)
}

func Load(src Sources) (*Config, error) {
	cfg := Default()

	path, explicit := src.File, src.File != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadYAML(path, explicit); err != nil {
		return nil, err
	}

	envPath, explicit := src.EnvFile, src.EnvFile != ""
	if !explicit {
		envPath = DefaultEnvFile
	}
	dotenv, err := readEnvFile(envPath, explicit)
	if err != nil {
		return nil, err
	}

	getenv := src.Getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}
	lookup := func(key string) (string, bool) {
		if v, ok := getenv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadYAML(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parsing config %s", path)
	}
	return nil
}

func readEnvFile(path string, required bool) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading env file %s", path)
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing env file %s", path)
	}
	return vars, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	for name, dst := range map[string]*bool{"COLOR": &c.Color, "SHOW_INFO": &c.ShowInfo} {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = b
	}
	for name, dst := range map[string]*int{"MAX_ERRORS": &c.MaxErrors, "MAX_LOOP_ITERATIONS": &c.MaxLoopIterations} {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = n
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := logging.ParseLogLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if c.MaxErrors < 0 {
		return errors.Errorf("max_errors must not be negative, got %d", c.MaxErrors)
	}
	if c.MaxLoopIterations < 1 {
		return errors.Errorf("max_loop_iterations must be at least 1, got %d", c.MaxLoopIterations)
	}
	return nil
}
