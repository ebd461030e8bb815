// Package config gathers the settings of the agent and its servers. Values
// come from defaults, an optional YAML file, an optional .env file and
// GINRUMMY_* environment variables, in increasing priority. The CLI applies
// flags last.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"ginrummy/meta"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ModelPath     string `yaml:"model_path"`
	InputName     string `yaml:"input_name"`
	OutputName    string `yaml:"output_name"`
	OutputLogits  bool   `yaml:"output_logits"` // false when the output already holds probabilities
	Seed          uint64 `yaml:"seed"` // 0 seeds from the clock
	Verbose       bool   `yaml:"verbose"`
	RequireModel  bool   `yaml:"require_model"`
	ListenAddr    string `yaml:"listen_addr"`
	WebSocketAddr string `yaml:"websocket_addr"` // empty disables the websocket endpoint
	Games         int    `yaml:"games"`
}

func Default() Config {
	return Config{
		ModelPath:    meta.DefaultModelPath,
		InputName:    "input",
		OutputName:   "not_activated_output",
		OutputLogits: true,
		ListenAddr:   fmt.Sprintf(":%d", meta.DefaultPort),
		Games:        1,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, c.Validate()
}

// ApplyEnv loads envFile into the environment when it exists, without
// overriding variables already set, and then applies GINRUMMY_* variables.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(meta.EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	if v, ok := get("MODEL_PATH"); ok {
		c.ModelPath = v
	}
	if v, ok := get("INPUT_NAME"); ok {
		c.InputName = v
	}
	if v, ok := get("OUTPUT_NAME"); ok {
		c.OutputName = v
	}
	if v, ok := get("LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := get("WEBSOCKET_ADDR"); ok {
		c.WebSocketAddr = v
	}
	if v, ok := get("SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", meta.EnvPrefix, err)
		}
		c.Seed = seed
	}
	if v, ok := get("GAMES"); ok {
		games, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sGAMES: %w", meta.EnvPrefix, err)
		}
		c.Games = games
	}
	for name, field := range map[string]*bool{
		"VERBOSE":       &c.Verbose,
		"REQUIRE_MODEL": &c.RequireModel,
		"OUTPUT_LOGITS": &c.OutputLogits,
	} {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", meta.EnvPrefix, name, err)
			}
			*field = b
		}
	}
	return c.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.InputName == "" || c.OutputName == "":
		return errors.New("tensor names must not be empty")
	case c.Games < 1:
		return fmt.Errorf("games must be positive, got %d", c.Games)
	}
	return nil
}
