package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides (TRANSCRIPT_SERVER_ADDR, ...)
const EnvPrefix = "TRANSCRIPT"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	configFile string
	searchDir  string
}

// NewLoader creates a loader that searches dir for transcript.yaml.
func NewLoader(dir string) Loader {
	return &loader{searchDir: dir}
}

// NewFileLoader creates a loader that reads exactly the given file.
// A missing file is an error.
func NewFileLoader(path string) Loader {
	return &loader{configFile: path}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (TRANSCRIPT_*)
// 2. Config file (transcript.yaml or transcript.yml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("transcript")
		v.SetConfigType("yaml")
		v.AddConfigPath(l.searchDir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., TRANSCRIPT_PARSER_LOOKAHEAD)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable when searching - defaults + env vars apply
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key with viper. AutomaticEnv only resolves keys
// viper already knows, so this also enables the env overrides.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.route", defaults.Server.Route)
	v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	v.SetDefault("server.allowed_origin", defaults.Server.AllowedOrigin)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	v.SetDefault("parser.lookahead", defaults.Parser.Lookahead)
	v.SetDefault("parser.extractor", defaults.Parser.Extractor)
	v.SetDefault("parser.debug", defaults.Parser.Debug)

	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.capacity", defaults.Cache.Capacity)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)

	v.SetDefault("log.level", defaults.Log.Level)
}

// Load loads configuration from path when set, otherwise from the working directory.
func Load(path string) (*Config, error) {
	if path != "" {
		return NewFileLoader(path).Load()
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}
