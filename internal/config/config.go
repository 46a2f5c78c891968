package config

import (
	"time"

	transcript "github.com/alparslanahmed/transcript-parser-go"
)

// Config represents the complete service configuration.
// It can be loaded from transcript.yaml with environment variable overrides.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Parser ParserConfig `yaml:"parser" mapstructure:"parser"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`                         // listen address, e.g. ":8080"
	Route           string        `yaml:"route" mapstructure:"route"`                       // upload endpoint path
	MaxUploadMB     int64         `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`       // multipart body limit
	AllowedOrigin   string        `yaml:"allowed_origin" mapstructure:"allowed_origin"`     // Access-Control-Allow-Origin value
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"` // graceful shutdown budget
}

// ParserConfig configures the transcript parser.
type ParserConfig struct {
	Lookahead int    `yaml:"lookahead" mapstructure:"lookahead"` // lines searched for a grade after a module id
	Extractor string `yaml:"extractor" mapstructure:"extractor"` // "auto", "plain" or "content"
	Debug     bool   `yaml:"debug" mapstructure:"debug"`         // log extracted text and scan outcome
}

// CacheConfig configures the parse result cache of the server.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Capacity int           `yaml:"capacity" mapstructure:"capacity"` // max cached results
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn or error
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Route:           "/api/parse-transcript",
			MaxUploadMB:     20,
			AllowedOrigin:   "*",
			ShutdownTimeout: 10 * time.Second,
		},
		Parser: ParserConfig{
			Lookahead: transcript.DefaultLookahead,
			Extractor: transcript.ExtractorAuto,
			Debug:     false,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 256,
			TTL:      time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *ServerConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// NewParser builds a transcript parser from the parser settings.
func (c *ParserConfig) NewParser() (*transcript.Parser, error) {
	extractor, err := transcript.NewExtractor(c.Extractor)
	if err != nil {
		return nil, err
	}

	parser := transcript.NewParser()
	parser.SetExtractor(extractor)
	parser.SetLookahead(c.Lookahead)
	parser.SetDebug(c.Debug)
	return parser, nil
}
