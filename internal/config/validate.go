package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	transcript "github.com/alparslanahmed/transcript-parser-go"
)

var (
	// ErrInvalidAddr indicates an empty listen address or route
	ErrInvalidAddr = errors.New("invalid server address")

	// ErrInvalidUploadLimit indicates a non-positive upload limit
	ErrInvalidUploadLimit = errors.New("invalid upload limit")

	// ErrInvalidLookahead indicates a non-positive grade lookahead
	ErrInvalidLookahead = errors.New("invalid lookahead")

	// ErrInvalidExtractor indicates an unknown text extraction backend
	ErrInvalidExtractor = errors.New("invalid extractor")

	// ErrInvalidCache indicates invalid cache settings
	ErrInvalidCache = errors.New("invalid cache settings")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateServer(&cfg.Server); err != nil {
		errs = append(errs, err)
	}
	if err := validateParser(&cfg.Parser); err != nil {
		errs = append(errs, err)
	}
	if err := validateCache(&cfg.Cache); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateServer(cfg *ServerConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.Addr) == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr must not be empty", ErrInvalidAddr))
	}
	if !strings.HasPrefix(cfg.Route, "/") {
		errs = append(errs, fmt.Errorf("%w: server.route must start with '/', got '%s'", ErrInvalidAddr, cfg.Route))
	}
	if cfg.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("%w: server.max_upload_mb must be > 0, got %d", ErrInvalidUploadLimit, cfg.MaxUploadMB))
	}

	return errors.Join(errs...)
}

func validateParser(cfg *ParserConfig) error {
	var errs []error

	if cfg.Lookahead <= 0 {
		errs = append(errs, fmt.Errorf("%w: parser.lookahead must be > 0, got %d", ErrInvalidLookahead, cfg.Lookahead))
	}
	if _, err := transcript.NewExtractor(cfg.Extractor); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidExtractor, err))
	}

	return errors.Join(errs...)
}

func validateCache(cfg *CacheConfig) error {
	if !cfg.Enabled {
		return nil
	}

	var errs []error
	if cfg.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache.capacity must be > 0, got %d", ErrInvalidCache, cfg.Capacity))
	}
	if cfg.TTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache.ttl must be > 0, got %s", ErrInvalidCache, cfg.TTL))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a configured level name to a charmbracelet log level.
func ParseLevel(level string) (log.Level, error) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("%w: must be debug, info, warn or error, got '%s'", ErrInvalidLogLevel, level)
	}
	return lvl, nil
}
