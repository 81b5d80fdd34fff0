// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by DefaultConfig.
const (
	DefaultPixelFormat = "rgb888"
	DefaultEventBuffer = 64
)

// Config holds engine-wide settings. It can be built with options or loaded
// from YAML:
//
//	pixel_format: rgb565
//	event_buffer: 128
//	rich_clipboard: true
//	max_clipboard_length: 1048576
//	log_level: info
type Config struct {
	// PixelFormat names the preset requested from peers (rgb888, rgb565,
	// rgb555, bgr233, indexed8).
	PixelFormat string `yaml:"pixel_format"`

	// EventBuffer is the number of decoded server messages a session may
	// hold before its reader waits.
	EventBuffer int `yaml:"event_buffer"`

	// RichClipboard enables the multi-format clipboard envelope towards peers
	// that advertise it.
	RichClipboard bool `yaml:"rich_clipboard"`

	// MaxClipboardLength bounds clipboard payloads read from peers.
	MaxClipboardLength uint32 `yaml:"max_clipboard_length"`

	// LogLevel selects a StandardLogger when Logger is nil. Empty disables
	// logging.
	LogLevel string `yaml:"log_level"`

	// Logger overrides LogLevel.
	Logger Logger `yaml:"-"`

	format *PixelFormat
}

// Option configures an Engine.
type Option func(*Config)

// DefaultConfig returns the configuration NewEngine starts from.
func DefaultConfig() Config {
	return Config{
		PixelFormat:        DefaultPixelFormat,
		EventBuffer:        DefaultEventBuffer,
		RichClipboard:      true,
		MaxClipboardLength: MaxClipboardLength,
	}
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, configurationError("parse_config", "invalid YAML", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is chosen by the operator
	if err != nil {
		return Config{}, configurationError("load_config", fmt.Sprintf("failed to read %s", path), err)
	}
	return ParseConfig(data)
}

// Validate checks every field and returns the first problem found.
func (c Config) Validate() error {
	if c.EventBuffer <= 0 {
		return configurationError("validate_config",
			fmt.Sprintf("event_buffer must be positive, got %d", c.EventBuffer), nil)
	}
	if c.MaxClipboardLength == 0 {
		return configurationError("validate_config", "max_clipboard_length must be positive", nil)
	}
	if _, err := c.ResolvePixelFormat(); err != nil {
		return err
	}
	if _, _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ResolvePixelFormat returns the format set with WithPixelFormat, or the
// preset named by PixelFormat.
func (c Config) ResolvePixelFormat() (PixelFormat, error) {
	if c.format != nil {
		if err := c.format.Validate(); err != nil {
			return PixelFormat{}, configurationError("pixel_format", "invalid pixel format", err)
		}
		return *c.format, nil
	}
	pf, ok := PixelFormatByName(c.PixelFormat)
	if !ok {
		return PixelFormat{}, configurationError("pixel_format",
			fmt.Sprintf("unknown pixel format %q", c.PixelFormat), nil)
	}
	return pf, nil
}

// logger returns the configured Logger, a StandardLogger for LogLevel, or a
// NoOpLogger.
func (c Config) logger() Logger {
	if c.Logger != nil {
		return c.Logger
	}
	level, ok, err := parseLogLevel(c.LogLevel)
	if err != nil || !ok {
		return &NoOpLogger{}
	}
	return NewStandardLogger(level)
}

// parseLogLevel maps a level name to a LogLevel. ok is false for "" and "off".
func parseLogLevel(name string) (level LogLevel, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "off", "none":
		return 0, false, nil
	case "debug":
		return LevelDebug, true, nil
	case "info":
		return LevelInfo, true, nil
	case "warn", "warning":
		return LevelWarn, true, nil
	case "error":
		return LevelError, true, nil
	default:
		return 0, false, configurationError("validate_config", fmt.Sprintf("unknown log level %q", name), nil)
	}
}

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithPixelFormat requests pf from peers instead of a named preset.
func WithPixelFormat(pf PixelFormat) Option {
	return func(c *Config) {
		c.format = &pf
	}
}

// WithEventBuffer sets how many decoded messages a session may buffer.
func WithEventBuffer(n int) Option {
	return func(c *Config) {
		c.EventBuffer = n
	}
}

// WithRichClipboard enables or disables the rich clipboard envelope.
func WithRichClipboard(enabled bool) Option {
	return func(c *Config) {
		c.RichClipboard = enabled
	}
}

// WithMaxClipboardLength bounds clipboard payloads read from peers.
func WithMaxClipboardLength(n uint32) Option {
	return func(c *Config) {
		c.MaxClipboardLength = n
	}
}
