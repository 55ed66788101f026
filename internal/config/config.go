// Package config loads and validates the client options file.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/driftline/chatkit/chat"
	"github.com/driftline/chatkit/internal/datadir"
)

// Config is the client options, loaded from chatkit.toml.
type Config struct {
	// UserID identifies the local user on the messaging server.
	UserID string `toml:"user_id" validate:"required"`
	// DataDir overrides the default per-user data directory.
	DataDir string `toml:"data_dir"`
	// SortMessageByServerTime orders messages by the server receipt time
	// instead of the local enqueue time.
	SortMessageByServerTime bool `toml:"sort_message_by_server_time"`
	// AutoDeliveryAck makes the client acknowledge message delivery
	// automatically on receipt.
	AutoDeliveryAck bool `toml:"auto_delivery_ack"`
	// MaxPageSize caps page sizes on paginated fetches.
	MaxPageSize int `toml:"max_page_size" validate:"gte=0,lte=400"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

var validate = validator.New()

// Default returns the configuration defaults applied before file values.
func Default() *Config {
	return &Config{
		SortMessageByServerTime: true,
		AutoDeliveryAck:         true,
		MaxPageSize:             50,
		LogLevel:                "info",
	}
}

// Load reads config from the given path, applying defaults for unset
// fields, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, chat.WrapErr(chat.KindInvalidParameter, "config.load", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return chat.WrapErr(chat.KindInvalidParameter, "config.validate", err)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return chat.WrapErr(chat.KindStorage, "config.save", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return chat.WrapErr(chat.KindStorage, "config.save", err)
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return chat.WrapErr(chat.KindStorage, "config.save", closeErr)
	}
	return chat.WrapErr(chat.KindStorage, "config.save", encErr)
}

// DBPath returns the database path under the effective data directory.
func (c *Config) DBPath() string {
	if c.DataDir != "" {
		return filepath.Join(c.DataDir, "chatkit.db")
	}
	return datadir.DBPath(c.UserID)
}

// LogPath returns the log file path under the effective data directory.
func (c *Config) LogPath() string {
	if c.DataDir != "" {
		return filepath.Join(c.DataDir, "logs", "chatkit.log")
	}
	return datadir.LogPath(c.UserID)
}

// ClampPageSize bounds a requested page size to (0, MaxPageSize].
func (c *Config) ClampPageSize(requested int) int {
	if requested <= 0 || requested > c.MaxPageSize {
		return c.MaxPageSize
	}
	return requested
}
