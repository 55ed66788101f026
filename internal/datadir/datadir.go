// Package datadir resolves the per-user data directory layout.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var userIDRegexp = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ValidateUserID checks that a user ID is safe to use as a directory name.
func ValidateUserID(id string) error {
	if !userIDRegexp.MatchString(id) {
		return fmt.Errorf("invalid user ID %q: must match ^[A-Za-z0-9._-]{1,64}$", id)
	}
	return nil
}

// Base returns ~/.chatkit.
func Base() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatkit")
}

// Dir returns the user-specific data directory.
func Dir(userID string) string {
	return filepath.Join(Base(), "users", userID)
}

// DBPath returns the chatkit.db path for a user.
func DBPath(userID string) string {
	return filepath.Join(Dir(userID), "chatkit.db")
}

// LogDir returns the log directory for a user.
func LogDir(userID string) string {
	return filepath.Join(Dir(userID), "logs")
}

// LogPath returns the client log file path.
func LogPath(userID string) string {
	return filepath.Join(LogDir(userID), "chatkit.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(Base(), "chatkit.toml")
}

// Ensure creates the user directory tree with owner-only permissions.
func Ensure(userID string) error {
	dirs := []string{
		Dir(userID),
		LogDir(userID),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
