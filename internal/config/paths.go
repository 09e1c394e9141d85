// Package config provides configuration management for stashd.
package config

import (
	"os"
	"path/filepath"
)

// Paths holds the filesystem locations stashd uses.
// Everything lives under a single base directory (~/.seanstash) so the
// capture CLI and the daemon share one home, matching the layout the
// capture script established.
type Paths struct {
	// BaseDir is the root directory for all stashd files (~/.seanstash)
	BaseDir string
}

// DefaultPaths returns the default paths rooted at ~/.seanstash.
// STASHD_HOME overrides the base directory, which is how tests isolate
// themselves from a real installation.
func DefaultPaths() *Paths {
	if dir := os.Getenv("STASHD_HOME"); dir != "" {
		return &Paths{BaseDir: dir}
	}
	return &Paths{BaseDir: filepath.Join(homeDir(), ".seanstash")}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir, "config.yaml")
}

// DatabaseFile returns the path to the SQLite database.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.BaseDir, "stash.db")
}

// LockFile returns the path to the daemon lock file.
func (p *Paths) LockFile() string {
	return filepath.Join(p.BaseDir, "stashd.lock")
}

// PIDFile returns the path to the daemon PID file.
func (p *Paths) PIDFile() string {
	return filepath.Join(p.BaseDir, "stashd.pid")
}

// LogFile returns the path to the daemon log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.BaseDir, "stashd.log")
}

// EnsureDirectories creates the base directory if it does not exist.
func (p *Paths) EnsureDirectories() error {
	return os.MkdirAll(p.BaseDir, 0o700)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}
