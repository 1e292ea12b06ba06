// Package session describes the on-disk layout of an omnichat data directory.
package session

import (
	"os"
	"path/filepath"
)

// File names inside a client directory.
const (
	SessionFileName = "session.db"
	CacheFileName   = "cache.db"
)

// Layout resolves every path under one data directory.
type Layout struct {
	Root string
}

// DefaultRoot returns ~/.omnichat.
func DefaultRoot() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".omnichat")
}

// NewLayout returns the layout rooted at root, or at DefaultRoot when root is
// empty.
func NewLayout(root string) Layout {
	if root == "" {
		root = DefaultRoot()
	}
	return Layout{Root: root}
}

// ConfigPath returns the config file path.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.Root, "config.toml")
}

// SocketPath returns the daemon's control socket.
func (l Layout) SocketPath() string {
	return filepath.Join(l.Root, "omnichatd.sock")
}

// LogDir returns the log directory.
func (l Layout) LogDir() string {
	return filepath.Join(l.Root, "logs")
}

// LogPath returns the daemon log file path.
func (l Layout) LogPath() string {
	return filepath.Join(l.LogDir(), "omnichatd.log")
}

// ClientDir returns the directory holding one client's backend session. It
// is wiped whenever the client re-authenticates.
func (l Layout) ClientDir(clientID string) string {
	return filepath.Join(l.Root, "clients", clientID)
}

// SessionDBPath returns the backend device store of a client.
func (l Layout) SessionDBPath(clientID string) string {
	return filepath.Join(l.ClientDir(clientID), SessionFileName)
}

// CacheDBPath returns the message cache of a client.
func (l Layout) CacheDBPath(clientID string) string {
	return filepath.Join(l.ClientDir(clientID), CacheFileName)
}

// EnsureDir creates the root and log directories.
func (l Layout) EnsureDir() error {
	for _, d := range []string{l.Root, l.LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
