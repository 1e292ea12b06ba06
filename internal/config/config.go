// Package config loads and saves the omnichat TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matheus3301/omnichat/internal/session"
)

// Provider ids accepted in client entries.
const (
	ProviderMock     = "mock"
	ProviderWhatsApp = "whatsapp"
)

const (
	DefaultLogLevel      = "info"
	DefaultReadyTimeout  = 20 * time.Second
	DefaultNameCacheSize = 4096
	DefaultDeviceName    = "omnichat"
)

// Config represents <data_dir>/config.toml.
type Config struct {
	DataDir       string   `toml:"data_dir,omitempty"`
	DefaultClient string   `toml:"default_client,omitempty"`
	LogLevel      string   `toml:"log_level,omitempty"`
	ReadyTimeout  Duration `toml:"ready_timeout,omitempty"`
	NameCacheSize int      `toml:"name_cache_size,omitempty"`
	DeviceName    string   `toml:"device_name,omitempty"`
	Clients       []Client `toml:"clients,omitempty"`
}

// Client is one configured client.
type Client struct {
	ID       string `toml:"id"`
	Provider string `toml:"provider"`
	Name     string `toml:"name"`
}

// Duration is a time.Duration written as a string such as "20s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultClients are used when the config lists none.
func DefaultClients() []Client {
	return []Client{
		{ID: "mock-client-1", Provider: ProviderMock, Name: "Mock Provider"},
		{ID: "whatsapp-client-1", Provider: ProviderWhatsApp, Name: "WhatsApp"},
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ReadyTimeout.Duration <= 0 {
		c.ReadyTimeout.Duration = DefaultReadyTimeout
	}
	if c.NameCacheSize <= 0 {
		c.NameCacheSize = DefaultNameCacheSize
	}
	if c.DeviceName == "" {
		c.DeviceName = DefaultDeviceName
	}
	if len(c.Clients) == 0 {
		c.Clients = DefaultClients()
	}
	for i := range c.Clients {
		if c.Clients[i].Name == "" {
			c.Clients[i].Name = c.Clients[i].ID
		}
	}
}

// Load reads config from path and fills in defaults. Returns an error if the
// file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks client entries.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Clients))
	for _, cl := range c.Clients {
		if err := session.ValidateClientID(cl.ID); err != nil {
			return err
		}
		if seen[cl.ID] {
			return fmt.Errorf("duplicate client id %q", cl.ID)
		}
		seen[cl.ID] = true
		switch cl.Provider {
		case ProviderMock, ProviderWhatsApp:
		default:
			return fmt.Errorf("client %q: unknown provider %q", cl.ID, cl.Provider)
		}
	}
	if c.DefaultClient != "" && !seen[c.DefaultClient] {
		return fmt.Errorf("default_client %q is not configured", c.DefaultClient)
	}
	return nil
}

// ResolveClient picks the client to activate first: the flag value, else
// default_client, else the first configured client.
func (c *Config) ResolveClient(flagOverride string) string {
	switch {
	case flagOverride != "":
		return flagOverride
	case c.DefaultClient != "":
		return c.DefaultClient
	case len(c.Clients) > 0:
		return c.Clients[0].ID
	}
	return ""
}

// ResolveDataDir picks the data directory: the flag value, else data_dir,
// else the default root.
func ResolveDataDir(flagOverride string, cfg *Config) string {
	switch {
	case flagOverride != "":
		return flagOverride
	case cfg != nil && cfg.DataDir != "":
		return cfg.DataDir
	}
	return session.DefaultRoot()
}
