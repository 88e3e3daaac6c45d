// Package config handles loading tally's config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the config.toml file.
type Config struct {
	Server Server `toml:"server"`
	Client Client `toml:"client"`
}

// Server contains settings for `tally serve`.
type Server struct {
	Addr     string `toml:"addr"`
	Database string `toml:"database"`
	Uploads  string `toml:"uploads"`
	// Timezone is an IANA name used for range boundaries and report dates.
	// Empty means the local zone.
	Timezone       string `toml:"timezone"`
	MaxUploadBytes int64  `toml:"max-upload-bytes"`
	LogLevel       string `toml:"log-level"`
	LogFormat      string `toml:"log-format"`
}

// Client contains settings for `tally tui` and `tally export`.
type Client struct {
	ServerURL         string   `toml:"server-url"`
	Token             string   `toml:"token"`
	StateFile         string   `toml:"state-file"`
	InactivityTimeout Duration `toml:"inactivity-timeout"`
	PromptGrace       Duration `toml:"prompt-grace"`
	PollInterval      Duration `toml:"poll-interval"`
}

// Duration is a time.Duration written as a string such as "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("duration %q must not be negative", text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists. Paths are
// relative to dir, usually the user config directory.
func Default(dir string) *Config {
	return &Config{
		Server: Server{
			Addr:           "127.0.0.1:8080",
			Database:       filepath.Join(dir, "tally.db"),
			Uploads:        filepath.Join(dir, "uploads"),
			MaxUploadBytes: 10 << 20,
			LogLevel:       "info",
			LogFormat:      "text",
		},
		Client: Client{
			ServerURL:         "http://127.0.0.1:8080",
			StateFile:         filepath.Join(dir, "timer-state.json"),
			InactivityTimeout: Duration{10 * time.Minute},
			PromptGrace:       Duration{time.Minute},
			PollInterval:      Duration{time.Minute},
		},
	}
}

// Dir returns ~/.config/tally.
func Dir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config directory: %w", err)
	}
	return filepath.Join(cfg, "tally"), nil
}

// Load reads path over the defaults. An empty path means
// Dir()/config.toml; a missing file yields the defaults.
// TALLY_SERVER and TALLY_TOKEN override the client section.
func Load(path string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = filepath.Join(dir, "config.toml")
	}

	fileCfg, meta, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}
	cfg := mergeConfigs(Default(dir), fileCfg, meta)

	if v := strings.TrimSpace(os.Getenv("TALLY_SERVER")); v != "" {
		cfg.Client.ServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TALLY_TOKEN")); v != "" {
		cfg.Client.Token = v
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, toml.MetaData{}, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}
	return &cfg, meta, nil
}

func mergeConfigs(base, file *Config, meta toml.MetaData) *Config {
	merged := *base
	s, c := &merged.Server, &merged.Client

	s.Addr = mergeString(meta.IsDefined("server", "addr"), file.Server.Addr, s.Addr)
	s.Database = mergeString(meta.IsDefined("server", "database"), file.Server.Database, s.Database)
	s.Uploads = mergeString(meta.IsDefined("server", "uploads"), file.Server.Uploads, s.Uploads)
	s.Timezone = mergeString(meta.IsDefined("server", "timezone"), file.Server.Timezone, s.Timezone)
	s.LogLevel = mergeString(meta.IsDefined("server", "log-level"), file.Server.LogLevel, s.LogLevel)
	s.LogFormat = mergeString(meta.IsDefined("server", "log-format"), file.Server.LogFormat, s.LogFormat)
	if meta.IsDefined("server", "max-upload-bytes") {
		s.MaxUploadBytes = file.Server.MaxUploadBytes
	}

	c.ServerURL = mergeString(meta.IsDefined("client", "server-url"), file.Client.ServerURL, c.ServerURL)
	c.Token = mergeString(meta.IsDefined("client", "token"), file.Client.Token, c.Token)
	c.StateFile = mergeString(meta.IsDefined("client", "state-file"), file.Client.StateFile, c.StateFile)
	if meta.IsDefined("client", "inactivity-timeout") {
		c.InactivityTimeout = file.Client.InactivityTimeout
	}
	if meta.IsDefined("client", "prompt-grace") {
		c.PromptGrace = file.Client.PromptGrace
	}
	if meta.IsDefined("client", "poll-interval") {
		c.PollInterval = file.Client.PollInterval
	}
	return &merged
}

func mergeString(defined bool, fileValue, baseValue string) string {
	value := baseValue
	if defined {
		value = fileValue
	}
	return strings.TrimSpace(value)
}

// Location resolves Server.Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Server.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Server.Timezone, err)
	}
	return loc, nil
}

func (c *Config) validate() error {
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max-upload-bytes must be positive")
	}
	if c.Client.PollInterval.Duration <= 0 {
		return fmt.Errorf("client.poll-interval must be positive")
	}
	if c.Client.InactivityTimeout.Duration <= 0 {
		return fmt.Errorf("client.inactivity-timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
