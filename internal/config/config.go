package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/replykit/internal/paths"
)

// Backends understood by the llm package.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

// Config represents ~/.replykit/config.toml. Every field is optional.
type Config struct {
	ChatDBPath     string     `toml:"chat_db_path"`
	AddressBookDir string     `toml:"addressbook_dir"`
	ContextDBPath  string     `toml:"context_db_path"`
	SocketPath     string     `toml:"socket_path"`
	LogPath        string     `toml:"log_path"`
	Generation     Generation `toml:"generation"`
}

// Generation configures the generative backend.
type Generation struct {
	Backend         string   `toml:"backend"`
	Model           string   `toml:"model"`
	APIKey          string   `toml:"api_key"`
	BaseURL         string   `toml:"base_url"`
	Temperature     float64  `toml:"temperature"`
	RequestTimeout  Duration `toml:"request_timeout"`
	SuggestionCount int      `toml:"suggestion_count"`
}

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	return cfg
}

// Load reads config from the given path. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// Resolve loads path if it exists, falls back to defaults otherwise, and
// then applies environment overrides.
func Resolve(path string, getenv func(string) string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.ApplyEnv(getenv)
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.ChatDBPath, "IMESSAGE_DB_PATH")
	set(&c.ContextDBPath, "CONTEXT_DB_PATH")
	set(&c.Generation.Backend, "REPLYKIT_BACKEND")
	set(&c.Generation.Model, "REPLYKIT_MODEL")
	if c.Generation.APIKey == "" {
		switch c.Generation.Backend {
		case BackendOpenAI:
			set(&c.Generation.APIKey, "OPENAI_API_KEY")
		default:
			set(&c.Generation.APIKey, "GEMINI_API_KEY")
		}
	}
}

func (c *Config) fillDefaults() {
	if c.ChatDBPath == "" {
		c.ChatDBPath = paths.ChatDBPath()
	}
	if c.AddressBookDir == "" {
		c.AddressBookDir = paths.AddressBookDir()
	}
	if c.ContextDBPath == "" {
		c.ContextDBPath = paths.ContextDBPath()
	}
	if c.SocketPath == "" {
		c.SocketPath = paths.SocketPath()
	}
	if c.LogPath == "" {
		c.LogPath = paths.LogPath()
	}
	g := &c.Generation
	if g.Backend == "" {
		g.Backend = BackendGemini
	}
	if g.Temperature == 0 {
		g.Temperature = 0.8
	}
	if g.RequestTimeout.Duration <= 0 {
		g.RequestTimeout.Duration = 60 * time.Second
	}
	if g.SuggestionCount <= 0 {
		g.SuggestionCount = 3
	}
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
