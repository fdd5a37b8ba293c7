package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in Config.Backend
const (
	BackendServer = "server"
	BackendGmail  = "gmail"
)

// Summary providers
const (
	SummaryProviderServer  = "server"
	SummaryProviderOllama  = "ollama"
	SummaryProviderBedrock = "bedrock"
)

// Environment variables that override the config file
const (
	EnvConfigPath = "ECHOMAIL_CONFIG"
	EnvServerURL  = "ECHOMAIL_SERVER"
)

// ServerConfig configures the HTTP mail server gateway
type ServerConfig struct {
	BaseURL           string  `json:"base_url" yaml:"base_url"`
	Timeout           string  `json:"timeout" yaml:"timeout"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
	PageSize          int     `json:"page_size" yaml:"page_size"`
	// Session cookie forwarded to the server when the browser login flow is not available
	SessionCookie string `json:"session_cookie,omitempty" yaml:"session_cookie,omitempty"`
}

// GmailConfig configures the direct Gmail backend
type GmailConfig struct {
	Credentials string `json:"credentials" yaml:"credentials"`
	Token       string `json:"token" yaml:"token"`
	Workers     int    `json:"workers" yaml:"workers"`
}

// SyncConfig holds the timing of the background loops
type SyncConfig struct {
	PollInterval string `json:"poll_interval" yaml:"poll_interval"`
	SuggestDelay string `json:"suggest_delay" yaml:"suggest_delay"`
}

// SummaryConfig controls message summaries and their local cache
type SummaryConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	CacheEnabled bool   `json:"cache_enabled" yaml:"cache_enabled"`
	DatabasePath string `json:"database_path" yaml:"database_path"`
	MaxInput     int    `json:"max_input" yaml:"max_input"`

	// Provider is "server" (the mail server's summarize endpoint), "ollama" or "bedrock"
	Provider string `json:"provider" yaml:"provider"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Timeout  string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// KeyBindings defines keyboard shortcuts for the TUI
type KeyBindings struct {
	Inbox     string `json:"inbox" yaml:"inbox"`
	Sent      string `json:"sent" yaml:"sent"`
	Scheduled string `json:"scheduled" yaml:"scheduled"`
	Spam      string `json:"spam" yaml:"spam"`
	Refresh   string `json:"refresh" yaml:"refresh"`
	Search    string `json:"search" yaml:"search"`
	Compose   string `json:"compose" yaml:"compose"`
	Reply     string `json:"reply" yaml:"reply"`
	// QuickReply answers the open message from a one-line box under it
	QuickReply string `json:"quick_reply" yaml:"quick_reply"`
	Summarize  string `json:"summarize" yaml:"summarize"`
	Back       string `json:"back" yaml:"back"`
	Logout     string `json:"logout" yaml:"logout"`
	Quit       string `json:"quit" yaml:"quit"`
}

// Config holds all configuration for echomail
type Config struct {
	// "server" talks to the mail server API, "gmail" talks to Gmail directly
	Backend string `json:"backend" yaml:"backend"`

	Server  ServerConfig  `json:"server" yaml:"server"`
	Gmail   GmailConfig   `json:"gmail" yaml:"gmail"`
	Sync    SyncConfig    `json:"sync" yaml:"sync"`
	Summary SummaryConfig `json:"summary" yaml:"summary"`

	InitialView string      `json:"initial_view" yaml:"initial_view"`
	Keys        KeyBindings `json:"keys" yaml:"keys"`

	// Theme file (YAML). Empty uses the built-in colors.
	Theme string `json:"theme,omitempty" yaml:"theme,omitempty"`

	LogFile string `json:"log_file" yaml:"log_file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	credentials, token := DefaultCredentialPaths()
	return &Config{
		Backend: BackendServer,
		Server: ServerConfig{
			BaseURL:           "http://localhost:5000/api",
			Timeout:           "30s",
			RequestsPerSecond: 10,
			Burst:             5,
			PageSize:          20,
		},
		Gmail: GmailConfig{
			Credentials: credentials,
			Token:       token,
			Workers:     10,
		},
		Sync: SyncConfig{
			PollInterval: "1s",
			SuggestDelay: "300ms",
		},
		Summary: SummaryConfig{
			Enabled:      true,
			CacheEnabled: true,
			DatabasePath: DefaultDatabasePath(),
			MaxInput:     8000,
			Provider:     SummaryProviderServer,
			Timeout:      "60s",
		},
		InitialView: "inbox",
		Keys:        DefaultKeyBindings(),
	}
}

// DefaultKeyBindings returns the default keyboard shortcuts
func DefaultKeyBindings() KeyBindings {
	return KeyBindings{
		Inbox:      "1",
		Sent:       "2",
		Scheduled:  "3",
		Spam:       "4",
		Refresh:    "R",
		Search:     "/",
		Compose:    "c",
		Reply:      "r",
		QuickReply: "a",
		Summarize:  "y",
		Back:       "b",
		Logout:     "L",
		Quit:       "q",
	}
}

// LoadConfig reads configPath on top of DefaultConfig. A missing file yields the defaults.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if isYAML(configPath) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// ApplyEnv overrides settings from the environment. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvServerURL)); v != "" {
		c.Server.BaseURL = v
	}
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendServer:
		if strings.TrimSpace(c.Server.BaseURL) == "" {
			return fmt.Errorf("server.base_url is required for the %q backend", BackendServer)
		}
	case BackendGmail:
		if strings.TrimSpace(c.Gmail.Credentials) == "" {
			return fmt.Errorf("gmail.credentials is required for the %q backend", BackendGmail)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	for name, v := range map[string]string{
		"server.timeout":     c.Server.Timeout,
		"sync.poll_interval": c.Sync.PollInterval,
		"sync.suggest_delay": c.Sync.SuggestDelay,
		"summary.timeout":    c.Summary.Timeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}

	switch c.Summary.Provider {
	case "", SummaryProviderServer, SummaryProviderOllama, SummaryProviderBedrock:
	default:
		return fmt.Errorf("unknown summary.provider %q", c.Summary.Provider)
	}

	if c.Server.RequestsPerSecond < 0 {
		return fmt.Errorf("server.requests_per_second cannot be negative")
	}
	return nil
}

// ServerTimeout returns the parsed per-request timeout
func (c *Config) ServerTimeout() time.Duration {
	return parseDuration(c.Server.Timeout, 30*time.Second)
}

// PollInterval returns the parsed mediator poll interval
func (c *Config) PollInterval() time.Duration {
	return parseDuration(c.Sync.PollInterval, time.Second)
}

// SuggestDelay returns the parsed contact suggestion debounce
func (c *Config) SuggestDelay() time.Duration {
	return parseDuration(c.Sync.SuggestDelay, 300*time.Millisecond)
}

// SummaryTimeout returns the parsed summary provider timeout
func (c *Config) SummaryTimeout() time.Duration {
	return parseDuration(c.Summary.Timeout, 60*time.Second)
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// ResolveConfigPath picks the config file: explicit flag, then ECHOMAIL_CONFIG, then the default
func ResolveConfigPath(flagValue string, getenv func(string) string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := strings.TrimSpace(getenv(EnvConfigPath)); v != "" {
		return v
	}
	return DefaultConfigPath()
}

// DefaultConfigDir returns ~/.config/echomail
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "echomail")
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	return inConfigDir("config.json")
}

// DefaultCredentialPaths returns the default paths for credentials and token
func DefaultCredentialPaths() (string, string) {
	return inConfigDir("credentials.json"), inConfigDir("token.json")
}

// DefaultDatabasePath returns the default path of the local sqlite database
func DefaultDatabasePath() string {
	return inConfigDir("echomail.db")
}

// DefaultLogPath returns the default log file path
func DefaultLogPath() string {
	return inConfigDir("echomail.log")
}

func inConfigDir(name string) string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

func (c *Config) expandPaths() {
	c.Gmail.Credentials = expandHome(c.Gmail.Credentials)
	c.Gmail.Token = expandHome(c.Gmail.Token)
	c.Summary.DatabasePath = expandHome(c.Summary.DatabasePath)
	c.Theme = expandHome(c.Theme)
	c.LogFile = expandHome(c.LogFile)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
