package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/derailed/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendServer, cfg.Backend)
	assert.Equal(t, "http://localhost:5000/api", cfg.Server.BaseURL)
	assert.Equal(t, 20, cfg.Server.PageSize)
	assert.Equal(t, 10, cfg.Gmail.Workers)
	assert.Equal(t, "inbox", cfg.InitialView)
	assert.True(t, cfg.Summary.Enabled)
	assert.True(t, cfg.Summary.CacheEnabled)
	assert.Equal(t, 8000, cfg.Summary.MaxInput)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultKeyBindings(t *testing.T) {
	keys := DefaultKeyBindings()

	assert.Equal(t, "1", keys.Inbox)
	assert.Equal(t, "2", keys.Sent)
	assert.Equal(t, "3", keys.Scheduled)
	assert.Equal(t, "4", keys.Spam)
	assert.Equal(t, "/", keys.Search)
	assert.Equal(t, "c", keys.Compose)
	assert.Equal(t, "r", keys.Reply)
	assert.Equal(t, "a", keys.QuickReply)
	assert.Equal(t, "q", keys.Quit)

	seen := map[string]string{}
	for name, k := range map[string]string{
		"inbox": keys.Inbox, "sent": keys.Sent, "scheduled": keys.Scheduled, "spam": keys.Spam,
		"refresh": keys.Refresh, "search": keys.Search, "compose": keys.Compose, "reply": keys.Reply,
		"quick-reply": keys.QuickReply, "summarize": keys.Summarize, "back": keys.Back, "logout": keys.Logout, "quit": keys.Quit,
	} {
		if other, dup := seen[k]; dup {
			t.Errorf("key %q bound to both %s and %s", k, name, other)
		}
		seen[k] = name
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.ServerTimeout())
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.Equal(t, 300*time.Millisecond, cfg.SuggestDelay())

	cfg.Server.Timeout = "5s"
	cfg.Sync.PollInterval = "250ms"
	cfg.Sync.SuggestDelay = ""
	assert.Equal(t, 5*time.Second, cfg.ServerTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 300*time.Millisecond, cfg.SuggestDelay())

	cfg.Sync.PollInterval = "soon"
	cfg.Server.Timeout = "-1s"
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.ServerTimeout())

	assert.Equal(t, time.Minute, cfg.SummaryTimeout())
	cfg.Summary.Timeout = "90s"
	assert.Equal(t, 90*time.Second, cfg.SummaryTimeout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Backend = "imap" },
			wantErr: `unknown backend "imap"`,
		},
		{
			name:    "server without url",
			mutate:  func(c *Config) { c.Server.BaseURL = " " },
			wantErr: "server.base_url is required",
		},
		{
			name: "gmail without credentials",
			mutate: func(c *Config) {
				c.Backend = BackendGmail
				c.Gmail.Credentials = ""
			},
			wantErr: "gmail.credentials is required",
		},
		{
			name:    "bad poll interval",
			mutate:  func(c *Config) { c.Sync.PollInterval = "1 second" },
			wantErr: "invalid sync.poll_interval",
		},
		{
			name:    "unknown summary provider",
			mutate:  func(c *Config) { c.Summary.Provider = "openai" },
			wantErr: `unknown summary.provider "openai"`,
		},
		{
			name:   "ollama summaries",
			mutate: func(c *Config) { c.Summary.Provider = SummaryProviderOllama },
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Server.RequestsPerSecond = -1 },
			wantErr: "requests_per_second cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Gmail.Credentials = "/tmp/credentials.json"
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultPaths(t *testing.T) {
	if DefaultConfigDir() == "" {
		t.Skip("no home directory")
	}

	assert.Contains(t, DefaultConfigPath(), filepath.Join(".config", "echomail", "config.json"))
	assert.Contains(t, DefaultDatabasePath(), filepath.Join("echomail", "echomail.db"))
	assert.Contains(t, DefaultLogPath(), filepath.Join("echomail", "echomail.log"))

	credPath, tokenPath := DefaultCredentialPaths()
	assert.Contains(t, credPath, filepath.Join("echomail", "credentials.json"))
	assert.Contains(t, tokenPath, filepath.Join("echomail", "token.json"))
}

func TestResolveConfigPath(t *testing.T) {
	env := map[string]string{EnvConfigPath: "/etc/echomail.yaml"}
	getenv := func(k string) string { return env[k] }

	assert.Equal(t, "/flag.json", ResolveConfigPath("/flag.json", getenv))
	assert.Equal(t, "/etc/echomail.yaml", ResolveConfigPath("", getenv))
	assert.Equal(t, DefaultConfigPath(), ResolveConfigPath("", func(string) string { return "" }))
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(string) string { return "" })
	assert.Equal(t, "http://localhost:5000/api", cfg.Server.BaseURL)

	cfg.ApplyEnv(func(k string) string {
		if k == EnvServerURL {
			return " https://mail.example.com/api "
		}
		return ""
	})
	assert.Equal(t, "https://mail.example.com/api", cfg.Server.BaseURL)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")

	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/config.json")

	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoadConfig_JSON(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")
	data := `{
  "backend": "gmail",
  "server": {"page_size": 50},
  "gmail": {"credentials": "/secrets/creds.json", "workers": 4},
  "sync": {"poll_interval": "2s"},
  "initial_view": "sent",
  "keys": {"quit": "Q"}
}`
	require.NoError(t, os.WriteFile(configFile, []byte(data), 0o600))

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, BackendGmail, cfg.Backend)
	assert.Equal(t, 50, cfg.Server.PageSize)
	assert.Equal(t, "http://localhost:5000/api", cfg.Server.BaseURL, "unset fields keep defaults")
	assert.Equal(t, "/secrets/creds.json", cfg.Gmail.Credentials)
	assert.Equal(t, 4, cfg.Gmail.Workers)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, "sent", cfg.InitialView)
	assert.Equal(t, "Q", cfg.Keys.Quit)
	assert.Equal(t, "c", cfg.Keys.Compose)
}

func TestLoadConfig_YAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yml")
	data := `
backend: server
server:
  base_url: https://mail.example.com/api
  requests_per_second: 2.5
summary:
  enabled: false
  database_path: ~/mail/cache.db
`
	require.NoError(t, os.WriteFile(configFile, []byte(data), 0o600))

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, "https://mail.example.com/api", cfg.Server.BaseURL)
	assert.Equal(t, 2.5, cfg.Server.RequestsPerSecond)
	assert.False(t, cfg.Summary.Enabled)
	if home, err := os.UserHomeDir(); err == nil {
		assert.Equal(t, filepath.Join(home, "mail", "cache.db"), cfg.Summary.DatabasePath)
	}
}

func TestLoadConfig_InvalidContent(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"invalid.json": "invalid json content",
		"invalid.yaml": "server: [unterminated",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := LoadConfig(path)
		assert.Error(t, err, name)
		assert.Nil(t, cfg, name)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			configFile := filepath.Join(t.TempDir(), "nested", "deep", name)

			cfg := DefaultConfig()
			cfg.Backend = BackendGmail
			cfg.Gmail.Credentials = "/creds.json"
			cfg.Keys.Search = "s"

			require.NoError(t, cfg.SaveConfig(configFile))
			assert.FileExists(t, configFile)

			loaded, err := LoadConfig(configFile)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadTheme(t *testing.T) {
	colors, err := LoadTheme("")
	require.NoError(t, err)
	assert.Equal(t, DefaultColors(), colors)

	path := filepath.Join(t.TempDir(), "theme.yaml")
	theme := `
echomail:
  list:
    unreadColor: "#ff0000"
  status:
    errorColor: red
`
	require.NoError(t, os.WriteFile(path, []byte(theme), 0o600))

	colors, err = LoadTheme(path)
	require.NoError(t, err)
	assert.Equal(t, Color("#ff0000"), colors.List.UnreadColor)
	assert.Equal(t, Color("red"), colors.Status.ErrorColor)
	assert.Equal(t, DefaultColors().List.ReadColor, colors.List.ReadColor, "missing colors keep defaults")
}

func TestLoadTheme_Errors(t *testing.T) {
	_, err := LoadTheme("/nonexistent/theme.yaml")
	assert.ErrorContains(t, err, "failed to read theme file")

	path := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(path, []byte("otherTool:\n  body: {}\n"), 0o600))
	_, err = LoadTheme(path)
	assert.ErrorContains(t, err, "missing echomail section")
}

func TestSaveTheme_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes", "dark.yaml")
	require.NoError(t, SaveTheme(DefaultColors(), path))

	colors, err := LoadTheme(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultColors(), colors)

	assert.Error(t, SaveTheme(nil, path))
}

func TestColor(t *testing.T) {
	assert.Equal(t, tcell.ColorDefault, DefaultColor.Color())
	assert.Equal(t, tcell.ColorDefault, Color("").Color())
	assert.Equal(t, "-", DefaultColor.String())
	assert.Equal(t, "#123456", NewColor("#123456").String())
	assert.Equal(t, tcell.GetColor("#123456").TrueColor(), NewColor("#123456").Color())
}
