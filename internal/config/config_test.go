package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
[server]
port = 8080

[chat]
socket_url = "wss://chat.example.com/services/customer/chat"
`

func TestLoadAndValidateDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("default host = %q", cfg.Server.Host)
	}
	if cfg.Chat.PingIntervalSecs != 30 {
		t.Errorf("default ping interval = %d", cfg.Chat.PingIntervalSecs)
	}
	if cfg.Chat.RetryIntervalSecs != 5 {
		t.Errorf("default retry interval = %d", cfg.Chat.RetryIntervalSecs)
	}
	if cfg.Chat.MaxRetries != 3 {
		t.Errorf("default max retries = %d", cfg.Chat.MaxRetries)
	}
	if cfg.Chat.RefreshTimeoutSecs != 600 {
		t.Errorf("default refresh timeout = %d", cfg.Chat.RefreshTimeoutSecs)
	}
	if cfg.Chat.WorkflowType != "default" {
		t.Errorf("default workflow type = %q", cfg.Chat.WorkflowType)
	}
	if cfg.Storage.SQLitePath != "webchat.db" {
		t.Errorf("default sqlite path = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q", cfg.Logging.Level)
	}
	if cfg.Notices.ChatEnded == "" {
		t.Error("notice defaults not applied")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("missing file did not error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"zero port":         func(c *Config) { c.Server.Port = 0 },
		"huge port":         func(c *Config) { c.Server.Port = 70000 },
		"missing socket":    func(c *Config) { c.Chat.SocketURL = "" },
		"http socket":       func(c *Config) { c.Chat.SocketURL = "https://chat.example.com" },
		"negative retries":  func(c *Config) { c.Chat.MaxRetries = -2 },
		"bad log level":     func(c *Config) { c.Logging.Level = "verbose" },
		"leads without url": func(c *Config) { c.Leads.Enabled = true },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Server.Port = 8080
			cfg.Chat.SocketURL = "wss://chat.example.com/chat"
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("validate accepted a bad config")
			}
		})
	}
}

func TestMaxRetriesDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"max_retries = -1\n"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if cfg.Chat.MaxRetries != 0 {
		t.Errorf("max retries = %d, want 0 (reconnection disabled)", cfg.Chat.MaxRetries)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("WEBCHAT_SOCKET_URL", "wss://override.example.com/chat")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Chat.SocketURL != "wss://override.example.com/chat" {
		t.Errorf("socket url = %q, env override ignored", cfg.Chat.SocketURL)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		text string
		args []string
		want string
	}{
		{"wait {0} minutes", []string{"5"}, "wait 5 minutes"},
		{"error {0}: {1}", []string{"503", "down"}, "error 503: down"},
		{"{0} and {0}", []string{"again"}, "again and again"},
		{"no placeholders", []string{"unused"}, "no placeholders"},
	}
	for _, c := range cases {
		if got := Format(c.text, c.args...); got != c.want {
			t.Errorf("Format(%q, %v) = %q, want %q", c.text, c.args, got, c.want)
		}
	}
}
