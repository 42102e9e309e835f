package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.PingInterval != 30*time.Second || cfg.ReconnectAttempts != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	err := cfg.ApplyEnv(envOf(map[string]string{
		"KATA_WS_URL":             " wss://chess.example:9001/ ",
		"KATA_API_KEY":            "k-123",
		"KATA_PING_INTERVAL":      "5s",
		"KATA_RECONNECT_ATTEMPTS": "0",
		"KATA_ENGINE_MOVETIME_MS": "250",
		"KATA_AUTOPLAY":           "true",
		"REDIS_URL":               "redis://localhost:6379/0",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.WSURL != "wss://chess.example:9001/" || cfg.APIKey != "k-123" {
		t.Fatalf("strings not applied: %+v", cfg)
	}
	if cfg.PingInterval != 5*time.Second || cfg.ReconnectAttempts != 0 || cfg.EngineMoveTime != 250*time.Millisecond {
		t.Fatalf("numbers not applied: %+v", cfg)
	}
	if !cfg.Autoplay || cfg.RedisURL == "" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	cfg := Defaults()
	if err := cfg.ApplyEnv(envOf(map[string]string{"KATA_PING_INTERVAL": "often"})); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMergeFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kata.yaml")
	body := "ws_url: ws://file-host:1234\nplayer_name: filebot\nping_interval: 10s\nautoplay: true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Defaults()
	if err := cfg.MergeFile(path); err != nil {
		t.Fatalf("MergeFile: %v", err)
	}
	if cfg.WSURL != "ws://file-host:1234" || cfg.PlayerName != "filebot" || cfg.PingInterval != 10*time.Second || !cfg.Autoplay {
		t.Fatalf("file not merged: %+v", cfg)
	}
	if cfg.ReconnectAttempts != 5 {
		t.Fatalf("absent keys should keep defaults: %+v", cfg)
	}
	if err := cfg.ApplyEnv(envOf(map[string]string{"KATA_PLAYER_NAME": "envbot"})); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.PlayerName != "envbot" {
		t.Fatalf("env should win over file: %q", cfg.PlayerName)
	}
}

func TestValidate(t *testing.T) {
	cases := []func(*AppConfig){
		func(c *AppConfig) { c.WSURL = "http://localhost:9001" },
		func(c *AppConfig) { c.PingInterval = 0 },
		func(c *AppConfig) { c.ReconnectAttempts = -1 },
		func(c *AppConfig) { c.ReconnectDelay = 0 },
		func(c *AppConfig) { c.EngineMoveTime = 0 },
		func(c *AppConfig) { c.NotifyWebhookURL = "ftp://hooks" },
	}
	for i, mutate := range cases {
		cfg := Defaults()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestLoadGeneratesSessionID(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KATA_CONFIG_FILE", "")
	t.Setenv("KATA_SESSION_ID", "")
	t.Setenv("KATA_WS_URL", "ws://localhost:9001")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionID == "" || cfg.Headers()["X-Session-Id"] != cfg.SessionID {
		t.Fatalf("session id not set: %+v", cfg)
	}
}
