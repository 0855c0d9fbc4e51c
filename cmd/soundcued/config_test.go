package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfig_DefaultsValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  url: ws://service.example:9000/interactive
  channel_id: chan-42
  scene: overlay
session:
  connect_on_start: true
  max_controls: 30
http:
  port: 4000
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Remote.URL != "ws://service.example:9000/interactive" {
		t.Errorf("remote.url not applied: %s", cfg.Remote.URL)
	}
	if cfg.Remote.Scene != "overlay" {
		t.Errorf("remote.scene not applied: %s", cfg.Remote.Scene)
	}
	if !cfg.Session.ConnectOnStart {
		t.Errorf("session.connect_on_start not applied")
	}
	if cfg.Session.MaxControls != 30 {
		t.Errorf("session.max_controls not applied: %d", cfg.Session.MaxControls)
	}
	if cfg.HTTP.Port != 4000 {
		t.Errorf("http.port not applied: %d", cfg.HTTP.Port)
	}

	// Untouched sections keep their defaults.
	if cfg.Remote.TimeoutMS != defaultRemoteTimeoutMS {
		t.Errorf("remote.timeout_ms default lost: %d", cfg.Remote.TimeoutMS)
	}
	if cfg.IPC.SocketPath != defaultIPCSocket {
		t.Errorf("ipc.socket_path default lost: %s", cfg.IPC.SocketPath)
	}
}

func TestConfig_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, `
remote:
  url: ws://127.0.0.1:8100/interactive
  wss_url: typo
`)

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("unknown fields must be rejected")
	}
}

func TestConfig_FlagOverridesWin(t *testing.T) {
	cfg := DefaultConfig()
	url := "ws://flag.example/interactive"
	port := 5000

	FlagOverrides{RemoteURL: &url, HTTPPort: &port}.Apply(&cfg)

	if cfg.Remote.URL != url {
		t.Errorf("flag override lost: %s", cfg.Remote.URL)
	}
	if cfg.HTTP.Port != port {
		t.Errorf("flag override lost: %d", cfg.HTTP.Port)
	}
	// Nil pointers leave values alone.
	if cfg.Remote.Scene != defaultScene {
		t.Errorf("unrelated value changed: %s", cfg.Remote.Scene)
	}
}

func TestConfig_ValidationCatchesBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty remote url", func(c *Config) { c.Remote.URL = "" }},
		{"zero timeout", func(c *Config) { c.Remote.TimeoutMS = 0 }},
		{"negative settle", func(c *Config) { c.Remote.SettleMS = -1 }},
		{"empty scene", func(c *Config) { c.Remote.Scene = "" }},
		{"zero max controls", func(c *Config) { c.Session.MaxControls = 0 }},
		{"empty storage dir", func(c *Config) { c.Storage.Dir = "" }},
		{"bad http port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
