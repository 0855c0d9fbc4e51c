package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the soundcued daemon.
//
// The config file is the primary configuration surface; flags exist for
// small overrides. Defaults and validation live here so the rest of the
// code can assume a well-formed config.
type Config struct {
	// Remote interactive service connection
	Remote RemoteConfig `yaml:"remote"`

	// Session behavior knobs
	Session SessionConfig `yaml:"session"`

	// Settings storage location
	Storage StorageConfig `yaml:"storage"`

	// IPC configuration (used by soundcue-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP control API and state websocket
	HTTP HTTPConfig `yaml:"http"`

	// Local sound playback
	Player PlayerConfig `yaml:"player"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type RemoteConfig struct {
	URL       string `yaml:"url"`
	ChannelID string `yaml:"channel_id"`
	VersionID string `yaml:"version_id"`
	TokenFile string `yaml:"token_file"`
	Scene     string `yaml:"scene"`
	TimeoutMS int    `yaml:"timeout_ms"`

	// Quiescence window between clearing old controls and creating new ones.
	SettleMS int `yaml:"settle_ms,omitempty"`
}

type SessionConfig struct {
	ConnectOnStart    bool `yaml:"connect_on_start"`
	TriggerDebounceMS int  `yaml:"trigger_debounce_ms"`
	MaxControls       int  `yaml:"max_controls"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// PlayerConfig selects how triggered sounds are played. Command is a shell
// template where {file} is replaced with the sound's path, e.g.
// "paplay {file}". Empty means log-only playback.
type PlayerConfig struct {
	Command string `yaml:"command,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`

	// Empty File means log to stdout.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			URL:       defaultRemoteURL,
			Scene:     defaultScene,
			TimeoutMS: defaultRemoteTimeoutMS,
			SettleMS:  defaultSettleMS,
		},
		Session: SessionConfig{
			ConnectOnStart:    false,
			TriggerDebounceMS: defaultTriggerDebounceMS,
			MaxControls:       defaultMaxControls,
		},
		Storage: StorageConfig{
			Dir: "~/.config/soundcued",
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		Player: PlayerConfig{
			Command: "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies flag values on top of a loaded config. Each override
// is only applied if its pointer is non-nil, so the config file stays the
// primary source and flags serve ad-hoc/systemd overrides.
type FlagOverrides struct {
	RemoteURL       *string
	RemoteChannelID *string
	RemoteTokenFile *string
	RemoteScene     *string

	ConnectOnStart *bool

	IPCSocketPath *string
	HTTPPort      *int

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is
// ignored; a non-nil pointer is applied even when it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.RemoteURL != nil {
		cfg.Remote.URL = *o.RemoteURL
	}
	if o.RemoteChannelID != nil {
		cfg.Remote.ChannelID = *o.RemoteChannelID
	}
	if o.RemoteTokenFile != nil {
		cfg.Remote.TokenFile = *o.RemoteTokenFile
	}
	if o.RemoteScene != nil {
		cfg.Remote.Scene = *o.RemoteScene
	}
	if o.ConnectOnStart != nil {
		cfg.Session.ConnectOnStart = *o.ConnectOnStart
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Remote
	if c.Remote.URL == "" {
		return errors.New("remote.url must not be empty")
	}
	if c.Remote.TimeoutMS <= 0 {
		return errors.New("remote.timeout_ms must be > 0")
	}
	if c.Remote.SettleMS < 0 {
		return errors.New("remote.settle_ms must be >= 0")
	}
	if c.Remote.Scene == "" {
		return errors.New("remote.scene must not be empty")
	}

	// Session
	if c.Session.TriggerDebounceMS < 0 {
		return errors.New("session.trigger_debounce_ms must be >= 0")
	}
	if c.Session.MaxControls <= 0 {
		return errors.New("session.max_controls must be > 0")
	}

	// Storage
	if c.Storage.Dir == "" {
		return errors.New("storage.dir must not be empty")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// HTTP
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
// This is handy for config values like remote.token_file and storage.dir.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
