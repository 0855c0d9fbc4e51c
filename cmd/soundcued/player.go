package main

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Player is the local audio playback collaborator. Playback failures are the
// player's problem; trigger handling never waits on them.
type Player interface {
	Play(soundID, label string) error
}

// ExecPlayer launches a user-configured command for each playback, with
// {file} replaced by the sound's audio path. Example:
//
//	command: "ffplay -nodisp -autoexit {file}"
type ExecPlayer struct {
	command string
	catalog *Catalog
	logger  *slog.Logger
}

// NewExecPlayer builds a player around the configured command template.
func NewExecPlayer(command string, catalog *Catalog, logger *slog.Logger) *ExecPlayer {
	return &ExecPlayer{command: command, catalog: catalog, logger: logger}
}

func (p *ExecPlayer) Play(soundID, label string) error {
	snap := p.catalog.Snapshot()
	sound, ok := findSound(snap.Sounds, soundID)
	if !ok {
		return fmt.Errorf("sound %s: %w", soundID, ErrNotFound)
	}

	parts := strings.Fields(p.command)
	if len(parts) == 0 {
		return fmt.Errorf("empty player command")
	}
	args := make([]string, 0, len(parts)-1)
	for _, a := range parts[1:] {
		args = append(args, strings.ReplaceAll(a, "{file}", sound.Path))
	}

	p.logger.Debug("playing sound", "sound", sound.Name, "label", label, "path", sound.Path)
	cmd := exec.Command(parts[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	// Reap the process without holding up the caller.
	go func() {
		if err := cmd.Wait(); err != nil {
			p.logger.Warn("player exited with error", "sound", sound.Name, "error", err)
		}
	}()
	return nil
}

// LogPlayer is the fallback when no player command is configured: triggers
// are logged so the pipeline stays observable in development.
type LogPlayer struct {
	logger *slog.Logger
}

func NewLogPlayer(logger *slog.Logger) *LogPlayer {
	return &LogPlayer{logger: logger}
}

func (p *LogPlayer) Play(soundID, label string) error {
	p.logger.Info("play sound (no player configured)", "sound", soundID, "label", label)
	return nil
}
