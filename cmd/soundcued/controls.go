package main

import (
	"fmt"
	"log/slog"
	"time"
)

// ============================================================================
// Control Synchronizer
// ============================================================================
// Translates the active profile's slot bindings into the remote scene's
// control set and replaces the published set wholesale. The control mapping
// is never patched in place; every synchronization rebuilds it from a fresh
// catalog snapshot, which is what makes rapid profile switches safe.
// ============================================================================

// ControlSpec is one remote control derived from a profile slot.
type ControlSpec struct {
	// Index is the control position on the remote scene.
	Index int `json:"index"`
	// SoundID is the bound sound.
	SoundID string `json:"sound_id"`
	// Label is the trigger label shown to participants.
	Label string `json:"label"`
	// Cooldown is the control's own cooldown duration.
	Cooldown time.Duration `json:"-"`
}

// ControlPosition is one placeable position in a remote scene layout.
type ControlPosition struct {
	Index int    `json:"index"`
	Label string `json:"label,omitempty"`
}

// SceneLayout is the remote-authoritative layout of a scene.
type SceneLayout struct {
	Scene     string            `json:"scene"`
	Positions []ControlPosition `json:"positions"`
}

// buildControlSet maps the profile's slot sequence 1:1 onto the layout's
// position sequence. A slot without a scene counterpart, or a position
// without a bound sound, is omitted; lengths need not match.
func buildControlSet(profile Profile, sounds []Sound, layout SceneLayout) []ControlSpec {
	specs := make([]ControlSpec, 0, len(layout.Positions))
	for i, pos := range layout.Positions {
		if i >= len(profile.Sounds) {
			break
		}
		soundID := profile.Sounds[i]
		if soundID == "" {
			continue
		}
		sound, ok := findSound(sounds, soundID)
		if !ok {
			continue
		}
		specs = append(specs, ControlSpec{
			Index:    pos.Index,
			SoundID:  sound.ID,
			Label:    sound.Name,
			Cooldown: sound.Cooldown(),
		})
	}
	return specs
}

// publishControls replaces the remote scene's control set with one derived
// from snap. Non-atomic: refresh the scene, delete the old controls, wait a
// settling window, create the new set, attach trigger handlers, mark ready.
// The first failing step aborts the rest; no rollback is attempted, so the
// scene may be left empty until the next successful publish.
func publishControls(
	client InteractiveClient,
	scene string,
	snap CatalogSnapshot,
	fallback time.Duration,
	maxControls int,
	settle time.Duration,
	logger *slog.Logger,
) ([]ControlSpec, error) {
	scenes, err := client.ListScenes()
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	found := false
	for _, s := range scenes {
		if s == scene {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("scene %q not present on remote", scene)
	}

	layout, err := client.GetScene(scene)
	if err != nil {
		return nil, fmt.Errorf("get scene %q: %w", scene, err)
	}

	var specs []ControlSpec
	if profile, ok := snap.ActiveProfile(); ok {
		specs = buildControlSet(profile, snap.Sounds, layout)
		// Recompute the aligned cooldown table so each control carries its
		// current duration even if sounds changed since the last publish.
		cooldowns := cooldownsForProfile(profile.ID, snap.Profiles, snap.Sounds, fallback, maxControls)
		for i := range specs {
			if specs[i].Index < len(cooldowns) {
				specs[i].Cooldown = cooldowns[specs[i].Index]
			}
		}
	} else {
		logger.Warn("no active profile; publishing empty control set")
	}

	if err := client.ClearControls(scene); err != nil {
		return nil, fmt.Errorf("clear controls: %w", err)
	}

	// The remote service needs a quiescence window between delete and create.
	time.Sleep(settle)

	if err := client.CreateControls(scene, specs); err != nil {
		return nil, fmt.Errorf("create controls: %w", err)
	}
	if err := client.SubscribeControls(scene); err != nil {
		return nil, fmt.Errorf("subscribe controls: %w", err)
	}
	if err := client.SetReady(true); err != nil {
		return nil, fmt.Errorf("set ready: %w", err)
	}

	logger.Info("control set published", "scene", scene, "controls", len(specs))
	return specs, nil
}
