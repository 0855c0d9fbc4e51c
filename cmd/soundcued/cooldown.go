package main

import "time"

// Pure cooldown policy computations. No I/O; the reducer and the publish
// effect call these over catalog snapshots.

// cooldownsForProfile computes the per-slot cooldown sequence for a profile.
//
// The result is aligned index-for-index with the profile's slot sequence:
// slot i's duration is the bound sound's configured cooldown, or zero when
// the slot is empty or references a sound no longer in the catalog. The
// position is preserved either way so indices stay aligned with control
// indices.
//
// A missing profile must never break cooldown computation: it degrades to a
// fixed-length sequence of maxControls entries, all set to fallback, so
// every control shares the global cooldown.
func cooldownsForProfile(profileID string, profiles []Profile, sounds []Sound, fallback time.Duration, maxControls int) []time.Duration {
	profile, ok := findProfile(profiles, profileID)
	if !ok {
		cooldowns := make([]time.Duration, maxControls)
		for i := range cooldowns {
			cooldowns[i] = fallback
		}
		return cooldowns
	}

	cooldowns := make([]time.Duration, len(profile.Sounds))
	for i, soundID := range profile.Sounds {
		if soundID == "" {
			continue
		}
		if sound, ok := findSound(sounds, soundID); ok {
			cooldowns[i] = sound.Cooldown()
		}
	}
	return cooldowns
}

// cooldownAfterTrigger computes which controls' cooldowns change after the
// control at pressed fires.
//
//   - static: every control gets the static duration.
//   - dynamic: only the triggered control, using its own bound duration.
//   - individual: only the triggered control, using the per-sound override
//     when one exists for its bound sound, else its own duration.
//
// Controls outside the published set are never touched.
func cooldownAfterTrigger(mode string, static time.Duration, controls []ControlSpec, pressed int, overrides map[string]int64) []ControlCooldownUpdate {
	target, ok := findControl(controls, pressed)
	if !ok {
		return nil
	}

	switch mode {
	case CooldownModeStatic:
		updates := make([]ControlCooldownUpdate, 0, len(controls))
		for _, c := range controls {
			updates = append(updates, ControlCooldownUpdate{Index: c.Index, Cooldown: static})
		}
		return updates

	case CooldownModeIndividual:
		cooldown := target.Cooldown
		if ms, ok := overrides[target.SoundID]; ok {
			cooldown = time.Duration(ms) * time.Millisecond
		}
		return []ControlCooldownUpdate{{Index: target.Index, Cooldown: cooldown}}

	default: // dynamic
		return []ControlCooldownUpdate{{Index: target.Index, Cooldown: target.Cooldown}}
	}
}

func findControl(controls []ControlSpec, index int) (ControlSpec, bool) {
	for _, c := range controls {
		if c.Index == index {
			return c, true
		}
	}
	return ControlSpec{}, false
}
