package main

import (
	"testing"
	"time"
)

func testProfiles() ([]Profile, []Sound) {
	sounds := []Sound{
		{ID: "air", Name: "Airhorn", CooldownSeconds: 2},
		{ID: "drum", Name: "Drum Roll", CooldownSeconds: 7.5},
		{ID: "clap", Name: "Applause", CooldownSeconds: 0},
	}
	profiles := []Profile{
		{ID: "p1", Name: "Main", Sounds: []string{"air", "", "drum", "ghost", "clap"}},
	}
	return profiles, sounds
}

func TestCooldownsForProfile_Aligned(t *testing.T) {
	profiles, sounds := testProfiles()

	got := cooldownsForProfile("p1", profiles, sounds, 5*time.Second, 51)

	want := []time.Duration{
		2 * time.Second,         // air
		0,                       // empty slot
		7500 * time.Millisecond, // drum
		0,                       // sound no longer in catalog
		0,                       // clap has no cooldown configured
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d cooldowns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestCooldownsForProfile_MissingProfile(t *testing.T) {
	profiles, sounds := testProfiles()

	got := cooldownsForProfile("nope", profiles, sounds, 3*time.Second, 51)

	if len(got) != 51 {
		t.Fatalf("expected 51 fallback cooldowns, got %d", len(got))
	}
	for i, d := range got {
		if d != 3*time.Second {
			t.Fatalf("slot %d: expected fallback 3s, got %s", i, d)
		}
	}
}

func testControls() []ControlSpec {
	return []ControlSpec{
		{Index: 0, SoundID: "air", Label: "Airhorn", Cooldown: 2 * time.Second},
		{Index: 2, SoundID: "drum", Label: "Drum Roll", Cooldown: 7500 * time.Millisecond},
		{Index: 4, SoundID: "clap", Label: "Applause", Cooldown: 0},
	}
}

func TestCooldownAfterTrigger_Static(t *testing.T) {
	updates := cooldownAfterTrigger(CooldownModeStatic, 5*time.Second, testControls(), 2, nil)

	if len(updates) != 3 {
		t.Fatalf("static mode should update every control, got %d updates", len(updates))
	}
	for _, u := range updates {
		if u.Cooldown != 5*time.Second {
			t.Errorf("control %d: expected static 5s, got %s", u.Index, u.Cooldown)
		}
	}
}

func TestCooldownAfterTrigger_Dynamic(t *testing.T) {
	updates := cooldownAfterTrigger(CooldownModeDynamic, 5*time.Second, testControls(), 2, nil)

	if len(updates) != 1 {
		t.Fatalf("dynamic mode should update only the triggered control, got %d updates", len(updates))
	}
	if updates[0].Index != 2 {
		t.Errorf("expected update for control 2, got %d", updates[0].Index)
	}
	if updates[0].Cooldown != 7500*time.Millisecond {
		t.Errorf("expected the control's own cooldown 7.5s, got %s", updates[0].Cooldown)
	}
}

func TestCooldownAfterTrigger_IndividualOverride(t *testing.T) {
	overrides := map[string]int64{"drum": 10000}

	updates := cooldownAfterTrigger(CooldownModeIndividual, 5*time.Second, testControls(), 2, overrides)

	if len(updates) != 1 {
		t.Fatalf("individual mode should update only the triggered control, got %d updates", len(updates))
	}
	if updates[0].Cooldown != 10*time.Second {
		t.Errorf("expected override 10s, got %s", updates[0].Cooldown)
	}
}

func TestCooldownAfterTrigger_IndividualFallsBackToOwn(t *testing.T) {
	// No override for "air": its own duration applies.
	updates := cooldownAfterTrigger(CooldownModeIndividual, 5*time.Second, testControls(), 0, map[string]int64{"drum": 10000})

	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Cooldown != 2*time.Second {
		t.Errorf("expected own cooldown 2s, got %s", updates[0].Cooldown)
	}
}

func TestCooldownAfterTrigger_UnknownControl(t *testing.T) {
	if updates := cooldownAfterTrigger(CooldownModeStatic, 5*time.Second, testControls(), 9, nil); updates != nil {
		t.Fatalf("unknown control index should yield no updates, got %v", updates)
	}
}
