package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Profile / Sound Catalog
// ============================================================================
// The catalog owns the named records the session controller reads at
// synchronization time. Mutations that change what should be live on the
// remote scene post an ActionResyncControls to the daemon; the reducer drops
// it when not connected.
//
// Persistence goes through the debounced settings store, same keys and JSON
// shape the UI reads.
// ============================================================================

// Sound is one playable effect.
type Sound struct {
	ID string `json:"id"`
	// Name doubles as the control label on the remote scene.
	Name string `json:"name"`
	// CooldownSeconds is the user-configured cooldown, stored in seconds.
	CooldownSeconds float64 `json:"cooldown"`
	// Path is the audio source reference handed to the player.
	Path string `json:"path"`
}

// Cooldown returns the sound's cooldown as a duration.
func (s Sound) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds * float64(time.Second))
}

// Profile is a named, ordered set of sound-to-control slot bindings.
// Slot i holds a sound id, or "" when unassigned. Trailing empty slots are
// always trimmed so the sequence length is highest assigned index + 1.
type Profile struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Sounds []string `json:"sounds"`
	Locked bool     `json:"locked"`
}

// ErrProfileLocked is returned for slot edits on a locked profile.
var ErrProfileLocked = errors.New("profile is locked")

// ErrNotFound is returned when a profile or sound id cannot be resolved.
var ErrNotFound = errors.New("not found")

// CatalogSnapshot is a read-only copy of the catalog taken at
// synchronization time.
type CatalogSnapshot struct {
	Profiles        []Profile `json:"profiles"`
	Sounds          []Sound   `json:"sounds"`
	ActiveProfileID string    `json:"profileId"`
}

// ActiveProfile resolves the active profile, if any.
func (c CatalogSnapshot) ActiveProfile() (Profile, bool) {
	return findProfile(c.Profiles, c.ActiveProfileID)
}

func findProfile(profiles []Profile, id string) (Profile, bool) {
	for _, p := range profiles {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

func findSound(sounds []Sound, id string) (Sound, bool) {
	for _, s := range sounds {
		if s.ID == id {
			return s, true
		}
	}
	return Sound{}, false
}

// scrubTrailing trims trailing empty slots so the sequence never grows
// unbounded with holes at the tail.
func scrubTrailing(slots []string) []string {
	for len(slots) > 0 && slots[len(slots)-1] == "" {
		slots = slots[:len(slots)-1]
	}
	return slots
}

// persistedProfiles is the on-disk document for the "profiles" key.
type persistedProfiles struct {
	Profiles  []Profile `json:"profiles"`
	ProfileID string    `json:"profileId"`
}

// persistedSounds is the on-disk document for the "sounds" key.
type persistedSounds struct {
	Sounds []Sound `json:"sounds"`
}

// Catalog is the mutable profile/sound store.
type Catalog struct {
	mu       sync.Mutex
	profiles []Profile
	sounds   []Sound
	activeID string

	settings *SettingsStore
	logger   *slog.Logger

	// notify posts catalog-driven events (resync requests, profile
	// selection) to the daemon. Nil in tests that only exercise CRUD.
	notify func(Event)
}

// NewCatalog loads persisted profiles and sounds from the settings store.
// Absent documents start the catalog empty; a malformed document is logged
// and ignored rather than failing startup.
func NewCatalog(settings *SettingsStore, logger *slog.Logger) *Catalog {
	c := &Catalog{
		settings: settings,
		logger:   logger,
	}

	var profs persistedProfiles
	if ok, err := settings.Get(settingsKeyProfiles, &profs); err != nil {
		logger.Warn("ignoring malformed profiles document", "error", err)
	} else if ok {
		for i := range profs.Profiles {
			profs.Profiles[i].Sounds = scrubTrailing(profs.Profiles[i].Sounds)
		}
		c.profiles = profs.Profiles
		c.activeID = profs.ProfileID
	}

	var snds persistedSounds
	if ok, err := settings.Get(settingsKeySounds, &snds); err != nil {
		logger.Warn("ignoring malformed sounds document", "error", err)
	} else if ok {
		c.sounds = snds.Sounds
	}

	return c
}

// SetNotify installs the daemon event sink. Called once during wiring,
// before any surface can mutate the catalog.
func (c *Catalog) SetNotify(notify func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = notify
}

// Snapshot returns a deep copy of the catalog. The session controller only
// ever reads the catalog through snapshots taken at synchronization time.
func (c *Catalog) Snapshot() CatalogSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Catalog) snapshotLocked() CatalogSnapshot {
	profiles := make([]Profile, len(c.profiles))
	for i, p := range c.profiles {
		p.Sounds = append([]string(nil), p.Sounds...)
		profiles[i] = p
	}
	return CatalogSnapshot{
		Profiles:        profiles,
		Sounds:          append([]Sound(nil), c.sounds...),
		ActiveProfileID: c.activeID,
	}
}

// ==============================
// Profile operations
// ==============================

// AddProfile creates a profile with a generated id and returns it.
func (c *Catalog) AddProfile(name string) Profile {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := Profile{
		ID:     uuid.NewString(),
		Name:   name,
		Sounds: []string{},
	}
	c.profiles = append(c.profiles, p)
	c.persistProfilesLocked()
	return p
}

// RenameProfile updates a profile's display name.
func (c *Catalog) RenameProfile(id, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.profiles {
		if c.profiles[i].ID == id {
			c.profiles[i].Name = name
			c.persistProfilesLocked()
			return nil
		}
	}
	return fmt.Errorf("profile %s: %w", id, ErrNotFound)
}

// RemoveProfile deletes a profile. Removing the active profile clears the
// selection and resyncs (the remote scene empties on next publish).
func (c *Catalog) RemoveProfile(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.profiles {
		if c.profiles[i].ID == id {
			c.profiles = append(c.profiles[:i], c.profiles[i+1:]...)
			wasActive := c.activeID == id
			if wasActive {
				c.activeID = ""
			}
			c.persistProfilesLocked()
			if wasActive {
				c.notifyLocked(ActionResyncControls{})
			}
			return nil
		}
	}
	return fmt.Errorf("profile %s: %w", id, ErrNotFound)
}

// MoveProfile reorders the profile list, moving the entry at oldIndex to
// newIndex.
func (c *Catalog) MoveProfile(oldIndex, newIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if oldIndex < 0 || oldIndex >= len(c.profiles) || newIndex < 0 || newIndex >= len(c.profiles) {
		return fmt.Errorf("move profile: index out of range")
	}
	p := c.profiles[oldIndex]
	c.profiles = append(c.profiles[:oldIndex], c.profiles[oldIndex+1:]...)
	c.profiles = append(c.profiles[:newIndex], append([]Profile{p}, c.profiles[newIndex:]...)...)
	c.persistProfilesLocked()
	return nil
}

// ToggleLock flips a profile's lock flag.
func (c *Catalog) ToggleLock(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.profiles {
		if c.profiles[i].ID == id {
			c.profiles[i].Locked = !c.profiles[i].Locked
			c.persistProfilesLocked()
			return c.profiles[i].Locked, nil
		}
	}
	return false, fmt.Errorf("profile %s: %w", id, ErrNotFound)
}

// SelectProfile switches the active profile and requests a resync.
// An empty id clears the selection.
func (c *Catalog) SelectProfile(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != "" {
		if _, ok := findProfile(c.profiles, id); !ok {
			return fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
	}
	c.activeID = id
	c.persistProfilesLocked()
	c.notifyLocked(ActionResyncControls{})
	return nil
}

// AssignSound binds a sound to a slot of the active profile.
func (c *Catalog) AssignSound(slot int, soundID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slot < 0 {
		return fmt.Errorf("assign sound: negative slot")
	}
	if _, ok := findSound(c.sounds, soundID); !ok {
		return fmt.Errorf("sound %s: %w", soundID, ErrNotFound)
	}
	return c.setSlotLocked(slot, soundID)
}

// UnassignSound clears a slot of the active profile.
func (c *Catalog) UnassignSound(slot int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slot < 0 {
		return fmt.Errorf("unassign sound: negative slot")
	}
	return c.setSlotLocked(slot, "")
}

func (c *Catalog) setSlotLocked(slot int, soundID string) error {
	idx := -1
	for i := range c.profiles {
		if c.profiles[i].ID == c.activeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("active profile: %w", ErrNotFound)
	}
	if c.profiles[idx].Locked {
		return ErrProfileLocked
	}

	slots := append([]string(nil), c.profiles[idx].Sounds...)
	for len(slots) <= slot {
		slots = append(slots, "")
	}
	slots[slot] = soundID
	c.profiles[idx].Sounds = scrubTrailing(slots)

	c.persistProfilesLocked()
	c.notifyLocked(ActionResyncControls{})
	return nil
}

// ClearProfiles removes every profile and the active selection.
func (c *Catalog) ClearProfiles() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.profiles = nil
	c.activeID = ""
	c.persistProfilesLocked()
	c.notifyLocked(ActionResyncControls{})
}

// ==============================
// Sound operations
// ==============================

// AddSound registers a sound and returns it.
func (c *Catalog) AddSound(name, path string, cooldownSeconds float64) Sound {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Sound{
		ID:              uuid.NewString(),
		Name:            name,
		Path:            path,
		CooldownSeconds: cooldownSeconds,
	}
	c.sounds = append(c.sounds, s)
	c.persistSoundsLocked()
	return s
}

// UpdateSound replaces a sound's mutable fields.
func (c *Catalog) UpdateSound(id, name, path string, cooldownSeconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.sounds {
		if c.sounds[i].ID == id {
			c.sounds[i].Name = name
			c.sounds[i].Path = path
			c.sounds[i].CooldownSeconds = cooldownSeconds
			c.persistSoundsLocked()
			c.notifyLocked(ActionResyncControls{})
			return nil
		}
	}
	return fmt.Errorf("sound %s: %w", id, ErrNotFound)
}

// RemoveSound deletes a sound. Profile slots referencing it are left as
// dangling weak references; synchronization reconciles them (a dangling slot
// simply publishes nothing and computes a zero cooldown).
func (c *Catalog) RemoveSound(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.sounds {
		if c.sounds[i].ID == id {
			c.sounds = append(c.sounds[:i], c.sounds[i+1:]...)
			c.persistSoundsLocked()
			c.notifyLocked(ActionResyncControls{})
			return nil
		}
	}
	return fmt.Errorf("sound %s: %w", id, ErrNotFound)
}

// ==============================
// Internals
// ==============================

func (c *Catalog) persistProfilesLocked() {
	c.settings.Queue(settingsKeyProfiles, persistedProfiles{
		Profiles:  c.snapshotLocked().Profiles,
		ProfileID: c.activeID,
	})
}

func (c *Catalog) persistSoundsLocked() {
	c.settings.Queue(settingsKeySounds, persistedSounds{
		Sounds: append([]Sound(nil), c.sounds...),
	})
}

func (c *Catalog) notifyLocked(ev Event) {
	if c.notify != nil {
		c.notify(ev)
	}
}
