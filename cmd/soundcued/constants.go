package main

// Defaults shared between config, flags and the daemon.
const (
	defaultRemoteURL       = "ws://127.0.0.1:8100/interactive"
	defaultRemoteTimeoutMS = 5000
	defaultScene           = "default"

	// The remote service needs a quiescence window between deleting the old
	// control set and creating the new one.
	defaultSettleMS = 500

	defaultReconnectDelayMS  = 3000
	defaultStaticCooldownMS  = 5000
	defaultTriggerDebounceMS = 500

	// Safety bound for the fallback cooldown sequence when the active profile
	// cannot be resolved. Matches the largest addressable control count.
	defaultMaxControls = 51

	// Settings writes coalesce over this quiet period.
	defaultSettingsDebounceMS = 5000

	defaultIPCSocket = "/tmp/soundcued.sock"
	defaultHTTPPort  = 3100

	// Central event bus buffer.
	eventQueueSize = 64
)

// Settings store keys. These round-trip the same documents the UI reads.
const (
	settingsKeyInteractive = "interactive"
	settingsKeyProfiles    = "profiles"
	settingsKeySounds      = "sounds"
)
