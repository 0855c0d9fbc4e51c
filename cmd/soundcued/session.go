package main

import "time"

// SessionState is the daemon-owned state container for the interactive
// session.
//
// Goals:
//   - Keep all reducer-owned state in one place (pure reducer, no external
//     mutation).
//   - Keep the in-flight guards (pending reconnect timer, trigger debounce
//     window) as explicit, testable fields rather than hidden timer state.
//   - Make it easy to publish a coherent snapshot to other clients
//     (IPC/HTTP/state websocket).
//
// SessionState is owned exclusively by the daemon goroutine. Everything else
// observes it through SessionSnapshot.
type SessionState struct {
	// Phase is the single source of truth for the connection lifecycle.
	// There are no separate connected/connecting flags, so readers can never
	// observe a contradictory combination.
	Phase SessionPhase

	// Remote identifiers assigned on handshake.
	SessionID string
	ChannelID string

	// UserDisconnect distinguishes a deliberate stop from an involuntary
	// close so the session does not come back to life after the user hit
	// disconnect.
	UserDisconnect bool

	// ReconnectToken identifies the most recently scheduled reconnect
	// attempt. A fired timer carrying a stale token is ignored, so a new
	// close (or an explicit disconnect) supersedes any pending attempt.
	ReconnectToken   uint64
	ReconnectPending bool

	// DebounceUntil caps how often a trigger is honored locally, independent
	// of per-control cooldowns.
	DebounceUntil time.Time

	// Publish serialization: the synchronizer itself does not guard against
	// overlapping publishes, so the session does. A resync requested while
	// one is in flight coalesces into a single follow-up publish that reads
	// the catalog fresh, which makes the last request win.
	PublishInFlight bool
	ResyncPending   bool

	// Controls is the control set last pushed to the remote scene. Rebuilt
	// wholesale on every publish, never patched in place.
	Controls []ControlSpec

	ParticipantCount int

	// LastError is the most recent user-visible failure, surfaced once.
	LastError string

	// Storage holds the fields that round-trip through the settings store.
	Storage SessionStorage
}

// SessionPhase is the connection lifecycle state.
type SessionPhase int

const (
	PhaseDisconnected SessionPhase = iota
	PhaseConnecting
	PhaseConnected
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Cooldown policy modes.
const (
	CooldownModeStatic     = "static"
	CooldownModeDynamic    = "dynamic"
	CooldownModeIndividual = "individual"
)

// validCooldownMode reports whether mode is one of the three policy modes.
func validCooldownMode(mode string) bool {
	switch mode {
	case CooldownModeStatic, CooldownModeDynamic, CooldownModeIndividual:
		return true
	}
	return false
}

// SessionStorage is the persisted slice of session state. The JSON shape
// matches the settings document the UI reads ("interactive" key, nested
// "storage" object).
type SessionStorage struct {
	CooldownMode     string `json:"cooldownOption"`
	StaticCooldownMs int64  `json:"staticCooldown"`

	// SmartIncrementMs is reserved for adaptive cooldown growth. Stored and
	// round-tripped only; nothing computes on it yet.
	SmartIncrementMs int64 `json:"smartIncrement,omitempty"`

	AutoReconnect    bool  `json:"useReconnect"`
	ReconnectDelayMs int64 `json:"reconnectionTimeout"`

	// IndividualOverrides maps sound id -> cooldown ms for the individual
	// policy mode.
	IndividualOverrides map[string]int64 `json:"individualCooldowns,omitempty"`
}

// DefaultSessionStorage returns the storage defaults applied before any
// persisted document is loaded.
func DefaultSessionStorage() SessionStorage {
	return SessionStorage{
		CooldownMode:     CooldownModeDynamic,
		StaticCooldownMs: defaultStaticCooldownMS,
		AutoReconnect:    false,
		ReconnectDelayMs: defaultReconnectDelayMS,
	}
}

// NewSessionState builds the initial session state from loaded storage,
// filling in defaults for missing fields.
func NewSessionState(storage SessionStorage) *SessionState {
	if !validCooldownMode(storage.CooldownMode) {
		storage.CooldownMode = CooldownModeDynamic
	}
	if storage.StaticCooldownMs <= 0 {
		storage.StaticCooldownMs = defaultStaticCooldownMS
	}
	if storage.ReconnectDelayMs <= 0 {
		storage.ReconnectDelayMs = defaultReconnectDelayMS
	}
	return &SessionState{
		Phase:   PhaseDisconnected,
		Storage: storage,
	}
}

// StaticCooldown returns the static cooldown as a duration.
func (s *SessionState) StaticCooldown() time.Duration {
	return time.Duration(s.Storage.StaticCooldownMs) * time.Millisecond
}

// ReconnectDelay returns the configured reconnect delay as a duration.
func (s *SessionState) ReconnectDelay() time.Duration {
	return time.Duration(s.Storage.ReconnectDelayMs) * time.Millisecond
}

// SessionSnapshot is the externally-consumable view of the session, shipped
// over the state websocket and the HTTP status endpoint.
type SessionSnapshot struct {
	Phase            string `json:"phase"`
	SessionID        string `json:"session_id,omitempty"`
	ChannelID        string `json:"channel_id,omitempty"`
	ParticipantCount int    `json:"participant_count"`
	ControlCount     int    `json:"control_count"`
	ReconnectPending bool   `json:"reconnect_pending"`
	AutoReconnect    bool   `json:"auto_reconnect"`
	ReconnectDelayMs int64  `json:"reconnect_delay_ms"`
	CooldownMode     string `json:"cooldown_mode"`
	StaticCooldownMs int64  `json:"static_cooldown_ms"`
	LastError        string `json:"last_error,omitempty"`
}

// Snapshot returns a coherent copy of the observable session state.
func (s *SessionState) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		Phase:            s.Phase.String(),
		SessionID:        s.SessionID,
		ChannelID:        s.ChannelID,
		ParticipantCount: s.ParticipantCount,
		ControlCount:     len(s.Controls),
		ReconnectPending: s.ReconnectPending,
		AutoReconnect:    s.Storage.AutoReconnect,
		ReconnectDelayMs: s.Storage.ReconnectDelayMs,
		CooldownMode:     s.Storage.CooldownMode,
		StaticCooldownMs: s.Storage.StaticCooldownMs,
		LastError:        s.LastError,
	}
}
