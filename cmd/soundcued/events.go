package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Event Types
// ============================================================================
// Events are the only input to the reducer. They come from three places:
//   - local surfaces (IPC, HTTP, the ctl tool) as user actions
//   - the remote interactive service (control triggers, participants, close)
//   - the effects layer reporting completion of asynchronous work
// The daemon loop consumes them one at a time, preserving arrival order.
// ============================================================================

// Event is the marker interface for everything the reducer consumes.
type Event interface {
	eventMarker()
}

// TimedEvent wraps an Event with its arrival time. The daemon loop assigns
// timestamps on intake so payload types stay clean.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// ==============================
// User actions
// ==============================

// ActionConnect requests a session to the remote interactive service.
// A no-op while already connecting or connected.
type ActionConnect struct{}

func (ActionConnect) eventMarker() {}

// ActionDisconnect tears the session down and suppresses any pending
// reconnect attempt.
type ActionDisconnect struct{}

func (ActionDisconnect) eventMarker() {}

// ActionResyncControls rebuilds and republishes the remote control set from
// the current profile/sound catalog. Emitted by catalog edits and by clients.
type ActionResyncControls struct{}

func (ActionResyncControls) eventMarker() {}

// ActionSetCooldownPolicy updates how cooldowns are applied after a trigger.
type ActionSetCooldownPolicy struct {
	Mode             string           `json:"mode"` // static | dynamic | individual
	StaticCooldownMs int64            `json:"static_cooldown_ms,omitempty"`
	Overrides        map[string]int64 `json:"overrides,omitempty"` // sound id -> ms
}

func (ActionSetCooldownPolicy) eventMarker() {}

// ActionSetAutoReconnect toggles automatic reconnection after an
// involuntary close.
type ActionSetAutoReconnect struct {
	Enabled bool `json:"enabled"`
}

func (ActionSetAutoReconnect) eventMarker() {}

// ActionSetReconnectDelay updates the delay before a reconnect attempt.
type ActionSetReconnectDelay struct {
	DelayMs int64 `json:"delay_ms"`
}

func (ActionSetReconnectDelay) eventMarker() {}

// ActionSelectProfile switches the active profile in the catalog.
type ActionSelectProfile struct {
	ProfileID string `json:"profile_id"`
}

func (ActionSelectProfile) eventMarker() {}

// ==============================
// Remote service events
// ==============================

// EvControlTriggered is delivered when a participant activates a control.
type EvControlTriggered struct {
	ControlIndex  int    `json:"control_index"`
	Participant   string `json:"participant,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func (EvControlTriggered) eventMarker() {}

// EvParticipantJoined is informational; Count is the remote's authoritative
// participant total.
type EvParticipantJoined struct {
	Participant string `json:"participant"`
	Count       int    `json:"count"`
}

func (EvParticipantJoined) eventMarker() {}

// EvParticipantLeft is informational.
type EvParticipantLeft struct {
	Participant string `json:"participant"`
	Count       int    `json:"count"`
}

func (EvParticipantLeft) eventMarker() {}

// EvSessionError is a session-level error pushed by the remote service.
// Handled exactly like an involuntary close.
type EvSessionError struct {
	Message string `json:"message"`
}

func (EvSessionError) eventMarker() {}

// EvSessionClosed is emitted when the remote connection drops.
type EvSessionClosed struct{}

func (EvSessionClosed) eventMarker() {}

// ==============================
// Effect completion events
// ==============================

// EvHandshakeSucceeded reports a successful session open.
type EvHandshakeSucceeded struct {
	SessionID string
	ChannelID string
}

func (EvHandshakeSucceeded) eventMarker() {}

// EvHandshakeFailed reports a failed session open. PermissionDenied marks
// credential/permission failures that must not be retried automatically.
type EvHandshakeFailed struct {
	Err              error
	PermissionDenied bool
}

func (EvHandshakeFailed) eventMarker() {}

// EvPublishFinished reports the outcome of a control-set publish.
// On success Controls is the full set now live on the remote scene.
type EvPublishFinished struct {
	Controls []ControlSpec
	Err      error
}

func (EvPublishFinished) eventMarker() {}

// EvReconnectTimerFired is emitted by the reconnect timer effect. Token must
// match the session's current reconnect token or the event is stale.
type EvReconnectTimerFired struct {
	Token uint64
}

func (EvReconnectTimerFired) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps externally-visible events for the IPC surface.
// Since Go doesn't have union types, we use a type discriminator.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// Only externally-originated events are accepted; effect completion events
// cannot be injected over IPC.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "connect":
		return ActionConnect{}, nil

	case "disconnect":
		return ActionDisconnect{}, nil

	case "resync_controls":
		return ActionResyncControls{}, nil

	case "set_cooldown_policy":
		var a ActionSetCooldownPolicy
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal ActionSetCooldownPolicy: %w", err)
		}
		return a, nil

	case "set_auto_reconnect":
		var a ActionSetAutoReconnect
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal ActionSetAutoReconnect: %w", err)
		}
		return a, nil

	case "set_reconnect_delay":
		var a ActionSetReconnectDelay
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal ActionSetReconnectDelay: %w", err)
		}
		return a, nil

	case "select_profile":
		var a ActionSelectProfile
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal ActionSelectProfile: %w", err)
		}
		return a, nil

	case "control_triggered":
		var a EvControlTriggered
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal EvControlTriggered: %w", err)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case ActionConnect:
		env.Type = "connect"

	case ActionDisconnect:
		env.Type = "disconnect"

	case ActionResyncControls:
		env.Type = "resync_controls"

	case ActionSetCooldownPolicy:
		env.Type = "set_cooldown_policy"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ActionSetCooldownPolicy: %w", err)
		}
		env.Data = data

	case ActionSetAutoReconnect:
		env.Type = "set_auto_reconnect"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ActionSetAutoReconnect: %w", err)
		}
		env.Data = data

	case ActionSetReconnectDelay:
		env.Type = "set_reconnect_delay"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ActionSetReconnectDelay: %w", err)
		}
		env.Data = data

	case ActionSelectProfile:
		env.Type = "select_profile"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ActionSelectProfile: %w", err)
		}
		env.Data = data

	case EvControlTriggered:
		env.Type = "control_triggered"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal EvControlTriggered: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
