package main

import (
	"fmt"
	"time"
)

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon
// loop. The reducer emits commands; only the effects layer performs I/O.
type Command interface {
	commandMarker()
	String() string
}

// CmdConnect opens the remote session asynchronously. The outcome comes back
// as EvHandshakeSucceeded or EvHandshakeFailed.
type CmdConnect struct{}

func (CmdConnect) commandMarker() {}
func (CmdConnect) String() string { return "CmdConnect()" }

// CmdDisconnect closes the remote session. No completion event is expected;
// the session is already Disconnected when this runs.
type CmdDisconnect struct{}

func (CmdDisconnect) commandMarker() {}
func (CmdDisconnect) String() string { return "CmdDisconnect()" }

// CmdPublishControls rebuilds the control set from the current catalog and
// replaces the remote scene's controls wholesale. The outcome comes back as
// EvPublishFinished. Fallback and MaxControls parameterize the defensive
// cooldown sequence for an unresolvable profile.
type CmdPublishControls struct {
	Fallback    time.Duration
	MaxControls int
}

func (CmdPublishControls) commandMarker() {}
func (c CmdPublishControls) String() string {
	return fmt.Sprintf("CmdPublishControls(fallback=%s, max_controls=%d)", c.Fallback, c.MaxControls)
}

// CmdSetControlCooldowns pushes per-control cooldowns to the remote scene.
type CmdSetControlCooldowns struct {
	Updates []ControlCooldownUpdate
}

func (CmdSetControlCooldowns) commandMarker() {}
func (c CmdSetControlCooldowns) String() string {
	return fmt.Sprintf("CmdSetControlCooldowns(n=%d)", len(c.Updates))
}

// ControlCooldownUpdate is one control's new cooldown.
type ControlCooldownUpdate struct {
	Index    int
	Cooldown time.Duration
}

// CmdPlaySound triggers local playback. Failure never blocks trigger handling.
type CmdPlaySound struct {
	SoundID string
	Label   string // participant/trigger label, if any
}

func (CmdPlaySound) commandMarker() {}
func (c CmdPlaySound) String() string {
	return fmt.Sprintf("CmdPlaySound(sound=%s, label=%q)", c.SoundID, c.Label)
}

// CmdCaptureTransaction captures a chargeable audience transaction.
// Failure is logged only; the sound has already played.
type CmdCaptureTransaction struct {
	TransactionID string
}

func (CmdCaptureTransaction) commandMarker() {}
func (c CmdCaptureTransaction) String() string {
	return fmt.Sprintf("CmdCaptureTransaction(id=%s)", c.TransactionID)
}

// CmdScheduleReconnect arms the reconnect timer. When it fires, the effects
// layer emits EvReconnectTimerFired carrying the same token; the reducer
// ignores it unless the token is still current.
type CmdScheduleReconnect struct {
	Token uint64
	Delay time.Duration
}

func (CmdScheduleReconnect) commandMarker() {}
func (c CmdScheduleReconnect) String() string {
	return fmt.Sprintf("CmdScheduleReconnect(token=%d, delay=%s)", c.Token, c.Delay)
}

// CmdSelectProfile switches the catalog's active profile; the catalog posts
// a resync request back when the selection changes.
type CmdSelectProfile struct {
	ProfileID string
}

func (CmdSelectProfile) commandMarker() {}
func (c CmdSelectProfile) String() string {
	return fmt.Sprintf("CmdSelectProfile(id=%s)", c.ProfileID)
}

// CmdPersistSession queues the session's storage-backed fields for a
// debounced write to the settings store.
type CmdPersistSession struct {
	Storage SessionStorage
}

func (CmdPersistSession) commandMarker() {}
func (CmdPersistSession) String() string { return "CmdPersistSession()" }

// CmdBroadcastState fans a session snapshot out to state websocket clients.
type CmdBroadcastState struct {
	Snapshot SessionSnapshot
}

func (CmdBroadcastState) commandMarker() {}
func (c CmdBroadcastState) String() string {
	return fmt.Sprintf("CmdBroadcastState(phase=%s)", c.Snapshot.Phase)
}
