package main

import (
	"errors"
	"testing"
	"time"
)

var testReducerCfg = ReducerConfig{
	DebounceWindow: 500 * time.Millisecond,
	MaxControls:    51,
}

// reduceAt drives the reducer with an event stamped at a specific time,
// mirroring what the daemon loop does at intake.
func reduceAt(s *SessionState, e Event, at time.Time) ReduceResult {
	return Reduce(s, TimedEvent{Event: e, At: at}, testReducerCfg)
}

func countCmds[T Command](cmds []Command) int {
	n := 0
	for _, c := range cmds {
		if _, ok := c.(T); ok {
			n++
		}
	}
	return n
}

func firstCmd[T Command](cmds []Command) (T, bool) {
	for _, c := range cmds {
		if t, ok := c.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// connectedState drives a fresh state through connect + handshake + publish
// so tests can start from a live session.
func connectedState(t *testing.T, storage SessionStorage) *SessionState {
	t.Helper()
	s := NewSessionState(storage)
	now := time.Now()

	rr := reduceAt(s, ActionConnect{}, now)
	if n := countCmds[CmdConnect](rr.Commands); n != 1 {
		t.Fatalf("expected 1 CmdConnect, got %d", n)
	}

	rr = reduceAt(rr.State, EvHandshakeSucceeded{SessionID: "sess-1", ChannelID: "chan-1"}, now)
	if rr.State.Phase != PhaseConnected {
		t.Fatalf("expected PhaseConnected after handshake, got %s", rr.State.Phase)
	}
	if n := countCmds[CmdPublishControls](rr.Commands); n != 1 {
		t.Fatalf("expected 1 CmdPublishControls after handshake, got %d", n)
	}

	rr = reduceAt(rr.State, EvPublishFinished{Controls: testControls()}, now)
	if rr.State.PublishInFlight {
		t.Fatalf("publish should have settled")
	}
	return rr.State
}

// ============================================================================
// Connection lifecycle
// ============================================================================

func TestReducer_DoubleConnect_OneHandshake(t *testing.T) {
	s := NewSessionState(DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, ActionConnect{}, now)
	total := countCmds[CmdConnect](rr.Commands)

	rr = reduceAt(rr.State, ActionConnect{}, now)
	total += countCmds[CmdConnect](rr.Commands)

	if total != 1 {
		t.Fatalf("two connects must produce exactly one handshake, got %d", total)
	}
	if rr.State.Phase != PhaseConnecting {
		t.Errorf("expected PhaseConnecting, got %s", rr.State.Phase)
	}
}

func TestReducer_PublishOnlyAfterHandshake(t *testing.T) {
	s := NewSessionState(DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, ActionConnect{}, now)
	if n := countCmds[CmdPublishControls](rr.Commands); n != 0 {
		t.Fatalf("no publish may start before the handshake resolves, got %d", n)
	}

	rr = reduceAt(rr.State, EvHandshakeSucceeded{SessionID: "s", ChannelID: "c"}, now)
	if n := countCmds[CmdPublishControls](rr.Commands); n != 1 {
		t.Fatalf("expected publish after handshake, got %d", n)
	}
}

func TestReducer_DisconnectTearsDown(t *testing.T) {
	s := connectedState(t, DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, ActionDisconnect{}, now)
	if rr.State.Phase != PhaseDisconnected {
		t.Errorf("expected PhaseDisconnected, got %s", rr.State.Phase)
	}
	if n := countCmds[CmdDisconnect](rr.Commands); n != 1 {
		t.Errorf("expected 1 CmdDisconnect, got %d", n)
	}

	// Triggers after disconnect are ignored.
	rr = reduceAt(rr.State, EvControlTriggered{ControlIndex: 0}, now)
	if n := countCmds[CmdPlaySound](rr.Commands); n != 0 {
		t.Errorf("trigger after disconnect must not play, got %d plays", n)
	}
}

func TestReducer_HandshakeFailed_NoReconnect(t *testing.T) {
	storage := DefaultSessionStorage()
	storage.AutoReconnect = true
	s := NewSessionState(storage)
	now := time.Now()

	rr := reduceAt(s, ActionConnect{}, now)
	rr = reduceAt(rr.State, EvHandshakeFailed{Err: errors.New("dial refused")}, now)

	if rr.State.Phase != PhaseDisconnected {
		t.Errorf("expected PhaseDisconnected, got %s", rr.State.Phase)
	}
	if rr.State.LastError == "" {
		t.Errorf("expected last error to surface")
	}
	// The session was never connected, so supervision declines to retry.
	if n := countCmds[CmdScheduleReconnect](rr.Commands); n != 0 {
		t.Errorf("failed handshake must not schedule a reconnect, got %d", n)
	}
}

func TestReducer_PermissionDenied_NoReconnect(t *testing.T) {
	storage := DefaultSessionStorage()
	storage.AutoReconnect = true
	s := NewSessionState(storage)
	now := time.Now()

	rr := reduceAt(s, ActionConnect{}, now)
	rr = reduceAt(rr.State, EvHandshakeFailed{
		Err:              errors.New("permission denied"),
		PermissionDenied: true,
	}, now)

	if n := countCmds[CmdScheduleReconnect](rr.Commands); n != 0 {
		t.Errorf("permission denial must never schedule a reconnect, got %d", n)
	}
	if rr.State.ReconnectPending {
		t.Errorf("no reconnect may be pending after permission denial")
	}
}

// ============================================================================
// Reconnect supervision
// ============================================================================

func TestReducer_InvoluntaryClose_SchedulesReconnect(t *testing.T) {
	storage := DefaultSessionStorage()
	storage.AutoReconnect = true
	storage.ReconnectDelayMs = 1000
	s := connectedState(t, storage)
	now := time.Now()

	rr := reduceAt(s, EvSessionClosed{}, now)
	sched, ok := firstCmd[CmdScheduleReconnect](rr.Commands)
	if !ok {
		t.Fatalf("expected a scheduled reconnect after involuntary close")
	}
	if sched.Delay != time.Second {
		t.Errorf("expected configured 1s delay, got %s", sched.Delay)
	}

	// The matching timer fires: exactly one reconnect attempt.
	rr = reduceAt(rr.State, EvReconnectTimerFired{Token: sched.Token}, now.Add(time.Second))
	if n := countCmds[CmdConnect](rr.Commands); n != 1 {
		t.Fatalf("expected 1 CmdConnect from the timer, got %d", n)
	}
	if rr.State.Phase != PhaseConnecting {
		t.Errorf("expected PhaseConnecting, got %s", rr.State.Phase)
	}
}

func TestReducer_AutoReconnectOff_NoSchedule(t *testing.T) {
	s := connectedState(t, DefaultSessionStorage()) // AutoReconnect false

	rr := reduceAt(s, EvSessionClosed{}, time.Now())
	if n := countCmds[CmdScheduleReconnect](rr.Commands); n != 0 {
		t.Errorf("auto-reconnect off must not schedule, got %d", n)
	}
}

func TestReducer_UserDisconnect_SuppressesReconnect(t *testing.T) {
	storage := DefaultSessionStorage()
	storage.AutoReconnect = true
	s := connectedState(t, storage)
	now := time.Now()

	rr := reduceAt(s, ActionDisconnect{}, now)
	if n := countCmds[CmdScheduleReconnect](rr.Commands); n != 0 {
		t.Fatalf("user disconnect must not schedule a reconnect")
	}

	// A close racing in after the user stopped must stay quiet too.
	rr = reduceAt(rr.State, EvSessionClosed{}, now)
	if n := countCmds[CmdScheduleReconnect](rr.Commands); n != 0 {
		t.Errorf("close after user disconnect must not schedule, got %d", n)
	}
}

func TestReducer_SecondClose_SupersedesTimer(t *testing.T) {
	storage := DefaultSessionStorage()
	storage.AutoReconnect = true
	s := connectedState(t, storage)
	now := time.Now()

	rr := reduceAt(s, EvSessionClosed{}, now)
	first, ok := firstCmd[CmdScheduleReconnect](rr.Commands)
	if !ok {
		t.Fatalf("expected first reconnect schedule")
	}

	// A second close arrives before the first timer fires.
	rr = reduceAt(rr.State, EvSessionError{Message: "remote error"}, now)
	second, ok := firstCmd[CmdScheduleReconnect](rr.Commands)
	if !ok {
		t.Fatalf("expected superseding reconnect schedule")
	}
	if second.Token == first.Token {
		t.Fatalf("superseding schedule must carry a fresh token")
	}

	// The stale timer fires and must be ignored.
	rr = reduceAt(rr.State, EvReconnectTimerFired{Token: first.Token}, now.Add(time.Second))
	if n := countCmds[CmdConnect](rr.Commands); n != 0 {
		t.Fatalf("stale timer must not connect, got %d", n)
	}

	// The current timer fires: exactly one attempt overall.
	rr = reduceAt(rr.State, EvReconnectTimerFired{Token: second.Token}, now.Add(time.Second))
	if n := countCmds[CmdConnect](rr.Commands); n != 1 {
		t.Fatalf("expected exactly 1 attempt from the live timer, got %d", n)
	}
}

func TestReducer_ManualConnect_InvalidatesPendingTimer(t *testing.T) {
	storage := DefaultSessionStorage()
	storage.AutoReconnect = true
	s := connectedState(t, storage)
	now := time.Now()

	rr := reduceAt(s, EvSessionClosed{}, now)
	sched, _ := firstCmd[CmdScheduleReconnect](rr.Commands)

	// The user reconnects by hand before the timer fires.
	rr = reduceAt(rr.State, ActionConnect{}, now)
	if n := countCmds[CmdConnect](rr.Commands); n != 1 {
		t.Fatalf("manual connect must go through, got %d", n)
	}

	rr = reduceAt(rr.State, EvReconnectTimerFired{Token: sched.Token}, now.Add(2*time.Second))
	if n := countCmds[CmdConnect](rr.Commands); n != 0 {
		t.Fatalf("invalidated timer must not double-connect, got %d", n)
	}
}

func TestReducer_DisablingAutoReconnect_CancelsPending(t *testing.T) {
	storage := DefaultSessionStorage()
	storage.AutoReconnect = true
	s := connectedState(t, storage)
	now := time.Now()

	rr := reduceAt(s, EvSessionClosed{}, now)
	sched, _ := firstCmd[CmdScheduleReconnect](rr.Commands)

	rr = reduceAt(rr.State, ActionSetAutoReconnect{Enabled: false}, now)
	rr = reduceAt(rr.State, EvReconnectTimerFired{Token: sched.Token}, now.Add(time.Second))
	if n := countCmds[CmdConnect](rr.Commands); n != 0 {
		t.Fatalf("canceled timer must not connect, got %d", n)
	}
}

// ============================================================================
// Control triggers
// ============================================================================

func TestReducer_Trigger_PlaysAndSetsCooldowns(t *testing.T) {
	s := connectedState(t, DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, EvControlTriggered{
		ControlIndex:  2,
		Participant:   "viewer42",
		TransactionID: "tx-1",
	}, now)

	play, ok := firstCmd[CmdPlaySound](rr.Commands)
	if !ok {
		t.Fatalf("expected a play command")
	}
	if play.SoundID != "drum" {
		t.Errorf("expected drum to play, got %s", play.SoundID)
	}

	cool, ok := firstCmd[CmdSetControlCooldowns](rr.Commands)
	if !ok {
		t.Fatalf("expected cooldown updates")
	}
	// Default mode is dynamic: only the triggered control.
	if len(cool.Updates) != 1 || cool.Updates[0].Index != 2 {
		t.Errorf("expected a single update for control 2, got %v", cool.Updates)
	}

	if _, ok := firstCmd[CmdCaptureTransaction](rr.Commands); !ok {
		t.Errorf("expected the transaction to be captured")
	}
}

func TestReducer_Trigger_DebounceWindow(t *testing.T) {
	s := connectedState(t, DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, EvControlTriggered{ControlIndex: 0}, now)
	if n := countCmds[CmdPlaySound](rr.Commands); n != 1 {
		t.Fatalf("first trigger must play, got %d", n)
	}

	// Burst inside the window: dropped, even on a different control.
	rr = reduceAt(rr.State, EvControlTriggered{ControlIndex: 2}, now.Add(100*time.Millisecond))
	if n := countCmds[CmdPlaySound](rr.Commands); n != 0 {
		t.Fatalf("trigger inside debounce window must be dropped, got %d", n)
	}

	rr = reduceAt(rr.State, EvControlTriggered{ControlIndex: 2}, now.Add(600*time.Millisecond))
	if n := countCmds[CmdPlaySound](rr.Commands); n != 1 {
		t.Fatalf("trigger after the window must play, got %d", n)
	}
}

func TestReducer_Trigger_UnknownControlIgnored(t *testing.T) {
	s := connectedState(t, DefaultSessionStorage())

	rr := reduceAt(s, EvControlTriggered{ControlIndex: 17}, time.Now())
	if len(rr.Commands) != 0 {
		t.Fatalf("trigger for an unpublished control must be a no-op, got %v", rr.Commands)
	}
}

// ============================================================================
// Resync coalescing
// ============================================================================

func TestReducer_Resync_CoalescesWhileInFlight(t *testing.T) {
	s := connectedState(t, DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, ActionResyncControls{}, now)
	if n := countCmds[CmdPublishControls](rr.Commands); n != 1 {
		t.Fatalf("expected publish for the first resync, got %d", n)
	}

	// Three more requests while the publish runs: all coalesce into one
	// pending follow-up.
	for i := 0; i < 3; i++ {
		rr = reduceAt(rr.State, ActionResyncControls{}, now)
		if n := countCmds[CmdPublishControls](rr.Commands); n != 0 {
			t.Fatalf("resync while in flight must not start a publish, got %d", n)
		}
	}
	if !rr.State.ResyncPending {
		t.Fatalf("expected a pending resync")
	}

	// First publish completes: exactly one follow-up starts.
	rr = reduceAt(rr.State, EvPublishFinished{Controls: testControls()}, now)
	if n := countCmds[CmdPublishControls](rr.Commands); n != 1 {
		t.Fatalf("expected exactly 1 follow-up publish, got %d", n)
	}
	if rr.State.ResyncPending {
		t.Errorf("pending flag must clear when the follow-up starts")
	}

	// Follow-up completes with nothing queued: quiet.
	rr = reduceAt(rr.State, EvPublishFinished{Controls: testControls()}, now)
	if n := countCmds[CmdPublishControls](rr.Commands); n != 0 {
		t.Fatalf("no further publish expected, got %d", n)
	}
}

func TestReducer_Resync_IgnoredWhileDisconnected(t *testing.T) {
	s := NewSessionState(DefaultSessionStorage())

	rr := reduceAt(s, ActionResyncControls{}, time.Now())
	if n := countCmds[CmdPublishControls](rr.Commands); n != 0 {
		t.Fatalf("resync while disconnected must be a no-op, got %d", n)
	}
}

func TestReducer_PublishFailure_SurfacesError(t *testing.T) {
	s := connectedState(t, DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, ActionResyncControls{}, now)
	rr = reduceAt(rr.State, ActionResyncControls{}, now) // queue a follow-up

	rr = reduceAt(rr.State, EvPublishFinished{Err: errors.New("scene vanished")}, now)
	if rr.State.LastError != "scene vanished" {
		t.Errorf("expected publish error to surface, got %q", rr.State.LastError)
	}
	// A failed publish leaves the remote scene suspect; the queued follow-up
	// is dropped rather than retried blindly.
	if n := countCmds[CmdPublishControls](rr.Commands); n != 0 {
		t.Errorf("failed publish must not auto-retry, got %d", n)
	}
	if rr.State.ResyncPending {
		t.Errorf("pending resync must clear on failure")
	}
}

// ============================================================================
// Settings
// ============================================================================

func TestReducer_SetCooldownPolicy_Persists(t *testing.T) {
	s := NewSessionState(DefaultSessionStorage())

	rr := reduceAt(s, ActionSetCooldownPolicy{
		Mode:             CooldownModeIndividual,
		StaticCooldownMs: 8000,
		Overrides:        map[string]int64{"drum": 10000},
	}, time.Now())

	if rr.State.Storage.CooldownMode != CooldownModeIndividual {
		t.Errorf("expected individual mode, got %s", rr.State.Storage.CooldownMode)
	}
	if rr.State.Storage.StaticCooldownMs != 8000 {
		t.Errorf("expected static cooldown 8000, got %d", rr.State.Storage.StaticCooldownMs)
	}
	persist, ok := firstCmd[CmdPersistSession](rr.Commands)
	if !ok {
		t.Fatalf("expected a persist command")
	}
	if persist.Storage.IndividualOverrides["drum"] != 10000 {
		t.Errorf("persisted storage must carry the overrides")
	}
}

func TestReducer_SetCooldownPolicy_RejectsBadMode(t *testing.T) {
	s := NewSessionState(DefaultSessionStorage())

	rr := reduceAt(s, ActionSetCooldownPolicy{Mode: "turbo"}, time.Now())
	if rr.State.Storage.CooldownMode != CooldownModeDynamic {
		t.Errorf("invalid mode must not apply, got %s", rr.State.Storage.CooldownMode)
	}
	if n := countCmds[CmdPersistSession](rr.Commands); n != 0 {
		t.Errorf("invalid mode must not persist, got %d", n)
	}
}

func TestReducer_ParticipantCount(t *testing.T) {
	s := connectedState(t, DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, EvParticipantJoined{Participant: "a", Count: 3}, now)
	if rr.State.ParticipantCount != 3 {
		t.Errorf("expected count 3, got %d", rr.State.ParticipantCount)
	}
	rr = reduceAt(rr.State, EvParticipantLeft{Participant: "a", Count: 2}, now)
	if rr.State.ParticipantCount != 2 {
		t.Errorf("expected count 2, got %d", rr.State.ParticipantCount)
	}
}

func TestReducer_BroadcastsOnPhaseChange(t *testing.T) {
	s := NewSessionState(DefaultSessionStorage())
	now := time.Now()

	rr := reduceAt(s, ActionConnect{}, now)
	bc, ok := firstCmd[CmdBroadcastState](rr.Commands)
	if !ok {
		t.Fatalf("phase changes must broadcast")
	}
	if bc.Snapshot.Phase != PhaseConnecting.String() {
		t.Errorf("broadcast must carry the new phase, got %s", bc.Snapshot.Phase)
	}
}
