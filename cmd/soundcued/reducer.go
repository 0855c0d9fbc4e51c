package main

import "time"

// This file implements the session controller's reducer:
//
//   - Events: user actions, remote service events, effect completions
//   - Commands: side effects requested by the reducer (remote calls, timers,
//     playback, persistence, broadcasts)
//   - Reduce(): computes next state + commands, without performing I/O
//
// The reducer must be pure. All session state lives in SessionState; the
// daemon loop executes Commands and feeds observations back as Events.
// Every transition resolves to a single terminal phase before control
// returns, so no failure path can leave the session ambiguous.

// ReducerConfig carries the static knobs the reducer needs.
type ReducerConfig struct {
	// DebounceWindow caps how often a control trigger is honored locally.
	DebounceWindow time.Duration

	// MaxControls bounds the fallback cooldown sequence.
	MaxControls int
}

// ReduceResult is the output of Reduce(): next state plus commands to run.
type ReduceResult struct {
	State    *SessionState
	Commands []Command
}

// Reduce computes the next session state and the side effects it requires.
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
func Reduce(s *SessionState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = NewSessionState(DefaultSessionStorage())
	}

	at := time.Now()
	if te, ok := e.(TimedEvent); ok {
		at = te.At
		e = te.Event
	}

	var cmds []Command
	broadcast := false

	switch ev := e.(type) {

	// --------------------------------------------------------------------
	// Connection lifecycle
	// --------------------------------------------------------------------

	case ActionConnect:
		// Idempotent: a second connect while Connecting or Connected is a
		// no-op, so concurrent requests produce exactly one handshake.
		if s.Phase != PhaseDisconnected {
			break
		}
		s.Phase = PhaseConnecting
		s.UserDisconnect = false
		s.LastError = ""
		// A manual connect supersedes any pending reconnect attempt.
		s.invalidateReconnect()
		cmds = append(cmds, CmdConnect{})
		broadcast = true

	case ActionDisconnect:
		// Always cancel a pending reconnect, even when already
		// disconnected: the session must not come back to life after an
		// explicit stop.
		s.UserDisconnect = true
		s.invalidateReconnect()
		if s.Phase != PhaseDisconnected {
			s.Phase = PhaseDisconnected
			s.PublishInFlight = false
			s.ResyncPending = false
			cmds = append(cmds, CmdDisconnect{})
		}
		broadcast = true

	case EvHandshakeSucceeded:
		if s.Phase != PhaseConnecting {
			// The user disconnected while the handshake was in flight; the
			// disconnect effect already tore the session down.
			break
		}
		s.Phase = PhaseConnected
		s.SessionID = ev.SessionID
		s.ChannelID = ev.ChannelID
		s.LastError = ""
		// Connect has fully resolved; only now may a publish start.
		s.PublishInFlight = true
		s.ResyncPending = false
		cmds = append(cmds, CmdPublishControls{
			Fallback:    s.StaticCooldown(),
			MaxControls: cfg.MaxControls,
		})
		broadcast = true

	case EvHandshakeFailed:
		if s.Phase != PhaseConnecting {
			break
		}
		s.Phase = PhaseDisconnected
		s.LastError = ev.Err.Error()
		if !ev.PermissionDenied {
			// Routed through the same path as an involuntary close. The
			// supervisor still declines to reconnect because the session
			// was never connected.
			cmds = append(cmds, s.superviseClose(false)...)
		}
		broadcast = true

	case EvSessionClosed:
		cmds = append(cmds, s.reduceInvoluntaryClose("")...)
		broadcast = true

	case EvSessionError:
		cmds = append(cmds, s.reduceInvoluntaryClose(ev.Message)...)
		broadcast = true

	case EvReconnectTimerFired:
		// Compare-and-clear: only the most recently scheduled attempt may
		// fire. Stale timers (superseded or canceled) are ignored.
		if !s.ReconnectPending || ev.Token != s.ReconnectToken || s.UserDisconnect {
			break
		}
		s.ReconnectPending = false
		if s.Phase != PhaseDisconnected {
			break
		}
		s.Phase = PhaseConnecting
		s.LastError = ""
		cmds = append(cmds, CmdConnect{})
		broadcast = true

	// --------------------------------------------------------------------
	// Control synchronization
	// --------------------------------------------------------------------

	case ActionResyncControls:
		if s.Phase != PhaseConnected {
			break
		}
		if s.PublishInFlight {
			// Coalesce: the follow-up publish reads the catalog fresh, so
			// the last request's inputs always win.
			s.ResyncPending = true
			break
		}
		s.PublishInFlight = true
		cmds = append(cmds, CmdPublishControls{
			Fallback:    s.StaticCooldown(),
			MaxControls: cfg.MaxControls,
		})

	case EvPublishFinished:
		s.PublishInFlight = false
		if ev.Err != nil {
			// Surfaced once; the remote scene may be inconsistent until the
			// next successful publish. A publish that lost a race with a
			// user disconnect is not an error worth reporting.
			if s.Phase == PhaseConnected {
				s.LastError = ev.Err.Error()
			}
			s.ResyncPending = false
			broadcast = true
			break
		}
		s.Controls = ev.Controls
		broadcast = true
		if s.ResyncPending && s.Phase == PhaseConnected {
			s.ResyncPending = false
			s.PublishInFlight = true
			cmds = append(cmds, CmdPublishControls{
				Fallback:    s.StaticCooldown(),
				MaxControls: cfg.MaxControls,
			})
		}

	// --------------------------------------------------------------------
	// Remote events
	// --------------------------------------------------------------------

	case EvControlTriggered:
		if s.Phase != PhaseConnected {
			break
		}
		// Anti-spam guard, independent from per-control cooldowns: bursts
		// of trigger events inside the window are dropped entirely.
		if at.Before(s.DebounceUntil) {
			break
		}
		control, ok := findControl(s.Controls, ev.ControlIndex)
		if !ok {
			break
		}
		s.DebounceUntil = at.Add(cfg.DebounceWindow)

		cmds = append(cmds, CmdPlaySound{SoundID: control.SoundID, Label: ev.Participant})
		updates := cooldownAfterTrigger(
			s.Storage.CooldownMode,
			s.StaticCooldown(),
			s.Controls,
			ev.ControlIndex,
			s.Storage.IndividualOverrides,
		)
		if len(updates) > 0 {
			cmds = append(cmds, CmdSetControlCooldowns{Updates: updates})
		}
		if ev.TransactionID != "" {
			cmds = append(cmds, CmdCaptureTransaction{TransactionID: ev.TransactionID})
		}

	case EvParticipantJoined:
		s.ParticipantCount = ev.Count
		broadcast = true

	case EvParticipantLeft:
		s.ParticipantCount = ev.Count
		broadcast = true

	case ActionSelectProfile:
		// Selection is catalog state; the catalog answers with a resync
		// request if anything needs republishing.
		cmds = append(cmds, CmdSelectProfile{ProfileID: ev.ProfileID})

	// --------------------------------------------------------------------
	// Settings
	// --------------------------------------------------------------------

	case ActionSetCooldownPolicy:
		if !validCooldownMode(ev.Mode) {
			break
		}
		s.Storage.CooldownMode = ev.Mode
		if ev.StaticCooldownMs > 0 {
			s.Storage.StaticCooldownMs = ev.StaticCooldownMs
		}
		if ev.Overrides != nil {
			s.Storage.IndividualOverrides = ev.Overrides
		}
		cmds = append(cmds, CmdPersistSession{Storage: s.Storage})
		broadcast = true

	case ActionSetAutoReconnect:
		s.Storage.AutoReconnect = ev.Enabled
		if !ev.Enabled {
			s.invalidateReconnect()
		}
		cmds = append(cmds, CmdPersistSession{Storage: s.Storage})
		broadcast = true

	case ActionSetReconnectDelay:
		if ev.DelayMs > 0 {
			s.Storage.ReconnectDelayMs = ev.DelayMs
			cmds = append(cmds, CmdPersistSession{Storage: s.Storage})
			broadcast = true
		}

	default:
		// Unknown event type: no-op.
	}

	if broadcast {
		cmds = append(cmds, CmdBroadcastState{Snapshot: s.Snapshot()})
	}

	return ReduceResult{
		State:    s,
		Commands: cmds,
	}
}

// reduceInvoluntaryClose handles a remote close or error: resolve to
// Disconnected, then hand off to reconnection supervision.
func (s *SessionState) reduceInvoluntaryClose(message string) []Command {
	wasConnected := s.Phase == PhaseConnected

	if s.Phase == PhaseDisconnected && !s.ReconnectPending {
		// Stale close after an explicit stop or a failure already handled.
		return nil
	}

	s.Phase = PhaseDisconnected
	s.PublishInFlight = false
	s.ResyncPending = false
	s.SessionID = ""
	if message != "" {
		s.LastError = message
	} else if wasConnected {
		s.LastError = "connection to interactive service lost"
	}

	if s.ReconnectPending && !s.UserDisconnect && s.Storage.AutoReconnect {
		// A second close before the pending attempt fires: supersede its
		// timer so exactly one attempt results.
		return s.scheduleReconnect()
	}
	return s.superviseClose(wasConnected)
}

// superviseClose decides whether an involuntary close warrants a reconnect.
func (s *SessionState) superviseClose(wasConnected bool) []Command {
	if s.UserDisconnect || !s.Storage.AutoReconnect || !wasConnected {
		return nil
	}
	return s.scheduleReconnect()
}

func (s *SessionState) scheduleReconnect() []Command {
	s.ReconnectToken++
	s.ReconnectPending = true
	return []Command{CmdScheduleReconnect{
		Token: s.ReconnectToken,
		Delay: s.ReconnectDelay(),
	}}
}

// invalidateReconnect cancels any pending reconnect attempt by advancing the
// token; an already-armed timer fires into a stale token and is ignored.
func (s *SessionState) invalidateReconnect() {
	s.ReconnectToken++
	s.ReconnectPending = false
}
