package main

import (
	"log/slog"
	"time"
)

// EffectDeps bundles the collaborators the effects layer drives. Everything
// here is I/O; the reducer never sees any of it.
type EffectDeps struct {
	Client   InteractiveClient
	Catalog  *Catalog
	Settings *SettingsStore
	Player   Player
	Hub      *Hub
	Logger   *slog.Logger

	// Events receives completion events from asynchronous effects
	// (handshake, publish, timers). It is the same channel the daemon loop
	// consumes, so completions are ordered with everything else.
	Events chan<- Event

	// Remote parameters resolved at startup.
	Scene       string
	Credentials func() (Credentials, error)
	Settle      time.Duration
}

// runEffect executes a single reducer-emitted Command.
//
// Design rules:
//   - This function is allowed to perform I/O.
//   - It must never call Reduce() directly; completions are reported as
//     Events on deps.Events and reduced in arrival order.
//   - Long-running work (handshake, publish, timers, playback, capture)
//     runs in its own goroutine so the daemon loop never stalls.
func runEffect(deps EffectDeps, cmd Command) {
	logger := deps.Logger

	switch c := cmd.(type) {
	case CmdConnect:
		go func() {
			creds, err := deps.Credentials()
			if err != nil {
				logger.Error("cannot resolve credentials", "error", err)
				deps.Events <- EvHandshakeFailed{Err: err, PermissionDenied: true}
				return
			}
			info, err := deps.Client.Open(creds)
			if err != nil {
				denied := IsPermissionDenied(err)
				logger.Error("interactive handshake failed", "error", err, "permission_denied", denied)
				deps.Events <- EvHandshakeFailed{Err: err, PermissionDenied: denied}
				return
			}
			deps.Events <- EvHandshakeSucceeded{SessionID: info.SessionID, ChannelID: info.ChannelID}
		}()

	case CmdDisconnect:
		go func() {
			if err := deps.Client.Close(); err != nil {
				logger.Warn("error closing interactive session", "error", err)
			}
		}()

	case CmdPublishControls:
		go func() {
			snap := deps.Catalog.Snapshot()
			controls, err := publishControls(deps.Client, deps.Scene, snap, c.Fallback, c.MaxControls, deps.Settle, logger)
			if err != nil {
				logger.Error("control publish failed", "error", err)
			}
			deps.Events <- EvPublishFinished{Controls: controls, Err: err}
		}()

	case CmdSetControlCooldowns:
		go func() {
			for _, u := range c.Updates {
				if err := deps.Client.SetControlCooldown(deps.Scene, u.Index, u.Cooldown); err != nil {
					logger.Warn("set cooldown failed", "index", u.Index, "error", err)
					return
				}
			}
		}()

	case CmdPlaySound:
		go func() {
			if err := deps.Player.Play(c.SoundID, c.Label); err != nil {
				// Playback failure never blocks trigger handling.
				logger.Error("playback failed", "sound", c.SoundID, "error", err)
			}
		}()

	case CmdCaptureTransaction:
		go func() {
			if err := deps.Client.CaptureTransaction(c.TransactionID); err != nil {
				// Logged only; the sound has already played.
				logger.Error("transaction capture failed", "id", c.TransactionID, "error", err)
			}
		}()

	case CmdScheduleReconnect:
		logger.Info("connection lost; reconnecting", "delay", c.Delay)
		go func() {
			time.Sleep(c.Delay)
			deps.Events <- EvReconnectTimerFired{Token: c.Token}
		}()

	case CmdSelectProfile:
		if err := deps.Catalog.SelectProfile(c.ProfileID); err != nil {
			logger.Warn("profile selection failed", "profile", c.ProfileID, "error", err)
		}

	case CmdPersistSession:
		deps.Settings.Queue(settingsKeyInteractive, c.Storage)

	case CmdBroadcastState:
		deps.Hub.BroadcastState(c.Snapshot)

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}
