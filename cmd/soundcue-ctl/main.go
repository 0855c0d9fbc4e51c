package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// soundcue-ctl - Command-line IPC Client
// ============================================================================
// This tool sends session events to the soundcued daemon via IPC.
//
// Usage:
//   soundcue-ctl connect
//   soundcue-ctl disconnect
//   soundcue-ctl resync
//   soundcue-ctl set-mode individual
//   soundcue-ctl auto-reconnect on
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/soundcued.sock)
// ============================================================================

// Event types (duplicated from the daemon package for a standalone binary)
type Event interface{}

type ActionConnect struct{}

type ActionDisconnect struct{}

type ActionResyncControls struct{}

type ActionSetCooldownPolicy struct {
	Mode             string `json:"mode"`
	StaticCooldownMs int64  `json:"static_cooldown_ms,omitempty"`
}

type ActionSetAutoReconnect struct {
	Enabled bool `json:"enabled"`
}

type ActionSetReconnectDelay struct {
	DelayMs int64 `json:"delay_ms"`
}

type ActionSelectProfile struct {
	ProfileID string `json:"profile_id"`
}

type EvControlTriggered struct {
	ControlIndex int    `json:"control_index"`
	Participant  string `json:"participant,omitempty"`
}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := "/tmp/soundcued.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var event Event

	switch args[0] {
	case "connect":
		event = ActionConnect{}

	case "disconnect":
		event = ActionDisconnect{}

	case "resync":
		event = ActionResyncControls{}

	case "set-mode":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: set-mode requires a mode (static|dynamic|individual)\n")
			os.Exit(1)
		}
		mode := args[1]
		if mode != "static" && mode != "dynamic" && mode != "individual" {
			fmt.Fprintf(os.Stderr, "error: mode must be static, dynamic or individual\n")
			os.Exit(1)
		}
		event = ActionSetCooldownPolicy{Mode: mode}

	case "set-static-cooldown":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: set-static-cooldown requires milliseconds\n")
			os.Exit(1)
		}
		ms, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || ms <= 0 {
			fmt.Fprintf(os.Stderr, "error: invalid cooldown milliseconds: %s\n", args[1])
			os.Exit(1)
		}
		event = ActionSetCooldownPolicy{Mode: "static", StaticCooldownMs: ms}

	case "auto-reconnect":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			fmt.Fprintf(os.Stderr, "error: auto-reconnect requires on|off\n")
			os.Exit(1)
		}
		event = ActionSetAutoReconnect{Enabled: args[1] == "on"}

	case "set-reconnect-delay":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: set-reconnect-delay requires milliseconds\n")
			os.Exit(1)
		}
		ms, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || ms <= 0 {
			fmt.Fprintf(os.Stderr, "error: invalid delay milliseconds: %s\n", args[1])
			os.Exit(1)
		}
		event = ActionSetReconnectDelay{DelayMs: ms}

	case "select-profile":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: select-profile requires a profile id\n")
			os.Exit(1)
		}
		event = ActionSelectProfile{ProfileID: args[1]}

	case "trigger":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: trigger requires a control index\n")
			os.Exit(1)
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil || idx < 0 {
			fmt.Fprintf(os.Stderr, "error: invalid control index: %s\n", args[1])
			os.Exit(1)
		}
		event = EvControlTriggered{ControlIndex: idx, Participant: "soundcue-ctl"}

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err := sendEvent(socketPath, event); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

func sendEvent(socketPath string, event Event) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var response IPCResponse
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}

	return nil
}

func marshalEvent(event Event) ([]byte, error) {
	var env EventEnvelope

	switch e := event.(type) {
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
		return nil, fmt.Errorf("unknown event type: %T", event)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `soundcue-ctl - Control the soundcued daemon via IPC

Usage:
  soundcue-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/soundcued.sock)

Commands:
  connect                       Open the interactive session
  disconnect                    Close the session (no auto-reconnect)
  resync                        Republish controls for the active profile
  set-mode <mode>               Cooldown mode: static|dynamic|individual
  set-static-cooldown <ms>      Static mode with the given cooldown
  auto-reconnect on|off         Toggle automatic reconnection
  set-reconnect-delay <ms>      Delay before reconnect attempts
  select-profile <id>           Switch the active sound profile
  trigger <index>               Simulate a control trigger (testing)
  help, -h, --help              Show this help message

Examples:
  soundcue-ctl connect
  soundcue-ctl set-mode individual
  soundcue-ctl -socket /var/run/soundcued.sock resync
`)
}
