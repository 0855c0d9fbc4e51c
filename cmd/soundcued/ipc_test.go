package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"
)

func startIPC(t *testing.T) (string, chan Event) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "soundcued.sock")
	events := make(chan Event, eventQueueSize)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := runIPCServer(ctx, socketPath, events, testLogger()); err != nil {
			t.Errorf("ipc server: %v", err)
		}
	}()

	// Wait for the socket to come up.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", socketPath); err == nil {
			conn.Close()
			return socketPath, events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ipc server never came up at %s", socketPath)
	return "", nil
}

func TestIPC_DeliversEvents(t *testing.T) {
	socketPath, events := startIPC(t)

	if err := SendIPCEvent(socketPath, ActionConnect{}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case ev := <-events:
		if _, ok := ev.(ActionConnect); !ok {
			t.Fatalf("expected ActionConnect, got %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event never reached the daemon channel")
	}
}

func TestIPC_CarriesPayloads(t *testing.T) {
	socketPath, events := startIPC(t)

	want := ActionSetCooldownPolicy{Mode: CooldownModeStatic, StaticCooldownMs: 8000}
	if err := SendIPCEvent(socketPath, want); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case ev := <-events:
		got, ok := ev.(ActionSetCooldownPolicy)
		if !ok {
			t.Fatalf("expected ActionSetCooldownPolicy, got %T", ev)
		}
		if got.Mode != want.Mode || got.StaticCooldownMs != want.StaticCooldownMs {
			t.Fatalf("payload mangled: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("event never reached the daemon channel")
	}
}

func TestIPC_RejectsMalformedLine(t *testing.T) {
	socketPath, events := startIPC(t)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, "{{not json"); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "error" {
		t.Fatalf("expected error status, got %+v", resp)
	}

	select {
	case ev := <-events:
		t.Fatalf("malformed input must not produce an event, got %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIPC_RejectsForgedInternalEvents(t *testing.T) {
	socketPath, events := startIPC(t)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, `{"type":"handshake_succeeded","data":{}}`); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "error" {
		t.Fatalf("internal events must be rejected, got %+v", resp)
	}

	select {
	case ev := <-events:
		t.Fatalf("forged internal event must not pass, got %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
