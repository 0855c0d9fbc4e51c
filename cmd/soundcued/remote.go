package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	cache "github.com/patrickmn/go-cache"
)

// ============================================================================
// Remote Interactive Service Adapter
// ============================================================================
// Wire protocol (JSON text frames):
//   request:  {"id": 1, "method": "scene.list", "params": {...}}
//   reply:    {"id": 1, "result": {...}} or {"id": 1, "error": {"code", "message"}}
//   pushed:   {"event": "control_triggered", "data": {...}}
//
// The adapter translates pushed frames into typed Events and hands them to a
// single ordered sink (the daemon's event channel), so the rest of the
// program never sees websocket callbacks.
// ============================================================================

// InteractiveClient is the session controller's view of the remote service.
type InteractiveClient interface {
	Open(creds Credentials) (SessionInfo, error)
	ListScenes() ([]string, error)
	GetScene(name string) (SceneLayout, error)
	ClearControls(scene string) error
	CreateControls(scene string, specs []ControlSpec) error
	SubscribeControls(scene string) error
	SetControlCooldown(scene string, index int, cooldown time.Duration) error
	SetReady(ready bool) error
	CaptureTransaction(id string) error
	Close() error
}

// Credentials identify the channel and interactive version to attach to.
type Credentials struct {
	ChannelID string
	VersionID string
	Token     string
}

// SessionInfo is the remote's handshake result.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	ChannelID string `json:"channel_id"`
}

// RemoteError is a structured error returned by the remote service.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// IsPermissionDenied reports whether err is a credential/permission failure
// that must not be retried automatically.
func IsPermissionDenied(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code == 401 || re.Code == 403
	}
	return false
}

var errNotConnected = errors.New("not connected to interactive service")

type rpcRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcFrame struct {
	ID     int64           `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// RemoteClient is the gorilla/websocket implementation of InteractiveClient.
type RemoteClient struct {
	url     string
	timeout time.Duration
	logger  *slog.Logger

	// emit delivers translated remote events, in arrival order, to the
	// daemon's event channel.
	emit func(Event)

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  int64
	pending map[int64]chan rpcFrame
	closed  bool

	// captured dedupes transaction captures the remote may redeliver.
	captured *cache.Cache
}

// NewRemoteClient builds an adapter for the given websocket URL. No
// connection is made until Open.
func NewRemoteClient(wsURL string, timeout time.Duration, emit func(Event), logger *slog.Logger) (*RemoteClient, error) {
	if _, err := url.Parse(wsURL); err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	return &RemoteClient{
		url:      wsURL,
		timeout:  timeout,
		logger:   logger,
		emit:     emit,
		pending:  make(map[int64]chan rpcFrame),
		captured: cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

// Open dials the service and performs the session handshake. A previous
// connection, if any, is discarded first.
func (c *RemoteClient) Open(creds Credentials) (SessionInfo, error) {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.closed = false
	c.mu.Unlock()

	d := websocket.Dialer{HandshakeTimeout: c.timeout}
	conn, _, err := d.Dial(c.url, nil)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readPump(conn)

	var info SessionInfo
	if err := c.call("session.open", map[string]any{
		"channel_id": creds.ChannelID,
		"version_id": creds.VersionID,
		"token":      creds.Token,
	}, &info); err != nil {
		c.teardown(conn)
		return SessionInfo{}, fmt.Errorf("session open: %w", err)
	}

	c.logger.Info("interactive session opened", "channel", info.ChannelID, "session", info.SessionID)
	return info, nil
}

// readPump reads frames until the connection drops, routing replies to
// waiting calls and translating pushed frames into Events.
func (c *RemoteClient) readPump(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			expected := c.closed || c.conn != conn
			c.conn = nil
			// Unblock every in-flight call.
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()

			if !expected {
				c.logger.Warn("interactive connection lost", "error", err)
				c.emit(EvSessionClosed{})
			}
			return
		}

		var frame rpcFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.logger.Warn("discarding unparseable frame", "error", err)
			continue
		}

		if frame.Event != "" {
			c.dispatchEvent(frame)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[frame.ID]
		if ok {
			delete(c.pending, frame.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- frame
		} else {
			c.logger.Debug("reply with no waiter", "id", frame.ID)
		}
	}
}

// dispatchEvent translates a pushed frame into a typed Event.
func (c *RemoteClient) dispatchEvent(frame rpcFrame) {
	switch frame.Event {
	case "control_triggered":
		var ev EvControlTriggered
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			c.logger.Warn("bad control_triggered payload", "error", err)
			return
		}
		c.emit(ev)

	case "participant_joined":
		var ev EvParticipantJoined
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			c.logger.Warn("bad participant_joined payload", "error", err)
			return
		}
		c.emit(ev)

	case "participant_left":
		var ev EvParticipantLeft
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			c.logger.Warn("bad participant_left payload", "error", err)
			return
		}
		c.emit(ev)

	case "error":
		var ev EvSessionError
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			c.logger.Warn("bad error payload", "error", err)
			return
		}
		c.emit(ev)

	default:
		c.logger.Debug("ignoring unknown remote event", "event", frame.Event)
	}
}

// call sends a request and waits for its reply or the timeout.
func (c *RemoteClient) call(method string, params any, out any) error {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return errNotConnected
	}
	conn := c.conn
	c.nextID++
	id := c.nextID
	ch := make(chan rpcFrame, 1)
	c.pending[id] = ch

	payload, err := json.Marshal(rpcRequest{ID: id, Method: method, Params: params})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	// The write happens under the lock; gorilla connections allow a single
	// writer at a time.
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("send %s: %w", method, err)
	}
	c.mu.Unlock()

	select {
	case frame, ok := <-ch:
		if !ok {
			return errNotConnected
		}
		if frame.Error != nil {
			return frame.Error
		}
		if out != nil && frame.Result != nil {
			if err := json.Unmarshal(frame.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil

	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: timed out after %s", method, c.timeout)
	}
}

// ListScenes returns the names of the scenes on the remote.
func (c *RemoteClient) ListScenes() ([]string, error) {
	var res struct {
		Scenes []string `json:"scenes"`
	}
	if err := c.call("scene.list", nil, &res); err != nil {
		return nil, err
	}
	return res.Scenes, nil
}

// GetScene returns the authoritative layout for a scene.
func (c *RemoteClient) GetScene(name string) (SceneLayout, error) {
	var layout SceneLayout
	if err := c.call("scene.get", map[string]any{"scene": name}, &layout); err != nil {
		return SceneLayout{}, err
	}
	return layout, nil
}

// ClearControls deletes every control in the scene.
func (c *RemoteClient) ClearControls(scene string) error {
	return c.call("scene.clear_controls", map[string]any{"scene": scene}, nil)
}

// wireControl is the create-controls wire shape; cooldowns travel as ms.
type wireControl struct {
	Index      int    `json:"index"`
	SoundID    string `json:"sound_id"`
	Label      string `json:"label"`
	CooldownMs int64  `json:"cooldown_ms"`
}

// CreateControls creates the given control set in the scene.
func (c *RemoteClient) CreateControls(scene string, specs []ControlSpec) error {
	controls := make([]wireControl, len(specs))
	for i, s := range specs {
		controls[i] = wireControl{
			Index:      s.Index,
			SoundID:    s.SoundID,
			Label:      s.Label,
			CooldownMs: s.Cooldown.Milliseconds(),
		}
	}
	return c.call("scene.create_controls", map[string]any{
		"scene":    scene,
		"controls": controls,
	}, nil)
}

// SubscribeControls attaches trigger handlers for the scene's controls.
func (c *RemoteClient) SubscribeControls(scene string) error {
	return c.call("scene.subscribe", map[string]any{"scene": scene}, nil)
}

// SetControlCooldown pushes one control's cooldown.
func (c *RemoteClient) SetControlCooldown(scene string, index int, cooldown time.Duration) error {
	return c.call("control.set_cooldown", map[string]any{
		"scene":       scene,
		"index":       index,
		"cooldown_ms": cooldown.Milliseconds(),
	}, nil)
}

// SetReady marks the session ready (or not) for audience interaction.
func (c *RemoteClient) SetReady(ready bool) error {
	return c.call("session.ready", map[string]any{"ready": ready}, nil)
}

// CaptureTransaction captures a chargeable transaction. Redelivered ids
// inside the dedupe window are acknowledged without a second remote call.
func (c *RemoteClient) CaptureTransaction(id string) error {
	if _, seen := c.captured.Get(id); seen {
		c.logger.Debug("transaction already captured", "id", id)
		return nil
	}
	if err := c.call("transaction.capture", map[string]any{"id": id}, nil); err != nil {
		return err
	}
	c.captured.Set(id, struct{}{}, cache.DefaultExpiration)
	return nil
}

// Close tears the connection down. The read pump treats the resulting read
// error as expected and emits no close event.
func (c *RemoteClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		// Best-effort polite close before dropping the socket.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

func (c *RemoteClient) teardown(conn *websocket.Conn) {
	c.mu.Lock()
	c.closed = true
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

// loadToken reads a credential token from a file, trimming whitespace.
// An empty path yields an empty token (anonymous/local development).
func loadToken(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
