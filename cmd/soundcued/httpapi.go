package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// ============================================================================
// HTTP Control API
// ============================================================================
// Localhost control surface for the UI: session status and actions, profile
// and sound CRUD, and the state websocket. Session actions are posted onto
// the daemon's event channel; catalog edits go straight to the catalog,
// which requests resyncs itself.
// ============================================================================

type apiServer struct {
	events  chan<- Event
	catalog *Catalog
	hub     *Hub
	logger  *slog.Logger
}

// newRouter builds the API routes.
func newRouter(events chan<- Event, catalog *Catalog, hub *Hub, logger *slog.Logger) *mux.Router {
	s := &apiServer{events: events, catalog: catalog, hub: hub, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")

	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/api/connect", s.postAction(ActionConnect{})).Methods("POST")
	r.HandleFunc("/api/disconnect", s.postAction(ActionDisconnect{})).Methods("POST")
	r.HandleFunc("/api/resync", s.postAction(ActionResyncControls{})).Methods("POST")
	r.HandleFunc("/api/session/cooldown", s.handleSetCooldownPolicy).Methods("POST")
	r.HandleFunc("/api/session/reconnect", s.handleSetReconnect).Methods("POST")

	r.HandleFunc("/api/profiles", s.handleListProfiles).Methods("GET")
	r.HandleFunc("/api/profiles", s.handleAddProfile).Methods("POST")
	r.HandleFunc("/api/profiles/sort", s.handleSortProfiles).Methods("POST")
	r.HandleFunc("/api/profiles/{id}", s.handleRenameProfile).Methods("PUT")
	r.HandleFunc("/api/profiles/{id}", s.handleRemoveProfile).Methods("DELETE")
	r.HandleFunc("/api/profiles/{id}/select", s.handleSelectProfile).Methods("POST")
	r.HandleFunc("/api/profiles/{id}/lock", s.handleToggleLock).Methods("POST")
	r.HandleFunc("/api/profiles/active/slots/{index}", s.handleAssignSlot).Methods("PUT")
	r.HandleFunc("/api/profiles/active/slots/{index}", s.handleUnassignSlot).Methods("DELETE")

	r.HandleFunc("/api/sounds", s.handleListSounds).Methods("GET")
	r.HandleFunc("/api/sounds", s.handleAddSound).Methods("POST")
	r.HandleFunc("/api/sounds/{id}", s.handleUpdateSound).Methods("PUT")
	r.HandleFunc("/api/sounds/{id}", s.handleRemoveSound).Methods("DELETE")

	r.HandleFunc("/ws", hub.ServeWS).Methods("GET")

	return r
}

// runHTTPServer serves the API until ctx is canceled, then shuts down
// gracefully.
func runHTTPServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: handler,
	}
	logger.Info("http api listening", "addr", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}

// ==============================
// Handler helpers
// ==============================

func (s *apiServer) post(w http.ResponseWriter, ev Event) {
	select {
	case s.events <- ev:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event queue full"})
	}
}

func (s *apiServer) postAction(ev Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.post(w, ev)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrProfileLocked):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// ==============================
// Session handlers
// ==============================

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"session":        s.hub.Latest(),
		"active_profile": snap.ActiveProfileID,
		"profiles":       len(snap.Profiles),
		"sounds":         len(snap.Sounds),
	})
}

func (s *apiServer) handleSetCooldownPolicy(w http.ResponseWriter, r *http.Request) {
	var a ActionSetCooldownPolicy
	if err := decodeBody(r, &a); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !validCooldownMode(a.Mode) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode must be static, dynamic or individual"})
		return
	}
	s.post(w, a)
}

func (s *apiServer) handleSetReconnect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool  `json:"enabled,omitempty"`
		DelayMs *int64 `json:"delay_ms,omitempty"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if body.Enabled != nil {
		select {
		case s.events <- ActionSetAutoReconnect{Enabled: *body.Enabled}:
		default:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event queue full"})
			return
		}
	}
	if body.DelayMs != nil {
		select {
		case s.events <- ActionSetReconnectDelay{DelayMs: *body.DelayMs}:
		default:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event queue full"})
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// ==============================
// Profile handlers
// ==============================

func (s *apiServer) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles":  snap.Profiles,
		"profileId": snap.ActiveProfileID,
	})
}

func (s *apiServer) handleAddProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	writeJSON(w, http.StatusCreated, s.catalog.AddProfile(body.Name))
}

func (s *apiServer) handleSortProfiles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OldIndex int `json:"old_index"`
		NewIndex int `json:"new_index"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.catalog.MoveProfile(body.OldIndex, body.NewIndex); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleRenameProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if err := s.catalog.RenameProfile(mux.Vars(r)["id"], body.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleRemoveProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.RemoveProfile(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.SelectProfile(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	locked, err := s.catalog.ToggleLock(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"locked": locked})
}

func (s *apiServer) handleAssignSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad slot index"})
		return
	}
	var body struct {
		SoundID string `json:"sound_id"`
	}
	if err := decodeBody(r, &body); err != nil || body.SoundID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sound_id is required"})
		return
	}
	if err := s.catalog.AssignSound(slot, body.SoundID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleUnassignSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad slot index"})
		return
	}
	if err := s.catalog.UnassignSound(slot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Sound handlers
// ==============================

type soundBody struct {
	Name            string  `json:"name"`
	Path            string  `json:"path"`
	CooldownSeconds float64 `json:"cooldown"`
}

func (s *apiServer) handleListSounds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sounds": s.catalog.Snapshot().Sounds})
}

func (s *apiServer) handleAddSound(w http.ResponseWriter, r *http.Request) {
	var body soundBody
	if err := decodeBody(r, &body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	writeJSON(w, http.StatusCreated, s.catalog.AddSound(body.Name, body.Path, body.CooldownSeconds))
}

func (s *apiServer) handleUpdateSound(w http.ResponseWriter, r *http.Request) {
	var body soundBody
	if err := decodeBody(r, &body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if err := s.catalog.UpdateSound(mux.Vars(r)["id"], body.Name, body.Path, body.CooldownSeconds); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleRemoveSound(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.RemoveSound(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
