// Package backendtest runs an in-memory conversion backend for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/manifest"
)

// Script controls what the stream endpoints send.
type Script struct {
	// Lines are sent one data unit each.
	Lines []string
	// Interval is the pause between lines.
	Interval time.Duration
	// Hold keeps the connection open after the last line until the client
	// goes away. Without it the server closes the stream.
	Hold bool
	// Status, when non-zero, is returned instead of streaming.
	Status int
}

// Server is a fake conversion backend.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	users          map[string]string
	sessions       map[string]string
	snapshots      map[string]conversion.StatusSnapshot
	statusFailures int
	statusCalls    map[string]int
	txids          map[string]string
	current        map[string]string
	script         Script
	streamReqs     []*url.URL
	started        []map[string]any

	done     chan struct{}
	doneOnce sync.Once
	upgrader websocket.Upgrader
}

// New starts a fake backend serving the default manifest routes plus a
// start-job route at /jobs/start.
func New() *Server {
	s := &Server{
		users:       map[string]string{},
		sessions:    map[string]string{},
		snapshots:   map[string]conversion.StatusSnapshot{},
		statusCalls: map[string]int{},
		txids:       map[string]string{},
		done:        make(chan struct{}),
	}

	m := manifest.Default()
	r := chi.NewRouter()
	r.Get(m.HTTP.Health, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"msg": "pong"})
	})
	r.Post(m.HTTP.Login, s.login)
	r.Post(m.HTTP.Logout, s.logout)
	r.Get(m.HTTP.Account, s.account)
	r.Get(m.HTTP.Status, s.status)
	r.Get(m.HTTP.SchemaTransaction, s.getTx)
	r.Put(m.HTTP.SchemaTransaction, s.putTx)
	r.Get(m.HTTP.CurrentMigration, s.currentMigration)
	r.Post("/jobs/start", s.startJob)
	for _, ep := range m.Streams {
		r.Get(ep.Path, s.stream)
	}

	s.Server = httptest.NewServer(r)
	return s
}

// Close releases held streams and shuts the server down.
func (s *Server) Close() {
	s.doneOnce.Do(func() { close(s.done) })
	s.Server.Close()
}

// AddUser registers a login.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

// SetSnapshot sets the status returned for a transaction id.
func (s *Server) SetSnapshot(snap conversion.StatusSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.TransactionID] = snap
}

// FailStatus makes the next n status requests answer 500.
func (s *Server) FailStatus(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFailures = n
}

// StatusCalls returns how many status requests were made for txID.
func (s *Server) StatusCalls(txID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls[txID]
}

// SetTransactionID pre-assigns a transaction id to schema.
func (s *Server) SetTransactionID(schema, txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txids[schema] = txID
}

// TransactionID returns the id stored for schema.
func (s *Server) TransactionID(schema string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txids[schema]
}

// SetCurrent sets the running migration; nil clears it.
func (s *Server) SetCurrent(cm map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = cm
}

// SetScript replaces the stream script.
func (s *Server) SetScript(sc Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = sc
}

// StreamRequests returns the URLs of all stream requests so far.
func (s *Server) StreamRequests() []*url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*url.URL(nil), s.streamReqs...)
}

// Started returns the bodies posted to the start-job route.
func (s *Server) Started() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.started...)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}
	s.mu.Lock()
	want, ok := s.users[body.Email]
	session := ""
	if ok && want == body.Password {
		session = uuid.NewString()
		s.sessions[session] = body.Email
	}
	s.mu.Unlock()
	if session == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid email or password"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "AuthSession", Value: session, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Login successful", "name": body.Email})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("AuthSession"); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("AuthSession")
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Missing AuthSession cookie"})
		return
	}
	s.mu.Lock()
	email, ok := s.sessions[c.Value]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid session or cookie"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	tx := chi.URLParam(r, "tx")
	s.mu.Lock()
	s.statusCalls[tx]++
	fail := s.statusFailures > 0
	if fail {
		s.statusFailures--
	}
	snap, ok := s.snapshots[tx]
	s.mu.Unlock()

	switch {
	case fail:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "status unavailable"})
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Transaction not found"})
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) getTx(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema")
	s.mu.Lock()
	id, ok := s.txids[schema]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No transaction id for schema"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"schema": schema, "transaction_id": id})
}

func (s *Server) putTx(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema")
	var body struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TransactionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "transaction_id is required"})
		return
	}
	s.mu.Lock()
	s.txids[schema] = body.TransactionID
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"schema": schema, "transaction_id": body.TransactionID})
}

func (s *Server) currentMigration(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	cm := s.current
	s.mu.Unlock()
	if cm == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No running migration found"})
		return
	}
	writeJSON(w, http.StatusOK, cm)
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}
	s.mu.Lock()
	s.started = append(s.started, body)
	s.mu.Unlock()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := *r.URL
	s.streamReqs = append(s.streamReqs, &u)
	sc := s.script
	s.mu.Unlock()

	if sc.Status != 0 {
		http.Error(w, http.StatusText(sc.Status), sc.Status)
		return
	}
	if websocket.IsWebSocketUpgrade(r) {
		s.streamWS(w, r, sc)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, line := range sc.Lines {
		if !s.pause(r, sc.Interval) {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", line)
		flusher.Flush()
	}
	if sc.Hold {
		s.wait(r)
	}
}

func (s *Server) streamWS(w http.ResponseWriter, r *http.Request, sc Script) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for _, line := range sc.Lines {
		if !s.pause(r, sc.Interval) {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
	if sc.Hold {
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		select {
		case <-gone:
		case <-s.done:
		}
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(time.Second))
}

func (s *Server) pause(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-r.Context().Done():
		return false
	case <-s.done:
		return false
	}
}

func (s *Server) wait(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-s.done:
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
