package stream

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"convtrack/cli/internal/backend/backendtest"
	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/errors"
	"convtrack/cli/internal/httperrors"
	"convtrack/cli/internal/logging"
	"convtrack/cli/internal/manifest"
)

// scriptedConn yields units, then EOF or blocks until closed when hold is set.
type scriptedConn struct {
	units  []string
	hold   bool
	closed chan struct{}
	once   sync.Once
}

func (c *scriptedConn) Next() (string, error) {
	if len(c.units) > 0 {
		u := c.units[0]
		c.units = c.units[1:]
		return u, nil
	}
	if c.hold {
		<-c.closed
		return "", stderrors.New("use of closed connection")
	}
	return "", io.EOF
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type scriptedTransport struct {
	units []string
	hold  bool
	err   error
}

func (t scriptedTransport) Connect(context.Context, conversion.JobSpec, string) (Conn, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &scriptedConn{units: append([]string(nil), t.units...), hold: t.hold, closed: make(chan struct{})}, nil
}

func testSpec() conversion.JobSpec {
	return conversion.JobSpec{SourceType: conversion.SourceOracle, Schema: "HR", ObjectType: conversion.ObjectFullSchema}
}

func newTestReader(t Transport) *Reader {
	return NewReader(t, WithGrace(20*time.Millisecond), WithLogger(logging.Discard()))
}

// collect reads events until the handle's channel closes.
func collect(t *testing.T, h *Handle) []conversion.ProgressEvent {
	t.Helper()
	var out []conversion.ProgressEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream did not end; got %d events", len(out))
		}
	}
}

func messages(events []conversion.ProgressEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Message
	}
	return out
}

func TestOpen_RequiresTransactionID(t *testing.T) {
	r := newTestReader(scriptedTransport{})
	if _, err := r.Open(context.Background(), testSpec(), " "); !errors.IsKind(err, errors.SetupFailed) {
		t.Fatalf("Open() error = %v, want setup_error", err)
	}
}

func TestReader_CompletionClosesAfterGrace(t *testing.T) {
	units := []string{
		"🚀 Starting conversion",
		"📦 Converting tables",
		"📈 Progress: 50.0% (1/2)",
		"🎉 Full schema conversion completed",
		"🏁 Summary written",
	}
	r := newTestReader(scriptedTransport{units: units, hold: true})
	h, err := r.Open(context.Background(), testSpec(), "tx-1")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, h)

	if got := strings.Join(messages(events), "|"); got != strings.Join(units, "|") {
		t.Fatalf("messages = %q", got)
	}
	for _, ev := range events {
		if ev.Phase == conversion.PhaseDisconnected {
			t.Fatal("deliberate close must not produce a disconnect event")
		}
		if ev.At.IsZero() {
			t.Error("events must be timestamped")
		}
	}
	if h.Err() != nil {
		t.Errorf("Err() = %v, want nil", h.Err())
	}
}

func TestReader_EOFBeforeCompletionDisconnects(t *testing.T) {
	r := newTestReader(scriptedTransport{units: []string{"a", "b", "c"}})
	h, _ := r.Open(context.Background(), testSpec(), "tx-1")
	events := collect(t, h)

	if len(events) != 4 {
		t.Fatalf("events = %d, want 3 lines plus disconnect", len(events))
	}
	last := events[3]
	if last.Phase != conversion.PhaseDisconnected || last.Severity != conversion.SeverityError || !last.Terminal {
		t.Errorf("last event = %+v", last)
	}
	if last.Message != conversion.DisconnectedMessage {
		t.Errorf("message = %q", last.Message)
	}
	if !errors.IsKind(h.Err(), errors.StreamFailed) {
		t.Errorf("Err() = %v, want stream_error", h.Err())
	}
}

func TestReader_EOFAfterCompletionIsQuiet(t *testing.T) {
	r := newTestReader(scriptedTransport{units: []string{"x", "🏁 Full schema conversion completed"}})
	h, _ := r.Open(context.Background(), testSpec(), "tx-1")
	events := collect(t, h)
	if len(events) != 2 || h.Err() != nil {
		t.Fatalf("events = %v, err = %v", messages(events), h.Err())
	}
}

func TestReader_ConnectFailure(t *testing.T) {
	r := newTestReader(scriptedTransport{err: stderrors.New("connection refused")})
	h, err := r.Open(context.Background(), testSpec(), "tx-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	events := collect(t, h)
	if len(events) != 1 || events[0].Phase != conversion.PhaseDisconnected {
		t.Fatalf("events = %+v", events)
	}
	if !errors.IsKind(h.Err(), errors.StreamFailed) {
		t.Errorf("Err() = %v", h.Err())
	}
}

func TestReader_PayloadUnits(t *testing.T) {
	units := []string{
		`{"progress":{"completed":1,"total":2},"logs":["✅ EMP: 10 rows","⚠️ slow"]}`,
		`{"progress":{"completed":2,"total":2}}`,
	}
	r := newTestReader(scriptedTransport{units: units, hold: true})
	h, _ := r.Open(context.Background(), testSpec(), "tx-1")
	events := collect(t, h)

	if len(events) != 3 {
		t.Fatalf("events = %v", messages(events))
	}
	if events[1].Done != 1 || events[1].Total != 2 {
		t.Errorf("progress must ride on the last log line: %+v", events[1])
	}
	if !events[2].Terminal || events[2].Phase != conversion.PhaseCompleted {
		t.Errorf("completed payload = %+v", events[2])
	}
}

func TestReader_MultiLineUnit(t *testing.T) {
	r := newTestReader(scriptedTransport{units: []string{"one\ntwo\r\nthree"}, hold: true})
	h, _ := r.Open(context.Background(), testSpec(), "tx-1")
	time.AfterFunc(100*time.Millisecond, h.Close)
	events := collect(t, h)
	if got := strings.Join(messages(events), ","); got != "one,two,three" {
		t.Errorf("messages = %q", got)
	}
}

func TestReader_OpenClosesPrevious(t *testing.T) {
	r := newTestReader(scriptedTransport{units: []string{"a"}, hold: true})
	first, _ := r.Open(context.Background(), testSpec(), "tx-1")
	second, _ := r.Open(context.Background(), testSpec(), "tx-2")

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("previous handle still open")
	}
	for ev := range first.Events() {
		if ev.Phase == conversion.PhaseDisconnected {
			t.Error("switching streams must not report a disconnect")
		}
	}
	if first.Err() != nil {
		t.Errorf("first.Err() = %v", first.Err())
	}

	r.Close()
	second.Close() // idempotent
	<-second.Done()
}

func TestReader_ContextCancelIsQuiet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newTestReader(scriptedTransport{units: []string{"a"}, hold: true})
	h, _ := r.Open(ctx, testSpec(), "tx-1")
	time.AfterFunc(50*time.Millisecond, cancel)
	events := collect(t, h)
	if len(events) != 1 || h.Err() != nil {
		t.Errorf("events = %v, err = %v", messages(events), h.Err())
	}
}

func TestSSE_EndToEnd(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.SetScript(backendtest.Script{
		Lines: []string{"🔄 Connecting to Oracle", "🎉 Full schema migration completed", "🏁 done"},
		Hold:  true,
	})

	tr, err := NewTransport("sse", Options{BaseURL: srv.URL, Manifest: manifest.Default(), Session: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	h, _ := newTestReader(tr).Open(context.Background(), testSpec(), "tx-1")
	events := collect(t, h)

	if len(events) != 3 {
		t.Fatalf("events = %v", messages(events))
	}
	if events[1].Phase != conversion.PhaseCompleted {
		t.Errorf("completion event = %+v", events[1])
	}
	if h.Err() != nil {
		t.Errorf("Err() = %v", h.Err())
	}
	reqs := srv.StreamRequests()
	if len(reqs) != 1 || reqs[0].Path != "/full-migration/all/stream" || reqs[0].Query().Get("transaction_id") != "tx-1" {
		t.Errorf("stream requests = %v", reqs)
	}
}

func TestSSE_ServerCloseDisconnects(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.SetScript(backendtest.Script{Lines: []string{"📦 Converting tables"}})

	tr, _ := NewTransport("sse", Options{BaseURL: srv.URL})
	h, _ := newTestReader(tr).Open(context.Background(), testSpec(), "tx-1")
	events := collect(t, h)
	if len(events) != 2 || events[1].Phase != conversion.PhaseDisconnected {
		t.Fatalf("events = %v", messages(events))
	}
}

func TestSSE_StatusError(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.SetScript(backendtest.Script{Status: 401})

	tr, _ := NewTransport("sse", Options{BaseURL: srv.URL})
	h, _ := newTestReader(tr).Open(context.Background(), testSpec(), "tx-1")
	events := collect(t, h)
	if len(events) != 1 {
		t.Fatalf("events = %v", messages(events))
	}
	if httperrors.StatusCode(h.Err()) != 401 {
		t.Errorf("Err() = %v, want status 401", h.Err())
	}
}

func TestWebSocket_EndToEnd(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.SetScript(backendtest.Script{
		Lines: []string{"📦 Migrating tables", "✅ EMP: 1,200 rows", "Conversion done"},
		Hold:  true,
	})

	tr, err := NewTransport("websocket", Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	spec := testSpec()
	spec.ObjectType = conversion.ObjectTable
	spec.Targets = []string{"EMP"}
	h, _ := newTestReader(tr).Open(context.Background(), spec, "tx-1")
	events := collect(t, h)

	if len(events) != 3 || h.Err() != nil {
		t.Fatalf("events = %v, err = %v", messages(events), h.Err())
	}
	if events[1].Rows != 1200 {
		t.Errorf("rows = %d, want 1200", events[1].Rows)
	}
	reqs := srv.StreamRequests()
	if len(reqs) != 1 || reqs[0].Path != "/migrate-tables/oracle/HR/stream" || reqs[0].Query().Get("tables") != "EMP" {
		t.Errorf("stream requests = %v", reqs)
	}
}

func TestWebSocket_NormalCloseBeforeCompletion(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.SetScript(backendtest.Script{Lines: []string{"🚀 Starting"}})

	tr, _ := NewTransport("websocket", Options{BaseURL: srv.URL})
	h, _ := newTestReader(tr).Open(context.Background(), testSpec(), "tx-1")
	events := collect(t, h)
	if len(events) != 2 || events[1].Phase != conversion.PhaseDisconnected {
		t.Fatalf("events = %v", messages(events))
	}
}

func TestReader_ObjectStreamCompletion(t *testing.T) {
	tests := []struct {
		name  string
		typ   conversion.ObjectType
		units []string
	}{
		{"views", conversion.ObjectView, []string{"✅ View 'EMP_V' migrated.", "🎉 Views migration completed. Success: 1/1"}},
		{"triggers", conversion.ObjectTrigger, []string{"✅ Trigger 'TRG_A' migrated.", "Migration completed. Success: 1/1"}},
		{"sequences payload", conversion.ObjectSequence, []string{
			`{"logs":[{"type":"info","message":"🔢 Starting sequences migration for schema 'HR' from source 'oracle'."}],"progress":{"completed":0,"total":0}}`,
			`{"logs":[{"type":"success","message":"✅ Sequence 'S1' created successfully."}],"progress":{"completed":1,"total":1}}`,
		}},
		{"no sequences", conversion.ObjectSequence, []string{
			`{"logs":[{"type":"warning","message":"⚠️ No sequences found to migrate in schema 'HR'."}],"progress":{"completed":0,"total":0}}`,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			spec.ObjectType = tt.typ
			h, _ := newTestReader(scriptedTransport{units: tt.units}).Open(context.Background(), spec, "tx-1")
			events := collect(t, h)

			if len(events) != len(tt.units) || h.Err() != nil {
				t.Fatalf("events = %v, err = %v", messages(events), h.Err())
			}
			last := events[len(events)-1]
			if !last.Terminal || last.Phase != conversion.PhaseCompleted {
				t.Errorf("last event = %+v", last)
			}
			if strings.HasPrefix(events[0].Message, "{") {
				t.Errorf("payload delivered as raw JSON: %q", events[0].Message)
			}
		})
	}
}

func TestReader_FullSchemaSubPhaseIsNotTheEnd(t *testing.T) {
	units := []string{"🎉 Trigger migration completed: 3 / 5 migrated."}
	h, _ := newTestReader(scriptedTransport{units: units}).Open(context.Background(), testSpec(), "tx-1")
	events := collect(t, h)
	if len(events) != 2 || events[1].Phase != conversion.PhaseDisconnected {
		t.Fatalf("events = %v", messages(events))
	}
}
