package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/errors"
)

// DefaultGrace is how long a completed stream stays open for trailing lines.
const DefaultGrace = 500 * time.Millisecond

// Reader opens progress streams through a Transport. At most one stream is
// open per Reader; opening a new one closes the previous.
type Reader struct {
	transport Transport
	grace     time.Duration
	log       logrus.FieldLogger
	now       func() time.Time

	mu      sync.Mutex
	current *Handle
}

// Option configures a Reader.
type Option func(*Reader)

// WithGrace sets the delay between the completion event and the close.
func WithGrace(d time.Duration) Option {
	return func(r *Reader) {
		if d >= 0 {
			r.grace = d
		}
	}
}

// WithLogger replaces the standard logrus logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Reader) { r.log = l }
}

// NewReader creates a Reader over t.
func NewReader(t Transport, opts ...Option) *Reader {
	r := &Reader{
		transport: t,
		grace:     DefaultGrace,
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open starts reading the stream of spec under txID. Connection failures
// are not returned here; they surface as a disconnect event on the handle.
func (r *Reader) Open(ctx context.Context, spec conversion.JobSpec, txID string) (*Handle, error) {
	if strings.TrimSpace(txID) == "" {
		return nil, errors.New(errors.SetupFailed, "transaction id is required to open a stream")
	}

	r.mu.Lock()
	prev := r.current
	r.current = nil
	r.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		TransactionID: txID,
		events:        make(chan conversion.ProgressEvent, 64),
		done:          make(chan struct{}),
		cancel:        cancel,
	}
	r.mu.Lock()
	r.current = h
	r.mu.Unlock()

	go h.run(hctx, r, spec.Clone())
	return h, nil
}

// Close closes the open stream, if any.
func (r *Reader) Close() {
	r.mu.Lock()
	h := r.current
	r.current = nil
	r.mu.Unlock()
	if h != nil {
		h.Close()
	}
}

// Handle is one open stream.
type Handle struct {
	TransactionID string

	events    chan conversion.ProgressEvent
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu        sync.Mutex
	err       error
	completed bool
}

// Events delivers the classified events in stream order. It is closed when
// the stream ends.
func (h *Handle) Events() <-chan conversion.ProgressEvent { return h.events }

// Done is closed once the stream goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the stream_error that ended the stream, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close stops the stream without a disconnect event and waits for the
// stream goroutine to exit. Safe to call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}

func (h *Handle) run(ctx context.Context, r *Reader, spec conversion.JobSpec) {
	defer close(h.events)
	defer close(h.done)
	log := r.log.WithFields(logrus.Fields{"tx": h.TransactionID, "schema": spec.Schema})

	conn, err := r.transport.Connect(ctx, spec, h.TransactionID)
	if err != nil {
		if ctx.Err() == nil {
			h.disconnect(ctx, r, log, err)
		}
		return
	}
	defer conn.Close()
	// Closing the connection unblocks Next when the handle is closed.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	log.Debug("progress stream connected")

	for {
		data, err := conn.Next()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				log.Debug("progress stream closed")
			case h.isCompleted():
				log.Debug("progress stream ended after completion")
			default:
				h.disconnect(ctx, r, log, err)
			}
			return
		}
		for _, ev := range decode(data, spec.ObjectType) {
			if ev.At.IsZero() {
				ev.At = r.now()
			}
			if ev.Terminal && ev.Phase == conversion.PhaseCompleted && h.markCompleted() {
				log.Debugf("job completed, closing stream in %s", r.grace)
				time.AfterFunc(r.grace, h.cancel)
			}
			if !h.send(ctx, ev) {
				return
			}
		}
	}
}

// decode turns one data unit of a job of type t into events: a structured
// payload expands to its log lines, plain text yields one event per line.
func decode(data string, t conversion.ObjectType) []conversion.ProgressEvent {
	if p, ok := conversion.DecodePayload(data); ok {
		return p.Events(t)
	}
	lines := strings.Split(data, "\n")
	out := make([]conversion.ProgressEvent, 0, len(lines))
	for _, line := range lines {
		out = append(out, conversion.ClassifyFor(strings.TrimRight(line, "\r"), t))
	}
	return out
}

func (h *Handle) disconnect(ctx context.Context, r *Reader, log logrus.FieldLogger, cause error) {
	h.mu.Lock()
	h.err = errors.Wrap(errors.StreamFailed, "progress stream lost", cause)
	h.mu.Unlock()
	log.WithError(cause).Warn("progress stream disconnected")
	h.send(ctx, conversion.Disconnected(r.now()))
}

func (h *Handle) send(ctx context.Context, ev conversion.ProgressEvent) bool {
	select {
	case h.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Handle) markCompleted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.completed {
		return false
	}
	h.completed = true
	return true
}

func (h *Handle) isCompleted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed
}
