// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session tracks one conversion job at a time.
//
// A Session merges the progress stream and the status poller of the current
// job into a single JobViewState. One goroutine per job applies stream events
// and poll results in turn, so the reconciler never runs concurrently with
// itself. Starting another job replaces the state; anything still in flight
// for the previous job is discarded.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/errors"
	"convtrack/cli/internal/poller"
	"convtrack/cli/internal/stream"
)

// StreamOpener opens progress streams. *stream.Reader implements it.
type StreamOpener interface {
	Open(ctx context.Context, spec conversion.JobSpec, txID string) (*stream.Handle, error)
}

// Session tracks the current job.
type Session struct {
	opener   StreamOpener
	fetcher  poller.Fetcher
	interval time.Duration
	grace    time.Duration
	noStream bool
	log      logrus.FieldLogger

	// ctl serializes Start, Cancel and Close.
	ctl sync.Mutex

	mu      sync.Mutex
	gen     uint64
	state   *conversion.JobViewState
	job     *job
	closed  bool
	updates chan struct{}
}

type job struct {
	gen    uint64
	txID   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithInterval sets the status poll cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

// WithGrace sets how long the stream may keep delivering after the status
// endpoint reported completion.
func WithGrace(d time.Duration) Option {
	return func(s *Session) { s.grace = d }
}

// WithoutStream tracks jobs by polling only.
func WithoutStream() Option {
	return func(s *Session) { s.noStream = true }
}

// WithLogger replaces the standard logrus logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// New creates a Session. opener may be nil when WithoutStream is given.
func New(opener StreamOpener, fetcher poller.Fetcher, opts ...Option) *Session {
	s := &Session{
		opener:   opener,
		fetcher:  fetcher,
		interval: poller.DefaultInterval,
		grace:    stream.DefaultGrace,
		log:      logrus.StandardLogger(),
		updates:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins tracking spec under txID, replacing any job tracked so far.
// An invalid spec or an empty txID is rejected before anything changes.
func (s *Session) Start(ctx context.Context, spec conversion.JobSpec, txID string) error {
	if strings.TrimSpace(txID) == "" {
		return errors.New(errors.SetupFailed, "transaction id is required")
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.SetupFailed, "session is closed")
	}
	prev := s.job
	s.job = nil
	s.gen++
	gen := s.gen
	initial := conversion.NewJobView(spec, txID)
	s.state = &initial
	s.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
	s.notify()

	jctx, cancel := context.WithCancel(ctx)
	var events <-chan conversion.ProgressEvent
	var handle *stream.Handle
	if !s.noStream {
		if s.opener == nil {
			cancel()
			return errors.New(errors.SetupFailed, "no stream transport configured")
		}
		h, err := s.opener.Open(jctx, spec, txID)
		if err != nil {
			cancel()
			return err
		}
		handle = h
		events = h.Events()
	}

	polls := poller.Start(jctx, s.fetcher, poller.Request{
		TransactionID: txID,
		SourceType:    string(spec.SourceType),
		Schema:        spec.Schema,
	}, s.interval, s.log)

	j := &job{gen: gen, txID: txID, cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.job = j
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"tx": txID, "job": spec.String()}).Debug("tracking job")
	go s.run(jctx, j, handle, events, polls)
	return nil
}

// Switch is Start for a different job; the current job is detached.
func (s *Session) Switch(ctx context.Context, spec conversion.JobSpec, txID string) error {
	return s.Start(ctx, spec, txID)
}

// State returns the current view state. ok is false when no job is tracked.
func (s *Session) State() (state conversion.JobViewState, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return conversion.JobViewState{}, false
	}
	return *s.state, true
}

// Updates receives a value whenever the state changed. Notifications are
// coalesced; read State for the latest value. Closed by Close.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// Finished is closed when the current job's stream and poller have both
// stopped. It is already closed when no job is tracked.
func (s *Session) Finished() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.job.done
}

// Cancel stops tracking the current job and marks it cancelled. The state
// stays readable. The backend job is not affected.
func (s *Session) Cancel() {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	j := s.job
	s.job = nil
	if s.state != nil {
		next := conversion.Cancel(*s.state)
		s.state = &next
	}
	s.gen++
	s.mu.Unlock()

	if j != nil {
		j.stop()
	}
	s.notify()
}

// Close stops tracking and discards the state. Safe to call more than once.
func (s *Session) Close() {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	j := s.job
	s.job = nil
	s.state = nil
	s.gen++
	s.mu.Unlock()

	if j != nil {
		j.stop()
	}
	close(s.updates)
}

func (j *job) stop() {
	j.cancel()
	<-j.done
}

func (s *Session) run(ctx context.Context, j *job, handle *stream.Handle, events <-chan conversion.ProgressEvent, polls *poller.Handle) {
	defer close(j.done)
	defer polls.Stop()
	if handle != nil {
		defer handle.Close()
	}
	log := s.log.WithField("tx", j.txID)

	results := polls.Results()
	var graceTimer *time.Timer
	defer func() {
		if graceTimer != nil {
			graceTimer.Stop()
		}
	}()

	for events != nil || results != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.apply(j.gen, &ev, nil)
		case r, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if r.TransactionID != j.txID {
				log.WithField("result_tx", r.TransactionID).Debug("discarding stale status")
				continue
			}
			s.apply(j.gen, nil, &r.Snapshot)
		case <-ctx.Done():
			return
		}

		if st, ok := s.State(); ok && !st.Active && results != nil {
			log.WithField("phase", st.Phase).Debug("job inactive, stopping poller")
			polls.Stop()
			if handle != nil && graceTimer == nil {
				graceTimer = time.AfterFunc(s.grace, handle.Close)
			}
		}
	}
}

// apply reconciles one input into the state of generation gen.
func (s *Session) apply(gen uint64, ev *conversion.ProgressEvent, snap *conversion.StatusSnapshot) {
	s.mu.Lock()
	if gen != s.gen || s.state == nil {
		s.mu.Unlock()
		return
	}
	next := conversion.Reconcile(*s.state, ev, snap)
	s.state = &next
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
