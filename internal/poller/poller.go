// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package poller fetches the authoritative status of a job on a fixed cadence.
package poller

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/errors"
)

// DefaultInterval is the poll cadence used when none is given.
const DefaultInterval = 3 * time.Second

// Fetcher retrieves one status snapshot.
type Fetcher interface {
	GetStatus(ctx context.Context, txID, sourceType, schema string) (conversion.StatusSnapshot, error)
}

// Request identifies the job to poll.
type Request struct {
	TransactionID string
	SourceType    string
	Schema        string
}

func (r Request) complete() bool {
	return strings.TrimSpace(r.TransactionID) != "" &&
		strings.TrimSpace(r.SourceType) != "" &&
		strings.TrimSpace(r.Schema) != ""
}

// Result is one successful fetch, tagged with the id it was requested for.
type Result struct {
	TransactionID string
	Snapshot      conversion.StatusSnapshot
	At            time.Time
}

// Handle controls a running poller.
type Handle struct {
	Request Request

	results  chan Result
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	failures atomic.Int64
	lastErr  atomic.Pointer[errors.E]
}

// Start fetches immediately and then every interval until Stop or ctx ends.
// A request with an empty field yields an inert handle that never fetches.
func Start(ctx context.Context, f Fetcher, req Request, interval time.Duration, log logrus.FieldLogger) *Handle {
	h := &Handle{Request: req}
	if !req.complete() || f == nil {
		return h
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	pctx, cancel := context.WithCancel(ctx)
	h.results = make(chan Result, 1)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.run(pctx, f, interval, log.WithField("tx", req.TransactionID))
	return h
}

// Results delivers successful fetches. It is nil for an inert handle and
// closed after Stop.
func (h *Handle) Results() <-chan Result { return h.results }

// Failures returns how many fetches failed so far.
func (h *Handle) Failures() int64 { return h.failures.Load() }

// LastError returns the most recent poll_error, or nil.
func (h *Handle) LastError() error {
	if e := h.lastErr.Load(); e != nil {
		return e
	}
	return nil
}

// Stop ends polling and waits for the poll goroutine. Safe to call more
// than once and on an inert handle.
func (h *Handle) Stop() {
	if h.cancel == nil {
		return
	}
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}

func (h *Handle) run(ctx context.Context, f Fetcher, interval time.Duration, log logrus.FieldLogger) {
	defer close(h.results)
	defer close(h.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := f.GetStatus(ctx, h.Request.TransactionID, h.Request.SourceType, h.Request.Schema)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			n := h.failures.Add(1)
			h.lastErr.Store(errors.Wrap(errors.PollFailed, "fetch job status", err))
			log.WithError(err).WithField("failures", n).Warn("status poll failed")
		default:
			select {
			case h.results <- Result{TransactionID: h.Request.TransactionID, Snapshot: snap, At: time.Now()}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
