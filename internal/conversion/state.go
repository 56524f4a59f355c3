package conversion

import (
	"fmt"
	"strings"
)

// JobViewState is the merged, display-ready state of one tracked job. Values
// are never modified in place: Reconcile and Cancel return a new state and
// leave the prior one, including its Logs backing array, untouched.
type JobViewState struct {
	Spec           JobSpec
	TransactionID  string
	Logs           []ProgressEvent
	LatestSnapshot *StatusSnapshot
	Phase          Phase
	Active         bool
	Cancelled      bool

	// Stream-derived counters, used when no snapshot has arrived yet.
	StreamPercent float64
	Done          int
	Total         int
	TablesDone    int
	TablesTotal   int
	Rows          int64
	CurrentObject string
}

// NewJobView returns the initial state for a freshly started job.
func NewJobView(spec JobSpec, transactionID string) JobViewState {
	return JobViewState{
		Spec:          spec.Clone(),
		TransactionID: transactionID,
		Phase:         PhaseInitializing,
		Active:        true,
	}
}

// Reconcile folds at most one event and at most one snapshot into prior.
//
// Events are appended to Logs in arrival order and may advance the phase;
// terminal events deactivate the job. A snapshot replaces LatestSnapshot as a
// whole and deactivates the job once it reports 100%. Snapshots for another
// transaction, or whose overall percentage is below the one already held, are
// discarded. Once inactive a job stays inactive and its phase is frozen.
func Reconcile(prior JobViewState, ev *ProgressEvent, snap *StatusSnapshot) JobViewState {
	next := prior
	if ev != nil {
		next = applyEvent(next, *ev)
	}
	if snap != nil && acceptSnapshot(next, *snap) {
		s := *snap
		next.LatestSnapshot = &s
		if s.Complete() && next.Active {
			next.Phase = PhaseCompleted
			next.Active = false
		}
	}
	return next
}

func applyEvent(s JobViewState, ev ProgressEvent) JobViewState {
	n := len(s.Logs)
	s.Logs = append(s.Logs[:n:n], ev)

	if ev.Percent != nil {
		s.StreamPercent = *ev.Percent
	}
	if ev.Total > 0 {
		s.Done, s.Total = ev.Done, ev.Total
	}
	if ev.TablesTotal > 0 {
		s.TablesTotal = ev.TablesTotal
	}
	if ev.TableDone {
		s.TablesDone++
	}
	if ev.Phase == PhaseCompleted && ev.Rows > 0 {
		s.Rows = ev.Rows
	} else {
		s.Rows += ev.Rows
	}
	if ev.CurrentObject != "" {
		s.CurrentObject = ev.CurrentObject
	}

	if !s.Active {
		return s
	}
	if ev.Phase != "" {
		s.Phase = ev.Phase
	}
	if ev.Terminal {
		if !s.Phase.Terminal() {
			s.Phase = PhaseCompleted
		}
		s.Active = false
		if s.Phase == PhaseCompleted {
			s.CurrentObject = ""
		}
	}
	return s
}

func acceptSnapshot(s JobViewState, snap StatusSnapshot) bool {
	if snap.TransactionID != "" && s.TransactionID != "" && snap.TransactionID != s.TransactionID {
		return false
	}
	if s.LatestSnapshot != nil && snap.Overall.Percentage < s.LatestSnapshot.Overall.Percentage {
		return false
	}
	return true
}

// Cancel marks the job as no longer tracked by the caller. The phase is kept.
func Cancel(prior JobViewState) JobViewState {
	if !prior.Active {
		return prior
	}
	next := prior
	next.Active = false
	next.Cancelled = true
	return next
}

// DisplayPercentage prefers the snapshot, which is authoritative, over the
// stream-derived estimate.
func (s JobViewState) DisplayPercentage() float64 {
	if s.LatestSnapshot != nil {
		return s.LatestSnapshot.Overall.Percentage
	}
	return s.StreamPercent
}

// LastError returns the most recent error-severity log line, if any.
func (s JobViewState) LastError() (ProgressEvent, bool) {
	for i := len(s.Logs) - 1; i >= 0; i-- {
		if s.Logs[i].Severity == SeverityError {
			return s.Logs[i], true
		}
	}
	return ProgressEvent{}, false
}

// Terminal returns the outcome of an inactive job, or nil while it is active.
func (s JobViewState) Terminal() *TerminalState {
	if s.Active {
		return nil
	}
	t := &TerminalState{Phase: s.Phase}
	switch {
	case s.Cancelled:
		t.Summary = fmt.Sprintf("detached at %.0f%% during %s; the job keeps running on the backend", s.DisplayPercentage(), s.Phase)
	case s.Phase == PhaseCompleted:
		parts := []string{"conversion completed"}
		if s.Rows > 0 {
			parts = append(parts, fmt.Sprintf("%s rows", formatCount(s.Rows)))
		}
		if s.LatestSnapshot != nil {
			if n := s.LatestSnapshot.ErrorTotal(); n > 0 {
				parts = append(parts, fmt.Sprintf("%d objects failed", n))
			}
		}
		t.Summary = strings.Join(parts, ", ")
	case s.Phase == PhaseDisconnected:
		t.Summary = fmt.Sprintf("progress stream lost at %.0f%%", s.DisplayPercentage())
	default:
		t.Summary = string(s.Phase)
	}
	return t
}

// TerminalState is how a tracked job ended.
type TerminalState struct {
	Phase   Phase
	Summary string
}

// Error lets a failed outcome be returned as an error by commands.
func (t *TerminalState) Error() string {
	return fmt.Sprintf("%s: %s", t.Phase, t.Summary)
}

// Failed reports whether the job ended without completing.
func (t *TerminalState) Failed() bool { return t.Phase == PhaseDisconnected }

func formatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 || len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
