package conversion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the structured form some streams send instead of plain lines.
type Payload struct {
	Progress *PayloadProgress `json:"progress,omitempty"`
	Logs     []PayloadLog     `json:"logs,omitempty"`
}

// PayloadProgress counts finished objects of the current job.
type PayloadProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// PayloadLog is one log entry of a payload. Backends send either a bare
// string or an object {"type": "success", "message": "..."}.
type PayloadLog struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts both log entry forms.
func (l *PayloadLog) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = PayloadLog{Message: s}
		return nil
	}
	type entry PayloadLog
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		return err
	}
	*l = PayloadLog(e)
	return nil
}

// severity maps the entry type to a Severity; ok is false for unknown types.
func (l PayloadLog) severity() (Severity, bool) {
	switch Severity(strings.ToLower(l.Type)) {
	case SeveritySuccess:
		return SeveritySuccess, true
	case SeverityError:
		return SeverityError, true
	case SeverityWarning:
		return SeverityWarning, true
	case SeverityInfo:
		return SeverityInfo, true
	}
	return "", false
}

// DecodePayload recognises a structured payload. Plain text, and JSON that
// carries neither progress nor logs, report false.
func DecodePayload(data string) (Payload, bool) {
	trimmed := strings.TrimSpace(data)
	if !strings.HasPrefix(trimmed, "{") {
		return Payload{}, false
	}
	var p Payload
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		return Payload{}, false
	}
	if p.Progress == nil && p.Logs == nil {
		return Payload{}, false
	}
	return p, true
}

// Events expands the payload of a job of type t into classified events, one
// per log entry. A typed entry keeps the severity the backend gave it. The
// progress counters ride on the last event; with no logs a synthetic
// "Progress: n/m" line carries them.
func (p Payload) Events(t ObjectType) []ProgressEvent {
	events := make([]ProgressEvent, 0, len(p.Logs)+1)
	for _, l := range p.Logs {
		ev := ClassifyFor(l.Message, t)
		if sev, ok := l.severity(); ok {
			ev.Severity = sev
		}
		events = append(events, ev)
	}
	if p.Progress == nil {
		return events
	}
	if len(events) == 0 {
		events = append(events, ClassifyFor(fmt.Sprintf("Progress: %d/%d", p.Progress.Completed, p.Progress.Total), t))
	}
	last := &events[len(events)-1]
	last.Done = p.Progress.Completed
	last.Total = p.Progress.Total
	if p.Progress.Total > 0 {
		last.Percent = floatPtr(clampPercent(float64(p.Progress.Completed) / float64(p.Progress.Total) * 100))
		if p.Progress.Completed >= p.Progress.Total {
			last.Phase = PhaseCompleted
			last.Percent = floatPtr(100)
			last.Terminal = true
		}
	}
	return events
}
