package conversion

import "time"

// Severity is the display class of one stream line.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityDefault Severity = "default"
)

// Phase is the coarse stage of a job. The zero value means a line carried no
// phase information.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseTables       Phase = "tables"
	PhaseViews        Phase = "views"
	PhaseSequences    Phase = "sequences"
	PhaseTriggers     Phase = "triggers"
	PhaseIndexes      Phase = "indexes"
	PhaseCompleted    Phase = "completed"
	PhaseDisconnected Phase = "disconnected"
)

// Terminal reports whether no further progress is expected in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseDisconnected
}

// DisconnectedMessage is the log line recorded when the stream drops before completion.
const DisconnectedMessage = "❌ Conversion stream disconnected unexpectedly."

// ProgressEvent is one classified stream line.
type ProgressEvent struct {
	Message  string
	Severity Severity
	// Phase is set only when the line moves the job to another phase.
	Phase Phase

	// Percent, Done and Total come from "NN% ... (done/total)" progress lines.
	Percent *float64
	Done    int
	Total   int

	TablesTotal   int
	TableDone     bool
	Rows          int64
	CurrentObject string

	// Terminal marks the last meaningful event of a stream.
	Terminal bool
	At       time.Time
}

// Disconnected builds the synthetic event emitted when the transport fails.
func Disconnected(at time.Time) ProgressEvent {
	return ProgressEvent{
		Message:  DisconnectedMessage,
		Severity: SeverityError,
		Phase:    PhaseDisconnected,
		Terminal: true,
		At:       at,
	}
}

func floatPtr(f float64) *float64 { return &f }
