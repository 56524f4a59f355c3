// Package conversion defines the domain model of a conversion job as seen by the
// client: what was requested (JobSpec), what the backend streams about it
// (ProgressEvent), what the backend reports when polled (StatusSnapshot) and the
// merged view of both (JobViewState).
//
// Everything in this package is pure. Classify turns one raw stream line into a
// typed event and Reconcile folds events and snapshots into a new view state
// without mutating the previous one. Transports, timers and goroutines live in
// the stream, poller and session packages.
package conversion

import (
	"fmt"
	"strings"

	cterrors "convtrack/cli/internal/errors"
)

// SourceType is the database product a job converts from.
type SourceType string

const (
	SourceOracle    SourceType = "oracle"
	SourceSQLServer SourceType = "sqlserver"
)

// ParseSourceType accepts the canonical names and the aliases used by the backend UI.
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oracle", "ora":
		return SourceOracle, nil
	case "sqlserver", "sql", "mssql", "sql-server":
		return SourceSQLServer, nil
	}
	return "", cterrors.New(cterrors.SetupFailed, fmt.Sprintf("unknown source type %q (use oracle or sqlserver)", s))
}

// ObjectType selects which kind of database object a job converts.
type ObjectType string

const (
	ObjectTable       ObjectType = "table"
	ObjectView        ObjectType = "view"
	ObjectSequence    ObjectType = "sequence"
	ObjectTrigger     ObjectType = "trigger"
	ObjectIndex       ObjectType = "index"
	ObjectFullSchema  ObjectType = "fullSchema"
	ObjectEmbeddedSQL ObjectType = "embeddedSql"
)

// ObjectTypes lists every supported object type in display order.
var ObjectTypes = []ObjectType{
	ObjectFullSchema, ObjectTable, ObjectView, ObjectSequence, ObjectTrigger, ObjectIndex, ObjectEmbeddedSQL,
}

// ParseObjectType is case-insensitive and tolerates plural and dashed spellings.
func ParseObjectType(s string) (ObjectType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	switch key {
	case "", "fullschema", "schema", "all":
		return ObjectFullSchema, nil
	case "table", "tables":
		return ObjectTable, nil
	case "view", "views":
		return ObjectView, nil
	case "sequence", "sequences":
		return ObjectSequence, nil
	case "trigger", "triggers":
		return ObjectTrigger, nil
	case "index", "indexes", "indices":
		return ObjectIndex, nil
	case "embeddedsql", "sql":
		return ObjectEmbeddedSQL, nil
	}
	return "", cterrors.New(cterrors.SetupFailed, fmt.Sprintf("unknown object type %q", s))
}

// JobSpec describes what a conversion job converts. Empty Targets means every
// object of ObjectType in Schema.
type JobSpec struct {
	SourceType SourceType `json:"source_type"`
	Schema     string     `json:"schema"`
	ObjectType ObjectType `json:"object_type"`
	Targets    []string   `json:"targets,omitempty"`
}

// Validate reports a setup_error for specs that cannot start a job.
func (s JobSpec) Validate() error {
	switch s.SourceType {
	case SourceOracle, SourceSQLServer:
	case "":
		return cterrors.New(cterrors.SetupFailed, "source type is required")
	default:
		return cterrors.New(cterrors.SetupFailed, fmt.Sprintf("unsupported source type %q", s.SourceType))
	}
	if strings.TrimSpace(s.Schema) == "" {
		return cterrors.New(cterrors.SetupFailed, "schema is required")
	}
	if s.ObjectType == "" {
		return cterrors.New(cterrors.SetupFailed, "object type is required")
	}
	for _, t := range s.Targets {
		if strings.TrimSpace(t) == "" {
			return cterrors.New(cterrors.SetupFailed, "target names must not be empty")
		}
	}
	return nil
}

// Clone returns a copy that shares no memory with s.
func (s JobSpec) Clone() JobSpec {
	out := s
	if s.Targets != nil {
		out.Targets = append([]string(nil), s.Targets...)
	}
	return out
}

// String renders s for headers and log lines.
func (s JobSpec) String() string {
	scope := "all"
	if len(s.Targets) > 0 {
		scope = strings.Join(s.Targets, ",")
	}
	return fmt.Sprintf("%s %s.%s [%s]", s.SourceType, s.Schema, s.ObjectType, scope)
}
