package conversion

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	errorMarkers   = []string{"❌"}
	successMarkers = []string{"✅", "🎉", "🏁"}
	warningMarkers = []string{"⚠"}
	infoMarkers    = []string{"🔄", "🚀", "📊", "🔔"}

	reTimeout     = regexp.MustCompile(`(?i)⏰\s*timeout`)
	reStall       = regexp.MustCompile(`(?i)stall\s+detected`)
	reErrorPrefix = regexp.MustCompile(`(?i)^\s*error\s*:`)
	reStalled     = regexp.MustCompile(`(?i)migration\s+stalled.*rows`)

	reProgress  = regexp.MustCompile(`(\d+(?:\.\d+)?)%.*\((\d+)\s*/\s*(\d+)\)`)
	reTables    = regexp.MustCompile(`(?i)\b(\d[\d,]*)\s+tables\b`)
	reRowsDone  = regexp.MustCompile(`^\s*✅.*?:\s*(\d[\d,]*)\s+rows\b`)
	reRowsAny   = regexp.MustCompile(`(?i)(\d[\d,]*)\s+rows\b`)
	reMigrating = regexp.MustCompile(`(?i)\bmigrating\s+(\S+).*\battempt\b`)
	reCompleted = regexp.MustCompile(`(?i)^\W*(full\s+schema\s+(conversion|migration)\s+completed|conversion\s+(completed|done))\b`)

	reFullSchemaDone = regexp.MustCompile(`(?i)\bfull\s+schema\s+(conversion|migration)\s+completed\b`)
	reObjectDone     = regexp.MustCompile(`(?i)\b(conversion\s+(completed|done)|migration\s+(completed|finished))\b`)
	reNothingFound   = regexp.MustCompile(`(?i)\bno\s+\w+(\s+\w+)?\s+found\b`)
)

// completes reports whether line ends a job of type t. A full-schema job runs
// every object type in turn, so only its own closing line counts; the
// per-type "migration completed" lines are sub-phases there. An empty t
// accepts the generic closing lines.
func completes(line string, t ObjectType) bool {
	switch t {
	case "":
		return reCompleted.MatchString(line)
	case ObjectFullSchema:
		return reFullSchemaDone.MatchString(line)
	}
	return reObjectDone.MatchString(line) || reNothingFound.MatchString(line)
}

// phaseMarkers are checked in order; phrases win over emoji.
var phaseMarkers = []struct {
	re    *regexp.Regexp
	phase Phase
}{
	{regexp.MustCompile(`(?i)\bstarting\s+table|\b(convert|migrat)ing\b.*\btables?\b`), PhaseTables},
	{regexp.MustCompile(`(?i)\b(convert|migrat)ing\b.*\bviews?\b`), PhaseViews},
	{regexp.MustCompile(`(?i)\b(convert|migrat)ing\b.*\bsequences?\b`), PhaseSequences},
	{regexp.MustCompile(`(?i)\b(convert|migrat)ing\b.*\btriggers?\b`), PhaseTriggers},
	{regexp.MustCompile(`(?i)\b(convert|migrat)ing\b.*\bind(ex|exes|ices)\b`), PhaseIndexes},
}

var emojiPhases = []struct {
	marker string
	phase  Phase
}{
	{"📦", PhaseTables},
	{"🪟", PhaseViews},
	{"🔢", PhaseSequences},
	{"🎯", PhaseTriggers},
	{"📐", PhaseIndexes},
}

// Classify maps one raw stream line to a ProgressEvent without knowing the job
// it belongs to. See ClassifyFor.
func Classify(line string) ProgressEvent {
	return ClassifyFor(line, "")
}

// ClassifyFor maps one raw stream line of a job of type t to a ProgressEvent.
// It never fails: a line that matches nothing becomes a default-severity event
// carrying the text.
//
// Severity is decided by the first matching class in the order error, success,
// warning, phase marker (info), default. Numeric fields are extracted
// independently of the severity.
func ClassifyFor(line string, t ObjectType) ProgressEvent {
	ev := ProgressEvent{Message: line, Severity: SeverityDefault}

	switch {
	case containsAny(line, errorMarkers) || reTimeout.MatchString(line) || reStall.MatchString(line) || reErrorPrefix.MatchString(line):
		ev.Severity = SeverityError
	case containsAny(line, successMarkers):
		ev.Severity = SeveritySuccess
	case containsAny(line, warningMarkers) || reStalled.MatchString(line):
		ev.Severity = SeverityWarning
	default:
		if p, ok := phaseOf(line); ok {
			ev.Severity = SeverityInfo
			ev.Phase = p
		} else if containsAny(line, infoMarkers) {
			ev.Severity = SeverityInfo
		}
	}

	extractNumbers(line, &ev)

	if completes(line, t) {
		ev.Phase = PhaseCompleted
		ev.Percent = floatPtr(100)
		ev.Terminal = true
		if ev.Rows == 0 {
			if m := reRowsAny.FindStringSubmatch(line); m != nil {
				ev.Rows = parseCount(m[1])
			}
		}
		ev.TableDone = false
	}
	return ev
}

func phaseOf(line string) (Phase, bool) {
	for _, pm := range phaseMarkers {
		if pm.re.MatchString(line) {
			return pm.phase, true
		}
	}
	for _, em := range emojiPhases {
		if strings.Contains(line, em.marker) {
			return em.phase, true
		}
	}
	return "", false
}

func extractNumbers(line string, ev *ProgressEvent) {
	if m := reProgress.FindStringSubmatch(line); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			ev.Percent = floatPtr(clampPercent(pct))
		}
		ev.Done = int(parseCount(m[2]))
		ev.Total = int(parseCount(m[3]))
	}
	if m := reTables.FindStringSubmatch(line); m != nil {
		ev.TablesTotal = int(parseCount(m[1]))
	}
	if m := reRowsDone.FindStringSubmatch(line); m != nil {
		ev.Rows = parseCount(m[1])
		ev.TableDone = true
	}
	if m := reMigrating.FindStringSubmatch(line); m != nil {
		ev.CurrentObject = strings.Trim(m[1], `"'.:,`)
	}
}

// parseCount parses integers written with thousands separators ("1,234").
func parseCount(s string) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
