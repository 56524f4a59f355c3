package conversion

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pterm/pterm"
)

// spinnerFrames are braille frames similar to docker CLI.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Renderer turns a JobViewState into the text of the live terminal area.
// It keeps the animation frame and pads lines to the widest line seen so far
// to prevent flickering when content shrinks.
type Renderer struct {
	// LogTail is how many recent log lines are shown.
	LogTail int

	mu         sync.Mutex
	frameIdx   int
	maxLineLen int
}

// NewRenderer creates a renderer showing the last logTail log lines.
func NewRenderer(logTail int) *Renderer {
	if logTail <= 0 {
		logTail = 8
	}
	return &Renderer{LogTail: logTail}
}

// Tick advances the spinner animation.
func (r *Renderer) Tick() {
	r.mu.Lock()
	r.frameIdx++
	r.mu.Unlock()
}

// Frame renders the full live area for s.
func (r *Renderer) Frame(s JobViewState) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := []string{r.header(s), ProgressBar(s.DisplayPercentage(), 30)}
	if s.LatestSnapshot != nil {
		for _, name := range s.LatestSnapshot.Types() {
			lines = append(lines, CountLine(s.LatestSnapshot.DoneCounts[name]))
		}
	} else if s.TablesTotal > 0 {
		lines = append(lines, fmt.Sprintf("  tables      %d/%d", s.TablesDone, s.TablesTotal))
	}
	if s.Rows > 0 {
		lines = append(lines, fmt.Sprintf("  rows        %s", formatCount(s.Rows)))
	}
	lines = append(lines, "")
	start := len(s.Logs) - r.LogTail
	if start < 0 {
		start = 0
	}
	for _, ev := range s.Logs[start:] {
		lines = append(lines, FormatLog(ev))
	}

	for i := range lines {
		if l := utf8.RuneCountInString(pterm.RemoveColorFromString(lines[i])); l > r.maxLineLen {
			r.maxLineLen = l
		}
	}
	for i := range lines {
		if pad := r.maxLineLen - utf8.RuneCountInString(pterm.RemoveColorFromString(lines[i])); pad > 0 {
			lines[i] += strings.Repeat(" ", pad)
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) header(s JobViewState) string {
	mark := spinnerFrames[r.frameIdx%len(spinnerFrames)]
	if !s.Active {
		switch {
		case s.Phase == PhaseCompleted:
			mark = pterm.Green("✓")
		case s.Phase == PhaseDisconnected:
			mark = pterm.Red("✗")
		default:
			mark = pterm.Yellow("■")
		}
	}
	title := pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(s.Spec.Schema)
	line := fmt.Sprintf("%s %s %s  %s", mark, title, pterm.Gray(string(s.Spec.ObjectType)), PhaseLabel(s.Phase))
	if s.CurrentObject != "" && s.Active {
		line += pterm.Gray(" · " + s.CurrentObject)
	}
	return line
}

// PhaseLabel is the human label of a phase.
func PhaseLabel(p Phase) string {
	switch p {
	case PhaseInitializing:
		return "Initializing"
	case PhaseTables:
		return "Converting tables"
	case PhaseViews:
		return "Converting views"
	case PhaseSequences:
		return "Converting sequences"
	case PhaseTriggers:
		return "Converting triggers"
	case PhaseIndexes:
		return "Converting indexes"
	case PhaseCompleted:
		return pterm.Green("Completed")
	case PhaseDisconnected:
		return pterm.Red("Disconnected")
	}
	return string(p)
}

// ProgressBar draws a fixed-width bar followed by the percentage.
func ProgressBar(pct float64, width int) string {
	pct = clampPercent(pct)
	filled := int(pct / 100 * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("  %s %5.1f%%", pterm.Cyan(bar), pct)
}

// CountLine renders one per-object-type tally.
func CountLine(c ObjectTypeCount) string {
	line := fmt.Sprintf("  %-11s %d/%d", c.Type, c.SuccessCount, c.Total)
	if c.ErrorCount > 0 {
		line += pterm.Red(fmt.Sprintf("  %d failed", c.ErrorCount))
	}
	if c.Done {
		line += pterm.Green("  ✓")
	}
	return line
}

// FormatLog colours a log line by severity.
func FormatLog(ev ProgressEvent) string {
	switch ev.Severity {
	case SeverityError:
		return pterm.Red(ev.Message)
	case SeveritySuccess:
		return pterm.Green(ev.Message)
	case SeverityWarning:
		return pterm.Yellow(ev.Message)
	case SeverityInfo:
		return pterm.LightBlue(ev.Message)
	}
	return ev.Message
}

// SnapshotTable builds pterm table data for a snapshot, header row first.
func SnapshotTable(s StatusSnapshot) [][]string {
	data := [][]string{{"Type", "Converted", "Failed", "Total", "Progress"}}
	for _, name := range s.Types() {
		c := s.DoneCounts[name]
		data = append(data, []string{
			name,
			fmt.Sprint(c.SuccessCount),
			fmt.Sprint(c.ErrorCount),
			fmt.Sprint(c.Total),
			fmt.Sprintf("%.1f%%", c.Percentage),
		})
	}
	data = append(data, []string{
		"overall", fmt.Sprint(s.Overall.Done), "", fmt.Sprint(s.Overall.Total), fmt.Sprintf("%.1f%%", s.Overall.Percentage),
	})
	return data
}
