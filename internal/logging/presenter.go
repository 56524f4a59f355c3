// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Mask(err.Error())
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// StreamFailure is the category of a progress stream failure.
type StreamFailure int

const (
	StreamFailureUnknown StreamFailure = iota
	StreamFailureNetwork
	StreamFailureAuth
	StreamFailureTimeout
	StreamFailureUnavailable
	StreamFailureClosed
)

// ClassifyStreamFailure categorizes a stream error reason.
func ClassifyStreamFailure(reason string) StreamFailure {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "eof") || strings.Contains(lower, "closed before completion"):
		return StreamFailureClosed
	case strings.Contains(lower, "connection reset") || strings.Contains(lower, "rst_stream") ||
		strings.Contains(lower, "connection refused") || strings.Contains(lower, "broken pipe"):
		return StreamFailureNetwork
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "unauthorized"):
		return StreamFailureAuth
	case strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout"):
		return StreamFailureTimeout
	case strings.Contains(lower, "unavailable") || strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") || strings.Contains(lower, "504"):
		return StreamFailureUnavailable
	}
	return StreamFailureUnknown
}

// FormatStreamError explains a lost progress stream. The job itself may still
// be running on the backend, so the advice points at status polling.
func FormatStreamError(reason string) string {
	var b strings.Builder
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Progress stream lost"))
	b.WriteString("\n\n")

	switch ClassifyStreamFailure(reason) {
	case StreamFailureClosed:
		b.WriteString("The backend closed the progress stream before the conversion reported completion.\n")
	case StreamFailureNetwork:
		b.WriteString("The connection to the conversion backend was interrupted.\n")
	case StreamFailureAuth:
		b.WriteString("The backend rejected the session.\n")
	case StreamFailureTimeout:
		b.WriteString("The conversion backend stopped responding.\n")
	case StreamFailureUnavailable:
		b.WriteString("The conversion backend is currently unavailable.\n")
	default:
		b.WriteString("The progress stream ended unexpectedly.\n")
	}
	b.WriteString("\n")

	if ClassifyStreamFailure(reason) == StreamFailureAuth {
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Run 'convtrack login' and try again"))
	} else {
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ The job may still be running; check it with 'convtrack status'"))
	}
	b.WriteString("\n")

	if strings.TrimSpace(reason) != "" {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(reason)))
	}
	return b.String()
}

// PresentStreamError displays a formatted stream error.
func PresentStreamError(reason string) {
	pterm.Println()
	pterm.Println(FormatStreamError(reason))
	pterm.Println()
}
