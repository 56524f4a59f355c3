// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/logging"
	"convtrack/cli/internal/session"
	"convtrack/cli/internal/terminal"
)

const frameInterval = 120 * time.Millisecond

// watch shows the tracked job of sess until it finishes or ctx is cancelled.
// Cancelling detaches from the job; it keeps running on the backend.
//
// On a terminal the job is drawn in a live area that is redrawn on every
// update and spinner tick. Otherwise new log lines are printed as they arrive.
func watch(ctx context.Context, sess *session.Session) conversion.JobViewState {
	render := conversion.NewRenderer(8)

	var area *pterm.AreaPrinter
	if terminal.IsInteractive() {
		cursor.Hide()
		defer cursor.Show()
		a, err := pterm.DefaultArea.Start()
		if err != nil {
			logrus.WithError(err).Debug("live area unavailable, printing lines")
		} else {
			area = a
			defer func() { _ = area.Stop() }()
		}
	}

	printed := 0
	lastFrame := ""
	draw := func() {
		st, ok := sess.State()
		if !ok {
			return
		}
		if area != nil {
			frame := render.Frame(st)
			if frame != lastFrame {
				lastFrame = frame
				area.Update(frame)
			}
			return
		}
		for _, ev := range st.Logs[printed:] {
			pterm.Println(conversion.FormatLog(ev))
		}
		printed = len(st.Logs)
	}

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	finished := sess.Finished()
	updates := sess.Updates()

	for {
		select {
		case <-ctx.Done():
			sess.Cancel()
			draw()
			st, _ := sess.State()
			return st
		case <-finished:
			draw()
			st, _ := sess.State()
			return st
		case _, ok := <-updates:
			if !ok {
				st, _ := sess.State()
				return st
			}
			draw()
		case <-ticker.C:
			if area != nil {
				render.Tick()
				draw()
			}
		}
	}
}

// report prints how a watched job ended and returns an error when it was
// lost before completing.
func report(st conversion.JobViewState) error {
	pterm.Println()
	t := st.Terminal()
	switch {
	case t == nil:
		pterm.Info.Println("job still running on the backend")
		return nil
	case st.Cancelled:
		pterm.Warning.Println(t.Summary)
		pterm.Println(pterm.Gray("   Resume with: convtrack status --tx " + st.TransactionID + " --watch"))
		return nil
	case t.Failed():
		pterm.Error.Println(t.Summary)
		reason := conversion.DisconnectedMessage
		if ev, ok := st.LastError(); ok && ev.Message != "" {
			reason = ev.Message
		}
		logging.PresentStreamError(reason)
		return t
	}
	pterm.Success.Println(t.Summary)
	return nil
}
