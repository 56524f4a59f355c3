// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
)

// VerboseEnv enables debug logging for every command when set to "1".
const VerboseEnv = "CONVTRACK_VERBOSE"

// Setup configures the process-wide logrus logger. Diagnostics go to stderr
// so they never interleave with the live progress area on stdout.
func Setup(level string, verbose bool) error {
	logrus.SetOutput(os.Stderr)
	if verbose || os.Getenv(VerboseEnv) == "1" {
		logrus.SetLevel(logrus.DebugLevel)
		setDebugFormatter()
		return nil
	}
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	logrus.SetLevel(lvl)
	logrus.SetReportCaller(false)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return nil
}

func setDebugFormatter() {
	logrus.SetReportCaller(true)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableLevelTruncation: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		},
	})
}

// Discard returns a logger that drops everything, for tests and quiet paths.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
