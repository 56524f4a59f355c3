// Package terminal provides small helpers for the interactive terminal.
package terminal

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

// IsInteractive reports whether stdout is a terminal. The live progress area
// is only drawn when it is; otherwise log lines are printed as they arrive.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsInputInteractive reports whether stdin is a terminal.
func IsInputInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Width returns the width of stdout, or 80 when unknown.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return defaultWidth
}

// LinesFor returns how many terminal rows textLength characters occupy at
// the given width. It is at least 1.
func LinesFor(textLength, width int) int {
	if width <= 0 {
		width = defaultWidth
	}
	n := (textLength + width - 1) / width
	if n < 1 {
		n = 1
	}
	return n
}

// ReadPassword reads a line from the terminal without echo.
func ReadPassword() (string, error) {
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ClearPreviousLines clears text from the terminal that was previously printed.
// It is used to remove a prompt together with what the user typed after it.
//
// After Enter the cursor sits on a new line below the input, so one more
// line than the text occupied is cleared.
func ClearPreviousLines(textLength int) {
	linesToClear := LinesFor(textLength, Width()) + 1
	for i := 0; i < linesToClear; i++ {
		fmt.Print("\r\x1b[2K")
		if i < linesToClear-1 {
			fmt.Print("\x1b[1A")
		}
	}
}
