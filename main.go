// Package main is the entry point for the convtrack CLI application.
// It starts database conversion jobs and tracks their progress in the terminal.
package main

import (
	"convtrack/cli/cmd"
)

// main is the entry point for the convtrack CLI application.
func main() {
	cmd.Execute()
}
