// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface of convtrack.
// It starts database conversion jobs on the backend and tracks their progress
// using the Cobra CLI framework, with a live terminal view built on pterm.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"convtrack/cli/internal/httperrors"
	"convtrack/cli/internal/logging"
)

var (
	showVersion bool
	configFile  string
	logLevel    string
	verbose     bool
	backendURL  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "convtrack",
	Short: "Start database conversion jobs and track their progress",
	Long: `convtrack starts Oracle and SQL Server to PostgreSQL conversion jobs on the
conversion backend and follows them live: progress lines are streamed while the
job status is polled in the background, and both are merged into one view.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		if err := logging.Setup(c.LogLevel, verbose); err != nil {
			return err
		}
		cfg = c
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !showVersion {
			return cmd.Help()
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		backendState := "reachable"
		if err := a.be.Ping(ctx); err != nil {
			backendState = "unreachable"
			if verbose {
				fmt.Fprintln(os.Stderr, logging.PresentError("ping", err))
			}
		}
		fmt.Printf("convtrack %s\nbackend %s (%s)\n", Version, httperrors.ExtractHostFromURL(cfg.Backend.URL), backendState)
		return nil
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.PresentError("", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version and backend reachability")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file overlaid on the saved configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Conversion backend URL")
}
