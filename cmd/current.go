// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"convtrack/cli/internal/backend"
	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/httperrors"
)

var currentWatch bool

// currentCmd shows the job the backend is running right now.
var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the conversion job currently running on the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		a.attachSession()

		cm, err := a.be.CurrentMigration(ctx)
		if errors.Is(err, backend.ErrNotFound) {
			pterm.Info.Println("No conversion is running")
			return nil
		}
		if err != nil {
			return httperrors.FormatNetworkError(err, httperrors.ExtractHostFromURL(cfg.Backend.URL), "looking up the running job")
		}

		pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Transaction: ") + pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(cm.TransactionID))
		pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Schema:      ") + cm.Schema)
		pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Source:      ") + cm.SourceType)
		if cm.Status != "" {
			pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Status:      ") + cm.Status)
		}
		if !currentWatch {
			return nil
		}

		st, err := conversion.ParseSourceType(cm.SourceType)
		if err != nil {
			return err
		}
		spec := conversion.JobSpec{SourceType: st, Schema: cm.Schema, ObjectType: conversion.ObjectFullSchema}
		return followByPolling(ctx, a, spec, cm.TransactionID)
	},
}

func init() {
	rootCmd.AddCommand(currentCmd)
	currentCmd.Flags().BoolVarP(&currentWatch, "watch", "w", false, "Follow the running job until it completes")
}
