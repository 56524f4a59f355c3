// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"convtrack/cli/internal/backend"
	"convtrack/cli/internal/conversion"
	cterrors "convtrack/cli/internal/errors"
	"convtrack/cli/internal/httperrors"
	"convtrack/cli/internal/jobs"
)

var (
	statusTx     string
	statusSource string
	statusSchema string
	statusWatch  bool
)

// statusCmd shows the status the backend reports for a job.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a conversion job",
	Long: `The status command fetches the status of a conversion job from the backend and
prints per-object-type counts. Without --tx the transaction id stored for the
schema is used. With --watch the status is polled until the job completes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source := statusSource
		if source == "" {
			source = cfg.SourceType
		}
		st, err := conversion.ParseSourceType(source)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := checkStatusFlags(statusTx, statusSchema, statusWatch); err != nil {
			return err
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		a.attachSession()

		txID := statusTx
		if txID == "" {
			txID, err = storedTransaction(ctx, a, statusSchema)
			if err != nil {
				return err
			}
		}

		spec := conversion.JobSpec{SourceType: st, Schema: statusSchema, ObjectType: conversion.ObjectFullSchema}
		if statusWatch {
			return followByPolling(ctx, a, spec, txID)
		}

		snap, err := a.be.GetStatus(ctx, txID, string(st), statusSchema)
		if err != nil {
			if errors.Is(err, backend.ErrNotFound) {
				return fmt.Errorf("no status recorded for transaction %s", txID)
			}
			return httperrors.FormatNetworkError(err, httperrors.ExtractHostFromURL(cfg.Backend.URL), "fetching the job status")
		}
		printSnapshot(snap)
		return nil
	},
}

// checkStatusFlags rejects flag combinations that cannot identify a job.
// Polling needs the schema even when the transaction id is given.
func checkStatusFlags(tx, schema string, watch bool) error {
	switch {
	case strings.TrimSpace(schema) != "":
		return nil
	case watch:
		return cterrors.New(cterrors.SetupFailed, "--watch requires --schema")
	case strings.TrimSpace(tx) == "":
		return cterrors.New(cterrors.SetupFailed, "either --tx or --schema is required")
	}
	return nil
}

// storedTransaction returns the transaction id stored for schema.
func storedTransaction(ctx context.Context, a *app, schema string) (string, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return "", fmt.Errorf("open transaction store: %w", err)
	}
	defer store.Close()
	id, ok, err := jobs.NewInitiator(store).Current(ctx, schema)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no transaction id stored for schema %s; start a job with 'convtrack convert'", schema)
	}
	return id, nil
}

// followByPolling tracks a job that is already running without opening its
// progress stream, which would start it again.
func followByPolling(ctx context.Context, a *app, spec conversion.JobSpec, txID string) error {
	sess, err := a.newSession("", trackOptions{noStream: true})
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Start(ctx, spec, txID); err != nil {
		return err
	}
	printJobHeader(spec, txID)
	st := watch(ctx, sess)
	if st.LatestSnapshot != nil {
		printSnapshot(*st.LatestSnapshot)
	}
	return report(st)
}

func printSnapshot(s conversion.StatusSnapshot) {
	title := "Transaction " + s.TransactionID
	if s.Schema != "" {
		title += " · " + s.Schema
	}
	pterm.DefaultSection.Println(title)
	if err := pterm.DefaultTable.WithHasHeader().WithData(conversion.SnapshotTable(s)).Render(); err != nil {
		pterm.Error.Println(err)
	}
	pterm.Println(conversion.ProgressBar(s.Overall.Percentage, 30))
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusTx, "tx", "", "Transaction id (default: the one stored for --schema)")
	statusCmd.Flags().StringVar(&statusSource, "source", "", "Source database type (oracle or sqlserver)")
	statusCmd.Flags().StringVar(&statusSchema, "schema", "", "Schema of the job")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Poll until the job completes")
}
