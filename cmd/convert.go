// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/jobs"
	"convtrack/cli/internal/logging"
)

var (
	convertSource    string
	convertSchema    string
	convertType      string
	convertTargets   []string
	convertResetTx   bool
	convertTransport string
	convertNoPoll    bool
	convertInterval  time.Duration
)

// convertCmd starts a conversion job and follows it until it completes.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Start a conversion job and track its progress",
	Long: `The convert command resolves the transaction id of the schema (minting one on
first use), starts the conversion on the backend and shows its progress live.

Progress lines come from the backend's stream while the job status is polled in
the background. Press Ctrl-C to detach; the job keeps running on the backend and
can be followed again with 'convtrack status --watch'.`,
	Example: `  convtrack convert --schema HR --type tables
  convtrack convert --schema HR --type tables --target EMPLOYEES --target JOBS
  convtrack convert --source sqlserver --schema dbo --type fullSchema --transport websocket`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := specFromFlags(convertSource, convertSchema, convertType, convertTargets)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		cookie := a.attachSession()

		store, err := a.openStore(ctx)
		if err != nil {
			return fmt.Errorf("open transaction store: %w", err)
		}
		defer store.Close()

		initiator := jobs.NewInitiator(store, jobs.WithStarter(a.be), jobs.WithLogger(logrus.StandardLogger()))
		if convertResetTx {
			if _, err := initiator.Reset(ctx, spec.Schema); err != nil {
				return err
			}
		}
		txID, err := initiator.StartJob(ctx, spec)
		if err != nil {
			return err
		}

		printJobHeader(spec, txID)

		if convertInterval > 0 {
			cfg.PollIntervalMs = int(convertInterval / time.Millisecond)
		}
		sess, err := a.newSession(cookie, trackOptions{transport: convertTransport, noPoll: convertNoPoll})
		if err != nil {
			return err
		}
		defer sess.Close()
		if err := sess.Start(ctx, spec, txID); err != nil {
			return err
		}

		return report(watch(ctx, sess))
	},
}

// specFromFlags builds and validates a JobSpec. An empty source falls back
// to the configured default.
func specFromFlags(source, schema, objectType string, targets []string) (conversion.JobSpec, error) {
	if source == "" {
		source = cfg.SourceType
	}
	st, err := conversion.ParseSourceType(source)
	if err != nil {
		return conversion.JobSpec{}, err
	}
	ot, err := conversion.ParseObjectType(objectType)
	if err != nil {
		return conversion.JobSpec{}, err
	}
	spec := conversion.JobSpec{SourceType: st, Schema: schema, ObjectType: ot, Targets: targets}
	return spec, spec.Validate()
}

func printJobHeader(spec conversion.JobSpec, txID string) {
	pterm.Println()
	pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Job:         ") + pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(spec.String()))
	pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Transaction: ") + pterm.NewStyle(pterm.FgLightBlue).Sprint(txID))
	pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Backend:     ") + pterm.NewStyle(pterm.FgLightBlue).Sprint(logging.Mask(cfg.Backend.URL)))
	pterm.Println()
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertSource, "source", "", "Source database type (oracle or sqlserver)")
	convertCmd.Flags().StringVar(&convertSchema, "schema", "", "Schema to convert")
	convertCmd.Flags().StringVar(&convertType, "type", "fullSchema", "Object type (tables, views, sequences, triggers, indexes, fullSchema, embeddedSql)")
	convertCmd.Flags().StringArrayVar(&convertTargets, "target", nil, "Object to convert; repeat for several (default: all)")
	convertCmd.Flags().BoolVar(&convertResetTx, "reset-txid", false, "Mint a new transaction id for the schema before starting")
	convertCmd.Flags().StringVar(&convertTransport, "transport", "", "Progress stream transport (sse, websocket or grpc)")
	convertCmd.Flags().BoolVar(&convertNoPoll, "no-poll", false, "Do not poll the job status; rely on the stream only")
	convertCmd.Flags().DurationVar(&convertInterval, "interval", 0, "Status poll interval (default from config, 3s)")
	_ = convertCmd.MarkFlagRequired("schema")
}
