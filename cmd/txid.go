package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"convtrack/cli/internal/jobs"
)

var txidSchema string

// txidCmd groups the commands managing per-schema transaction ids.
var txidCmd = &cobra.Command{
	Use:   "txid",
	Short: "Show or reset the transaction id of a schema",
	Long: `Every schema keeps one transaction id across conversion runs so the backend
accumulates their results under one status record. Resetting mints a new id;
the next 'convtrack convert' of the schema starts a fresh record.`,
}

var txidShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the transaction id stored for a schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		a.attachSession()
		id, err := storedTransaction(ctx, a, txidSchema)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var txidResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Mint and store a new transaction id for a schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		a.attachSession()
		store, err := a.openStore(ctx)
		if err != nil {
			return fmt.Errorf("open transaction store: %w", err)
		}
		defer store.Close()

		id, err := jobs.NewInitiator(store).Reset(ctx, txidSchema)
		if err != nil {
			return err
		}
		pterm.Success.Printf("New transaction id for %s: %s\n", txidSchema, id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(txidCmd)
	txidCmd.AddCommand(txidShowCmd, txidResetCmd)
	txidCmd.PersistentFlags().StringVar(&txidSchema, "schema", "", "Schema name")
	_ = txidCmd.MarkPersistentFlagRequired("schema")
}
