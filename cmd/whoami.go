package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// whoamiCmd prints the account of the stored session.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		svc, err := a.authService()
		if err != nil {
			return err
		}
		account, ok, err := svc.WhoAmI(cmd.Context())
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("👤 Current user: %s\n", account)
			return nil
		}

		fmt.Println("🔒 You're not logged in yet!")
		fmt.Println("   Run 'convtrack login' to get started.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
