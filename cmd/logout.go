// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutAll bool

// logoutCmd represents the logout command for clearing authentication state.
// It closes the backend session (best-effort) and removes local credentials.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Close the session and remove saved credentials",
	Long: `The logout command closes the session on the backend when it can be reached
and removes the session cookie and account state from the OS keychain.

With --all the stored PostgreSQL connection of the transaction store is
removed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		svc, err := a.authService()
		if err != nil {
			return err
		}
		if err := svc.Logout(cmd.Context()); err != nil {
			return err
		}
		if logoutAll {
			if err := a.km.ClearAll(); err != nil {
				return err
			}
			fmt.Println("✅ All credentials have been removed")
			return nil
		}
		fmt.Println("✅ Logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Also remove the stored database connection")
}
