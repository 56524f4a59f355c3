// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"convtrack/cli/internal/backend"
	"convtrack/cli/internal/httperrors"
	"convtrack/cli/internal/terminal"
)

var loginEmail string

// loginCmd opens a session on the conversion backend.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Log in to the conversion backend",
	Long: `The login command signs in to the conversion backend with email and password.
The session cookie is stored in the OS keychain and sent with every request and
progress stream. If the stored session is still valid the prompt is skipped.

The password may be given in CONVTRACK_PASSWORD for non-interactive use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		svc, err := a.authService()
		if err != nil {
			fmt.Println("❌ Secure storage is not available on this system.")
			return err
		}
		if account, ok, _ := svc.WhoAmI(ctx); ok {
			fmt.Printf("Already logged in as %s\n", account)
			return nil
		}

		reader := bufio.NewReader(os.Stdin)
		email := strings.TrimSpace(loginEmail)
		if email == "" {
			fmt.Print("Email: ")
			line, _ := reader.ReadString('\n')
			email = strings.TrimSpace(line)
		}
		if email == "" {
			return errors.New("email is required")
		}

		password := os.Getenv("CONVTRACK_PASSWORD")
		if password == "" {
			fmt.Print("Password: ")
			if terminal.IsInputInteractive() {
				password, err = terminal.ReadPassword()
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			} else {
				line, _ := reader.ReadString('\n')
				password = strings.TrimRight(line, "\r\n")
			}
		}

		name, err := svc.Login(ctx, email, password)
		if errors.Is(err, backend.ErrUnauthorized) {
			fmt.Println("❌ Wrong email or password.")
			return err
		}
		if err != nil {
			return httperrors.FormatNetworkError(err, httperrors.ExtractHostFromURL(cfg.Backend.URL), "logging in")
		}
		fmt.Println(loginGreeting(name))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted when empty)")
}

// loginGreeting returns a random greeting phrase with the account name.
func loginGreeting(name string) string {
	greetings := []string{
		"🎉 Welcome back, %s!",
		"✨ Great to see you, %s!",
		"🚀 You're all set, %s!",
		"👋 Hello %s! Ready to convert?",
		"✅ Logged in as %s",
	}
	return fmt.Sprintf(greetings[rand.Intn(len(greetings))], name)
}
