package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and save the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")
		accessToken, _ := cmd.Flags().GetString("access-token")
		clientKey, _ := cmd.Flags().GetString("client-key")

		c := newClient()
		if err := c.SignIn(cmd.Context(), userID, accessToken, clientKey); err != nil {
			return fmt.Errorf("signing in: %w", err)
		}

		fmt.Printf("Signed in as %s\n", c.UserID())
		fmt.Printf("Session saved to %s\n", sessionDir)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if err := c.SignOut(); err != nil {
			return fmt.Errorf("signing out: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Run: func(cmd *cobra.Command, args []string) {
		c := newClient()
		sess, ok := c.Session()
		if !ok {
			fmt.Println("Signed out.")
			return
		}
		fmt.Printf("Signed in as %s\n", sess.UserID)
		if sess.ClientKey != "" {
			fmt.Println("Inbox client key present.")
		}
	},
}

func init() {
	loginCmd.Flags().String("user-id", "", "Courier user id")
	loginCmd.Flags().String("access-token", "", "Courier access token")
	loginCmd.Flags().String("client-key", "", "Optional inbox client key")
	_ = loginCmd.MarkFlagRequired("user-id")
	_ = loginCmd.MarkFlagRequired("access-token")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
}
