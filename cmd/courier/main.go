// Command courier is a demo CLI over the SDK facade: sign in and out,
// submit device tokens, and send tracking events against a Courier
// backend.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	courier "github.com/trycourier/courier-push-go"

	"github.com/spf13/cobra"
)

var (
	sessionDir string
	baseURL    string
	verbose    bool
)

func defaultSessionDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".courier")
}

var rootCmd = &cobra.Command{
	Use:     "courier",
	Short:   "Courier push SDK demo client",
	Version: courier.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionDir, "session-dir", defaultSessionDir(), "Directory for saving/resuming the session")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", courier.DefaultBaseURL, "Courier API base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Allow env override
	if envDir := os.Getenv("COURIER_SESSION_DIR"); envDir != "" {
		sessionDir = envDir
	}
}

func newClient() *courier.Client {
	return courier.NewClient(
		courier.WithSessionDir(sessionDir),
		courier.WithBaseURL(baseURL),
	)
}

// signedInClient builds a client and exits with a helpful message if no
// session is saved.
func signedInClient() *courier.Client {
	c := newClient()
	if !c.IsSignedIn() {
		fmt.Fprintln(os.Stderr, "Error: not signed in.")
		fmt.Fprintln(os.Stderr, "Run 'courier login' first to authenticate.")
		os.Exit(1)
	}
	return c
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
