package main

import (
	"encoding/hex"
	"fmt"
	"time"

	courier "github.com/trycourier/courier-push-go"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <value>",
	Short: "Submit a device token for the signed-in user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apns, _ := cmd.Flags().GetBool("apns")

		c := signedInClient()

		// Token sync is asynchronous; wait for the task set to drain
		// so the CLI reports a settled outcome.
		done := make(chan struct{}, 1)
		c.OnTasksComplete(func() {
			done <- struct{}{}
		})

		if apns {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("parsing APNs token hex: %w", err)
			}
			c.SetAPNSToken(cmd.Context(), raw)
		} else {
			c.SetFCMToken(cmd.Context(), args[0])
		}

		select {
		case <-done:
		case <-time.After(60 * time.Second):
			return fmt.Errorf("timed out waiting for token sync")
		}

		fmt.Println("Token submitted.")
		return nil
	},
}

var trackCmd = &cobra.Command{
	Use:   "track <tracking-url>",
	Short: "Send a notification tracking event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		event, _ := cmd.Flags().GetString("event")

		c := newClient()
		if err := c.TrackNotification(cmd.Context(), args[0], courier.EventKind(event)); err != nil {
			return fmt.Errorf("tracking notification: %w", err)
		}
		fmt.Printf("Tracked %s.\n", event)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Bool("apns", false, "Treat the value as a hex-encoded APNs token instead of FCM")

	trackCmd.Flags().String("event", string(courier.EventDelivered), "Event kind: DELIVERED, CLICKED, OPENED or READ")

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(trackCmd)
}
