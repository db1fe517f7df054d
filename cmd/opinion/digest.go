package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatopinion/internal/digest"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Reply-needed digest commands",
	}

	cmd.AddCommand(newDigestSendCmd())
	return cmd
}

func newDigestSendCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Build the reply-needed digest now",
		Long:  "Builds the digest of bookings waiting for a doctor reply and posts it to the alert channel. --dry-run prints it instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			report, err := digest.Build(a.db.WithContext(ctx), time.Now())
			if err != nil {
				return err
			}
			if report == nil {
				fmt.Fprintln(out, "No bookings awaiting a reply.")
				return nil
			}
			msg := digest.Format(report)
			if dryRun {
				fmt.Fprintln(out, msg.Title)
				fmt.Fprintln(out, msg.Body)
				return nil
			}
			if err := a.alerts.Send(ctx, msg); err != nil {
				return fmt.Errorf("send digest: %w", err)
			}
			fmt.Fprintf(out, "Digest sent: %s\n", msg.Title)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest instead of sending it")
	return cmd
}
