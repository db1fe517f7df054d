package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatopinion/internal/complaint"
)

func newComplaintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complaint",
		Short: "Complaint commands",
	}

	cmd.AddCommand(newComplaintFileCmd())
	return cmd
}

func newComplaintFileCmd() *cobra.Command {
	var (
		configPath  string
		as          string
		description string
	)

	cmd := &cobra.Command{
		Use:   "file <booking-id>",
		Short: "File a complaint about a booking",
		Long:  "Files a complaint as --as. Staff are notified by mail and on the alert channel when configured.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := requireUser(a.db, as)
			if err != nil {
				return err
			}
			filed, err := a.complaints.File(ctx, complaint.Input{
				Actor:       actor,
				BookingID:   bookingID,
				Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Filed %s complaint %d on booking %d\n", filed.Type, filed.ID, filed.BookingID)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "user slug filing the complaint (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "what went wrong")
	return cmd
}
