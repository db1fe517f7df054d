package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatopinion/internal/booking"
	"github.com/zulandar/chatopinion/internal/models"
)

func newBookingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booking",
		Short: "Chat opinion booking commands",
	}

	cmd.AddCommand(newBookingListCmd())
	cmd.AddCommand(newBookingShowCmd())
	cmd.AddCommand(newBookingTransitionCmd("accept", "Accept a booking as its doctor", func(s *booking.Service) transitionFunc { return s.Accept }))
	cmd.AddCommand(newBookingTransitionCmd("complete", "Complete a booking as its doctor", func(s *booking.Service) transitionFunc { return s.Complete }))
	return cmd
}

type transitionFunc func(ctx context.Context, id uint, actor *models.User) (*models.Booking, error)

func parseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(n), nil
}

func newBookingListCmd() *cobra.Command {
	var (
		configPath string
		as         string
		status     string
		page       int
		pageSize   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chat opinion bookings",
		Long: `Lists chat opinion bookings newest first with per-bucket counts.
Without --as every booking is listed; with --as only the bookings that user
may see. --status takes a bucket (closed, in-progress, reply) or a raw status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookingList(cmd, configPath, as, booking.ListParams{
				Status:   status,
				Page:     page,
				PageSize: pageSize,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "act as the user with this slug")
	cmd.Flags().StringVar(&status, "status", "", "filter by bucket or status")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", booking.DefaultPageSize, "bookings per page")
	return cmd
}

func runBookingList(cmd *cobra.Command, configPath, as string, params booking.ListParams) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	caller, err := lookupUser(a.db, as)
	if err != nil {
		return err
	}
	p, err := a.bookings.List(ctx, caller, params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(p.Results) == 0 {
		fmt.Fprintln(out, "No bookings found.")
	} else {
		printBookingTable(out, p.Results)
	}
	fmt.Fprintf(out, "\nPage %d, %d matching. new=%d in-progress=%d reply=%d\n",
		p.Page, p.Count, p.New, p.InProgress, p.Reply)
	return nil
}

func printBookingTable(out io.Writer, views []booking.View) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPATIENT\tDOCTOR\tCREATED")
	for _, v := range views {
		patient, doctor := "-", "-"
		if v.Patient != nil && v.Patient.FullName != "" {
			patient = v.Patient.FullName
		}
		if v.Doctor != nil && v.Doctor.FullName != "" {
			doctor = v.Doctor.FullName
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s %s\n",
			v.ID, v.StatusDisplay, patient, doctor, v.CreationDate, v.CreationTime)
	}
	w.Flush()
}

func newBookingShowCmd() *cobra.Command {
	var (
		configPath string
		as         string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a chat opinion booking",
		Long:  "Shows one booking as seen by --as. Without --as only guest bookings are visible.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookingShow(cmd, configPath, as, args[0], asJSON)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "act as the user with this slug")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the booking as JSON")
	return cmd
}

func runBookingShow(cmd *cobra.Command, configPath, as, rawID string, asJSON bool) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	caller, err := lookupUser(a.db, as)
	if err != nil {
		return err
	}
	b, err := a.bookings.Get(ctx, id, caller)
	if err != nil {
		return err
	}
	return printBooking(ctx, cmd.OutOrStdout(), a.bookings, b, asJSON)
}

func printBooking(ctx context.Context, out io.Writer, svc *booking.Service, b *models.Booking, asJSON bool) error {
	v, err := svc.View(ctx, b, "")
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	fmt.Fprintf(out, "Booking:  %d\n", v.ID)
	fmt.Fprintf(out, "Status:   %s\n", v.StatusDisplay)
	fmt.Fprintf(out, "Created:  %s %s\n", v.CreationDate, v.CreationTime)
	if v.Patient != nil {
		fmt.Fprintf(out, "Patient:  %s (%s)\n", v.Patient.FullName, v.Patient.Gender)
		if v.Patient.MedicalDetails != nil {
			fmt.Fprintf(out, "Medical:  %s\n", *v.Patient.MedicalDetails)
		}
	}
	if v.Doctor != nil {
		fmt.Fprintf(out, "Doctor:   %s (%s)\n", v.Doctor.FullName, v.Doctor.Speciality)
	}
	if len(v.Attachments) > 0 {
		fmt.Fprintln(out, "Attachments:")
		for _, l := range v.Attachments {
			fmt.Fprintf(out, "  %s  %s\n", l.Name, l.Attachment)
		}
	}
	if len(v.QuestionsAns) > 0 {
		fmt.Fprintln(out, "Answers:")
		for _, qa := range v.QuestionsAns {
			fmt.Fprintf(out, "  %s: %s\n", qa.QuestionLabel, qa.Answer)
		}
	}
	return nil
}

func newBookingTransitionCmd(use, short string, pick func(*booking.Service) transitionFunc) *cobra.Command {
	var (
		configPath string
		as         string
	)

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
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
			b, err := pick(a.bookings)(ctx, id, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Booking %d is now %s\n", b.ID, b.Status)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "doctor slug to act as (required)")
	return cmd
}
