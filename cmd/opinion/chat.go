package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatopinion/internal/conversation"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Booking conversation commands",
	}

	cmd.AddCommand(newChatListCmd())
	cmd.AddCommand(newChatSendCmd())
	return cmd
}

func newChatListCmd() *cobra.Command {
	var (
		configPath string
		as         string
	)

	cmd := &cobra.Command{
		Use:   "list <booking-id>",
		Short: "Show the conversation on a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatList(cmd, configPath, as, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "user slug to read as (required)")
	return cmd
}

func runChatList(cmd *cobra.Command, configPath, as, rawID string) error {
	bookingID, err := parseID(rawID)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	caller, err := requireUser(a.db, as)
	if err != nil {
		return err
	}
	msgs, err := a.conversations.List(ctx, bookingID, caller)
	if err != nil {
		return err
	}
	views, err := a.conversations.Views(ctx, msgs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(out, "No messages.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tSENT\tLEFT\tMESSAGE")
	for _, v := range views {
		from := "patient"
		if v.IsDoctorMessage {
			from = "doctor"
		}
		text := v.Message
		if n := len(v.DoctorAttachments) + len(v.PatientAttachments); n > 0 {
			text = fmt.Sprintf("%s [%d file(s)]", text, n)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			v.ID, from, v.Created.Format("2006-01-02 15:04"), v.RepliesLeft, text)
	}
	w.Flush()
	return nil
}

func newChatSendCmd() *cobra.Command {
	var (
		configPath string
		as         string
		message    string
		files      []string
	)

	cmd := &cobra.Command{
		Use:   "send <booking-id>",
		Short: "Send a message on a booking",
		Long: `Sends a message as --as. Patients are limited to the configured number
of replies per booking. --file may be repeated to attach files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatSend(cmd, configPath, as, args[0], message, files)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "user slug to send as (required)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	cmd.Flags().StringSliceVar(&files, "file", nil, "file to attach (repeatable)")
	return cmd
}

// encodeFiles reads each path into the {name: base64} shape the
// conversation service accepts.
func encodeFiles(paths []string) ([]map[string]string, error) {
	out := make([]map[string]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		out = append(out, map[string]string{
			filepath.Base(p): base64.StdEncoding.EncodeToString(data),
		})
	}
	return out, nil
}

func runChatSend(cmd *cobra.Command, configPath, as, rawID, message string, paths []string) error {
	bookingID, err := parseID(rawID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" && len(paths) == 0 {
		return fmt.Errorf("nothing to send: pass --message or --file")
	}
	files, err := encodeFiles(paths)
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
	msg, err := a.conversations.Create(ctx, conversation.CreateInput{
		Actor:     actor,
		BookingID: bookingID,
		Message:   message,
		Files:     files,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sent message %d on booking %d\n", msg.ID, msg.BookingID)
	if !msg.IsDoctorMessage {
		left, err := a.conversations.RepliesRemaining(ctx, msg.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Replies left: %d\n", left)
	}
	return nil
}
