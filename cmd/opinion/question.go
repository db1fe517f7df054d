package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatopinion/internal/intake"
)

func newQuestionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Intake questionnaire commands",
	}

	cmd.AddCommand(newQuestionAddCmd())
	cmd.AddCommand(newQuestionListCmd())
	cmd.AddCommand(newQuestionRemoveCmd())
	cmd.AddCommand(newQuestionAnswerCmd())
	cmd.AddCommand(newQuestionMoveBasketCmd())
	return cmd
}

func newQuestionAddCmd() *cobra.Command {
	var (
		configPath string
		in         intake.QuestionInput
		optional   bool
	)

	cmd := &cobra.Command{
		Use:   "add <code>",
		Short: "Add an intake question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			in.Code = args[0]
			in.Required = !optional
			q, err := intake.CreateQuestion(gormDB, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added question %s (%s)\n", q.Code, q.FieldType)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&in.Label, "label", "l", "", "question label shown to patients")
	cmd.Flags().StringVar(&in.HelpText, "help-text", "", "hint shown under the question")
	cmd.Flags().StringVarP(&in.FieldType, "type", "t", intake.FieldSingleLine, "field type (singleline, multiline, number, date, checkbox)")
	cmd.Flags().BoolVar(&optional, "optional", false, "allow the question to be left blank")
	return cmd
}

func newQuestionListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List intake questions in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			qs, err := intake.ListQuestions(gormDB)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(qs) == 0 {
				fmt.Fprintln(out, "No questions found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tTYPE\tREQUIRED\tLABEL")
			for _, q := range qs {
				req := "no"
				if q.Required {
					req = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", q.Code, q.FieldType, req, q.Label)
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newQuestionRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "rm <code>",
		Aliases: []string{"remove"},
		Short:   "Remove an intake question",
		Long:    "Removes a question. Answers already given keep their label.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := intake.DeleteQuestion(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed question %s\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// parseAnswers splits code=value pairs.
func parseAnswers(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		code, value, ok := strings.Cut(p, "=")
		if !ok || code == "" {
			return nil, fmt.Errorf("invalid answer %q: want code=value", p)
		}
		out[code] = value
	}
	return out, nil
}

func newQuestionAnswerCmd() *cobra.Command {
	var (
		configPath string
		basket     bool
	)

	cmd := &cobra.Command{
		Use:   "answer <booking-id> <code=value>...",
		Short: "Record intake answers on a booking or basket",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			answers, err := parseAnswers(args[1:])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			target := intake.Target{BookingID: &id}
			noun := "booking"
			if basket {
				target = intake.Target{BasketID: &id}
				noun = "basket"
			}
			saved, err := intake.SaveAnswers(gormDB, target, answers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d answer(s) on %s %d\n", len(saved), noun, id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&basket, "basket", false, "treat the id as a basket id")
	return cmd
}

func newQuestionMoveBasketCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "move-basket <basket-id> <booking-id>",
		Short: "Move a basket's answers to the booking created from it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			basketID, err := parseID(args[0])
			if err != nil {
				return err
			}
			bookingID, err := parseID(args[1])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			n, err := intake.MoveBasketAnswers(gormDB, basketID, bookingID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %d answer(s) from basket %d to booking %d\n", n, basketID, bookingID)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
