package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/expense"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/Veraticus/the-spice-must-pay/internal/reminder"
	"github.com/spf13/cobra"
)

func remindCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Notify about expenses due today",
		Long: `Run the daily reminder. Every poll checks whether it is the configured
reminder.time and, at most once per day, notifies about today's unpaid
expenses. One check that ignores the time runs at start.

With --once a single check runs immediately, ignoring the configured time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()

			checker, err := newChecker(a, out)
			if err != nil {
				return err
			}

			if once {
				res, err := checker.Check(ctx, time.Now(), true)
				if err != nil {
					return fmt.Errorf("reminder check failed: %w", err)
				}
				writeln(out, describeOutcome(res))
				return nil
			}

			poller, err := reminder.NewPoller(checker, a.settings.Reminder.Poll)
			if err != nil {
				return err
			}

			ctx = cli.NewInterruptHandler(cmd.ErrOrStderr(), "Stopping reminders.").HandleInterrupts(ctx)
			writeln(cmd.ErrOrStderr(), cli.FormatInfo(fmt.Sprintf("Reminding at %s every day. Press Ctrl+C to stop.", a.settings.Reminder.Time)))
			return poller.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "check once now, ignoring the configured time")
	return cmd
}

func newChecker(a *app, out io.Writer) (*reminder.Checker, error) {
	notifier, err := newNotifier(a.settings, out)
	if err != nil {
		return nil, err
	}
	return reminder.NewChecker(&liveDue{store: a.store}, a.storage, notifier, reminderSettings(a.settings)), nil
}

// liveDue reloads the store before each lookup so a long-running reminder
// sees expenses added by other pay commands.
type liveDue struct {
	store *expense.Store
}

func (l *liveDue) DueOn(day model.Date) []model.Expense {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Open(ctx); err != nil {
		slog.Warn("Reload failed, checking the last loaded expenses", "error", err)
	}
	return l.store.DueOn(day)
}

func describeOutcome(res reminder.Result) string {
	switch res.Outcome {
	case reminder.OutcomeNotified:
		return cli.FormatSuccess("Reminder sent: " + res.Body)
	case reminder.OutcomeDisabled:
		return cli.FormatWarning("Notifications are disabled (set notifications.enabled to true).")
	case reminder.OutcomeAlreadyNotified:
		return cli.FormatInfo("Already reminded today. Use 'pay settings reset-reminder' to allow another one.")
	case reminder.OutcomeNothingDue:
		return cli.FormatInfo("Nothing due today.")
	case reminder.OutcomeNoPermission:
		return cli.FormatWarning(fmt.Sprintf("%d expenses are due but the notifier is unavailable (check notifications.command).", len(res.Due)))
	default:
		return cli.FormatInfo(string(res.Outcome))
	}
}
