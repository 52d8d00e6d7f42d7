package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/calendar"
	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// exportGroup is one document: a month's expenses sharing a reminder time.
type exportGroup struct {
	expenses []model.Expense
	at       model.ReminderTime
	year     int
	month    time.Month
}

func (g exportGroup) label() string {
	return fmt.Sprintf("%d-%02d_%02d%02d", g.year, int(g.month), g.at.Hour, g.at.Minute)
}

func exportCmd() *cobra.Command {
	var month string
	var all, unpaid, cancel bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export calendar reminders",
		Long: `Export calendar documents for existing expenses, one document per month, to
the configured calendar sink (a directory, stdout or a message queue).

--cancel exports cancellations instead, using the reminder time each expense
was originally published with so calendar clients remove the right event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.exporter == nil {
				return errCalendarDisabled
			}

			var selected []model.Expense
			if all {
				selected = a.store.All()
			} else {
				year, m, err := parseMonth(month, time.Now())
				if err != nil {
					return err
				}
				selected = a.store.QueryByMonth(year, m)
			}
			if unpaid {
				selected = slices.DeleteFunc(selected, func(e model.Expense) bool { return e.IsPaid })
			}
			if len(selected) == 0 {
				writeln(cmd.ErrOrStderr(), cli.FormatInfo("No expenses to export."))
				return nil
			}

			method := calendar.MethodPublish
			if cancel {
				method = calendar.MethodCancel
			}
			groups := groupForExport(selected, a.store.Settings().ReminderTime, cancel)

			bar := progressbar.NewOptions(len(groups),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Exporting reminders...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionClearOnFinish(),
			)

			var names []string
			for _, g := range groups {
				f, err := a.exporter.Build(method, g.expenses, g.at)
				if err != nil {
					return fmt.Errorf("failed to build %s document: %w", g.label(), err)
				}
				name := strings.TrimSuffix(f.Name, ".ics") + "_" + g.label() + ".ics"
				if err := a.exporter.Sink.Deliver(ctx, name, f.Body); err != nil {
					return fmt.Errorf("failed to deliver %s: %w", name, err)
				}
				if !cancel {
					a.store.RecordPublished(ctx, g.expenses, g.at)
				}
				names = append(names, name)
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			stderr := cmd.ErrOrStderr()
			writeln(stderr, cli.FormatSuccess(fmt.Sprintf("Exported %d expenses in %d documents via %s sink",
				len(selected), len(groups), a.settings.Calendar.Sink)))
			for _, n := range names {
				writeln(stderr, "  "+cli.CalendarIcon+" "+n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "month to export, YYYY-MM (default current month)")
	cmd.Flags().BoolVar(&all, "all", false, "export every expense")
	cmd.Flags().BoolVar(&unpaid, "unpaid", false, "only export unpaid expenses")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "export cancellations instead of reminders")
	cmd.MarkFlagsMutuallyExclusive("month", "all")

	return cmd
}

// groupForExport splits expenses by month, and for cancellations also by the
// reminder time they were published with. Cancellations are filed under the
// date the event was published on. Groups keep date order.
func groupForExport(expenses []model.Expense, current model.ReminderTime, cancel bool) []exportGroup {
	var groups []exportGroup
	index := make(map[string]int)

	for _, e := range expenses {
		at, day := current, e.Date
		if cancel {
			day = e.EventDate()
			if e.Reminder != nil {
				at = *e.Reminder
			}
		}
		key := fmt.Sprintf("%d-%02d/%s", day.Year, int(day.Month), at)

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, exportGroup{year: day.Year, month: day.Month, at: at})
		}
		groups[i].expenses = append(groups[i].expenses, e)
	}
	return groups
}
