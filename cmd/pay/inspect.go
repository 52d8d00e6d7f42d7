package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/calendar"
	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.ics>",
		Short: "Show the events in a calendar document",
		Long: `Parse an exported calendar document and list its events, which is handy for
checking that a cancellation matches the reminder it should remove.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			f, err := os.Open(args[0])
			if err != nil {
				return common.NewUserError("Cannot open "+args[0], err)
			}
			defer func() { _ = f.Close() }()

			doc, err := calendar.Parse(f, time.Local)
			if err != nil {
				return common.NewUserError(fmt.Sprintf("%s is not a valid calendar document: %v", args[0], err), err)
			}

			writeln(out, cli.FormatTitle(fmt.Sprintf("%s %s (%s)", cli.CalendarIcon, doc.Method, doc.ProductID)))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer func() {
				if flushErr := w.Flush(); flushErr != nil {
					slog.Error("failed to flush table writer", "error", flushErr)
				}
			}()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			writef(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("UID"),
				headerStyle.Render("Start"),
				headerStyle.Render("Status"),
				headerStyle.Render("Seq"),
				headerStyle.Render("Alarm"),
				headerStyle.Render("Summary"))
			for _, ev := range doc.Events {
				alarm := "-"
				if ev.Alarm != nil {
					alarm = ev.Alarm.Trigger
				}
				writef(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					ev.UID,
					ev.Start.Format("2006-01-02 15:04"),
					ev.Status,
					ev.Sequence,
					alarm,
					ev.Summary)
			}
			return nil
		},
	}
}
