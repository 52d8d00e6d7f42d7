package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/expense"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var month, day string
	var all bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List expenses for a month or a day",
		Long: `List the expenses of a month (default: the current one) together with the
month's totals per currency. --day lists a single day and --all everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			now := time.Now()

			a, err := openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()

			switch {
			case all:
				writeln(out, cli.FormatTitle("All expenses"))
				return renderExpenses(out, a.store.All())
			case day != "":
				d, err := parseDay(day, now)
				if err != nil {
					return err
				}
				writeln(out, cli.FormatTitle("Expenses on "+d.String()))
				return renderExpenses(out, a.store.QueryByDay(d))
			default:
				year, m, err := parseMonth(month, now)
				if err != nil {
					return err
				}
				writeln(out, cli.FormatTitle(fmt.Sprintf("%s %d", m, year)))
				if err := renderExpenses(out, a.store.QueryByMonth(year, m)); err != nil {
					return err
				}
				writeln(out, renderSummary(a.store.Summary(year, m)))
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "month to list, YYYY-MM (default current month)")
	cmd.Flags().StringVar(&day, "day", "", "single day to list, YYYY-MM-DD")
	cmd.Flags().BoolVar(&all, "all", false, "list every expense")
	cmd.MarkFlagsMutuallyExclusive("month", "day", "all")

	return cmd
}

func renderExpenses(out io.Writer, expenses []model.Expense) error {
	if len(expenses) == 0 {
		writeln(out, cli.InfoStyle.Render("No expenses found. Use 'pay add' to record one."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil {
			slog.Error("failed to flush table writer", "error", flushErr)
		}
	}()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("Date"),
		headerStyle.Render("Title"),
		headerStyle.Render("Amount"),
		headerStyle.Render("Category"),
		headerStyle.Render("Status"),
		headerStyle.Render("ID")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("─", 10),
		strings.Repeat("─", 20),
		strings.Repeat("─", 12),
		strings.Repeat("─", 12),
		strings.Repeat("─", 6),
		strings.Repeat("─", 8)); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}

	for _, e := range expenses {
		title := e.Title
		if e.IsRecurring {
			title = cli.RepeatIcon + " " + title
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Date,
			title,
			formatAmount(e),
			e.Category,
			cli.FormatStatus(e.IsPaid),
			shortID(e.ID)); err != nil {
			return fmt.Errorf("failed to write expense row: %w", err)
		}
	}
	return nil
}

func renderSummary(sum expense.MonthSummary) string {
	total := sum.Total.String()
	if total == "" {
		total = "0"
	}
	remaining := sum.Remaining.String()
	if remaining == "" {
		remaining = "0"
	}

	lines := []string{
		fmt.Sprintf("Total:     %s", cli.BoldStyle.Render(total)),
		fmt.Sprintf("Remaining: %s", cli.DueStyle.Render(remaining)),
		fmt.Sprintf("Paid:      %d of %d", sum.PaidCount, sum.Count),
	}
	return "\n" + cli.RenderBox(cli.MoneyIcon+" Summary", strings.Join(lines, "\n"))
}

func formatAmount(e model.Expense) string {
	return e.Amount.StringFixed(2) + " " + string(e.Currency)
}

// shortID trims UUIDs for display; commands accept any unique prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
