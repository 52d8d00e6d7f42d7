package main

import (
	"fmt"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/spf13/cobra"
)

func paidCmd() *cobra.Command {
	var all, force bool

	cmd := &cobra.Command{
		Use:   "paid <id>",
		Short: "Mark an expense as paid",
		Long: `Mark an expense as paid and cancel its calendar reminder.

For an expense that belongs to a monthly series you are asked whether to pay
only this month or the whole series; --all pays the series without asking and
--force pays only the given expense.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := findExpense(a.store, args[0])
			if err != nil {
				return err
			}

			scope, err := resolveScope(ctx, cmd.InOrStdin(), out, target, all, force, "pay")
			if err != nil {
				return err
			}

			switch scope {
			case cli.ScopeSeries:
				changed, err := a.store.MarkAllPaid(ctx, target.ID)
				if err != nil {
					return fmt.Errorf("failed to mark series paid: %w", err)
				}
				writeln(out, cli.FormatSuccess(fmt.Sprintf("Marked %d expenses of %s as paid", len(changed), target.Title)))
			case cli.ScopeSingle:
				if target.IsPaid {
					writeln(out, cli.FormatInfo(describe(target)+" is already paid"))
					return nil
				}
				paid, err := a.store.MarkPaid(ctx, target.ID)
				if err != nil {
					return fmt.Errorf("failed to mark expense paid: %w", err)
				}
				writeln(out, cli.FormatSuccess(fmt.Sprintf("Paid %s on %s", describe(paid), paid.Date)))
			default:
				writeln(out, cli.FormatInfo("Canceled."))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "pay every expense in the series")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "do not ask; pay only the given expense unless --all")

	return cmd
}
