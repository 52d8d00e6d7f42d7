package main

import (
	"fmt"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/spf13/cobra"
)

func deleteCmd() *cobra.Command {
	var all, force bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an expense",
		Long: `Delete an expense and cancel its calendar reminder.

For an expense that belongs to a monthly series you are asked whether to delete
only this month or the whole series. --all deletes the series and --force
skips every question.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			in := cmd.InOrStdin()

			a, err := openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := findExpense(a.store, args[0])
			if err != nil {
				return err
			}

			scope, err := resolveScope(ctx, in, out, target, all, force, "delete")
			if err != nil {
				return err
			}

			// Choosing a scope already answered the question.
			skipConfirm := force || (target.IsRecurring && !all)

			switch scope {
			case cli.ScopeSeries:
				series, err := a.store.Series(target.ID)
				if err != nil {
					return err
				}
				ok, err := confirm(ctx, in, out, skipConfirm, fmt.Sprintf("Delete all %d expenses of %s?", len(series), target.Title))
				if err != nil || !ok {
					writeln(out, cli.FormatInfo("Canceled."))
					return err
				}
				removed, err := a.store.DeleteAllRecurring(ctx, target.ID)
				if err != nil {
					return fmt.Errorf("failed to delete series: %w", err)
				}
				writeln(out, cli.FormatSuccess(fmt.Sprintf("Deleted %d expenses of %s", len(removed), target.Title)))
			case cli.ScopeSingle:
				ok, err := confirm(ctx, in, out, skipConfirm, fmt.Sprintf("Delete %s on %s?", describe(target), target.Date))
				if err != nil || !ok {
					writeln(out, cli.FormatInfo("Canceled."))
					return err
				}
				if _, err := a.store.Delete(ctx, target.ID); err != nil {
					return fmt.Errorf("failed to delete expense: %w", err)
				}
				writeln(out, cli.FormatSuccess("Deleted "+describe(target)))
			default:
				writeln(out, cli.FormatInfo("Canceled."))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete every expense in the series")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompts")

	return cmd
}
