package main

import (
	"fmt"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/reminder"
	"github.com/spf13/cobra"
)

func resetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every expense",
		Long: `Reset removes every expense and the reminder marker. Calendar reminders that
were already exported are not cancelled; run 'pay export --all --cancel'
first if you want them gone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()

			count := len(a.store.All())
			if count == 0 {
				writeln(out, "No expenses found. Nothing to reset.")
				return nil
			}

			ok, err := confirm(ctx, cmd.InOrStdin(), out, force, fmt.Sprintf("This will delete %d expenses. Are you sure you want to continue?", count))
			if err != nil {
				return err
			}
			if !ok {
				writeln(out, "Reset canceled.")
				return nil
			}

			if err := a.store.Clear(ctx); err != nil {
				return err
			}
			if err := a.storage.DeleteSetting(ctx, reminder.MarkerKey); err != nil {
				return fmt.Errorf("failed to clear reminder marker: %w", err)
			}

			writeln(out, cli.FormatSuccess(fmt.Sprintf("Deleted %d expenses", count)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}
