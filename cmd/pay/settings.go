package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/Veraticus/the-spice-must-pay/internal/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change settings",
	}

	cmd.AddCommand(settingsShowCmd(), settingsSetCmd(), settingsResetReminderCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every setting and its current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			writeln(out, cli.FormatTitle("Settings"))
			if used := viper.ConfigFileUsed(); used != "" {
				writeln(out, cli.SubtleStyle.Render("from "+used))
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer func() {
				if flushErr := w.Flush(); flushErr != nil {
					slog.Error("failed to flush table writer", "error", flushErr)
				}
			}()

			keyStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			for _, key := range config.Keys() {
				value := viper.Get(key)
				if config.IsSecret(key) && viper.GetString(key) != "" {
					value = "********"
				}
				writef(w, "%s\t%v\n", keyStyle.Render(key), value)
			}
			return nil
		},
	}
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting and save it to the config file",
		Example: `  pay settings set reminder.time 08:30
  pay settings set notifications.enabled true
  pay settings set notifications.command "notify-send -u critical"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := config.Set(viper.GetViper(), key, value); err != nil {
				return common.NewUserError(err.Error(), err)
			}

			path, err := configWritePath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := viper.WriteConfigAs(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			writeln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s = %s (saved to %s)", key, value, path)))
			return nil
		},
	}
}

func settingsResetReminderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-reminder",
		Short: "Allow today's reminder to be sent again",
		Args:  cobra.NoArgs,
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
			if err := checker.ResetMarker(ctx); err != nil {
				return err
			}

			writeln(out, cli.FormatSuccess("Reminder marker cleared. The next check will notify again."))
			return nil
		},
	}
}
