package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/Veraticus/the-spice-must-pay/internal/expense"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/spf13/cobra"
)

func editCmd() *cobra.Command {
	var title, amount, currency, category, date string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change an expense",
		Long: `Change the title, amount, currency, category or date of one expense. Only
the given flags are changed. Other members of a series are left alone, and
calendar reminders are not re-exported; run 'pay export' afterwards if needed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			flags := cmd.Flags()

			patch, err := buildPatch(flagValues{
				title:    optional(flags.Changed("title"), title),
				amount:   optional(flags.Changed("amount"), amount),
				currency: optional(flags.Changed("currency"), currency),
				category: optional(flags.Changed("category"), category),
				date:     optional(flags.Changed("date"), date),
			})
			if err != nil {
				return err
			}

			a, err := openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := findExpense(a.store, args[0])
			if err != nil {
				return err
			}

			updated, err := a.store.Update(ctx, target.ID, patch)
			if errors.Is(err, expense.ErrEmptyPatch) {
				return common.NewUserError("Nothing to change: pass at least one of --title, --amount, --currency, --category, --date", err)
			}
			if err != nil {
				return common.NewUserError("Could not update expense: "+err.Error(), err)
			}

			writeln(out, cli.FormatSuccess(fmt.Sprintf("Updated %s on %s", describe(updated), updated.Date)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "new amount")
	cmd.Flags().StringVarP(&currency, "currency", "c", "", "new currency")
	cmd.Flags().StringVar(&category, "category", "", "new category")
	cmd.Flags().StringVarP(&date, "date", "d", "", "new date YYYY-MM-DD")

	return cmd
}

// flagValues holds the edit flags that were set; nil means unchanged.
type flagValues struct {
	title, amount, currency, category, date *string
}

func optional(changed bool, value string) *string {
	if !changed {
		return nil
	}
	return &value
}

func buildPatch(v flagValues) (model.Patch, error) {
	var patch model.Patch

	if v.title != nil {
		t := strings.TrimSpace(*v.title)
		patch.Title = &t
	}
	if v.amount != nil {
		amount, err := parseAmount(*v.amount)
		if err != nil {
			return model.Patch{}, err
		}
		patch.Amount = &amount
	}
	if v.currency != nil {
		c, err := model.ParseCurrency(*v.currency)
		if err != nil {
			return model.Patch{}, common.NewUserError(fmt.Sprintf("Unknown currency %q, use one of %s", *v.currency, currencyHint()), err)
		}
		patch.Currency = &c
	}
	if v.category != nil {
		c := model.Category(strings.TrimSpace(*v.category))
		patch.Category = &c
	}
	if v.date != nil {
		if strings.TrimSpace(*v.date) == "" {
			return model.Patch{}, common.NewUserError("--date cannot be empty", model.ErrInvalidDate)
		}
		d, err := parseDay(*v.date, time.Now())
		if err != nil {
			return model.Patch{}, err
		}
		patch.Date = &d
	}
	return patch, nil
}
