package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/Veraticus/the-spice-must-pay/internal/recurrence"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Series length limits for --months.
const (
	minSeriesMonths = 2
	maxSeriesMonths = 60
)

type addOptions struct {
	title    string
	amount   string
	currency string
	category string
	date     string
	months   int
}

func addCmd() *cobra.Command {
	opts := &addOptions{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense or a monthly series",
		Long: `Record a dated expense. With --months N (2 to 60) a monthly series is created
starting on --date; a series anchored on the 29th, 30th or 31st falls on the
last day of shorter months and returns to the anchor day afterwards.

A calendar document with a reminder for every created expense is exported
unless calendar.enabled is false.`,
		Example: `  pay add --title Rent --amount 12000 --category Kira --date 2025-01-31 --months 12
  pay add --title "Concert" --amount 45 --currency EUR --category Eğlence`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdd(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "expense title (required)")
	cmd.Flags().StringVarP(&opts.amount, "amount", "a", "", "amount, e.g. 1500.50 (required)")
	cmd.Flags().StringVarP(&opts.currency, "currency", "c", string(model.CurrencyTRY), "currency (TRY, USD, EUR)")
	cmd.Flags().StringVar(&opts.category, "category", string(model.CategoryOther), "category, e.g. "+categoryHint())
	cmd.Flags().StringVarP(&opts.date, "date", "d", "", "due date YYYY-MM-DD (default today)")
	cmd.Flags().IntVarP(&opts.months, "months", "m", 0, "create a monthly series of this many months (2-60)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runAdd(cmd *cobra.Command, opts *addOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	tpl, anchor, err := opts.template(time.Now())
	if err != nil {
		return err
	}
	recurring, err := seriesLength(opts.months)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.store.Create(ctx, tpl, anchor, recurring, opts.months)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}

	if !recurring {
		writeln(out, cli.FormatSuccess(fmt.Sprintf("Added %s on %s (%s)", describe(created[0]), created[0].Date, created[0].ID)))
		return nil
	}

	writeln(out, cli.FormatSuccess(fmt.Sprintf("Added %d monthly expenses for %s", len(created), tpl.Title)))
	if rule, err := recurrence.RuleString(anchor, len(created)); err == nil {
		writeln(out, cli.SubtleStyle.Render(cli.RepeatIcon+" "+rule))
	}
	for _, e := range created {
		writef(out, "  %s  %s\n", e.Date, cli.SubtleStyle.Render(e.ID))
	}
	return nil
}

func (o *addOptions) template(now time.Time) (model.Template, model.Date, error) {
	amount, err := parseAmount(o.amount)
	if err != nil {
		return model.Template{}, model.Date{}, err
	}
	currency, err := model.ParseCurrency(o.currency)
	if err != nil {
		return model.Template{}, model.Date{}, common.NewUserError(fmt.Sprintf("Unknown currency %q, use one of %s", o.currency, currencyHint()), err)
	}
	anchor, err := parseDay(o.date, now)
	if err != nil {
		return model.Template{}, model.Date{}, err
	}

	tpl := model.Template{
		Title:    strings.TrimSpace(o.title),
		Amount:   amount,
		Currency: currency,
		Category: model.Category(strings.TrimSpace(o.category)),
	}
	if err := tpl.Validate(); err != nil {
		return model.Template{}, model.Date{}, common.NewUserError("Invalid expense: "+err.Error(), err)
	}
	return tpl, anchor, nil
}

// seriesLength reports whether months asks for a series and checks its range.
func seriesLength(months int) (bool, error) {
	switch {
	case months == 0 || months == 1:
		return false, nil
	case months < 0 || months > maxSeriesMonths:
		return false, common.NewUserError(
			fmt.Sprintf("--months must be between %d and %d", minSeriesMonths, maxSeriesMonths),
			recurrence.ErrInvalidCount)
	default:
		return true, nil
	}
}

// parseAmount accepts "1500.50" and "1500,50".
func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil || !amount.IsPositive() {
		if err == nil {
			err = model.ErrInvalidAmount
		}
		return decimal.Zero, common.NewUserError(fmt.Sprintf("Invalid amount %q, expected a positive number", s), err)
	}
	return amount, nil
}

func describe(e model.Expense) string {
	return fmt.Sprintf("%s - %s %s", e.Title, e.Amount.StringFixed(2), e.Currency)
}

func currencyHint() string {
	parts := make([]string, len(model.Currencies))
	for i, c := range model.Currencies {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func categoryHint() string {
	parts := make([]string, 0, 3)
	for _, c := range model.Categories[:3] {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ", ")
}
