package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/Veraticus/the-spice-must-pay/internal/reminder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesLength(t *testing.T) {
	tests := []struct {
		months    int
		recurring bool
		wantErr   bool
	}{
		{0, false, false},
		{1, false, false},
		{2, true, false},
		{60, true, false},
		{61, false, true},
		{-1, false, true},
	}

	for _, tt := range tests {
		recurring, err := seriesLength(tt.months)
		if tt.wantErr {
			var userErr *common.UserError
			assert.ErrorAs(t, err, &userErr, "months=%d", tt.months)
			continue
		}
		require.NoError(t, err, "months=%d", tt.months)
		assert.Equal(t, tt.recurring, recurring, "months=%d", tt.months)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1500.50", "1500.5", false},
		{"1500,50", "1500.5", false},
		{" 42 ", "42", false},
		{"0", "", true},
		{"-3", "", true},
		{"abc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String())
	}
}

func TestParseMonthAndDay(t *testing.T) {
	now := time.Date(2025, time.July, 4, 12, 0, 0, 0, time.Local)

	year, month, err := parseMonth("", now)
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, time.July, month)

	year, month, err = parseMonth("2024-02", now)
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, time.February, month)

	_, _, err = parseMonth("2024-13", now)
	assert.Error(t, err)

	day, err := parseDay("", now)
	require.NoError(t, err)
	assert.Equal(t, model.MustDate(2025, time.July, 4), day)

	day, err = parseDay("2024-02-29", now)
	require.NoError(t, err)
	assert.Equal(t, model.MustDate(2024, time.February, 29), day)

	_, err = parseDay("2025-02-29", now)
	assert.Error(t, err)
}

func TestBuildPatch(t *testing.T) {
	str := func(s string) *string { return &s }

	t.Run("only changed flags", func(t *testing.T) {
		patch, err := buildPatch(flagValues{title: str("  Power  "), currency: str("usd")})
		require.NoError(t, err)
		require.NotNil(t, patch.Title)
		assert.Equal(t, "Power", *patch.Title)
		require.NotNil(t, patch.Currency)
		assert.Equal(t, model.CurrencyUSD, *patch.Currency)
		assert.Nil(t, patch.Amount)
		assert.Nil(t, patch.Date)
		assert.Nil(t, patch.Category)
	})

	t.Run("nothing changed", func(t *testing.T) {
		patch, err := buildPatch(flagValues{})
		require.NoError(t, err)
		assert.Equal(t, model.Patch{}, patch)
	})

	errs := map[string]flagValues{
		"bad amount":   {amount: str("free")},
		"bad currency": {currency: str("GBP")},
		"empty date":   {date: str(" ")},
		"bad date":     {date: str("2025-04-31")},
	}
	for name, v := range errs {
		t.Run(name, func(t *testing.T) {
			_, err := buildPatch(v)
			assert.Error(t, err)
		})
	}

	assert.Nil(t, optional(false, "x"))
	assert.Equal(t, "x", *optional(true, "x"))
}

func TestGroupForExport(t *testing.T) {
	nine := model.ReminderTime{Hour: 9}
	eight := model.ReminderTime{Hour: 8, Minute: 30}

	expenses := []model.Expense{
		{ID: "a", Date: model.MustDate(2025, time.January, 5), Reminder: &nine},
		{ID: "b", Date: model.MustDate(2025, time.January, 20), Reminder: &eight},
		{ID: "c", Date: model.MustDate(2025, time.February, 5), Reminder: &nine},
		{ID: "d", Date: model.MustDate(2025, time.January, 25)},
	}

	publish := groupForExport(expenses, nine, false)
	require.Len(t, publish, 2)
	assert.Equal(t, "2025-01_0900", publish[0].label())
	assert.Len(t, publish[0].expenses, 3)
	assert.Equal(t, "2025-02_0900", publish[1].label())

	cancel := groupForExport(expenses, eight, true)
	require.Len(t, cancel, 3)
	assert.Equal(t, "2025-01_0900", cancel[0].label())
	assert.Equal(t, []string{"a"}, ids(cancel[0].expenses))
	assert.Equal(t, "2025-01_0830", cancel[1].label())
	assert.Equal(t, []string{"b", "d"}, ids(cancel[1].expenses), "records without a stored time use the current one")
	assert.Equal(t, "2025-02_0900", cancel[2].label())

	published := model.MustDate(2025, time.March, 1)
	moved := []model.Expense{{ID: "m", Date: model.MustDate(2025, time.April, 1), Reminder: &nine, PublishedOn: &published}}
	assert.Equal(t, "2025-04_0900", groupForExport(moved, nine, false)[0].label())
	assert.Equal(t, "2025-03_0900", groupForExport(moved, nine, true)[0].label(), "cancellations use the published date")
}

func ids(expenses []model.Expense) []string {
	out := make([]string, len(expenses))
	for i, e := range expenses {
		out[i] = e.ID
	}
	return out
}

func TestResolveScope(t *testing.T) {
	single := model.Expense{ID: "s", Title: "Dentist"}
	series := model.Expense{ID: "r", Title: "Rent", IsRecurring: true}
	ctx := context.Background()

	tests := []struct {
		name  string
		e     model.Expense
		all   bool
		force bool
		input string
		want  cli.Scope
	}{
		{"single never prompts", single, false, false, "", cli.ScopeSingle},
		{"all selects series", series, true, false, "", cli.ScopeSeries},
		{"force selects one", series, false, true, "", cli.ScopeSingle},
		{"prompt only this", series, false, false, "o\n", cli.ScopeSingle},
		{"prompt all", series, false, false, "a\n", cli.ScopeSeries},
		{"prompt cancel", series, false, false, "c\n", cli.ScopeCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := resolveScope(ctx, strings.NewReader(tt.input), &out, tt.e, tt.all, tt.force, "pay")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.input == "" {
				assert.Empty(t, out.String())
			}
		})
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123abcd", shortID("0123abcd-4567-89ef"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestDescribeOutcome(t *testing.T) {
	tests := []struct {
		res  reminder.Result
		want string
	}{
		{reminder.Result{Outcome: reminder.OutcomeNotified, Body: "Payment due today: Rent - Total: 1.00 TRY"}, "Reminder sent: Payment due today: Rent"},
		{reminder.Result{Outcome: reminder.OutcomeDisabled}, "Notifications are disabled"},
		{reminder.Result{Outcome: reminder.OutcomeAlreadyNotified}, "Already reminded today"},
		{reminder.Result{Outcome: reminder.OutcomeNothingDue}, "Nothing due today"},
		{reminder.Result{Outcome: reminder.OutcomeNoPermission, Due: make([]model.Expense, 2)}, "2 expenses are due"},
	}

	for _, tt := range tests {
		assert.Contains(t, describeOutcome(tt.res), tt.want)
	}
}
