package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/calendar"
	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/Veraticus/the-spice-must-pay/internal/config"
	"github.com/Veraticus/the-spice-must-pay/internal/expense"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/Veraticus/the-spice-must-pay/internal/recurrence"
	"github.com/Veraticus/the-spice-must-pay/internal/reminder"
	"github.com/Veraticus/the-spice-must-pay/internal/service"
	"github.com/Veraticus/the-spice-must-pay/internal/storage"
	"github.com/spf13/viper"
)

var (
	errCalendarDisabled = errors.New("calendar export is disabled (set calendar.enabled to true)")
	errAmbiguousID      = errors.New("ambiguous expense ID")
)

// app wires storage, the expense store and the calendar exporter for one command.
type app struct {
	storage  service.Storage
	store    *expense.Store
	exporter *calendar.Exporter
	closers  []func() error
	settings config.Settings
}

// openApp loads settings, opens the database and the expense store. out
// receives documents when the stdout sink is configured.
func openApp(ctx context.Context, out io.Writer) (*app, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid configuration: "+err.Error(), err)
	}

	st, err := initStorage(ctx, settings.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &app{settings: settings, storage: st}
	a.closers = append(a.closers, st.Close)

	opts := []expense.Option{
		expense.WithSettings(storeSettings(settings)),
		expense.WithExpander(&recurrence.Expander{NumberTitles: settings.NumberTitles}),
	}
	if settings.Calendar.Enabled {
		sink, closeSink, err := newSink(ctx, settings, out)
		if err != nil {
			a.Close()
			return nil, err
		}
		if closeSink != nil {
			a.closers = append(a.closers, closeSink)
		}
		a.exporter = newExporter(settings, sink)
		opts = append(opts, expense.WithExporter(a.exporter))
	}

	a.store = expense.NewStore(st, opts...)
	if err := a.store.Open(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatWarning("Saved expenses could not be loaded; starting empty.")) //nolint:forbidigo // User-facing output
	}
	return a, nil
}

// Close waits for pending calendar exports and releases resources.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("failed to close expense store", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("failed to close resource", "error", err)
		}
	}
}

// initStorage opens the database and runs migrations.
func initStorage(ctx context.Context, dbPath string) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(config.ExpandPath(dbPath))
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newSink builds the configured calendar sink. The returned closer may be nil.
func newSink(ctx context.Context, settings config.Settings, out io.Writer) (calendar.Sink, func() error, error) {
	switch settings.Calendar.Sink {
	case config.SinkNone:
		return calendar.DiscardSink{}, nil, nil
	case config.SinkStdout:
		return &calendar.WriterSink{W: out}, nil, nil
	case config.SinkAMQP:
		sink, err := calendar.NewAMQPSink(settings.AMQP.URL, settings.AMQP.Exchange, settings.AMQP.Queue)
		if err != nil {
			return nil, nil, common.NewUserError("Could not connect to the message broker at "+settings.AMQP.URL, err)
		}
		return sink, sink.Close, nil
	case config.SinkGoogle:
		g := settings.Google
		sink, err := calendar.NewGoogleSink(ctx, calendar.GoogleConfig{
			CalendarID:         g.CalendarID,
			ServiceAccountPath: g.ServiceAccountPath,
			ClientID:           g.ClientID,
			ClientSecret:       g.ClientSecret,
			RefreshToken:       g.RefreshToken,
			TimeZone:           g.TimeZone,
		})
		if err != nil {
			return nil, nil, common.NewUserError("Could not connect to Google Calendar", err)
		}
		return sink, nil, nil
	default:
		return &calendar.DirSink{Dir: settings.Calendar.Dir}, nil, nil
	}
}

func newExporter(settings config.Settings, sink calendar.Sink) *calendar.Exporter {
	exporter := calendar.NewExporter(calendar.NewCodec(settings.Calendar.Domain), sink)
	exporter.ProductID = settings.Calendar.ProductID
	return exporter
}

func storeSettings(settings config.Settings) expense.Settings {
	return expense.Settings{
		ReminderTime:    settings.Reminder.Time,
		CalendarEnabled: settings.Calendar.Enabled,
	}
}

func reminderSettings(settings config.Settings) reminder.Settings {
	return reminder.Settings{
		Enabled: settings.Notifications.Enabled,
		Time:    settings.Reminder.Time,
	}
}

// newNotifier prefers the configured command and falls back to the terminal.
func newNotifier(settings config.Settings, out io.Writer) (reminder.Notifier, error) {
	if settings.Notifications.Command == "" {
		return &reminder.TerminalNotifier{W: out}, nil
	}
	return reminder.NewCommandNotifier(settings.Notifications.Command)
}

// parseMonth parses "YYYY-MM"; empty means the month containing now.
func parseMonth(s string, now time.Time) (int, time.Month, error) {
	if strings.TrimSpace(s) == "" {
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, common.NewUserError(fmt.Sprintf("Invalid month %q, expected YYYY-MM", s), err)
	}
	return t.Year(), t.Month(), nil
}

// parseDay parses "YYYY-MM-DD"; empty means today.
func parseDay(s string, now time.Time) (model.Date, error) {
	if strings.TrimSpace(s) == "" {
		return model.DateOf(now), nil
	}
	d, err := model.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return model.Date{}, common.NewUserError(fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD", s), err)
	}
	return d, nil
}

// confirm asks question unless force is set.
func confirm(ctx context.Context, in io.Reader, out io.Writer, force bool, question string) (bool, error) {
	if force {
		return true, nil
	}
	return cli.NewCLIPrompter(in, out).Confirm(ctx, question)
}

// resolveScope decides whether an action on e applies to its whole series.
// all forces the series; otherwise recurring expenses prompt unless force is set.
func resolveScope(ctx context.Context, in io.Reader, out io.Writer, e model.Expense, all, force bool, action string) (cli.Scope, error) {
	switch {
	case all:
		return cli.ScopeSeries, nil
	case !e.IsRecurring || force:
		return cli.ScopeSingle, nil
	default:
		return cli.NewCLIPrompter(in, out).ChooseScope(ctx, action, e.Title)
	}
}

func writef(out io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(out, format, args...); err != nil {
		slog.Error("failed to write output", "error", err)
	}
}

func writeln(out io.Writer, args ...any) {
	if _, err := fmt.Fprintln(out, args...); err != nil {
		slog.Error("failed to write output", "error", err)
	}
}

// findExpense resolves an ID or a unique ID prefix as shown by `pay list`.
func findExpense(store *expense.Store, ref string) (model.Expense, error) {
	ref = strings.TrimSpace(ref)
	if e, err := store.Get(ref); err == nil {
		return e, nil
	}

	var matches []model.Expense
	if ref != "" {
		for _, e := range store.All() {
			if strings.HasPrefix(e.ID, ref) {
				matches = append(matches, e)
			}
		}
	}

	switch len(matches) {
	case 0:
		return model.Expense{}, common.NewUserError(fmt.Sprintf("No expense with ID %q", ref), expense.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.Expense{}, common.NewUserError(fmt.Sprintf("ID prefix %q matches %d expenses, use more characters", ref, len(matches)), errAmbiguousID)
	}
}
