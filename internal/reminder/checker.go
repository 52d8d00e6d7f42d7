// Package reminder sends at most one "payments due today" notification per day.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/expense"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/Veraticus/the-spice-must-pay/internal/service"
)

// MarkerKey is the setting that records the last day a notification went out.
const MarkerKey = "lastNotifiedDate"

// Title is the notification title.
const Title = "Expense reminder"

// DueSource lists the unpaid expenses dated on a day.
type DueSource interface {
	DueOn(day model.Date) []model.Expense
}

// Settings control when the checker fires.
type Settings struct {
	Time    model.ReminderTime
	Enabled bool
}

// Outcome describes why a check did or did not notify.
type Outcome string

// Check outcomes.
const (
	OutcomeDisabled        Outcome = "disabled"
	OutcomeNotYet          Outcome = "not-yet"
	OutcomeAlreadyNotified Outcome = "already-notified"
	OutcomeNothingDue      Outcome = "nothing-due"
	OutcomeNoPermission    Outcome = "no-permission"
	OutcomeNotified        Outcome = "notified"
)

// Result is the outcome of one check.
type Result struct {
	Outcome Outcome
	Title   string
	Body    string
	Due     []model.Expense
}

// Checker decides whether today's notification is due and sends it.
type Checker struct {
	due      DueSource
	marker   service.SettingsStore
	notifier Notifier
	settings Settings
	mu       sync.RWMutex
}

// NewChecker creates a checker.
func NewChecker(due DueSource, marker service.SettingsStore, notifier Notifier, settings Settings) *Checker {
	return &Checker{
		due:      due,
		marker:   marker,
		notifier: notifier,
		settings: settings,
	}
}

// Settings returns the current settings.
func (c *Checker) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// SetSettings replaces the settings used by later checks.
func (c *Checker) SetSettings(settings Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
}

// Check notifies about today's unpaid expenses when notifications are enabled,
// now falls in the configured minute (unless ignoreTime is set) and nothing
// was sent yet today. The day is claimed atomically before notifying so
// concurrent checks send at most once; a failed send releases the claim.
func (c *Checker) Check(ctx context.Context, now time.Time, ignoreTime bool) (Result, error) {
	settings := c.Settings()
	if !settings.Enabled {
		return Result{Outcome: OutcomeDisabled}, nil
	}
	if !ignoreTime && !settings.Time.Matches(now) {
		return Result{Outcome: OutcomeNotYet}, nil
	}

	today := model.DateOf(now).String()
	last, _, err := c.marker.GetSetting(ctx, MarkerKey)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read notification marker: %w", err)
	}
	if last == today {
		return Result{Outcome: OutcomeAlreadyNotified}, nil
	}

	due := c.due.DueOn(model.DateOf(now))
	if len(due) == 0 {
		slog.Debug("No unpaid expenses due today", "date", today)
		return Result{Outcome: OutcomeNothingDue}, nil
	}

	if perm := c.notifier.Permission(ctx); perm != PermissionGranted {
		slog.Info("Notification permission not granted", "permission", perm)
		return Result{Outcome: OutcomeNoPermission, Due: due}, nil
	}

	claimed, err := c.marker.CompareAndSwapSetting(ctx, MarkerKey, last, today)
	if err != nil {
		return Result{}, fmt.Errorf("failed to claim notification marker: %w", err)
	}
	if !claimed {
		return Result{Outcome: OutcomeAlreadyNotified}, nil
	}

	body := Message(due)
	if err := c.notifier.Notify(ctx, Title, body); err != nil {
		if _, rbErr := c.marker.CompareAndSwapSetting(ctx, MarkerKey, today, last); rbErr != nil {
			slog.Error("Failed to release notification marker", "error", rbErr)
		}
		return Result{}, fmt.Errorf("failed to send notification: %w", err)
	}

	slog.Info("Sent payment reminder", "date", today, "count", len(due))
	return Result{Outcome: OutcomeNotified, Title: Title, Body: body, Due: due}, nil
}

// ResetMarker forgets the last notification day so the next check may fire again.
func (c *Checker) ResetMarker(ctx context.Context) error {
	if err := c.marker.DeleteSetting(ctx, MarkerKey); err != nil {
		return fmt.Errorf("failed to reset notification marker: %w", err)
	}
	return nil
}

// Message builds the notification body for the due expenses.
func Message(due []model.Expense) string {
	subject := fmt.Sprintf("%d expenses", len(due))
	if len(due) == 1 {
		subject = due[0].Title
	}

	totals := expense.CurrencyTotals{}
	for _, e := range due {
		totals.Add(e.Currency, e.Amount)
	}
	return fmt.Sprintf("Payment due today: %s - Total: %s", subject, totals)
}
