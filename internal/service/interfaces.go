// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
)

// ExpensePersister stores the whole expense collection as one unit.
type ExpensePersister interface {
	SaveExpenses(ctx context.Context, expenses []model.Expense) error
	LoadExpenses(ctx context.Context) ([]model.Expense, error)
	ClearExpenses(ctx context.Context) error
}

// SettingsStore holds small string-valued user settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	// CompareAndSwapSetting sets key to next only if its current value is prev
	// (a missing key counts as ""). It reports whether the swap happened.
	CompareAndSwapSetting(ctx context.Context, key, prev, next string) (bool, error)
	DeleteSetting(ctx context.Context, key string) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	ExpensePersister
	SettingsStore

	Migrate(ctx context.Context) error
	Close() error
}

// CalendarExporter emits calendar documents for expense lifecycle events.
type CalendarExporter interface {
	Publish(ctx context.Context, expenses []model.Expense, at model.ReminderTime) error
	Cancel(ctx context.Context, expenses []model.Expense, at model.ReminderTime) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
