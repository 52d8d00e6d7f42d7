// Package expense owns the in-memory expense collection and ties its
// lifecycle (create, pay, delete) to persistence and calendar exports.
package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/Veraticus/the-spice-must-pay/internal/recurrence"
	"github.com/Veraticus/the-spice-must-pay/internal/service"
)

// Store errors.
var (
	ErrNotFound     = errors.New("expense not found")
	ErrNotRecurring = errors.New("expense is not part of a recurring series")
	ErrEmptyPatch   = errors.New("update changes nothing")
)

const exportTimeout = 30 * time.Second

// Settings are the user preferences the store acts on.
type Settings struct {
	ReminderTime    model.ReminderTime
	CalendarEnabled bool
}

// DefaultSettings publishes calendar events at 09:00.
func DefaultSettings() Settings {
	return Settings{ReminderTime: model.DefaultReminderTime, CalendarEnabled: true}
}

// Store is safe for concurrent use. Mutations are applied to memory first;
// persistence and calendar failures are logged and never undo them.
type Store struct {
	persister  service.ExpensePersister
	exporter   service.CalendarExporter
	expander   *recurrence.Expander
	lastExport chan struct{}
	items      []model.Expense
	settings   Settings
	exports    sync.WaitGroup
	mu         sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithExporter sets the calendar exporter. Without one no documents are emitted.
func WithExporter(exporter service.CalendarExporter) Option {
	return func(s *Store) { s.exporter = exporter }
}

// WithExpander replaces the default recurrence expander.
func WithExpander(expander *recurrence.Expander) Option {
	return func(s *Store) { s.expander = expander }
}

// WithSettings sets the initial settings.
func WithSettings(settings Settings) Option {
	return func(s *Store) { s.settings = settings }
}

// NewStore returns an empty store backed by persister. Call Open to load
// previously saved expenses.
func NewStore(persister service.ExpensePersister, opts ...Option) *Store {
	s := &Store{
		persister: persister,
		expander:  &recurrence.Expander{},
		settings:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open replaces the in-memory collection with the persisted one. A load
// failure keeps the current collection, which is empty before the first
// successful load, and is returned for display only.
func (s *Store) Open(ctx context.Context) error {
	loaded, err := s.persister.LoadExpenses(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		slog.Error("Failed to load expenses, keeping the current collection", "error", err, "count", len(s.items))
		return fmt.Errorf("failed to load expenses: %w", err)
	}

	s.items = make([]model.Expense, 0, len(loaded))
	for _, e := range loaded {
		s.items = append(s.items, e.Clone())
	}
	slog.Debug("Loaded expenses", "count", len(s.items))
	return nil
}

// Settings returns the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces the settings used by later operations. Events that
// were already published keep the reminder time recorded on their expense.
func (s *Store) UpdateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Create adds an expense, or a monthly series of count expenses when
// recurring is set, and publishes reminders for everything it created.
func (s *Store) Create(ctx context.Context, tpl model.Template, anchor model.Date, recurring bool, count int) ([]model.Expense, error) {
	if !recurring {
		count = 1
	}

	created, err := s.expander.Expand(tpl, anchor, count)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.settings.ReminderTime
	publishing := s.calendarEnabledLocked()
	for i := range created {
		if publishing {
			rt, day := at, created[i].Date
			created[i].Reminder = &rt
			created[i].PublishedOn = &day
		}
		s.items = append(s.items, created[i].Clone())
	}

	s.persistLocked(ctx)
	if publishing {
		events := cloneAll(created)
		s.dispatchLocked(ctx, "publish", func(ctx context.Context) error {
			return s.exporter.Publish(ctx, events, at)
		})
	}

	slog.Info("Created expenses", "count", len(created), "recurring", count > 1)
	return cloneAll(created), nil
}

// MarkPaid marks one expense paid and cancels its reminder. Paying an
// already paid expense changes nothing.
func (s *Store) MarkPaid(ctx context.Context, id string) (model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Expense{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.items[idx].IsPaid {
		return s.items[idx].Clone(), nil
	}

	s.items[idx].IsPaid = true
	paid := s.items[idx].Clone()

	s.persistLocked(ctx)
	s.cancelLocked(ctx, []model.Expense{paid})
	return paid, nil
}

// MarkAllPaid marks every unpaid member of id's series paid and returns the
// members that changed.
func (s *Store) MarkAllPaid(ctx context.Context, id string) ([]model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rid, err := s.groupLocked(id)
	if err != nil {
		return nil, err
	}

	var changed []model.Expense
	for i := range s.items {
		if s.items[i].InGroup(rid) && !s.items[i].IsPaid {
			s.items[i].IsPaid = true
			changed = append(changed, s.items[i].Clone())
		}
	}
	if len(changed) == 0 {
		return []model.Expense{}, nil
	}

	s.persistLocked(ctx)
	s.cancelLocked(ctx, changed)
	return cloneAll(changed), nil
}

// Delete removes one expense and cancels its reminder.
func (s *Store) Delete(ctx context.Context, id string) (model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Expense{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	removed := s.items[idx].Clone()
	s.items = slices.Delete(s.items, idx, idx+1)

	s.persistLocked(ctx)
	s.cancelLocked(ctx, []model.Expense{removed})
	return removed, nil
}

// DeleteAllRecurring removes every member of id's series and cancels each.
func (s *Store) DeleteAllRecurring(ctx context.Context, id string) ([]model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rid, err := s.groupLocked(id)
	if err != nil {
		return nil, err
	}

	var removed []model.Expense
	kept := s.items[:0]
	for _, e := range s.items {
		if e.InGroup(rid) {
			removed = append(removed, e.Clone())
			continue
		}
		kept = append(kept, e)
	}
	clear(s.items[len(kept):])
	s.items = kept

	s.persistLocked(ctx)
	s.cancelLocked(ctx, removed)
	return cloneAll(removed), nil
}

// Update merges patch into the expense. Series membership and paid state are
// never touched and no calendar documents are emitted; a later cancel still
// targets the date and time the event was published with.
func (s *Store) Update(ctx context.Context, id string, patch model.Patch) (model.Expense, error) {
	if patch.IsEmpty() {
		return model.Expense{}, ErrEmptyPatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Expense{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := patch.Apply(s.items[idx])
	if err := updated.Validate(); err != nil {
		return model.Expense{}, err
	}
	s.items[idx] = updated

	s.persistLocked(ctx)
	return updated.Clone(), nil
}

// RecordPublished notes that expenses were published at the given time of day
// on their current dates, so later cancels match what calendars hold. IDs no
// longer in the store are ignored.
func (s *Store) RecordPublished(ctx context.Context, expenses []model.Expense, at model.ReminderTime) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, e := range expenses {
		idx := s.indexLocked(e.ID)
		if idx < 0 {
			continue
		}
		rt, day := at, s.items[idx].Date
		s.items[idx].Reminder = &rt
		s.items[idx].PublishedOn = &day
		changed = true
	}
	if changed {
		s.persistLocked(ctx)
	}
}

// Clear removes every expense without emitting cancellations.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if err := s.persister.ClearExpenses(ctx); err != nil {
		return fmt.Errorf("failed to clear expenses: %w", err)
	}
	return nil
}

// Wait blocks until every dispatched calendar export has finished.
func (s *Store) Wait() {
	s.exports.Wait()
}

// Close waits for pending exports.
func (s *Store) Close() error {
	s.Wait()
	return nil
}

func (s *Store) calendarEnabledLocked() bool {
	return s.exporter != nil && s.settings.CalendarEnabled
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(e model.Expense) bool { return e.ID == id })
}

func (s *Store) groupLocked(id string) (string, error) {
	idx := s.indexLocked(id)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := s.items[idx]
	if !e.IsRecurring || e.RecurrenceID == nil {
		return "", fmt.Errorf("%w: %s", ErrNotRecurring, id)
	}
	return *e.RecurrenceID, nil
}

func (s *Store) persistLocked(ctx context.Context) {
	snapshot := cloneAll(s.items)
	if err := s.persister.SaveExpenses(ctx, snapshot); err != nil {
		slog.Error("Failed to persist expenses", "error", err, "count", len(snapshot))
	}
}

// cancelLocked emits cancellations using the reminder time each expense was
// published with. Expenses sharing a time go out in one document.
func (s *Store) cancelLocked(ctx context.Context, expenses []model.Expense) {
	if !s.calendarEnabledLocked() || len(expenses) == 0 {
		return
	}

	current := s.settings.ReminderTime
	var order []model.ReminderTime
	byTime := make(map[model.ReminderTime][]model.Expense)
	for _, e := range expenses {
		at := current
		if e.Reminder != nil {
			at = *e.Reminder
		}
		if _, ok := byTime[at]; !ok {
			order = append(order, at)
		}
		byTime[at] = append(byTime[at], e.Clone())
	}

	for _, at := range order {
		batch := byTime[at]
		s.dispatchLocked(ctx, "cancel", func(ctx context.Context) error {
			return s.exporter.Cancel(ctx, batch, at)
		})
	}
}

// dispatchLocked runs fn in the background. Exports run one at a time in the
// order they were dispatched so a cancel never overtakes its publish.
func (s *Store) dispatchLocked(ctx context.Context, op string, fn func(context.Context) error) {
	prev := s.lastExport
	done := make(chan struct{})
	s.lastExport = done

	s.exports.Add(1)
	go func() {
		defer s.exports.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}

		exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
		defer cancel()
		if err := fn(exportCtx); err != nil {
			slog.Warn("Calendar export failed", "operation", op, "error", err)
		}
	}()
}

func cloneAll(expenses []model.Expense) []model.Expense {
	out := make([]model.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = e.Clone()
	}
	return out
}
