package expense

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/Veraticus/the-spice-must-pay/internal/recurrence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPersister struct {
	saveErr error
	loadErr error
	saved   []model.Expense
	saves   int
	mu      sync.Mutex
}

func (m *memoryPersister) SaveExpenses(_ context.Context, expenses []model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = expenses
	return nil
}

func (m *memoryPersister) LoadExpenses(context.Context) ([]model.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.saved, nil
}

func (m *memoryPersister) ClearExpenses(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = nil
	return nil
}

type exportCall struct {
	method   string
	expenses []model.Expense
	at       model.ReminderTime
}

type recordingExporter struct {
	err   error
	calls []exportCall
	mu    sync.Mutex
}

func (r *recordingExporter) Publish(_ context.Context, expenses []model.Expense, at model.ReminderTime) error {
	return r.record("publish", expenses, at)
}

func (r *recordingExporter) Cancel(_ context.Context, expenses []model.Expense, at model.ReminderTime) error {
	return r.record("cancel", expenses, at)
}

func (r *recordingExporter) record(method string, expenses []model.Expense, at model.ReminderTime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, exportCall{method: method, expenses: expenses, at: at})
	return r.err
}

func (r *recordingExporter) snapshot() []exportCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]exportCall(nil), r.calls...)
}

func (r *recordingExporter) cancelledIDs() []string {
	var ids []string
	for _, c := range r.snapshot() {
		if c.method != "cancel" {
			continue
		}
		for _, e := range c.expenses {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T) (*Store, *memoryPersister, *recordingExporter) {
	t.Helper()
	persister := &memoryPersister{}
	exporter := &recordingExporter{}
	store := NewStore(persister,
		WithExporter(exporter),
		WithExpander(&recurrence.Expander{NewID: sequentialIDs()}),
	)
	require.NoError(t, store.Open(context.Background()))
	return store, persister, exporter
}

func rent() model.Template {
	return model.Template{
		Amount:   decimal.NewFromInt(12000),
		Title:    "Rent",
		Currency: model.CurrencyTRY,
		Category: model.CategoryRent,
	}
}

func TestStore_CreateSingle(t *testing.T) {
	store, persister, exporter := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), false, 12)
	require.NoError(t, err)
	store.Wait()

	require.Len(t, created, 1, "non-recurring ignores count")
	assert.False(t, created[0].IsRecurring)
	require.NotNil(t, created[0].Reminder)
	assert.Equal(t, model.DefaultReminderTime, *created[0].Reminder)

	assert.Len(t, store.All(), 1)
	assert.Len(t, persister.saved, 1)

	calls := exporter.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "publish", calls[0].method)
	assert.Equal(t, created[0].ID, calls[0].expenses[0].ID)
}

func TestStore_CreateRecurring(t *testing.T) {
	store, _, exporter := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, rent(), model.MustDate(2025, time.January, 31), true, 3)
	require.NoError(t, err)
	store.Wait()

	require.Len(t, created, 3)
	assert.Equal(t, model.MustDate(2025, time.February, 28), created[1].Date)
	assert.Equal(t, model.MustDate(2025, time.March, 31), created[2].Date)

	calls := exporter.snapshot()
	require.Len(t, calls, 1, "a series is published as one document")
	assert.Len(t, calls[0].expenses, 3)
}

func TestStore_CreateInvalid(t *testing.T) {
	store, persister, exporter := newTestStore(t)

	tpl := rent()
	tpl.Amount = decimal.Zero
	_, err := store.Create(context.Background(), tpl, model.MustDate(2025, time.March, 5), false, 1)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = store.Create(context.Background(), rent(), model.MustDate(2025, time.March, 5), true, 0)
	assert.ErrorIs(t, err, recurrence.ErrInvalidCount)

	store.Wait()
	assert.Empty(t, store.All())
	assert.Zero(t, persister.saves)
	assert.Empty(t, exporter.snapshot())
}

func TestStore_MarkPaid(t *testing.T) {
	store, _, exporter := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), false, 1)
	require.NoError(t, err)
	id := created[0].ID

	paid, err := store.MarkPaid(ctx, id)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)

	again, err := store.MarkPaid(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.IsPaid)
	store.Wait()

	assert.Equal(t, []string{id}, exporter.cancelledIDs(), "second MarkPaid must not cancel again")

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)

	_, err = store.MarkPaid(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MarkAllPaid(t *testing.T) {
	store, _, exporter := newTestStore(t)
	ctx := context.Background()

	series, err := store.Create(ctx, rent(), model.MustDate(2025, time.January, 10), true, 4)
	require.NoError(t, err)
	other, err := store.Create(ctx, rent(), model.MustDate(2025, time.January, 10), false, 1)
	require.NoError(t, err)

	_, err = store.MarkPaid(ctx, series[1].ID)
	require.NoError(t, err)

	changed, err := store.MarkAllPaid(ctx, series[3].ID)
	require.NoError(t, err)
	store.Wait()

	assert.Len(t, changed, 3, "already paid member is not reported again")
	for _, e := range store.All() {
		if e.InGroup(*series[0].RecurrenceID) {
			assert.True(t, e.IsPaid, e.ID)
		} else {
			assert.False(t, e.IsPaid, e.ID)
		}
	}
	assert.ElementsMatch(t,
		[]string{series[1].ID, series[0].ID, series[2].ID, series[3].ID},
		exporter.cancelledIDs())

	_, err = store.MarkAllPaid(ctx, other[0].ID)
	assert.ErrorIs(t, err, ErrNotRecurring)
	got, err := store.Get(other[0].ID)
	require.NoError(t, err)
	assert.False(t, got.IsPaid, "non-recurring record must be left untouched")
}

func TestStore_Delete(t *testing.T) {
	store, persister, exporter := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), false, 1)
	require.NoError(t, err)
	_, err = store.MarkPaid(ctx, created[0].ID)
	require.NoError(t, err)

	removed, err := store.Delete(ctx, created[0].ID)
	require.NoError(t, err)
	store.Wait()

	assert.Equal(t, created[0].ID, removed.ID)
	assert.Empty(t, store.All())
	assert.Empty(t, persister.saved)
	assert.Equal(t, []string{created[0].ID, created[0].ID}, exporter.cancelledIDs(), "delete always cancels")

	_, err = store.Delete(ctx, created[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteAllRecurring(t *testing.T) {
	store, _, exporter := newTestStore(t)
	ctx := context.Background()

	series, err := store.Create(ctx, rent(), model.MustDate(2025, time.January, 10), true, 3)
	require.NoError(t, err)
	other, err := store.Create(ctx, rent(), model.MustDate(2025, time.February, 10), true, 2)
	require.NoError(t, err)

	removed, err := store.DeleteAllRecurring(ctx, series[1].ID)
	require.NoError(t, err)
	store.Wait()

	assert.Len(t, removed, 3)
	remaining := store.All()
	require.Len(t, remaining, 2)
	for _, e := range remaining {
		assert.True(t, e.InGroup(*other[0].RecurrenceID))
	}
	assert.ElementsMatch(t, []string{series[0].ID, series[1].ID, series[2].ID}, exporter.cancelledIDs())

	single, err := store.Create(ctx, rent(), model.MustDate(2025, time.February, 10), false, 1)
	require.NoError(t, err)
	_, err = store.DeleteAllRecurring(ctx, single[0].ID)
	assert.ErrorIs(t, err, ErrNotRecurring)
	assert.Len(t, store.All(), 3)
}

func TestStore_Update(t *testing.T) {
	store, persister, exporter := newTestStore(t)
	ctx := context.Background()

	series, err := store.Create(ctx, rent(), model.MustDate(2025, time.January, 10), true, 2)
	require.NoError(t, err)
	store.Wait()
	callsBefore := len(exporter.snapshot())

	title := "Flat rent"
	amount := decimal.NewFromInt(13000)
	updated, err := store.Update(ctx, series[0].ID, model.Patch{Title: &title, Amount: &amount})
	require.NoError(t, err)
	store.Wait()

	assert.Equal(t, "Flat rent", updated.Title)
	assert.True(t, amount.Equal(updated.Amount))
	assert.True(t, updated.IsRecurring)
	assert.Equal(t, *series[0].RecurrenceID, *updated.RecurrenceID)
	assert.Len(t, exporter.snapshot(), callsBefore, "update emits no calendar documents")

	second, err := store.Get(series[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent", second.Title, "update touches one member only")

	saved := persister.saved
	require.Len(t, saved, 2)

	empty := ""
	_, err = store.Update(ctx, series[0].ID, model.Patch{Title: &empty})
	assert.ErrorIs(t, err, model.ErrEmptyTitle)

	_, err = store.Update(ctx, series[0].ID, model.Patch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)

	_, err = store.Update(ctx, "missing", model.Patch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CancelUsesPublishTimeReminder(t *testing.T) {
	store, _, exporter := newTestStore(t)
	ctx := context.Background()

	store.UpdateSettings(Settings{ReminderTime: model.ReminderTime{Hour: 8}, CalendarEnabled: true})
	created, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), false, 1)
	require.NoError(t, err)

	store.UpdateSettings(Settings{ReminderTime: model.ReminderTime{Hour: 20}, CalendarEnabled: true})
	_, err = store.MarkPaid(ctx, created[0].ID)
	require.NoError(t, err)
	store.Wait()

	calls := exporter.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, model.ReminderTime{Hour: 8}, calls[0].at)
	assert.Equal(t, "cancel", calls[1].method)
	assert.Equal(t, model.ReminderTime{Hour: 8}, calls[1].at)
}

func TestStore_CalendarDisabled(t *testing.T) {
	store, _, exporter := newTestStore(t)
	ctx := context.Background()
	store.UpdateSettings(Settings{ReminderTime: model.DefaultReminderTime, CalendarEnabled: false})

	created, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), false, 1)
	require.NoError(t, err)
	assert.Nil(t, created[0].Reminder)

	_, err = store.Delete(ctx, created[0].ID)
	require.NoError(t, err)
	store.Wait()

	assert.Empty(t, exporter.snapshot())
}

func TestStore_FailuresAreSwallowed(t *testing.T) {
	store, persister, exporter := newTestStore(t)
	ctx := context.Background()
	persister.saveErr = errors.New("disk full")
	exporter.err = errors.New("sink offline")

	created, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), true, 2)
	require.NoError(t, err)
	_, err = store.MarkPaid(ctx, created[0].ID)
	require.NoError(t, err)
	store.Wait()

	assert.Len(t, store.All(), 2, "memory stays authoritative")
	got, err := store.Get(created[0].ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
}

func TestStore_ExportsKeepOrder(t *testing.T) {
	store, _, exporter := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		created, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), false, 1)
		require.NoError(t, err)
		_, err = store.Delete(ctx, created[0].ID)
		require.NoError(t, err)
	}
	store.Wait()

	calls := exporter.snapshot()
	require.Len(t, calls, 40)
	for i := 0; i < len(calls); i += 2 {
		assert.Equal(t, "publish", calls[i].method)
		assert.Equal(t, "cancel", calls[i+1].method)
		assert.Equal(t, calls[i].expenses[0].ID, calls[i+1].expenses[0].ID)
	}
}

func TestStore_Open(t *testing.T) {
	persister := &memoryPersister{}
	first := NewStore(persister, WithExpander(&recurrence.Expander{NewID: sequentialIDs()}))
	require.NoError(t, first.Open(context.Background()))
	_, err := first.Create(context.Background(), rent(), model.MustDate(2025, time.March, 5), true, 3)
	require.NoError(t, err)

	second := NewStore(persister)
	require.NoError(t, second.Open(context.Background()))
	assert.Len(t, second.All(), 3)

	broken := NewStore(&memoryPersister{loadErr: errors.New("corrupt")})
	assert.Error(t, broken.Open(context.Background()))
	assert.Empty(t, broken.All())
}

func TestStore_ReloadFailureKeepsCollection(t *testing.T) {
	ctx := context.Background()
	persister := &memoryPersister{}
	writer := NewStore(persister, WithExpander(&recurrence.Expander{NewID: sequentialIDs()}))
	_, err := writer.Create(ctx, rent(), model.MustDate(2025, time.March, 5), true, 2)
	require.NoError(t, err)

	reader := NewStore(persister)
	require.NoError(t, reader.Open(ctx))
	require.Len(t, reader.All(), 2)

	persister.mu.Lock()
	persister.loadErr = errors.New("database is locked")
	persister.mu.Unlock()

	assert.Error(t, reader.Open(ctx))
	assert.Len(t, reader.All(), 2)
	assert.Len(t, reader.DueOn(model.MustDate(2025, time.March, 5)), 1)
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), true, 2)
	require.NoError(t, err)

	created[0].Title = "mutated"
	*created[0].RecurrenceID = "mutated"

	got, err := store.Get(created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent", got.Title)
	assert.NotEqual(t, "mutated", *got.RecurrenceID)
}

func TestStore_Clear(t *testing.T) {
	store, persister, exporter := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, rent(), model.MustDate(2025, time.March, 5), true, 2)
	require.NoError(t, err)
	store.Wait()

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, store.All())
	assert.Nil(t, persister.saved)
	assert.Len(t, exporter.snapshot(), 1, "clear emits no cancellations")
}

func TestStore_CreateLeapYearSeries(t *testing.T) {
	store, persister, _ := newTestStore(t)

	created, err := store.Create(context.Background(), rent(), model.MustDate(2024, time.January, 31), true, 4)
	require.NoError(t, err)
	store.Wait()

	want := []model.Date{
		model.MustDate(2024, time.January, 31),
		model.MustDate(2024, time.February, 29),
		model.MustDate(2024, time.March, 31),
		model.MustDate(2024, time.April, 30),
	}
	require.Len(t, created, len(want))
	for i, e := range created {
		assert.Equal(t, want[i], e.Date)
		assert.True(t, e.IsRecurring)
		assert.Equal(t, *created[0].RecurrenceID, *e.RecurrenceID)
	}
	assert.Len(t, persister.saved, 4)
}

func TestStore_CancelTargetsPublishedDate(t *testing.T) {
	store, _, exporter := newTestStore(t)
	ctx := context.Background()
	published := model.MustDate(2024, time.January, 15)

	created, err := store.Create(ctx, rent(), published, false, 1)
	require.NoError(t, err)
	require.NotNil(t, created[0].PublishedOn)
	assert.Equal(t, published, *created[0].PublishedOn)

	moved := model.MustDate(2024, time.January, 20)
	updated, err := store.Update(ctx, created[0].ID, model.Patch{Date: &moved})
	require.NoError(t, err)
	assert.Equal(t, moved, updated.Date)
	assert.Equal(t, published, updated.EventDate())

	_, err = store.MarkPaid(ctx, created[0].ID)
	require.NoError(t, err)
	store.Wait()

	calls := exporter.snapshot()
	require.Len(t, calls, 2)
	cancelled := calls[1].expenses[0]
	assert.Equal(t, "cancel", calls[1].method)
	assert.Equal(t, moved, cancelled.Date)
	assert.Equal(t, published, cancelled.EventDate())
}

func TestStore_RecordPublished(t *testing.T) {
	store, persister, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, rent(), model.MustDate(2024, time.May, 2), false, 1)
	require.NoError(t, err)
	moved := model.MustDate(2024, time.May, 9)
	updated, err := store.Update(ctx, created[0].ID, model.Patch{Date: &moved})
	require.NoError(t, err)

	evening := model.ReminderTime{Hour: 19, Minute: 30}
	store.RecordPublished(ctx, []model.Expense{updated, {ID: "gone"}}, evening)

	got, err := store.Get(created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, moved, got.EventDate())
	require.NotNil(t, got.Reminder)
	assert.Equal(t, evening, *got.Reminder)

	require.Len(t, persister.saved, 1)
	require.NotNil(t, persister.saved[0].PublishedOn)
	assert.Equal(t, moved, *persister.saved[0].PublishedOn)
}
