package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMarker struct {
	values map[string]string
	getErr error
	mu     sync.Mutex
}

func newMemoryMarker() *memoryMarker {
	return &memoryMarker{values: make(map[string]string)}
}

func (m *memoryMarker) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryMarker) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryMarker) CompareAndSwapSetting(_ context.Context, key, prev, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[key] != prev {
		return false, nil
	}
	m.values[key] = next
	return true, nil
}

func (m *memoryMarker) DeleteSetting(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type staticDue struct {
	expenses []model.Expense
	day      model.Date
}

func (s *staticDue) DueOn(day model.Date) []model.Expense {
	if !s.day.IsZero() && day != s.day {
		return nil
	}
	return s.expenses
}

type fakeNotifier struct {
	err        error
	permission Permission
	bodies     []string
	calls      atomic.Int32
	mu         sync.Mutex
}

func (f *fakeNotifier) Permission(context.Context) Permission {
	if f.permission == "" {
		return PermissionGranted
	}
	return f.permission
}

func (f *fakeNotifier) Notify(_ context.Context, _, body string) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	return f.err
}

func dueExpense(title, amount string, currency model.Currency) model.Expense {
	return model.Expense{
		ID:       title,
		Title:    title,
		Amount:   decimal.RequireFromString(amount),
		Currency: currency,
		Category: model.CategoryBill,
		Date:     model.MustDate(2025, time.March, 10),
	}
}

var (
	checkDay  = model.MustDate(2025, time.March, 10)
	atNine    = time.Date(2025, time.March, 10, 9, 0, 30, 0, time.Local)
	enabledAt = Settings{Enabled: true, Time: model.DefaultReminderTime}
)

func TestChecker_Check(t *testing.T) {
	oneDue := []model.Expense{dueExpense("Power", "450.25", model.CurrencyTRY)}

	tests := []struct {
		name       string
		settings   Settings
		now        time.Time
		ignoreTime bool
		marker     string
		due        []model.Expense
		permission Permission
		want       Outcome
	}{
		{name: "disabled", settings: Settings{Time: model.DefaultReminderTime}, now: atNine, due: oneDue, want: OutcomeDisabled},
		{name: "wrong minute", settings: enabledAt, now: atNine.Add(time.Minute), due: oneDue, want: OutcomeNotYet},
		{name: "wrong minute ignored", settings: enabledAt, now: atNine.Add(3 * time.Hour), ignoreTime: true, due: oneDue, want: OutcomeNotified},
		{name: "already notified", settings: enabledAt, now: atNine, marker: "2025-03-10", due: oneDue, want: OutcomeAlreadyNotified},
		{name: "notified yesterday", settings: enabledAt, now: atNine, marker: "2025-03-09", due: oneDue, want: OutcomeNotified},
		{name: "nothing due", settings: enabledAt, now: atNine, want: OutcomeNothingDue},
		{name: "permission denied", settings: enabledAt, now: atNine, due: oneDue, permission: PermissionDenied, want: OutcomeNoPermission},
		{name: "permission default", settings: enabledAt, now: atNine, due: oneDue, permission: PermissionDefault, want: OutcomeNoPermission},
		{name: "notified", settings: enabledAt, now: atNine, due: oneDue, want: OutcomeNotified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker := newMemoryMarker()
			if tt.marker != "" {
				marker.values[MarkerKey] = tt.marker
			}
			notifier := &fakeNotifier{permission: tt.permission}
			checker := NewChecker(&staticDue{expenses: tt.due, day: checkDay}, marker, notifier, tt.settings)

			res, err := checker.Check(context.Background(), tt.now, tt.ignoreTime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)

			if tt.want == OutcomeNotified {
				assert.EqualValues(t, 1, notifier.calls.Load())
				assert.Equal(t, "2025-03-10", marker.values[MarkerKey])
				assert.Equal(t, Title, res.Title)
			} else {
				assert.Zero(t, notifier.calls.Load())
			}
		})
	}
}

func TestChecker_OncePerDay(t *testing.T) {
	marker := newMemoryMarker()
	notifier := &fakeNotifier{}
	due := &staticDue{expenses: []model.Expense{dueExpense("Rent", "12000", model.CurrencyTRY)}}
	checker := NewChecker(due, marker, notifier, enabledAt)
	ctx := context.Background()

	first, err := checker.Check(ctx, atNine, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, first.Outcome)

	second, err := checker.Check(ctx, atNine.Add(10*time.Second), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyNotified, second.Outcome)

	next, err := checker.Check(ctx, atNine.AddDate(0, 0, 1), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, next.Outcome)
	assert.EqualValues(t, 2, notifier.calls.Load())
}

func TestChecker_ConcurrentChecksNotifyOnce(t *testing.T) {
	marker := newMemoryMarker()
	notifier := &fakeNotifier{}
	due := &staticDue{expenses: []model.Expense{dueExpense("Rent", "12000", model.CurrencyTRY)}}
	checker := NewChecker(due, marker, notifier, enabledAt)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := checker.Check(context.Background(), atNine, false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, notifier.calls.Load())
}

func TestChecker_NotifyFailureReleasesDay(t *testing.T) {
	marker := newMemoryMarker()
	marker.values[MarkerKey] = "2025-03-09"
	notifier := &fakeNotifier{err: errors.New("dbus unavailable")}
	due := &staticDue{expenses: []model.Expense{dueExpense("Rent", "12000", model.CurrencyTRY)}}
	checker := NewChecker(due, marker, notifier, enabledAt)
	ctx := context.Background()

	_, err := checker.Check(ctx, atNine, false)
	require.Error(t, err)
	assert.Equal(t, "2025-03-09", marker.values[MarkerKey], "claim is rolled back")

	notifier.err = nil
	res, err := checker.Check(ctx, atNine, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, res.Outcome)
}

func TestChecker_MarkerReadError(t *testing.T) {
	marker := newMemoryMarker()
	marker.getErr = errors.New("locked")
	checker := NewChecker(&staticDue{}, marker, &fakeNotifier{}, enabledAt)

	_, err := checker.Check(context.Background(), atNine, false)
	assert.Error(t, err)
}

func TestChecker_ResetMarker(t *testing.T) {
	marker := newMemoryMarker()
	marker.values[MarkerKey] = "2025-03-10"
	notifier := &fakeNotifier{}
	due := &staticDue{expenses: []model.Expense{dueExpense("Rent", "12000", model.CurrencyTRY)}}
	checker := NewChecker(due, marker, notifier, enabledAt)
	ctx := context.Background()

	res, err := checker.Check(ctx, atNine, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyNotified, res.Outcome)

	require.NoError(t, checker.ResetMarker(ctx))
	res, err = checker.Check(ctx, atNine, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, res.Outcome)
}

func TestChecker_SetSettings(t *testing.T) {
	checker := NewChecker(&staticDue{}, newMemoryMarker(), &fakeNotifier{}, Settings{})
	res, err := checker.Check(context.Background(), atNine, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisabled, res.Outcome)

	checker.SetSettings(enabledAt)
	assert.Equal(t, enabledAt, checker.Settings())
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		due  []model.Expense
		want string
	}{
		{
			name: "single expense uses its title",
			due:  []model.Expense{dueExpense("Power", "450.25", model.CurrencyTRY)},
			want: "Payment due today: Power - Total: 450.25 TRY",
		},
		{
			name: "several expenses are counted",
			due: []model.Expense{
				dueExpense("Power", "450.25", model.CurrencyTRY),
				dueExpense("Water", "99.75", model.CurrencyTRY),
			},
			want: "Payment due today: 2 expenses - Total: 550 TRY",
		},
		{
			name: "currencies are never mixed",
			due: []model.Expense{
				dueExpense("Rent", "12000", model.CurrencyTRY),
				dueExpense("Music", "9.99", model.CurrencyUSD),
			},
			want: "Payment due today: 2 expenses - Total: 12000 TRY, 9.99 USD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.due))
		})
	}
}
