// Package recurrence turns an expense template into a dated monthly series.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/google/uuid"
)

// Expansion errors.
var (
	ErrInvalidCount  = errors.New("occurrence count must be at least 1")
	ErrInvalidAnchor = errors.New("invalid anchor date")
)

// Expander produces expense records from a template. The zero value is usable.
type Expander struct {
	// NewID generates record and series identifiers. Defaults to random UUIDs.
	NewID func() string
	// Now stamps CreatedAt. Defaults to time.Now.
	Now func() time.Time
	// NumberTitles appends " (k/N)" to each member title of a series.
	NumberTitles bool
}

// Expand creates count records from tpl, the first dated anchor and each
// following one a month later. Dates are always derived from anchor so a
// series starting on the 31st returns to the 31st after short months.
// A count of 1 yields a single non-recurring record.
func (x *Expander) Expand(tpl model.Template, anchor model.Date, count int) ([]model.Expense, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if !anchor.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAnchor, anchor)
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	newID := x.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := time.Now
	if x.Now != nil {
		now = x.Now
	}
	createdAt := now()

	if count == 1 {
		return []model.Expense{newRecord(tpl, newID(), anchor, createdAt)}, nil
	}

	groupID := newID()
	out := make([]model.Expense, 0, count)
	for k := 0; k < count; k++ {
		rec := newRecord(tpl, newID(), anchor.AddMonths(k), createdAt)
		rid := groupID
		rec.RecurrenceID = &rid
		rec.IsRecurring = true
		if x.NumberTitles {
			rec.Title = fmt.Sprintf("%s (%d/%d)", tpl.Title, k+1, count)
		}
		out = append(out, rec)
	}
	return out, nil
}

func newRecord(tpl model.Template, id string, date model.Date, createdAt time.Time) model.Expense {
	return model.Expense{
		ID:        id,
		Date:      date,
		Amount:    tpl.Amount,
		Currency:  tpl.Currency,
		Category:  tpl.Category,
		Title:     tpl.Title,
		CreatedAt: createdAt,
	}
}
