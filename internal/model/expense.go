// Package model defines the core domain types: expenses, dates and reminder times.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation errors.
var (
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrEmptyTitle      = errors.New("title cannot be empty")
	ErrEmptyCategory   = errors.New("category cannot be empty")
	ErrInvalidExpense  = errors.New("invalid expense")
)

// Currency is an ISO 4217 code. Amounts are never converted between currencies.
type Currency string

// Supported currencies.
const (
	CurrencyTRY Currency = "TRY"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Currencies lists every accepted currency in display order.
var Currencies = []Currency{CurrencyTRY, CurrencyUSD, CurrencyEUR}

// ParseCurrency normalizes s and checks it against Currencies.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return c, nil
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return slices.Contains(Currencies, c)
}

// Category labels an expense. Any non-empty label is allowed; the built-in
// ones are offered as suggestions.
type Category string

// Built-in categories.
const (
	CategoryRent       Category = "Kira"
	CategoryDues       Category = "Aidat"
	CategoryDebt       Category = "Borç"
	CategoryCreditCard Category = "Kredi Kartı"
	CategoryLoan       Category = "Kredi"
	CategoryBill       Category = "Fatura"
	CategoryGroceries  Category = "Market"
	CategoryTransport  Category = "Ulaşım"
	CategoryHealth     Category = "Sağlık"
	CategoryLeisure    Category = "Eğlence"
	CategoryHoliday    Category = "Tatil"
	CategoryOther      Category = "Diğer"
)

// Categories lists the built-in categories in display order.
var Categories = []Category{
	CategoryRent, CategoryDues, CategoryDebt, CategoryCreditCard,
	CategoryLoan, CategoryBill, CategoryGroceries, CategoryTransport,
	CategoryHealth, CategoryLeisure, CategoryHoliday, CategoryOther,
}

// Expense is a single dated payment obligation. Members of a monthly series
// share a RecurrenceID and differ only by date (and an optional title suffix).
type Expense struct {
	CreatedAt    time.Time       `json:"createdAt"`
	Reminder     *ReminderTime   `json:"reminder,omitempty"`    // reminder time the calendar event was published with
	PublishedOn  *Date           `json:"publishedOn,omitempty"` // date the calendar event was published with
	RecurrenceID *string         `json:"recurrenceId,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Date         Date            `json:"date"`
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Currency     Currency        `json:"currency"`
	Category     Category        `json:"category"`
	IsRecurring  bool            `json:"isRecurring"`
	IsPaid       bool            `json:"isPaid"`
}

// Validate checks the record's own invariants.
func (e Expense) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidExpense)
	}
	if !e.Date.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidExpense, ErrInvalidDate)
	}
	if err := e.Template().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExpense, err)
	}
	if e.IsRecurring && (e.RecurrenceID == nil || *e.RecurrenceID == "") {
		return fmt.Errorf("%w: recurring expense without recurrence ID", ErrInvalidExpense)
	}
	return nil
}

// EventDate is the day the calendar event was published on. It differs from
// Date only after an edit moved an already published expense.
func (e Expense) EventDate() Date {
	if e.PublishedOn != nil {
		return *e.PublishedOn
	}
	return e.Date
}

// Template returns the fields shared by every member of e's series.
func (e Expense) Template() Template {
	return Template{
		Amount:   e.Amount,
		Title:    e.Title,
		Currency: e.Currency,
		Category: e.Category,
	}
}

// InGroup reports whether e belongs to the series identified by recurrenceID.
func (e Expense) InGroup(recurrenceID string) bool {
	return e.RecurrenceID != nil && *e.RecurrenceID == recurrenceID
}

// Clone returns a copy that shares no pointers with e.
func (e Expense) Clone() Expense {
	out := e
	if e.RecurrenceID != nil {
		rid := *e.RecurrenceID
		out.RecurrenceID = &rid
	}
	if e.Reminder != nil {
		rt := *e.Reminder
		out.Reminder = &rt
	}
	if e.PublishedOn != nil {
		d := *e.PublishedOn
		out.PublishedOn = &d
	}
	return out
}

// Template is the user-entered part of an expense before it is dated.
type Template struct {
	Amount   decimal.Decimal
	Title    string
	Currency Currency
	Category Category
}

// Validate rejects templates the store must never see.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(string(t.Category)) == "" {
		return ErrEmptyCategory
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Currency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, t.Currency)
	}
	return nil
}

// Patch is a partial update. Nil fields are left alone; series membership and
// paid state cannot be patched.
type Patch struct {
	Date     *Date
	Amount   *decimal.Decimal
	Currency *Currency
	Category *Category
	Title    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Date == nil && p.Amount == nil && p.Currency == nil && p.Category == nil && p.Title == nil
}

// Apply returns e with the patch merged in.
func (p Patch) Apply(e Expense) Expense {
	out := e.Clone()
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Currency != nil {
		out.Currency = *p.Currency
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	return out
}
