// Package calendar maps expenses to iCalendar events and delivers the
// resulting documents.
package calendar

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
)

// Method is the iTIP method of a document.
type Method string

// Supported methods.
const (
	MethodPublish Method = "PUBLISH"
	MethodCancel  Method = "CANCEL"
)

// Status is the VEVENT STATUS value.
type Status string

// Event statuses.
const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Defaults shared by every generated event.
const (
	DefaultDomain    = "expense-tracker"
	DefaultProductID = "-//Expense Tracker//TR"
	EventDuration    = time.Hour
	TransparencyBusy = "OPAQUE"

	cancelSummary     = "CANCELLED"
	cancelDescription = "Cancelled"
)

// Alarm is a VALARM attached to a published event.
type Alarm struct {
	Trigger     string
	Action      string
	Description string
}

// Event is a complete description of one VEVENT. A calendar client links a
// cancel to its publish by UID, so UID must depend only on the expense ID.
type Event struct {
	Stamp        time.Time // DTSTAMP, serialized in UTC
	Start        time.Time // DTSTART, serialized as floating local time
	Alarm        *Alarm
	UID          string
	Summary      string
	Description  string
	Status       Status
	Transparency string
	Duration     time.Duration
	Sequence     int
}

// Codec builds events for expenses.
type Codec struct {
	Now      func() time.Time
	Location *time.Location
	Domain   string
}

// NewCodec returns a codec whose UIDs end in @domain.
func NewCodec(domain string) *Codec {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Codec{Domain: domain, Now: time.Now, Location: time.Local}
}

// UID returns the stable event identifier for an expense ID.
func (c *Codec) UID(expenseID string) string {
	domain := c.Domain
	if domain == "" {
		domain = DefaultDomain
	}
	return expenseID + "@" + domain
}

// EncodePublish describes the reminder event for e at the given time of day.
func (c *Codec) EncodePublish(e model.Expense, at model.ReminderTime) Event {
	ev := c.base(e.ID, e.Date, at)
	ev.Summary = fmt.Sprintf("%s - %s %s", e.Title, e.Amount.String(), e.Currency)
	ev.Description = fmt.Sprintf("Kategori: %s\nÖdeme Hatırlatması", e.Category)
	ev.Sequence = 0
	ev.Status = StatusConfirmed
	ev.Alarm = &Alarm{Trigger: "-PT0M", Action: "DISPLAY", Description: "Reminder"}
	return ev
}

// EncodeCancel describes the cancellation of the event EncodePublish made for e.
// at must be the time of day the event was published with; the day comes from
// e.EventDate so an edited date still matches the published start.
func (c *Codec) EncodeCancel(e model.Expense, at model.ReminderTime) Event {
	ev := c.base(e.ID, e.EventDate(), at)
	ev.Summary = cancelSummary
	ev.Description = cancelDescription
	ev.Sequence = 1
	ev.Status = StatusCancelled
	return ev
}

func (c *Codec) base(id string, day model.Date, at model.ReminderTime) Event {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return Event{
		UID:          c.UID(id),
		Stamp:        now().UTC(),
		Start:        day.At(at, c.Location),
		Duration:     EventDuration,
		Transparency: TransparencyBusy,
	}
}

// Document is a VCALENDAR holding one or more events under a single method.
type Document struct {
	Method    Method
	ProductID string
	Events    []Event
}

// PublishDocument wraps events in a PUBLISH document.
func PublishDocument(events ...Event) Document {
	return Document{Method: MethodPublish, ProductID: DefaultProductID, Events: events}
}

// CancelDocument wraps events in a CANCEL document.
func CancelDocument(events ...Event) Document {
	return Document{Method: MethodCancel, ProductID: DefaultProductID, Events: events}
}
