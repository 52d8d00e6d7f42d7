package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
)

// ErrNoExpenses is returned when a document is requested for nothing.
var ErrNoExpenses = errors.New("no expenses to export")

// File is a rendered document ready for delivery.
type File struct {
	Name string
	Body []byte
}

// Exporter renders expense documents and hands them to a Sink.
type Exporter struct {
	Codec     *Codec
	Sink      Sink
	Now       func() time.Time
	ProductID string
}

// NewExporter returns an exporter delivering to sink.
func NewExporter(codec *Codec, sink Sink) *Exporter {
	if codec == nil {
		codec = NewCodec(DefaultDomain)
	}
	if sink == nil {
		sink = DiscardSink{}
	}
	return &Exporter{Codec: codec, Sink: sink, Now: time.Now, ProductID: DefaultProductID}
}

// Build renders one document covering expenses.
func (x *Exporter) Build(method Method, expenses []model.Expense, at model.ReminderTime) (File, error) {
	if len(expenses) == 0 {
		return File{}, ErrNoExpenses
	}

	events := make([]Event, 0, len(expenses))
	for _, e := range expenses {
		if method == MethodCancel {
			events = append(events, x.Codec.EncodeCancel(e, at))
		} else {
			events = append(events, x.Codec.EncodePublish(e, at))
		}
	}

	doc := Document{Method: method, ProductID: x.ProductID, Events: events}
	body, err := Render(doc)
	if err != nil {
		return File{}, err
	}

	return File{Name: Filename(doc, expenses[0].Title, expenses[0].ID, x.now()), Body: body}, nil
}

// Publish delivers a PUBLISH document for expenses.
func (x *Exporter) Publish(ctx context.Context, expenses []model.Expense, at model.ReminderTime) error {
	return x.deliver(ctx, MethodPublish, expenses, at)
}

// Cancel delivers a CANCEL document for expenses. at must match the time the
// events were published with, or clients will keep the original.
func (x *Exporter) Cancel(ctx context.Context, expenses []model.Expense, at model.ReminderTime) error {
	return x.deliver(ctx, MethodCancel, expenses, at)
}

func (x *Exporter) deliver(ctx context.Context, method Method, expenses []model.Expense, at model.ReminderTime) error {
	f, err := x.Build(method, expenses, at)
	if err != nil {
		return err
	}
	if err := x.Sink.Deliver(ctx, f.Name, f.Body); err != nil {
		return fmt.Errorf("failed to deliver %s: %w", f.Name, err)
	}
	return nil
}

func (x *Exporter) now() time.Time {
	if x.Now != nil {
		return x.Now()
	}
	return time.Now()
}
