package recurrence

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/teambition/rrule-go"
)

// Rule describes the series Expand would produce as an RFC 5545 RRULE.
// Anchors past the 28th list every candidate day from 28 up to the anchor
// day and keep the last one that exists, which is the month-end clamp.
func Rule(anchor model.Date, count int) (*rrule.RRule, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if !anchor.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAnchor, anchor)
	}

	opt := rrule.ROption{
		Freq:    rrule.MONTHLY,
		Count:   count,
		Dtstart: time.Date(anchor.Year, anchor.Month, anchor.Day, 0, 0, 0, 0, time.UTC),
	}
	if anchor.Day <= 28 {
		opt.Bymonthday = []int{anchor.Day}
	} else {
		for d := 28; d <= anchor.Day; d++ {
			opt.Bymonthday = append(opt.Bymonthday, d)
		}
		opt.Bysetpos = []int{-1}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}
	return r, nil
}

// RuleString returns the RRULE value (without DTSTART) for display.
func RuleString(anchor model.Date, count int) (string, error) {
	r, err := Rule(anchor, count)
	if err != nil {
		return "", err
	}
	return r.OrigOptions.RRuleString(), nil
}

// Dates lists the occurrence dates of the rule.
func Dates(r *rrule.RRule) []model.Date {
	times := r.All()
	out := make([]model.Date, 0, len(times))
	for _, t := range times {
		out = append(out, model.DateOf(t))
	}
	return out
}
