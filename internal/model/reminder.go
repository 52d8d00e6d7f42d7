package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidReminderTime is returned for anything that is not a valid HH:MM.
var ErrInvalidReminderTime = errors.New("invalid reminder time")

// ReminderTime is a wall-clock time of day used for calendar events and the
// daily notification.
type ReminderTime struct {
	Hour   int
	Minute int
}

// DefaultReminderTime is used until the user picks another one.
var DefaultReminderTime = ReminderTime{Hour: 9, Minute: 0}

// ParseReminderTime parses "HH:MM" (a single-digit hour is accepted).
func ParseReminderTime(s string) (ReminderTime, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hs) == 0 || len(hs) > 2 || len(ms) != 2 {
		return ReminderTime{}, fmt.Errorf("%w: %q", ErrInvalidReminderTime, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return ReminderTime{}, fmt.Errorf("%w: %q", ErrInvalidReminderTime, s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return ReminderTime{}, fmt.Errorf("%w: %q", ErrInvalidReminderTime, s)
	}
	return ReminderTime{Hour: h, Minute: m}, nil
}

// Matches reports whether t is within the minute named by r.
func (r ReminderTime) Matches(t time.Time) bool {
	return t.Hour() == r.Hour && t.Minute() == r.Minute
}

func (r ReminderTime) String() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// MarshalText implements encoding.TextMarshaler.
func (r ReminderTime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ReminderTime) UnmarshalText(b []byte) error {
	parsed, err := ParseReminderTime(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
