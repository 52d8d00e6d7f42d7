package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseReminderTime(t *testing.T) {
	tests := []struct {
		input    string
		expected ReminderTime
		wantErr  bool
	}{
		{input: "09:00", expected: ReminderTime{Hour: 9}},
		{input: "9:05", expected: ReminderTime{Hour: 9, Minute: 5}},
		{input: "23:59", expected: ReminderTime{Hour: 23, Minute: 59}},
		{input: " 00:00 ", expected: ReminderTime{}},
		{input: "24:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "12:5", wantErr: true},
		{input: "noon", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseReminderTime(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReminderTime)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReminderTime_Matches(t *testing.T) {
	rt := ReminderTime{Hour: 9, Minute: 0}

	assert.True(t, rt.Matches(time.Date(2025, 1, 1, 9, 0, 45, 0, time.Local)))
	assert.False(t, rt.Matches(time.Date(2025, 1, 1, 9, 1, 0, 0, time.Local)))
	assert.Equal(t, "09:00", rt.String())
}
