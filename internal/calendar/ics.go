package calendar

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// Codec errors.
var (
	ErrEmptyDocument = errors.New("calendar document has no events")
	ErrMissingUID    = errors.New("event has no UID")
	ErrBadDuration   = errors.New("unsupported duration")
)

const (
	floatingLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// Property names without a stable constant in the ical package.
const (
	propDuration ical.ComponentProperty = "DURATION"
	propTransp   ical.ComponentProperty = "TRANSP"
	propAction   ical.ComponentProperty = "ACTION"
	propTrigger  ical.ComponentProperty = "TRIGGER"
	propDtStamp  ical.ComponentProperty = "DTSTAMP"
)

// Render serializes doc as an RFC 5545 calendar with CRLF line endings.
func Render(doc Document) ([]byte, error) {
	if len(doc.Events) == 0 {
		return nil, ErrEmptyDocument
	}

	cal := ical.NewCalendar()
	productID := doc.ProductID
	if productID == "" {
		productID = DefaultProductID
	}
	cal.SetProductId(productID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.Method(doc.Method))

	for i, ev := range doc.Events {
		if ev.UID == "" {
			return nil, fmt.Errorf("event %d: %w", i, ErrMissingUID)
		}

		ve := cal.AddEvent(ev.UID)
		ve.SetProperty(propDtStamp, ev.Stamp.UTC().Format(utcLayout))
		ve.SetProperty(ical.ComponentPropertyDtStart, ev.Start.Format(floatingLayout))
		ve.SetProperty(propDuration, formatDuration(ev.Duration))
		ve.SetSummary(ev.Summary)
		ve.SetDescription(ev.Description)
		ve.SetProperty(ical.ComponentPropertySequence, strconv.Itoa(ev.Sequence))
		ve.SetProperty(ical.ComponentPropertyStatus, string(ev.Status))
		if ev.Transparency != "" {
			ve.SetProperty(propTransp, ev.Transparency)
		}

		if ev.Alarm != nil {
			alarm := ve.AddAlarm()
			alarm.SetProperty(propTrigger, ev.Alarm.Trigger)
			alarm.SetProperty(propAction, ev.Alarm.Action)
			alarm.SetProperty(ical.ComponentPropertyDescription, ev.Alarm.Description)
		}
	}

	return []byte(cal.Serialize(ical.WithNewLineWindows)), nil
}

// Parse reads a calendar produced by Render (or any compatible client).
// Floating DTSTART values are interpreted in loc.
func Parse(r io.Reader, loc *time.Location) (Document, error) {
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return Document{}, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var doc Document
	for _, p := range cal.CalendarProperties {
		switch strings.ToUpper(p.IANAToken) {
		case "METHOD":
			doc.Method = Method(strings.ToUpper(p.Value))
		case "PRODID":
			doc.ProductID = p.Value
		}
	}

	for i, ve := range cal.Events() {
		ev, err := parseEvent(ve, loc)
		if err != nil {
			return Document{}, fmt.Errorf("event %d: %w", i, err)
		}
		doc.Events = append(doc.Events, ev)
	}

	if len(doc.Events) == 0 {
		return Document{}, ErrEmptyDocument
	}
	return doc, nil
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (Event, error) {
	var ev Event

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, ErrMissingUID
	}
	ev.UID = uid.Value

	if p := ve.GetProperty(propDtStamp); p != nil {
		if t, err := time.Parse(utcLayout, p.Value); err == nil {
			ev.Stamp = t
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		t, err := parseDateTime(p.Value, loc)
		if err != nil {
			return ev, fmt.Errorf("invalid DTSTART %q: %w", p.Value, err)
		}
		ev.Start = t
	}
	if p := ve.GetProperty(propDuration); p != nil {
		d, err := parseDuration(p.Value)
		if err != nil {
			return ev, err
		}
		ev.Duration = d
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			ev.Sequence = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		ev.Status = Status(strings.ToUpper(p.Value))
	}
	if p := ve.GetProperty(propTransp); p != nil {
		ev.Transparency = p.Value
	}

	for _, sub := range ve.Components {
		alarm, ok := sub.(*ical.VAlarm)
		if !ok {
			continue
		}
		ev.Alarm = &Alarm{}
		if p := alarm.GetProperty(propTrigger); p != nil {
			ev.Alarm.Trigger = p.Value
		}
		if p := alarm.GetProperty(propAction); p != nil {
			ev.Alarm.Action = p.Value
		}
		if p := alarm.GetProperty(ical.ComponentPropertyDescription); p != nil {
			ev.Alarm.Description = unescapeText(p.Value)
		}
		break
	}

	return ev, nil
}

func parseDateTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, "Z") {
		return time.Parse(utcLayout, v)
	}
	return time.ParseInLocation(floatingLayout, v, loc)
}

// formatDuration renders whole-second durations as an RFC 5545 dur-time.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "PT0S"
	}
	var b strings.Builder
	b.WriteString("PT")
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s > 0 || (h == 0 && m == 0) {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}

func parseDuration(v string) (time.Duration, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(v), "PT")
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, v)
	}
	d, err := time.ParseDuration(strings.ToLower(rest))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, v)
	}
	return d, nil
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
