package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/Veraticus/the-spice-must-pay/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrGoogleCredentials is returned when neither a service account nor an
// OAuth2 refresh token is configured.
var ErrGoogleCredentials = errors.New("google calendar credentials are missing")

// GoogleConfig selects the calendar and the credentials used to write to it.
type GoogleConfig struct {
	CalendarID         string
	ServiceAccountPath string
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	TimeZone           string
}

// Validate checks that one way of authenticating is configured.
func (c GoogleConfig) Validate() error {
	if c.ServiceAccountPath != "" {
		return nil
	}
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return fmt.Errorf("%w: set a service account path or client id, client secret and refresh token", ErrGoogleCredentials)
	}
	return nil
}

// googleEvents is the part of the Calendar API the sink needs.
type googleEvents interface {
	Import(ctx context.Context, calendarID string, ev *gcal.Event) error
	DeleteByICalUID(ctx context.Context, calendarID, uid string) (int, error)
}

// GoogleSink applies documents to a Google Calendar. Published events are
// imported under their iCalUID and cancelled ones are deleted by it.
type GoogleSink struct {
	api        googleEvents
	location   *time.Location
	calendarID string
	timeZone   string
	retry      service.RetryOptions
}

// NewGoogleSink authenticates with a service account key when one is
// configured, otherwise with an OAuth2 refresh token.
func NewGoogleSink(ctx context.Context, cfg GoogleConfig) (*GoogleSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var tokenSource oauth2.TokenSource
	if cfg.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(cfg.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, gcal.CalendarEventsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarEventsScope},
		}
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: cfg.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	srv, err := gcal.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %w", err)
	}

	return newGoogleSink(&eventsService{srv: srv}, cfg), nil
}

func newGoogleSink(api googleEvents, cfg GoogleConfig) *GoogleSink {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	loc := time.Local
	if cfg.TimeZone != "" {
		if l, err := time.LoadLocation(cfg.TimeZone); err == nil {
			loc = l
		} else {
			slog.Warn("Unknown time zone, using local time", "time_zone", cfg.TimeZone, "error", err)
		}
	}
	return &GoogleSink{
		api:        api,
		calendarID: calendarID,
		location:   loc,
		timeZone:   cfg.TimeZone,
		retry:      common.DefaultRetryOptions,
	}
}

// Deliver parses body and imports or deletes each of its events.
func (s *GoogleSink) Deliver(ctx context.Context, name string, body []byte) error {
	doc, err := Parse(bytes.NewReader(body), s.location)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	for _, ev := range doc.Events {
		var op func() error
		switch doc.Method {
		case MethodCancel:
			op = func() error {
				removed, err := s.api.DeleteByICalUID(ctx, s.calendarID, ev.UID)
				if err == nil {
					slog.Debug("Deleted calendar event", "uid", ev.UID, "removed", removed)
				}
				return classifyGoogleError(err)
			}
		default:
			gev := s.toGoogleEvent(ev)
			op = func() error {
				return classifyGoogleError(s.api.Import(ctx, s.calendarID, gev))
			}
		}
		if err := common.WithRetry(ctx, op, s.retry); err != nil {
			return fmt.Errorf("google calendar %s of %s: %w", strings.ToLower(string(doc.Method)), ev.UID, err)
		}
	}

	slog.Debug("Applied calendar document to Google Calendar",
		"file", name,
		"method", doc.Method,
		"events", len(doc.Events))
	return nil
}

func (s *GoogleSink) toGoogleEvent(ev Event) *gcal.Event {
	start := ev.Start.In(s.location)
	out := &gcal.Event{
		ICalUID:      ev.UID,
		Summary:      ev.Summary,
		Description:  ev.Description,
		Status:       strings.ToLower(string(ev.Status)),
		Transparency: strings.ToLower(ev.Transparency),
		Sequence:     int64(ev.Sequence),
		Start:        &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: s.timeZone},
		End:          &gcal.EventDateTime{DateTime: start.Add(ev.Duration).Format(time.RFC3339), TimeZone: s.timeZone},
		Reminders:    &gcal.EventReminders{UseDefault: false, ForceSendFields: []string{"UseDefault"}},
	}
	if ev.Alarm != nil {
		out.Reminders.Overrides = []*gcal.EventReminder{{
			Method:          "popup",
			Minutes:         0,
			ForceSendFields: []string{"Minutes"},
		}}
	}
	return out
}

// classifyGoogleError stops retries for client errors other than rate limits.
func classifyGoogleError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
		return common.Permanent(err)
	}
	return err
}

// eventsService adapts *gcal.Service to googleEvents.
type eventsService struct {
	srv *gcal.Service
}

func (e *eventsService) Import(ctx context.Context, calendarID string, ev *gcal.Event) error {
	_, err := e.srv.Events.Import(calendarID, ev).Context(ctx).Do()
	return err
}

// DeleteByICalUID removes every instance carrying uid. Events that are
// already gone count as deleted.
func (e *eventsService) DeleteByICalUID(ctx context.Context, calendarID, uid string) (int, error) {
	list, err := e.srv.Events.List(calendarID).ICalUID(uid).Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, item := range list.Items {
		err := e.srv.Events.Delete(calendarID, item.Id).Context(ctx).Do()
		if err != nil && !isGone(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone)
}
