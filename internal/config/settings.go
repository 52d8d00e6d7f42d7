package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/spf13/viper"
)

// Config keys.
const (
	KeyDatabasePath         = "database.path"
	KeyReminderTime         = "reminder.time"
	KeyReminderPoll         = "reminder.poll"
	KeyNotificationsEnabled = "notifications.enabled"
	KeyNotificationsCommand = "notifications.command"
	KeyCalendarEnabled      = "calendar.enabled"
	KeyCalendarSink         = "calendar.sink"
	KeyCalendarDir          = "calendar.dir"
	KeyCalendarDomain       = "calendar.domain"
	KeyCalendarProductID    = "calendar.prodid"
	KeyAMQPURL              = "amqp.url"
	KeyAMQPExchange         = "amqp.exchange"
	KeyAMQPQueue            = "amqp.queue"
	KeyGoogleCalendarID     = "google.calendar_id"
	KeyGoogleServiceAccount = "google.service_account_path"
	KeyGoogleClientID       = "google.client_id"
	KeyGoogleClientSecret   = "google.client_secret"
	KeyGoogleRefreshToken   = "google.refresh_token"
	KeyGoogleTimeZone       = "google.time_zone"
	KeyNumberTitles         = "recurrence.number_titles"
	KeyServeListen          = "serve.listen"
	KeyLoggingLevel         = "logging.level"
	KeyLoggingFormat        = "logging.format"
)

// Calendar sinks.
const (
	SinkDir    = "dir"
	SinkStdout = "stdout"
	SinkAMQP   = "amqp"
	SinkGoogle = "google"
	SinkNone   = "none"
)

// Sinks lists the accepted calendar.sink values.
var Sinks = []string{SinkDir, SinkStdout, SinkAMQP, SinkGoogle, SinkNone}

// secretKeys are masked by `pay settings show`.
var secretKeys = []string{KeyGoogleClientSecret, KeyGoogleRefreshToken}

var defaults = map[string]any{
	KeyDatabasePath:         "~/.local/share/pay/pay.db",
	KeyReminderTime:         model.DefaultReminderTime.String(),
	KeyReminderPoll:         "@every 10s",
	KeyNotificationsEnabled: false,
	KeyNotificationsCommand: "",
	KeyCalendarEnabled:      true,
	KeyCalendarSink:         SinkDir,
	KeyCalendarDir:          "~/Downloads",
	KeyCalendarDomain:       "expense-tracker",
	KeyCalendarProductID:    "-//Expense Tracker//TR",
	KeyAMQPURL:              "",
	KeyAMQPExchange:         "pay",
	KeyAMQPQueue:            "pay.calendar",
	KeyGoogleCalendarID:     "primary",
	KeyGoogleServiceAccount: "",
	KeyGoogleClientID:       "",
	KeyGoogleClientSecret:   "",
	KeyGoogleRefreshToken:   "",
	KeyGoogleTimeZone:       "",
	KeyNumberTitles:         false,
	KeyServeListen:          "127.0.0.1:8080",
	KeyLoggingLevel:         "info",
	KeyLoggingFormat:        "console",
}

// Keys returns every known key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsKey reports whether key is a known setting.
func IsKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// IsSecret reports whether key holds a credential that should not be shown.
func IsSecret(key string) bool {
	return slices.Contains(secretKeys, key)
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Settings is the validated configuration.
type Settings struct {
	DatabasePath  string
	ServeListen   string
	Reminder      ReminderSettings
	Notifications NotificationSettings
	Calendar      CalendarSettings
	AMQP          AMQPSettings
	Google        GoogleSettings
	NumberTitles  bool
}

// ReminderSettings configure the daily check.
type ReminderSettings struct {
	Poll string
	Time model.ReminderTime
}

// NotificationSettings configure how reminders reach the user.
type NotificationSettings struct {
	// Command runs an external notifier; empty prints to the terminal.
	Command string
	Enabled bool
}

// CalendarSettings configure calendar exports.
type CalendarSettings struct {
	Sink      string
	Dir       string
	Domain    string
	ProductID string
	Enabled   bool
}

// AMQPSettings configure the amqp calendar sink.
type AMQPSettings struct {
	URL      string
	Exchange string
	Queue    string
}

// GoogleSettings configure the google calendar sink. Either a service
// account key or an OAuth2 client with a refresh token is required.
type GoogleSettings struct {
	CalendarID         string
	ServiceAccountPath string
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	TimeZone           string
}

// Load reads and validates settings from v. Defaults apply to unset keys.
func Load(v *viper.Viper) (Settings, error) {
	SetDefaults(v)

	rt, err := model.ParseReminderTime(v.GetString(KeyReminderTime))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyReminderTime, err)
	}

	s := Settings{
		DatabasePath: ExpandPath(v.GetString(KeyDatabasePath)),
		ServeListen:  v.GetString(KeyServeListen),
		NumberTitles: v.GetBool(KeyNumberTitles),
		Reminder: ReminderSettings{
			Time: rt,
			Poll: strings.TrimSpace(v.GetString(KeyReminderPoll)),
		},
		Notifications: NotificationSettings{
			Enabled: v.GetBool(KeyNotificationsEnabled),
			Command: strings.TrimSpace(v.GetString(KeyNotificationsCommand)),
		},
		Calendar: CalendarSettings{
			Enabled:   v.GetBool(KeyCalendarEnabled),
			Sink:      strings.ToLower(strings.TrimSpace(v.GetString(KeyCalendarSink))),
			Dir:       ExpandPath(v.GetString(KeyCalendarDir)),
			Domain:    v.GetString(KeyCalendarDomain),
			ProductID: v.GetString(KeyCalendarProductID),
		},
		AMQP: AMQPSettings{
			URL:      v.GetString(KeyAMQPURL),
			Exchange: v.GetString(KeyAMQPExchange),
			Queue:    v.GetString(KeyAMQPQueue),
		},
		Google: GoogleSettings{
			CalendarID:         strings.TrimSpace(v.GetString(KeyGoogleCalendarID)),
			ServiceAccountPath: ExpandPath(v.GetString(KeyGoogleServiceAccount)),
			ClientID:           v.GetString(KeyGoogleClientID),
			ClientSecret:       v.GetString(KeyGoogleClientSecret),
			RefreshToken:       v.GetString(KeyGoogleRefreshToken),
			TimeZone:           strings.TrimSpace(v.GetString(KeyGoogleTimeZone)),
		},
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks cross-field constraints.
func (s Settings) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyDatabasePath)
	}
	if !slices.Contains(Sinks, s.Calendar.Sink) {
		return fmt.Errorf("%w: %s must be one of %s, got %q",
			common.ErrInvalidConfig, KeyCalendarSink, strings.Join(Sinks, ", "), s.Calendar.Sink)
	}
	if s.Calendar.Domain == "" {
		return fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyCalendarDomain)
	}
	if s.Calendar.Enabled {
		switch s.Calendar.Sink {
		case SinkDir:
			if s.Calendar.Dir == "" {
				return fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyCalendarDir)
			}
		case SinkAMQP:
			if s.AMQP.URL == "" {
				return fmt.Errorf("%w: %s is required for the amqp sink", common.ErrMissingConfig, KeyAMQPURL)
			}
			if s.AMQP.Exchange == "" || s.AMQP.Queue == "" {
				return fmt.Errorf("%w: %s and %s", common.ErrMissingConfig, KeyAMQPExchange, KeyAMQPQueue)
			}
		case SinkGoogle:
			g := s.Google
			if g.ServiceAccountPath == "" && (g.ClientID == "" || g.ClientSecret == "" || g.RefreshToken == "") {
				return fmt.Errorf("%w: the google sink needs %s or %s, %s and %s", common.ErrMissingConfig,
					KeyGoogleServiceAccount, KeyGoogleClientID, KeyGoogleClientSecret, KeyGoogleRefreshToken)
			}
			if g.TimeZone != "" {
				if _, err := time.LoadLocation(g.TimeZone); err != nil {
					return fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyGoogleTimeZone, err)
				}
			}
		}
	}
	return nil
}

// Set validates value for key on a copy of v's settings and then applies it.
func Set(v *viper.Viper, key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("%w: unknown key %q", common.ErrInvalidConfig, key)
	}

	trial := viper.New()
	for _, k := range Keys() {
		if v.IsSet(k) {
			trial.Set(k, v.Get(k))
		}
	}
	trial.Set(key, value)
	if _, err := Load(trial); err != nil {
		return err
	}

	v.Set(key, value)
	return nil
}

// EnvKeyReplacer maps "calendar.sink" to PAY_CALENDAR_SINK.
var EnvKeyReplacer = strings.NewReplacer(".", "_")
