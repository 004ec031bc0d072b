// Package config loads and validates the dispatcher configuration.
//
// Configuration comes from two layers: environment variables carry
// credentials and deployment-specific endpoints, and an optional YAML file
// carries the settings operators tune between releases (cadences, window
// tolerance, template names). YAML values override environment defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bookbell/internal/domain/entity"
	pkgconfig "bookbell/pkg/config"
)

// Store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Cadence disciplines.
const (
	DisciplineInterval = "interval"
	DisciplineAligned  = "aligned"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "15m" or "1h30m". yaml.v3 only decodes integers into time.Duration,
// which reads as nanoseconds and is never what an operator means.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full dispatcher configuration.
type Config struct {
	// Timezone is the IANA zone tenants schedule appointments in.
	Timezone string `yaml:"timezone"`

	// ToleranceMinutes is the half-width of the reminder firing window.
	ToleranceMinutes int `yaml:"tolerance_minutes"`

	Reminder     Cadence `yaml:"reminder"`
	Confirmation Cadence `yaml:"confirmation"`

	Provider ProviderConfig `yaml:"provider"`
	Store    StoreConfig    `yaml:"store"`

	Email    EmailConfig    `yaml:"email"`
	SMS      SMSConfig      `yaml:"sms"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`

	Templates TemplatesConfig `yaml:"templates"`

	HTTP   HTTPConfig `yaml:"http"`
	Health AddrConfig `yaml:"health"`
}

// Cadence describes one campaign's poll schedule.
type Cadence struct {
	// Discipline is "interval" (first run at startup, then every period)
	// or "aligned" (runs on wall-clock slot boundaries).
	Discipline string `yaml:"discipline"`

	// Every is the poll period; for the aligned discipline it is the slot
	// size and must divide an hour evenly.
	Every Duration `yaml:"every"`
}

// ProviderConfig points at the booking platform API.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"-"`
}

// StoreConfig selects and configures the idempotency store backend.
type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend string `yaml:"backend"`

	// Dir is the state directory for the file backend.
	Dir string `yaml:"dir"`

	// DatabaseURL is the connection string for the postgres backend.
	DatabaseURL string `yaml:"-"`
}

// EmailConfig configures the transactional email channel.
type EmailConfig struct {
	Enabled     bool     `yaml:"enabled"`
	APIURL      string   `yaml:"api_url"`
	APIKey      string   `yaml:"-"`
	FromAddress string   `yaml:"from_address"`
	Timeout     Duration `yaml:"timeout"`
}

// SMSConfig configures the SMS gateway channel.
type SMSConfig struct {
	Enabled     bool     `yaml:"enabled"`
	APIURL      string   `yaml:"api_url"`
	APIKey      string   `yaml:"-"`
	SenderID    string   `yaml:"sender_id"`
	CountryCode string   `yaml:"country_code"`
	Timeout     Duration `yaml:"timeout"`
}

// WhatsAppConfig configures the WhatsApp Business API channel.
type WhatsAppConfig struct {
	Enabled     bool     `yaml:"enabled"`
	APIURL      string   `yaml:"api_url"`
	Token       string   `yaml:"-"`
	CountryCode string   `yaml:"country_code"`
	Timeout     Duration `yaml:"timeout"`
}

// TemplatesConfig names the approved WhatsApp templates.
type TemplatesConfig struct {
	WhatsAppReminder     string `yaml:"whatsapp_reminder"`
	WhatsAppConfirmation string `yaml:"whatsapp_confirmation"`
}

// HTTPConfig configures the control-plane API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`

	// SharedSecret authenticates booking platform calls to the notify
	// endpoints. Empty disables the control-plane server.
	SharedSecret string `yaml:"-"`
}

// AddrConfig is a bare listen address.
type AddrConfig struct {
	Addr string `yaml:"addr"`
}

// Load builds the configuration from environment variables, then overlays
// the YAML file named by CONFIG_FILE when set. Validation failures are
// returned aggregated so one restart surfaces every problem at once.
func Load() (*Config, error) {
	cfg := fromEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Timezone:         pkgconfig.GetEnvString("TIMEZONE", "Asia/Jerusalem"),
		ToleranceMinutes: pkgconfig.GetEnvInt("WINDOW_TOLERANCE_MINUTES", 60),
		Reminder: Cadence{
			Discipline: pkgconfig.GetEnvString("REMINDER_DISCIPLINE", DisciplineInterval),
			Every:      Duration(pkgconfig.GetEnvDuration("REMINDER_EVERY", time.Hour)),
		},
		Confirmation: Cadence{
			Discipline: pkgconfig.GetEnvString("CONFIRMATION_DISCIPLINE", DisciplineInterval),
			Every:      Duration(pkgconfig.GetEnvDuration("CONFIRMATION_EVERY", 5*time.Minute)),
		},
		Provider: ProviderConfig{
			BaseURL: pkgconfig.GetEnvString("PROVIDER_BASE_URL", ""),
			Token:   pkgconfig.GetEnvString("PROVIDER_TOKEN", ""),
		},
		Store: StoreConfig{
			Backend:     pkgconfig.GetEnvString("STORE_BACKEND", StoreFile),
			Dir:         pkgconfig.GetEnvString("STORE_DIR", "./state"),
			DatabaseURL: pkgconfig.GetEnvString("DATABASE_URL", ""),
		},
		Email: EmailConfig{
			Enabled:     pkgconfig.GetEnvBool("EMAIL_ENABLED", false),
			APIURL:      pkgconfig.GetEnvString("EMAIL_API_URL", ""),
			APIKey:      pkgconfig.GetEnvString("EMAIL_API_KEY", ""),
			FromAddress: pkgconfig.GetEnvString("EMAIL_FROM_ADDRESS", ""),
			Timeout:     Duration(pkgconfig.GetEnvDuration("EMAIL_TIMEOUT", 10*time.Second)),
		},
		SMS: SMSConfig{
			Enabled:     pkgconfig.GetEnvBool("SMS_ENABLED", false),
			APIURL:      pkgconfig.GetEnvString("SMS_API_URL", ""),
			APIKey:      pkgconfig.GetEnvString("SMS_API_KEY", ""),
			SenderID:    pkgconfig.GetEnvString("SMS_SENDER_ID", "BookBell"),
			CountryCode: pkgconfig.GetEnvString("SMS_COUNTRY_CODE", "972"),
			Timeout:     Duration(pkgconfig.GetEnvDuration("SMS_TIMEOUT", 10*time.Second)),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:     pkgconfig.GetEnvBool("WHATSAPP_ENABLED", false),
			APIURL:      pkgconfig.GetEnvString("WHATSAPP_API_URL", ""),
			Token:       pkgconfig.GetEnvString("WHATSAPP_TOKEN", ""),
			CountryCode: pkgconfig.GetEnvString("WHATSAPP_COUNTRY_CODE", "972"),
			Timeout:     Duration(pkgconfig.GetEnvDuration("WHATSAPP_TIMEOUT", 10*time.Second)),
		},
		Templates: TemplatesConfig{
			WhatsAppReminder:     pkgconfig.GetEnvString("WHATSAPP_TEMPLATE_REMINDER", "appointment_reminder"),
			WhatsAppConfirmation: pkgconfig.GetEnvString("WHATSAPP_TEMPLATE_CONFIRMATION", "appointment_confirmation"),
		},
		HTTP: HTTPConfig{
			Addr:         pkgconfig.GetEnvString("HTTP_ADDR", ":8080"),
			SharedSecret: pkgconfig.GetEnvString("NOTIFY_SHARED_SECRET", ""),
		},
		Health: AddrConfig{
			Addr: pkgconfig.GetEnvString("HEALTH_ADDR", ":8081"),
		},
	}
}

// applyFile overlays YAML values onto the env-derived config. Secrets never
// come from the file; their fields are excluded from unmarshalling.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// Validate aggregates every configuration problem into one error.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	if c.ToleranceMinutes < 1 || c.ToleranceMinutes > 180 {
		errs = append(errs, fmt.Errorf("WINDOW_TOLERANCE_MINUTES must be in [1, 180], got %d", c.ToleranceMinutes))
	}

	errs = append(errs, c.Reminder.validate("reminder")...)
	errs = append(errs, c.Confirmation.validate("confirmation")...)

	if c.Provider.BaseURL == "" {
		errs = append(errs, errors.New("PROVIDER_BASE_URL is required"))
	}
	if c.Provider.Token == "" {
		errs = append(errs, errors.New("PROVIDER_TOKEN is required"))
	}

	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("STORE_DIR is required for the file backend"))
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreFile, StorePostgres, c.Store.Backend))
	}

	// A channel left disabled is fine (tenants on it are skipped and
	// logged); a channel enabled without credentials is a deployment
	// mistake that would fail on the first send, so it fails fast here.
	if c.Email.Enabled {
		if c.Email.APIURL == "" || c.Email.APIKey == "" || c.Email.FromAddress == "" {
			errs = append(errs, errors.New("email enabled but EMAIL_API_URL, EMAIL_API_KEY or EMAIL_FROM_ADDRESS is missing"))
		}
		if err := pkgconfig.ValidatePositiveDuration(c.Email.Timeout.Std()); err != nil {
			errs = append(errs, fmt.Errorf("EMAIL_TIMEOUT: %w", err))
		}
	}
	if c.SMS.Enabled {
		if c.SMS.APIURL == "" || c.SMS.APIKey == "" {
			errs = append(errs, errors.New("sms enabled but SMS_API_URL or SMS_API_KEY is missing"))
		}
		if err := pkgconfig.ValidatePositiveDuration(c.SMS.Timeout.Std()); err != nil {
			errs = append(errs, fmt.Errorf("SMS_TIMEOUT: %w", err))
		}
	}
	if c.WhatsApp.Enabled {
		if c.WhatsApp.APIURL == "" || c.WhatsApp.Token == "" {
			errs = append(errs, errors.New("whatsapp enabled but WHATSAPP_API_URL or WHATSAPP_TOKEN is missing"))
		}
		if c.Templates.WhatsAppReminder == "" || c.Templates.WhatsAppConfirmation == "" {
			errs = append(errs, errors.New("whatsapp enabled but template names are missing"))
		}
		if err := pkgconfig.ValidatePositiveDuration(c.WhatsApp.Timeout.Std()); err != nil {
			errs = append(errs, fmt.Errorf("WHATSAPP_TIMEOUT: %w", err))
		}
	}

	if !c.Email.Enabled && !c.SMS.Enabled && !c.WhatsApp.Enabled {
		errs = append(errs, errors.New("no delivery channel is enabled"))
	}

	return errors.Join(errs...)
}

func (cad Cadence) validate(name string) []error {
	var errs []error
	switch cad.Discipline {
	case DisciplineInterval, DisciplineAligned:
	default:
		errs = append(errs, fmt.Errorf("%s discipline must be %q or %q, got %q",
			name, DisciplineInterval, DisciplineAligned, cad.Discipline))
	}
	if err := pkgconfig.ValidateDurationRange(cad.Every.Std(), time.Minute, 24*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("%s cadence: %w", name, err))
	}
	return errs
}

// Location resolves the configured timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EnabledChannels lists the channels with a configured sender, for the
// startup log line.
func (c *Config) EnabledChannels() []entity.Channel {
	var chs []entity.Channel
	if c.Email.Enabled {
		chs = append(chs, entity.ChannelEmail)
	}
	if c.SMS.Enabled {
		chs = append(chs, entity.ChannelSMS)
	}
	if c.WhatsApp.Enabled {
		chs = append(chs, entity.ChannelWhatsApp)
	}
	return chs
}
