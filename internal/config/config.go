// Package config loads and validates the INI configuration file every
// entrypoint starts from, failing fast with a named-key error if something
// required is missing rather than constructing anything else half-wired.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Default is the config path used when no CLI argument overrides it.
const Default = "config.ini"

// ErrMissingKey reports a required key that was absent or empty.
type ErrMissingKey struct {
	Section, Key string
}

func (e *ErrMissingKey) Error() string {
	return fmt.Sprintf("config: missing required key %s.%s", e.Section, e.Key)
}

type Database struct {
	Host                     string
	Port                     string
	User                     string
	Password                 string
	Name                     string
	UsePersistentConnection  bool
}

type Email struct {
	SMTPServer        string
	SMTPPort          string
	AuthUser          string
	AuthPassword      string
	FromAddress       string
	ToAddress         string
	CCAddress         string
	BCCAddress        string
	ReplyTo           string
	WeakCertificate   bool
}

type Logging struct {
	Level  string // critical|error|warning|info|debug
	Format string // text|json
}

type Display struct {
	Driver     string // auto|dotstar|neopixel
	LEDCount   int
	SleepColor string // hex RRGGBB
}

type Watchdog struct {
	Enabled bool
}

// Config is the fully parsed and validated configuration tree.
type Config struct {
	Database Database
	Email    Email
	Logging  Logging
	Display  Display
	Watchdog Watchdog
}

// Load parses path and validates every required key, following the
// teacher's parse-then-validate two-phase pattern.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (*Config, error) {
	cfg := &Config{
		Database: Database{
			Host:                    f.Section("db").Key("host").String(),
			Port:                    f.Section("db").Key("port").String(),
			User:                    f.Section("db").Key("user").String(),
			Password:                f.Section("db").Key("password").String(),
			Name:                    f.Section("db").Key("database").String(),
			UsePersistentConnection: f.Section("db").Key("use_persistent_connection").MustBool(false),
		},
		Email: Email{
			SMTPServer:      f.Section("email").Key("smtp_server").String(),
			SMTPPort:        f.Section("email").Key("smtp_port").String(),
			AuthUser:        f.Section("email").Key("auth_user").String(),
			AuthPassword:    f.Section("email").Key("auth_password").String(),
			FromAddress:     f.Section("email").Key("from_address").String(),
			ToAddress:       f.Section("email").Key("to_address").String(),
			CCAddress:       f.Section("email").Key("cc_address").String(),
			BCCAddress:      f.Section("email").Key("bcc_address").String(),
			ReplyTo:         f.Section("email").Key("reply_to").String(),
			WeakCertificate: f.Section("email").Key("my_smtp_server_uses_a_weak_certificate").MustBool(false),
		},
		Logging: Logging{
			Level:  defaultString(f.Section("logging").Key("level").String(), "error"),
			Format: defaultString(f.Section("logging").Key("format").String(), "text"),
		},
		Display: Display{
			Driver:     defaultString(f.Section("display").Key("driver").String(), "auto"),
			LEDCount:   f.Section("display").Key("led_count").MustInt(15),
			SleepColor: defaultString(f.Section("display").Key("sleep_color").String(), "0000FF"),
		},
		Watchdog: Watchdog{
			Enabled: f.Section("watchdog").Key("enabled").MustBool(false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := []struct {
		section, key, value string
	}{
		{"db", "host", c.Database.Host},
		{"db", "user", c.Database.User},
		{"db", "password", c.Database.Password},
		{"db", "database", c.Database.Name},
		{"email", "smtp_server", c.Email.SMTPServer},
		{"email", "smtp_port", c.Email.SMTPPort},
		{"email", "auth_user", c.Email.AuthUser},
		{"email", "auth_password", c.Email.AuthPassword},
		{"email", "from_address", c.Email.FromAddress},
		{"email", "to_address", c.Email.ToAddress},
	}
	for _, r := range required {
		if r.value == "" {
			return &ErrMissingKey{Section: r.section, Key: r.key}
		}
	}
	return nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
