package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MemberConfig is one roster seed entry.
type MemberConfig struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
	Admin bool   `yaml:"admin"`
}

// TwilioConfig holds the SMS gateway credentials. Each field can be
// overridden by environment variables so secrets can stay out of the file.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the inbound SMS webhook.
	Listen string `yaml:"listen"`

	// WebhookPath is the URL path the SMS gateway posts to.
	WebhookPath string `yaml:"webhook_path"`

	// DatabasePath is the sqlite database file.
	DatabasePath string `yaml:"database_path"`

	// GameWeekday is the ISO weekday of the game (1 = Monday .. 7 = Sunday).
	GameWeekday int `yaml:"game_weekday"`

	// GameHour and GameMinute are the game's local start time.
	GameHour   int `yaml:"game_hour"`
	GameMinute int `yaml:"game_minute"`

	// Timezone is the IANA timezone the game is scheduled in.
	Timezone string `yaml:"timezone"`

	// PollCron, when non-empty, is a cron expression for automatically
	// opening the weekly poll (e.g. "0 9 * * 1").
	PollCron string `yaml:"poll_cron"`

	// DryRun logs outbound messages instead of sending them.
	DryRun bool `yaml:"dry_run"`

	Twilio TwilioConfig `yaml:"twilio"`

	// Members seeds the roster on first run; ignored once the roster
	// table is populated.
	Members []MemberConfig `yaml:"members"`
}

// Load reads configuration from the given YAML path and applies defaults
// and environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills in missing values with defaults and applies environment
// overrides for the gateway credentials.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:6543"
	}
	if c.WebhookPath == "" {
		c.WebhookPath = "/sms"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/rsvp.db"
	}
	if c.GameWeekday == 0 {
		c.GameWeekday = 4 // Thursday
	}
	if c.GameHour == 0 {
		c.GameHour = 20
	}
	if c.Timezone == "" {
		c.Timezone = "America/Los_Angeles"
	}

	c.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", c.Twilio.AccountSID)
	c.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", c.Twilio.AuthToken)
	c.Twilio.FromNumber = getEnv("TWILIO_FROM_NUMBER", c.Twilio.FromNumber)
}

// Validate rejects configurations the clock or notifier cannot work with.
func (c *Config) Validate() error {
	if c.GameWeekday < 1 || c.GameWeekday > 7 {
		return fmt.Errorf("game_weekday must be 1-7 (ISO), got %d", c.GameWeekday)
	}
	if c.GameHour < 0 || c.GameHour > 23 {
		return fmt.Errorf("game_hour must be 0-23, got %d", c.GameHour)
	}
	if c.GameMinute < 0 || c.GameMinute > 59 {
		return fmt.Errorf("game_minute must be 0-59, got %d", c.GameMinute)
	}
	if !c.DryRun && (c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.FromNumber == "") {
		return fmt.Errorf("twilio credentials are required unless dry_run is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
