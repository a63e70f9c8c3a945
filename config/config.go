package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	DatabasePath  string

	// Tick cadence of the notification engine. Sub-hour granularity is
	// required to resolve minute-level delivery times.
	TickInterval time.Duration

	// MaxLeadDays bounds how far ahead of an occurrence any observer may
	// ask to be alerted; used as the per-tick horizon prefilter.
	MaxLeadDays int

	// Defaults applied to users who never touched their settings.
	DefaultAlertTime string // "HH:MM", observer-local
	DefaultTZOffset  int    // hours relative to UTC

	LogLevel string

	// Optional CalDAV publishing of the birthday calendar.
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
}

func Load() (*Config, error) {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/birthdaybot.db"
	}

	tick := time.Minute
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
		}
		if d < time.Second || d > time.Hour {
			return nil, fmt.Errorf("TICK_INTERVAL must be between 1s and 1h, got %s", d)
		}
		tick = d
	}

	maxLead := 31
	if v := os.Getenv("MAX_LEAD_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("MAX_LEAD_DAYS must be a non-negative number")
		}
		maxLead = n
	}

	alertTime := os.Getenv("DEFAULT_ALERT_TIME")
	if alertTime == "" {
		alertTime = "09:00"
	}

	var tzOffset int
	if v := os.Getenv("DEFAULT_TZ_OFFSET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < -12 || n > 14 {
			return nil, fmt.Errorf("DEFAULT_TZ_OFFSET must be an hour offset in [-12, 14]")
		}
		tzOffset = n
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		TelegramToken:    token,
		DatabasePath:     dbPath,
		TickInterval:     tick,
		MaxLeadDays:      maxLead,
		DefaultAlertTime: alertTime,
		DefaultTZOffset:  tzOffset,
		LogLevel:         logLevel,
		CalDAVURL:        os.Getenv("CALDAV_URL"),
		CalDAVUsername:   os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:   os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar:   os.Getenv("CALDAV_CALENDAR"),
	}, nil
}
