package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the bot.
type Config struct {
	SQLiteDSN         string
	ScheduleChannelID string
	StaffChannelID    string
	MentionRole       string
	PromptTimeout     time.Duration
	SweepInterval     time.Duration
	AuditLookback     time.Duration
	AuditCadence      time.Duration
	ReportCadence     time.Duration
	NewcomerCheckIn   time.Duration
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; required values and malformed
// entries are collected and reported together so a misconfigured deployment
// fails with the full list on the first start.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN:       "file:guild-scheduler.db?_foreign_keys=on",
		PromptTimeout:   10 * time.Minute,
		SweepInterval:   5 * time.Minute,
		AuditLookback:   60 * 24 * time.Hour,
		AuditCadence:    7 * 24 * time.Hour,
		ReportCadence:   182 * 24 * time.Hour,
		NewcomerCheckIn: 7 * 24 * time.Hour,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("SCHEDBOT_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if channel := strings.TrimSpace(os.Getenv("SCHEDBOT_SCHEDULE_CHANNEL_ID")); channel == "" {
		missing = append(missing, "SCHEDBOT_SCHEDULE_CHANNEL_ID")
	} else {
		cfg.ScheduleChannelID = channel
	}

	if channel := strings.TrimSpace(os.Getenv("SCHEDBOT_STAFF_CHANNEL_ID")); channel == "" {
		missing = append(missing, "SCHEDBOT_STAFF_CHANNEL_ID")
	} else {
		cfg.StaffChannelID = channel
	}

	cfg.MentionRole = strings.TrimSpace(os.Getenv("SCHEDBOT_MENTION_ROLE"))

	loadDuration(&cfg.PromptTimeout, "SCHEDBOT_PROMPT_TIMEOUT", &invalid)
	loadDuration(&cfg.SweepInterval, "SCHEDBOT_SWEEP_INTERVAL", &invalid)
	loadDays(&cfg.AuditLookback, "SCHEDBOT_AUDIT_LOOKBACK_DAYS", &invalid)
	loadDays(&cfg.AuditCadence, "SCHEDBOT_AUDIT_CADENCE_DAYS", &invalid)
	loadDays(&cfg.ReportCadence, "SCHEDBOT_REPORT_CADENCE_DAYS", &invalid)
	loadDays(&cfg.NewcomerCheckIn, "SCHEDBOT_NEWCOMER_CHECKIN_DAYS", &invalid)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func loadDuration(target *time.Duration, name string, invalid *[]string) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		*invalid = append(*invalid, name)
		return
	}
	*target = parsed
}

func loadDays(target *time.Duration, name string, invalid *[]string) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return
	}
	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		*invalid = append(*invalid, name)
		return
	}
	*target = time.Duration(days) * 24 * time.Hour
}
