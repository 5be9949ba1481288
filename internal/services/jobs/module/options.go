package module

import (
	"time"

	"devlog/internal/platform/config"
)

// Options carries the jobs knobs; zero values defer to FromConfig/defaults
type Options struct {
	Concurrency    int
	QueueTakeBatch int
	LeaseFor       time.Duration
	RetryBaseMs    int
	MaxAttempts    int
	PollEvery      time.Duration
	DailyHourUTC   int
	WeeklyDayUTC   time.Weekday
	WeeklyHourUTC  int
}

// FromConfig loads options from JOBS_* env vars
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("JOBS_")
	return Options{
		Concurrency:    c.MayInt("CONCURRENCY", 4),
		QueueTakeBatch: c.MayInt("TAKE_BATCH", 16),
		LeaseFor:       c.MayDuration("LEASE_FOR", 60*time.Second),
		RetryBaseMs:    c.MayInt("RETRY_BASE_MS", 500),
		MaxAttempts:    c.MayInt("MAX_ATTEMPTS", 3),
		PollEvery:      c.MayDuration("POLL_EVERY", 500*time.Millisecond),
		DailyHourUTC:   c.MayInt("DAILY_HOUR_UTC", 2),
		WeeklyDayUTC:   time.Weekday(c.MayInt("WEEKLY_DAY_UTC", int(time.Monday))),
		WeeklyHourUTC:  c.MayInt("WEEKLY_HOUR_UTC", 3),
	}
}
