package service

import (
	"context"
	"fmt"
	"time"

	"devlog/internal/platform/logger"

	dom "devlog/internal/services/jobs/domain"
)

// RunScheduler enqueues the recurring analytic jobs: a daily insights
// sweep and a weekly summary sweep. Dedupe keys are date-stamped, so a
// restarted scheduler cannot double-enqueue the same run
func (s *Svc) RunScheduler(ctx context.Context) error {
	log := logger.Named("jobs-scheduler")

	for {
		now := time.Now().UTC()
		daily := nextDaily(now, s.cfg.DailyHourUTC)
		weekly := nextWeekly(now, s.cfg.WeeklyDayUTC, s.cfg.WeeklyHourUTC)

		next := daily
		if weekly.Before(next) {
			next = weekly
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		fired := time.Now().UTC()
		if !fired.Before(daily) {
			key := fmt.Sprintf("insights:sweep:%s", daily.Format("2006-01-02"))
			if _, err := s.Enqueue(ctx, dom.EnqueueArgs{
				Kind:      dom.KindInsights,
				DedupeKey: key,
				Priority:  dom.PriorityAnalytic,
				Payload:   map[string]any{"window_days": 30},
			}); err != nil {
				log.Error().Err(err).Str("key", key).Msg("enqueue daily insights sweep failed")
			} else {
				log.Info().Str("key", key).Msg("daily insights sweep enqueued")
			}
		}
		if !fired.Before(weekly) {
			key := fmt.Sprintf("weekly:sweep:%s", weekly.Format("2006-01-02"))
			if _, err := s.Enqueue(ctx, dom.EnqueueArgs{
				Kind:      dom.KindWeeklySummary,
				DedupeKey: key,
				Priority:  dom.PriorityAnalytic,
				Payload:   map[string]any{"window_days": 7},
			}); err != nil {
				log.Error().Err(err).Str("key", key).Msg("enqueue weekly summary sweep failed")
			} else {
				log.Info().Str("key", key).Msg("weekly summary sweep enqueued")
			}
		}
	}
}

// nextDaily returns the next daily instant at hour (UTC) strictly after now
func nextDaily(now time.Time, hour int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// nextWeekly returns the next weekly instant on day at hour (UTC) strictly after now
func nextWeekly(now time.Time, day time.Weekday, hour int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	for t.Weekday() != day || !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
