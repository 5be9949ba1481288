package service

import (
	"sort"
	"time"

	"devlog/internal/services/insights/domain"
	"devlog/internal/services/insights/repo"
)

// peakSecondaryRatio admits a second peak hour when its count is at
// least this share of the top hour
const peakSecondaryRatio = 0.8

// compute derives the full insight payload from the window's sessions
// and commit timestamps; it touches nothing outside its arguments
func compute(ownerID int64, since, now time.Time, sessions []repo.RowWindowSession, commitTimes []time.Time) domain.OwnerInsights {
	out := domain.OwnerInsights{
		OwnerID:      ownerID,
		WindowStart:  since,
		WindowEnd:    now,
		LangMinutes:  map[string]int{},
		DailyCommits: map[string]int{},
		ComputedAt:   now,
	}

	for _, s := range sessions {
		out.TotalSessions++
		out.TotalCommits += s.TotalCommits
		out.TotalAdditions += s.TotalAdditions
		out.TotalDeletions += s.TotalDeletions
		out.ActiveMinutes += s.DurationMinutes
		if s.PrimaryLanguage != "" {
			out.LangMinutes[s.PrimaryLanguage] += s.DurationMinutes
		}

		switch {
		case s.DurationMinutes < 30:
			out.Buckets.Short++
		case s.DurationMinutes <= 120:
			out.Buckets.Medium++
		default:
			out.Buckets.Long++
		}
	}
	out.Buckets.Dominant = dominantBucket(out.Buckets)

	for _, t := range commitTimes {
		t = t.UTC()
		out.HourHistogram[t.Hour()]++
		out.DailyCommits[t.Format("2006-01-02")]++
	}
	out.PeakHours = peakHours(out.HourHistogram)
	out.BusiestDay, out.BusiestDayCommits = busiestDay(out.DailyCommits)

	return out
}

// dominantBucket picks the class with the most sessions; ties go to the
// shorter class
func dominantBucket(b domain.SessionBuckets) string {
	if b.Short == 0 && b.Medium == 0 && b.Long == 0 {
		return ""
	}
	best, dominant := b.Short, domain.BucketShort
	if b.Medium > best {
		best, dominant = b.Medium, domain.BucketMedium
	}
	if b.Long > best {
		dominant = domain.BucketLong
	}
	return dominant
}

// peakHours returns the busiest commit hour, plus a second one when it
// is close enough to matter; at most two, busiest first
func peakHours(hist [24]int) []int {
	top, second := -1, -1
	for h, n := range hist {
		if n == 0 {
			continue
		}
		switch {
		case top < 0 || n > hist[top]:
			second = top
			top = h
		case second < 0 || n > hist[second]:
			second = h
		}
	}
	if top < 0 {
		return nil
	}
	peaks := []int{top}
	if second >= 0 && float64(hist[second]) >= peakSecondaryRatio*float64(hist[top]) {
		peaks = append(peaks, second)
	}
	return peaks
}

// busiestDay returns the day with the most commits; ties go to the
// earliest day
func busiestDay(daily map[string]int) (string, int) {
	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)

	best, bestDay := 0, ""
	for _, d := range days {
		if daily[d] > best {
			best, bestDay = daily[d], d
		}
	}
	return bestDay, best
}
