package permit

import "time"

// dailyUsageRetention is how many trailing days of dailyUsage are kept,
// per spec.md §3.3 ("trailing 7 days retained").
const dailyUsageRetention = 7 * 24 * time.Hour

// StoredPermit is a Permit plus the locally observed usage counters
// (spec.md §3.3): "usage counters live beside [the permit] but are not
// covered by the signature."
type StoredPermit struct {
	Permit      Permit
	TotalUsed   int
	DailyUsage  map[string]int // ISO-8601 date ("YYYY-MM-DD") -> count
}

// Increment bumps TotalUsed and today's DailyUsage entry, then prunes
// DailyUsage entries older than 7 days — spec.md §4.3's incrementUsage().
// today must be the device-local calendar date, formatted YYYY-MM-DD.
func (s *StoredPermit) Increment(today string, now time.Time) {
	if s.DailyUsage == nil {
		s.DailyUsage = make(map[string]int)
	}

	s.TotalUsed++
	s.DailyUsage[today]++

	s.prune(now)
}

// prune removes DailyUsage entries older than 7 days relative to now.
func (s *StoredPermit) prune(now time.Time) {
	cutoff := now.Add(-dailyUsageRetention)

	for dateStr := range s.DailyUsage {
		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			delete(s.DailyUsage, dateStr)
			continue
		}

		if t.Before(cutoff) {
			delete(s.DailyUsage, dateStr)
		}
	}
}
