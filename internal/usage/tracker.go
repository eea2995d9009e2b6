// Package usage keeps in-memory per-channel message counters, bucketed by
// UTC calendar date. Counters exist to answer the stats endpoint and to feed
// the Prometheus gauges; they are not an audit log and reset on restart.
package usage

import (
	"sync"
	"time"
)

// maxDates bounds the per-channel history so the map cannot grow without
// limit on a long-lived process.
const maxDates = 60

const dateLayout = "2006-01-02"

// Tracker accumulates message counts per channel per UTC day. Safe for
// concurrent use.
type Tracker struct {
	mu     sync.Mutex
	counts map[string]map[string]int // channel -> date -> count
	last   map[string]time.Time      // channel -> last activity

	now func() time.Time // test seam
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		counts: make(map[string]map[string]int),
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Record counts one message on channel, dated by the current UTC day.
func (t *Tracker) Record(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	dates, ok := t.counts[channel]
	if !ok {
		dates = make(map[string]int)
		t.counts[channel] = dates
	}
	dates[now.Format(dateLayout)]++
	t.last[channel] = now

	if len(dates) > maxDates {
		t.evictOldest(dates)
	}
}

// evictOldest removes the lexicographically smallest date key, which for the
// fixed layout is also the chronologically oldest. Caller holds the lock.
func (t *Tracker) evictOldest(dates map[string]int) {
	oldest := ""
	for d := range dates {
		if oldest == "" || d < oldest {
			oldest = d
		}
	}
	delete(dates, oldest)
}

// RangeTotal sums channel's counts over the last days UTC calendar days,
// including today. days <= 0 returns 0.
func (t *Tracker) RangeTotal(channel string, days int) int {
	if days <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	dates, ok := t.counts[channel]
	if !ok {
		return 0
	}
	today := t.now().UTC()
	total := 0
	for i := 0; i < days; i++ {
		total += dates[today.AddDate(0, 0, -i).Format(dateLayout)]
	}
	return total
}

// Totals returns today's and the trailing-7-day count for channel.
func (t *Tracker) Totals(channel string) (today, week int) {
	return t.RangeTotal(channel, 1), t.RangeTotal(channel, 7)
}

// LastActive returns the time of the most recent Record on channel, or the
// zero time if the channel has never been used.
func (t *Tracker) LastActive(channel string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[channel]
}

// Channels returns the channels that have recorded at least one message.
func (t *Tracker) Channels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.counts))
	for c := range t.counts {
		out = append(out, c)
	}
	return out
}
