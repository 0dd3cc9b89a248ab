// Package policy provides staleness policies for cached snapshots.
//
// A [Policy] is a pure predicate deciding whether a snapshot created at a
// given time must be reloaded. Two families are provided: calendar-bucket
// policies ([Hourly], [Daily], [Weekly], [Monthly], [Yearly]) that fire when
// the wall clock crosses into a new calendar bucket, and interval policies
// ([Every], [EveryNMinutes], [EveryNHours], [EveryNDays]) that fire when a
// fixed duration has elapsed.
//
// Calendar policies compare UTC calendar fields. A snapshot taken at 23:59 UTC
// is stale under [Daily] one minute later, while [Every](24 * time.Hour) would
// not consider it stale for another day.
package policy

import (
	"time"
)

// Policy reports whether a snapshot created at createdAt is stale as of now.
// Implementations must be side-effect free and deterministic for a fixed
// (createdAt, now) pair.
type Policy func(createdAt time.Time, now time.Time) bool

// Always marks every snapshot stale, forcing a reload on each call.
func Always(time.Time, time.Time) bool {
	return true
}

// Never marks no snapshot stale. Useful for pinning a cache during tests or
// incident response.
func Never(time.Time, time.Time) bool {
	return false
}

// Hourly is stale once the clock has crossed into a new hour relative to the
// snapshot. Any coarser boundary crossing (day, month, year) also counts.
func Hourly(createdAt time.Time, now time.Time) bool {
	c, n := createdAt.UTC(), now.UTC()
	return c.Hour() != n.Hour() || Daily(createdAt, now)
}

// Daily is stale once the date (UTC) differs from the snapshot's date.
func Daily(createdAt time.Time, now time.Time) bool {
	c, n := createdAt.UTC(), now.UTC()
	return c.Day() != n.Day() || Monthly(createdAt, now)
}

// Weekly is stale once the ISO week differs from the snapshot's week.
func Weekly(createdAt time.Time, now time.Time) bool {
	cy, cw := createdAt.UTC().ISOWeek()
	ny, nw := now.UTC().ISOWeek()
	return cw != nw || cy != ny
}

// Monthly is stale once the month or year differs from the snapshot's.
func Monthly(createdAt time.Time, now time.Time) bool {
	c, n := createdAt.UTC(), now.UTC()
	return c.Month() != n.Month() || c.Year() != n.Year()
}

// Yearly is stale once the year differs from the snapshot's.
func Yearly(createdAt time.Time, now time.Time) bool {
	return createdAt.UTC().Year() != now.UTC().Year()
}

// Every is stale once strictly more than d has elapsed since the snapshot was
// created. Exactly d elapsed is not stale.
func Every(d time.Duration) Policy {
	return func(createdAt time.Time, now time.Time) bool {
		return now.Sub(createdAt) > d
	}
}

// EveryNMinutes is stale once strictly more than n minutes have elapsed.
func EveryNMinutes(n int) Policy {
	return Every(time.Duration(n) * time.Minute)
}

// EveryNHours is stale once strictly more than n hours have elapsed.
func EveryNHours(n int) Policy {
	return Every(time.Duration(n) * time.Hour)
}

// EveryNDays is stale once strictly more than n days (24h) have elapsed.
func EveryNDays(n int) Policy {
	return Every(time.Duration(n) * 24 * time.Hour)
}
