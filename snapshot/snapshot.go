// Package snapshot defines snapshot identity and durable storage for cached
// load results.
//
// A snapshot is one successfully loaded result, identified by the cache name
// plus its creation timestamp (second precision, UTC) and a reserved suffix.
// The [Store] interface abstracts where entries live; filesystem, Redis and
// in-memory backends are provided. Payloads are msgpack-encoded and wrapped in
// a versioned, checksummed container (see [Encode]).
package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Ext is the suffix of snapshot payload entries.
	Ext = ".snap"
	// LockExt is the suffix of the refresh lock marker.
	LockExt = ".lock"
	// LogExt is the suffix of per-refresh log entries.
	LogExt = ".log"

	// TimeLayout encodes creation timestamps into entry names. Second
	// precision, UTC, no colons so names stay filename-safe everywhere.
	TimeLayout = "2006-01-02T15-04-05"
)

// ErrBadName is returned by ParseName when an entry carries the cache's
// prefix and suffix but its timestamp segment does not parse. Callers should
// surface this as a defect in stored state rather than skip it silently.
var ErrBadName = errors.New("snapshot: malformed snapshot name")

// Name returns the entry name for a snapshot of cache created at t.
func Name(cache string, t time.Time) string {
	return cache + t.UTC().Format(TimeLayout) + Ext
}

// LockName returns the lock marker entry name for cache.
func LockName(cache string) string {
	return cache + LockExt
}

// LogName returns the per-refresh log entry name for a refresh that produced
// the snapshot created at t.
func LogName(cache string, t time.Time) string {
	return cache + t.UTC().Format(TimeLayout) + LogExt
}

// ParseName extracts the creation timestamp from an entry name. The bool
// reports whether the entry belongs to cache at all (prefix and suffix match);
// when it does but the timestamp segment is malformed, the error wraps
// [ErrBadName].
func ParseName(cache, entry string) (time.Time, bool, error) {
	if !strings.HasPrefix(entry, cache) || !strings.HasSuffix(entry, Ext) {
		return time.Time{}, false, nil
	}
	seg := strings.TrimSuffix(strings.TrimPrefix(entry, cache), Ext)
	t, err := time.ParseInLocation(TimeLayout, seg, time.UTC)
	if err != nil {
		return time.Time{}, true, fmt.Errorf("%w: %q: %v", ErrBadName, entry, err)
	}
	return t, true, nil
}

// Age returns how old a snapshot created at createdAt is relative to now.
func Age(createdAt, now time.Time) time.Duration {
	return now.Sub(createdAt)
}
