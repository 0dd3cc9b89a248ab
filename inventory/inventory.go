// Package inventory scans a snapshot store and ranks what it finds.
//
// A listing is derived entirely from storage state at query time: records are
// ordered newest first, carry their age, and optionally one staleness column
// per named policy. Listings are read-only; nothing here mutates the store.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/snapfetch/snapfetch/policy"
	"github.com/snapfetch/snapfetch/snapshot"
)

// Record describes one discovered snapshot.
type Record struct {
	// Name is the snapshot's entry name in the store.
	Name string
	// CreatedAt is the creation timestamp parsed from the name (UTC).
	CreatedAt time.Time
	// Age is how old the snapshot was when the listing was taken.
	Age time.Duration
	// Stale holds one column per named policy supplied via WithPolicies;
	// nil when no policy set was supplied.
	Stale map[string]bool
}

// AgeIn reports the record's age in multiples of unit, e.g.
// rec.AgeIn(time.Hour) for fractional hours.
func (r Record) AgeIn(unit time.Duration) float64 {
	return float64(r.Age) / float64(unit)
}

// Listing is the result of scanning a store for one cache's snapshots.
type Listing struct {
	// Records are sorted by CreatedAt descending; Records[0] is the current
	// snapshot.
	Records []Record
	// ParseDefects collects entries that matched the cache's naming pattern
	// but carried an unparseable timestamp. They are excluded from Records;
	// callers should surface them as warnings.
	ParseDefects []error
}

// Current returns the most recent record, or false when the listing is empty.
func (l Listing) Current() (Record, bool) {
	if len(l.Records) == 0 {
		return Record{}, false
	}
	return l.Records[0], true
}

type listConfig struct {
	policies policy.Set
	now      func() time.Time
}

// ListOption configures List.
type ListOption func(*listConfig)

// WithPolicies computes a staleness column per named policy on every record.
// The set is validated first; an invalid set fails the listing.
func WithPolicies(set policy.Set) ListOption {
	return func(c *listConfig) { c.policies = set }
}

// WithNow overrides the clock used for age and staleness computation.
func WithNow(now func() time.Time) ListOption {
	return func(c *listConfig) { c.now = now }
}

// List scans store for snapshots belonging to cache and ranks them newest
// first. Entries whose names match the cache but fail to parse are reported
// in the listing's ParseDefects rather than aborting the scan.
func List(ctx context.Context, store snapshot.Store, cache string, opts ...ListOption) (Listing, error) {
	cfg := listConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.policies.Validate(); err != nil {
		return Listing{}, err
	}

	entries, err := store.Entries(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("inventory: list entries: %w", err)
	}

	now := cfg.now()
	var listing Listing
	for _, entry := range entries {
		createdAt, ours, err := snapshot.ParseName(cache, entry)
		if !ours {
			continue
		}
		if err != nil {
			listing.ParseDefects = append(listing.ParseDefects, err)
			continue
		}
		rec := Record{
			Name:      entry,
			CreatedAt: createdAt,
			Age:       snapshot.Age(createdAt, now),
		}
		if cfg.policies != nil {
			rec.Stale = make(map[string]bool, len(cfg.policies))
			for name, p := range cfg.policies {
				rec.Stale[name] = p(createdAt, now)
			}
		}
		listing.Records = append(listing.Records, rec)
	}

	sort.Slice(listing.Records, func(i, j int) bool {
		return listing.Records[i].CreatedAt.After(listing.Records[j].CreatedAt)
	})
	return listing, nil
}
