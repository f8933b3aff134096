// Package stats derives summary statistics over the store and caches
// them briefly. Snapshots are never authoritative: any write
// invalidates the cache synchronously, and entries are always
// recomputable from the record file.
package stats

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// CacheTTL is how long a computed snapshot stays valid without an
// intervening write.
const CacheTTL = 5 * time.Minute

// DateRange bounds a statistics computation. Zero bounds mean
// unbounded.
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

func (r DateRange) key() string {
	return fmt.Sprintf("%d-%d", r.From.UnixNano(), r.To.UnixNano())
}

// contains reports whether t falls inside the range.
func (r DateRange) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Snapshot is a derived view of the store at one point in time.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Range       DateRange `json:"range"`

	Total          int `json:"total"`
	UpdatedInRange int `json:"updated_in_range"`

	BySection map[knowledge.Section]int `json:"by_section"`
	ByKind    map[knowledge.Kind]int    `json:"by_kind"`
	ByScope   map[knowledge.Scope]int   `json:"by_scope"`
	ByStatus  map[knowledge.Status]int  `json:"by_status"`

	EvidenceByType map[knowledge.EvidenceType]int `json:"evidence_by_type"`

	AverageConfidence float64 `json:"average_confidence"`
	LowConfidence     int     `json:"low_confidence"`
	Superseded        int     `json:"superseded"`
	Deprecated        int     `json:"deprecated"`
}

// Compute aggregates a snapshot from the given entries. Totals count
// entries created inside the range; UpdatedInRange counts updates.
func Compute(entries []knowledge.Entry, r DateRange, now time.Time) *Snapshot {
	s := &Snapshot{
		GeneratedAt:    now,
		Range:          r,
		BySection:      make(map[knowledge.Section]int),
		ByKind:         make(map[knowledge.Kind]int),
		ByScope:        make(map[knowledge.Scope]int),
		ByStatus:       make(map[knowledge.Status]int),
		EvidenceByType: make(map[knowledge.EvidenceType]int),
	}

	var confidenceSum float64
	for _, e := range entries {
		if !r.contains(e.CreatedAt) {
			if r.contains(e.UpdatedAt) {
				s.UpdatedInRange++
			}
			continue
		}

		s.Total++
		s.BySection[e.Section]++
		s.ByKind[e.Kind]++
		s.ByScope[e.Scope]++
		s.ByStatus[e.Status]++
		for _, ev := range e.Evidence {
			s.EvidenceByType[ev.Type]++
		}

		confidenceSum += e.Confidence
		if e.Confidence < knowledge.LowConfidenceThreshold {
			s.LowConfidence++
		}
		switch e.Status {
		case knowledge.StatusSuperseded:
			s.Superseded++
		case knowledge.StatusDeprecated:
			s.Deprecated++
		}
		if r.contains(e.UpdatedAt) {
			s.UpdatedInRange++
		}
	}

	if s.Total > 0 {
		s.AverageConfidence = confidenceSum / float64(s.Total)
	}
	return s
}

// Cache holds computed snapshots keyed by (store identity, date
// range). It is an explicit object owned by its service, constructed
// with an injectable clock so TTL behavior is testable — never a
// package-level singleton.
type Cache struct {
	identity string
	ttl      time.Duration
	now      func() time.Time
	entries  map[string]cacheEntry
}

type cacheEntry struct {
	snapshot   *Snapshot
	computedAt time.Time
}

// NewCache creates a cache for the store named by identity. A nil
// clock means time.Now; a zero TTL means CacheTTL.
func NewCache(identity string, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	if ttl == 0 {
		ttl = CacheTTL
	}
	return &Cache{
		identity: identity,
		ttl:      ttl,
		now:      now,
		entries:  make(map[string]cacheEntry),
	}
}

func (c *Cache) keyFor(r DateRange) string {
	return c.identity + "|" + r.key()
}

// Get returns the cached snapshot for the range, or nil when absent or
// expired.
func (c *Cache) Get(r DateRange) *Snapshot {
	entry, ok := c.entries[c.keyFor(r)]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.computedAt) > c.ttl {
		delete(c.entries, c.keyFor(r))
		return nil
	}
	return entry.snapshot
}

// Put stores a computed snapshot.
func (c *Cache) Put(r DateRange, s *Snapshot) {
	c.entries[c.keyFor(r)] = cacheEntry{snapshot: s, computedAt: c.now()}
}

// Invalidate drops every cached snapshot for this store. Called
// synchronously by the write path before the write returns.
func (c *Cache) Invalidate() {
	c.entries = make(map[string]cacheEntry)
}
