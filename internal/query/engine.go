// Package query filters, ranks, and projects entries loaded from the
// store. The engine owns the default-injection, scope-hierarchy, and
// composite-ranking rules; it performs no storage writes of its own
// beyond best-effort usage logging.
package query

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/store"
	"github.com/fyrsmithlabs/knowd/internal/usagelog"
)

// Composite score weights. Confidence dominates; evidence quality,
// recency, and scope fit break ties.
const (
	weightConfidence = 0.5
	weightEvidence   = 0.3
	weightRecency    = 0.1
	weightScope      = 0.1
)

// recencyWindowDays is the age at which the recency term reaches zero.
const recencyWindowDays = 365.0

// Engine runs queries against a store.
type Engine struct {
	store  *store.Store
	usage  *usagelog.Logger
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a query engine. The usage logger may be nil to
// disable query-shape recording; a nil clock means time.Now.
func NewEngine(s *store.Store, usage *usagelog.Logger, logger *zap.Logger, now func() time.Time) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, usage: usage, logger: logger, now: now}
}

// Run executes the full query pipeline: inject defaults, expand the
// scope hierarchy, filter, rank, truncate, project, and expand related
// entries. Every successful query is recorded in the usage log;
// logging failures are swallowed.
func (e *Engine) Run(ctx context.Context, filters knowledge.QueryFilters) ([]knowledge.Entry, error) {
	f := filters.WithDefaults()

	entries, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []knowledge.Entry
	for _, entry := range entries {
		if matches(&entry, f) {
			matched = append(matched, entry)
		}
	}

	now := e.now()
	sort.SliceStable(matched, func(i, j int) bool {
		return score(&matched[i], f, now) > score(&matched[j], f, now)
	})

	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	if f.SummaryOnly {
		for i := range matched {
			matched[i] = summaryProjection(matched[i])
		}
	}

	// Related entries are appended after projection, unprojected: the
	// caller asked for them explicitly and they carry no rank.
	if f.IncludeRelated {
		matched = e.expandRelated(matched, entries)
	}

	if e.usage != nil {
		if err := e.usage.Record(usagelog.Entry{
			Time:        now,
			Filters:     filters,
			ResultCount: len(matched),
		}); err != nil {
			e.logger.Debug("usage log write failed", zap.Error(err))
		}
	}

	return matched, nil
}

// Related returns the entries referenced by the given entry's
// related_entries list. Missing targets are silently dropped.
func (e *Engine) Related(ctx context.Context, id string) ([]knowledge.Entry, error) {
	entry, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	all, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]knowledge.Entry, len(all))
	for _, candidate := range all {
		byID[candidate.ID] = candidate
	}

	var related []knowledge.Entry
	for _, rid := range entry.RelatedEntries {
		if target, ok := byID[rid]; ok {
			related = append(related, target)
		}
	}
	return related, nil
}

// matches applies every supplied dimension conjunctively.
func matches(e *knowledge.Entry, f knowledge.QueryFilters) bool {
	if len(f.Sections) > 0 && !containsSection(f.Sections, e.Section) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Scopes) > 0 && !scopeAdmits(f.Scopes, e.Scope) {
		return false
	}
	if len(f.Subjects) > 0 && !containsString(f.Subjects, e.Subject) {
		return false
	}
	if len(f.Tags) > 0 && !anyTag(f.Tags, e.Tags) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, e.Status) {
		return false
	}
	if f.MinConfidence != nil && e.Confidence < *f.MinConfidence {
		return false
	}
	if f.MaxConfidence != nil && e.Confidence > *f.MaxConfidence {
		return false
	}
	if f.CreatedAfter != nil && e.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && e.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.UpdatedAfter != nil && e.UpdatedAt.Before(*f.UpdatedAfter) {
		return false
	}
	if f.UpdatedBefore != nil && e.UpdatedAt.After(*f.UpdatedBefore) {
		return false
	}
	return true
}

// scopeAdmits implements the hierarchy: a filter on a narrow scope
// (service, environment, customer) additionally admits broad (repo,
// org) entries. Narrow entries are never admitted by a filter that
// does not name them.
func scopeAdmits(scopes []knowledge.Scope, entryScope knowledge.Scope) bool {
	for _, s := range scopes {
		if s == entryScope {
			return true
		}
	}
	if entryScope.Broad() {
		for _, s := range scopes {
			if !s.Broad() {
				return true
			}
		}
	}
	return false
}

// score computes the composite ranking score.
func score(e *knowledge.Entry, f knowledge.QueryFilters, now time.Time) float64 {
	return weightConfidence*e.Confidence +
		weightEvidence*e.EvidenceQuality() +
		weightRecency*recency(e.UpdatedAt, now) +
		weightScope*scopeMatch(e.Scope, f.Scopes)
}

// recency decays linearly from 1.0 to 0 over a year since last update.
func recency(updatedAt, now time.Time) float64 {
	ageDays := now.Sub(updatedAt).Hours() / 24.0
	r := 1.0 - ageDays/recencyWindowDays
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// scopeMatch is 1.0 for an exact filter match, 0.5 for a broad entry
// admitted under a narrower filter or when no scope filter was given,
// and 0 otherwise.
func scopeMatch(entryScope knowledge.Scope, scopes []knowledge.Scope) float64 {
	if len(scopes) == 0 {
		return 0.5
	}
	for _, s := range scopes {
		if s == entryScope {
			return 1.0
		}
	}
	if entryScope.Broad() {
		return 0.5
	}
	return 0.0
}

// expandRelated appends referenced entries after the ranked results,
// unranked, skipping ids already present and ids that do not resolve.
func (e *Engine) expandRelated(results, all []knowledge.Entry) []knowledge.Entry {
	byID := make(map[string]knowledge.Entry, len(all))
	for _, entry := range all {
		byID[entry.ID] = entry
	}
	seen := make(map[string]bool, len(results))
	for _, entry := range results {
		seen[entry.ID] = true
	}

	expanded := results
	for _, entry := range results {
		for _, rid := range entry.RelatedEntries {
			if seen[rid] {
				continue
			}
			target, ok := byID[rid]
			if !ok {
				continue
			}
			seen[rid] = true
			expanded = append(expanded, target)
		}
	}
	return expanded
}

// summaryProjection strips content, evidence, tags, and timestamps.
func summaryProjection(e knowledge.Entry) knowledge.Entry {
	e.Content = ""
	e.Evidence = nil
	e.Tags = nil
	e.CreatedAt = time.Time{}
	e.UpdatedAt = time.Time{}
	return e
}

func containsSection(list []knowledge.Section, v knowledge.Section) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsKind(list []knowledge.Kind, v knowledge.Kind) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsStatus(list []knowledge.Status, v knowledge.Status) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func anyTag(wanted, have []string) bool {
	for _, w := range wanted {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
