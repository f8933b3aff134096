package knowledge

import (
	"time"
)

// Query engine defaults applied when the caller leaves a dimension unset.
const (
	// DefaultMinConfidence excludes low-confidence entries from default
	// queries.
	DefaultMinConfidence = 0.6

	// MaxQueryLimit is the hard ceiling on result count. Requests above
	// it are truncated, never honored.
	MaxQueryLimit = 50
)

// QueryFilters selects and shapes a query. The zero value means
// "defaults": active entries, confidence >= 0.6, up to 50 results.
//
// Filters are conjunctive across dimensions and disjunctive within one
// (an entry matches Sections if its section equals any listed value).
type QueryFilters struct {
	Sections []Section `json:"sections,omitempty"`
	Kinds    []Kind    `json:"kinds,omitempty"`
	Scopes   []Scope   `json:"scopes,omitempty"`
	Subjects []string  `json:"subjects,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	Statuses []Status  `json:"statuses,omitempty"`

	MinConfidence *float64 `json:"min_confidence,omitempty"`
	MaxConfidence *float64 `json:"max_confidence,omitempty"`

	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	UpdatedAfter  *time.Time `json:"updated_after,omitempty"`
	UpdatedBefore *time.Time `json:"updated_before,omitempty"`

	// SummaryOnly strips content, evidence, tags, and timestamps from
	// results.
	SummaryOnly bool `json:"summary_only,omitempty"`

	// IncludeRelated appends related entries after the ranked results.
	IncludeRelated bool `json:"include_related,omitempty"`

	// Limit caps the result count. Zero means the default (50); values
	// above MaxQueryLimit are clamped.
	Limit int `json:"limit,omitempty"`
}

// WithDefaults returns a copy with the standard defaults injected:
// status=[active], min confidence 0.6, limit 50. Explicit values are
// kept, but Limit is always clamped to the ceiling.
func (f QueryFilters) WithDefaults() QueryFilters {
	if len(f.Statuses) == 0 {
		f.Statuses = []Status{StatusActive}
	}
	if f.MinConfidence == nil {
		min := DefaultMinConfidence
		f.MinConfidence = &min
	}
	if f.Limit <= 0 || f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	return f
}
