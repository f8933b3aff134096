package query

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/store"
	"github.com/fyrsmithlabs/knowd/internal/usagelog"
)

type fixture struct {
	store  *store.Store
	engine *Engine
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, store.Options{Dir: t.TempDir(), ForceFile: true})
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))
	return &fixture{
		store:  s,
		engine: NewEngine(s, nil, nil, nil),
		ctx:    ctx,
	}
}

type entryOpt func(*knowledge.Entry)

func withConfidence(c float64) entryOpt {
	return func(e *knowledge.Entry) { e.Confidence = c }
}

func withScope(s knowledge.Scope) entryOpt {
	return func(e *knowledge.Entry) { e.Scope = s }
}

func withEvidence(types ...knowledge.EvidenceType) entryOpt {
	return func(e *knowledge.Entry) {
		e.Evidence = nil
		for i, typ := range types {
			e.Evidence = append(e.Evidence, knowledge.Evidence{
				Type: typ,
				URI:  fmt.Sprintf("uri-%d", i),
				Note: "note",
			})
		}
	}
}

func withStatus(s knowledge.Status) entryOpt {
	return func(e *knowledge.Entry) { e.Status = s }
}

func withTags(tags ...string) entryOpt {
	return func(e *knowledge.Entry) { e.Tags = tags }
}

func (f *fixture) add(t *testing.T, subject string, opts ...entryOpt) string {
	t.Helper()
	e := &knowledge.Entry{
		Section:    knowledge.SectionObservations,
		Kind:       knowledge.KindOther,
		Subject:    subject,
		Scope:      knowledge.ScopeRepo,
		Summary:    "summary for " + subject,
		Content:    "content",
		Confidence: 0.8,
		Evidence: []knowledge.Evidence{
			{Type: knowledge.EvidenceCode, URI: "a.go", Note: "n"},
		},
		Provenance: knowledge.Provenance{SourceType: knowledge.SourceManual},
	}
	for _, opt := range opts {
		opt(e)
	}
	id, err := f.store.Create(f.ctx, e)
	require.NoError(t, err)
	return id
}

func TestDefaultFilters(t *testing.T) {
	f := newFixture(t)
	highID := f.add(t, "high", withConfidence(0.8))
	f.add(t, "low", withConfidence(0.4))

	results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, highID, results[0].ID)
}

func TestStatusFiltering(t *testing.T) {
	f := newFixture(t)
	f.add(t, "active-entry")
	f.add(t, "deprecated-entry", withStatus(knowledge.StatusDeprecated))

	t.Run("default excludes retired", func(t *testing.T) {
		results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "active-entry", results[0].Subject)
	})

	t.Run("explicit status override", func(t *testing.T) {
		results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{
			Statuses: []knowledge.Status{knowledge.StatusDeprecated},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "deprecated-entry", results[0].Subject)
	})
}

func TestScopeHierarchy(t *testing.T) {
	f := newFixture(t)
	f.add(t, "repo-scoped", withScope(knowledge.ScopeRepo))
	f.add(t, "auth-scoped", withScope(knowledge.Scope("service:auth")))
	f.add(t, "payments-scoped", withScope(knowledge.Scope("service:payments")))

	t.Run("narrow filter admits broad entries", func(t *testing.T) {
		results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{
			Scopes: []knowledge.Scope{"service:auth"},
		})
		require.NoError(t, err)
		subjects := make([]string, 0, len(results))
		for _, e := range results {
			subjects = append(subjects, e.Subject)
		}
		assert.ElementsMatch(t, []string{"repo-scoped", "auth-scoped"}, subjects)
	})

	t.Run("broad filter never admits narrow entries", func(t *testing.T) {
		results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{
			Scopes: []knowledge.Scope{knowledge.ScopeRepo},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "repo-scoped", results[0].Subject)
	})

	t.Run("exact narrow match ranks above admitted broad", func(t *testing.T) {
		results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{
			Scopes: []knowledge.Scope{"service:auth"},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "auth-scoped", results[0].Subject)
	})
}

func TestRanking(t *testing.T) {
	f := newFixture(t)

	t.Run("evidence quality breaks confidence ties", func(t *testing.T) {
		f.add(t, "code-backed", withEvidence(knowledge.EvidenceCode))
		f.add(t, "assumption-backed", withEvidence(knowledge.EvidenceAssumption))

		results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "code-backed", results[0].Subject)
	})

	t.Run("higher confidence ranks first on equal evidence", func(t *testing.T) {
		f2 := newFixture(t)
		f2.add(t, "mid", withConfidence(0.7))
		f2.add(t, "high", withConfidence(0.95))

		results, err := f2.engine.Run(f2.ctx, knowledge.QueryFilters{})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "high", results[0].Subject)
	})
}

func TestLimitCeiling(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 55; i++ {
		f.add(t, fmt.Sprintf("subject-%02d", i))
	}

	results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, results, knowledge.MaxQueryLimit)

	results, err = f.engine.Run(f.ctx, knowledge.QueryFilters{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestTagAndConfidenceBounds(t *testing.T) {
	f := newFixture(t)
	f.add(t, "tagged", withTags("auth", "session"))
	f.add(t, "untagged")

	results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{Tags: []string{"auth"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tagged", results[0].Subject)

	max := 0.7
	min := 0.0
	results, err = f.engine.Run(f.ctx, knowledge.QueryFilters{
		MinConfidence: &min,
		MaxConfidence: &max,
	})
	require.NoError(t, err)
	assert.Empty(t, results, "all fixtures are at 0.8 confidence")
}

func TestSummaryProjection(t *testing.T) {
	f := newFixture(t)
	f.add(t, "subject", withTags("t"))

	results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{SummaryOnly: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	got := results[0]
	assert.NotEmpty(t, got.Summary)
	assert.Empty(t, got.Content)
	assert.Empty(t, got.Evidence)
	assert.Empty(t, got.Tags)
	assert.True(t, got.CreatedAt.IsZero())
	assert.True(t, got.UpdatedAt.IsZero())
}

func TestIncludeRelated(t *testing.T) {
	f := newFixture(t)
	relatedID := f.add(t, "target")

	e := &knowledge.Entry{
		Section:        knowledge.SectionDecisions,
		Kind:           knowledge.KindDecision,
		Subject:        "source",
		Scope:          knowledge.ScopeRepo,
		Summary:        "links elsewhere",
		Content:        "c",
		Confidence:     0.9,
		Evidence:       []knowledge.Evidence{{Type: knowledge.EvidenceCode, URI: "u", Note: "n"}},
		Provenance:     knowledge.Provenance{SourceType: knowledge.SourceManual},
		RelatedEntries: []string{relatedID, "kn-missing"},
	}
	_, err := f.store.Create(f.ctx, e)
	require.NoError(t, err)

	results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{
		Sections:       []knowledge.Section{knowledge.SectionDecisions},
		IncludeRelated: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2, "missing related id silently dropped")
	assert.Equal(t, "source", results[0].Subject)
	assert.Equal(t, "target", results[1].Subject)

	t.Run("related entries escape summary projection", func(t *testing.T) {
		results, err := f.engine.Run(f.ctx, knowledge.QueryFilters{
			Sections:       []knowledge.Section{knowledge.SectionDecisions},
			IncludeRelated: true,
			SummaryOnly:    true,
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Empty(t, results[0].Content, "primary result is projected")
		assert.NotEmpty(t, results[1].Content, "appended related entry is not")
	})
}

func TestRelated(t *testing.T) {
	f := newFixture(t)
	targetID := f.add(t, "target")

	e := &knowledge.Entry{
		Section:        knowledge.SectionObservations,
		Kind:           knowledge.KindOther,
		Subject:        "source",
		Scope:          knowledge.ScopeRepo,
		Summary:        "s",
		Content:        "c",
		Confidence:     0.8,
		Evidence:       []knowledge.Evidence{{Type: knowledge.EvidenceCode, URI: "u", Note: "n"}},
		Provenance:     knowledge.Provenance{SourceType: knowledge.SourceManual},
		RelatedEntries: []string{targetID, "kn-missing"},
	}
	id, err := f.store.Create(f.ctx, e)
	require.NoError(t, err)

	related, err := f.engine.Related(f.ctx, id)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, targetID, related[0].ID)

	none, err := f.engine.Related(f.ctx, "kn-missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUsageLogging(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.New(ctx, store.Options{Dir: dir, ForceFile: true})
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))

	usage := usagelog.New(dir, nil)
	engine := NewEngine(s, usage, nil, nil)

	_, err = engine.Run(ctx, knowledge.QueryFilters{})
	require.NoError(t, err)

	// One line recorded for the successful query.
	info, err := os.Stat(usage.Path())
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestStaleEntryRecencyDecay(t *testing.T) {
	f := newFixture(t)
	fixedNow := time.Now()

	// Fresh and year-old entries, identical otherwise.
	freshID := f.add(t, "fresh")
	staleID := f.add(t, "stale")

	stale, err := f.store.Get(f.ctx, staleID)
	require.NoError(t, err)
	stale.UpdatedAt = fixedNow.Add(-400 * 24 * time.Hour)

	fresh, err := f.store.Get(f.ctx, freshID)
	require.NoError(t, err)

	assert.Greater(t,
		score(fresh, knowledge.QueryFilters{}, fixedNow),
		score(stale, knowledge.QueryFilters{}, fixedNow))
	assert.Equal(t, 0.0, recency(stale.UpdatedAt, fixedNow))
}
