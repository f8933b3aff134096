package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/config"
	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/stats"
	"github.com/fyrsmithlabs/knowd/internal/transfer"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	opts.ForceFileBackend = true
	svc, err := New(context.Background(), t.TempDir(), config.Default(), opts)
	require.NoError(t, err)
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func newInput(subject, summary string) *knowledge.Entry {
	return &knowledge.Entry{
		Section:    knowledge.SectionObservations,
		Kind:       knowledge.KindOther,
		Subject:    subject,
		Scope:      knowledge.ScopeRepo,
		Summary:    summary,
		Content:    "content for " + subject,
		Confidence: 0.8,
		Evidence: []knowledge.Evidence{
			{Type: knowledge.EvidenceCode, URI: "pkg/a/a.go", Note: "observed"},
		},
		Provenance: knowledge.Provenance{SourceType: knowledge.SourceManual},
	}
}

func TestNewDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Enabled = false
	_, err := New(context.Background(), t.TempDir(), cfg, Options{ForceFileBackend: true})
	require.Error(t, err)
}

func TestNewCreatesStorageDir(t *testing.T) {
	root := t.TempDir()
	svc, err := New(context.Background(), root, config.Default(), Options{ForceFileBackend: true})
	require.NoError(t, err)

	info, statErr := os.Stat(svc.StorageDir())
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
	assert.Equal(t, ".knowd", filepath.Base(svc.StorageDir()))
}

func TestCreateQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	id, err := svc.Create(ctx, newInput("retry budget", "external command retries cap at three attempts"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "retry budget", got.Subject)

	results, err := svc.Query(ctx, knowledge.QueryFilters{Subjects: []string{"retry budget"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
}

func TestCreateStampsCreatedBy(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.CreatedBy = "agent-7"
	svc, err := New(ctx, t.TempDir(), cfg, Options{ForceFileBackend: true})
	require.NoError(t, err)
	require.NoError(t, svc.Init(ctx))

	id, err := svc.Create(ctx, newInput("subj", "summary"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "agent-7", got.CreatedBy)
}

func TestStatisticsCache(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, Options{Now: func() time.Time { return clock }})

	_, err := svc.Create(ctx, newInput("alpha", "first"))
	require.NoError(t, err)

	t.Run("cached within ttl", func(t *testing.T) {
		first, err := svc.GetStatistics(ctx, stats.DateRange{}, false)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Total)

		clock = clock.Add(time.Minute)
		second, err := svc.GetStatistics(ctx, stats.DateRange{}, false)
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("write invalidates synchronously", func(t *testing.T) {
		_, err := svc.Create(ctx, newInput("beta", "second"))
		require.NoError(t, err)

		snap, err := svc.GetStatistics(ctx, stats.DateRange{}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, snap.Total)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		first, err := svc.GetStatistics(ctx, stats.DateRange{}, false)
		require.NoError(t, err)
		clock = clock.Add(stats.CacheTTL + time.Second)
		second, err := svc.GetStatistics(ctx, stats.DateRange{}, false)
		require.NoError(t, err)
		assert.NotSame(t, first, second)
	})

	t.Run("bypass recomputes", func(t *testing.T) {
		first, err := svc.GetStatistics(ctx, stats.DateRange{}, false)
		require.NoError(t, err)
		second, err := svc.GetStatistics(ctx, stats.DateRange{}, true)
		require.NoError(t, err)
		assert.NotSame(t, first, second)
	})
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestService(t, Options{})

	_, err := src.Create(ctx, newInput("alpha", "first"))
	require.NoError(t, err)
	_, err = src.Create(ctx, newInput("beta", "second"))
	require.NoError(t, err)

	count, err := src.Export(ctx, "dump.jsonl", transfer.ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	t.Run("export path escape rejected", func(t *testing.T) {
		_, err := src.Export(ctx, "../outside.jsonl", transfer.ExportOptions{})
		require.Error(t, err)
		assert.True(t, knowledge.IsKind(err, knowledge.KindBoundaryViolation))
	})

	t.Run("import into fresh store", func(t *testing.T) {
		dst := newTestService(t, Options{})
		data, err := os.ReadFile(filepath.Join(src.Root(), "dump.jsonl"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst.Root(), "dump.jsonl"), data, 0o644))

		report, err := dst.Import(ctx, "dump.jsonl", transfer.StrategySkip)
		require.NoError(t, err)
		assert.Equal(t, 2, report.SuccessCount)
		assert.Zero(t, report.ErrorCount)

		entries, err := dst.Query(ctx, knowledge.QueryFilters{})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestSyncContext(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	high := newInput("flaky runner", "integration runner needs a warm cache")
	high.Section = knowledge.SectionLearnings
	high.Confidence = 0.9
	_, err := svc.Create(ctx, high)
	require.NoError(t, err)

	low := newInput("weak hunch", "probably fine")
	low.Section = knowledge.SectionLearnings
	low.Confidence = 0.4
	low.Evidence = []knowledge.Evidence{{Type: knowledge.EvidenceAssumption, URI: "none", Note: "gut feel"}}
	_, err = svc.Create(ctx, low)
	require.NoError(t, err)

	report, err := svc.SyncContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Entries)
	require.Len(t, report.Files, 1)

	data, err := os.ReadFile(report.Files[0])
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# Learnings")
	assert.Contains(t, content, "## flaky runner")
	assert.Contains(t, content, "integration runner needs a warm cache")
	assert.NotContains(t, content, "weak hunch")

	t.Run("stale file removed when section empties", func(t *testing.T) {
		entries, err := svc.Query(ctx, knowledge.QueryFilters{Sections: []knowledge.Section{knowledge.SectionLearnings}})
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		require.NoError(t, svc.Deprecate(ctx, entries[0].ID))

		again, err := svc.SyncContext(ctx)
		require.NoError(t, err)
		assert.Empty(t, again.Files)
		_, statErr := os.Stat(filepath.Join(svc.StorageDir(), "context", "learnings.md"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestVerifyEvidence(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/gone") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, os.MkdirAll(filepath.Join(svc.Root(), "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svc.Root(), "pkg", "real.go"), []byte("package pkg\n"), 0o644))

	e := newInput("evidence subject", "summary")
	e.Evidence = []knowledge.Evidence{
		{Type: knowledge.EvidenceCode, URI: "pkg/real.go", Note: "exists"},
		{Type: knowledge.EvidenceCode, URI: "pkg/missing.go", Note: "gone"},
		{Type: knowledge.EvidenceCode, URI: "../escape.go", Note: "outside"},
		{Type: knowledge.EvidenceDoc, URI: srv.URL + "/ok", Note: "reachable"},
		{Type: knowledge.EvidenceDoc, URI: srv.URL + "/gone", Note: "404"},
		{Type: knowledge.EvidenceTicket, URI: "PROJ-123", Note: "tracker ref"},
	}
	id, err := svc.Create(ctx, e)
	require.NoError(t, err)

	checks, err := svc.VerifyEvidence(ctx, id)
	require.NoError(t, err)
	require.Len(t, checks, 6)

	byURI := map[string]EvidenceCheck{}
	for _, c := range checks {
		byURI[c.URI] = c
	}

	assert.True(t, byURI["pkg/real.go"].OK)
	assert.False(t, byURI["pkg/missing.go"].OK)
	assert.Equal(t, "file does not exist", byURI["pkg/missing.go"].Detail)
	assert.False(t, byURI["../escape.go"].OK)
	assert.Contains(t, byURI["../escape.go"].Detail, "escapes")
	assert.True(t, byURI[srv.URL+"/ok"].OK)
	assert.False(t, byURI[srv.URL+"/gone"].OK)
	assert.True(t, byURI["PROJ-123"].OK)
	assert.Equal(t, "not checked", byURI["PROJ-123"].Detail)

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.VerifyEvidence(ctx, "kn-does-not-exist")
		require.Error(t, err)
		assert.True(t, knowledge.IsKind(err, knowledge.KindStorage))
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestApplyResults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	existingID, err := svc.Create(ctx, newInput("old truth", "previous understanding"))
	require.NoError(t, err)

	bad := newInput("broken", "no evidence at all")
	bad.Evidence = nil

	replacement := newInput("old truth", "corrected understanding")

	report, err := svc.ApplyResults(ctx, []ApplyItem{
		{Entry: *newInput("fresh", "new finding")},
		{Entry: *bad},
		{Entry: *replacement, Supersedes: existingID},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.ErrorCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Errors[0].Index)
	require.Len(t, report.IDs, 2)

	old, err := svc.Get(ctx, existingID)
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusSuperseded, old.Status)
	assert.Equal(t, report.IDs[1], old.SupersededBy)
}

func TestGetRelated(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	targetID, err := svc.Create(ctx, newInput("target", "linked-to entry"))
	require.NoError(t, err)

	src := newInput("source", "links outward")
	src.RelatedEntries = []string{targetID, "kn-missing1"}
	srcID, err := svc.Create(ctx, src)
	require.NoError(t, err)

	related, err := svc.GetRelated(ctx, srcID)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, targetID, related[0].ID)
}
