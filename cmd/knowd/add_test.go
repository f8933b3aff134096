package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

func TestParseEvidence(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    knowledge.Evidence
		wantErr bool
	}{
		{
			name: "omitted note gets the default",
			raw:  "code:internal/retry/retry.go",
			want: knowledge.Evidence{Type: knowledge.EvidenceCode, URI: "internal/retry/retry.go", Note: defaultEvidenceNote},
		},
		{
			name: "with note",
			raw:  "log:build.log:third failure this week",
			want: knowledge.Evidence{Type: knowledge.EvidenceLog, URI: "build.log", Note: "third failure this week"},
		},
		{
			name: "url keeps its colons",
			raw:  "doc:https://example.com/runbook#step-3",
			want: knowledge.Evidence{Type: knowledge.EvidenceDoc, URI: "https://example.com/runbook#step-3", Note: defaultEvidenceNote},
		},
		{name: "missing uri", raw: "code:", wantErr: true},
		{name: "missing separator", raw: "code", wantErr: true},
		{name: "unknown type", raw: "vibes:somewhere", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEvidence(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The help text's own minimal invocation must survive validation end
// to end.
func TestBuildEntryFromFlagsValidates(t *testing.T) {
	addFlags.subject = "retry budget"
	addFlags.summary = "tracker calls retry 3x"
	addFlags.evidence = []string{"code:internal/retry/retry.go"}
	addFlags.confidence = 0.9
	t.Cleanup(func() {
		addFlags.subject, addFlags.summary, addFlags.evidence = "", "", nil
		addFlags.confidence = 0.5
	})

	entry, err := buildEntry()
	require.NoError(t, err)

	result := knowledge.Validate(entry)
	assert.Empty(t, result.Errors)
	require.Len(t, entry.Evidence, 1)
	assert.Equal(t, defaultEvidenceNote, entry.Evidence[0].Note)
}

func TestReadEntryJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"section": "learnings",
		"subject": "cache warmup",
		"summary": "first run is always slow",
		"confidence": 0.8,
		"evidence": [{"type": "log", "uri": "ci/run-41.log", "note": "cold start"}]
	}`), 0o644))

	entry, err := readEntryJSON(path)
	require.NoError(t, err)
	assert.Equal(t, knowledge.SectionLearnings, entry.Section)
	assert.Equal(t, "cache warmup", entry.Subject)
	require.Len(t, entry.Evidence, 1)
	assert.Equal(t, knowledge.EvidenceLog, entry.Evidence[0].Type)

	t.Run("missing file", func(t *testing.T) {
		_, err := readEntryJSON(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
	})
}
