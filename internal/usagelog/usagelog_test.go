package usagelog

import (
	"bufio"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

func countFileLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count
}

func TestRecord(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, nil)

	for i := 0; i < 3; i++ {
		err := l.Record(Entry{
			Time:        time.Now(),
			Filters:     knowledge.QueryFilters{Sections: []knowledge.Section{knowledge.SectionDecisions}},
			ResultCount: i,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, countFileLines(t, l.Path()))
}

func TestRotationByLineCount(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, nil)

	for i := 0; i < MaxLines+1; i++ {
		require.NoError(t, l.Record(Entry{Time: time.Now(), ResultCount: i}))
	}

	got := countFileLines(t, l.Path())
	assert.LessOrEqual(t, got, MaxLines/2+1)
	assert.Greater(t, got, 0)
}

func TestRotationKeepsMostRecentHalf(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, nil)

	for i := 0; i < MaxLines+1; i++ {
		require.NoError(t, l.Record(Entry{Time: time.Unix(int64(i), 0).UTC(), ResultCount: i}))
	}

	// Appends after rotation keep working and the file stays bounded.
	require.NoError(t, l.Record(Entry{Time: time.Now(), ResultCount: 999}))
	assert.LessOrEqual(t, countFileLines(t, l.Path()), MaxLines)
}

func TestCountInitializedFromExistingFile(t *testing.T) {
	dir := t.TempDir()

	first := New(dir, nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, first.Record(Entry{Time: time.Now()}))
	}

	// A fresh logger over the same file picks up the existing count.
	second := New(dir, nil)
	require.NoError(t, second.Record(Entry{Time: time.Now()}))
	assert.Equal(t, 11, countFileLines(t, second.Path()))
}
