package gitinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commitFile(t *testing.T, dir string, repo *git.Repository, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestOpenNoRepository(t *testing.T) {
	info, ok, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, info)
}

func TestHeadCommit(t *testing.T) {
	dir, repo := initRepo(t)

	info, ok, err := Open(dir)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("empty repository has no stamp", func(t *testing.T) {
		commit, err := info.HeadCommit()
		require.NoError(t, err)
		assert.Empty(t, commit)
	})

	t.Run("abbreviated after first commit", func(t *testing.T) {
		commitFile(t, dir, repo, "a.go", "package a\n")
		commit, err := info.HeadCommit()
		require.NoError(t, err)
		assert.Len(t, commit, 12)
	})
}

func TestTracked(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, dir, repo, "tracked.go", "package p\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.go"), []byte("package p\n"), 0o644))

	info, ok, err := Open(dir)
	require.NoError(t, err)
	require.True(t, ok)

	tracked, err := info.Tracked("tracked.go")
	require.NoError(t, err)
	assert.True(t, tracked)

	tracked, err = info.Tracked("untracked.go")
	require.NoError(t, err)
	assert.False(t, tracked)
}
