package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

func TestGuardResolve(t *testing.T) {
	root := t.TempDir()
	guard, err := NewGuard(root)
	require.NoError(t, err)

	t.Run("path inside root succeeds", func(t *testing.T) {
		got, err := guard.Resolve(filepath.Join(root, "sub", "file"))
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
	})

	t.Run("relative path resolved against root", func(t *testing.T) {
		got, err := guard.Resolve("exports/dump.jsonl")
		require.NoError(t, err)
		assert.Contains(t, got, guard.Root())
	})

	t.Run("dot-dot traversal rejected", func(t *testing.T) {
		_, err := guard.Resolve(filepath.Join(root, "..", "etc", "passwd"))
		require.Error(t, err)
		assert.True(t, knowledge.IsKind(err, knowledge.KindBoundaryViolation))
	})

	t.Run("absolute path outside root rejected", func(t *testing.T) {
		_, err := guard.Resolve("/etc/passwd")
		require.Error(t, err)
		assert.True(t, knowledge.IsKind(err, knowledge.KindBoundaryViolation))
	})

	t.Run("root itself is inside", func(t *testing.T) {
		_, err := guard.Resolve(root)
		assert.NoError(t, err)
	})

	t.Run("sibling with root as prefix rejected", func(t *testing.T) {
		_, err := guard.Resolve(root + "-evil/file")
		assert.Error(t, err)
	})

	t.Run("symlink escape rejected", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("symlink semantics differ on windows")
		}
		outside := t.TempDir()
		link := filepath.Join(root, "link")
		require.NoError(t, os.Symlink(outside, link))

		_, err := guard.Resolve(filepath.Join(root, "link", "passwd"))
		require.Error(t, err)
		assert.True(t, knowledge.IsKind(err, knowledge.KindBoundaryViolation))
	})

	t.Run("symlink within root allowed", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("symlink semantics differ on windows")
		}
		target := filepath.Join(root, "target")
		require.NoError(t, os.MkdirAll(target, 0o755))
		link := filepath.Join(root, "inlink")
		require.NoError(t, os.Symlink(target, link))

		_, err := guard.Resolve(filepath.Join(root, "inlink", "file"))
		assert.NoError(t, err)
	})

	t.Run("nonexistent deep path inside root succeeds", func(t *testing.T) {
		_, err := guard.Resolve(filepath.Join(root, "a", "b", "c", "d"))
		assert.NoError(t, err)
	})
}
