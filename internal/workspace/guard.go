// Package workspace enforces the filesystem boundary every path-accepting
// operation must respect. A Guard is bound to a project root; candidates
// are resolved to absolute form, checked for traversal escapes, and
// re-checked through the symlink-resolved path of their nearest existing
// ancestor so a planted symlink cannot smuggle writes outside the root.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// Guard validates candidate paths against a workspace root.
type Guard struct {
	root string
}

// NewGuard creates a guard for the given project root. The root itself
// is resolved through symlinks once so comparisons are stable.
func NewGuard(root string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Guard{root: abs}, nil
}

// Root returns the resolved workspace root.
func (g *Guard) Root() string {
	return g.root
}

// Resolve returns the absolute form of candidate if it stays inside the
// workspace root, or a boundary-violation error. Candidates may be
// relative (resolved against the root) or absolute.
func (g *Guard) Resolve(candidate string) (string, error) {
	abs := candidate
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(g.root, abs)
	}
	abs = filepath.Clean(abs)

	if !g.contains(abs) {
		return "", g.violation(candidate)
	}

	// A symlink planted inside the root can still point outside it.
	// Resolve the nearest existing ancestor to its real path and
	// re-check containment.
	resolved, err := resolveExistingAncestor(abs)
	if err != nil {
		return "", knowledge.WrapError(knowledge.KindBoundaryViolation, "workspace.resolve", err)
	}
	if !g.contains(resolved) {
		return "", g.violation(candidate)
	}

	return abs, nil
}

func (g *Guard) contains(abs string) bool {
	rel, err := filepath.Rel(g.root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (g *Guard) violation(candidate string) error {
	return knowledge.NewError(knowledge.KindBoundaryViolation, "workspace.resolve",
		fmt.Sprintf("path %q escapes workspace root", candidate))
}

// resolveExistingAncestor walks up from path to the nearest component
// that exists on disk, resolves it through symlinks, and rejoins the
// non-existing suffix.
func resolveExistingAncestor(path string) (string, error) {
	current := path
	var suffix []string
	for {
		if _, err := os.Lstat(current); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		suffix = append([]string{filepath.Base(current)}, suffix...)
		current = parent
	}

	resolved, err := filepath.EvalSymlinks(current)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, suffix...)...), nil
}
