// Package gitinfo answers the two version-control questions the store
// cares about: what commit the workspace is at (for stamping synced
// context files) and whether a code-evidence path is tracked by the
// repository.
package gitinfo

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Info reads repository state for one workspace root.
type Info struct {
	repo *git.Repository
}

// Open opens the repository at or above root. Returns ok=false when
// root is not inside a git repository; that is not an error, context
// sync simply omits the commit stamp.
func Open(root string) (*Info, bool, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &Info{repo: repo}, true, nil
}

// HeadCommit returns the abbreviated hash of HEAD, or "" for an empty
// repository.
func (i *Info) HeadCommit() (string, error) {
	head, err := i.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", err
	}
	hash := head.Hash().String()
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return hash, nil
}

// Tracked reports whether the given repo-relative path exists in the
// HEAD tree.
func (i *Info) Tracked(path string) (bool, error) {
	head, err := i.repo.Head()
	if err != nil {
		return false, nil
	}
	commit, err := i.repo.CommitObject(head.Hash())
	if err != nil {
		return false, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return false, err
	}
	if _, err := tree.File(path); err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
