package files

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dusk-indust/qacheck/internal/config"
)

// ChangeSource lists the paths that count as changed for the changed-only
// policy. Paths are relative to the resolver root, slash-separated. A path
// may appear more than once.
type ChangeSource interface {
	ChangedFiles(ctx context.Context) ([]string, error)
}

// Resolver expands pattern groups against a directory tree.
type Resolver struct {
	groups  []config.PatternGroup
	fsys    fs.FS
	changes ChangeSource
}

// NewResolver creates a Resolver that globs under root. changes is consulted
// only for the changed-only policy and may be nil if that policy is never used.
func NewResolver(groups []config.PatternGroup, root string, changes ChangeSource) *Resolver {
	return &Resolver{
		groups:  groups,
		fsys:    os.DirFS(root),
		changes: changes,
	}
}

// Resolve builds a fresh Resolution. Groups are processed in declaration
// order, so earlier groups claim contested files first.
//
// Under FullScan a path is assigned to the first group that matches it.
// Under ChangedOnly a path is assigned only while it remains in the changed
// multiset; each claim consumes one occurrence.
func (r *Resolver) Resolve(ctx context.Context, policy Policy) (Resolution, error) {
	res := newResolution(policy)

	var claim func(string) bool
	switch policy {
	case ChangedOnly:
		if r.changes == nil {
			return Resolution{}, &ResolutionError{Op: "changed files", Err: errNoChangeSource}
		}
		changed, err := r.changes.ChangedFiles(ctx)
		if err != nil {
			return Resolution{}, asResolutionError("changed files", err)
		}
		remaining := make(map[string]int, len(changed))
		for _, p := range changed {
			if p != "" {
				remaining[p]++
			}
		}
		claim = func(p string) bool {
			if remaining[p] == 0 {
				return false
			}
			remaining[p]--
			return true
		}
	default:
		seen := make(map[string]bool)
		claim = func(p string) bool {
			if seen[p] {
				return false
			}
			seen[p] = true
			return true
		}
	}

	for _, g := range r.groups {
		res.addGroup(g.Name)
		inGroup := make(map[string]bool)
		for _, pattern := range g.Globs {
			if err := ctx.Err(); err != nil {
				return Resolution{}, &ResolutionError{Op: "glob", Err: err}
			}
			matches, err := r.glob(pattern)
			if err != nil {
				return Resolution{}, &ResolutionError{Op: "glob " + pattern, Err: err}
			}
			for _, m := range matches {
				if inGroup[m] || !claim(m) {
					continue
				}
				inGroup[m] = true
				res.add(g.Name, m)
			}
		}
	}

	return *res, nil
}

func (r *Resolver) glob(pattern string) ([]string, error) {
	pattern = strings.TrimPrefix(pattern, "./")
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	matches, err := doublestar.Glob(r.fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	patSegs := strings.Split(pattern, "/")
	visible := matches[:0]
	for _, m := range matches {
		if visibleMatch(patSegs, strings.Split(m, "/")) {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// visibleMatch reports whether path matches the pattern without a wildcard
// segment standing in for a dot-file or dot-directory. A hidden name is
// only matched by a pattern segment that itself starts with a dot, and
// "**" never descends into or ends on one.
func visibleMatch(pat, path []string) bool {
	if len(pat) == 0 {
		return len(path) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(path); i++ {
			if visibleMatch(pat[1:], path[i:]) {
				return true
			}
			if i < len(path) && isHidden(path[i]) {
				return false
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	if isHidden(path[0]) && !isHidden(pat[0]) {
		return false
	}
	ok, err := doublestar.Match(pat[0], path[0])
	return err == nil && ok && visibleMatch(pat[1:], path[1:])
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func asResolutionError(op string, err error) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	return &ResolutionError{Op: op, Err: err}
}
