package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

var errNoChangeSource = errors.New("no change source configured")

// Git lists changed files from a git working tree: paths that differ from
// the baseline (added, copied or modified) plus untracked files.
type Git struct {
	// Dir is the working directory; paths are reported relative to it.
	Dir string

	// Binary is the git executable. Defaults to "git".
	Binary string

	// Baseline is the reference to diff against, e.g. "origin/main".
	Baseline string
}

// Compile-time check.
var _ ChangeSource = (*Git)(nil)

// ChangedFiles runs the diff and the untracked-files query concurrently.
// Either failing fails the whole call with a *ResolutionError.
func (g *Git) ChangedFiles(ctx context.Context) ([]string, error) {
	var committed, untracked []string

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		out, err := g.run(egctx, "diff", "--name-only", "--relative", "--diff-filter=ACM", g.Baseline)
		if err != nil {
			return &ResolutionError{Op: "git diff " + g.Baseline, Err: err}
		}
		committed = splitLines(out)
		return nil
	})
	eg.Go(func() error {
		out, err := g.run(egctx, "ls-files", "--others")
		if err != nil {
			return &ResolutionError{Op: "git ls-files", Err: err}
		}
		untracked = splitLines(out)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return append(committed, untracked...), nil
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	// Unquoted output keeps non-ASCII paths comparable with glob matches.
	cmd := exec.CommandContext(ctx, bin, append([]string{"-c", "core.quotepath=off"}, args...)...)
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
