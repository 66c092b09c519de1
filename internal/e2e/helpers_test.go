//go:build e2e

package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/qacheck/internal/config"
	"github.com/dusk-indust/qacheck/internal/files"
	"github.com/dusk-indust/qacheck/internal/orchestrator"
)

// fixtureDir returns the path to the QA fixture project.
func fixtureDir() string {
	return filepath.Join("..", "..", "testdata", "fixtures", "qa_project")
}

// goldenDir returns the path to the testdata/golden directory.
func goldenDir() string {
	return filepath.Join("..", "..", "testdata", "golden")
}

func requireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
}

// fixtureSettings points the validator and analyzer at the fixture's
// stand-in scripts.
func fixtureSettings() *config.Settings {
	s := config.DefaultSettings()
	s.Validator.Command = []string{"sh", "tools/validator.sh"}
	s.Validator.Analyzer = []string{"sh", "tools/analyzer.sh"}
	return &s
}

// newExecutor wires the production components over root.
func newExecutor(t *testing.T, root string) (*orchestrator.Executor, *config.Config) {
	t.Helper()
	cfg, err := config.Load(filepath.Join(root, "qa.yml"))
	require.NoError(t, err)

	settings := fixtureSettings()
	git := &files.Git{Dir: root, Binary: settings.Git.Binary, Baseline: settings.Git.Baseline}
	resolver := files.NewResolver(cfg.Patterns, root, git)
	runner := orchestrator.NewStepRunner(settings, root)
	return orchestrator.NewExecutor(cfg, resolver, runner.Run), cfg
}

// copyFixture copies the fixture project into a fresh temp directory.
func copyFixture(t *testing.T) string {
	t.Helper()
	dst := t.TempDir()
	err := filepath.WalkDir(fixtureDir(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(fixtureDir(), path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o755)
	})
	require.NoError(t, err)
	return dst
}

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=qa", "GIT_AUTHOR_EMAIL=qa@example.org",
		"GIT_COMMITTER_NAME=qa", "GIT_COMMITTER_EMAIL=qa@example.org",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
