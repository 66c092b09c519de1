package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/qacheck/internal/config"
	"github.com/dusk-indust/qacheck/internal/files"
)

func scriptFixture(t *testing.T) (string, files.Resolution) {
	t.Helper()
	root := workspace(t, "src/a.txt", "src/b.txt")
	res := resolveAll(t, root, config.PatternGroup{Name: "text", Globs: []string{"src/*.txt"}})
	return root, res
}

func TestStepRunner_ScriptSuccess(t *testing.T) {
	requireShell(t)
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root}
	p := &recorder{}

	ok := r.Run(context.Background(), config.Step{Name: "list", Patterns: []string{"text"}, Script: "echo"}, res, p, Options{})

	assert.True(t, ok)
	assert.Equal(t, []string{"src/a.txt src/b.txt"}, p.Lines())
}

func TestStepRunner_ScriptFailure(t *testing.T) {
	requireShell(t)
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root}

	ok := r.Run(context.Background(), config.Step{Name: "lint", Patterns: []string{"text"}, Script: "exit 3 #"}, res, &recorder{}, Options{})

	assert.False(t, ok)
}

func TestStepRunner_StdoutAndStderrInterleaved(t *testing.T) {
	requireShell(t)
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root}
	p := &recorder{}

	step := config.Step{Name: "mixed", Patterns: []string{"text"}, Script: "echo out; echo err >&2; echo last #"}
	require.True(t, r.Run(context.Background(), step, res, p, Options{}))

	assert.Equal(t, []string{"out", "err", "last"}, p.Lines())
}

func TestStepRunner_LongLinesForwarded(t *testing.T) {
	requireShell(t)
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root}
	p := &recorder{}

	step := config.Step{Name: "big", Patterns: []string{"text"}, Script: `head -c 2000000 /dev/zero | tr '\0' x; echo; echo after #`}
	require.True(t, r.Run(context.Background(), step, res, p, Options{}))

	lines := p.Lines()
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], 2000000)
	assert.Equal(t, strings.Repeat("x", 16), lines[0][:16])
	assert.Equal(t, "after", lines[1])
}

func TestStream_SplitsLines(t *testing.T) {
	long := strings.Repeat("y", 3<<20)
	in := "first\r\n\n" + long + "\nno newline"
	p := &recorder{}

	(&StepRunner{}).stream(context.Background(), strings.NewReader(in), p)

	assert.Equal(t, []string{"first", "", long, "no newline"}, p.Lines())
}

func TestStepRunner_Environment(t *testing.T) {
	requireShell(t)
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root}

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"defaults", Options{}, "debug=0 changed_only=0"},
		{"debug", Options{Debug: true}, "debug=1 changed_only=0"},
		{"changed only", Options{Policy: files.ChangedOnly}, "debug=0 changed_only=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recorder{}
			step := config.Step{Name: "env", Patterns: []string{"text"}, Script: `echo debug=$debug changed_only=$changed_only #`}
			require.True(t, r.Run(context.Background(), step, res, p, tt.opts))
			assert.Equal(t, []string{tt.want}, p.Lines())
		})
	}
}

func TestStepRunner_EnvironmentNotLeaked(t *testing.T) {
	requireShell(t)
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root}

	step := config.Step{Name: "env", Patterns: []string{"text"}, Script: "true"}
	require.True(t, r.Run(context.Background(), step, res, &recorder{}, Options{Debug: true}))

	_, set := os.LookupEnv("debug")
	assert.False(t, set, "the parent environment must not change")
}

func TestStepRunner_NothingToCheck(t *testing.T) {
	root := workspace(t, "src/a.txt")
	res := resolveAll(t, root, config.PatternGroup{Name: "none", Globs: []string{"*.nothing"}})
	r := &StepRunner{Dir: root, Shell: filepath.Join(root, "missing-shell")}
	p := &recorder{}

	ok := r.Run(context.Background(), config.Step{Name: "s", Patterns: []string{"none"}, Script: "false"}, res, p, Options{})

	assert.True(t, ok)
	assert.Equal(t, []string{msgNothingToCheck}, p.Lines())
}

func TestStepRunner_LaunchFailure(t *testing.T) {
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root, Shell: filepath.Join(root, "missing-shell")}
	p := &recorder{}

	ok := r.Run(context.Background(), config.Step{Name: "s", Patterns: []string{"text"}, Script: "true"}, res, p, Options{})

	assert.False(t, ok)
	require.Len(t, p.Lines(), 1)
	assert.Contains(t, p.Lines()[0], "launch")
}

func TestStepRunner_Timeout(t *testing.T) {
	requireShell(t)
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root, Timeout: 200 * time.Millisecond}

	start := time.Now()
	ok := r.Run(context.Background(), config.Step{Name: "slow", Patterns: []string{"text"}, Script: "sleep 10 #"}, res, &recorder{}, Options{})

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStepRunner_Cancelled(t *testing.T) {
	requireShell(t)
	root, res := scriptFixture(t)
	r := &StepRunner{Dir: root}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	ok := r.Run(ctx, config.Step{Name: "slow", Patterns: []string{"text"}, Script: "sleep 10 #"}, res, &recorder{}, Options{})

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// validatorFixture installs fake validator and analyzer tools. The
// validator records its arguments and artifact path; its behaviour is
// steered through FAKE_* environment variables.
type validatorFixture struct {
	root    string
	res     files.Resolution
	runner  *StepRunner
	records string
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()
	requireShell(t)

	root := workspace(t, "resources/patient.json", "resources/org.json")
	records := t.TempDir()

	validator := writeScript(t, records, "validator.sh", `
out=""
prev=""
for a; do
  if [ "$prev" = "-output" ]; then out="$a"; fi
  prev="$a"
done
echo "$@" > "`+records+`/validator.args"
echo "$out" > "`+records+`/artifact.path"
echo "validating"
if [ -n "$FAKE_WRITE" ]; then echo "<issues/>" > "$out"; fi
exit ${FAKE_VALIDATOR_EXIT:-0}
`)
	analyzer := writeScript(t, records, "analyzer.sh", `
for a; do last="$a"; done
echo "$@" > "`+records+`/analyzer.args"
test -s "$last" || { echo "artifact missing"; exit 9; }
echo "analyzed"
exit ${FAKE_ANALYZER_EXIT:-0}
`)

	return &validatorFixture{
		root: root,
		res:  resolveAll(t, root, config.PatternGroup{Name: "resources", Globs: []string{"resources/*.json"}}),
		runner: &StepRunner{
			Dir: root,
			Validator: config.ValidatorSettings{
				Command:       []string{"sh", validator},
				IGs:           []string{"qa", "resources"},
				Analyzer:      []string{"sh", analyzer, "--colorize"},
				FailAt:        "error",
				IgnoredIssues: "known-issues.yml",
			},
		},
		records: records,
	}
}

func (f *validatorFixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.records, name))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func (f *validatorFixture) run(opts Options) (bool, *recorder) {
	p := &recorder{}
	step := config.Step{Name: "profiles", Patterns: []string{"resources"}, Profile: "http://example.org/Profile"}
	return f.runner.Run(context.Background(), step, f.res, p, opts), p
}

func TestStepRunner_ValidatorPasses(t *testing.T) {
	f := newValidatorFixture(t)
	t.Setenv("FAKE_WRITE", "1")

	ok, p := f.run(Options{})

	assert.True(t, ok)
	assert.Equal(t, []string{"validating", "analyzed"}, p.Lines())

	artifact := f.read(t, "artifact.path")
	assert.Equal(t,
		"-ig qa -ig resources -recurse -profile http://example.org/Profile -output "+artifact+" resources/org.json resources/patient.json",
		f.read(t, "validator.args"))
	assert.Equal(t, "--colorize --fail-at error --ignored-issues known-issues.yml "+artifact, f.read(t, "analyzer.args"))
	assert.NoFileExists(t, artifact)
}

func TestStepRunner_AnalyzerFails(t *testing.T) {
	f := newValidatorFixture(t)
	t.Setenv("FAKE_WRITE", "1")
	t.Setenv("FAKE_ANALYZER_EXIT", "1")

	ok, p := f.run(Options{})

	assert.False(t, ok)
	assert.NotContains(t, p.Lines(), msgValidatorHint)
	assert.NoFileExists(t, f.read(t, "artifact.path"))
}

func TestStepRunner_ValidatorCrashes(t *testing.T) {
	tests := []struct {
		name     string
		debug    bool
		wantHint bool
	}{
		{"hint without debug", false, true},
		{"no hint in debug", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newValidatorFixture(t)
			t.Setenv("FAKE_VALIDATOR_EXIT", "2")

			ok, p := f.run(Options{Debug: tt.debug})

			assert.False(t, ok)
			if tt.wantHint {
				assert.Equal(t, msgValidatorHint, p.Lines()[len(p.Lines())-1])
			} else {
				assert.NotContains(t, p.Lines(), msgValidatorHint)
			}
			assert.NoFileExists(t, filepath.Join(f.records, "analyzer.args"), "analyzer must not run")
			assert.NoFileExists(t, f.read(t, "artifact.path"))
		})
	}
}

func TestStepRunner_ValidatorNonZeroWithArtifact(t *testing.T) {
	f := newValidatorFixture(t)
	t.Setenv("FAKE_WRITE", "1")
	t.Setenv("FAKE_VALIDATOR_EXIT", "1")

	ok, _ := f.run(Options{})

	assert.True(t, ok, "the analyzer decides when the validator produced a report")
	assert.FileExists(t, filepath.Join(f.records, "analyzer.args"))
}

func TestStepRunner_ValidatorLaunchFailure(t *testing.T) {
	f := newValidatorFixture(t)
	f.runner.Validator.Command = []string{filepath.Join(f.records, "no-such-validator")}

	ok, p := f.run(Options{})

	assert.False(t, ok)
	assert.Contains(t, p.Text(), "launch")
	assert.Equal(t, msgValidatorHint, p.Lines()[len(p.Lines())-1])
}

func TestStepRunner_ValidatorEmptyCommand(t *testing.T) {
	f := newValidatorFixture(t)
	f.runner.Validator.Command = nil

	ok, _ := f.run(Options{})

	assert.False(t, ok)
}

func TestLaunchError(t *testing.T) {
	err := &LaunchError{Argv: []string{"java", "-jar"}, Err: os.ErrNotExist}
	assert.Equal(t, "orchestrator: launch java -jar: file does not exist", err.Error())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
