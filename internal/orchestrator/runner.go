package orchestrator

import (
	"context"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/qacheck/internal/config"
	"github.com/dusk-indust/qacheck/internal/files"
	"github.com/dusk-indust/qacheck/internal/logger"
)

const (
	msgNothingToCheck = "Nothing to check, skipping"
	msgValidatorHint  = "\x1b[0;33mThere was an error running the validator. Re-run with the --debug option to see the output.\x1b[0m"
)

// StepRunner executes a single step: a validator profile or a shell script
// over the step's files.
type StepRunner struct {
	// Validator describes the validator and analyzer commands.
	Validator config.ValidatorSettings

	// Timeout bounds each tool invocation. Zero means no limit.
	Timeout time.Duration

	// Dir is the working directory of every tool.
	Dir string

	// Shell interprets script steps. Defaults to sh.
	Shell string
}

// NewStepRunner creates a StepRunner from the runtime settings.
func NewStepRunner(settings *config.Settings, dir string) *StepRunner {
	return &StepRunner{
		Validator: settings.Validator,
		Timeout:   settings.Step.Timeout,
		Dir:       dir,
	}
}

// Run executes step over its files in res and reports whether it passed.
// A step with no files passes without launching anything.
func (r *StepRunner) Run(ctx context.Context, step config.Step, res files.Resolution, p Printer, opts Options) bool {
	paths := res.Gather(step.Patterns...)
	if len(paths) == 0 {
		p.Write(msgNothingToCheck)
		return true
	}
	if step.IsValidator() {
		return r.runValidator(ctx, step, paths, p, opts)
	}
	return r.runScript(ctx, step, paths, p, opts)
}

func (r *StepRunner) runScript(ctx context.Context, step config.Step, paths []string, p Printer, opts Options) bool {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	command := step.Script + " " + strings.Join(paths, " ")

	status, err := r.invoke(ctx, p, opts, shell, "-c", command)
	if err != nil {
		r.reportLaunch(step, p, err)
		return false
	}
	return status.Success()
}

func (r *StepRunner) runValidator(ctx context.Context, step config.Step, paths []string, p Printer, opts Options) bool {
	artifact, err := os.CreateTemp("", "qacheck-*.xml")
	if err != nil {
		r.reportLaunch(step, p, err)
		return false
	}
	out := artifact.Name()
	artifact.Close()
	defer os.Remove(out)

	status, err := r.invoke(ctx, p, opts, r.validatorArgs(step.Profile, out, paths)...)
	if err != nil || status.Killed() || (!status.Success() && isEmpty(out)) {
		if err != nil {
			r.reportLaunch(step, p, err)
		}
		if !opts.Debug {
			p.Write(msgValidatorHint)
		}
		return false
	}

	status, err = r.invoke(ctx, p, opts, r.analyzerArgs(out)...)
	if err != nil {
		r.reportLaunch(step, p, err)
		return false
	}
	return status.Success()
}

func (r *StepRunner) validatorArgs(profile, out string, paths []string) []string {
	args := slices.Clone(r.Validator.Command)
	for _, ig := range r.Validator.IGs {
		args = append(args, "-ig", ig)
	}
	args = append(args, "-recurse", "-profile", profile, "-output", out)
	return append(args, paths...)
}

func (r *StepRunner) analyzerArgs(artifact string) []string {
	args := slices.Clone(r.Validator.Analyzer)
	if r.Validator.FailAt != "" {
		args = append(args, "--fail-at", r.Validator.FailAt)
	}
	if r.Validator.IgnoredIssues != "" {
		args = append(args, "--ignored-issues", r.Validator.IgnoredIssues)
	}
	return append(args, artifact)
}

func (r *StepRunner) reportLaunch(step config.Step, p Printer, err error) {
	logger.Error("step tool failed to run", zap.String("step", step.Name), zap.Error(err))
	p.Write("\x1b[0;31m" + err.Error() + "\x1b[0m")
}

func isEmpty(path string) bool {
	info, err := os.Stat(path)
	return err != nil || info.Size() == 0
}
