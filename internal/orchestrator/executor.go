package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/qacheck/internal/config"
	"github.com/dusk-indust/qacheck/internal/files"
	"github.com/dusk-indust/qacheck/internal/logger"
)

// Compile-time interface check.
var _ Orchestrator = (*Executor)(nil)

const (
	msgAllPassed  = "All checks finished successfully"
	msgSomeFailed = "Not all checks finished successfully"
)

// ErrUnknownStep is returned when a requested step is not declared.
var ErrUnknownStep = errors.New("unknown step")

// StepFunc runs one step. StepRunner.Run satisfies it.
type StepFunc func(ctx context.Context, step config.Step, res files.Resolution, p Printer, opts Options) bool

// Executor runs steps declared in a Config.
type Executor struct {
	cfg      *config.Config
	resolver Resolver
	run      StepFunc
}

// NewExecutor creates an Executor. run is usually (*StepRunner).Run.
func NewExecutor(cfg *config.Config, resolver Resolver, run StepFunc) *Executor {
	return &Executor{cfg: cfg, resolver: resolver, run: run}
}

// Steps returns the declared step names in declaration order.
func (e *Executor) Steps() []string {
	return e.cfg.StepNames()
}

// Execute resolves files once and runs the named steps in order. The result
// is the AND of every executed step, except that a step with no files ends
// the run as successful. A resolution failure aborts the run before any step
// starts and is returned as an error.
func (e *Executor) Execute(ctx context.Context, p Printer, opts Options, stepNames ...string) (bool, error) {
	steps := make([]config.Step, 0, len(stepNames))
	var unknown []string
	for _, name := range stepNames {
		step, ok := e.cfg.Step(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		steps = append(steps, step)
	}
	if len(unknown) > 0 {
		return false, fmt.Errorf("orchestrator: %w: %s", ErrUnknownStep, strings.Join(unknown, ", "))
	}

	for _, step := range steps {
		opts.emit(ProgressEvent{Step: step.Name, Status: ProgressPending})
	}

	res, err := e.resolver.Resolve(ctx, opts.Policy)
	if err != nil {
		p.Write("\x1b[1;31m" + err.Error() + "\x1b[0m")
		logger.Error("file resolution failed", zap.Stringer("policy", opts.Policy), zap.Error(err))
		return false, fmt.Errorf("orchestrator: %w", err)
	}
	logger.Debug("files resolved",
		zap.Stringer("policy", opts.Policy),
		zap.Int("files", res.Len()),
	)

	ok := true
	for _, step := range steps {
		p.Write(FormatStepHeader(step.Name))

		if len(res.Gather(step.Patterns...)) == 0 {
			p.Write(msgNothingToCheck)
			opts.emit(ProgressEvent{Step: step.Name, Status: ProgressSkipped, Message: "no files"})
			ok = true
			break
		}

		opts.emit(ProgressEvent{Step: step.Name, Status: ProgressWorking})
		if e.run(ctx, step, res, p, opts) {
			opts.emit(ProgressEvent{Step: step.Name, Status: ProgressComplete})
		} else {
			ok = false
			opts.emit(ProgressEvent{Step: step.Name, Status: ProgressFailed})
		}
	}

	if ok {
		p.Write(msgAllPassed)
	} else {
		p.Write(msgSomeFailed)
	}
	return ok, nil
}

func (o Options) emit(event ProgressEvent) {
	if o.OnProgress != nil {
		o.OnProgress(event)
	}
}
