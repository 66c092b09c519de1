// Package orchestrator runs QA steps: it resolves the file groups once per
// run, launches each requested step's tool over its files, streams the tool
// output to a Printer, and folds the per-step outcomes into one result.
package orchestrator

import (
	"context"

	"github.com/dusk-indust/qacheck/internal/files"
)

// Printer receives progress lines as they are produced.
type Printer interface {
	Write(line string)
}

// Resolver computes the file groups for one run.
type Resolver interface {
	Resolve(ctx context.Context, policy files.Policy) (files.Resolution, error)
}

// Orchestrator executes an ordered list of steps.
type Orchestrator interface {
	// Execute runs the named steps in the given order and reports whether
	// all of them succeeded. The error is non-nil only when the run could
	// not be carried out at all.
	Execute(ctx context.Context, p Printer, opts Options, stepNames ...string) (bool, error)
}

// Options are the per-run switches.
type Options struct {
	// Debug is exported to every tool as debug=1.
	Debug bool

	// Policy selects which files the run considers.
	Policy files.Policy

	// OnProgress, when set, receives a ProgressEvent for every step state
	// change. It is called synchronously from the running goroutine.
	OnProgress func(ProgressEvent)
}

// Env returns the variables appended to each tool's environment.
func (o Options) Env() []string {
	return []string{
		"debug=" + boolFlag(o.Debug),
		"changed_only=" + boolFlag(o.Policy == files.ChangedOnly),
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ProgressEvent is emitted as each step changes state.
type ProgressEvent struct {
	Step    string
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a step within a run.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
	ProgressSkipped  ProgressStatus = "skipped"
)
