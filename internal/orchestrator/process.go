package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/qacheck/internal/logger"
)

var errEmptyCommand = errors.New("empty command")

// LaunchError reports a tool that could not be started.
type LaunchError struct {
	Argv []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("orchestrator: launch %s: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// exitStatus is the outcome of a finished tool. Code is -1 when the process
// was terminated by a signal.
type exitStatus struct {
	Code int
}

func (s exitStatus) Success() bool { return s.Code == 0 }
func (s exitStatus) Killed() bool  { return s.Code < 0 }

// invoke runs argv with stdout and stderr merged into one pipe, printing
// each line as it arrives. It returns once the process has exited and its
// output is drained.
func (r *StepRunner) invoke(ctx context.Context, p Printer, opts Options, argv ...string) (exitStatus, error) {
	if len(argv) == 0 || argv[0] == "" {
		return exitStatus{}, &LaunchError{Argv: argv, Err: errEmptyCommand}
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), opts.Env()...)

	pr, pw, err := os.Pipe()
	if err != nil {
		return exitStatus{}, &LaunchError{Argv: argv, Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return exitStatus{}, &LaunchError{Argv: argv, Err: err}
	}
	pw.Close()

	// Descendants may keep the write end open after the tool is killed.
	stop := context.AfterFunc(ctx, func() { pr.Close() })
	defer stop()

	logger.Debug("tool started", zap.Strings("argv", argv), zap.Int("pid", cmd.Process.Pid))
	r.stream(ctx, pr, p)
	pr.Close()

	err = cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return exitStatus{Code: 0}, nil
	case errors.As(err, &exitErr):
		logger.Debug("tool exited", zap.Strings("argv", argv), zap.Int("code", exitErr.ExitCode()))
		return exitStatus{Code: exitErr.ExitCode()}, nil
	default:
		return exitStatus{}, fmt.Errorf("orchestrator: wait %s: %w", argv[0], err)
	}
}

// stream forwards every line of rd, however long, until EOF. A trailing
// line without a newline is forwarded too.
func (r *StepRunner) stream(ctx context.Context, rd io.Reader, p Printer) {
	br := bufio.NewReaderSize(rd, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			p.Write(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Warn("tool output read failed", zap.Error(err))
			}
			return
		}
	}
}
