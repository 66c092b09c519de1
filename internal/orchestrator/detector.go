package orchestrator

import (
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dusk-indust/qacheck/internal/config"
	"github.com/dusk-indust/qacheck/internal/logger"
)

// Tool is an external program a run may need.
type Tool struct {
	Name string // executable as configured
	Role string // validator, analyzer, shell, script, or git
	Path string // resolved location, empty when missing
}

// Available reports whether the tool was found.
func (t Tool) Available() bool { return t.Path != "" }

// DetectTools probes concurrently for the programs the declared steps need:
// the validator and analyzer when any step has a profile, the shell and the
// first word of every script, and git when changedOnly is set. Relative
// paths are looked up under dir, where steps run.
func DetectTools(ctx context.Context, cfg *config.Config, settings *config.Settings, dir string, changedOnly bool) []Tool {
	var wanted []Tool
	var validators, scripts bool
	commands := make(map[string]bool)
	for _, step := range cfg.Steps {
		if step.IsValidator() {
			validators = true
			continue
		}
		scripts = true
		fields := strings.Fields(step.Script)
		if len(fields) == 0 || commands[fields[0]] || isShellBuiltin(fields[0]) {
			continue
		}
		commands[fields[0]] = true
		wanted = append(wanted, Tool{Name: fields[0], Role: "script"})
	}
	if validators {
		if len(settings.Validator.Command) > 0 {
			wanted = append(wanted, Tool{Name: settings.Validator.Command[0], Role: "validator"})
		}
		if len(settings.Validator.Analyzer) > 0 {
			wanted = append(wanted, Tool{Name: settings.Validator.Analyzer[0], Role: "analyzer"})
		}
	}
	if scripts {
		wanted = append(wanted, Tool{Name: "sh", Role: "shell"})
	}
	if changedOnly {
		wanted = append(wanted, Tool{Name: settings.Git.Binary, Role: "git"})
	}

	var wg sync.WaitGroup
	for i := range wanted {
		wg.Add(1)
		go func(t *Tool) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			name := t.Name
			if strings.Contains(name, "/") && !filepath.IsAbs(name) {
				name = filepath.Join(dir, name)
			}
			if path, err := exec.LookPath(name); err == nil {
				t.Path = path
			}
		}(&wanted[i])
	}
	wg.Wait()

	sort.SliceStable(wanted, func(i, j int) bool { return wanted[i].Role < wanted[j].Role })
	for _, t := range wanted {
		if !t.Available() {
			logger.Warn("tool not found on PATH", zap.String("role", t.Role), zap.String("name", t.Name))
		}
	}
	return wanted
}

// isShellBuiltin reports words the shell resolves without a PATH lookup.
func isShellBuiltin(word string) bool {
	switch word {
	case "cd", "echo", "exit", "exec", "export", "set", "test", "true", "false", ":", ".", "[":
		return true
	}
	return strings.ContainsAny(word, "=;|&()$`")
}
