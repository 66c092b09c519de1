package orchestrator

import "fmt"

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  \u25cb %s (pending)", event.Step)
	case ProgressWorking:
		return fmt.Sprintf("  \u25cf %s...", event.Step)
	case ProgressComplete:
		return fmt.Sprintf("  \u2713 %s complete", event.Step)
	case ProgressFailed:
		if event.Message == "" {
			return fmt.Sprintf("  \u2717 %s failed", event.Step)
		}
		return fmt.Sprintf("  \u2717 %s failed: %s", event.Step, event.Message)
	case ProgressSkipped:
		return fmt.Sprintf("  - %s skipped: %s", event.Step, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Step)
	}
}

// FormatStepHeader formats the line announcing a step.
func FormatStepHeader(name string) string {
	return "\x1b[1;37m+++ " + name + "\x1b[0m"
}
