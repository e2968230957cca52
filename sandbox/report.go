package sandbox

import (
	"fmt"
	"strings"
	"time"
)

// RenderReport formats an outcome as the plain-text report consumed by orchestrators.
// Console text is trimmed for presentation only, never truncated.
//
//nolint:gocritic // outcome is an immutable value
func RenderReport(outcome ExecutionOutcome) string {
	console := strings.TrimSpace(outcome.ConsoleText)

	var b strings.Builder
	switch {
	case outcome.TimedOut:
		fmt.Fprintf(&b, "Execution Timed Out after %s:\n---\n%s", outcome.Duration.Round(time.Millisecond), console)
	case outcome.Canceled:
		fmt.Fprintf(&b, "Execution Canceled:\n---\n%s", console)
	case !outcome.Succeeded:
		fmt.Fprintf(&b, "Execution Failed (Exit Code %d):\n---\n%s", outcome.ExitCode, console)
	case len(outcome.ProducedFiles) > 0:
		fmt.Fprintf(&b, "Execution Successful.\nConsole Output:\n---\n%s\n---\n", console)
		fmt.Fprintf(&b, "Output files created in the '%s' folder:\n%s",
			outcome.OutputDir, strings.Join(outcome.ProducedFiles, "\n"))
	default:
		fmt.Fprintf(&b, "Execution Successful:\n---\n%s", console)
	}

	for _, warning := range outcome.Warnings {
		fmt.Fprintf(&b, "\nWarning: %s", warning)
	}

	return b.String()
}

// RenderError formats a configuration or environment error for the same consumers.
func RenderError(err error) string {
	return "Error: " + err.Error()
}
