package orchestrator

import (
	"fmt"
	"strings"

	"github.com/sentra-sec/sentra/api/schemas"
)

// buildSummary renders a capability-ordered digest of the session outcome.
// Completed tasks contribute their output's first line and confidence;
// failures are listed with their error so the summary alone is enough to
// triage a failed session.
func buildSummary(session *schemas.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (%s)\nScenario: %s\n", session.ID, session.Status, session.Scenario)

	for _, capability := range schemas.AllCapabilities() {
		for _, t := range session.Tasks {
			if t.Capability != capability {
				continue
			}
			switch t.Status {
			case schemas.TaskCompleted:
				fmt.Fprintf(&b, "\n[%s] completed (confidence %.2f)\n%s\n",
					capability, t.Result.Confidence, firstLine(t.Result.Output))
			case schemas.TaskFailed:
				fmt.Fprintf(&b, "\n[%s] failed: %s\n", capability, t.Error)
			default:
				fmt.Fprintf(&b, "\n[%s] did not run (%s)\n", capability, t.Status)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
