// Package preview normalizes external CI/build statuses for display.
package preview

import "github.com/xanzy/go-gitlab"

// State is the normalized preview state of one external check.
type State string

const (
	// StateSuccess is a check that reported success.
	StateSuccess State = "success"
	// StateOther is any non-success report.
	StateOther State = "other"
)

// Check is one external status report attached to a commit. Target URL and
// context name pass through unchanged.
type Check struct {
	State     State
	Context   string
	TargetURL string
}

// StateOf buckets a raw status string into success or other.
func StateOf(raw string) State {
	if raw == "success" {
		return StateSuccess
	}
	return StateOther
}

// FromCommitStatus maps a service status report to a normalized check.
func FromCommitStatus(s *gitlab.CommitStatus) Check {
	return Check{
		State:     StateOf(s.Status),
		Context:   s.Name,
		TargetURL: s.TargetURL,
	}
}
