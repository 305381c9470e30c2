package models

import "strings"

// Status is the canonical lifecycle state of a report. Raw strings coming
// from clients or legacy rows are never handled directly; they are parsed
// into a Status at the boundary via NormalizeStatus.
type Status string

const (
	StatusAwaitingApproval Status = "Awaiting Approval"
	StatusReceived         Status = "Received"
	StatusInProgress       Status = "In Progress"
	StatusResolved         Status = "Resolved"
	StatusRejected         Status = "Rejected"
)

// AllStatuses lists every canonical status.
var AllStatuses = []Status{
	StatusAwaitingApproval,
	StatusReceived,
	StatusInProgress,
	StatusResolved,
	StatusRejected,
}

// transitions maps each status to the statuses an admin may move it to.
// Resolved and Rejected are terminal.
var transitions = map[Status][]Status{
	StatusAwaitingApproval: {StatusReceived, StatusRejected},
	StatusReceived:         {StatusInProgress},
	StatusInProgress:       {StatusResolved},
	StatusResolved:         {},
	StatusRejected:         {},
}

// NormalizeStatus parses an arbitrary status string into a canonical Status.
// Legacy rows carry free-form values, so matching is a case-insensitive
// substring check; anything unrecognized falls back to Awaiting Approval.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "await"):
		return StatusAwaitingApproval
	case strings.Contains(s, "progress"):
		return StatusInProgress
	case strings.Contains(s, "resolve"):
		return StatusResolved
	case strings.Contains(s, "receive"):
		return StatusReceived
	case strings.Contains(s, "reject"):
		return StatusRejected
	default:
		return StatusAwaitingApproval
	}
}

// CanTransition reports whether an admin status change from one status to
// another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further admin transitions.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}
