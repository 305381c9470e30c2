package models

import (
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Status
	}{
		{name: "canonical awaiting", input: "Awaiting Approval", want: StatusAwaitingApproval},
		{name: "canonical received", input: "Received", want: StatusReceived},
		{name: "canonical in progress", input: "In Progress", want: StatusInProgress},
		{name: "canonical resolved", input: "Resolved", want: StatusResolved},
		{name: "canonical rejected", input: "Rejected", want: StatusRejected},
		{name: "legacy lower await", input: "awaiting", want: StatusAwaitingApproval},
		{name: "legacy pending maps to default", input: "Pending", want: StatusAwaitingApproval},
		{name: "legacy uppercase progress", input: "IN PROGRESS", want: StatusInProgress},
		{name: "legacy verb form resolve", input: "resolve", want: StatusResolved},
		{name: "legacy free text received", input: "report was received by staff", want: StatusReceived},
		{name: "legacy free text rejected", input: "REJECTED - duplicate", want: StatusRejected},
		{name: "empty string defaults", input: "", want: StatusAwaitingApproval},
		{name: "garbage defaults", input: "zzz-unknown", want: StatusAwaitingApproval},
		{name: "approved maps to default", input: "Approved", want: StatusAwaitingApproval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeStatus(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeStatusIdempotent(t *testing.T) {
	inputs := []string{
		"Awaiting Approval", "Received", "In Progress", "Resolved", "Rejected",
		"awaiting", "progressing", "resolve", "receives", "rejection",
		"", "Pending", "??", "IN-PROGRESS", "status: resolved!",
	}

	for _, in := range inputs {
		once := NormalizeStatus(in)
		twice := NormalizeStatus(string(once))
		if once != twice {
			t.Errorf("NormalizeStatus not idempotent for %q: first %q, second %q", in, once, twice)
		}

		canonical := false
		for _, s := range AllStatuses {
			if once == s {
				canonical = true
			}
		}
		if !canonical {
			t.Errorf("NormalizeStatus(%q) = %q, not a canonical status", in, once)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "awaiting to received", from: StatusAwaitingApproval, to: StatusReceived, want: true},
		{name: "awaiting to rejected", from: StatusAwaitingApproval, to: StatusRejected, want: true},
		{name: "awaiting to resolved skips steps", from: StatusAwaitingApproval, to: StatusResolved, want: false},
		{name: "received to in progress", from: StatusReceived, to: StatusInProgress, want: true},
		{name: "received to rejected", from: StatusReceived, to: StatusRejected, want: false},
		{name: "in progress to resolved", from: StatusInProgress, to: StatusResolved, want: true},
		{name: "in progress back to received", from: StatusInProgress, to: StatusReceived, want: false},
		{name: "resolved is terminal", from: StatusResolved, to: StatusInProgress, want: false},
		{name: "rejected is terminal", from: StatusRejected, to: StatusReceived, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range AllStatuses {
		want := s == StatusResolved || s == StatusRejected
		if got := s.IsTerminal(); got != want {
			t.Errorf("%q.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}
