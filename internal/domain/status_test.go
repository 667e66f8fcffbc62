package domain

import "testing"

func TestCanTransitionHappyPath(t *testing.T) {
	t.Parallel()

	path := []Status{
		StatusDetected, StatusTranscribing, StatusTranscribed,
		StatusModeratingTranscript, StatusGenerating, StatusGenerated,
		StatusModeratingPost, StatusAwaitingApproval, StatusApproved,
		StatusPublishing, StatusPublished,
	}

	from := Status("")
	for _, to := range path {
		if !CanTransition(from, to) {
			t.Fatalf("expected %q -> %q to be legal", from, to)
		}
		from = to
	}
}

func TestCanTransitionRejectsIllegalJumps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
	}{
		{StatusDetected, StatusPublishing},
		{StatusTranscribing, StatusGenerating},
		{StatusModeratingPost, StatusApproved},
		{StatusAwaitingApproval, StatusPublishing},
		{"", StatusTranscribing},
	}
	for _, tt := range tests {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("%q -> %q must be illegal", tt.from, tt.to)
		}
	}
}

func TestTerminalStatusesAcceptNothing(t *testing.T) {
	t.Parallel()

	terminals := []Status{
		StatusPublished, StatusPublishFailed, StatusRejectedTranscript,
		StatusRejectedPost, StatusRejectedHuman, StatusFailed,
	}
	for _, terminal := range terminals {
		if !terminal.Terminal() {
			t.Errorf("%q must be terminal", terminal)
		}
		if CanTransition(terminal, StatusFailed) {
			t.Errorf("%q must not transition, even to failed", terminal)
		}
	}
}

func TestFailedReachableFromAnyNonTerminal(t *testing.T) {
	t.Parallel()

	active := []Status{
		StatusDetected, StatusTranscribing, StatusTranscribed,
		StatusModeratingTranscript, StatusGenerating, StatusGenerated,
		StatusModeratingPost, StatusAwaitingApproval, StatusEditRequested,
		StatusApproved, StatusPublishing,
	}
	for _, from := range active {
		if !CanTransition(from, StatusFailed) {
			t.Errorf("%q -> failed must be legal", from)
		}
	}
}

func TestEditRequestedReentersModeration(t *testing.T) {
	t.Parallel()

	if !CanTransition(StatusAwaitingApproval, StatusEditRequested) {
		t.Fatal("awaiting_approval -> edit_requested must be legal")
	}
	if !CanTransition(StatusEditRequested, StatusModeratingPost) {
		t.Fatal("edit_requested -> moderating_post must be legal")
	}
	if !CanTransition(StatusEditRequested, StatusRejectedHuman) {
		t.Fatal("edit_requested -> rejected_human must be legal")
	}
}
