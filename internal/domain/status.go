package domain

import "time"

// Status enumerates workflow milestones. The ledger is the single source of
// truth for an item's current status.
type Status string

const (
	StatusDetected             Status = "detected"
	StatusTranscribing         Status = "transcribing"
	StatusTranscribed          Status = "transcribed"
	StatusModeratingTranscript Status = "moderating_transcript"
	StatusRejectedTranscript   Status = "rejected_transcript"
	StatusGenerating           Status = "generating"
	StatusGenerated            Status = "generated"
	StatusModeratingPost       Status = "moderating_post"
	StatusRejectedPost         Status = "rejected_post"
	StatusAwaitingApproval     Status = "awaiting_approval"
	StatusApproved             Status = "approved"
	StatusRejectedHuman        Status = "rejected_human"
	StatusEditRequested        Status = "edit_requested"
	StatusPublishing           Status = "publishing"
	StatusPublished            Status = "published"
	StatusPublishFailed        Status = "publish_failed"
	StatusFailed               Status = "failed"
)

// transitions maps each status to the statuses it may legally move to.
// StatusFailed is additionally reachable from every non-terminal status.
var transitions = map[Status][]Status{
	StatusDetected:             {StatusTranscribing},
	StatusTranscribing:         {StatusTranscribed},
	StatusTranscribed:          {StatusModeratingTranscript},
	StatusModeratingTranscript: {StatusRejectedTranscript, StatusGenerating},
	StatusGenerating:           {StatusGenerated},
	StatusGenerated:            {StatusModeratingPost},
	StatusModeratingPost:       {StatusRejectedPost, StatusAwaitingApproval},
	StatusAwaitingApproval:     {StatusApproved, StatusRejectedHuman, StatusEditRequested},
	StatusEditRequested:        {StatusModeratingPost, StatusRejectedHuman},
	StatusApproved:             {StatusPublishing},
	StatusPublishing:           {StatusPublished, StatusPublishFailed},
}

// Terminal reports whether no further automatic transition may occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusPublished, StatusPublishFailed, StatusRejectedTranscript,
		StatusRejectedPost, StatusRejectedHuman, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from one status to another is a legal
// step of the workflow state machine.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	if from == "" {
		return to == StatusDetected
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusTransition is one append-only ledger entry. Replaying the ledger in
// insertion order reconstructs the item's full history.
type StatusTransition struct {
	ItemID     string
	From       Status
	To         Status
	Stage      string
	At         time.Time
	Evaluation *EvaluationResult
	Error      string
}
