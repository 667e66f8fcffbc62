package domain

import "time"

// Item is a core entity describing one detected video tracked end-to-end.
// Identity fields are immutable after detection; everything else changes
// only through status transitions recorded in the ledger.
type Item struct {
	ExternalID   string
	Title        string
	URL          string
	Description  string
	ThumbnailURL string
	PublishedAt  time.Time
	DiscoveredAt time.Time
}

// TranscriptSource tells which collaborator produced the text.
type TranscriptSource string

const (
	SourceCaptions     TranscriptSource = "captions"
	SourceSpeechToText TranscriptSource = "speech_to_text"
)

// Transcript is the flat text derived from an item. Regeneration creates a
// new Transcript superseding the prior one; transcripts are never mutated.
type Transcript struct {
	ItemID    string
	Text      string
	Language  string
	Source    TranscriptSource
	CharCount int
	WordCount int
	CreatedAt time.Time
}

// PostDraft is one numbered revision of generated candidate content.
// Revisions for an item are contiguous starting at 1; exactly one revision
// is current at any time.
type PostDraft struct {
	ItemID     string
	Platform   string
	Revision   int
	Body       string
	Hashtags   []string
	EmojiCount int
	Model      string
	PromptName string
	Current    bool
	CreatedAt  time.Time
}

// PublishedReceipt records the external side effect of a successful publish.
type PublishedReceipt struct {
	ItemID       string
	RemotePostID string
	PostURL      string
	PublishedAt  time.Time
}

// ApprovalDecision is the human reviewer's verdict on a draft.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
	DecisionEdit    ApprovalDecision = "edit"
)

// FeedEntry is one raw entry returned by the feed source before it becomes
// a tracked Item.
type FeedEntry struct {
	ExternalID   string
	Title        string
	URL          string
	Description  string
	ThumbnailURL string
	PublishedAt  time.Time
}

// Segment is a timed chunk of caption or speech-to-text output.
type Segment struct {
	Text  string
	Start float64
	Dur   float64
}
