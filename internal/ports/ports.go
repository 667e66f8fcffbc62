package ports

import (
	"context"
	"errors"
	"time"

	"ShortsPublisher/internal/domain"
)

// ErrNotFound is returned by store lookups with no matching record.
var ErrNotFound = errors.New("not found")

// FeedSource pulls fresh entries from the upstream content feed.
type FeedSource interface {
	Poll(ctx context.Context, since time.Time) ([]domain.FeedEntry, error)
}

// CaptionSource retrieves platform-provided caption tracks.
// A missing track is reported as domain.KindNotAvailable.
type CaptionSource interface {
	Captions(ctx context.Context, externalID string, languages []string) ([]domain.Segment, string, error)
}

// SpeechToText transcribes media when no caption track exists.
type SpeechToText interface {
	Transcribe(ctx context.Context, mediaRef string) ([]domain.Segment, string, error)
}

// CompletionRequest carries one prompt to the text-generation service.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// TextGenerator drafts post bodies from transcripts.
type TextGenerator interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Publisher submits an approved body to the social platform.
type Publisher interface {
	Publish(ctx context.Context, body string, mediaRefs []string) (domain.PublishedReceipt, error)
}

// ApprovalChannel presents a draft plus its evaluation summary to the human
// reviewer. Decisions arrive asynchronously through the gate's Resolve path.
type ApprovalChannel interface {
	Present(ctx context.Context, item domain.Item, draft domain.PostDraft, eval domain.EvaluationResult) (requestID string, err error)
}

// ItemStore is the durable record store: item identities, the append-only
// transition ledger, transcripts, draft revisions, and publish bookkeeping.
type ItemStore interface {
	SeedItem(ctx context.Context, item domain.Item) error
	Item(ctx context.Context, externalID string) (domain.Item, error)
	KnownIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)

	AppendTransition(ctx context.Context, t domain.StatusTransition) error
	CurrentStatus(ctx context.Context, itemID string) (domain.Status, error)
	Ledger(ctx context.Context, itemID string) ([]domain.StatusTransition, error)
	Runnable(ctx context.Context) ([]string, error)

	SaveTranscript(ctx context.Context, transcript domain.Transcript) error
	LatestTranscript(ctx context.Context, itemID string) (domain.Transcript, error)

	SaveDraft(ctx context.Context, draft domain.PostDraft) error
	UpdateDraftBody(ctx context.Context, itemID string, revision int, body string) error
	CurrentDraft(ctx context.Context, itemID string) (domain.PostDraft, error)
	DraftRevisions(ctx context.Context, itemID string) ([]domain.PostDraft, error)

	RecordPublishAttempt(ctx context.Context, itemID string, attempt int, attemptErr string) error
	PublishAttempts(ctx context.Context, itemID string) (int, error)
	SaveReceipt(ctx context.Context, receipt domain.PublishedReceipt) error
	Receipt(ctx context.Context, itemID string) (domain.PublishedReceipt, error)
}

// LeaseStore grants the per-item mutual-exclusion claim required before a
// worker may process an item.
type LeaseStore interface {
	TryAcquire(ctx context.Context, itemID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, itemID string) error
}

// ResumeQueue re-enqueues parked items after an external decision.
type ResumeQueue interface {
	Push(ctx context.Context, itemID string) error
	Pop(ctx context.Context) (string, bool, error)
}
