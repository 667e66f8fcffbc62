package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/ports"
)

// memStore is an in-memory ItemStore enforcing the same transition legality
// as the Postgres implementation.
type memStore struct {
	mu          sync.Mutex
	items       map[string]domain.Item
	ledger      map[string][]domain.StatusTransition
	transcripts map[string][]domain.Transcript
	drafts      map[string][]domain.PostDraft
	attempts    map[string][]string
	receipts    map[string]domain.PublishedReceipt
}

var _ ports.ItemStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		items:       map[string]domain.Item{},
		ledger:      map[string][]domain.StatusTransition{},
		transcripts: map[string][]domain.Transcript{},
		drafts:      map[string][]domain.PostDraft{},
		attempts:    map[string][]string{},
		receipts:    map[string]domain.PublishedReceipt{},
	}
}

func (s *memStore) SeedItem(_ context.Context, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ExternalID]; !ok {
		s.items[item.ExternalID] = item
	}
	return nil
}

func (s *memStore) Item(_ context.Context, externalID string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[externalID]
	if !ok {
		return domain.Item{}, ports.ErrNotFound
	}
	return item, nil
}

func (s *memStore) KnownIDs(_ context.Context, externalIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := map[string]bool{}
	for _, id := range externalIDs {
		if _, ok := s.items[id]; ok {
			known[id] = true
		}
	}
	return known, nil
}

func (s *memStore) AppendTransition(_ context.Context, t domain.StatusTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := domain.Status("")
	if entries := s.ledger[t.ItemID]; len(entries) > 0 {
		current = entries[len(entries)-1].To
	}
	if !domain.CanTransition(current, t.To) {
		return domain.Errorf(domain.KindValidation,
			"illegal transition %s -> %s for item %s", current, t.To, t.ItemID)
	}

	t.From = current
	s.ledger[t.ItemID] = append(s.ledger[t.ItemID], t)
	return nil
}

func (s *memStore) CurrentStatus(_ context.Context, itemID string) (domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.ledger[itemID]
	if len(entries) == 0 {
		return "", ports.ErrNotFound
	}
	return entries[len(entries)-1].To, nil
}

func (s *memStore) Ledger(_ context.Context, itemID string) ([]domain.StatusTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StatusTransition, len(s.ledger[itemID]))
	copy(out, s.ledger[itemID])
	return out, nil
}

func (s *memStore) Runnable(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, entries := range s.ledger {
		if len(entries) == 0 {
			continue
		}
		latest := entries[len(entries)-1].To
		if !latest.Terminal() && latest != domain.StatusAwaitingApproval {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) SaveTranscript(_ context.Context, transcript domain.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[transcript.ItemID] = append(s.transcripts[transcript.ItemID], transcript)
	return nil
}

func (s *memStore) LatestTranscript(_ context.Context, itemID string) (domain.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.transcripts[itemID]
	if len(entries) == 0 {
		return domain.Transcript{}, ports.ErrNotFound
	}
	return entries[len(entries)-1], nil
}

func (s *memStore) SaveDraft(_ context.Context, draft domain.PostDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.drafts[draft.ItemID] {
		s.drafts[draft.ItemID][i].Current = false
	}
	draft.Current = true
	s.drafts[draft.ItemID] = append(s.drafts[draft.ItemID], draft)
	return nil
}

func (s *memStore) UpdateDraftBody(_ context.Context, itemID string, revision int, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, draft := range s.drafts[itemID] {
		if draft.Revision == revision {
			s.drafts[itemID][i].Body = body
			return nil
		}
	}
	return ports.ErrNotFound
}

func (s *memStore) CurrentDraft(_ context.Context, itemID string) (domain.PostDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, draft := range s.drafts[itemID] {
		if draft.Current {
			return draft, nil
		}
	}
	return domain.PostDraft{}, ports.ErrNotFound
}

func (s *memStore) DraftRevisions(_ context.Context, itemID string) ([]domain.PostDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PostDraft, len(s.drafts[itemID]))
	copy(out, s.drafts[itemID])
	return out, nil
}

func (s *memStore) RecordPublishAttempt(_ context.Context, itemID string, attempt int, attemptErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[itemID] = append(s.attempts[itemID], attemptErr)
	return nil
}

func (s *memStore) PublishAttempts(_ context.Context, itemID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts[itemID]), nil
}

func (s *memStore) SaveReceipt(_ context.Context, receipt domain.PublishedReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[receipt.ItemID]; !ok {
		s.receipts[receipt.ItemID] = receipt
	}
	return nil
}

func (s *memStore) Receipt(_ context.Context, itemID string) (domain.PublishedReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	receipt, ok := s.receipts[itemID]
	if !ok {
		return domain.PublishedReceipt{}, ports.ErrNotFound
	}
	return receipt, nil
}

// memLeases grants every claim unless an id is marked held.
type memLeases struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ ports.LeaseStore = (*memLeases)(nil)

func newMemLeases() *memLeases {
	return &memLeases{held: map[string]bool{}}
}

func (l *memLeases) TryAcquire(_ context.Context, itemID string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[itemID] {
		return false, nil
	}
	l.held[itemID] = true
	return true, nil
}

func (l *memLeases) Release(_ context.Context, itemID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, itemID)
	return nil
}

// memQueue is a FIFO resume queue.
type memQueue struct {
	mu  sync.Mutex
	ids []string
}

var _ ports.ResumeQueue = (*memQueue)(nil)

func (q *memQueue) Push(_ context.Context, itemID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, itemID)
	return nil
}

func (q *memQueue) Pop(_ context.Context) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", false, nil
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true, nil
}

// fakeFeed returns a fixed set of entries on every poll.
type fakeFeed struct {
	entries []domain.FeedEntry
	err     error
}

func (f *fakeFeed) Poll(_ context.Context, _ time.Time) ([]domain.FeedEntry, error) {
	return f.entries, f.err
}

// fakeCaptions serves one caption track or a configured error.
type fakeCaptions struct {
	segments []domain.Segment
	language string
	err      error
}

func (c *fakeCaptions) Captions(_ context.Context, _ string, _ []string) ([]domain.Segment, string, error) {
	if c.err != nil {
		return nil, "", c.err
	}
	return c.segments, c.language, nil
}

// fakeSTT transcribes every media reference into a fixed text.
type fakeSTT struct {
	segments []domain.Segment
	language string
	err      error
	calls    int
}

func (s *fakeSTT) Transcribe(_ context.Context, _ string) ([]domain.Segment, string, error) {
	s.calls++
	if s.err != nil {
		return nil, "", s.err
	}
	return s.segments, s.language, nil
}

// fakeLLM completes every request with a fixed body.
type fakeLLM struct {
	body string
	err  error
}

func (l *fakeLLM) Complete(_ context.Context, _ ports.CompletionRequest) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return l.body, nil
}

// fakePublisher fails the first failures calls and then succeeds.
type fakePublisher struct {
	mu       sync.Mutex
	failures int
	failWith error
	calls    int
}

func (p *fakePublisher) Publish(_ context.Context, body string, _ []string) (domain.PublishedReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return domain.PublishedReceipt{}, p.failWith
	}
	return domain.PublishedReceipt{
		RemotePostID: fmt.Sprintf("remote-%d", p.calls),
		PostURL:      "https://www.threads.net/post/remote",
		PublishedAt:  time.Now().UTC(),
	}, nil
}

// fakeApprovalChannel records every presented draft.
type fakeApprovalChannel struct {
	mu        sync.Mutex
	presented []domain.PostDraft
	err       error
}

func (c *fakeApprovalChannel) Present(_ context.Context, _ domain.Item, draft domain.PostDraft, _ domain.EvaluationResult) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.presented = append(c.presented, draft)
	return fmt.Sprintf("req-%d", len(c.presented)), nil
}
