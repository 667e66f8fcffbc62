package usecase

import (
	"context"
	"testing"
	"time"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
)

func TestPublishIdempotentAfterLostConfirmation(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	publisherFake := &fakePublisher{}
	publisher := NewPostPublisher(publisherFake, store, testLogger())

	item := domain.Item{ExternalID: "vid1", Title: "Concurrency in Go"}
	draft := domain.PostDraft{ItemID: "vid1", Revision: 1, Body: "A post body", Current: true}
	policy := NewRetryPolicy(config.RetryPolicyConfig{MaxAttempts: 5, BaseDelayMS: 1, MaxDelayMS: 2})

	first, err := publisher.Publish(context.Background(), item, draft, policy)
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}

	// restart after a crash that lost the in-memory confirmation
	second, err := publisher.Publish(context.Background(), item, draft, policy)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}

	if publisherFake.calls != 1 {
		t.Fatalf("external publish calls = %d, want 1", publisherFake.calls)
	}
	if second.RemotePostID != first.RemotePostID {
		t.Errorf("second publish returned a different receipt: %q vs %q",
			second.RemotePostID, first.RemotePostID)
	}
}

func TestPublishNonRetryableFailsImmediately(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	publisherFake := &fakePublisher{
		failures: 99,
		failWith: domain.Errorf(domain.KindAuth, "token expired"),
	}
	publisher := NewPostPublisher(publisherFake, store, testLogger())

	item := domain.Item{ExternalID: "vid1"}
	draft := domain.PostDraft{ItemID: "vid1", Revision: 1, Body: "A post body"}
	policy := NewRetryPolicy(config.RetryPolicyConfig{MaxAttempts: 5, BaseDelayMS: 1, MaxDelayMS: 2})

	_, err := publisher.Publish(context.Background(), item, draft, policy)
	if domain.KindOf(err) != domain.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if publisherFake.calls != 1 {
		t.Errorf("auth failure must not be retried, got %d calls", publisherFake.calls)
	}

	attempts, _ := store.PublishAttempts(context.Background(), "vid1")
	if attempts != 1 {
		t.Errorf("recorded attempts = %d, want 1", attempts)
	}
}

func TestPublishRecordsEveryAttempt(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	publisherFake := &fakePublisher{
		failures: 2,
		failWith: domain.Errorf(domain.KindTransientNetwork, "connection reset"),
	}
	publisher := NewPostPublisher(publisherFake, store, testLogger())

	item := domain.Item{ExternalID: "vid1", ThumbnailURL: "https://img.example/vid1.jpg"}
	draft := domain.PostDraft{ItemID: "vid1", Revision: 1, Body: "A post body"}
	policy := NewRetryPolicy(config.RetryPolicyConfig{MaxAttempts: 5, BaseDelayMS: 1, MaxDelayMS: 2})

	receipt, err := publisher.Publish(context.Background(), item, draft, policy)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if receipt.ItemID != "vid1" {
		t.Errorf("receipt item id = %q, want vid1", receipt.ItemID)
	}

	attempts, _ := store.PublishAttempts(context.Background(), "vid1")
	if attempts != 3 {
		t.Errorf("recorded attempts = %d, want 3", attempts)
	}

	if _, err := store.Receipt(context.Background(), "vid1"); err != nil {
		t.Errorf("expected stored receipt: %v", err)
	}
}

func TestRetryPolicyStopsOnNonRetryable(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(config.RetryPolicyConfig{MaxAttempts: 5, BaseDelayMS: 1, MaxDelayMS: 2})

	calls := 0
	err := policy.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		return domain.Errorf(domain.KindValidation, "bad input")
	})

	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicyExhaustsBudget(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(config.RetryPolicyConfig{MaxAttempts: 3, BaseDelayMS: 1, MaxDelayMS: 2})

	var attempts []int
	err := policy.Do(context.Background(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		return domain.Errorf(domain.KindTimeout, "deadline hit")
	})

	if domain.KindOf(err) != domain.KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("attempts = %v, want 3 numbered attempts", attempts)
	}
	for i, n := range attempts {
		if n != i+1 {
			t.Errorf("attempt %d numbered %d", i, n)
		}
	}
}

func TestRetryPolicyHonorsCancellation(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(config.RetryPolicyConfig{MaxAttempts: 10, BaseDelayMS: 60000, MaxDelayMS: 60000})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(_ context.Context, _ int) error {
			return domain.Errorf(domain.KindTransientNetwork, "flaky")
		})
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not stop after cancel")
	}
}
