package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/guardrails"
	"ShortsPublisher/internal/ports"
)

// OrchestratorDeps wires the stage components and driven adapters into the
// workflow driver.
type OrchestratorDeps struct {
	Detector    *Detector
	Transcriber *Transcriber
	Generator   *Generator
	Gate        *ApprovalGate
	Publisher   *PostPublisher
	Evaluator   *guardrails.Evaluator
	Store       ports.ItemStore
	Leases      ports.LeaseStore
	Resume      ports.ResumeQueue
	Workflow    config.WorkflowConfig
	Tick        time.Duration
	Logger      *slog.Logger
}

// Orchestrator drives every item through the workflow state machine: it
// polls for new items each tick, drains the resume queue, and steps each
// runnable item under a per-item lease until it parks or reaches a terminal
// status.
type Orchestrator struct {
	detector    *Detector
	transcriber *Transcriber
	generator   *Generator
	gate        *ApprovalGate
	publisher   *PostPublisher
	evaluator   *guardrails.Evaluator
	store       ports.ItemStore
	leases      ports.LeaseStore
	resume      ports.ResumeQueue
	workflow    config.WorkflowConfig
	tick        time.Duration
	logger      *slog.Logger
}

// NewOrchestrator constructs the workflow driver.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	tick := deps.Tick
	if tick <= 0 {
		tick = 5 * time.Minute
	}
	return &Orchestrator{
		detector:    deps.Detector,
		transcriber: deps.Transcriber,
		generator:   deps.Generator,
		gate:        deps.Gate,
		publisher:   deps.Publisher,
		evaluator:   deps.Evaluator,
		store:       deps.Store,
		leases:      deps.Leases,
		resume:      deps.Resume,
		workflow:    deps.Workflow,
		tick:        tick,
		logger:      deps.Logger.With("component", "orchestrator"),
	}
}

// Run ticks until the context is cancelled. The first tick fires
// immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	for {
		if err := o.Tick(ctx, time.Now().UTC()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one full pass: poll the feed, drain the resume queue, and step
// every runnable item through a bounded worker pool.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) error {
	seeded, err := o.detector.Detect(ctx, now)
	if err != nil {
		o.logger.Error("detection failed", "error", err)
	}

	pending := map[string]bool{}
	for _, id := range seeded {
		pending[id] = true
	}

	for {
		id, ok, err := o.resume.Pop(ctx)
		if err != nil {
			o.logger.Error("resume queue pop failed", "error", err)
			break
		}
		if !ok {
			break
		}
		pending[id] = true
	}

	runnable, err := o.store.Runnable(ctx)
	if err != nil {
		return fmt.Errorf("load runnable items: %w", err)
	}
	for _, id := range runnable {
		pending[id] = true
	}

	if len(pending) == 0 {
		return nil
	}

	workers := o.workflow.Workers
	if workers <= 0 {
		workers = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id := range pending {
		itemID := id
		g.Go(func() error {
			if err := o.ProcessItem(gctx, itemID); err != nil {
				o.logger.Error("item processing failed", "item_id", itemID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ProcessItem steps one item until it parks, terminates, or loses its turn.
// The per-item lease guarantees at most one worker touches an item at a
// time even across processes.
func (o *Orchestrator) ProcessItem(ctx context.Context, itemID string) error {
	ok, err := o.leases.TryAcquire(ctx, itemID, o.workflow.LeaseTTL())
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return nil
	}
	defer func() {
		if err := o.leases.Release(context.WithoutCancel(ctx), itemID); err != nil {
			o.logger.Warn("lease release failed", "item_id", itemID, "error", err)
		}
	}()

	item, err := o.store.Item(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load item: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		status, err := o.store.CurrentStatus(ctx, itemID)
		if err != nil {
			return fmt.Errorf("load status: %w", err)
		}
		if status.Terminal() || status == domain.StatusAwaitingApproval {
			return nil
		}

		if err := o.step(ctx, item, status); err != nil {
			return err
		}
	}
}

// Cancel takes an item out of the workflow between stages. A parked item
// becomes rejected_human, anything else in flight becomes failed. Terminal
// items are left alone.
func (o *Orchestrator) Cancel(ctx context.Context, itemID string) error {
	ok, err := o.leases.TryAcquire(ctx, itemID, o.workflow.LeaseTTL())
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return domain.Errorf(domain.KindValidation, "item %s is being processed, retry cancel later", itemID)
	}
	defer func() {
		if err := o.leases.Release(context.WithoutCancel(ctx), itemID); err != nil {
			o.logger.Warn("lease release failed", "item_id", itemID, "error", err)
		}
	}()

	status, err := o.store.CurrentStatus(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}
	if status.Terminal() {
		return nil
	}

	to := domain.StatusFailed
	if status == domain.StatusAwaitingApproval {
		to = domain.StatusRejectedHuman
	}

	o.logger.Info("cancelling item", "item_id", itemID, "status", status)
	return o.transition(ctx, itemID, status, to, "cancel", nil, "cancelled by operator")
}

// step advances the item exactly one transition from its current status.
func (o *Orchestrator) step(ctx context.Context, item domain.Item, status domain.Status) error {
	switch status {
	case domain.StatusDetected:
		return o.transition(ctx, item.ExternalID, status, domain.StatusTranscribing, "transcribe", nil, "")

	case domain.StatusTranscribing:
		return o.runTranscribe(ctx, item)

	case domain.StatusTranscribed:
		return o.transition(ctx, item.ExternalID, status, domain.StatusModeratingTranscript, "moderate_transcript", nil, "")

	case domain.StatusModeratingTranscript:
		return o.moderateTranscript(ctx, item)

	case domain.StatusGenerating:
		return o.runGenerate(ctx, item)

	case domain.StatusGenerated:
		return o.transition(ctx, item.ExternalID, status, domain.StatusModeratingPost, "moderate_post", nil, "")

	case domain.StatusModeratingPost:
		return o.moderatePost(ctx, item)

	case domain.StatusEditRequested:
		return o.transition(ctx, item.ExternalID, status, domain.StatusModeratingPost, "moderate_post", nil, "")

	case domain.StatusApproved:
		return o.transition(ctx, item.ExternalID, status, domain.StatusPublishing, "publish", nil, "")

	case domain.StatusPublishing:
		return o.runPublish(ctx, item)
	}

	return domain.Errorf(domain.KindValidation, "no step for status %s", status)
}

func (o *Orchestrator) runTranscribe(ctx context.Context, item domain.Item) error {
	policy := NewRetryPolicy(o.workflow.StageRetry("transcribe"))

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		stageCtx, cancel := context.WithTimeout(ctx, o.workflow.StageTimeout())
		defer cancel()
		_, err := o.transcriber.Transcribe(stageCtx, item)
		return err
	})
	if err != nil {
		return o.transition(ctx, item.ExternalID, domain.StatusTranscribing,
			domain.StatusFailed, "transcribe", nil, err.Error())
	}

	return o.transition(ctx, item.ExternalID, domain.StatusTranscribing,
		domain.StatusTranscribed, "transcribe", nil, "")
}

func (o *Orchestrator) moderateTranscript(ctx context.Context, item domain.Item) error {
	transcript, err := o.store.LatestTranscript(ctx, item.ExternalID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	eval := o.evaluator.CheckTranscript(transcript.Text)

	if eval.Verdict == domain.VerdictFail {
		o.logger.Info("transcript rejected", "item_id", item.ExternalID, "reason", eval.Reason())
		return o.transition(ctx, item.ExternalID, domain.StatusModeratingTranscript,
			domain.StatusRejectedTranscript, "moderate_transcript", &eval, "")
	}

	if eval.Text != transcript.Text {
		fixed := transcript
		fixed.Text = eval.Text
		fixed.CharCount = len([]rune(eval.Text))
		fixed.WordCount = guardrails.WordCount(eval.Text)
		fixed.CreatedAt = time.Now().UTC()
		if err := o.store.SaveTranscript(ctx, fixed); err != nil {
			return fmt.Errorf("save fixed transcript: %w", err)
		}
	}

	return o.transition(ctx, item.ExternalID, domain.StatusModeratingTranscript,
		domain.StatusGenerating, "moderate_transcript", &eval, "")
}

func (o *Orchestrator) runGenerate(ctx context.Context, item domain.Item) error {
	transcript, err := o.store.LatestTranscript(ctx, item.ExternalID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	policy := NewRetryPolicy(o.workflow.StageRetry("generate"))
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		stageCtx, cancel := context.WithTimeout(ctx, o.workflow.StageTimeout())
		defer cancel()
		_, err := o.generator.Generate(stageCtx, item, transcript)
		return err
	})
	if err != nil {
		return o.transition(ctx, item.ExternalID, domain.StatusGenerating,
			domain.StatusFailed, "generate", nil, err.Error())
	}

	return o.transition(ctx, item.ExternalID, domain.StatusGenerating,
		domain.StatusGenerated, "generate", nil, "")
}

func (o *Orchestrator) moderatePost(ctx context.Context, item domain.Item) error {
	draft, err := o.store.CurrentDraft(ctx, item.ExternalID)
	if err != nil {
		return fmt.Errorf("load current draft: %w", err)
	}

	eval := o.evaluator.CheckPost(draft.Body, draft.Platform)

	if eval.Verdict == domain.VerdictFail {
		o.logger.Info("post rejected", "item_id", item.ExternalID, "revision", draft.Revision, "reason", eval.Reason())
		return o.transition(ctx, item.ExternalID, domain.StatusModeratingPost,
			domain.StatusRejectedPost, "moderate_post", &eval, "")
	}

	if eval.Text != draft.Body {
		if err := o.store.UpdateDraftBody(ctx, item.ExternalID, draft.Revision, eval.Text); err != nil {
			return fmt.Errorf("apply auto-fix: %w", err)
		}
		draft.Body = eval.Text
	}

	// the reviewer must see the draft before the item parks; a failed
	// request leaves the item in moderating_post so the next tick retries
	if err := o.gate.Request(ctx, item, draft, eval); err != nil {
		return fmt.Errorf("request approval: %w", err)
	}

	return o.transition(ctx, item.ExternalID, domain.StatusModeratingPost,
		domain.StatusAwaitingApproval, "moderate_post", &eval, "")
}

func (o *Orchestrator) runPublish(ctx context.Context, item domain.Item) error {
	draft, err := o.store.CurrentDraft(ctx, item.ExternalID)
	if err != nil {
		return fmt.Errorf("load current draft: %w", err)
	}

	policy := NewRetryPolicy(o.workflow.StageRetry("publish"))
	if _, err := o.publisher.Publish(ctx, item, draft, policy); err != nil {
		return o.transition(ctx, item.ExternalID, domain.StatusPublishing,
			domain.StatusPublishFailed, "publish", nil, err.Error())
	}

	return o.transition(ctx, item.ExternalID, domain.StatusPublishing,
		domain.StatusPublished, "publish", nil, "")
}

func (o *Orchestrator) transition(ctx context.Context, itemID string, from, to domain.Status,
	stage string, eval *domain.EvaluationResult, detail string) error {
	t := domain.StatusTransition{
		ItemID:     itemID,
		From:       from,
		To:         to,
		Stage:      stage,
		At:         time.Now().UTC(),
		Evaluation: eval,
		Error:      detail,
	}
	if err := o.store.AppendTransition(ctx, t); err != nil {
		return fmt.Errorf("record transition %s -> %s: %w", from, to, err)
	}
	return nil
}
