package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/guardrails"
	"ShortsPublisher/internal/ports"
)

// ApprovalGate parks items at the human decision point and turns reviewer
// decisions back into workflow transitions. No worker blocks while an item
// waits; resolved items re-enter through the resume queue.
type ApprovalGate struct {
	channel       ports.ApprovalChannel
	store         ports.ItemStore
	resume        ports.ResumeQueue
	maxEditCycles int
	logger        *slog.Logger
}

// NewApprovalGate constructs the gate.
func NewApprovalGate(channel ports.ApprovalChannel, store ports.ItemStore, resume ports.ResumeQueue,
	maxEditCycles int, logger *slog.Logger) *ApprovalGate {
	return &ApprovalGate{
		channel:       channel,
		store:         store,
		resume:        resume,
		maxEditCycles: maxEditCycles,
		logger:        logger.With("component", "approval_gate"),
	}
}

// Request presents the draft to the reviewer. The item must already be
// parked in awaiting_approval.
func (g *ApprovalGate) Request(ctx context.Context, item domain.Item, draft domain.PostDraft, eval domain.EvaluationResult) error {
	requestID, err := g.channel.Present(ctx, item, draft, eval)
	if err != nil {
		return fmt.Errorf("present draft %s: %w", item.ExternalID, err)
	}

	g.logger.Info("requested approval",
		"item_id", item.ExternalID, "revision", draft.Revision, "request_id", requestID)
	return nil
}

// Resolve applies one reviewer decision. Decisions for items no longer
// awaiting approval are duplicates and resolve to a no-op.
func (g *ApprovalGate) Resolve(ctx context.Context, itemID string, decision domain.ApprovalDecision, editedBody string) error {
	current, err := g.store.CurrentStatus(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load status %s: %w", itemID, err)
	}
	if current != domain.StatusAwaitingApproval {
		g.logger.Info("ignoring decision for item not awaiting approval",
			"item_id", itemID, "status", current, "decision", decision)
		return nil
	}

	switch decision {
	case domain.DecisionApprove:
		return g.approve(ctx, itemID)
	case domain.DecisionReject:
		_, err := g.transition(ctx, itemID, domain.StatusRejectedHuman, "reviewer rejected the draft")
		return err
	case domain.DecisionEdit:
		return g.edit(ctx, itemID, editedBody)
	}
	return domain.Errorf(domain.KindValidation, "unknown decision %q for item %s", decision, itemID)
}

func (g *ApprovalGate) approve(ctx context.Context, itemID string) error {
	applied, err := g.transition(ctx, itemID, domain.StatusApproved, "")
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if err := g.resume.Push(ctx, itemID); err != nil {
		return fmt.Errorf("enqueue resume %s: %w", itemID, err)
	}
	g.logger.Info("draft approved", "item_id", itemID)
	return nil
}

func (g *ApprovalGate) edit(ctx context.Context, itemID, editedBody string) error {
	if strings.TrimSpace(editedBody) == "" {
		return domain.Errorf(domain.KindValidation, "empty edited body for item %s", itemID)
	}

	current, err := g.store.CurrentDraft(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load current draft %s: %w", itemID, err)
	}

	editsSoFar := current.Revision - 1
	if g.maxEditCycles > 0 && editsSoFar >= g.maxEditCycles {
		g.logger.Warn("edit cycle cap reached", "item_id", itemID, "revision", current.Revision)
		_, err := g.transition(ctx, itemID, domain.StatusRejectedHuman,
			fmt.Sprintf("edit cycle cap of %d reached", g.maxEditCycles))
		return err
	}

	revised := domain.PostDraft{
		ItemID:     itemID,
		Platform:   current.Platform,
		Revision:   current.Revision + 1,
		Body:       strings.TrimSpace(editedBody),
		Hashtags:   guardrails.ExtractHashtags(editedBody),
		EmojiCount: guardrails.CountEmojis(editedBody),
		Model:      current.Model,
		PromptName: current.PromptName,
		Current:    true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := g.store.SaveDraft(ctx, revised); err != nil {
		return fmt.Errorf("save edited draft %s: %w", itemID, err)
	}

	applied, err := g.transition(ctx, itemID, domain.StatusEditRequested, "")
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if err := g.resume.Push(ctx, itemID); err != nil {
		return fmt.Errorf("enqueue resume %s: %w", itemID, err)
	}

	g.logger.Info("edit accepted", "item_id", itemID, "revision", revised.Revision)
	return nil
}

// transition appends the decision to the ledger. A concurrent duplicate
// decision surfaces here as an illegal-transition validation error; that
// counts as already resolved and reports applied=false.
func (g *ApprovalGate) transition(ctx context.Context, itemID string, to domain.Status, detail string) (bool, error) {
	t := domain.StatusTransition{
		ItemID: itemID,
		From:   domain.StatusAwaitingApproval,
		To:     to,
		Stage:  "approval",
		At:     time.Now().UTC(),
		Error:  detail,
	}
	if err := g.store.AppendTransition(ctx, t); err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			g.logger.Info("decision lost the race, item already resolved",
				"item_id", itemID, "decision_to", to, "error", err)
			return false, nil
		}
		return false, fmt.Errorf("record decision %s: %w", itemID, err)
	}
	return true, nil
}
