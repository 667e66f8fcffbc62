package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/ports"
)

const apiBase = "https://api.telegram.org/bot"

// DecisionHandler receives reviewer decisions parsed from bot updates.
type DecisionHandler func(ctx context.Context, itemID string, decision domain.ApprovalDecision, editedBody string) error

// ApprovalBot presents drafts to a Telegram chat with an inline
// approve/reject/edit keyboard and feeds decisions back through a handler.
type ApprovalBot struct {
	botToken string
	chatID   string
	client   *http.Client
	apiBase  string
	logger   *slog.Logger

	mu           sync.Mutex
	pendingEdits map[string]string // chat id -> item id awaiting edited text
}

var _ ports.ApprovalChannel = (*ApprovalBot)(nil)

// NewApprovalBot registers bot token and reviewer chat identifier.
func NewApprovalBot(cfg config.TelegramConfig, logger *slog.Logger) *ApprovalBot {
	return &ApprovalBot{
		botToken:     cfg.BotToken,
		chatID:       cfg.ChatID,
		client:       &http.Client{Timeout: 65 * time.Second},
		apiBase:      apiBase,
		logger:       logger.With("component", "telegram_bot"),
		pendingEdits: map[string]string{},
	}
}

// Present posts the draft plus its evaluation summary with the decision
// keyboard and returns a request id for audit.
func (b *ApprovalBot) Present(ctx context.Context, item domain.Item, draft domain.PostDraft, eval domain.EvaluationResult) (string, error) {
	if b.botToken == "" || b.chatID == "" {
		return "", domain.Errorf(domain.KindValidation, "telegram approval bot misconfigured")
	}

	keyboard := map[string]any{
		"inline_keyboard": [][]map[string]string{{
			{"text": "✅ Approve", "callback_data": "approve:" + item.ExternalID},
			{"text": "❌ Reject", "callback_data": "reject:" + item.ExternalID},
			{"text": "✏️ Edit", "callback_data": "edit:" + item.ExternalID},
		}},
	}
	markup, err := json.Marshal(keyboard)
	if err != nil {
		return "", fmt.Errorf("marshal keyboard: %w", err)
	}

	form := url.Values{}
	form.Set("chat_id", b.chatID)
	form.Set("text", formatApprovalMessage(item, draft, eval))
	form.Set("reply_markup", string(markup))

	if err := b.call(ctx, "sendMessage", form, nil); err != nil {
		return "", err
	}

	return uuid.NewString(), nil
}

// Listen runs the long-poll update loop until the context is cancelled,
// translating callback queries and edit replies into handler calls.
func (b *ApprovalBot) Listen(ctx context.Context, handler DecisionHandler) error {
	if b.botToken == "" {
		return domain.Errorf(domain.KindValidation, "telegram approval bot misconfigured")
	}

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// transient poll failures back off and retry
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.handleUpdate(ctx, update, handler)
		}
	}
}

type chat struct {
	ID int64 `json:"id"`
}

type message struct {
	Text string `json:"text"`
	Chat chat   `json:"chat"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *message `json:"message"`
}

type update struct {
	UpdateID      int            `json:"update_id"`
	CallbackQuery *callbackQuery `json:"callback_query"`
	Message       *message       `json:"message"`
}

func (b *ApprovalBot) handleUpdate(ctx context.Context, u update, handler DecisionHandler) {
	switch {
	case u.CallbackQuery != nil:
		decision, itemID, err := parseCallbackData(u.CallbackQuery.Data)
		if err != nil {
			return
		}
		b.answerCallback(ctx, u.CallbackQuery.ID)

		if decision == domain.DecisionEdit {
			chat := ""
			if u.CallbackQuery.Message != nil {
				chat = strconv.FormatInt(u.CallbackQuery.Message.Chat.ID, 10)
			}
			b.mu.Lock()
			b.pendingEdits[chat] = itemID
			b.mu.Unlock()
			b.notify(ctx, "Reply with the edited post text for "+itemID)
			return
		}

		b.applyDecision(ctx, handler, itemID, decision, "")

	case u.Message != nil && strings.TrimSpace(u.Message.Text) != "":
		chat := strconv.FormatInt(u.Message.Chat.ID, 10)
		b.mu.Lock()
		itemID, waiting := b.pendingEdits[chat]
		if waiting {
			delete(b.pendingEdits, chat)
		}
		b.mu.Unlock()

		if waiting {
			b.applyDecision(ctx, handler, itemID, domain.DecisionEdit, u.Message.Text)
		}
	}
}

// applyDecision forwards one decision to the workflow and tells the
// reviewer when it could not be applied.
func (b *ApprovalBot) applyDecision(ctx context.Context, handler DecisionHandler,
	itemID string, decision domain.ApprovalDecision, editedBody string) {
	if err := handler(ctx, itemID, decision, editedBody); err != nil {
		b.logger.Error("decision failed",
			"item_id", itemID, "decision", decision, "error", err)
		b.notify(ctx, fmt.Sprintf("Could not apply %s for %s: %v", decision, itemID, err))
	}
}

func (b *ApprovalBot) getUpdates(ctx context.Context, offset int) ([]update, error) {
	form := url.Values{}
	form.Set("timeout", "50")
	form.Set("offset", strconv.Itoa(offset))
	form.Set("allowed_updates", `["message","callback_query"]`)

	var result struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := b.call(ctx, "getUpdates", form, &result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram getUpdates not ok")
	}
	return result.Result, nil
}

func (b *ApprovalBot) answerCallback(ctx context.Context, callbackID string) {
	form := url.Values{}
	form.Set("callback_query_id", callbackID)
	_ = b.call(ctx, "answerCallbackQuery", form, nil)
}

func (b *ApprovalBot) notify(ctx context.Context, text string) {
	form := url.Values{}
	form.Set("chat_id", b.chatID)
	form.Set("text", text)
	_ = b.call(ctx, "sendMessage", form, nil)
}

func (b *ApprovalBot) call(ctx context.Context, method string, form url.Values, v any) error {
	endpoint := b.apiBase + b.botToken + "/" + method

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.NewStageError(domain.KindTimeout, err)
		}
		return domain.NewStageError(domain.KindTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Errorf(domain.KindTransientNetwork, "telegram %s: %s", method, resp.Status)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// parseCallbackData splits "decision:item_id" button payloads.
func parseCallbackData(data string) (domain.ApprovalDecision, string, error) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("malformed callback data %q", data)
	}

	switch parts[0] {
	case "approve":
		return domain.DecisionApprove, parts[1], nil
	case "reject":
		return domain.DecisionReject, parts[1], nil
	case "edit":
		return domain.DecisionEdit, parts[1], nil
	}
	return "", "", fmt.Errorf("unknown decision %q", parts[0])
}

func formatApprovalMessage(item domain.Item, draft domain.PostDraft, eval domain.EvaluationResult) string {
	var sb strings.Builder
	sb.WriteString("📱 Post draft for review\n\n")
	sb.WriteString("🎬 " + item.Title + "\n")
	sb.WriteString(item.URL + "\n\n")
	sb.WriteString(draft.Body + "\n\n")
	fmt.Fprintf(&sb, "revision %d | %d chars | %d hashtags | %d emojis\n",
		draft.Revision, len([]rune(draft.Body)), len(draft.Hashtags), draft.EmojiCount)
	fmt.Fprintf(&sb, "guardrails: %s", eval.Verdict)
	if len(eval.Violations) > 0 {
		sb.WriteString(" (" + eval.Reason() + ")")
	}
	return sb.String()
}
