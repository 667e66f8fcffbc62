package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/ports"
)

// PostgresStore persists items, the append-only transition ledger,
// transcripts, draft revisions and publish bookkeeping into Postgres.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ItemStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SeedItem inserts the item identity. Re-seeding an already known item is a
// no-op so repeated feed polls stay idempotent.
func (s *PostgresStore) SeedItem(ctx context.Context, item domain.Item) error {
	query, args, err := s.builder.
		Insert("items").
		Columns("external_id", "title", "url", "description", "thumbnail_url", "published_at", "discovered_at").
		Values(item.ExternalID, item.Title, item.URL, item.Description, item.ThumbnailURL, item.PublishedAt, item.DiscoveredAt).
		Suffix("ON CONFLICT (external_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build seed item: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("seed item: %w", err)
	}
	return nil
}

// Item loads one item identity by external id.
func (s *PostgresStore) Item(ctx context.Context, externalID string) (domain.Item, error) {
	query, args, err := s.builder.
		Select("external_id", "title", "url", "description", "thumbnail_url", "published_at", "discovered_at").
		From("items").
		Where(sq.Eq{"external_id": externalID}).
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build item query: %w", err)
	}

	var item domain.Item
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&item.ExternalID, &item.Title, &item.URL, &item.Description,
		&item.ThumbnailURL, &item.PublishedAt, &item.DiscoveredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, ports.ErrNotFound
		}
		return domain.Item{}, fmt.Errorf("scan item: %w", err)
	}
	return item, nil
}

// KnownIDs returns a map with external ids that already exist in storage.
func (s *PostgresStore) KnownIDs(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(externalIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id FROM items WHERE external_id = ANY($1)`,
		pq.StringArray(externalIDs))
	if err != nil {
		return nil, fmt.Errorf("query known ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// AppendTransition writes one ledger entry inside a transaction that
// re-checks legality against the stored current status under lock.
func (s *PostgresStore) AppendTransition(ctx context.Context, t domain.StatusTransition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback()

	var current domain.Status
	row := tx.QueryRowContext(ctx,
		`SELECT to_status FROM status_transitions
         WHERE item_id = $1 ORDER BY id DESC LIMIT 1 FOR UPDATE`, t.ItemID)
	if err := row.Scan(&current); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load current status: %w", err)
	}

	if !domain.CanTransition(current, t.To) {
		return domain.Errorf(domain.KindValidation,
			"illegal transition %s -> %s for item %s", current, t.To, t.ItemID)
	}

	var evalJSON any
	if t.Evaluation != nil {
		raw, err := json.Marshal(t.Evaluation)
		if err != nil {
			return fmt.Errorf("marshal evaluation: %w", err)
		}
		evalJSON = raw
	}

	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	query, args, err := s.builder.
		Insert("status_transitions").
		Columns("item_id", "from_status", "to_status", "stage", "at", "evaluation", "error").
		Values(t.ItemID, string(current), string(t.To), t.Stage, at, evalJSON, t.Error).
		ToSql()
	if err != nil {
		return fmt.Errorf("build transition insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return tx.Commit()
}

// CurrentStatus returns the to_status of the latest ledger entry.
func (s *PostgresStore) CurrentStatus(ctx context.Context, itemID string) (domain.Status, error) {
	query, args, err := s.builder.
		Select("to_status").
		From("status_transitions").
		Where(sq.Eq{"item_id": itemID}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build status query: %w", err)
	}

	var status domain.Status
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ports.ErrNotFound
		}
		return "", fmt.Errorf("scan status: %w", err)
	}
	return status, nil
}

// Ledger returns the item's full transition history in insertion order.
func (s *PostgresStore) Ledger(ctx context.Context, itemID string) ([]domain.StatusTransition, error) {
	query, args, err := s.builder.
		Select("item_id", "from_status", "to_status", "stage", "at", "evaluation", "error").
		From("status_transitions").
		Where(sq.Eq{"item_id": itemID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var ledger []domain.StatusTransition
	for rows.Next() {
		var t domain.StatusTransition
		var evalJSON []byte
		if err := rows.Scan(&t.ItemID, &t.From, &t.To, &t.Stage, &t.At, &evalJSON, &t.Error); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if len(evalJSON) > 0 {
			var eval domain.EvaluationResult
			if err := json.Unmarshal(evalJSON, &eval); err != nil {
				return nil, fmt.Errorf("unmarshal evaluation: %w", err)
			}
			t.Evaluation = &eval
		}
		ledger = append(ledger, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return ledger, nil
}

// Runnable lists item ids whose latest status is neither terminal nor parked
// waiting for a human decision.
func (s *PostgresStore) Runnable(ctx context.Context) ([]string, error) {
	parked := []string{
		string(domain.StatusAwaitingApproval),
		string(domain.StatusPublished),
		string(domain.StatusPublishFailed),
		string(domain.StatusRejectedTranscript),
		string(domain.StatusRejectedPost),
		string(domain.StatusRejectedHuman),
		string(domain.StatusFailed),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ON (item_id) item_id, to_status
         FROM status_transitions
         ORDER BY item_id, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runnable: %w", err)
	}
	defer rows.Close()

	skip := make(map[string]bool, len(parked))
	for _, status := range parked {
		skip[status] = true
	}

	var ids []string
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan runnable: %w", err)
		}
		if !skip[status] {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return ids, nil
}

// SaveTranscript inserts a new transcript. Prior transcripts stay in place
// so the latest-by-creation row supersedes them.
func (s *PostgresStore) SaveTranscript(ctx context.Context, transcript domain.Transcript) error {
	query, args, err := s.builder.
		Insert("transcripts").
		Columns("item_id", "text", "language", "source", "char_count", "word_count", "created_at").
		Values(transcript.ItemID, transcript.Text, transcript.Language, string(transcript.Source),
			transcript.CharCount, transcript.WordCount, transcript.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build transcript insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// LatestTranscript loads the newest transcript for the item.
func (s *PostgresStore) LatestTranscript(ctx context.Context, itemID string) (domain.Transcript, error) {
	query, args, err := s.builder.
		Select("item_id", "text", "language", "source", "char_count", "word_count", "created_at").
		From("transcripts").
		Where(sq.Eq{"item_id": itemID}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("build transcript query: %w", err)
	}

	var tr domain.Transcript
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&tr.ItemID, &tr.Text, &tr.Language, &tr.Source,
		&tr.CharCount, &tr.WordCount, &tr.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transcript{}, ports.ErrNotFound
		}
		return domain.Transcript{}, fmt.Errorf("scan transcript: %w", err)
	}
	return tr, nil
}

// SaveDraft inserts a new revision and flips the current marker to it in one
// transaction so exactly one revision stays current.
func (s *PostgresStore) SaveDraft(ctx context.Context, draft domain.PostDraft) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin draft tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE post_drafts SET current = FALSE WHERE item_id = $1 AND current`,
		draft.ItemID); err != nil {
		return fmt.Errorf("retire current draft: %w", err)
	}

	query, args, err := s.builder.
		Insert("post_drafts").
		Columns("item_id", "platform", "revision", "body", "hashtags", "emoji_count",
			"model", "prompt_name", "current", "created_at").
		Values(draft.ItemID, draft.Platform, draft.Revision, draft.Body, pq.StringArray(draft.Hashtags),
			draft.EmojiCount, draft.Model, draft.PromptName, true, draft.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build draft insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return tx.Commit()
}

// UpdateDraftBody replaces the body of one stored revision after a human edit.
func (s *PostgresStore) UpdateDraftBody(ctx context.Context, itemID string, revision int, body string) error {
	query, args, err := s.builder.
		Update("post_drafts").
		Set("body", body).
		Where(sq.Eq{"item_id": itemID, "revision": revision}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build draft update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update draft body: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// CurrentDraft loads the revision marked current.
func (s *PostgresStore) CurrentDraft(ctx context.Context, itemID string) (domain.PostDraft, error) {
	query, args, err := s.builder.
		Select("item_id", "platform", "revision", "body", "hashtags", "emoji_count",
			"model", "prompt_name", "current", "created_at").
		From("post_drafts").
		Where(sq.Eq{"item_id": itemID, "current": true}).
		ToSql()
	if err != nil {
		return domain.PostDraft{}, fmt.Errorf("build current draft query: %w", err)
	}

	var draft domain.PostDraft
	var hashtags pq.StringArray
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&draft.ItemID, &draft.Platform, &draft.Revision, &draft.Body, &hashtags,
		&draft.EmojiCount, &draft.Model, &draft.PromptName, &draft.Current, &draft.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PostDraft{}, ports.ErrNotFound
		}
		return domain.PostDraft{}, fmt.Errorf("scan current draft: %w", err)
	}
	draft.Hashtags = hashtags
	return draft, nil
}

// DraftRevisions returns all revisions for the item ordered by revision.
func (s *PostgresStore) DraftRevisions(ctx context.Context, itemID string) ([]domain.PostDraft, error) {
	query, args, err := s.builder.
		Select("item_id", "platform", "revision", "body", "hashtags", "emoji_count",
			"model", "prompt_name", "current", "created_at").
		From("post_drafts").
		Where(sq.Eq{"item_id": itemID}).
		OrderBy("revision ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build revisions query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var drafts []domain.PostDraft
	for rows.Next() {
		var draft domain.PostDraft
		var hashtags pq.StringArray
		if err := rows.Scan(&draft.ItemID, &draft.Platform, &draft.Revision, &draft.Body, &hashtags,
			&draft.EmojiCount, &draft.Model, &draft.PromptName, &draft.Current, &draft.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		draft.Hashtags = hashtags
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return drafts, nil
}

// RecordPublishAttempt appends one publish attempt outcome.
func (s *PostgresStore) RecordPublishAttempt(ctx context.Context, itemID string, attempt int, attemptErr string) error {
	query, args, err := s.builder.
		Insert("publish_attempts").
		Columns("item_id", "attempt", "error", "at").
		Values(itemID, attempt, attemptErr, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attempt insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record publish attempt: %w", err)
	}
	return nil
}

// PublishAttempts counts recorded publish attempts for the item.
func (s *PostgresStore) PublishAttempts(ctx context.Context, itemID string) (int, error) {
	query, args, err := s.builder.
		Select("COUNT(*)").
		From("publish_attempts").
		Where(sq.Eq{"item_id": itemID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build attempts query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan attempts: %w", err)
	}
	return count, nil
}

// SaveReceipt records the external publish side effect. The primary key on
// item_id makes a second successful publish impossible to record.
func (s *PostgresStore) SaveReceipt(ctx context.Context, receipt domain.PublishedReceipt) error {
	query, args, err := s.builder.
		Insert("receipts").
		Columns("item_id", "remote_post_id", "post_url", "published_at").
		Values(receipt.ItemID, receipt.RemotePostID, receipt.PostURL, receipt.PublishedAt).
		Suffix("ON CONFLICT (item_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build receipt insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

// Receipt loads the publish receipt for the item.
func (s *PostgresStore) Receipt(ctx context.Context, itemID string) (domain.PublishedReceipt, error) {
	query, args, err := s.builder.
		Select("item_id", "remote_post_id", "post_url", "published_at").
		From("receipts").
		Where(sq.Eq{"item_id": itemID}).
		ToSql()
	if err != nil {
		return domain.PublishedReceipt{}, fmt.Errorf("build receipt query: %w", err)
	}

	var receipt domain.PublishedReceipt
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&receipt.ItemID, &receipt.RemotePostID, &receipt.PostURL, &receipt.PublishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PublishedReceipt{}, ports.ErrNotFound
		}
		return domain.PublishedReceipt{}, fmt.Errorf("scan receipt: %w", err)
	}
	return receipt, nil
}
