package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/crickstack/auctioneer/internal/events"
)

// Repository stores outbox rows in Postgres. It runs on database/sql so
// the relay worker can claim batches inside one transaction with
// FOR UPDATE SKIP LOCKED.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, ev *events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auction_outbox (id, auction_id, event_type, audience, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		ev.ID, ev.AuctionID, string(ev.Type), string(ev.Audience), payload,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchUnsentTx claims up to limit unsent rows within tx, oldest first.
// Rows claimed by a concurrent relay instance are skipped, not waited on.
func (r *Repository) FetchUnsentTx(ctx context.Context, tx *sql.Tx, limit int32) ([]*Entry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, auction_id, payload, created_at
		FROM auction_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var entry Entry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.AuctionID, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		var ev events.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode outbox payload %s: %w", entry.ID, err)
		}
		entry.Event = &ev
		out = append(out, &entry)
	}
	return out, rows.Err()
}

// MarkSentTx flags the given rows as relayed.
func (r *Repository) MarkSentTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE auction_outbox SET sent_at = now()
		WHERE id = ANY($1)`, pq.Array(strs))
	if err != nil {
		return fmt.Errorf("mark outbox events sent: %w", err)
	}
	return nil
}

// BeginTx exposes a transaction for the relay worker.
func (r *Repository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}
