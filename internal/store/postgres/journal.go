package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/crickstack/auctioneer/internal/models"
	"github.com/crickstack/auctioneer/internal/store"
)

// AppendActionEvent inserts the event and allocates its per-auction
// sequence number in the same statement. The engine serializes writes
// per auction, so the insert-select cannot race with itself.
func (s *Store) AppendActionEvent(ctx context.Context, event *models.ActionEvent) (*models.ActionEvent, error) {
	reversal := pqtype.NullRawMessage{}
	if len(event.Reversal) > 0 {
		reversal = pqtype.NullRawMessage{RawMessage: event.Reversal, Valid: true}
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO action_events (id, auction_id, seq, type, payload, reversal,
		                           undone, actor, message, created_at)
		SELECT $1, $2, coalesce(max(seq), 0) + 1, $3, $4, $5, false, $6, $7, now()
		FROM action_events WHERE auction_id = $2
		RETURNING seq, created_at`,
		event.ID, event.AuctionID, event.Type, []byte(event.Payload), reversal,
		event.Actor, event.Message,
	)

	stored := *event
	if err := row.Scan(&stored.Seq, &stored.CreatedAt); err != nil {
		return nil, fmt.Errorf("append action event: %w", err)
	}
	return &stored, nil
}

func (s *Store) GetUndoableTail(ctx context.Context, auctionID uuid.UUID, n int) ([]*models.ActionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, auction_id, seq, type, payload, reversal, undone, actor, message, created_at
		FROM action_events
		WHERE auction_id = $1
		ORDER BY seq DESC
		LIMIT $2`, auctionID, n)
	if err != nil {
		return nil, fmt.Errorf("load journal tail for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var events []*models.ActionEvent
	for rows.Next() {
		var (
			ev       models.ActionEvent
			payload  []byte
			reversal pqtype.NullRawMessage
		)
		err := rows.Scan(&ev.ID, &ev.AuctionID, &ev.Seq, &ev.Type, &payload,
			&reversal, &ev.Undone, &ev.Actor, &ev.Message, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan action event: %w", err)
		}
		ev.Payload = payload
		if reversal.Valid {
			ev.Reversal = reversal.RawMessage
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (s *Store) MarkEventUndone(ctx context.Context, eventID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE action_events SET undone = true WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark event %s undone: %w", eventID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrEventNotFound
	}
	return nil
}

func (s *Store) AppendBidAudit(ctx context.Context, entry *models.BidAuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bid_audit (id, auction_id, player_id, team_id, amount, reason, voided, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, now())`,
		entry.ID, entry.AuctionID, entry.PlayerID, entry.TeamID, entry.Amount, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("append bid audit: %w", err)
	}
	return nil
}

func (s *Store) VoidBidAudit(ctx context.Context, auctionID, playerID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bid_audit SET voided = true
		WHERE auction_id = $1 AND player_id = $2 AND voided = false`,
		auctionID, playerID,
	)
	if err != nil {
		return fmt.Errorf("void bid audit for player %s: %w", playerID, err)
	}
	return nil
}

// LatestSeq returns the newest journal sequence for an auction, 0 when
// the journal is empty.
func (s *Store) LatestSeq(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT max(seq) FROM action_events WHERE auction_id = $1`, auctionID,
	).Scan(&seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("latest seq for auction %s: %w", auctionID, err)
	}
	return seq.Int64, nil
}
