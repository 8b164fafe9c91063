// Package postgres implements the entity store on Postgres. Auction,
// team and player records go through pgx; the journal and audit tables
// go through database/sql so the outbox relay can share transactions
// with them.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crickstack/auctioneer/internal/models"
	"github.com/crickstack/auctioneer/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

var _ store.EntityStore = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, db *sql.DB) *Store {
	return &Store{pool: pool, db: db}
}

func (s *Store) LoadAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, status, current_round, remaining_players, config,
		       bidding, started_at, completed_at, created_at, updated_at
		FROM auctions WHERE id = $1`, id)

	var (
		a               models.Auction
		remainingJSON   []byte
		configJSON      []byte
		biddingJSON     []byte
		startedAt       sql.NullTime
		completedAt     sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Name, &a.Status, &a.CurrentRound, &remainingJSON,
		&configJSON, &biddingJSON, &startedAt, &completedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load auction %s: %w", id, err)
	}

	if err := json.Unmarshal(remainingJSON, &a.RemainingPlayers); err != nil {
		return nil, fmt.Errorf("decode remaining players for auction %s: %w", id, err)
	}
	if err := json.Unmarshal(configJSON, &a.Config); err != nil {
		return nil, fmt.Errorf("decode config for auction %s: %w", id, err)
	}
	if len(biddingJSON) > 0 {
		a.Bidding = &models.BiddingState{}
		if err := json.Unmarshal(biddingJSON, a.Bidding); err != nil {
			return nil, fmt.Errorf("decode bidding state for auction %s: %w", id, err)
		}
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

func (s *Store) SaveAuction(ctx context.Context, auction *models.Auction) error {
	remainingJSON, err := json.Marshal(auction.RemainingPlayers)
	if err != nil {
		return fmt.Errorf("marshal remaining players: %w", err)
	}
	configJSON, err := json.Marshal(auction.Config)
	if err != nil {
		return fmt.Errorf("marshal auction config: %w", err)
	}
	var biddingJSON []byte
	if auction.Bidding != nil {
		biddingJSON, err = json.Marshal(auction.Bidding)
		if err != nil {
			return fmt.Errorf("marshal bidding state: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO auctions (id, name, status, current_round, remaining_players,
		                      config, bidding, started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			current_round = EXCLUDED.current_round,
			remaining_players = EXCLUDED.remaining_players,
			config = EXCLUDED.config,
			bidding = EXCLUDED.bidding,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = now()`,
		auction.ID, auction.Name, auction.Status, auction.CurrentRound,
		remainingJSON, configJSON, biddingJSON,
		nullTime(auction.StartedAt), nullTime(auction.CompletedAt),
		createdOrNow(auction.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save auction %s: %w", auction.ID, err)
	}
	return nil
}

func (s *Store) LoadTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, auction_id, name, short_name, purse_total, purse_remaining,
		       roster, active, created_at
		FROM teams WHERE id = $1`, id)
	team, err := scanTeam(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load team %s: %w", id, err)
	}
	return team, nil
}

func (s *Store) LoadTeams(ctx context.Context, auctionID uuid.UUID) ([]*models.Team, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, auction_id, name, short_name, purse_total, purse_remaining,
		       roster, active, created_at
		FROM teams WHERE auction_id = $1 ORDER BY name`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load teams for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (s *Store) SaveTeam(ctx context.Context, team *models.Team) error {
	rosterJSON, err := json.Marshal(team.Roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO teams (id, auction_id, name, short_name, purse_total,
		                   purse_remaining, roster, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			short_name = EXCLUDED.short_name,
			purse_total = EXCLUDED.purse_total,
			purse_remaining = EXCLUDED.purse_remaining,
			roster = EXCLUDED.roster,
			active = EXCLUDED.active`,
		team.ID, team.AuctionID, team.Name, team.ShortName,
		team.PurseTotal, team.PurseRemaining, rosterJSON, team.Active,
		createdOrNow(team.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save team %s: %w", team.ID, err)
	}
	return nil
}

func (s *Store) LoadPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, auction_id, name, role, base_price, status,
		       sold_price, sold_to, rounds, created_at
		FROM players WHERE id = $1`, id)
	player, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", id, err)
	}
	return player, nil
}

func (s *Store) LoadPlayers(ctx context.Context, auctionID uuid.UUID) ([]*models.Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, auction_id, name, role, base_price, status,
		       sold_price, sold_to, rounds, created_at
		FROM players WHERE auction_id = $1 ORDER BY name`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load players for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func (s *Store) UpdatePlayerStatus(ctx context.Context, id uuid.UUID, update store.PlayerUpdate) error {
	player, err := s.LoadPlayer(ctx, id)
	if err != nil {
		return err
	}

	player.Status = update.Status
	if update.ClearSale {
		player.SoldPrice = nil
		player.SoldTo = nil
	}
	if update.SoldPrice != nil {
		player.SoldPrice = update.SoldPrice
	}
	if update.SoldTo != nil {
		player.SoldTo = update.SoldTo
	}
	if update.AddRound != nil {
		player.Rounds = append(player.Rounds, *update.AddRound)
	}

	roundsJSON, err := json.Marshal(player.Rounds)
	if err != nil {
		return fmt.Errorf("marshal player rounds: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE players SET status = $2, sold_price = $3, sold_to = $4, rounds = $5
		WHERE id = $1`,
		id, player.Status, player.SoldPrice, player.SoldTo, roundsJSON,
	)
	if err != nil {
		return fmt.Errorf("update player %s: %w", id, err)
	}
	return nil
}

func (s *Store) CountPlayersByStatus(ctx context.Context, auctionID uuid.UUID, status models.PlayerStatus) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM players WHERE auction_id = $1 AND status = $2`,
		auctionID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count players for auction %s: %w", auctionID, err)
	}
	return count, nil
}

// SavePlayer inserts or replaces a player record. Used by seeding and
// admin setup, not by the live engine.
func (s *Store) SavePlayer(ctx context.Context, player *models.Player) error {
	roundsJSON, err := json.Marshal(player.Rounds)
	if err != nil {
		return fmt.Errorf("marshal player rounds: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO players (id, auction_id, name, role, base_price, status,
		                     sold_price, sold_to, rounds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			base_price = EXCLUDED.base_price,
			status = EXCLUDED.status,
			sold_price = EXCLUDED.sold_price,
			sold_to = EXCLUDED.sold_to,
			rounds = EXCLUDED.rounds`,
		player.ID, player.AuctionID, player.Name, player.Role, player.BasePrice,
		player.Status, player.SoldPrice, player.SoldTo, roundsJSON,
		createdOrNow(player.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save player %s: %w", player.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var (
		t          models.Team
		rosterJSON []byte
	)
	err := row.Scan(&t.ID, &t.AuctionID, &t.Name, &t.ShortName,
		&t.PurseTotal, &t.PurseRemaining, &rosterJSON, &t.Active, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rosterJSON, &t.Roster); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return &t, nil
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var (
		p          models.Player
		soldPrice  sql.NullInt64
		soldTo     uuid.NullUUID
		roundsJSON []byte
	)
	err := row.Scan(&p.ID, &p.AuctionID, &p.Name, &p.Role, &p.BasePrice,
		&p.Status, &soldPrice, &soldTo, &roundsJSON, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if soldPrice.Valid {
		p.SoldPrice = &soldPrice.Int64
	}
	if soldTo.Valid {
		id := soldTo.UUID
		p.SoldTo = &id
	}
	if len(roundsJSON) > 0 {
		if err := json.Unmarshal(roundsJSON, &p.Rounds); err != nil {
			return nil, fmt.Errorf("decode rounds: %w", err)
		}
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func createdOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
