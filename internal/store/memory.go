package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crickstack/auctioneer/internal/models"
)

// MemoryStore is an in-process EntityStore used by tests and single-node
// development. Records are copied on the way in and out so callers never
// alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*models.Auction
	teams    map[uuid.UUID]*models.Team
	players  map[uuid.UUID]*models.Player
	journal  map[uuid.UUID][]*models.ActionEvent
	audit    map[uuid.UUID][]*models.BidAuditEntry
	seq      map[uuid.UUID]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[uuid.UUID]*models.Auction),
		teams:    make(map[uuid.UUID]*models.Team),
		players:  make(map[uuid.UUID]*models.Player),
		journal:  make(map[uuid.UUID][]*models.ActionEvent),
		audit:    make(map[uuid.UUID][]*models.BidAuditEntry),
		seq:      make(map[uuid.UUID]int64),
	}
}

func cloneAuction(a *models.Auction) *models.Auction {
	c := *a
	c.RemainingPlayers = append([]uuid.UUID(nil), a.RemainingPlayers...)
	c.Config.IncrementTiers = append([]models.IncrementTier(nil), a.Config.IncrementTiers...)
	if a.Bidding != nil {
		b := *a.Bidding
		b.BidHistory = append([]models.BidEntry(nil), a.Bidding.BidHistory...)
		c.Bidding = &b
	}
	return &c
}

func cloneTeam(t *models.Team) *models.Team {
	c := *t
	c.Roster = append([]models.RosterSlot(nil), t.Roster...)
	return &c
}

func clonePlayer(p *models.Player) *models.Player {
	c := *p
	c.Rounds = append([]models.RoundOutcome(nil), p.Rounds...)
	return &c
}

func (s *MemoryStore) LoadAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return cloneAuction(a), nil
}

func (s *MemoryStore) SaveAuction(ctx context.Context, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[auction.ID] = cloneAuction(auction)
	return nil
}

func (s *MemoryStore) LoadTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return cloneTeam(t), nil
}

func (s *MemoryStore) LoadTeams(ctx context.Context, auctionID uuid.UUID) ([]*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Team
	for _, t := range s.teams {
		if t.AuctionID == auctionID {
			out = append(out, cloneTeam(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) SaveTeam(ctx context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[team.ID] = cloneTeam(team)
	return nil
}

func (s *MemoryStore) LoadPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return clonePlayer(p), nil
}

func (s *MemoryStore) LoadPlayers(ctx context.Context, auctionID uuid.UUID) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Player
	for _, p := range s.players {
		if p.AuctionID == auctionID {
			out = append(out, clonePlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SavePlayer seeds a player record; auction setup uses it, the live
// engine only ever goes through UpdatePlayerStatus.
func (s *MemoryStore) SavePlayer(ctx context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = clonePlayer(player)
	return nil
}

func (s *MemoryStore) UpdatePlayerStatus(ctx context.Context, id uuid.UUID, update PlayerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Status = update.Status
	if update.ClearSale {
		p.SoldPrice = nil
		p.SoldTo = nil
	}
	if update.SoldPrice != nil {
		v := *update.SoldPrice
		p.SoldPrice = &v
	}
	if update.SoldTo != nil {
		v := *update.SoldTo
		p.SoldTo = &v
	}
	if update.AddRound != nil {
		p.Rounds = append(p.Rounds, *update.AddRound)
	}
	return nil
}

func (s *MemoryStore) CountPlayersByStatus(ctx context.Context, auctionID uuid.UUID, status models.PlayerStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.players {
		if p.AuctionID == auctionID && p.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) AppendActionEvent(ctx context.Context, event *models.ActionEvent) (*models.ActionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[event.AuctionID]++
	stored := *event
	stored.Seq = s.seq[event.AuctionID]
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.journal[event.AuctionID] = append(s.journal[event.AuctionID], &stored)
	out := stored
	return &out, nil
}

func (s *MemoryStore) GetUndoableTail(ctx context.Context, auctionID uuid.UUID, n int) ([]*models.ActionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	journal := s.journal[auctionID]
	var out []*models.ActionEvent
	for i := len(journal) - 1; i >= 0 && len(out) < n; i-- {
		ev := *journal[i]
		out = append(out, &ev)
	}
	return out, nil
}

func (s *MemoryStore) MarkEventUndone(ctx context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, journal := range s.journal {
		for _, ev := range journal {
			if ev.ID == eventID {
				ev.Undone = true
				return nil
			}
		}
	}
	return ErrEventNotFound
}

func (s *MemoryStore) AppendBidAudit(ctx context.Context, entry *models.BidAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *entry
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.audit[entry.AuctionID] = append(s.audit[entry.AuctionID], &stored)
	return nil
}

func (s *MemoryStore) VoidBidAudit(ctx context.Context, auctionID, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.audit[auctionID] {
		if e.PlayerID == playerID {
			e.Voided = true
		}
	}
	return nil
}

// BidAuditEntries returns the audit trail for an auction, oldest first.
// Test helper.
func (s *MemoryStore) BidAuditEntries(auctionID uuid.UUID) []*models.BidAuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.BidAuditEntry, 0, len(s.audit[auctionID]))
	for _, e := range s.audit[auctionID] {
		c := *e
		out = append(out, &c)
	}
	return out
}
