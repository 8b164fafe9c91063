package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/engine"
	"github.com/crickstack/auctioneer/internal/events"
	"github.com/crickstack/auctioneer/internal/store"
)

// AuctionEngine is the slice of the engine the HTTP surface needs.
type AuctionEngine interface {
	Start(ctx context.Context, auctionID uuid.UUID) error
	PickNext(ctx context.Context, auctionID uuid.UUID) error
	PlaceBid(ctx context.Context, auctionID, teamID uuid.UUID) (*engine.BidResult, error)
	Pause(ctx context.Context, auctionID uuid.UUID, actor, reason string) error
	Resume(ctx context.Context, auctionID uuid.UUID, actor string) error
	Skip(ctx context.Context, auctionID uuid.UUID, actor string) error
	Complete(ctx context.Context, auctionID uuid.UUID, reason string) error
	Disqualify(ctx context.Context, auctionID, playerID uuid.UUID, reason, actor string) error
	Undo(ctx context.Context, auctionID uuid.UUID, actor string) (*engine.UndoResult, error)
	Announce(ctx context.Context, auctionID uuid.UUID, message string) error
	Snapshot(ctx context.Context, auctionID uuid.UUID) (*events.StatePayload, error)
}

// Service exposes the engine's command surface over HTTP alongside the
// WebSocket endpoint.
type Service struct {
	engine    AuctionEngine
	wsHandler *WebSocketHandler
}

func NewService(eng AuctionEngine, wsHandler *WebSocketHandler) *Service {
	return &Service{engine: eng, wsHandler: wsHandler}
}

// Handler builds the full HTTP handler, CORS included.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws/auction", s.wsHandler.HandleAuctionConnection)
	mux.HandleFunc("/ws/stats", s.wsHandler.HandleConnectionStats)

	mux.HandleFunc("/auctions/state", s.handleState)
	mux.HandleFunc("/auctions/bid", s.handleBid)

	mux.HandleFunc("/admin/auctions/start", s.adminNoBody(s.engine.Start))
	mux.HandleFunc("/admin/auctions/pick-next", s.adminNoBody(s.engine.PickNext))
	mux.HandleFunc("/admin/auctions/pause", s.handlePause)
	mux.HandleFunc("/admin/auctions/resume", s.handleResume)
	mux.HandleFunc("/admin/auctions/skip", s.handleSkip)
	mux.HandleFunc("/admin/auctions/complete", s.handleComplete)
	mux.HandleFunc("/admin/auctions/disqualify", s.handleDisqualify)
	mux.HandleFunc("/admin/auctions/undo", s.handleUndo)
	mux.HandleFunc("/admin/auctions/announce", s.handleAnnounce)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := auctionIDParam(w, r)
	if !ok {
		return
	}
	state, err := s.engine.Snapshot(r.Context(), auctionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Service) handleBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDParam(w, r)
	if !ok {
		return
	}
	var body struct {
		TeamID uuid.UUID `json:"team_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TeamID == uuid.Nil {
		http.Error(w, "team_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.engine.PlaceBid(r.Context(), auctionID, body.TeamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) adminNoBody(op func(ctx context.Context, auctionID uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		auctionID, ok := auctionIDParam(w, r)
		if !ok {
			return
		}
		if err := op(r.Context(), auctionID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (s *Service) handlePause(w http.ResponseWriter, r *http.Request) {
	s.adminWithBody(w, r, func(ctx context.Context, auctionID uuid.UUID, body adminBody) error {
		return s.engine.Pause(ctx, auctionID, body.Actor, body.Reason)
	})
}

func (s *Service) handleResume(w http.ResponseWriter, r *http.Request) {
	s.adminWithBody(w, r, func(ctx context.Context, auctionID uuid.UUID, body adminBody) error {
		return s.engine.Resume(ctx, auctionID, body.Actor)
	})
}

func (s *Service) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.adminWithBody(w, r, func(ctx context.Context, auctionID uuid.UUID, body adminBody) error {
		return s.engine.Skip(ctx, auctionID, body.Actor)
	})
}

func (s *Service) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.adminWithBody(w, r, func(ctx context.Context, auctionID uuid.UUID, body adminBody) error {
		return s.engine.Complete(ctx, auctionID, body.Reason)
	})
}

func (s *Service) handleDisqualify(w http.ResponseWriter, r *http.Request) {
	s.adminWithBody(w, r, func(ctx context.Context, auctionID uuid.UUID, body adminBody) error {
		if body.PlayerID == uuid.Nil {
			return errBadRequest
		}
		return s.engine.Disqualify(ctx, auctionID, body.PlayerID, body.Reason, body.Actor)
	})
}

func (s *Service) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	s.adminWithBody(w, r, func(ctx context.Context, auctionID uuid.UUID, body adminBody) error {
		if body.Message == "" {
			return errBadRequest
		}
		return s.engine.Announce(ctx, auctionID, body.Message)
	})
}

func (s *Service) handleUndo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDParam(w, r)
	if !ok {
		return
	}
	var body adminBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	result, err := s.engine.Undo(r.Context(), auctionID, body.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type adminBody struct {
	Actor    string    `json:"actor"`
	Reason   string    `json:"reason"`
	Message  string    `json:"message"`
	PlayerID uuid.UUID `json:"player_id"`
}

func (s *Service) adminWithBody(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, auctionID uuid.UUID, body adminBody) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDParam(w, r)
	if !ok {
		return
	}
	var body adminBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := op(r.Context(), auctionID, body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func auctionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	auctionID, err := uuid.Parse(r.URL.Query().Get("auction_id"))
	if err != nil {
		http.Error(w, "auction_id is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return auctionID, true
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps engine and store errors onto HTTP status codes. Gate
// rejections are 409 so clients know to retry immediately.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrAuctionNotFound),
		errors.Is(err, store.ErrPlayerNotFound),
		errors.Is(err, engine.ErrNoSession),
		errors.Is(err, engine.ErrTeamNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrBidGateHeld):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrAuctionNotLive),
		errors.Is(err, engine.ErrAuctionNotPaused),
		errors.Is(err, engine.ErrLotOnFloor),
		errors.Is(err, engine.ErrNoLotOnFloor),
		errors.Is(err, engine.ErrBiddingClosed),
		errors.Is(err, engine.ErrAlreadyHighest),
		errors.Is(err, engine.ErrTeamInactive),
		errors.Is(err, engine.ErrExceedsMaxBid),
		errors.Is(err, engine.ErrInsufficientPurse),
		errors.Is(err, engine.ErrSquadFull),
		errors.Is(err, engine.ErrPlayerOnFloor),
		errors.Is(err, engine.ErrPlayerNotInAuction),
		errors.Is(err, engine.ErrNothingToUndo),
		errors.Is(err, engine.ErrUndoLimit),
		errors.Is(err, engine.ErrNotReversible),
		errors.Is(err, engine.ErrUndoWouldBreakPurse):
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
