package gateway

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades client connections into the manager's pools.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleAuctionConnection handles WebSocket upgrades. Query parameters:
// auction_id (required), role (public|team|admin, default public) and
// team_id (required for role=team).
//
// Role is trusted from the query string; authentication sits in front of
// the gateway.
func (h *WebSocketHandler) HandleAuctionConnection(w http.ResponseWriter, r *http.Request) {
	auctionIDStr := r.URL.Query().Get("auction_id")
	if auctionIDStr == "" {
		http.Error(w, "auction_id is required", http.StatusBadRequest)
		return
	}
	auctionID, err := uuid.Parse(auctionIDStr)
	if err != nil {
		http.Error(w, "invalid auction_id format", http.StatusBadRequest)
		return
	}

	role := Role(r.URL.Query().Get("role"))
	switch role {
	case RolePublic, RoleTeam, RoleAdmin:
	case "":
		role = RolePublic
	default:
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	var teamID uuid.UUID
	if role == RoleTeam {
		teamID, err = uuid.Parse(r.URL.Query().Get("team_id"))
		if err != nil {
			http.Error(w, "team_id is required for role=team", http.StatusBadRequest)
			return
		}
	}

	if err := h.connectionManager.UpgradeConnection(w, r, auctionID, role, teamID); err != nil {
		log.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats reports active connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, auctions := h.connectionManager.Stats()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]int{
		"total_connections": total,
		"active_auctions":   auctions,
	})
}
