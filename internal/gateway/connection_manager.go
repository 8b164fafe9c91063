// Package gateway fans auction events out to WebSocket clients. Each
// connection declares a role at upgrade time; the manager filters every
// event by its audience before writing it out.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/events"
)

// Role is the access level of a WebSocket connection.
type Role string

const (
	RolePublic Role = "public"
	RoleTeam   Role = "team"
	RoleAdmin  Role = "admin"
)

// ConnectionManager holds the per-auction connection pools.
type ConnectionManager struct {
	auctionConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan *events.Event
}

// Connection is one WebSocket client. TeamID is set only for RoleTeam.
type Connection struct {
	ID        string
	AuctionID uuid.UUID
	Role      Role
	TeamID    uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		auctionConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.Event, 1000),
	}
}

// Start processes broadcast events until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case ev := <-cm.broadcastCh:
			cm.handleBroadcast(ev)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket and registers
// it in the auction's pool.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, auctionID uuid.UUID, role Role, teamID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		AuctionID:   auctionID,
		Role:        role,
		TeamID:      teamID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("auction_id", auctionID.String()).
		Str("role", string(role)).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.auctionConnections[conn.AuctionID] == nil {
		cm.auctionConnections[conn.AuctionID] = make(map[*Connection]bool)
	}
	cm.auctionConnections[conn.AuctionID][conn] = true
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.auctionConnections[conn.AuctionID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)

			if len(connections) == 0 {
				delete(cm.auctionConnections, conn.AuctionID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("auction_id", conn.AuctionID.String()).
				Msg("connection unregistered")
		}
	}
}

// Broadcast enqueues an event for fan-out. Drops the event when the
// queue is full rather than stalling the consumer.
func (cm *ConnectionManager) Broadcast(ev *events.Event) {
	select {
	case cm.broadcastCh <- ev:
	default:
		log.Warn().
			Str("auction_id", ev.AuctionID.String()).
			Str("event_type", string(ev.Type)).
			Msg("broadcast channel full, dropping event")
	}
}

// shouldReceive applies the audience filter. Admin connections see every
// segment; team connections see public plus their own team's private
// events; public connections see only the public segment.
func (c *Connection) shouldReceive(ev *events.Event) bool {
	switch ev.Audience {
	case events.AudiencePublic:
		return true
	case events.AudienceAdmin:
		return c.Role == RoleAdmin
	case events.AudienceTeam:
		if c.Role == RoleAdmin {
			return true
		}
		return c.Role == RoleTeam && ev.TeamID != nil && *ev.TeamID == c.TeamID
	default:
		return false
	}
}

func (cm *ConnectionManager) handleBroadcast(ev *events.Event) {
	cm.mu.RLock()
	connections, exists := cm.auctionConnections[ev.AuctionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	var targets []*Connection
	for conn := range connections {
		if conn.shouldReceive(ev) {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Slow consumer, close it rather than back up the fan-out.
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(ev.Type)).
		Str("auction_id", ev.AuctionID.String()).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats reports connection counts per auction.
func (cm *ConnectionManager) Stats() (total int, auctions int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, connections := range cm.auctionConnections {
		total += len(connections)
	}
	return total, len(cm.auctionConnections)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}
		// Clients only listen; anything they send just refreshes the deadline.
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
