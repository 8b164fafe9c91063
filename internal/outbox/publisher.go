package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/events"
)

// EventPublisher delivers a broadcast event to the message bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *events.Event) error
}

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	MaxMsgs         int64
	Replicas        int
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "AUCTION_EVENTS",
		SubjectPrefix:   "auction.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// JetStreamPublisher publishes auction events to NATS JetStream. Message
// IDs reuse the event ID so redelivery after a relay crash dedupes on
// the broker side.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}

	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:       p.config.StreamName,
		Subjects:   []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     p.config.MaxAge,
		MaxMsgs:    p.config.MaxMsgs,
		Storage:    jetstream.FileStorage,
		Replicas:   p.config.Replicas,
		Duplicates: p.config.DuplicateWindow,
	}

	if _, err := p.js.Stream(ctx, p.config.StreamName); err != nil {
		if _, err := p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("created JetStream stream")
	}
	return nil
}

func (p *JetStreamPublisher) PublishEvent(ctx context.Context, ev *events.Event) error {
	subject := SubjectFor(p.config.SubjectPrefix, ev)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(ev.Type)},
			"Auction-ID": []string{ev.AuctionID.String()},
			"Event-ID":   []string{ev.ID.String()},
		},
	},
		jetstream.WithMsgID(ev.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", ev.ID.String()).
		Msg("published auction event")

	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// SubjectFor builds the per-audience subject so consumers can subscribe
// to exactly the slice they are allowed to see:
//
//	<prefix>.public.<auctionID>
//	<prefix>.team.<auctionID>.<teamID>
//	<prefix>.admin.<auctionID>
func SubjectFor(prefix string, ev *events.Event) string {
	switch ev.Audience {
	case events.AudienceTeam:
		teamID := "unknown"
		if ev.TeamID != nil {
			teamID = ev.TeamID.String()
		}
		return fmt.Sprintf("%s.team.%s.%s", prefix, ev.AuctionID, teamID)
	case events.AudienceAdmin:
		return fmt.Sprintf("%s.admin.%s", prefix, ev.AuctionID)
	default:
		return fmt.Sprintf("%s.public.%s", prefix, ev.AuctionID)
	}
}
