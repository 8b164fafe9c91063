package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int32
	MaxRetries   int
	RetryDelay   time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// Worker relays unsent outbox rows to the event publisher. Multiple
// instances can run against the same table; row locking keeps each
// batch claimed by exactly one of them.
type Worker struct {
	repo      *Repository
	publisher EventPublisher
	config    WorkerConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(repo *Repository, publisher EventPublisher, cfg WorkerConfig) *Worker {
	return &Worker{
		repo:      repo,
		publisher: publisher,
		config:    cfg,
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int32("batch_size", w.config.BatchSize).
		Msg("outbox worker started")

	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.processOutbox(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	tx, err := w.repo.BeginTx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin outbox transaction")
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	entries, err := w.repo.FetchUnsentTx(ctx, tx, w.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch unsent events")
		return
	}
	if len(entries) == 0 {
		return
	}

	var sentIDs []uuid.UUID
	for _, entry := range entries {
		if err := w.publishWithRetry(ctx, entry); err != nil {
			log.Error().Err(err).
				Str("event_id", entry.ID.String()).
				Str("event_type", string(entry.Event.Type)).
				Msg("failed to publish event")
			continue
		}
		sentIDs = append(sentIDs, entry.ID)
	}

	if len(sentIDs) > 0 {
		if err := w.repo.MarkSentTx(ctx, tx, sentIDs); err != nil {
			log.Error().Err(err).Msg("failed to mark events as sent")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("failed to commit outbox transaction")
		return
	}
	committed = true

	log.Debug().
		Int("total", len(entries)).
		Int("sent", len(sentIDs)).
		Msg("processed outbox batch")
}

func (w *Worker) publishWithRetry(ctx context.Context, entry *Entry) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := w.publisher.PublishEvent(ctx, entry.Event); err != nil {
			lastErr = err
			log.Warn().Err(err).
				Str("event_id", entry.ID.String()).
				Int("attempt", attempt+1).
				Msg("publish failed, retrying")
			continue
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
