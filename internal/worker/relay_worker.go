package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/event"
)

const (
	RelayBatchSize    = 50
	RelayBatchTimeout = 2 * time.Second
	RelayPollTimeout  = 1 * time.Second
)

// RelayWorker drains the Redis event queue into a broker publisher.
type RelayWorker struct {
	rdb   *redis.Client
	pub   event.Publisher
	queue string
	log   zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
}

func NewRelayWorker(rdb *redis.Client, pub event.Publisher, log zerolog.Logger) *RelayWorker {
	return &RelayWorker{
		rdb:   rdb,
		pub:   pub,
		queue: config.WorkerKey.AttemptEventsQueue,
		log:   log.With().Str("component", "relay_worker").Logger(),

		batchSize:    RelayBatchSize,
		batchTimeout: RelayBatchTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *RelayWorker) Start(ctx context.Context) {
	w.log.Info().Msg("RelayWorker started")

	batch := make([]event.Event, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, RelayPollTimeout, w.queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var ev event.Event
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, ev)
		}
	}
}

// ----------------------------------------------------------------
// Flush: publish each event, requeue failures at the tail
// ----------------------------------------------------------------

func (w *RelayWorker) flushSafe(ctx context.Context, batch []event.Event) {
	if len(batch) == 0 {
		return
	}

	failed := 0
	for _, ev := range batch {
		if err := w.pub.Publish(ctx, ev); err != nil {
			failed++
			w.log.Error().Err(err).Str("event_id", ev.ID).Msg("Publish failed, requeueing")
			raw, _ := json.Marshal(ev)
			if err := w.rdb.RPush(ctx, w.queue, raw).Err(); err != nil {
				w.log.Error().Err(err).Str("event_id", ev.ID).Msg("Requeue failed, event dropped")
			}
		}
	}

	w.log.Info().
		Int("published", len(batch)-failed).
		Int("failed", failed).
		Msg("Relay batch flushed")
}
