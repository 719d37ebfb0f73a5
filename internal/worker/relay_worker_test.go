package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/event"
)

// flakyPublisher fails the first publish of every event id in failOnce and
// records the rest.
type flakyPublisher struct {
	mu        sync.Mutex
	failOnce  map[string]bool
	failAll   bool
	attempts  map[string]int
	published []event.Event
}

func newFlakyPublisher(failOnce ...string) *flakyPublisher {
	p := &flakyPublisher{failOnce: map[string]bool{}, attempts: map[string]int{}}
	for _, id := range failOnce {
		p.failOnce[id] = true
	}
	return p
}

func (p *flakyPublisher) Publish(_ context.Context, ev event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[ev.ID]++
	if p.failAll || (p.failOnce[ev.ID] && p.attempts[ev.ID] == 1) {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func (p *flakyPublisher) snapshot() ([]event.Event, map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	attempts := make(map[string]int, len(p.attempts))
	for k, v := range p.attempts {
		attempts[k] = v
	}
	return append([]event.Event(nil), p.published...), attempts
}

// testRelay needs a Redis server in TEST_REDIS_URL. Each test gets its own
// queue key.
func testRelay(t *testing.T, pub event.Publisher) (*RelayWorker, *redis.Client) {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse TEST_REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	w := NewRelayWorker(rdb, pub, zerolog.Nop())
	w.queue = "test:relay:" + uuid.NewString()
	t.Cleanup(func() {
		rdb.Del(context.Background(), w.queue)
		rdb.Close()
	})
	return w, rdb
}

func TestRelayRequeuesFailedPublishes(t *testing.T) {
	evs := []event.Event{
		event.New(event.AttemptSaved),
		event.New(event.AttemptDeleted),
		event.New(event.SessionAbandoned),
	}
	pub := newFlakyPublisher(evs[1].ID)
	w, rdb := testRelay(t, pub)
	w.batchTimeout = 10 * time.Millisecond

	ctx := context.Background()
	queue := event.NewRedisQueuePublisher(rdb, w.queue)
	for _, ev := range evs {
		if err := queue.Publish(ctx, ev); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		w.Start(runCtx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		published, _ := pub.snapshot()
		if len(published) == len(evs) {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatalf("published %d of %d events", len(published), len(evs))
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	published, attempts := pub.snapshot()
	if attempts[evs[1].ID] != 2 {
		t.Fatalf("attempts for failed event = %d, want 2", attempts[evs[1].ID])
	}
	if published[len(published)-1].ID != evs[1].ID {
		t.Fatalf("requeued event was not published last: %+v", published)
	}
	if n, _ := rdb.LLen(ctx, w.queue).Result(); n != 0 {
		t.Fatalf("queue length = %d, want 0", n)
	}
}

func TestRelayFlushRequeuesWholeBatchInOrder(t *testing.T) {
	pub := newFlakyPublisher()
	pub.failAll = true
	w, rdb := testRelay(t, pub)
	ctx := context.Background()

	batch := []event.Event{
		event.New(event.AttemptSaved),
		event.New(event.AttemptSaved),
		event.New(event.AttemptDeleted),
	}
	w.flushSafe(ctx, batch)

	raw, err := rdb.LRange(ctx, w.queue, 0, -1).Result()
	if err != nil {
		t.Fatalf("LRange: %v", err)
	}
	if len(raw) != len(batch) {
		t.Fatalf("requeued %d events, want %d", len(raw), len(batch))
	}
	for i, r := range raw {
		var ev event.Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			t.Fatalf("decode requeued event: %v", err)
		}
		if ev.ID != batch[i].ID || ev.Type != batch[i].Type {
			t.Fatalf("requeued[%d] = %+v, want %+v", i, ev, batch[i])
		}
	}
}

func TestRelayBatchSizeTriggersFlush(t *testing.T) {
	pub := newFlakyPublisher()
	w, rdb := testRelay(t, pub)
	w.batchSize = 2
	w.batchTimeout = time.Hour

	ctx := context.Background()
	queue := event.NewRedisQueuePublisher(rdb, w.queue)
	for i := 0; i < 2; i++ {
		if err := queue.Publish(ctx, event.New(event.AttemptSaved)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		w.Start(runCtx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if published, _ := pub.snapshot(); len(published) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("full batch was not flushed before the batch timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
