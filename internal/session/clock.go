package session

import (
	"sync"
	"time"
)

// Clock supplies wall-clock time and periodic tick sources.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the engine needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// ManualClock is a deterministic Clock. Time only moves on Advance, and every
// live ticker receives exactly one tick per Advance call.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*manualTicker]struct{}
}

// NewManualClock returns a ManualClock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, tickers: map[*manualTicker]struct{}{}}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{}), clock: c}
	c.tickers[t] = struct{}{}
	return t
}

// Advance moves time forward and delivers the new time to every live ticker.
// It blocks until each ticker has received the tick or been stopped.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := make([]*manualTicker, 0, len(c.tickers))
	for t := range c.tickers {
		tickers = append(tickers, t)
	}
	c.mu.Unlock()

	for _, t := range tickers {
		select {
		case t.ch <- now:
		case <-t.stopped:
		}
	}
}

// Tickers returns the number of tickers that have not been stopped.
func (c *ManualClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
	clock   *ManualClock
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.once.Do(func() {
		t.clock.mu.Lock()
		delete(t.clock.tickers, t)
		t.clock.mu.Unlock()
		close(t.stopped)
	})
}
