package session

import (
	"sync"
	"time"
)

// TickInterval is the fixed cadence of the session timer.
const TickInterval = time.Second

// Timer is the only background activity of a session: a periodic tick that
// reports whole seconds elapsed on the injected Clock.
type Timer struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartTimer calls onTick with the whole seconds elapsed since the previous
// call. Missed ticks are folded into the next one. The loop exits when onTick
// returns false or Stop is called.
func StartTimer(clock Clock, onTick func(elapsedSeconds int) (keepRunning bool)) *Timer {
	t := &Timer{stop: make(chan struct{}), done: make(chan struct{})}
	ticker := clock.NewTicker(TickInterval)
	start := clock.Now()

	go func() {
		defer close(t.done)
		defer ticker.Stop()

		counted := 0
		for {
			select {
			case <-t.stop:
				return
			case now := <-ticker.C():
				total := int(now.Sub(start) / time.Second)
				elapsed := total - counted
				if elapsed <= 0 {
					continue
				}
				counted = total
				if !onTick(elapsed) {
					return
				}
			}
		}
	}()

	return t
}

// Stop cancels the timer and waits for the tick loop to exit, so no tick can
// land after Stop returns. It must not be called from inside onTick.
func (t *Timer) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// Done is closed once the tick loop has exited.
func (t *Timer) Done() <-chan struct{} { return t.done }
