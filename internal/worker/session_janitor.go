package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const JanitorInterval = time.Minute

// SessionReaper drops finished sessions from the live registry.
type SessionReaper interface {
	EvictFinished(olderThan time.Duration) int
}

// SessionJanitor periodically evicts submitted sessions whose results have
// been held long enough for clients to read them.
type SessionJanitor struct {
	reaper   SessionReaper
	ttl      time.Duration
	interval time.Duration
	log      zerolog.Logger
}

func NewSessionJanitor(reaper SessionReaper, ttl time.Duration, log zerolog.Logger) *SessionJanitor {
	return &SessionJanitor{
		reaper:   reaper,
		ttl:      ttl,
		interval: JanitorInterval,
		log:      log.With().Str("component", "session_janitor").Logger(),
	}
}

func (j *SessionJanitor) Start(ctx context.Context) {
	j.log.Info().Dur("ttl", j.ttl).Msg("SessionJanitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("SessionJanitor stopped")
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SessionJanitor) sweep() int {
	n := j.reaper.EvictFinished(j.ttl)
	if n > 0 {
		j.log.Info().Int("evicted", n).Msg("Finished sessions evicted")
	}
	return n
}
