// Package reputation records reporter standing. Writes are asynchronous and
// best-effort: losing a reputation point is acceptable, failing a feed
// operation over one is not.
package reputation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trackmybus/internal/store"
)

// Recorder applies reputation deltas against the store in the background.
type Recorder struct {
	store   store.Store
	timeout time.Duration
	log     zerolog.Logger
}

func NewRecorder(st store.Store, log zerolog.Logger) *Recorder {
	return &Recorder{store: st, timeout: 5 * time.Second, log: log.With().Str("component", "reputation").Logger()}
}

func (r *Recorder) Increment(userID string, points int) { r.apply(userID, points) }

func (r *Recorder) Decrement(userID string, points int) { r.apply(userID, -points) }

func (r *Recorder) apply(userID string, delta int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.store.AdjustReputation(ctx, userID, delta); err != nil {
			r.log.Warn().Err(err).Str("user", userID).Int("delta", delta).Msg("reputation write failed")
		}
	}()
}
