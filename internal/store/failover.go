package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"trackmybus/internal/metrics"
	"trackmybus/internal/model"
)

// Failover composes the durable backend with the memory backend. Every call
// goes to the primary under a bounded timeout; on an infrastructure failure
// that single call is served by the fallback instead, so callers never see a
// storage outage. Domain errors (NotFound, Forbidden, AlreadyVerified) come
// back unchanged — they are answers, not failures.
type Failover struct {
	primary  Store
	fallback Store
	timeout  time.Duration
	log      zerolog.Logger
}

func NewFailover(primary, fallback Store, timeout time.Duration, log zerolog.Logger) *Failover {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Failover{primary: primary, fallback: fallback, timeout: timeout, log: log.With().Str("component", "store").Logger()}
}

// do runs op against the primary, then against the fallback if the primary
// failed for infrastructure reasons.
func do[T any](f *Failover, ctx context.Context, name string, op func(ctx context.Context, s Store) (T, error)) (T, error) {
	pctx, cancel := context.WithTimeout(ctx, f.timeout)
	out, err := op(pctx, f.primary)
	cancel()
	if err == nil || IsDomainErr(err) {
		return out, err
	}
	metrics.StoreFallbacks.WithLabelValues(name).Inc()
	f.log.Warn().Err(err).Str("op", name).Msg("primary store failed, serving from memory")
	return op(ctx, f.fallback)
}

// Ping reports primary health; readiness should reflect the durable backend
// even while degraded mode keeps serving traffic.
func (f *Failover) Ping(ctx context.Context) error {
	type pinger interface{ Ping(ctx context.Context) error }
	if p, ok := f.primary.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (f *Failover) GetRoute(ctx context.Context, routeID string) (model.Route, error) {
	return do(f, ctx, "GetRoute", func(ctx context.Context, s Store) (model.Route, error) {
		return s.GetRoute(ctx, routeID)
	})
}

func (f *Failover) ListRoutes(ctx context.Context) ([]model.Route, error) {
	return do(f, ctx, "ListRoutes", func(ctx context.Context, s Store) ([]model.Route, error) {
		return s.ListRoutes(ctx)
	})
}

func (f *Failover) CreateUpdate(ctx context.Context, upd model.LocationUpdate) (model.LocationUpdate, error) {
	return do(f, ctx, "CreateUpdate", func(ctx context.Context, s Store) (model.LocationUpdate, error) {
		return s.CreateUpdate(ctx, upd)
	})
}

func (f *Failover) DeactivateUpdates(ctx context.Context, routeID, busNumber string) (int, error) {
	return do(f, ctx, "DeactivateUpdates", func(ctx context.Context, s Store) (int, error) {
		return s.DeactivateUpdates(ctx, routeID, busNumber)
	})
}

func (f *Failover) FindActiveUpdates(ctx context.Context, routeID string, since time.Time, limit int) ([]model.LocationUpdate, error) {
	return do(f, ctx, "FindActiveUpdates", func(ctx context.Context, s Store) ([]model.LocationUpdate, error) {
		return s.FindActiveUpdates(ctx, routeID, since, limit)
	})
}

func (f *Failover) FindMostRecentUpdate(ctx context.Context, routeID string) (model.LocationUpdate, error) {
	return do(f, ctx, "FindMostRecentUpdate", func(ctx context.Context, s Store) (model.LocationUpdate, error) {
		return s.FindMostRecentUpdate(ctx, routeID)
	})
}

func (f *Failover) FindUpdatesByReporter(ctx context.Context, reporterID string, limit int) ([]model.LocationUpdate, error) {
	return do(f, ctx, "FindUpdatesByReporter", func(ctx context.Context, s Store) ([]model.LocationUpdate, error) {
		return s.FindUpdatesByReporter(ctx, reporterID, limit)
	})
}

func (f *Failover) DeleteUpdate(ctx context.Context, updateID, requesterID string) (model.LocationUpdate, error) {
	return do(f, ctx, "DeleteUpdate", func(ctx context.Context, s Store) (model.LocationUpdate, error) {
		return s.DeleteUpdate(ctx, updateID, requesterID)
	})
}

func (f *Failover) AppendVerification(ctx context.Context, updateID, verifierID string) (string, error) {
	return do(f, ctx, "AppendVerification", func(ctx context.Context, s Store) (string, error) {
		return s.AppendVerification(ctx, updateID, verifierID)
	})
}

func (f *Failover) AdjustReputation(ctx context.Context, userID string, delta int) error {
	_, err := do(f, ctx, "AdjustReputation", func(ctx context.Context, s Store) (struct{}, error) {
		return struct{}{}, s.AdjustReputation(ctx, userID, delta)
	})
	return err
}

func (f *Failover) AdjustUpdateCount(ctx context.Context, userID string, delta int) error {
	_, err := do(f, ctx, "AdjustUpdateCount", func(ctx context.Context, s Store) (struct{}, error) {
		return struct{}{}, s.AdjustUpdateCount(ctx, userID, delta)
	})
	return err
}

func (f *Failover) TopReporters(ctx context.Context, limit int) ([]model.Reporter, error) {
	return do(f, ctx, "TopReporters", func(ctx context.Context, s Store) ([]model.Reporter, error) {
		return s.TopReporters(ctx, limit)
	})
}
