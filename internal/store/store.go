package store

import (
	"context"
	"errors"
	"time"

	"trackmybus/internal/model"
)

// Store is the persistence interface used by the feed service and the API
// server. Two backends satisfy it (Postgres and Memory); Failover composes
// them so callers never see which one served a call.
type Store interface {
	// Route catalog (read-only to this service)
	GetRoute(ctx context.Context, routeID string) (model.Route, error)
	ListRoutes(ctx context.Context) ([]model.Route, error)

	// Location updates
	// CreateUpdate persists upd as active and deactivates any prior active
	// update for the same (route, bus number) pair in the same operation.
	CreateUpdate(ctx context.Context, upd model.LocationUpdate) (model.LocationUpdate, error)
	DeactivateUpdates(ctx context.Context, routeID, busNumber string) (int, error)
	// FindActiveUpdates returns active updates for the route created at or
	// after since, newest first, capped at limit.
	FindActiveUpdates(ctx context.Context, routeID string, since time.Time, limit int) ([]model.LocationUpdate, error)
	FindMostRecentUpdate(ctx context.Context, routeID string) (model.LocationUpdate, error)
	FindUpdatesByReporter(ctx context.Context, reporterID string, limit int) ([]model.LocationUpdate, error)
	// DeleteUpdate removes the record and returns it so callers can broadcast
	// the retraction without a second read.
	DeleteUpdate(ctx context.Context, updateID, requesterID string) (model.LocationUpdate, error)
	// AppendVerification records verifierID vouching for the update, at most
	// once per identity, and returns the update owner's id.
	AppendVerification(ctx context.Context, updateID, verifierID string) (string, error)

	// Reputation counters
	AdjustReputation(ctx context.Context, userID string, delta int) error
	AdjustUpdateCount(ctx context.Context, userID string, delta int) error
	TopReporters(ctx context.Context, limit int) ([]model.Reporter, error)
}

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyVerified = errors.New("already verified")
)

// IsDomainErr reports whether err is a business-rule error rather than an
// infrastructure failure. Failover never degrades on these.
func IsDomainErr(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrAlreadyVerified)
}
