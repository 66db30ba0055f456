// Package feed implements the live bus-location feed: accepting crowdsourced
// updates, resolving what is fresh enough to show, retracting reports, and
// recording rider verifications.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trackmybus/internal/metrics"
	"trackmybus/internal/model"
	"trackmybus/internal/store"
)

// Freshness defaults. Updates older than the window are considered stale and
// excluded from the normal feed; when nothing falls inside the window the
// single most recent active update is served instead, so riders see the last
// known position rather than a blank screen.
const (
	DefaultWindowMinutes = 30
	DefaultLimit         = 10
	MaxLimit             = 50
	maxNoteLen           = 200
)

// Publisher delivers feed events to connected watchers. Implementations must
// not block; slow watchers are the publisher's problem, not the feed's.
type Publisher interface {
	PublishUpdate(u model.LocationUpdate)
	PublishRetraction(updateID, routeID string)
}

// Reputation credits and debits reporter standing. Calls are fire-and-forget:
// a reputation write must never fail a feed operation.
type Reputation interface {
	Increment(userID string, points int)
	Decrement(userID string, points int)
}

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("invalid update: %s", strings.Join(keys, ", "))
}

// Service wires the store, the event publisher, and the reputation recorder
// into the feed operations the HTTP layer exposes.
type Service struct {
	store store.Store
	pub   Publisher
	rep   Reputation
	log   zerolog.Logger
}

func NewService(st store.Store, pub Publisher, rep Reputation, log zerolog.Logger) *Service {
	return &Service{store: st, pub: pub, rep: rep, log: log.With().Str("component", "feed").Logger()}
}

// Submit validates and persists a new location update, supersedes any active
// sibling for the same (route, bus number) pair, credits the reporter, and
// broadcasts the accepted update to the route's watchers.
func (s *Service) Submit(ctx context.Context, reporterID, reporterName string, in model.UpdateIn) (model.LocationUpdate, error) {
	if err := validateUpdate(&in); err != nil {
		return model.LocationUpdate{}, err
	}
	route, err := s.store.GetRoute(ctx, in.RouteID)
	if err != nil {
		return model.LocationUpdate{}, err
	}
	upd := model.LocationUpdate{
		RouteID:          route.ID,
		RouteNumber:      route.RouteNumber,
		RouteName:        route.RouteName,
		ReporterID:       reporterID,
		ReporterName:     reporterName,
		BusNumber:        in.BusNumber,
		CurrentStop:      in.CurrentStop,
		NextStop:         in.NextStop,
		Direction:        in.Direction,
		PassengerLoad:    in.PassengerLoad,
		Lat:              in.Coordinates.Lat,
		Lng:              in.Coordinates.Lng,
		Note:             in.Note,
		EstimatedArrival: in.EstimatedArrival,
	}
	upd, err = s.store.CreateUpdate(ctx, upd)
	if err != nil {
		return model.LocationUpdate{}, err
	}
	if err := s.store.AdjustUpdateCount(ctx, reporterID, 1); err != nil {
		s.log.Warn().Err(err).Str("user", reporterID).Msg("update counter write failed")
	}
	s.rep.Increment(reporterID, 1)
	s.pub.PublishUpdate(upd)
	metrics.UpdatesSubmitted.WithLabelValues(route.RouteNumber).Inc()
	s.log.Info().
		Str("update", upd.ID).
		Str("route", route.RouteNumber).
		Str("bus", upd.BusNumber).
		Msg("update accepted")
	return upd, nil
}

// Current resolves the feed for a route: active updates created within the
// freshness window, newest first. When the window is empty the single most
// recent active update is returned as a stale fallback. An empty feed is a
// valid answer, never an error; only an unknown route is.
func (s *Service) Current(ctx context.Context, routeID string, windowMinutes, limit int) ([]model.LocationUpdate, error) {
	if windowMinutes <= 0 {
		windowMinutes = DefaultWindowMinutes
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if _, err := s.store.GetRoute(ctx, routeID); err != nil {
		return nil, err
	}
	since := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)
	fresh, err := s.store.FindActiveUpdates(ctx, routeID, since, limit)
	if err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		return fresh, nil
	}
	last, err := s.store.FindMostRecentUpdate(ctx, routeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []model.LocationUpdate{}, nil
		}
		return nil, err
	}
	return []model.LocationUpdate{last}, nil
}

// ByReporter lists the requester's own active updates, newest first.
func (s *Service) ByReporter(ctx context.Context, reporterID string, limit int) ([]model.LocationUpdate, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.store.FindUpdatesByReporter(ctx, reporterID, limit)
}

// Retract removes an update its owner no longer stands behind and tells the
// route's watchers to drop it. Only the original reporter may retract.
func (s *Service) Retract(ctx context.Context, requesterID, updateID string) error {
	removed, err := s.store.DeleteUpdate(ctx, updateID, requesterID)
	if err != nil {
		return err
	}
	if err := s.store.AdjustUpdateCount(ctx, requesterID, -1); err != nil {
		s.log.Warn().Err(err).Str("user", requesterID).Msg("update counter write failed")
	}
	s.pub.PublishRetraction(removed.ID, removed.RouteID)
	s.log.Info().Str("update", removed.ID).Str("route", removed.RouteID).Msg("update retracted")
	return nil
}

// Verify records the caller vouching for someone else's update, at most once
// per identity, and credits the update's owner.
func (s *Service) Verify(ctx context.Context, verifierID, updateID string) error {
	owner, err := s.store.AppendVerification(ctx, updateID, verifierID)
	if err != nil {
		return err
	}
	s.rep.Increment(owner, 1)
	s.log.Info().Str("update", updateID).Str("verifier", verifierID).Msg("update verified")
	return nil
}

func validateUpdate(in *model.UpdateIn) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.RouteID) == "" {
		fields["routeId"] = "required"
	}
	in.BusNumber = strings.TrimSpace(in.BusNumber)
	if in.BusNumber == "" {
		fields["busNumber"] = "required"
	}
	in.CurrentStop = strings.TrimSpace(in.CurrentStop)
	if in.CurrentStop == "" {
		fields["currentStop"] = "required"
	}
	switch in.Direction {
	case model.DirectionForward, model.DirectionBackward:
	case "":
		fields["direction"] = "required"
	default:
		fields["direction"] = fmt.Sprintf("must be %q or %q", model.DirectionForward, model.DirectionBackward)
	}
	switch in.PassengerLoad {
	case model.LoadLow, model.LoadMedium, model.LoadHigh, model.LoadFull:
	case "":
		in.PassengerLoad = model.LoadMedium
	default:
		fields["passengerLoad"] = "must be low, medium, high, or full"
	}
	if in.Coordinates == nil {
		fields["coordinates"] = "required"
	} else {
		if in.Coordinates.Lat < -90 || in.Coordinates.Lat > 90 {
			fields["coordinates.lat"] = "must be between -90 and 90"
		}
		if in.Coordinates.Lng < -180 || in.Coordinates.Lng > 180 {
			fields["coordinates.lng"] = "must be between -180 and 180"
		}
	}
	if len(in.Note) > maxNoteLen {
		fields["note"] = fmt.Sprintf("must be at most %d characters", maxNoteLen)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
