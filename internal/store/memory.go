package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"trackmybus/internal/model"
)

// Memory is the in-process backend. It serves as the whole store when no
// DATABASE_URL is configured and as the degraded-mode fallback behind
// Failover otherwise. All state lives behind one mutex; handler code never
// sees the raw maps.
type Memory struct {
	mu      sync.Mutex
	routes  map[string]model.Route
	updates map[string]*model.LocationUpdate
	byRoute map[string][]string // routeID -> update ids, oldest first
	users   map[string]*model.Reporter
}

func NewMemory() *Memory {
	m := &Memory{
		routes:  map[string]model.Route{},
		updates: map[string]*model.LocationUpdate{},
		byRoute: map[string][]string{},
		users:   map[string]*model.Reporter{},
	}
	for _, r := range SeedRoutes() {
		m.routes[r.ID] = r
	}
	return m
}

func (m *Memory) GetRoute(ctx context.Context, routeID string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[routeID]
	if !ok || !r.Active {
		return model.Route{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRoutes(ctx context.Context) ([]model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Route, 0, len(m.routes))
	for _, r := range m.routes {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteNumber < out[j].RouteNumber })
	return out, nil
}

// CreateUpdate inserts upd as the active update for its (route, bus) pair.
// Insertion and sibling deactivation happen under one lock hold so two
// concurrent submissions cannot both end up active.
func (m *Memory) CreateUpdate(ctx context.Context, upd model.LocationUpdate) (model.LocationUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[upd.RouteID]; !ok {
		return model.LocationUpdate{}, ErrNotFound
	}
	if upd.ID == "" {
		upd.ID = uuid.New().String()
	}
	if upd.CreatedAt.IsZero() {
		upd.CreatedAt = time.Now().UTC()
	}
	upd.Active = true
	if upd.Verifications == nil {
		upd.Verifications = []model.Verification{}
	}
	m.deactivateLocked(upd.RouteID, upd.BusNumber)
	cp := upd
	m.updates[cp.ID] = &cp
	m.byRoute[cp.RouteID] = append(m.byRoute[cp.RouteID], cp.ID)
	m.touchUserLocked(upd.ReporterID, upd.ReporterName)
	return upd, nil
}

func (m *Memory) DeactivateUpdates(ctx context.Context, routeID, busNumber string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deactivateLocked(routeID, busNumber), nil
}

func (m *Memory) deactivateLocked(routeID, busNumber string) int {
	n := 0
	for _, id := range m.byRoute[routeID] {
		u := m.updates[id]
		if u != nil && u.Active && u.BusNumber == busNumber {
			u.Active = false
			n++
		}
	}
	return n
}

func (m *Memory) FindActiveUpdates(ctx context.Context, routeID string, since time.Time, limit int) ([]model.LocationUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	ids := m.byRoute[routeID]
	out := []model.LocationUpdate{}
	// ids are oldest first; walk backwards for newest-first output
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		u := m.updates[ids[i]]
		if u == nil || !u.Active {
			continue
		}
		if u.CreatedAt.Before(since) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *Memory) FindMostRecentUpdate(ctx context.Context, routeID string) (model.LocationUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byRoute[routeID]
	for i := len(ids) - 1; i >= 0; i-- {
		if u := m.updates[ids[i]]; u != nil && u.Active {
			return *u, nil
		}
	}
	return model.LocationUpdate{}, ErrNotFound
}

func (m *Memory) FindUpdatesByReporter(ctx context.Context, reporterID string, limit int) ([]model.LocationUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	out := []model.LocationUpdate{}
	for _, u := range m.updates {
		if u.Active && u.ReporterID == reporterID {
			cp := *u
			if r, ok := m.routes[u.RouteID]; ok {
				cp.RouteNumber = r.RouteNumber
				cp.RouteName = r.RouteName
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DeleteUpdate(ctx context.Context, updateID, requesterID string) (model.LocationUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.updates[updateID]
	if !ok {
		return model.LocationUpdate{}, ErrNotFound
	}
	if u.ReporterID != requesterID {
		return model.LocationUpdate{}, ErrForbidden
	}
	delete(m.updates, updateID)
	ids := m.byRoute[u.RouteID]
	keep := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != updateID {
			keep = append(keep, id)
		}
	}
	m.byRoute[u.RouteID] = keep
	return *u, nil
}

func (m *Memory) AppendVerification(ctx context.Context, updateID, verifierID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.updates[updateID]
	if !ok {
		return "", ErrNotFound
	}
	if u.ReporterID == verifierID {
		return "", ErrForbidden
	}
	for _, v := range u.Verifications {
		if v.UserID == verifierID {
			return "", ErrAlreadyVerified
		}
	}
	u.Verifications = append(u.Verifications, model.Verification{UserID: verifierID, Timestamp: time.Now().UTC()})
	return u.ReporterID, nil
}

func (m *Memory) AdjustReputation(ctx context.Context, userID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.touchUserLocked(userID, "")
	u.Reputation += delta
	if u.Reputation < 0 {
		u.Reputation = 0
	}
	return nil
}

func (m *Memory) AdjustUpdateCount(ctx context.Context, userID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.touchUserLocked(userID, "")
	u.TotalUpdates += delta
	if u.TotalUpdates < 0 {
		u.TotalUpdates = 0
	}
	return nil
}

func (m *Memory) TopReporters(ctx context.Context, limit int) ([]model.Reporter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	out := make([]model.Reporter, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reputation != out[j].Reputation {
			return out[i].Reputation > out[j].Reputation
		}
		return out[i].TotalUpdates > out[j].TotalUpdates
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) touchUserLocked(userID, displayName string) *model.Reporter {
	u := m.users[userID]
	if u == nil {
		u = &model.Reporter{UserID: userID}
		m.users[userID] = u
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	return u
}
