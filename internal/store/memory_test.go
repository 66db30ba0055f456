package store

import (
	"context"
	"testing"
	"time"

	"trackmybus/internal/model"
)

func testUpdate(routeID, bus, reporter string) model.LocationUpdate {
	return model.LocationUpdate{
		RouteID:       routeID,
		ReporterID:    reporter,
		ReporterName:  "Tester",
		BusNumber:     bus,
		CurrentStop:   "Pettah",
		Direction:     model.DirectionForward,
		PassengerLoad: model.LoadMedium,
		Lat:           6.9367,
		Lng:           79.8517,
	}
}

func TestCreateUpdateSupersedesSameBus(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.CreateUpdate(ctx, testUpdate("r_176", "NB-1234", "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := m.CreateUpdate(ctx, testUpdate("r_176", "NB-1234", "u2"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := m.CreateUpdate(ctx, testUpdate("r_176", "NB-9999", "u3"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	active, err := m.FindActiveUpdates(ctx, "r_176", time.Time{}, 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active updates, want 2", len(active))
	}
	for _, u := range active {
		if u.ID == first.ID {
			t.Fatalf("superseded update %s still active", first.ID)
		}
	}
	ids := map[string]bool{active[0].ID: true, active[1].ID: true}
	if !ids[second.ID] || !ids[other.ID] {
		t.Fatalf("active set %v, want %s and %s", ids, second.ID, other.ID)
	}
}

func TestCreateUpdateUnknownRoute(t *testing.T) {
	m := NewMemory()
	if _, err := m.CreateUpdate(context.Background(), testUpdate("r_nope", "NB-1", "u1")); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestFindActiveUpdatesWindowAndOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	old := testUpdate("r_138", "NB-1", "u1")
	old.CreatedAt = now.Add(-45 * time.Minute)
	if _, err := m.CreateUpdate(ctx, old); err != nil {
		t.Fatal(err)
	}
	recent := testUpdate("r_138", "NB-2", "u2")
	recent.CreatedAt = now.Add(-5 * time.Minute)
	created, err := m.CreateUpdate(ctx, recent)
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.FindActiveUpdates(ctx, "r_138", now.Add(-30*time.Minute), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("window query returned %+v, want only %s", got, created.ID)
	}

	// no window: newest first
	all, err := m.FindActiveUpdates(ctx, "r_138", time.Time{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != created.ID {
		t.Fatalf("got order %+v, want newest first", all)
	}
}

func TestFindMostRecentUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.FindMostRecentUpdate(ctx, "r_122"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound on empty route", err)
	}
	u1, _ := m.CreateUpdate(ctx, testUpdate("r_122", "NB-1", "u1"))
	u2, _ := m.CreateUpdate(ctx, testUpdate("r_122", "NB-2", "u2"))
	_ = u1
	got, err := m.FindMostRecentUpdate(ctx, "r_122")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u2.ID {
		t.Fatalf("got %s, want most recent %s", got.ID, u2.ID)
	}
}

func TestDeleteUpdateOwnerOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	u, _ := m.CreateUpdate(ctx, testUpdate("r_176", "NB-1", "owner"))

	if _, err := m.DeleteUpdate(ctx, u.ID, "stranger"); err != ErrForbidden {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	removed, err := m.DeleteUpdate(ctx, u.ID, "owner")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed.RouteID != "r_176" {
		t.Fatalf("removed record has route %s, want r_176", removed.RouteID)
	}
	if _, err := m.DeleteUpdate(ctx, u.ID, "owner"); err != ErrNotFound {
		t.Fatalf("second delete got %v, want ErrNotFound", err)
	}
}

func TestAppendVerificationRules(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	u, _ := m.CreateUpdate(ctx, testUpdate("r_176", "NB-1", "owner"))

	if _, err := m.AppendVerification(ctx, u.ID, "owner"); err != ErrForbidden {
		t.Fatalf("self-verify got %v, want ErrForbidden", err)
	}
	owner, err := m.AppendVerification(ctx, u.ID, "v1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if owner != "owner" {
		t.Fatalf("got owner %q, want %q", owner, "owner")
	}
	if _, err := m.AppendVerification(ctx, u.ID, "v1"); err != ErrAlreadyVerified {
		t.Fatalf("repeat verify got %v, want ErrAlreadyVerified", err)
	}
	if _, err := m.AppendVerification(ctx, "missing", "v1"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	got, err := m.FindMostRecentUpdate(ctx, "r_176")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Verifications) != 1 || got.Verifications[0].UserID != "v1" {
		t.Fatalf("verifications %+v, want one by v1", got.Verifications)
	}
}

func TestReputationFloorsAtZero(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.AdjustReputation(ctx, "u1", -5); err != nil {
		t.Fatal(err)
	}
	if err := m.AdjustUpdateCount(ctx, "u1", -3); err != nil {
		t.Fatal(err)
	}
	top, err := m.TopReporters(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0].Reputation != 0 || top[0].TotalUpdates != 0 {
		t.Fatalf("got %+v, want counters floored at zero", top)
	}
}

func TestTopReportersOrdering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.AdjustReputation(ctx, "a", 5)
	_ = m.AdjustReputation(ctx, "b", 9)
	_ = m.AdjustReputation(ctx, "c", 1)

	top, err := m.TopReporters(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].UserID != "b" || top[1].UserID != "a" {
		t.Fatalf("got %+v, want b then a", top)
	}
}
