package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trackmybus/internal/model"
	"trackmybus/internal/store"
)

type recordPublisher struct {
	mu          sync.Mutex
	updates     []model.LocationUpdate
	retractions [][2]string // updateID, routeID
}

func (p *recordPublisher) PublishUpdate(u model.LocationUpdate) {
	p.mu.Lock()
	p.updates = append(p.updates, u)
	p.mu.Unlock()
}

func (p *recordPublisher) PublishRetraction(updateID, routeID string) {
	p.mu.Lock()
	p.retractions = append(p.retractions, [2]string{updateID, routeID})
	p.mu.Unlock()
}

type recordReputation struct {
	mu     sync.Mutex
	deltas map[string]int
}

func (r *recordReputation) Increment(userID string, points int) { r.add(userID, points) }
func (r *recordReputation) Decrement(userID string, points int) { r.add(userID, -points) }

func (r *recordReputation) add(userID string, delta int) {
	r.mu.Lock()
	if r.deltas == nil {
		r.deltas = map[string]int{}
	}
	r.deltas[userID] += delta
	r.mu.Unlock()
}

func newTestService() (*Service, *store.Memory, *recordPublisher, *recordReputation) {
	st := store.NewMemory()
	pub := &recordPublisher{}
	rep := &recordReputation{}
	return NewService(st, pub, rep, zerolog.Nop()), st, pub, rep
}

func validIn() model.UpdateIn {
	return model.UpdateIn{
		RouteID:     "r_176",
		BusNumber:   "NB-1234",
		CurrentStop: "Pettah",
		Direction:   model.DirectionForward,
		Coordinates: &model.GeoPoint{Lat: 6.9367, Lng: 79.8517},
	}
}

func TestSubmitAcceptsAndBroadcasts(t *testing.T) {
	svc, _, pub, rep := newTestService()

	upd, err := svc.Submit(context.Background(), "u1", "Amal", validIn())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if upd.ID == "" || !upd.Active {
		t.Fatalf("got %+v, want active update with id", upd)
	}
	if upd.RouteNumber != "176" || upd.ReporterName != "Amal" {
		t.Fatalf("denormalized fields missing: %+v", upd)
	}
	if upd.PassengerLoad != model.LoadMedium {
		t.Fatalf("got load %q, want default medium", upd.PassengerLoad)
	}
	if len(pub.updates) != 1 || pub.updates[0].ID != upd.ID {
		t.Fatalf("published %+v, want the accepted update", pub.updates)
	}
	if rep.deltas["u1"] != 1 {
		t.Fatalf("reporter credited %d, want 1", rep.deltas["u1"])
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name  string
		mod   func(*model.UpdateIn)
		field string
	}{
		{"missing route", func(in *model.UpdateIn) { in.RouteID = "" }, "routeId"},
		{"missing bus", func(in *model.UpdateIn) { in.BusNumber = "  " }, "busNumber"},
		{"missing stop", func(in *model.UpdateIn) { in.CurrentStop = "" }, "currentStop"},
		{"bad direction", func(in *model.UpdateIn) { in.Direction = "sideways" }, "direction"},
		{"bad load", func(in *model.UpdateIn) { in.PassengerLoad = "packed" }, "passengerLoad"},
		{"missing coordinates", func(in *model.UpdateIn) { in.Coordinates = nil }, "coordinates"},
		{"lat out of range", func(in *model.UpdateIn) { in.Coordinates.Lat = 120 }, "coordinates.lat"},
		{"lng out of range", func(in *model.UpdateIn) { in.Coordinates.Lng = -200 }, "coordinates.lng"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validIn()
			tc.mod(&in)
			_, err := svc.Submit(ctx, "u1", "Amal", in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("fields %v, want %q flagged", verr.Fields, tc.field)
			}
		})
	}
	if len(pub.updates) != 0 {
		t.Fatalf("rejected submissions were published: %+v", pub.updates)
	}

	long := validIn()
	long.Note = string(make([]byte, maxNoteLen+1))
	if _, err := svc.Submit(ctx, "u1", "Amal", long); err == nil {
		t.Fatal("overlong note accepted")
	}
}

func TestSubmitUnknownRoute(t *testing.T) {
	svc, _, _, _ := newTestService()
	in := validIn()
	in.RouteID = "r_nope"
	if _, err := svc.Submit(context.Background(), "u1", "Amal", in); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCurrentWindowStaleFallbackAndEmpty(t *testing.T) {
	svc, st, _, _ := newTestService()
	ctx := context.Background()

	// empty route: empty feed, no error
	got, err := svc.Current(ctx, "r_122", 0, 0)
	if err != nil {
		t.Fatalf("empty feed errored: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %+v, want empty feed", got)
	}

	// only a stale update: single-item fallback
	stale := model.LocationUpdate{
		RouteID: "r_122", ReporterID: "u1", BusNumber: "NB-1",
		CurrentStop: "Kelaniya", Direction: model.DirectionForward, PassengerLoad: model.LoadLow,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	created, err := st.CreateUpdate(ctx, stale)
	if err != nil {
		t.Fatal(err)
	}
	got, err = svc.Current(ctx, "r_122", 30, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("got %+v, want stale fallback %s", got, created.ID)
	}

	// a fresh update hides the stale one
	fresh, err := st.CreateUpdate(ctx, model.LocationUpdate{
		RouteID: "r_122", ReporterID: "u2", BusNumber: "NB-2",
		CurrentStop: "Wattala", Direction: model.DirectionForward, PassengerLoad: model.LoadHigh,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err = svc.Current(ctx, "r_122", 30, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != fresh.ID {
		t.Fatalf("got %+v, want only fresh update %s", got, fresh.ID)
	}

	// unknown route is still an error
	if _, err := svc.Current(ctx, "r_nope", 0, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRetractPublishesRouteScopedRetraction(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()

	upd, err := svc.Submit(ctx, "u1", "Amal", validIn())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Retract(ctx, "stranger", upd.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden for non-owner", err)
	}
	if err := svc.Retract(ctx, "u1", upd.ID); err != nil {
		t.Fatalf("retract: %v", err)
	}
	if len(pub.retractions) != 1 {
		t.Fatalf("got %d retraction events, want 1", len(pub.retractions))
	}
	if pub.retractions[0] != [2]string{upd.ID, "r_176"} {
		t.Fatalf("got retraction %v, want (%s, r_176)", pub.retractions[0], upd.ID)
	}
}

func TestVerifyCreditsOwner(t *testing.T) {
	svc, _, _, rep := newTestService()
	ctx := context.Background()

	upd, err := svc.Submit(ctx, "owner", "Amal", validIn())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Verify(ctx, "owner", upd.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("self-verify got %v, want ErrForbidden", err)
	}
	if err := svc.Verify(ctx, "v1", upd.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.Verify(ctx, "v1", upd.ID); !errors.Is(err, store.ErrAlreadyVerified) {
		t.Fatalf("repeat verify got %v, want ErrAlreadyVerified", err)
	}
	// one point for the submission, one for the verification
	if rep.deltas["owner"] != 2 {
		t.Fatalf("owner credited %d, want 2", rep.deltas["owner"])
	}
	if rep.deltas["v1"] != 0 {
		t.Fatalf("verifier credited %d, want 0", rep.deltas["v1"])
	}
}
