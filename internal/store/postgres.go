package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"trackmybus/internal/model"
)

// Postgres is the durable backend.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies *.sql files from dir in lexical order (dev helper).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) GetRoute(ctx context.Context, routeID string) (model.Route, error) {
	var r model.Route
	row := p.db.QueryRowContext(ctx,
		`SELECT id, route_number, route_name, start_location, end_location, is_active FROM routes WHERE id=$1 AND is_active`, routeID)
	if err := row.Scan(&r.ID, &r.RouteNumber, &r.RouteName, &r.Start, &r.End, &r.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, ErrNotFound
		}
		return r, err
	}
	stops, err := p.routeStops(ctx, routeID)
	if err != nil {
		return r, err
	}
	r.Stops = stops
	return r, nil
}

func (p *Postgres) routeStops(ctx context.Context, routeID string) ([]model.Stop, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name, lat, lng, ord FROM stops WHERE route_id=$1 ORDER BY ord`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Stop{}
	for rows.Next() {
		var s model.Stop
		if err := rows.Scan(&s.Name, &s.Lat, &s.Lng, &s.Order); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRoutes(ctx context.Context) ([]model.Route, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, route_number, route_name, start_location, end_location, is_active FROM routes WHERE is_active ORDER BY route_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Route{}
	for rows.Next() {
		var r model.Route
		if err := rows.Scan(&r.ID, &r.RouteNumber, &r.RouteName, &r.Start, &r.End, &r.Active); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		stops, err := p.routeStops(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Stops = stops
	}
	return out, nil
}

// CreateUpdate inserts the new report and deactivates its active siblings for
// the same (route, bus number) pair in one transaction, so the at-most-one-
// active invariant holds even under concurrent submissions.
func (p *Postgres) CreateUpdate(ctx context.Context, upd model.LocationUpdate) (model.LocationUpdate, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.LocationUpdate{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT true FROM routes WHERE id=$1 AND is_active FOR SHARE`, upd.RouteID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LocationUpdate{}, ErrNotFound
		}
		return model.LocationUpdate{}, err
	}
	if upd.ID == "" {
		upd.ID = uuid.New().String()
	}
	if upd.CreatedAt.IsZero() {
		upd.CreatedAt = time.Now().UTC()
	}
	upd.Active = true
	if _, err := tx.ExecContext(ctx,
		`UPDATE updates SET is_active=false WHERE route_id=$1 AND bus_number=$2 AND is_active`,
		upd.RouteID, upd.BusNumber); err != nil {
		return model.LocationUpdate{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO updates (id, route_id, reporter_id, bus_number, current_stop, next_stop, direction, passenger_load, lat, lng, note, estimated_arrival, is_active, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,true,$13)`,
		upd.ID, upd.RouteID, upd.ReporterID, upd.BusNumber, upd.CurrentStop, nullIfEmpty(upd.NextStop),
		upd.Direction, upd.PassengerLoad, upd.Lat, upd.Lng, nullIfEmpty(upd.Note), upd.EstimatedArrival, upd.CreatedAt); err != nil {
		return model.LocationUpdate{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, display_name) VALUES ($1,$2)
		 ON CONFLICT (id) DO UPDATE SET display_name=EXCLUDED.display_name WHERE EXCLUDED.display_name <> ''`,
		upd.ReporterID, upd.ReporterName); err != nil {
		return model.LocationUpdate{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.LocationUpdate{}, err
	}
	if upd.Verifications == nil {
		upd.Verifications = []model.Verification{}
	}
	return upd, nil
}

func (p *Postgres) DeactivateUpdates(ctx context.Context, routeID, busNumber string) (int, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE updates SET is_active=false WHERE route_id=$1 AND bus_number=$2 AND is_active`, routeID, busNumber)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const updateColumns = `u.id, u.route_id, r.route_number, r.route_name, u.reporter_id, COALESCE(s.display_name,''),
	u.bus_number, u.current_stop, COALESCE(u.next_stop,''), u.direction, u.passenger_load, u.lat, u.lng,
	COALESCE(u.note,''), u.estimated_arrival, u.is_active, u.created_at`

const updateFrom = ` FROM updates u JOIN routes r ON r.id=u.route_id LEFT JOIN users s ON s.id=u.reporter_id `

func scanUpdate(row interface{ Scan(...any) error }) (model.LocationUpdate, error) {
	var u model.LocationUpdate
	var eta sql.NullTime
	err := row.Scan(&u.ID, &u.RouteID, &u.RouteNumber, &u.RouteName, &u.ReporterID, &u.ReporterName,
		&u.BusNumber, &u.CurrentStop, &u.NextStop, &u.Direction, &u.PassengerLoad, &u.Lat, &u.Lng,
		&u.Note, &eta, &u.Active, &u.CreatedAt)
	if err != nil {
		return u, err
	}
	if eta.Valid {
		t := eta.Time
		u.EstimatedArrival = &t
	}
	u.Verifications = []model.Verification{}
	return u, nil
}

func (p *Postgres) FindActiveUpdates(ctx context.Context, routeID string, since time.Time, limit int) ([]model.LocationUpdate, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+updateColumns+updateFrom+
			`WHERE u.route_id=$1 AND u.is_active AND u.created_at >= $2 ORDER BY u.created_at DESC LIMIT $3`,
		routeID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LocationUpdate{}
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p.attachVerifications(ctx, out)
}

func (p *Postgres) FindMostRecentUpdate(ctx context.Context, routeID string) (model.LocationUpdate, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+updateColumns+updateFrom+
			`WHERE u.route_id=$1 AND u.is_active ORDER BY u.created_at DESC LIMIT 1`, routeID)
	u, err := scanUpdate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, err
	}
	vs, err := p.verifications(ctx, u.ID)
	if err != nil {
		return u, err
	}
	u.Verifications = vs
	return u, nil
}

func (p *Postgres) FindUpdatesByReporter(ctx context.Context, reporterID string, limit int) ([]model.LocationUpdate, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+updateColumns+updateFrom+
			`WHERE u.reporter_id=$1 AND u.is_active ORDER BY u.created_at DESC LIMIT $2`, reporterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LocationUpdate{}
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p.attachVerifications(ctx, out)
}

func (p *Postgres) verifications(ctx context.Context, updateID string) ([]model.Verification, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT user_id, created_at FROM verifications WHERE update_id=$1 ORDER BY created_at`, updateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Verification{}
	for rows.Next() {
		var v model.Verification
		if err := rows.Scan(&v.UserID, &v.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) attachVerifications(ctx context.Context, upds []model.LocationUpdate) ([]model.LocationUpdate, error) {
	for i := range upds {
		vs, err := p.verifications(ctx, upds[i].ID)
		if err != nil {
			return nil, err
		}
		upds[i].Verifications = vs
	}
	return upds, nil
}

func (p *Postgres) DeleteUpdate(ctx context.Context, updateID, requesterID string) (model.LocationUpdate, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+updateColumns+updateFrom+`WHERE u.id=$1`, updateID)
	u, err := scanUpdate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LocationUpdate{}, ErrNotFound
		}
		return model.LocationUpdate{}, err
	}
	if u.ReporterID != requesterID {
		return model.LocationUpdate{}, ErrForbidden
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM updates WHERE id=$1`, updateID); err != nil {
		return model.LocationUpdate{}, err
	}
	return u, nil
}

func (p *Postgres) AppendVerification(ctx context.Context, updateID, verifierID string) (string, error) {
	var owner string
	err := p.db.QueryRowContext(ctx, `SELECT reporter_id FROM updates WHERE id=$1`, updateID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if owner == verifierID {
		return "", ErrForbidden
	}
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO verifications (id, update_id, user_id, created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (update_id, user_id) DO NOTHING`,
		uuid.New().String(), updateID, verifierID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrAlreadyVerified
	}
	return owner, nil
}

func (p *Postgres) AdjustReputation(ctx context.Context, userID string, delta int) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, reputation) VALUES ($1,'',GREATEST($2,0))
		 ON CONFLICT (id) DO UPDATE SET reputation=GREATEST(users.reputation+$2,0)`, userID, delta)
	return err
}

func (p *Postgres) AdjustUpdateCount(ctx context.Context, userID string, delta int) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, total_updates) VALUES ($1,'',GREATEST($2,0))
		 ON CONFLICT (id) DO UPDATE SET total_updates=GREATEST(users.total_updates+$2,0)`, userID, delta)
	return err
}

func (p *Postgres) TopReporters(ctx context.Context, limit int) ([]model.Reporter, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, display_name, reputation, total_updates FROM users ORDER BY reputation DESC, total_updates DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reporter{}
	for rows.Next() {
		var r model.Reporter
		if err := rows.Scan(&r.UserID, &r.DisplayName, &r.Reputation, &r.TotalUpdates); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
