// README: Ride store backed by PostgreSQL; mutations run inside WithTx.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideshare/internal/types"
)

// Tx is the set of row operations a single ride mutation may perform.
type Tx interface {
	UserRole(ctx context.Context, id types.ID) (string, error)
	InsertRide(ctx context.Context, r *Ride) error
	LockRide(ctx context.Context, id types.ID) (*Ride, error)
	LockDriver(ctx context.Context, id types.ID) (*DriverState, error)
	HasActiveRide(ctx context.Context, driverID types.ID) (bool, error)
	UpdateRide(ctx context.Context, r *Ride) error
	SetDriverAvailable(ctx context.Context, driverID types.ID, available bool) error
	IncrementTotalRides(ctx context.Context, ids ...types.ID) error
	AppendEvent(ctx context.Context, e *Event) error
}

type Store interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	ListForUser(ctx context.Context, userID types.ID, role string, limit int) ([]Ride, error)
	ListPending(ctx context.Context, limit int) ([]Ride, error)
	RecentCompletedCounts(ctx context.Context, driverIDs []types.ID, since time.Time) (map[types.ID]int, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PGStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(pgTx{q: tx})
	})
	if isUniqueViolation(err, "rides_one_active_per_driver") {
		return ErrDriverUnavailable
	}
	return err
}

const rideColumns = `id, rider_id, driver_id, status, status_version,
	pickup_address, dropoff_address, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	notes, distance_km, estimated_duration_minutes, price,
	requested_at, accepted_at, started_at, completed_at, cancelled_at`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return getRide(ctx, s.db, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
}

// ListForUser returns the user's rides, newest first. role selects which
// side of the ride the user is on.
func (s *PGStore) ListForUser(ctx context.Context, userID types.ID, role string, limit int) ([]Ride, error) {
	column := "rider_id"
	if role == ActorDriver {
		column = "driver_id"
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE `+column+` = $1
		ORDER BY requested_at DESC, id
		LIMIT $2`, string(userID), limit)
	if err != nil {
		return nil, err
	}
	return collectRides(rows)
}

// ListPending returns unassigned pending rides, oldest first.
func (s *PGStore) ListPending(ctx context.Context, limit int) ([]Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status = 'pending' AND driver_id IS NULL
		ORDER BY requested_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectRides(rows)
}

func (s *PGStore) RecentCompletedCounts(ctx context.Context, driverIDs []types.ID, since time.Time) (map[types.ID]int, error) {
	out := make(map[types.ID]int, len(driverIDs))
	if len(driverIDs) == 0 {
		return out, nil
	}
	raw := make([]string, len(driverIDs))
	for i, id := range driverIDs {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT driver_id, COUNT(*)
		FROM rides
		WHERE driver_id = ANY($1) AND status = 'completed' AND completed_at >= $2
		GROUP BY driver_id`, raw, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[types.ID(id)] = n
	}
	return out, rows.Err()
}

type pgTx struct {
	q querier
}

func (t pgTx) UserRole(ctx context.Context, id types.ID) (string, error) {
	var role string
	err := t.q.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, string(id)).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

func (t pgTx) InsertRide(ctx context.Context, r *Ride) error {
	pLat, pLng := splitPoint(r.Pickup)
	dLat, dLng := splitPoint(r.Dropoff)
	_, err := t.q.Exec(ctx, `
		INSERT INTO rides (
			id, rider_id, driver_id, status, status_version,
			pickup_address, dropoff_address, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			notes, distance_km, estimated_duration_minutes, price, requested_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16
		)`,
		string(r.ID), string(r.RiderID), toStringPtr(r.DriverID), string(r.Status), r.StatusVersion,
		r.PickupAddress, r.DropoffAddress, pLat, pLng, dLat, dLng,
		r.Notes, r.DistanceKm, r.EstimatedDurationMinutes, r.Price, r.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

func (t pgTx) LockRide(ctx context.Context, id types.ID) (*Ride, error) {
	return getRide(ctx, t.q, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, id)
}

func (t pgTx) LockDriver(ctx context.Context, id types.ID) (*DriverState, error) {
	d := DriverState{ID: id}
	err := t.q.QueryRow(ctx, `SELECT role, is_available FROM users WHERE id = $1 FOR UPDATE`, string(id)).
		Scan(&d.Role, &d.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (t pgTx) HasActiveRide(ctx context.Context, driverID types.ID) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE driver_id = $1 AND status IN ('accepted','in_progress')
		)`, string(driverID)).Scan(&exists)
	return exists, err
}

// UpdateRide writes status, driver and timestamps guarded by status_version.
// The caller's copy gets the bumped version.
func (t pgTx) UpdateRide(ctx context.Context, r *Ride) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE rides
		SET status = $1,
			status_version = status_version + 1,
			driver_id = $2,
			accepted_at = $3,
			started_at = $4,
			completed_at = $5,
			cancelled_at = $6
		WHERE id = $7 AND status_version = $8`,
		string(r.Status), toStringPtr(r.DriverID),
		r.AcceptedAt, r.StartedAt, r.CompletedAt, r.CancelledAt,
		string(r.ID), r.StatusVersion,
	)
	if err != nil {
		return fmt.Errorf("update ride: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	r.StatusVersion++
	return nil
}

func (t pgTx) SetDriverAvailable(ctx context.Context, driverID types.ID, available bool) error {
	_, err := t.q.Exec(ctx, `UPDATE users SET is_available = $1 WHERE id = $2`, available, string(driverID))
	return err
}

func (t pgTx) IncrementTotalRides(ctx context.Context, ids ...types.ID) error {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	_, err := t.q.Exec(ctx, `UPDATE users SET total_rides = total_rides + 1 WHERE id = ANY($1)`, raw)
	return err
}

func (t pgTx) AppendEvent(ctx context.Context, e *Event) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO ride_state_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func getRide(ctx context.Context, q querier, sql string, id types.ID) (*Ride, error) {
	rows, err := q.Query(ctx, sql, string(id))
	if err != nil {
		return nil, err
	}
	out, err := collectRides(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func collectRides(rows pgx.Rows) ([]Ride, error) {
	defer rows.Close()
	var out []Ride
	for rows.Next() {
		var (
			r                      Ride
			id, riderID, status    string
			driverID               *string
			pLat, pLng, dLat, dLng *float64
		)
		err := rows.Scan(
			&id, &riderID, &driverID, &status, &r.StatusVersion,
			&r.PickupAddress, &r.DropoffAddress, &pLat, &pLng, &dLat, &dLng,
			&r.Notes, &r.DistanceKm, &r.EstimatedDurationMinutes, &r.Price,
			&r.RequestedAt, &r.AcceptedAt, &r.StartedAt, &r.CompletedAt, &r.CancelledAt,
		)
		if err != nil {
			return nil, err
		}
		r.ID = types.ID(id)
		r.RiderID = types.ID(riderID)
		r.Status = Status(status)
		if driverID != nil {
			d := types.ID(*driverID)
			r.DriverID = &d
		}
		r.Pickup = types.OptionalPoint(pLat, pLng)
		r.Dropoff = types.OptionalPoint(dLat, dLng)
		out = append(out, r)
	}
	return out, rows.Err()
}

func splitPoint(p *types.Point) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
