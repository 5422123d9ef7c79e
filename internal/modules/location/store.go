// README: Driver store backed by PostgreSQL.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideshare/internal/types"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrActiveRide blocks a driver from becoming a rider mid-ride.
	ErrActiveRide = errors.New("driver has an active ride")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const driverColumns = `id, role, name, lat, lng, is_available, rating, total_rides, location_updated_at, vehicle_info`

// ListAvailableDrivers returns available drivers with a known position in
// a stable order (registration time, then id).
func (s *Store) ListAvailableDrivers(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM users
		WHERE role = 'driver' AND is_available AND lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return collectDrivers(rows)
}

// GetDrivers loads the given ids in the same order as ListAvailableDrivers.
func (s *Store) GetDrivers(ctx context.Context, ids []types.ID) ([]Driver, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM users
		WHERE id = ANY($1)
		ORDER BY created_at, id`, raw)
	if err != nil {
		return nil, err
	}
	return collectDrivers(rows)
}

func (s *Store) GetUser(ctx context.Context, id types.ID) (*Driver, error) {
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+` FROM users WHERE id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	out, err := collectDrivers(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *Store) SetLocation(ctx context.Context, id types.ID, pos types.Point, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET lat = $1, lng = $2, location_updated_at = $3
		WHERE id = $4 AND role = 'driver'`,
		pos.Lat, pos.Lng, at, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const activeRideExists = `EXISTS (
	SELECT 1 FROM rides
	WHERE driver_id = users.id AND status IN ('accepted','in_progress'))`

// SaveProfile upserts the user's profile. A driver holding an active ride
// keeps its role and stays unavailable.
func (s *Store) SaveProfile(ctx context.Context, id types.ID, p Profile) (*Driver, error) {
	var vehicle []byte
	if p.Vehicle != nil {
		b, err := json.Marshal(p.Vehicle)
		if err != nil {
			return nil, fmt.Errorf("encode vehicle_info: %w", err)
		}
		vehicle = b
	}
	rows, err := s.db.Query(ctx, `
		INSERT INTO users (id, role, name, phone, vehicle_info, is_available)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $2 = 'driver')
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			phone = COALESCE(EXCLUDED.phone, users.phone),
			vehicle_info = EXCLUDED.vehicle_info,
			is_available = EXCLUDED.role = 'driver' AND NOT `+activeRideExists+`
		WHERE EXCLUDED.role = 'driver' OR NOT `+activeRideExists+`
		RETURNING `+driverColumns,
		string(id), string(p.Role), p.Name, p.Phone, vehicle,
	)
	if err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	out, err := collectDrivers(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrActiveRide
	}
	return &out[0], nil
}

func collectDrivers(rows pgx.Rows) ([]Driver, error) {
	defer rows.Close()
	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDriver(row pgx.Row) (Driver, error) {
	var (
		d        Driver
		id, role string
		lat, lng *float64
		vehicle  []byte
	)
	if err := row.Scan(&id, &role, &d.Name, &lat, &lng, &d.Available, &d.Rating, &d.TotalRides, &d.LocationUpdatedAt, &vehicle); err != nil {
		return Driver{}, err
	}
	d.ID = types.ID(id)
	d.Role = Role(role)
	d.Position = types.OptionalPoint(lat, lng)
	d.Rating = clampRating(d.Rating)
	if len(vehicle) > 0 {
		var v Vehicle
		if err := json.Unmarshal(vehicle, &v); err != nil {
			return Driver{}, fmt.Errorf("decode vehicle_info for %s: %w", id, err)
		}
		d.Vehicle = &v
	}
	return d, nil
}
