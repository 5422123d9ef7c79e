package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	CompletedRides(ctx context.Context, since time.Time) ([]CompletedRide, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// CompletedRides returns rides completed since the given time, most recent
// first.
func (s *PGStore) CompletedRides(ctx context.Context, since time.Time) ([]CompletedRide, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.requested_at, r.accepted_at, COALESCE(u.rating, 5.0), r.distance_km, r.price
		FROM rides r
		LEFT JOIN users u ON u.id = r.driver_id
		WHERE r.status = 'completed' AND r.completed_at >= $1
		ORDER BY r.completed_at DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CompletedRide
	for rows.Next() {
		var c CompletedRide
		if err := rows.Scan(&c.RequestedAt, &c.AcceptedAt, &c.DriverRating, &c.DistanceKm, &c.Price); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
