// README: Payment store backed by PostgreSQL.
package payment

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

type Store interface {
	RideInfo(ctx context.Context, rideID types.ID) (*RideInfo, error)
	Insert(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id types.ID) (*Payment, error)
	GetByRide(ctx context.Context, rideID types.ID) (*Payment, error)
	MarkRefunded(ctx context.Context, id types.ID, refundID string, at time.Time) (*Payment, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) RideInfo(ctx context.Context, rideID types.ID) (*RideInfo, error) {
	info := RideInfo{ID: rideID}
	var (
		riderID  string
		driverID *string
	)
	err := s.db.QueryRow(ctx, `SELECT rider_id, driver_id, status, price FROM rides WHERE id = $1`, string(rideID)).
		Scan(&riderID, &driverID, &info.Status, &info.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, err
	}
	info.RiderID = types.ID(riderID)
	info.DriverID = toIDPtr(driverID)
	return &info, nil
}

// Insert relies on the one-payment-per-ride constraint to reject duplicates.
func (s *PGStore) Insert(ctx context.Context, p *Payment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO payments (
			id, ride_id, rider_id, driver_id, amount, method, status, transaction_id, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(p.ID), string(p.RideID), string(p.RiderID), toStringPtr(p.DriverID),
		p.Amount, p.Method, string(p.Status), p.TransactionID, p.ProcessedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, ride_id, rider_id, driver_id, amount, method, status, transaction_id, refund_id, processed_at, refunded_at`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Payment, error) {
	return scanPayment(s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, string(id)))
}

func (s *PGStore) GetByRide(ctx context.Context, rideID types.ID) (*Payment, error) {
	return scanPayment(s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE ride_id = $1`, string(rideID)))
}

func (s *PGStore) MarkRefunded(ctx context.Context, id types.ID, refundID string, at time.Time) (*Payment, error) {
	p, err := scanPayment(s.db.QueryRow(ctx, `
		UPDATE payments SET status = 'refunded', refund_id = $1, refunded_at = $2
		WHERE id = $3 AND status = 'completed'
		RETURNING `+paymentColumns, refundID, at, string(id)))
	if !errors.Is(err, ErrNotFound) {
		return p, err
	}
	// Either the payment does not exist or it was already refunded.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAlreadyRefunded
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p                           Payment
		id, rideID, riderID, status string
		driverID, refundID          *string
	)
	err := row.Scan(&id, &rideID, &riderID, &driverID, &p.Amount, &p.Method, &status,
		&p.TransactionID, &refundID, &p.ProcessedAt, &p.RefundedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ID = types.ID(id)
	p.RideID = types.ID(rideID)
	p.RiderID = types.ID(riderID)
	p.DriverID = toIDPtr(driverID)
	p.Status = Status(status)
	if refundID != nil {
		p.RefundID = *refundID
	}
	return &p, nil
}

func toIDPtr(s *string) *types.ID {
	if s == nil {
		return nil
	}
	id := types.ID(*s)
	return &id
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
