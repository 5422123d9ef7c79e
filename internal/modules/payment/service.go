// README: Payment service records mock payments and refunds.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/events"
	"rideshare/internal/types"
)

var (
	ErrNotFound         = errors.New("payment not found")
	ErrRideNotFound     = errors.New("ride not found")
	ErrNotCompleted     = errors.New("ride not completed")
	ErrNotPermitted     = errors.New("requester not permitted")
	ErrAlreadyProcessed = errors.New("payment already processed")
	ErrAlreadyRefunded  = errors.New("payment already refunded")
)

type Service struct {
	store     Store
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewService(store Store, publisher events.Publisher, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{store: store, publisher: publisher, log: log, now: time.Now}
}

type RefundCommand struct {
	PaymentID   types.ID
	RequesterID types.ID
	Reason      string
}

// ProcessPayment charges the ride price to the rider with the mock method.
// Only completed rides can be paid, once.
func (s *Service) ProcessPayment(ctx context.Context, rideID, payerID types.ID) (*Payment, error) {
	ride, err := s.store.RideInfo(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != payerID {
		return nil, ErrNotPermitted
	}
	if ride.Status != string(StatusCompleted) {
		return nil, ErrNotCompleted
	}
	if existing, err := s.store.GetByRide(ctx, rideID); err == nil && existing != nil {
		return nil, ErrAlreadyProcessed
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p := &Payment{
		ID:            types.ID(uuid.NewString()),
		RideID:        rideID,
		RiderID:       ride.RiderID,
		DriverID:      ride.DriverID,
		Amount:        ride.Price,
		Method:        MethodMock,
		Status:        StatusCompleted,
		TransactionID: "mock_" + shortHex(),
		ProcessedAt:   s.now(),
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("payment recorded",
		zap.String("ride_id", string(rideID)),
		zap.String("transaction_id", p.TransactionID),
		zap.Float64("amount", p.Amount),
	)
	events.PublishBestEffort(ctx, s.publisher, s.log, events.Event{
		Type:       events.TypePaymentRecorded,
		Key:        string(rideID),
		OccurredAt: p.ProcessedAt,
		Payload:    p,
	})
	return p, nil
}

// Refund marks a payment refunded. Either party of the ride may ask.
func (s *Service) Refund(ctx context.Context, cmd RefundCommand) (*Payment, error) {
	p, err := s.store.Get(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.RiderID != cmd.RequesterID && (p.DriverID == nil || *p.DriverID != cmd.RequesterID) {
		return nil, ErrNotPermitted
	}
	if p.Status == StatusRefunded {
		return nil, ErrAlreadyRefunded
	}
	refunded, err := s.store.MarkRefunded(ctx, p.ID, "refund_"+shortHex(), s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("payment refunded",
		zap.String("payment_id", string(p.ID)),
		zap.String("refund_id", refunded.RefundID),
		zap.String("reason", cmd.Reason),
	)
	return refunded, nil
}

func (s *Service) GetByRide(ctx context.Context, rideID types.ID) (*Payment, error) {
	return s.store.GetByRide(ctx, rideID)
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
