// README: Mock payment records for completed rides.
package payment

import (
	"time"

	"rideshare/internal/types"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

const MethodMock = "mock"

type Payment struct {
	ID            types.ID   `json:"id"`
	RideID        types.ID   `json:"ride_id"`
	RiderID       types.ID   `json:"rider_id"`
	DriverID      *types.ID  `json:"driver_id,omitempty"`
	Amount        float64    `json:"amount"`
	Method        string     `json:"payment_method"`
	Status        Status     `json:"status"`
	TransactionID string     `json:"transaction_id"`
	RefundID      string     `json:"refund_id,omitempty"`
	ProcessedAt   time.Time  `json:"processed_at"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

// RideInfo is the part of a ride the ledger needs.
type RideInfo struct {
	ID       types.ID
	RiderID  types.ID
	DriverID *types.ID
	Status   string
	Price    float64
}
