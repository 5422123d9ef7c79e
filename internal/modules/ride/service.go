// README: Ride coordinator: creation, assignment, transitions and availability.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/events"
	"rideshare/internal/maps"
	"rideshare/internal/modules/location"
	"rideshare/internal/modules/matching"
	"rideshare/internal/modules/pricing"
	"rideshare/internal/observability"
	"rideshare/internal/types"
)

var (
	ErrNotFound          = errors.New("ride not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotPermitted      = fmt.Errorf("%w: requester not permitted", ErrInvalidTransition)
	ErrDriverUnavailable = errors.New("driver unavailable")
	ErrConflict          = errors.New("ride state conflict")
	ErrActiveRide        = errors.New("driver has an active ride")
	ErrBadRequest        = errors.New("bad request")
)

type Locator interface {
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]location.NearbyDriver, error)
	SyncAvailability(ctx context.Context, driverID types.ID, available bool)
}

type Matcher interface {
	SelectDriver(ctx context.Context, ride matching.RideContext, pool []matching.Candidate) (*matching.Decision, bool)
	Order(pool []matching.Candidate) []matching.Scored
}

type Pricer interface {
	Estimate(distanceKm, durationMinutes float64) pricing.Breakdown
}

type Router interface {
	Resolve(ctx context.Context, w maps.Waypoint) maps.Waypoint
	Quote(ctx context.Context, origin, destination maps.Waypoint) maps.Quote
}

type Options struct {
	RadiusKm          float64
	MaxCommitAttempts int
	PendingBatch      int
	Tick              time.Duration
	// RecentWindow bounds the completed-ride count fed to ranking.
	RecentWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.RadiusKm <= 0 {
		o.RadiusKm = 15
	}
	if o.MaxCommitAttempts <= 0 {
		o.MaxCommitAttempts = 3
	}
	if o.PendingBatch <= 0 {
		o.PendingBatch = 20
	}
	if o.Tick <= 0 {
		o.Tick = 10 * time.Second
	}
	if o.RecentWindow <= 0 {
		o.RecentWindow = 30 * 24 * time.Hour
	}
	return o
}

type Service struct {
	store     Store
	locator   Locator
	matcher   Matcher
	pricer    Pricer
	router    Router
	publisher events.Publisher
	log       *zap.Logger
	opts      Options
	now       func() time.Time
	newID     func() types.ID
}

func NewService(store Store, locator Locator, matcher Matcher, pricer Pricer, router Router, publisher events.Publisher, log *zap.Logger, opts Options) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:     store,
		locator:   locator,
		matcher:   matcher,
		pricer:    pricer,
		router:    router,
		publisher: publisher,
		log:       log,
		opts:      opts.withDefaults(),
		now:       time.Now,
		newID:     func() types.ID { return types.ID(uuid.NewString()) },
	}
}

type CreateCommand struct {
	RiderID        types.ID
	PickupAddress  string
	DropoffAddress string
	Pickup         *types.Point
	Dropoff        *types.Point
	Notes          string
}

type CreateResult struct {
	Ride     *Ride              `json:"ride"`
	Price    pricing.Breakdown  `json:"pricing"`
	Decision *matching.Decision `json:"matching,omitempty"`
	Assigned bool               `json:"assigned"`
}

type AcceptCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type TransitionCommand struct {
	RideID      types.ID
	RequesterID types.ID
	To          Status
}

func validPoint(p *types.Point) bool {
	return p == nil || (p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180)
}

// CreateRide prices and persists a pending ride, then tries to assign a
// driver. Finding no driver leaves the ride pending and is not an error.
func (s *Service) CreateRide(ctx context.Context, cmd CreateCommand) (*CreateResult, error) {
	if cmd.RiderID == "" || cmd.PickupAddress == "" || cmd.DropoffAddress == "" {
		return nil, ErrBadRequest
	}
	if !validPoint(cmd.Pickup) || !validPoint(cmd.Dropoff) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
	}

	origin := s.router.Resolve(ctx, maps.Waypoint{Address: cmd.PickupAddress, Point: cmd.Pickup})
	destination := s.router.Resolve(ctx, maps.Waypoint{Address: cmd.DropoffAddress, Point: cmd.Dropoff})
	quote := s.router.Quote(ctx, origin, destination)
	price := s.pricer.Estimate(quote.DistanceKm, quote.DurationMinutes)

	now := s.now()
	r := &Ride{
		ID:                       s.newID(),
		RiderID:                  cmd.RiderID,
		Status:                   StatusPending,
		PickupAddress:            cmd.PickupAddress,
		DropoffAddress:           cmd.DropoffAddress,
		Pickup:                   origin.Point,
		Dropoff:                  destination.Point,
		Notes:                    cmd.Notes,
		DistanceKm:               quote.DistanceKm,
		EstimatedDurationMinutes: quote.DurationMinutes,
		Price:                    price.Total,
		RequestedAt:              now,
	}

	err := s.store.WithTx(ctx, func(tx Tx) error {
		role, err := tx.UserRole(ctx, cmd.RiderID)
		if err != nil {
			return err
		}
		if role != ActorRider {
			return ErrNotPermitted
		}
		if err := tx.InsertRide(ctx, r); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &Event{
			RideID:     r.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusPending,
			ActorType:  ActorRider,
			ActorID:    &cmd.RiderID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}
	observability.RideTransitions.WithLabelValues(string(StatusPending)).Inc()
	s.publish(ctx, events.TypeRideCreated, r)

	assigned, decision, err := s.assign(ctx, r)
	if err != nil {
		// The ride exists; assignment is retried by the pending assigner.
		s.log.Warn("assignment after create failed", zap.String("ride_id", string(r.ID)), zap.Error(err))
		assigned = r
	}
	return &CreateResult{
		Ride:     assigned,
		Price:    price,
		Decision: decision,
		Assigned: assigned.Status == StatusAccepted,
	}, nil
}

// assign runs matching for a pending ride and commits the result. The
// returned ride is the committed state, or r unchanged when no driver could
// be attached.
func (s *Service) assign(ctx context.Context, r *Ride) (*Ride, *matching.Decision, error) {
	if r.Pickup == nil {
		s.log.Info("ride has no pickup coordinates, leaving pending", zap.String("ride_id", string(r.ID)))
		observability.NoDriverTotal.Inc()
		return r, nil, nil
	}
	nearby, err := s.locator.FindNearby(ctx, r.Pickup.Lat, r.Pickup.Lng, s.opts.RadiusKm)
	if err != nil {
		return r, nil, fmt.Errorf("find nearby drivers: %w", err)
	}
	if len(nearby) == 0 {
		observability.NoDriverTotal.Inc()
		return r, nil, nil
	}
	pool := s.candidates(ctx, nearby)

	decision, ok := s.matcher.SelectDriver(ctx, rideContext(r), pool)
	if !ok {
		observability.NoDriverTotal.Inc()
		return r, nil, nil
	}

	for _, driverID := range s.commitOrder(decision, pool) {
		committed, err := s.commitAssignment(ctx, r.ID, driverID, ActorSystem, nil)
		switch {
		case err == nil:
			s.log.Info("ride assigned",
				zap.String("ride_id", string(r.ID)),
				zap.String("driver_id", string(driverID)),
				zap.String("strategy", string(decision.Strategy)),
			)
			s.afterAssign(ctx, committed)
			if driverID != decision.DriverID {
				d := *decision
				d.DriverID = driverID
				d.AlternativeID = ""
				decision = &d
			}
			return committed, decision, nil
		case errors.Is(err, ErrDriverUnavailable), errors.Is(err, ErrNotPermitted):
			observability.CommitConflicts.Inc()
			s.log.Info("driver taken before commit, trying next",
				zap.String("ride_id", string(r.ID)), zap.String("driver_id", string(driverID)))
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
			// Ride moved on (cancelled or assigned elsewhere) while ranking.
			return r, nil, nil
		default:
			return r, nil, err
		}
	}
	observability.NoDriverTotal.Inc()
	return r, nil, nil
}

func (s *Service) candidates(ctx context.Context, nearby []location.NearbyDriver) []matching.Candidate {
	ids := make([]types.ID, len(nearby))
	for i, n := range nearby {
		ids[i] = n.ID
	}
	counts, err := s.store.RecentCompletedCounts(ctx, ids, s.now().Add(-s.opts.RecentWindow))
	if err != nil {
		s.log.Warn("recent ride counts unavailable", zap.Error(err))
	}
	pool := make([]matching.Candidate, len(nearby))
	for i, n := range nearby {
		pool[i] = matching.Candidate{Driver: n.Driver, DistanceKm: n.DistanceKm, RecentRides: counts[n.ID]}
	}
	return pool
}

// commitOrder lists the drivers to try: the selection, its alternative, then
// the deterministic order, capped at MaxCommitAttempts.
func (s *Service) commitOrder(d *matching.Decision, pool []matching.Candidate) []types.ID {
	seen := make(map[types.ID]bool)
	var out []types.ID
	add := func(id types.ID) {
		if id == "" || seen[id] || len(out) >= s.opts.MaxCommitAttempts {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	add(d.DriverID)
	add(d.AlternativeID)
	for _, sc := range s.matcher.Order(pool) {
		if sc.Driver.Available {
			add(sc.ID())
		}
	}
	return out
}

// commitAssignment attaches driverID to a pending ride. Locks the driver row
// first, then the ride row.
func (s *Service) commitAssignment(ctx context.Context, rideID, driverID types.ID, actorType string, actorID *types.ID) (*Ride, error) {
	var out *Ride
	err := s.store.WithTx(ctx, func(tx Tx) error {
		d, err := tx.LockDriver(ctx, driverID)
		if errors.Is(err, ErrNotFound) {
			return ErrDriverUnavailable
		}
		if err != nil {
			return err
		}
		if d.Role != ActorDriver {
			return ErrNotPermitted
		}
		if !d.Available {
			return ErrDriverUnavailable
		}
		active, err := tx.HasActiveRide(ctx, driverID)
		if err != nil {
			return err
		}
		if active {
			return ErrDriverUnavailable
		}

		r, err := tx.LockRide(ctx, rideID)
		if err != nil {
			return err
		}
		if r.DriverID != nil || !CanTransition(r.Status, StatusAccepted) {
			return ErrInvalidTransition
		}
		now := s.now()
		from := r.Status
		r.Status = StatusAccepted
		r.DriverID = &driverID
		r.AcceptedAt = &now
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		if err := tx.SetDriverAvailable(ctx, driverID, false); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &Event{
			RideID:     r.ID,
			FromStatus: from,
			ToStatus:   StatusAccepted,
			ActorType:  actorType,
			ActorID:    actorID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) afterAssign(ctx context.Context, r *Ride) {
	observability.RideTransitions.WithLabelValues(string(StatusAccepted)).Inc()
	s.locator.SyncAvailability(ctx, *r.DriverID, false)
	s.publish(ctx, events.TypeRideAssigned, r)
}

// Accept lets a driver take a pending ride from the open list.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Ride, error) {
	if cmd.RideID == "" || cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	r, err := s.commitAssignment(ctx, cmd.RideID, cmd.DriverID, ActorDriver, &cmd.DriverID)
	if err != nil {
		return nil, err
	}
	s.afterAssign(ctx, r)
	return r, nil
}

// TransitionStatus moves a ride along the status flow on behalf of its rider
// or assigned driver. Completion and cancellation release the driver.
func (s *Service) TransitionStatus(ctx context.Context, cmd TransitionCommand) (*Ride, error) {
	if cmd.RideID == "" || cmd.RequesterID == "" {
		return nil, ErrBadRequest
	}
	var (
		out  *Ride
		from Status
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		r, err := tx.LockRide(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if !r.HasParticipant(cmd.RequesterID) {
			return ErrNotPermitted
		}
		// Assignment goes through matching or Accept.
		if cmd.To == StatusAccepted || !CanTransition(r.Status, cmd.To) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, cmd.To)
		}

		now := s.now()
		from = r.Status
		r.Status = cmd.To
		switch cmd.To {
		case StatusInProgress:
			r.StartedAt = &now
		case StatusCompleted:
			r.CompletedAt = &now
		case StatusCancelled:
			r.CancelledAt = &now
		}

		if r.DriverID != nil && (cmd.To == StatusCompleted || cmd.To == StatusCancelled) {
			if _, err := tx.LockDriver(ctx, *r.DriverID); err != nil {
				return err
			}
			if err := tx.SetDriverAvailable(ctx, *r.DriverID, true); err != nil {
				return err
			}
			if cmd.To == StatusCompleted {
				if err := tx.IncrementTotalRides(ctx, r.RiderID, *r.DriverID); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		actorType := ActorRider
		if r.DriverID != nil && *r.DriverID == cmd.RequesterID {
			actorType = ActorDriver
		}
		if err := tx.AppendEvent(ctx, &Event{
			RideID:     r.ID,
			FromStatus: from,
			ToStatus:   cmd.To,
			ActorType:  actorType,
			ActorID:    &cmd.RequesterID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RideTransitions.WithLabelValues(string(out.Status)).Inc()
	if out.DriverID != nil && (out.Status == StatusCompleted || out.Status == StatusCancelled) {
		s.locator.SyncAvailability(ctx, *out.DriverID, true)
	}
	s.publish(ctx, events.TypeRideStatusChanged, out)
	s.log.Info("ride status changed",
		zap.String("ride_id", string(out.ID)),
		zap.String("from", string(from)),
		zap.String("to", string(out.Status)),
	)
	return out, nil
}

// SetDriverAvailability is the driver's manual online/offline toggle. A
// driver holding an active ride cannot go available.
func (s *Service) SetDriverAvailability(ctx context.Context, driverID types.ID, available bool) error {
	if driverID == "" {
		return ErrBadRequest
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		d, err := tx.LockDriver(ctx, driverID)
		if err != nil {
			return err
		}
		if d.Role != ActorDriver {
			return ErrNotPermitted
		}
		if available {
			active, err := tx.HasActiveRide(ctx, driverID)
			if err != nil {
				return err
			}
			if active {
				return ErrActiveRide
			}
		}
		return tx.SetDriverAvailable(ctx, driverID, available)
	})
	if err != nil {
		return err
	}
	s.locator.SyncAvailability(ctx, driverID, available)
	events.PublishBestEffort(ctx, s.publisher, s.log, events.Event{
		Type:       events.TypeAvailability,
		Key:        string(driverID),
		OccurredAt: s.now(),
		Payload:    map[string]any{"driver_id": driverID, "is_available": available},
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

const historyLimit = 100

// ListForUser returns ride history for a rider, or for a driver when role is
// "driver".
func (s *Service) ListForUser(ctx context.Context, userID types.ID, role string) ([]Ride, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListForUser(ctx, userID, role, historyLimit)
}

func (s *Service) ListPending(ctx context.Context, limit int) ([]Ride, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	return s.store.ListPending(ctx, limit)
}

func (s *Service) publish(ctx context.Context, typ string, r *Ride) {
	events.PublishBestEffort(ctx, s.publisher, s.log, events.Event{
		Type:       typ,
		Key:        string(r.ID),
		OccurredAt: s.now(),
		Payload:    r,
	})
}

func rideContext(r *Ride) matching.RideContext {
	return matching.RideContext{
		RideID:         r.ID,
		Pickup:         r.Pickup,
		Dropoff:        r.Dropoff,
		PickupAddress:  r.PickupAddress,
		DropoffAddress: r.DropoffAddress,
		DistanceKm:     r.DistanceKm,
		RequestedAt:    r.RequestedAt,
		Notes:          r.Notes,
	}
}
