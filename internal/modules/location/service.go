// README: Driver locator: nearby eligible drivers and last-writer-wins location updates.
package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rideshare/internal/events"
	"rideshare/internal/geo"
	"rideshare/internal/observability"
	"rideshare/internal/types"
)

type DriverStore interface {
	ListAvailableDrivers(ctx context.Context) ([]Driver, error)
	GetDrivers(ctx context.Context, ids []types.ID) ([]Driver, error)
	GetUser(ctx context.Context, id types.ID) (*Driver, error)
	SetLocation(ctx context.Context, id types.ID, pos types.Point, at time.Time) error
	SaveProfile(ctx context.Context, id types.ID, p Profile) (*Driver, error)
}

type Service struct {
	store     DriverStore
	index     GeoIndex
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time

	// indexMu orders index writes against RebuildIndex: writers hold the
	// read side, a rebuild holds the write side.
	indexMu sync.RWMutex

	// indexReady is false until a rebuild succeeds and again after any
	// failed index write. Searches scan the store while it is false.
	indexReady atomic.Bool
}

// NewService wires the locator. index and publisher may be nil.
func NewService(store DriverStore, index GeoIndex, publisher events.Publisher, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{store: store, index: index, publisher: publisher, log: log, now: time.Now}
}

// FindNearby returns eligible drivers within radiusKm of (lat, lng), closest
// first. Equal distances keep the store order.
func (s *Service) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyDriver, error) {
	drivers, err := s.candidates(ctx, types.Point{Lat: lat, Lng: lng}, radiusKm)
	if err != nil {
		return nil, err
	}

	out := make([]NearbyDriver, 0, len(drivers))
	for _, d := range drivers {
		if !d.Eligible() {
			continue
		}
		dist := geo.HaversineKm(lat, lng, d.Position.Lat, d.Position.Lng)
		if dist > radiusKm {
			continue
		}
		out = append(out, NearbyDriver{Driver: d, DistanceKm: dist})
	}
	geo.SortByDistance(out, func(n NearbyDriver) float64 { return n.DistanceKm })
	return out, nil
}

func (s *Service) candidates(ctx context.Context, center types.Point, radiusKm float64) ([]Driver, error) {
	if s.index != nil && s.indexReady.Load() {
		// Pad the radius slightly; the index uses a different earth model.
		ids, err := s.index.Search(ctx, center, radiusKm*1.01+0.01)
		if err == nil {
			return s.store.GetDrivers(ctx, ids)
		}
		s.log.Warn("geo index search failed, scanning store", zap.Error(err))
	}
	return s.store.ListAvailableDrivers(ctx)
}

// UpdateLocation records a driver's position and stamps it with the current
// time. Unknown ids and non-driver users are reported, not returned as errors.
func (s *Service) UpdateLocation(ctx context.Context, driverID types.ID, lat, lng float64) (UpdateResult, error) {
	u, err := s.store.GetUser(ctx, driverID)
	if errors.Is(err, ErrNotFound) {
		observability.LocationUpdates.WithLabelValues(string(UpdateNotFound)).Inc()
		return UpdateNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if u.Role != RoleDriver {
		observability.LocationUpdates.WithLabelValues(string(UpdateNotADriver)).Inc()
		return UpdateNotADriver, nil
	}

	pos := types.Point{Lat: lat, Lng: lng}
	now := s.now()
	s.indexMu.RLock()
	err = s.store.SetLocation(ctx, driverID, pos, now)
	if err == nil {
		s.writeIndex(driverID, s.indexUpsert(ctx, driverID, pos))
	}
	s.indexMu.RUnlock()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return UpdateNotFound, nil
		}
		return "", err
	}
	observability.LocationUpdates.WithLabelValues(string(UpdateOK)).Inc()
	events.PublishBestEffort(ctx, s.publisher, s.log, events.Event{
		Type:       events.TypeLocationUpdated,
		Key:        string(driverID),
		OccurredAt: now,
		Payload:    map[string]any{"driver_id": driverID, "lat": lat, "lng": lng},
	})
	return UpdateOK, nil
}

// SyncAvailability keeps the geo index in step with an availability change.
// Best effort: a failed write sends searches back to the store until the next
// rebuild.
func (s *Service) SyncAvailability(ctx context.Context, driverID types.ID, available bool) {
	if s.index == nil {
		return
	}
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	if !available {
		s.writeIndex(driverID, s.index.Remove(ctx, driverID))
		return
	}
	u, err := s.store.GetUser(ctx, driverID)
	if err != nil {
		s.writeIndex(driverID, err)
		return
	}
	if u.Position != nil {
		s.writeIndex(driverID, s.index.Upsert(ctx, driverID, *u.Position))
	}
}

func (s *Service) indexUpsert(ctx context.Context, id types.ID, pos types.Point) error {
	if s.index == nil {
		return nil
	}
	return s.index.Upsert(ctx, id, pos)
}

func (s *Service) writeIndex(driverID types.ID, err error) {
	if err == nil {
		return
	}
	s.indexReady.Store(false)
	s.log.Warn("geo index write failed, scanning store until rebuilt", zap.String("driver_id", string(driverID)), zap.Error(err))
}

// RebuildIndex loads every available driver with a position from the store
// into the geo index and marks it usable. It returns the indexed count.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	drivers, err := s.store.ListAvailableDrivers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list drivers for geo index: %w", err)
	}
	positions := make(map[types.ID]types.Point, len(drivers))
	for _, d := range drivers {
		if d.Eligible() {
			positions[d.ID] = *d.Position
		}
	}
	if err := s.index.Replace(ctx, positions); err != nil {
		s.indexReady.Store(false)
		return 0, fmt.Errorf("replace geo index: %w", err)
	}
	s.indexReady.Store(true)
	return len(positions), nil
}

// RunIndexRebuilder rebuilds the geo index every interval until ctx is done,
// which also repairs entries lost to a Redis flush or restart.
func (s *Service) RunIndexRebuilder(ctx context.Context, every time.Duration) {
	if s.index == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RebuildIndex(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("geo index rebuild failed", zap.Error(err))
			}
		}
	}
}

// SaveProfile sets the caller's role, contact details and vehicle, creating
// the user on first use. Drivers come online when they hold no active ride.
func (s *Service) SaveProfile(ctx context.Context, id types.ID, p Profile) (*Driver, error) {
	if p.Role != RoleRider && p.Role != RoleDriver {
		return nil, fmt.Errorf("%w: role must be rider or driver", ErrInvalidProfile)
	}
	if p.Role == RoleRider {
		p.Vehicle = nil
	}
	d, err := s.store.SaveProfile(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.SyncAvailability(ctx, id, d.Role == RoleDriver && d.Available)
	events.PublishBestEffort(ctx, s.publisher, s.log, events.Event{
		Type:    events.TypeProfileUpdated,
		Key:     string(id),
		Payload: map[string]any{"user_id": id, "role": d.Role, "is_available": d.Available},
	})
	return d, nil
}

func (s *Service) GetDriver(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.GetUser(ctx, id)
}
