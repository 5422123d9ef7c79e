package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"rideshare/internal/events"
	"rideshare/internal/types"
)

// memStore is an in-memory DriverStore preserving insertion order.
type memStore struct {
	mu      sync.Mutex
	drivers []Driver
}

func (m *memStore) ListAvailableDrivers(_ context.Context) ([]Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Driver, len(m.drivers))
	copy(out, m.drivers)
	return out, nil
}

func (m *memStore) GetDrivers(_ context.Context, ids []types.ID) ([]Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[types.ID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Driver
	for _, d := range m.drivers {
		if want[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) GetUser(_ context.Context, id types.ID) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if d.ID == id {
			cp := d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) SetLocation(_ context.Context, id types.ID, pos types.Point, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.drivers {
		if m.drivers[i].ID == id {
			p := pos
			t := at
			m.drivers[i].Position = &p
			m.drivers[i].LocationUpdatedAt = &t
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) SaveProfile(_ context.Context, id types.ID, p Profile) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.drivers {
		if m.drivers[i].ID == id {
			d := &m.drivers[i]
			d.Role, d.Vehicle, d.Available = p.Role, p.Vehicle, p.Role == RoleDriver
			if p.Name != "" {
				d.Name = p.Name
			}
			cp := *d
			return &cp, nil
		}
	}
	d := Driver{ID: id, Role: p.Role, Name: p.Name, Vehicle: p.Vehicle, Available: p.Role == RoleDriver, Rating: DefaultRating}
	m.drivers = append(m.drivers, d)
	return &d, nil
}

type fakeIndex struct {
	positions map[types.ID]types.Point
	searchErr error
	upsertErr error
	searched  bool
}

func (f *fakeIndex) Upsert(_ context.Context, id types.ID, pos types.Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.positions[id] = pos
	return nil
}

func (f *fakeIndex) Replace(_ context.Context, positions map[types.ID]types.Point) error {
	f.positions = make(map[types.ID]types.Point, len(positions))
	for id, p := range positions {
		f.positions[id] = p
	}
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, id types.ID) error {
	delete(f.positions, id)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ types.Point, _ float64) ([]types.ID, error) {
	f.searched = true
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var ids []types.ID
	for id := range f.positions {
		ids = append(ids, id)
	}
	return ids, nil
}

type capturePublisher struct {
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, e events.Event) error {
	c.events = append(c.events, e)
	return nil
}

func pt(lat, lng float64) *types.Point { return &types.Point{Lat: lat, Lng: lng} }

func driver(id string, pos *types.Point, available bool) Driver {
	return Driver{ID: types.ID(id), Role: RoleDriver, Position: pos, Available: available, Rating: 5}
}

// Pickup at Times Square; offsets of 0.01 deg latitude are ~1.11 km.
const pLat, pLng = 40.7580, -73.9855

func TestFindNearby_FiltersAndSorts(t *testing.T) {
	store := &memStore{drivers: []Driver{
		driver("far", pt(pLat+0.05, pLng), true),   // ~5.6 km
		driver("busy", pt(pLat+0.001, pLng), false), // unavailable
		driver("nopos", nil, true),                  // no coordinates
		{ID: "rider", Role: RoleRider, Position: pt(pLat, pLng), Available: true},
		driver("near", pt(pLat+0.01, pLng), true),   // ~1.1 km
		driver("out", pt(pLat+0.2, pLng), true),     // ~22 km
	}}
	svc := NewService(store, nil, nil, zap.NewNop())

	got, err := svc.FindNearby(context.Background(), pLat, pLng, 15)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}
	if len(got) != 2 || got[0].ID != "near" || got[1].ID != "far" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got[0].DistanceKm >= got[1].DistanceKm {
		t.Errorf("not ascending: %v >= %v", got[0].DistanceKm, got[1].DistanceKm)
	}
}

func TestFindNearby_TiesKeepInputOrder(t *testing.T) {
	store := &memStore{drivers: []Driver{
		driver("z", pt(pLat+0.01, pLng), true),
		driver("a", pt(pLat+0.01, pLng), true),
		driver("m", pt(pLat+0.01, pLng), true),
	}}
	svc := NewService(store, nil, nil, zap.NewNop())
	got, _ := svc.FindNearby(context.Background(), pLat, pLng, 5)
	if len(got) != 3 || got[0].ID != "z" || got[1].ID != "a" || got[2].ID != "m" {
		t.Fatalf("tie order not preserved: %+v", got)
	}
}

func TestFindNearby_ZeroRadiusAndEmpty(t *testing.T) {
	store := &memStore{drivers: []Driver{driver("d", pt(pLat+0.01, pLng), true)}}
	svc := NewService(store, nil, nil, zap.NewNop())

	got, err := svc.FindNearby(context.Background(), pLat, pLng, 0)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("radius 0: got %v, %v; want empty slice", got, err)
	}

	empty := NewService(&memStore{}, nil, nil, zap.NewNop())
	got, err = empty.FindNearby(context.Background(), pLat, pLng, 15)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty store: got %v, %v; want empty slice", got, err)
	}
}

func TestFindNearby_UsesIndexAndRechecksStore(t *testing.T) {
	store := &memStore{drivers: []Driver{
		driver("indexed-busy", pt(pLat+0.01, pLng), false),
		driver("indexed", pt(pLat+0.02, pLng), true),
		driver("unindexed", pt(pLat+0.01, pLng), true),
	}}
	idx := &fakeIndex{positions: map[types.ID]types.Point{
		"indexed-busy": *pt(pLat+0.01, pLng),
		"indexed":      *pt(pLat+0.02, pLng),
	}}
	svc := NewService(store, idx, nil, zap.NewNop())
	svc.indexReady.Store(true)

	got, err := svc.FindNearby(context.Background(), pLat, pLng, 15)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}
	if !idx.searched {
		t.Fatal("expected index to be consulted")
	}
	if len(got) != 1 || got[0].ID != "indexed" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestFindNearby_IndexFailureFallsBackToScan(t *testing.T) {
	store := &memStore{drivers: []Driver{driver("d", pt(pLat+0.01, pLng), true)}}
	idx := &fakeIndex{positions: map[types.ID]types.Point{}, searchErr: errors.New("redis down")}
	svc := NewService(store, idx, nil, zap.NewNop())

	got, err := svc.FindNearby(context.Background(), pLat, pLng, 15)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected store scan result, got %v, %v", got, err)
	}
}

func TestUpdateLocation(t *testing.T) {
	store := &memStore{drivers: []Driver{
		driver("d1", nil, true),
		{ID: "r1", Role: RoleRider},
	}}
	idx := &fakeIndex{positions: map[types.ID]types.Point{}}
	pub := &capturePublisher{}
	svc := NewService(store, idx, pub, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.UpdateLocation(context.Background(), "d1", pLat, pLng)
	if err != nil || res != UpdateOK {
		t.Fatalf("update d1: %v, %v", res, err)
	}
	d, _ := store.GetUser(context.Background(), "d1")
	if d.Position == nil || d.Position.Lat != pLat || !d.LocationUpdatedAt.Equal(fixed) {
		t.Errorf("position not stored: %+v", d)
	}
	if _, ok := idx.positions["d1"]; !ok {
		t.Error("index not updated")
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.TypeLocationUpdated {
		t.Errorf("unexpected events: %+v", pub.events)
	}

	if res, _ := svc.UpdateLocation(context.Background(), "r1", 1, 1); res != UpdateNotADriver {
		t.Errorf("rider update = %v, want %v", res, UpdateNotADriver)
	}
	if res, _ := svc.UpdateLocation(context.Background(), "ghost", 1, 1); res != UpdateNotFound {
		t.Errorf("unknown update = %v, want %v", res, UpdateNotFound)
	}
}

func TestUpdateLocation_SameCoordinatesOnlyRefreshTimestamp(t *testing.T) {
	store := &memStore{drivers: []Driver{driver("d1", nil, true)}}
	svc := NewService(store, nil, nil, zap.NewNop())
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }
	_, _ = svc.UpdateLocation(context.Background(), "d1", pLat+0.01, pLng)
	first, _ := svc.FindNearby(context.Background(), pLat, pLng, 15)

	svc.now = func() time.Time { return t0.Add(time.Minute) }
	_, _ = svc.UpdateLocation(context.Background(), "d1", pLat+0.01, pLng)
	second, _ := svc.FindNearby(context.Background(), pLat, pLng, 15)

	if len(first) != 1 || len(second) != 1 || first[0].DistanceKm != second[0].DistanceKm {
		t.Fatalf("results changed: %+v vs %+v", first, second)
	}
	if !second[0].LocationUpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("timestamp not refreshed: %v", second[0].LocationUpdatedAt)
	}
}

func TestSyncAvailability(t *testing.T) {
	store := &memStore{drivers: []Driver{driver("d1", pt(pLat, pLng), true)}}
	idx := &fakeIndex{positions: map[types.ID]types.Point{"d1": *pt(pLat, pLng)}}
	svc := NewService(store, idx, nil, zap.NewNop())

	svc.SyncAvailability(context.Background(), "d1", false)
	if _, ok := idx.positions["d1"]; ok {
		t.Fatal("driver should leave the index when going offline")
	}
	svc.SyncAvailability(context.Background(), "d1", true)
	if _, ok := idx.positions["d1"]; !ok {
		t.Fatal("driver should rejoin the index when going online")
	}
}

func TestFindNearby_ScansStoreUntilIndexBuilt(t *testing.T) {
	store := &memStore{drivers: []Driver{
		driver("seeded", pt(pLat+0.01, pLng), true),
		driver("offline", pt(pLat+0.01, pLng), false),
	}}
	idx := &fakeIndex{positions: map[types.ID]types.Point{}}
	svc := NewService(store, idx, nil, zap.NewNop())
	ctx := context.Background()

	got, err := svc.FindNearby(ctx, pLat, pLng, 15)
	if err != nil || len(got) != 1 || got[0].ID != "seeded" {
		t.Fatalf("before rebuild: got %+v, %v", got, err)
	}
	if idx.searched {
		t.Fatal("an unbuilt index must not be searched")
	}

	n, err := svc.RebuildIndex(ctx)
	if err != nil || n != 1 {
		t.Fatalf("rebuild: %d, %v", n, err)
	}
	if _, ok := idx.positions["seeded"]; !ok || len(idx.positions) != 1 {
		t.Fatalf("index after rebuild: %v", idx.positions)
	}
	got, _ = svc.FindNearby(ctx, pLat, pLng, 15)
	if !idx.searched || len(got) != 1 || got[0].ID != "seeded" {
		t.Fatalf("after rebuild: got %+v, searched %v", got, idx.searched)
	}
}

func TestFindNearby_FailedIndexWriteFallsBackUntilRebuild(t *testing.T) {
	store := &memStore{drivers: []Driver{driver("d1", pt(pLat+0.05, pLng), true)}}
	idx := &fakeIndex{positions: map[types.ID]types.Point{}}
	svc := NewService(store, idx, nil, zap.NewNop())
	ctx := context.Background()
	if _, err := svc.RebuildIndex(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// The move reaches the store but not the index.
	idx.upsertErr = errors.New("redis timeout")
	if res, err := svc.UpdateLocation(ctx, "d1", pLat+0.01, pLng); err != nil || res != UpdateOK {
		t.Fatalf("update: %v, %v", res, err)
	}
	idx.searched = false
	got, _ := svc.FindNearby(ctx, pLat, pLng, 2)
	if idx.searched || len(got) != 1 {
		t.Fatalf("stale index used: got %+v, searched %v", got, idx.searched)
	}

	idx.upsertErr = nil
	if _, err := svc.RebuildIndex(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if p := idx.positions["d1"]; p.Lat != pLat+0.01 {
		t.Fatalf("rebuild kept stale position %v", p)
	}
	got, _ = svc.FindNearby(ctx, pLat, pLng, 2)
	if !idx.searched || len(got) != 1 {
		t.Fatalf("rebuilt index not used: got %+v", got)
	}
}

func TestRebuildIndex_WithoutIndexIsNoop(t *testing.T) {
	svc := NewService(&memStore{drivers: []Driver{driver("d", pt(pLat, pLng), true)}}, nil, nil, zap.NewNop())
	if n, err := svc.RebuildIndex(context.Background()); n != 0 || err != nil {
		t.Fatalf("rebuild without index: %d, %v", n, err)
	}
}

func TestSaveProfile(t *testing.T) {
	store := &memStore{drivers: []Driver{driver("d1", pt(pLat, pLng), false)}}
	idx := &fakeIndex{positions: map[types.ID]types.Point{}}
	pub := &capturePublisher{}
	svc := NewService(store, idx, pub, zap.NewNop())
	ctx := context.Background()

	d, err := svc.SaveProfile(ctx, "d1", Profile{Role: RoleDriver, Name: "Ann", Vehicle: &Vehicle{Make: "Toyota", Type: "suv", Year: 2022}})
	if err != nil {
		t.Fatalf("save driver profile: %v", err)
	}
	if !d.Available || d.Vehicle == nil || d.Vehicle.Type != "suv" {
		t.Fatalf("driver profile = %+v", d)
	}
	if _, ok := idx.positions["d1"]; !ok {
		t.Error("online driver should be indexed")
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.TypeProfileUpdated {
		t.Errorf("events = %+v", pub.events)
	}

	d, err = svc.SaveProfile(ctx, "d1", Profile{Role: RoleRider, Vehicle: &Vehicle{Make: "ignored"}})
	if err != nil {
		t.Fatalf("switch to rider: %v", err)
	}
	if d.Role != RoleRider || d.Available || d.Vehicle != nil {
		t.Fatalf("rider profile = %+v", d)
	}
	if _, ok := idx.positions["d1"]; ok {
		t.Error("riders must leave the index")
	}

	if _, err := svc.SaveProfile(ctx, "new", Profile{Role: "admin"}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("bad role: %v", err)
	}
	if d, err := svc.SaveProfile(ctx, "new", Profile{Role: RoleRider, Name: "Bo"}); err != nil || d.Name != "Bo" {
		t.Fatalf("first profile creates the user: %+v, %v", d, err)
	}
}
