package matching

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"rideshare/internal/ai"
	"rideshare/internal/modules/location"
	"rideshare/internal/types"
)

var fixedNow = time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func minutesAgo(m float64) *time.Time {
	t := fixedNow.Add(-time.Duration(m * float64(time.Minute)))
	return &t
}

func cand(id string, km, rating float64, rides int, updated *time.Time, available bool) Candidate {
	return Candidate{
		Driver: location.Driver{
			ID:                types.ID(id),
			Role:              location.RoleDriver,
			Available:         available,
			Rating:            rating,
			TotalRides:        rides,
			LocationUpdatedAt: updated,
		},
		DistanceKm: km,
	}
}

func TestFreshnessBuckets(t *testing.T) {
	tests := []struct {
		minutes float64
		want    float64
	}{
		{0, 5}, {2, 5}, {2.5, 4}, {5, 4}, {10, 3}, {30, 2}, {45, 1}, {60, 1}, {61, 0}, {staleMinutes, 0},
	}
	for _, tt := range tests {
		if got := freshnessScore(tt.minutes); got != tt.want {
			t.Errorf("freshnessScore(%v) = %v, want %v", tt.minutes, got, tt.want)
		}
	}
}

func TestScore_Composite(t *testing.T) {
	s := NewDeterministicScorer(clock)
	b := s.Score(cand("d", 2, 4.5, 40, minutesAgo(3), true))
	// distance 8, rating 4.5, experience 2, freshness 4
	want := 0.4*8 + 0.3*4.5 + 0.2*2 + 0.1*4
	if math.Abs(b.Composite-want) > 1e-9 {
		t.Errorf("composite = %v, want %v", b.Composite, want)
	}

	far := s.Score(cand("f", 25, 5, 1000, nil, true))
	if far.Distance != 0 || far.Experience != 5 || far.Freshness != 0 {
		t.Errorf("clamps not applied: %+v", far)
	}
}

func TestDeterministic_CloserWins(t *testing.T) {
	s := NewDeterministicScorer(clock)
	pool := []Candidate{
		cand("five-km", 5, 4.8, 100, minutesAgo(1), true),
		cand("one-km", 1, 4.8, 100, minutesAgo(1), true),
	}
	d, err := s.Rank(context.Background(), RideContext{}, pool)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if d.DriverID != "one-km" || d.AlternativeID != "five-km" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Strategy != StrategyDeterministic || d.Confidence <= 0 || d.Confidence > 1 {
		t.Errorf("unexpected decision metadata: %+v", d)
	}
	if len(d.KeyFactors) == 0 || d.KeyFactors[0] != "proximity" {
		t.Errorf("key factors = %v", d.KeyFactors)
	}
}

func TestDeterministic_SkipsUnavailable(t *testing.T) {
	s := NewDeterministicScorer(clock)
	pool := []Candidate{
		cand("best-but-busy", 0.1, 5, 200, minutesAgo(0), false),
		cand("ok", 3, 4, 10, minutesAgo(20), true),
	}
	d, err := s.Rank(context.Background(), RideContext{}, pool)
	if err != nil || d.DriverID != "ok" || d.AlternativeID != "" {
		t.Fatalf("got %+v, %v", d, err)
	}

	_, err = s.Rank(context.Background(), RideContext{}, []Candidate{cand("x", 1, 5, 0, nil, false)})
	if !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
}

func TestDeterministic_TiesKeepPoolOrder(t *testing.T) {
	s := NewDeterministicScorer(clock)
	pool := []Candidate{
		cand("first", 2, 4.5, 20, minutesAgo(1), true),
		cand("second", 2, 4.5, 20, minutesAgo(1), true),
	}
	ordered := s.Order(pool)
	if ordered[0].ID() != "first" || ordered[1].ID() != "second" {
		t.Fatalf("tie order changed: %v, %v", ordered[0].ID(), ordered[1].ID())
	}
}

func TestDeterministic_ConfidenceAtMaximum(t *testing.T) {
	s := NewDeterministicScorer(clock)
	d, _ := s.Rank(context.Background(), RideContext{}, []Candidate{cand("perfect", 0, 5, 100, minutesAgo(0), true)})
	if d.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", d.Confidence)
	}
}

func TestAcceptanceRate(t *testing.T) {
	tests := []struct {
		rating float64
		rides  int
		want   float64
	}{
		{5, 0, 0.9},
		{5, 100, 1.0},
		{5, 1000, 1.0},
		{4, 50, 0.77},
		{1, 0, 0.18},
	}
	for _, tt := range tests {
		if got := AcceptanceRate(tt.rating, tt.rides); got != tt.want {
			t.Errorf("AcceptanceRate(%v, %d) = %v, want %v", tt.rating, tt.rides, got, tt.want)
		}
	}
}

// stubProvider is a scripted ai.RankingProvider.
type stubProvider struct {
	mu       sync.Mutex
	decision *ai.RankingDecision
	err      error
	block    bool
	calls    int
	lastReq  ai.DriverRankingRequest
}

func (s *stubProvider) RankDrivers(ctx context.Context, req ai.DriverRankingRequest) (*ai.RankingDecision, error) {
	s.mu.Lock()
	s.calls++
	s.lastReq = req
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.decision, s.err
}

func (s *stubProvider) AnalyzeMatching(context.Context, ai.MatchingStats) (*ai.MatchingInsights, error) {
	return nil, errors.New("not used")
}

func delegatedPool() []Candidate {
	return []Candidate{
		cand("near", 1, 4.9, 120, minutesAgo(1), true),
		cand("mid", 3, 4.2, 30, minutesAgo(8), true),
		cand("busy", 0.5, 5, 300, minutesAgo(0), false),
	}
}

func newDelegated(p ai.RankingProvider, timeout time.Duration) *DelegatedRanker {
	return NewDelegatedRanker(p, NewDeterministicScorer(clock), timeout, zap.NewNop())
}

func TestDelegated_UsesValidResponse(t *testing.T) {
	p := &stubProvider{decision: &ai.RankingDecision{
		SelectedDriverID:    "mid",
		ConfidenceScore:     1.7,
		Reasoning:           "better vehicle",
		AlternativeDriverID: "busy",
		KeyFactors:          []string{"vehicle"},
	}}
	d, err := newDelegated(p, time.Second).Rank(context.Background(), RideContext{RideID: "r1"}, delegatedPool())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if d.DriverID != "mid" || d.Strategy != StrategyDelegated {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Confidence != 1 {
		t.Errorf("confidence not clamped: %v", d.Confidence)
	}
	if d.AlternativeID != "" {
		t.Errorf("unavailable alternative should be dropped, got %q", d.AlternativeID)
	}
}

func TestDelegated_ProfilesSentToProvider(t *testing.T) {
	p := &stubProvider{decision: &ai.RankingDecision{SelectedDriverID: "near"}}
	pool := delegatedPool()
	pool[0].RecentRides = 7
	pool[0].DistanceKm = 1.23456
	pool[0].Driver.Vehicle = &location.Vehicle{Type: "suv"}
	pool[1].Driver.LocationUpdatedAt = nil

	if _, err := newDelegated(p, time.Second).Rank(context.Background(), RideContext{}, pool); err != nil {
		t.Fatalf("rank: %v", err)
	}
	got := p.lastReq.Drivers
	if len(got) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(got))
	}
	if got[0].RecentRidesCount != 7 || got[0].DistanceToPickupKm != 1.23 || got[0].VehicleType != "suv" || got[0].VehicleYear != 2020 {
		t.Errorf("profile 0 = %+v", got[0])
	}
	if got[0].LocationUpdatedMinutesAgo != 1 || got[1].LocationUpdatedMinutesAgo != 999 {
		t.Errorf("freshness minutes = %d, %d", got[0].LocationUpdatedMinutesAgo, got[1].LocationUpdatedMinutesAgo)
	}
	if got[1].VehicleType != "sedan" || got[2].IsAvailable {
		t.Errorf("profiles 1/2 = %+v / %+v", got[1], got[2])
	}
}

func TestDelegated_FallsBack(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{"call error", &stubProvider{err: errors.New("503")}},
		{"malformed output", &stubProvider{err: errors.New("failed to parse JSON response")}},
		{"unknown driver", &stubProvider{decision: &ai.RankingDecision{SelectedDriverID: "ghost"}}},
		{"unavailable driver", &stubProvider{decision: &ai.RankingDecision{SelectedDriverID: "busy"}}},
		{"empty selection", &stubProvider{decision: &ai.RankingDecision{}}},
		{"nil response", &stubProvider{}},
		{"timeout", &stubProvider{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := newDelegated(tt.provider, 20*time.Millisecond).Rank(context.Background(), RideContext{}, delegatedPool())
			if err != nil {
				t.Fatalf("fallback must not surface errors: %v", err)
			}
			if d.DriverID != "near" || d.Strategy != StrategyDeterministic {
				t.Fatalf("unexpected fallback decision: %+v", d)
			}
			if tt.provider.calls != 1 {
				t.Errorf("provider calls = %d, want exactly 1", tt.provider.calls)
			}
		})
	}
}

func TestDelegated_NoAvailableSkipsProvider(t *testing.T) {
	p := &stubProvider{decision: &ai.RankingDecision{SelectedDriverID: "busy"}}
	_, err := newDelegated(p, time.Second).Rank(context.Background(), RideContext{}, []Candidate{cand("busy", 1, 5, 0, nil, false)})
	if !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
	if p.calls != 0 {
		t.Errorf("provider should not be called, got %d calls", p.calls)
	}
}

func TestNewRanker_PicksStrategy(t *testing.T) {
	scorer := NewDeterministicScorer(clock)
	if _, ok := NewRanker(nil, scorer, time.Second, zap.NewNop()).(*DeterministicScorer); !ok {
		t.Error("nil provider should yield the deterministic scorer")
	}
	if _, ok := NewRanker(&stubProvider{}, scorer, time.Second, zap.NewNop()).(*DelegatedRanker); !ok {
		t.Error("configured provider should yield the delegated ranker")
	}
}

func TestEngine_SelectDriver(t *testing.T) {
	scorer := NewDeterministicScorer(clock)
	e := NewEngine(scorer, scorer, zap.NewNop())

	if d, ok := e.SelectDriver(context.Background(), RideContext{}, nil); ok || d != nil {
		t.Fatalf("empty pool should yield none, got %+v", d)
	}
	if _, ok := e.SelectDriver(context.Background(), RideContext{}, []Candidate{cand("b", 1, 5, 0, nil, false)}); ok {
		t.Fatal("all-unavailable pool should yield none")
	}
	d, ok := e.SelectDriver(context.Background(), RideContext{}, delegatedPool())
	if !ok || d.DriverID != "near" {
		t.Fatalf("got %+v, %v", d, ok)
	}
}

func TestEngine_MalformedRankerStillSelects(t *testing.T) {
	scorer := NewDeterministicScorer(clock)
	p := &stubProvider{err: errors.New("failed to parse JSON response")}
	e := NewEngine(NewRanker(p, scorer, time.Second, zap.NewNop()), scorer, zap.NewNop())
	d, ok := e.SelectDriver(context.Background(), RideContext{}, delegatedPool())
	if !ok || d == nil {
		t.Fatal("external failure must not yield none while candidates are available")
	}
}

func TestEngine_ConcurrentUse(t *testing.T) {
	scorer := NewDeterministicScorer(clock)
	e := NewEngine(scorer, scorer, zap.NewNop())
	pool := delegatedPool()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, ok := e.SelectDriver(context.Background(), RideContext{}, pool); !ok || d.DriverID != "near" {
				t.Errorf("unexpected selection %+v", d)
			}
		}()
	}
	wg.Wait()
}
