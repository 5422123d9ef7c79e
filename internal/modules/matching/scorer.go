package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	weightDistance   = 0.4
	weightRating     = 0.3
	weightExperience = 0.2
	weightFreshness  = 0.1

	// maxComposite is the best attainable composite score:
	// 0.4*10 + 0.3*5 + 0.2*5 + 0.1*5.
	maxComposite = 7.0

	// staleMinutes stands in for a driver that never reported a position.
	staleMinutes = 999.0
)

// DeterministicScorer ranks candidates by a weighted composite of distance,
// rating, experience and location freshness.
type DeterministicScorer struct {
	now func() time.Time
}

func NewDeterministicScorer(now func() time.Time) *DeterministicScorer {
	if now == nil {
		now = time.Now
	}
	return &DeterministicScorer{now: now}
}

func (s *DeterministicScorer) minutesSinceUpdate(c Candidate) float64 {
	if c.Driver.LocationUpdatedAt == nil {
		return staleMinutes
	}
	return s.now().Sub(*c.Driver.LocationUpdatedAt).Minutes()
}

func freshnessScore(minutes float64) float64 {
	switch {
	case minutes <= 2:
		return 5
	case minutes <= 5:
		return 4
	case minutes <= 10:
		return 3
	case minutes <= 30:
		return 2
	case minutes <= 60:
		return 1
	default:
		return 0
	}
}

func (s *DeterministicScorer) Score(c Candidate) ScoreBreakdown {
	b := ScoreBreakdown{
		Distance:   math.Max(0, 10-c.DistanceKm),
		Rating:     c.Driver.Rating,
		Experience: math.Min(5, float64(c.Driver.TotalRides)/20),
		Freshness:  freshnessScore(s.minutesSinceUpdate(c)),
	}
	b.Composite = weightDistance*b.Distance +
		weightRating*b.Rating +
		weightExperience*b.Experience +
		weightFreshness*b.Freshness
	return b
}

// Order scores the pool and sorts it best first. Equal scores keep pool order.
func (s *DeterministicScorer) Order(pool []Candidate) []Scored {
	out := make([]Scored, len(pool))
	for i, c := range pool {
		out[i] = Scored{Candidate: c, Score: s.Score(c)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Composite > out[j].Score.Composite
	})
	return out
}

// Rank returns the best available candidate, or ErrNoCandidate.
func (s *DeterministicScorer) Rank(_ context.Context, _ RideContext, pool []Candidate) (*Decision, error) {
	ordered := s.Order(pool)
	best := -1
	for i, sc := range ordered {
		if !sc.Driver.Available {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		d := s.decision(ordered[best])
		d.AlternativeID = sc.ID()
		return d, nil
	}
	if best < 0 {
		return nil, ErrNoCandidate
	}
	return s.decision(ordered[best]), nil
}

func (s *DeterministicScorer) decision(sc Scored) *Decision {
	b := sc.Score
	return &Decision{
		DriverID:   sc.ID(),
		Confidence: clamp01(b.Composite / maxComposite),
		Reasoning: fmt.Sprintf("composite score %.2f of %.0f (distance %.2f km, rating %.1f, %d rides, freshness %.0f)",
			b.Composite, maxComposite, sc.DistanceKm, sc.Driver.Rating, sc.Driver.TotalRides, b.Freshness),
		KeyFactors: keyFactors(b),
		Strategy:   StrategyDeterministic,
	}
}

// keyFactors names the sub-scores by weighted contribution, largest first.
func keyFactors(b ScoreBreakdown) []string {
	factors := []struct {
		name  string
		value float64
	}{
		{"proximity", weightDistance * b.Distance},
		{"rating", weightRating * b.Rating},
		{"experience", weightExperience * b.Experience},
		{"location_freshness", weightFreshness * b.Freshness},
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].value > factors[j].value })
	out := make([]string, 0, len(factors))
	for _, f := range factors {
		if f.value > 0 {
			out = append(out, f.name)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
