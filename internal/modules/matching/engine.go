// README: Matching engine selects a driver through the configured ranker.
package matching

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"rideshare/internal/ai"
	"rideshare/internal/observability"
)

// DriverRanker picks one driver from a candidate pool.
type DriverRanker interface {
	Rank(ctx context.Context, ride RideContext, pool []Candidate) (*Decision, error)
}

// NewRanker returns the delegated ranker when a provider is configured and
// the deterministic scorer otherwise.
func NewRanker(provider ai.RankingProvider, scorer *DeterministicScorer, timeout time.Duration, log *zap.Logger) DriverRanker {
	if provider == nil {
		return scorer
	}
	return NewDelegatedRanker(provider, scorer, timeout, log)
}

// Engine is stateless and safe for concurrent use.
type Engine struct {
	ranker DriverRanker
	scorer *DeterministicScorer
	log    *zap.Logger
}

func NewEngine(ranker DriverRanker, scorer *DeterministicScorer, log *zap.Logger) *Engine {
	return &Engine{ranker: ranker, scorer: scorer, log: log}
}

// SelectDriver returns the chosen driver, or false when the pool has no
// available candidate.
func (e *Engine) SelectDriver(ctx context.Context, ride RideContext, pool []Candidate) (*Decision, bool) {
	if len(pool) == 0 {
		return nil, false
	}
	start := time.Now()
	d, err := e.ranker.Rank(ctx, ride, pool)
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, ErrNoCandidate) {
			e.log.Error("ranking failed", zap.String("ride_id", string(ride.RideID)), zap.Error(err))
		}
		return nil, false
	}
	observability.MatchesTotal.WithLabelValues(string(d.Strategy)).Inc()
	e.log.Info("driver selected",
		zap.String("ride_id", string(ride.RideID)),
		zap.String("driver_id", string(d.DriverID)),
		zap.String("strategy", string(d.Strategy)),
		zap.Float64("confidence", d.Confidence),
		zap.Int("candidates", len(pool)),
	)
	return d, true
}

// Order is the deterministic ranking of the pool, best first.
func (e *Engine) Order(pool []Candidate) []Scored {
	return e.scorer.Order(pool)
}
