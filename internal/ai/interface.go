package ai

import (
	"context"
)

// RankingProvider defines the contract for model-backed ranking and analysis.
// Implementations return raw model output errors; callers own the fallback.
type RankingProvider interface {
	// RankDrivers asks the model to pick one driver from the supplied profiles.
	RankDrivers(ctx context.Context, req DriverRankingRequest) (*RankingDecision, error)

	// AnalyzeMatching asks the model for qualitative insights on recent matches.
	AnalyzeMatching(ctx context.Context, stats MatchingStats) (*MatchingInsights, error)
}
