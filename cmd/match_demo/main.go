package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"rideshare/internal/ai"
	"rideshare/internal/config"
	"rideshare/internal/geo"
	"rideshare/internal/logging"
	"rideshare/internal/modules/location"
	"rideshare/internal/modules/matching"
	"rideshare/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	var provider ai.RankingProvider
	if cfg.AI.GeminiKey != "" {
		gemini, err := ai.NewGeminiProvider(ctx, cfg.AI.GeminiKey, cfg.AI.Model)
		if err != nil {
			log.Fatalf("Failed to initialize AI provider: %v", err)
		}
		defer gemini.Close()
		provider = gemini
	} else {
		fmt.Println("No Gemini key configured, ranking with the deterministic scorer")
	}

	scorer := matching.NewDeterministicScorer(nil)
	engine := matching.NewEngine(matching.NewRanker(provider, scorer, cfg.Matching.RankerTimeout, logger), scorer, logger)

	// Simulated request at Taipei Main Station.
	pickup := types.Point{Lat: 25.0478, Lng: 121.5170}
	ride := matching.RideContext{
		RideID:         "demo-ride",
		Pickup:         &pickup,
		PickupAddress:  "Taipei Main Station",
		DropoffAddress: "Breeze Xinyi",
		RequestedAt:    time.Now(),
		Notes:          "two suitcases",
	}

	fresh := time.Now().Add(-2 * time.Minute)
	stale := time.Now().Add(-40 * time.Minute)
	pool := []matching.Candidate{
		candidate("d-near", "Near but new", types.Point{Lat: 25.0490, Lng: 121.5180}, 4.2, 12, fresh, pickup),
		candidate("d-veteran", "Veteran", types.Point{Lat: 25.0600, Lng: 121.5300}, 4.9, 1800, fresh, pickup),
		candidate("d-stale", "Stale position", types.Point{Lat: 25.0480, Lng: 121.5172}, 5.0, 300, stale, pickup),
	}

	fmt.Println("Deterministic order:")
	for _, s := range engine.Order(pool) {
		fmt.Printf("  %-10s %.2f km  composite %.2f\n", s.ID(), s.DistanceKm, s.Score.Composite)
	}

	decision, ok := engine.SelectDriver(ctx, ride, pool)
	if !ok {
		log.Fatal("no driver selected")
	}
	fmt.Printf("Selected: %s (%s, confidence %.2f)\n", decision.DriverID, decision.Strategy, decision.Confidence)
	fmt.Printf("Reasoning: %s\n", decision.Reasoning)
	if decision.AlternativeID != "" {
		fmt.Printf("Alternative: %s\n", decision.AlternativeID)
	}
}

func candidate(id, name string, pos types.Point, rating float64, total int, updated time.Time, pickup types.Point) matching.Candidate {
	return matching.Candidate{
		Driver: location.Driver{
			ID:                types.ID(id),
			Role:              location.RoleDriver,
			Name:              name,
			Position:          &pos,
			Available:         true,
			Rating:            rating,
			TotalRides:        total,
			LocationUpdatedAt: &updated,
		},
		DistanceKm: geo.Round2(geo.HaversineKm(pickup.Lat, pickup.Lng, pos.Lat, pos.Lng)),
	}
}
