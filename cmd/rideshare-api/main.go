// README: Entry point; loads config, wires services, starts HTTP server and the pending-ride assigner.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rideshare/internal/ai"
	"rideshare/internal/config"
	"rideshare/internal/events"
	httptransport "rideshare/internal/http"
	"rideshare/internal/infra"
	"rideshare/internal/logging"
	"rideshare/internal/maps"
	"rideshare/internal/modules/analytics"
	"rideshare/internal/modules/location"
	"rideshare/internal/modules/matching"
	"rideshare/internal/modules/payment"
	"rideshare/internal/modules/pricing"
	"rideshare/internal/modules/ride"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Fatal("redis init", zap.Error(err))
	}
	var geoIndex location.GeoIndex
	if redisClient != nil {
		defer redisClient.Close()
		geoIndex = location.NewRedisGeoIndex(redisClient, cfg.Redis.GeoKey)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if w := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic); w != nil {
		kp := events.NewKafkaPublisher(w)
		defer kp.Close()
		publisher = kp
	}

	var (
		distance maps.DistanceProvider
		geocoder maps.Geocoder
	)
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
		distance, geocoder = routeSvc, routeSvc
	} else {
		logger.Info("maps api key not set, using straight-line estimates")
	}
	routes := maps.NewResilientProvider(distance, geocoder, logger)
	places, err := maps.NewPlacesService(cfg.Maps.APIKey, logger)
	if err != nil {
		logger.Fatal("places init", zap.Error(err))
	}

	var (
		rankingProvider ai.RankingProvider
		analyzer        analytics.Analyzer
	)
	if cfg.AI.GeminiKey != "" {
		gemini, err := ai.NewGeminiProvider(ctx, cfg.AI.GeminiKey, cfg.AI.Model)
		if err != nil {
			logger.Fatal("gemini init", zap.Error(err))
		}
		defer gemini.Close()
		rankingProvider, analyzer = gemini, gemini
	} else {
		logger.Info("gemini key not set, ranking with the deterministic scorer")
	}

	scorer := matching.NewDeterministicScorer(nil)
	ranker := matching.NewRanker(rankingProvider, scorer, cfg.Matching.RankerTimeout, logger)
	engine := matching.NewEngine(ranker, scorer, logger)

	locationSvc := location.NewService(location.NewStore(dbPool), geoIndex, publisher, logger)
	pricingSvc := pricing.NewService(pricing.RateFromConfig(cfg.Pricing))

	rideSvc := ride.NewService(ride.NewStore(dbPool), locationSvc, engine, pricingSvc, routes, publisher, logger, ride.Options{
		RadiusKm:          cfg.Matching.RadiusKm,
		MaxCommitAttempts: cfg.Matching.MaxCommitAttempts,
		PendingBatch:      cfg.Matching.PendingBatch,
		Tick:              time.Duration(cfg.Matching.TickSeconds) * time.Second,
	})
	paymentSvc := payment.NewService(payment.NewStore(dbPool), publisher, logger)
	analyticsSvc := analytics.NewService(analytics.NewStore(dbPool), analyzer, logger)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Rides:     rideSvc,
		Payments:  paymentSvc,
		Locations: locationSvc,
		Pricing:   pricingSvc,
		Routes:    routes,
		Places:    places,
		Analytics: analyticsSvc,
		RadiusKm:  cfg.Matching.RadiusKm,
		Log:       logger,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router, logger)

	// Fill the index before matching starts; until then searches scan Postgres.
	if n, err := locationSvc.RebuildIndex(ctx); err != nil {
		logger.Warn("initial geo index build failed", zap.Error(err))
	} else if geoIndex != nil {
		logger.Info("geo index built", zap.Int("drivers", n))
	}
	go locationSvc.RunIndexRebuilder(ctx, time.Duration(cfg.Redis.RebuildSeconds)*time.Second)
	go rideSvc.RunPendingAssigner(ctx)

	if err := server.Run(ctx); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
