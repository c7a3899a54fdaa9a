package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbscan/internal/activeset"
	s3blob "github.com/alanyoungcy/arbscan/internal/blob/s3"
	"github.com/alanyoungcy/arbscan/internal/cache/redis"
	"github.com/alanyoungcy/arbscan/internal/config"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/engine"
	"github.com/alanyoungcy/arbscan/internal/market"
	"github.com/alanyoungcy/arbscan/internal/notify"
	"github.com/alanyoungcy/arbscan/internal/pipeline"
	"github.com/alanyoungcy/arbscan/internal/scanner"
	"github.com/alanyoungcy/arbscan/internal/service"
	"github.com/alanyoungcy/arbscan/internal/store/postgres"
)

// Dependencies bundles everything the operating modes need. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Provider     *market.CachedProvider
	ActiveSet    *activeset.Manager
	Orchestrator *pipeline.Orchestrator
	Archiver     *pipeline.Archiver // nil unless S3 archival is enabled
	Reporter     *service.Reporter
	Notifier     *notify.Notifier
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Market data provider ---
	venueNames := make([]string, len(cfg.Market.Venues))
	synthVenues := make([]market.SyntheticVenue, len(cfg.Market.Venues))
	for i, v := range cfg.Market.Venues {
		venueNames[i] = v.Name
		synthVenues[i] = market.SyntheticVenue{
			Name: v.Name,
			Kind: domain.VenueKind(v.Kind),
			// Spread the venues slightly apart so cross-venue gaps exist.
			Skew:    float64(i) * 0.002,
			FeeRate: 0.001 + float64(i)*0.0005,
		}
	}
	synthetic := market.NewSynthetic(synthVenues, cfg.Market.Seed)

	// --- Redis: signal bus and the shared call-budget limiter ---
	var (
		bus     domain.SignalBus
		limiter domain.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		bus = redis.NewSignalBus(redisClient, int64(cfg.Redis.StreamMaxLen))
		if cfg.RateLimit.Enabled {
			limiter = redis.NewRateLimiter(redisClient)
		}
	}

	cached := market.NewCached(synthetic, limiter, market.CachedConfig{
		QuoteTTL:      cfg.Cache.QuoteTTL.Duration,
		MetadataTTL:   cfg.Cache.MetadataTTL.Duration,
		CallsPerVenue: cfg.RateLimit.CallsPerVenue,
		CallWindow:    cfg.RateLimit.Window.Duration,
	}, logger)
	deps.Provider = cached

	var universe domain.UniverseProvider = synthetic
	if len(cfg.Universe.Symbols) > 0 {
		universe = market.NewStaticUniverse(cfg.Universe.Symbols)
	}
	eligibility := market.NewStaticEligibility(cfg.Market.BlockedTransfers)

	// --- Active set ---
	active := activeset.New(activeset.Config{
		MaxSize:           cfg.ActiveSet.MaxSize,
		EntryTTL:          cfg.ActiveSet.EntryTTL.Duration,
		ReinstateMinCount: cfg.ActiveSet.ReinstateMinCount,
		ReinstateWindow:   cfg.ActiveSet.ReinstateWindow.Duration,
	}, logger)
	deps.ActiveSet = active

	// --- PostgreSQL ---
	var (
		oppStore  domain.OpportunityStore
		statStore domain.HistoricalStatStore
	)
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		oppStore = postgres.NewOpportunityStore(pool)
		statStore = postgres.NewHistoricalStatStore(pool)

		// Seed the in-memory history so reinstatement survives restarts.
		since := time.Now().Add(-cfg.ActiveSet.ReinstateWindow.Duration)
		stats, err := statStore.ListSince(ctx, since)
		if err != nil {
			logger.Warn("historical stat seed failed", slog.String("error", err.Error()))
		} else if len(stats) > 0 {
			active.SeedHistory(stats)
			logger.Info("seeded symbol history", slog.Int("symbols", len(stats)))
		}
	}

	// --- S3 archival ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = pipeline.NewArchiver(
			oppStore,
			s3blob.NewWriter(s3Client),
			cfg.S3.RetentionDays,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.Console {
		senders = append(senders, notify.NewConsoleSender(logger))
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Scanner, engines, reporter, orchestrator ---
	sc := scanner.New(cached, scanner.Config{
		SpikeThreshold: cfg.Scanner.SpikeThreshold,
		MinVolume:      cfg.Scanner.MinVolume,
		BatchSize:      cfg.Scanner.BatchSize,
		BatchDelay:     cfg.Scanner.BatchDelay.Duration,
		WindowSize:     cfg.Scanner.WindowSize,
		Venues:         venueNames,
		QuoteCurrency:  cfg.Engine.FundingCurrency,
	}, logger)

	pairwise := engine.NewPairwise(cached, eligibility, engine.PairwiseConfig{
		TradeAmount:    cfg.Engine.TradeAmount,
		ThresholdPct:   cfg.Engine.ProfitThresholdPct,
		GasFeeEstimate: cfg.Engine.GasFeeEstimate,
		Venues:         venueNames,
		QuoteCurrency:  cfg.Engine.FundingCurrency,
	}, logger)

	cyclic := engine.NewCyclic(cached, engine.CyclicConfig{
		TradeAmount:     cfg.Engine.TradeAmount,
		ThresholdPct:    cfg.Engine.ProfitThresholdPct,
		FundingCurrency: cfg.Engine.FundingCurrency,
		Intermediates:   cfg.Engine.Intermediates,
		Venues:          venueNames,
	}, logger)

	reporter := service.NewReporter(active, oppStore, statStore, bus, deps.Notifier, logger)
	deps.Reporter = reporter

	deps.Orchestrator = pipeline.NewOrchestrator(
		universe, sc, active, pairwise, cyclic, reporter, cached,
		pipeline.Config{
			DiscoveryInterval:  cfg.Schedule.DiscoveryInterval.Duration,
			EvaluationInterval: cfg.Schedule.EvaluationInterval.Duration,
			SweepInterval:      cfg.Schedule.SweepInterval.Duration,
			CyclicHeadSize:     cfg.Engine.CyclicHeadSize,
		},
		logger,
	)

	return deps, cleanup, nil
}
