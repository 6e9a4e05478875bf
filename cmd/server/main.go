// Command server runs the vitae attestation registry: an HTTP API over an
// append-mostly store of life-and-work claims, with endorsements, account
// resumes, and a root-administered reward program.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"vitae/internal/auth"
	"vitae/internal/claims/cache"
	claimshandler "vitae/internal/claims/handler"
	claimsmetrics "vitae/internal/claims/metrics"
	claimsservice "vitae/internal/claims/service"
	"vitae/internal/events"
	eventskafka "vitae/internal/events/kafka"
	eventspg "vitae/internal/events/postgres"
	httpapi "vitae/internal/http"
	"vitae/internal/platform/config"
	"vitae/internal/platform/httpserver"
	"vitae/internal/platform/logger"
	"vitae/internal/platform/metrics"
	platformredis "vitae/internal/platform/redis"
	"vitae/internal/policy"
	"vitae/internal/reward/bank"
	rewardhandler "vitae/internal/reward/handler"
	rewardmetrics "vitae/internal/reward/metrics"
	rewardservice "vitae/internal/reward/service"
	"vitae/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("vitae exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Log.Level)
	slog.SetDefault(log)

	store, db, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	// The bank shares the registry's database handle under postgres so
	// payouts commit with the claims that trigger them.
	var funds bank.Bank
	if db != nil {
		funds = bank.NewPostgres(db)
	} else {
		funds = bank.NewMemory()
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := buildPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	rewards, err := rewardservice.New(store, funds, cfg.Reward.TreasuryAccount,
		rewardservice.WithLogger(log),
		rewardservice.WithMetrics(rewardmetrics.New()),
	)
	if err != nil {
		return fmt.Errorf("build reward service: %w", err)
	}

	claimCache := buildCache(redisClient)
	claimMetrics := claimsmetrics.New()

	claimsSvc, err := claimsservice.New(store, rewards, publisher,
		claimsservice.WithCache(claimCache),
		claimsservice.WithLogger(log),
		claimsservice.WithMetrics(claimMetrics),
	)
	if err != nil {
		return fmt.Errorf("build claims service: %w", err)
	}

	queries, err := claimsservice.NewQueries(store,
		claimsservice.WithQueryCache(claimCache),
		claimsservice.WithQueryLogger(log),
		claimsservice.WithQueryMetrics(claimMetrics),
	)
	if err != nil {
		return fmt.Errorf("build claim queries: %w", err)
	}

	tokens := auth.NewTokenService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	claimsH := claimshandler.New(claimsSvc, queries, log)
	rewardH := rewardhandler.New(rewards, log)

	checks := map[string]httpapi.HealthChecker{"store": store}
	if redisClient != nil {
		checks["redis"] = redisClient
	}

	router, err := httpapi.NewRouter(httpapi.Config{
		Logger:     log,
		Validator:  auth.NewMiddlewareAdapter(tokens),
		Metrics:    metrics.New(),
		OpsKeyHash: cfg.Server.OpsKeyHash,
		Timeout:    cfg.Server.RequestTimeout,
		Checks:     checks,
		Protected:  []httpapi.ProtectedRegistrar{claimsH, rewardH},
		Public:     []httpapi.PublicRegistrar{claimsH},
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("vitae listening",
			"addr", cfg.Server.Addr,
			"backend", cfg.Storage.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore selects the registry backend. For postgres it also returns the
// shared *sql.DB so the bank can ride the registry's transactions.
func openStore(ctx context.Context, cfg config.Storage) (storage.Store, *sql.DB, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil, nil

	case config.BackendLevelDB:
		store, err := storage.OpenLevel(cfg.LevelDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open leveldb store: %w", err)
		}
		return store, nil, nil

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := storage.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// buildCache layers the in-process cache over Redis when configured.
func buildCache(redisClient *platformredis.Client) cache.Cache {
	local := cache.NewMemoryCache(policy.ClaimCacheTTL, 2*policy.ClaimCacheTTL)
	if redisClient == nil {
		return local
	}
	return cache.NewLayered(local, cache.NewRedisCache(redisClient.Client))
}

// buildPublisher attaches the configured event sinks: Kafka when brokers
// are set, and the Postgres archive when the registry runs on Postgres.
func buildPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (*events.Publisher, error) {
	opts := []events.Option{events.WithLogger(log)}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := eventskafka.NewSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		opts = append(opts, events.WithSink(sink))
		log.Info("kafka event sink attached", "topic", cfg.Kafka.Topic)
	}

	if cfg.Storage.Backend == config.BackendPostgres {
		pool, err := pgxpool.New(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open archive pool: %w", err)
		}
		archive := eventspg.NewArchive(pool)
		if err := archive.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("prepare event archive: %w", err)
		}
		opts = append(opts, events.WithSink(archive))
	}

	return events.NewPublisher(events.NewLog(), opts...), nil
}
