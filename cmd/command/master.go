package command

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gitlab.com/arbfn-2025.net/internal/adapter/crypto"
	"gitlab.com/arbfn-2025.net/internal/adapter/postgres/sessionrepository"
	redisbarrier "gitlab.com/arbfn-2025.net/internal/adapter/redis/barrier"
	"gitlab.com/arbfn-2025.net/internal/adapter/redis/workerport"
	"gitlab.com/arbfn-2025.net/internal/config"
	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
	auth2 "gitlab.com/arbfn-2025.net/internal/core/services/auth"
	"gitlab.com/arbfn-2025.net/internal/core/services/dispatch"
	"gitlab.com/arbfn-2025.net/internal/core/services/monitor"
	"gitlab.com/arbfn-2025.net/internal/core/services/termination"
	"gitlab.com/arbfn-2025.net/internal/core/services/worker"
	"gitlab.com/arbfn-2025.net/internal/domain"
	logger2 "gitlab.com/arbfn-2025.net/internal/global/logger"
	http2 "gitlab.com/arbfn-2025.net/internal/http"
	"gitlab.com/arbfn-2025.net/internal/master"
	"gitlab.com/arbfn-2025.net/internal/reportengine"
	"gitlab.com/arbfn-2025.net/internal/tcp"
)

// NewMasterCommand serves workers until the last one deregisters
func NewMasterCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "master",
		Short: "Run the master service loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := runMaster(ctx, root.cfg, logger2.Logger)
			if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
				logger2.Info("Master interrupted")
				return nil
			}
			return err
		},
	}
}

func runMaster(ctx context.Context, cfg *config.AppConfig, logger primary.Logger) error {
	runID := uuid.New()
	m := cfg.MasterSvcCfg
	logger.Info("Starting arbfn master", "run", runID, "policy", m.Policy, "correction", m.Correction, "mode", m.Mode)

	// SECONDARY PORTS
	var (
		redisClient *redis.Client
		roster      secondary.RosterRepository
		sessions    secondary.SessionRepository
	)
	reportOpts := []reportengine.Option{
		reportengine.WithInterval(m.StatsInterval),
		reportengine.WithBuffer(m.EventBuffer),
	}

	if cfg.RedisConfig.Enabled {
		client, err := setupRedis(ctx, cfg.RedisConfig)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		repo := workerport.NewWorkerRepository(client, logger)
		roster = repo
		reportOpts = append(reportOpts, reportengine.WithRoster(repo))
	}

	if cfg.PostgresConfig.Enabled {
		db, err := setupDatabase(ctx, cfg.PostgresConfig)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := sessionrepository.NewSessionRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		sessions = repo
		reportOpts = append(reportOpts, reportengine.WithSessions(repo))
	}

	barrier, err := setupBarrier(ctx, cfg.Barrier, redisClient, logger)
	if err != nil {
		return err
	}

	// services
	registry, err := worker.NewWorkerRegistry(m.Policy, logger)
	if err != nil {
		return err
	}
	correction, err := dispatch.NewCorrection(m.Correction, m.K)
	if err != nil {
		return err
	}
	var dispatchOpts []dispatch.Option
	if m.Mode == domain.ModeBulk {
		dispatchOpts = append(dispatchOpts, dispatch.WithBulk(nil))
	}
	dispatcher := dispatch.NewDispatcher(correction, registry, logger, dispatchOpts...)
	coordinator := termination.NewCoordinator(barrier, logger,
		termination.WithBarrierTimeout(cfg.Barrier.Timeout))

	reporter := reportengine.NewReportEngine(runID, m.Policy, logger, reportOpts...)
	reporter.Start(ctx)
	defer reporter.Stop()

	//server
	transport := tcp.NewTCPTransport(logger,
		tcp.WithAddress(cfg.Transport.Listen),
		tcp.WithPartition(cfg.Transport.Partition),
		tcp.WithHandshakeTimeout(cfg.Transport.HandshakeTimeout))
	if err := transport.Start(); err != nil {
		return err
	}
	defer transport.Close()

	server := master.NewServer(transport, registry, dispatcher, coordinator, logger,
		master.WithFailurePolicy(m.Failure), master.WithReporter(reporter))

	g, gctx := errgroup.WithContext(ctx)
	httpCtx, stopHTTP := context.WithCancel(gctx)
	defer stopHTTP()

	g.Go(func() error {
		defer stopHTTP()
		return server.Serve(gctx)
	})

	if cfg.HTTPConfig.Enabled {
		jwtProvider := crypto.NewJWTService(cfg.JwtConfig)
		monitorService := monitor.NewMonitorService(runID, roster, sessions, reporter, server)
		serviceProvider := http2.NewServiceProvider(monitorService,
			auth2.NewLocalAuthService(cfg.JwtConfig, jwtProvider, logger), jwtProvider)
		httpServer := http2.NewServer(cfg.HTTPConfig, *serviceProvider, logger)
		if err := httpServer.Init(); err != nil {
			return err
		}
		g.Go(func() error {
			return httpServer.Serve(httpCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("successfully shutdown master", "run", runID)
	return nil
}

// setupRedis connects to Redis and checks the connection
func setupRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Url,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Url, err)
	}
	return client, nil
}

// setupDatabase sets up the PostgreSQL connection
func setupDatabase(ctx context.Context, cfg *config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Url)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

func setupBarrier(ctx context.Context, cfg *config.BarrierConfig, client *redis.Client, logger primary.Logger) (secondary.Barrier, error) {
	switch cfg.Kind {
	case config.BarrierLocal:
		return termination.NewLocalBarrier(cfg.Participants)
	case config.BarrierRedis:
		b, err := redisbarrier.NewRedisBarrier(client, cfg.Name, cfg.Participants, cfg.Timeout, logger)
		if err != nil {
			return nil, err
		}
		// no worker can be at the exit barrier before the master serves
		if err := b.Reset(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset barrier %s: %w", cfg.Name, err)
		}
		return b, nil
	default:
		return nil, nil
	}
}
