package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/orchid-auth/internal/api/http"
	"github.com/spec-kit/orchid-auth/internal/api/http/handlers"
	"github.com/spec-kit/orchid-auth/internal/auth"
	"github.com/spec-kit/orchid-auth/internal/config"
	"github.com/spec-kit/orchid-auth/internal/domain"
	"github.com/spec-kit/orchid-auth/internal/events"
	"github.com/spec-kit/orchid-auth/internal/observability"
	"github.com/spec-kit/orchid-auth/internal/persistence"
	"github.com/spec-kit/orchid-auth/internal/repository"
	"github.com/spec-kit/orchid-auth/internal/repository/memory"
	"github.com/spec-kit/orchid-auth/internal/service"
	"github.com/spec-kit/orchid-auth/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		accounts repository.AccountRepository
		roles    repository.RoleRepository
	)
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		accounts = repository.NewAccountRepository(pg.Pool)
		roles = repository.NewRoleRepository(pg.Pool)
	} else {
		store := memory.NewStore()
		if err := store.SeedRoles(ctx, domain.DefaultRoleName, "ADMIN"); err != nil {
			logger.Fatal("failed to seed roles", zap.Error(err))
		}
		accounts = store.Accounts()
		roles = store.Roles()
	}

	var redis *persistence.Redis
	if ttl := cfg.Auth.PrincipalCacheTTL(); ttl > 0 {
		redis, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		accounts = repository.NewCachedAccounts(accounts, redis.Client, ttl, logger)
	}

	policy := auth.DefaultPolicy()
	if cfg.Auth.PolicyFile != "" {
		policy, err = auth.LoadPolicyFile(cfg.Auth.PolicyFile)
		if err != nil {
			logger.Fatal("failed to load route policy", zap.Error(err))
		}
	}
	gate, err := auth.NewGate(policy, logger)
	if err != nil {
		logger.Fatal("invalid route policy", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(dispatcher, logger)
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AccountRepo: accounts,
		RoleRepo:    roles,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	roleService := service.NewRoleService(roles, dispatcher, logger)
	authMiddleware := auth.NewAuthMiddleware(
		authService.TokenCodec(),
		auth.NewPrincipalResolver(accounts, cfg.Auth.PrincipalLookupTimeout()),
		logger,
		auth.WithActiveRecheck(cfg.Auth.RecheckActive),
		auth.WithRecorder(metrics),
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Roles:          handlers.NewRoleHandler(roleService),
		AuthMiddleware: authMiddleware,
		Gate:           gate,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	logger.Info("auth counters", zap.Any("metrics", metrics.Snapshot()))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
