// Command bazaar runs the marketplace: HTTP storefront, admin back
// office, and the background job workers, all in one process.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/bazaarlabs/bazaar/internal/auth"
	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/handlers"
	"github.com/bazaarlabs/bazaar/internal/jobs"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/internal/server"
	"github.com/bazaarlabs/bazaar/middlewares"
	"github.com/bazaarlabs/bazaar/pkg/cache"
	"github.com/bazaarlabs/bazaar/pkg/cookie"
	"github.com/bazaarlabs/bazaar/pkg/db"
	"github.com/bazaarlabs/bazaar/pkg/health"
	"github.com/bazaarlabs/bazaar/pkg/job"
	"github.com/bazaarlabs/bazaar/pkg/logger"
	"github.com/bazaarlabs/bazaar/pkg/mailer"
	"github.com/bazaarlabs/bazaar/pkg/mailer/resend"
	"github.com/bazaarlabs/bazaar/pkg/redis"
	"github.com/bazaarlabs/bazaar/pkg/session"
	"github.com/bazaarlabs/bazaar/pkg/storage"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logger, middlewares.RequestIDExtractor())
	slog.SetDefault(log)

	// Database and migrations.
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx, pool, repository.Migrations, cfg.DB.MigrationsTable, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	queries := repository.New(pool)

	shutdownHooks := []func(context.Context) error{db.Shutdown(pool)}
	readiness := health.Checks{
		"database": func(ctx context.Context) error { return pool.Ping(ctx) },
	}

	// Sessions and the settings cache ride Redis when configured, memory
	// otherwise.
	var sessionStore session.Store
	var settingsCache cache.Cache[map[string]string]
	if cfg.Redis.URL != "" {
		client, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		sessionStore = session.NewRedisStore(client)
		settingsCache = cache.NewRedis[map[string]string](client)
		shutdownHooks = append(shutdownHooks, redis.Shutdown(client))
		readiness["redis"] = redis.Healthcheck(client)
	} else {
		sessionStore = session.NewMemoryStore()
		settingsCache = cache.NewMemory[map[string]string]()
	}

	sessions := session.NewManager(sessionStore, session.WithTTL(cfg.SessionTTL))
	cookies, err := cookie.New(cookie.WithSecret(cfg.CookieSecret))
	if err != nil {
		return fmt.Errorf("cookie manager: %w", err)
	}

	identity := auth.New(queries, sessions, auth.WithLogger(log))

	// Mail and background jobs.
	templates, err := fs.Sub(jobs.Templates, "templates")
	if err != nil {
		return fmt.Errorf("mail templates: %w", err)
	}
	mail := mailer.New(
		resend.New(cfg.Resend),
		mailer.NewRenderer(templates, mailer.RendererConfig{}),
		cfg.Mailer,
	)

	jobManager, err := job.NewManager(pool,
		job.WithLogger(log),
		job.WithTask[jobs.PasswordResetPayload](jobs.NewPasswordResetMail(mail, cfg.BaseURL)),
		job.WithScheduledTask(jobs.NewLoginAttemptPruner(queries, cfg.LoginAttemptRetention, log)),
		job.WithScheduledTask(jobs.NewSessionSweeper(sessionStore)),
	)
	if err != nil {
		return fmt.Errorf("job manager: %w", err)
	}
	if err := jobManager.Start(ctx); err != nil {
		return fmt.Errorf("start jobs: %w", err)
	}
	shutdownHooks = append(shutdownHooks, jobManager.Shutdown())
	readiness["jobs"] = jobManager.Healthcheck()

	// Product image storage.
	files, err := storage.New(storage.Config{
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
		PathStyle: cfg.Storage.PathStyle,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	// Route table. Registration order is priority order: literal segments
	// like /product/review must precede /product/{id}.
	router := dispatch.NewRouter(identity, log)
	router.Mount(
		handlers.NewMarketplace(queries, identity),
		handlers.NewProducts(queries, identity),
		handlers.NewCarts(queries, pool, identity),
		handlers.NewAccounts(queries, identity, jobManager),
		handlers.NewVendors(queries, identity, files),
		handlers.NewAdmin(queries, identity, settingsCache, files),
		handlers.NewAuditLog(queries, identity),
		handlers.NewAPI(queries),
	)

	chain := dispatch.NewChain(
		middlewares.RequestID(),
		middlewares.Recover(),
		middlewares.Timeout(middlewares.DefaultTimeout),
		middlewares.Session(sessions),
		middlewares.CSRF(),
		middlewares.Audit(queries, identity),
	)

	return server.Run(server.RunConfig{
		Handler:         server.New(router, chain, sessions, cookies, log),
		Address:         cfg.Address,
		Logger:          log,
		ReadinessChecks: readiness,
		ShutdownHooks:   shutdownHooks,
		BaseCtx:         ctx,
	})
}
