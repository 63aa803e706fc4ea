package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/performance"
	"pmds/internal/domain/plans"
	"pmds/internal/domain/users"
	"pmds/internal/platform/config"
	cryptoutil "pmds/internal/platform/crypto"
	"pmds/internal/platform/db"
	"pmds/internal/platform/email"
	"pmds/internal/platform/jobs"
	"pmds/internal/platform/metrics"
	"pmds/internal/platform/realtime"
	"pmds/internal/platform/storage"
	"pmds/internal/transport/http/api"
	audithandler "pmds/internal/transport/http/handlers/audit"
	authhandler "pmds/internal/transport/http/handlers/auth"
	notificationshandler "pmds/internal/transport/http/handlers/notifications"
	performancehandler "pmds/internal/transport/http/handlers/performance"
	planshandler "pmds/internal/transport/http/handlers/plans"
	usershandler "pmds/internal/transport/http/handlers/users"
	"pmds/internal/transport/http/middleware"
	"pmds/migrations"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Hub     *realtime.Hub
	Metrics *metrics.Collector
}

// Run loads configuration, prepares the database and serves until SIGINT or SIGTERM.
func Run() error {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	app.Jobs.Start(ctx)
	go app.Hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("pmds server listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// New connects to the database, applies migrations and seed data when
// enabled, and builds the services and router. Background workers are not
// started; Run does that.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrationSource(cfg)); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	evidence, err := storage.New(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("evidence storage: %w", err)
	}

	collector := metrics.New()
	hub := realtime.NewHub(cfg.BaseURL)
	mailer := email.New(cfg)

	authSvc := auth.NewService(auth.NewStore(pool), crypto, cfg.JWTSecret)
	usersSvc := users.NewService(users.NewStore(pool))
	auditSvc := audit.New(pool)
	notificationsSvc := notifications.New(notifications.NewStore(pool), mailer, hub, cfg.EmailFrom)

	plansSvc := plans.NewService(plans.NewStore(pool), usersSvc)
	plansSvc.Notify = notificationsSvc

	performanceSvc := performance.NewService(performance.NewStore(pool), usersSvc)
	performanceSvc.Notify = notificationsSvc
	performanceSvc.Audit = auditSvc
	performanceSvc.Metrics = collector
	performanceSvc.Plans = plansSvc
	performanceSvc.Evidence = evidence

	notificationsSvc.AddReminderSource(performanceSvc)
	notificationsSvc.AddReminderSource(plansSvc)

	idempotency := middleware.NewIdempotencyStore(pool)
	jobsSvc := jobs.New(pool, cfg, notificationsSvc)
	jobsSvc.Keys = idempotency
	notificationsSvc.Outbox = jobsSvc

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	security := middleware.SecurityOptions{HSTS: cfg.Environment == "production"}
	if origin := middleware.WebsocketOrigin(cfg.BaseURL); origin != "" {
		security.ConnectOrigins = append(security.ConnectOrigins, origin)
	}
	router.Use(middleware.SecureHeaders(security))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, authSvc))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authHandler := authhandler.NewHandler(authSvc, cfg.JWTSecret, usersSvc, auditSvc, notificationsSvc, cfg.EmailFrom, cfg.BaseURL)
		authHandler.RegisterRoutes(r)

		usersHandler := usershandler.NewHandler(usersSvc, authSvc, auditSvc)
		usersHandler.RegisterRoutes(r)

		performanceHandler := performancehandler.NewHandler(performanceSvc, authSvc, idempotency, cfg.MaxUploadBytes)
		performanceHandler.RegisterRoutes(r)

		plansHandler := planshandler.NewHandler(plansSvc, authSvc, auditSvc)
		plansHandler.RegisterRoutes(r)

		notificationsHandler := notificationshandler.NewHandler(notificationsSvc, authSvc, auditSvc, hub, cfg.JWTSecret, authSvc)
		notificationsHandler.Reminders = jobsSvc
		notificationsHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditSvc, authSvc)
		auditHandler.RegisterRoutes(r)
	})

	router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})

	return &App{
		Config:  cfg,
		DB:      pool,
		Router:  router,
		Jobs:    jobsSvc,
		Hub:     hub,
		Metrics: collector,
	}, nil
}

func (a *App) Close() {
	a.DB.Close()
}

// migrationSource prefers MIGRATIONS_DIR when it exists on disk and falls
// back to the schema compiled into the binary.
func migrationSource(cfg config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		if info, err := os.Stat(cfg.MigrationsDir); err == nil && info.IsDir() {
			return os.DirFS(cfg.MigrationsDir)
		}
	}
	return migrations.Files
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticPath, r.URL.Path)
	_, err := os.Stat(path)
	if err == nil {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}

	if os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
