package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	ghandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HammerMeetNail/campussafe/internal/config"
	"github.com/HammerMeetNail/campussafe/internal/database"
	"github.com/HammerMeetNail/campussafe/internal/handlers"
	"github.com/HammerMeetNail/campussafe/internal/logging"
	"github.com/HammerMeetNail/campussafe/internal/metrics"
	"github.com/HammerMeetNail/campussafe/internal/middleware"
	"github.com/HammerMeetNail/campussafe/internal/notify"
	"github.com/HammerMeetNail/campussafe/internal/realtime"
	"github.com/HammerMeetNail/campussafe/internal/services"
	"github.com/HammerMeetNail/campussafe/internal/storage"
)

const notificationCleanupInterval = 24 * time.Hour

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.SetLevel(cfg.Server.LogLevel)
	logging.SetDefaultLevel(cfg.Server.LogLevel)

	logger.Info("Starting CampusSafe server...", map[string]interface{}{"env": cfg.Server.Environment})
	metrics.Register()

	// Background work stops when the process is asked to exit.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), cfg.Database.MigrationsPath)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	migrator.SetLogger(logger)
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	if err := errors.Join(db.RegisterMetrics(prometheus.DefaultRegisterer), redisDB.RegisterMetrics(prometheus.DefaultRegisterer)); err != nil {
		return fmt.Errorf("registering pool metrics: %w", err)
	}

	photoStore, closeStore, err := newPhotoStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	pushProvider, err := notify.NewPushProvider(ctx, &cfg.Push)
	if err != nil {
		return fmt.Errorf("creating push provider: %w", err)
	}
	emailProvider := notify.NewEmailProvider(&cfg.Email)

	tipService, err := services.LoadTipService(cfg.Content.TipsPath)
	if err != nil {
		return fmt.Errorf("loading safety tips: %w", err)
	}

	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	authService := services.NewAuthService(dbAdapter, redisAdapter)
	friendService := services.NewFriendService(dbAdapter)
	inviteService := services.NewFriendInviteService(dbAdapter)
	blockService := services.NewBlockService(dbAdapter)
	locationService := services.NewLocationService(dbAdapter, friendService, redisAdapter)
	incidentService := services.NewIncidentService(dbAdapter, photoStore)
	contactService := services.NewContactService(dbAdapter)
	notificationService := services.NewNotificationService(dbAdapter, emailProvider, pushProvider, cfg.Email.BaseURL)
	notificationService.SetAsyncContext(ctx)
	friendService.SetNotifier(notificationService)
	inviteService.SetNotifier(notificationService)

	hub := realtime.NewHub(locationService, friendService, realtime.Options{
		Debounce:     cfg.Realtime.Debounce,
		WriteTimeout: cfg.Realtime.WriteTimeout,
		PingInterval: cfg.Realtime.PingInterval,
		CheckOrigin:  originChecker(cfg.Server.AllowedOrigins),
	})
	go func() {
		if err := hub.Run(ctx, realtime.NewRedisSubscriber(redisDB.Client)); err != nil {
			logger.Error("Realtime hub stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
	go cleanupNotifications(ctx, logger, notificationService)

	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(userService, authService, cfg.Server.Secure)
	friendHandler := handlers.NewFriendHandler(friendService)
	inviteHandler := handlers.NewFriendInviteHandler(inviteService)
	blockHandler := handlers.NewBlockHandler(blockService)
	locationHandler := handlers.NewLocationHandler(locationService, hub)
	incidentHandler := handlers.NewIncidentHandler(incidentService)
	contactHandler := handlers.NewContactHandler(contactService)
	tipHandler := handlers.NewTipHandler(tipService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.Server.Secure, "/api/auth/login", "/api/auth/register")
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	cacheControl := middleware.NewCacheControl()
	compress := middleware.NewCompress()
	requestLogger := middleware.NewRequestLogger(logger)

	counter := middleware.NewRedisCounter(redisDB.Client)
	apiLimiter := middleware.NewRateLimiter(counter, cfg.RateLimit.Requests, cfg.RateLimit.Window, "ratelimit:api:", middleware.UserOrIPKey)
	authLimiter := middleware.NewRateLimiter(counter, cfg.RateLimit.AuthRequests, cfg.RateLimit.Window, "ratelimit:auth:", middleware.IPKey)

	protected := func(fn http.HandlerFunc) http.Handler {
		return authMiddleware.RequireAuth(apiLimiter.Middleware(fn))
	}
	public := func(fn http.HandlerFunc) http.Handler {
		return apiLimiter.Middleware(fn)
	}
	credential := func(fn http.HandlerFunc) http.Handler {
		return authLimiter.Middleware(fn)
	}

	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", middleware.BasicAuth(cfg.Metrics.Username, cfg.Metrics.Password, "metrics")(metrics.Handler()))
	}

	// Auth endpoints
	mux.Handle("POST /api/auth/register", credential(authHandler.Register))
	mux.Handle("POST /api/auth/login", credential(authHandler.Login))
	mux.Handle("POST /api/auth/logout", public(authHandler.Logout))
	mux.Handle("GET /api/auth/me", protected(authHandler.Me))
	mux.Handle("POST /api/auth/password", authMiddleware.RequireAuth(credential(authHandler.ChangePassword)))
	mux.Handle("PUT /api/profile", protected(authHandler.UpdateProfile))

	// Friend endpoints
	mux.Handle("GET /api/friends", protected(friendHandler.List))
	mux.Handle("GET /api/friends/search", protected(friendHandler.Search))
	mux.Handle("POST /api/friends/requests", protected(friendHandler.SendRequest))
	mux.Handle("GET /api/friends/requests/history", protected(friendHandler.History))
	mux.Handle("PUT /api/friends/requests/{id}/accept", protected(friendHandler.AcceptRequest))
	mux.Handle("PUT /api/friends/requests/{id}/reject", protected(friendHandler.RejectRequest))
	mux.Handle("DELETE /api/friends/requests/{id}/cancel", protected(friendHandler.CancelRequest))
	mux.Handle("DELETE /api/friends/{id}", protected(friendHandler.Remove))
	mux.Handle("GET /api/friends/invites", protected(inviteHandler.List))
	mux.Handle("POST /api/friends/invites", protected(inviteHandler.Create))
	mux.Handle("POST /api/friends/invites/accept", protected(inviteHandler.Accept))
	mux.Handle("DELETE /api/friends/invites/{id}", protected(inviteHandler.Revoke))

	// Block endpoints
	mux.Handle("POST /api/blocks", protected(blockHandler.Block))
	mux.Handle("DELETE /api/blocks/{id}", protected(blockHandler.Unblock))
	mux.Handle("GET /api/blocks", protected(blockHandler.List))

	// Location endpoints
	mux.Handle("PUT /api/locations/sharing", protected(locationHandler.SetSharing))
	mux.Handle("POST /api/locations", protected(locationHandler.Publish))
	mux.Handle("GET /api/locations/friends", protected(locationHandler.Friends))
	mux.Handle("GET /api/locations/stream", authMiddleware.RequireAuthFunc(locationHandler.Stream))
	mux.Handle("GET /api/locations/{userID}", protected(locationHandler.Get))

	// Incident endpoints
	mux.Handle("POST /api/incidents", protected(incidentHandler.Report))
	mux.Handle("GET /api/incidents", protected(incidentHandler.List))
	mux.Handle("GET /api/incidents/nearby", protected(incidentHandler.Nearby))
	mux.Handle("GET /api/incidents/{id}", protected(incidentHandler.Get))
	mux.Handle("POST /api/incidents/{id}/photo", protected(incidentHandler.UploadPhoto))

	// Emergency contact endpoints
	mux.Handle("GET /api/contacts", protected(contactHandler.List))
	mux.Handle("POST /api/contacts", protected(contactHandler.Create))
	mux.Handle("PUT /api/contacts/{id}", protected(contactHandler.Update))
	mux.Handle("DELETE /api/contacts/{id}", protected(contactHandler.Delete))
	mux.Handle("PUT /api/contacts/{id}/primary", protected(contactHandler.SetPrimary))

	// Safety tips (public)
	mux.Handle("GET /api/tips", public(tipHandler.List))
	mux.Handle("GET /api/tips/{category}", public(tipHandler.ByCategory))

	// Notification endpoints
	mux.Handle("GET /api/notifications", protected(notificationHandler.List))
	mux.Handle("PUT /api/notifications/read-all", protected(notificationHandler.MarkAllRead))
	mux.Handle("PUT /api/notifications/{id}/read", protected(notificationHandler.MarkRead))
	mux.Handle("GET /api/notifications/unread-count", protected(notificationHandler.UnreadCount))
	mux.Handle("POST /api/devices", protected(notificationHandler.RegisterDevice))
	mux.Handle("DELETE /api/devices/{token}", protected(notificationHandler.UnregisterDevice))

	if mem, ok := photoStore.(*storage.MemoryStore); ok {
		mux.Handle("GET /uploads/{key...}", mem)
	}

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = csrfMiddleware.Protect(handler)
	handler = cacheControl.Apply(handler)
	handler = compress.Apply(handler)
	handler = securityHeaders.Apply(handler)
	handler = ghandlers.CORS(
		ghandlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-CSRF-Token"}),
		ghandlers.ExposedHeaders([]string{"X-CSRF-Token", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"}),
		ghandlers.AllowCredentials(),
	)(handler)
	handler = requestLogger.Apply(handler)
	handler = ghandlers.RecoveryHandler(
		ghandlers.RecoveryLogger(recoveryLogger{logger: logger}),
		ghandlers.PrintRecoveryStack(!cfg.Server.IsProduction()),
	)(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

// newPhotoStore picks the bucket named in cfg. The returned func releases
// the client.
func newPhotoStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, func(), error) {
	if cfg.Provider != "gcs" {
		return storage.NewMemoryStore(cfg.PublicBaseURL), func() {}, nil
	}
	store, err := storage.NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating photo store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// originChecker accepts websocket upgrades from configured browser origins.
// Native clients send no Origin header and are let through.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func cleanupNotifications(ctx context.Context, logger *logging.Logger, svc *services.NotificationService) {
	ticker := time.NewTicker(notificationCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.CleanupOld(ctx); err != nil {
				logger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// recoveryLogger routes recovered panics into the structured log.
type recoveryLogger struct {
	logger *logging.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic", map[string]interface{}{"panic": fmt.Sprint(v...)})
}
