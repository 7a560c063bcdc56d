// Package main runs the EduEvent HTTP server with the live check-in feed and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eduevent/backend/config"
	"github.com/eduevent/backend/internal/analytics"
	"github.com/eduevent/backend/internal/attendance"
	"github.com/eduevent/backend/internal/auth"
	"github.com/eduevent/backend/internal/banners"
	"github.com/eduevent/backend/internal/certificates"
	"github.com/eduevent/backend/internal/emaillogs"
	"github.com/eduevent/backend/internal/events"
	"github.com/eduevent/backend/internal/history"
	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/internal/metrics"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/notify"
	"github.com/eduevent/backend/internal/payments"
	"github.com/eduevent/backend/internal/realtime"
	"github.com/eduevent/backend/internal/registrations"
	"github.com/eduevent/backend/internal/timewindow"
	"github.com/eduevent/backend/internal/validation"
	"github.com/eduevent/backend/internal/wishlist"
	"github.com/eduevent/backend/pkg/database"
	"github.com/eduevent/backend/pkg/queue"
	"github.com/eduevent/backend/pkg/redis"
	"github.com/eduevent/backend/pkg/response"
	"github.com/eduevent/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	loc, err := cfg.Events.Location()
	if err != nil {
		logger.Fatal("event timezone", zap.Error(err))
	}
	policy := timewindow.Policy{
		Lead:            cfg.Events.CheckInLead(),
		DefaultDuration: cfg.Events.DefaultDuration(),
		Location:        loc,
	}
	lang, err := i18n.ParseLanguage(cfg.Locale.Default)
	if err != nil {
		logger.Fatal("default locale", zap.Error(err))
	}
	tr, err := i18n.NewTranslator(lang)
	if err != nil {
		logger.Fatal("translations", zap.Error(err))
	}
	if err := validation.RegisterGin(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	files, serveLocal := newFileStore(ctx, cfg, logger)

	m := metrics.New(prometheus.DefaultRegisterer)
	resp := httperr.NewResponder(tr, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Repositories
	userRepo := auth.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)
	attendanceRepo := attendance.NewRepository(pool)
	certificateRepo := certificates.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)
	bannerRepo := banners.NewRepository(pool)
	historyRepo := history.NewRepository(pool)
	analyticsRepo := analytics.NewRepository(pool)
	emailLogRepo := emaillogs.NewRepository(pool)
	wishlistRepo := wishlist.NewRepository(pool)

	// Email
	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if cfg.Email.BrevoAPIKey != "" {
		mailer = notify.NewBrevoMailer(cfg.Email.BrevoAPIKey,
			notify.Sender{Name: cfg.Email.FromName, Email: cfg.Email.FromAddress}, cfg.Email.Timeout())
	} else {
		logger.Warn("BREVO_API_KEY not set, emails are logged instead of sent")
	}
	notifier := notify.NewTokenNotifier(mailer, emailLogRepo, tr, loc, logger)

	// Redis: email queue and live feed fan-out
	hub := realtime.NewHub(logger, nil, nil)
	regOpts := []registrations.Option{
		registrations.WithLogger(logger),
		registrations.WithMetrics(m),
		registrations.WithPolicy(policy),
		registrations.WithUsers(userRepo),
		registrations.WithNotifyTimeout(cfg.Email.Timeout()),
	}
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
		regOpts = append(regOpts, registrations.WithJobQueue(queue.NewQueue(rdb.Client, logger)))
	} else {
		logger.Warn("REDIS_ADDR not set, resends are sent inline and the live feed is local")
	}

	// Services
	authSvc := auth.NewService(userRepo, jwtService, logger)
	eventSvc := events.NewService(eventRepo, files, policy, logger)
	registrationSvc := registrations.NewService(eventRepo, registrationRepo, notifier, regOpts...)
	attendanceSvc := attendance.NewService(eventRepo, registrationRepo, attendanceRepo,
		attendance.WithLogger(logger),
		attendance.WithMetrics(m),
		attendance.WithPolicy(policy),
		attendance.WithPublisher(hub))
	renderer, err := certificates.NewHTMLRenderer(tr, lang, cfg.Server.PublicURL+"/certificates/verify/")
	if err != nil {
		logger.Fatal("certificate renderer", zap.Error(err))
	}
	certificateSvc := certificates.NewService(eventRepo, registrationRepo, attendanceRepo, certificateRepo, renderer, files,
		certificates.WithLogger(logger),
		certificates.WithMetrics(m),
		certificates.WithRenderTimeout(cfg.Events.RenderTimeout()))
	historySvc := history.NewService(historyRepo, policy, logger)
	wishlistSvc := wishlist.NewService(eventRepo, wishlistRepo, logger)
	paymentSvc := payments.NewService(paymentRepo, logger)
	bannerSvc := banners.NewService(bannerRepo, files, logger)
	analyticsSvc := analytics.NewService(analyticsRepo, registrationRepo, eventRepo, cfg.Revenue.AdminShare, logger)

	// Handlers
	authHandler := auth.NewHandler(authSvc, resp)
	eventHandler := events.NewHandler(eventSvc, resp)
	registrationHandler := registrations.NewHandler(registrationSvc, resp)
	attendanceHandler := attendance.NewHandler(attendanceSvc, resp)
	certificateHandler := certificates.NewHandler(certificateSvc, resp)
	historyHandler := history.NewHandler(historySvc, resp)
	wishlistHandler := wishlist.NewHandler(wishlistSvc, resp)
	paymentHandler := payments.NewHandler(paymentSvc, resp)
	bannerHandler := banners.NewHandler(bannerSvc, resp)
	analyticsHandler := analytics.NewHandler(analyticsSvc, resp, loc)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo, registrationSvc, resp, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if serveLocal != "" {
		router.Static(cfg.Storage.LocalBaseURL, serveLocal)
	}

	// Public
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/admin/login", authHandler.AdminLogin)
	}
	router.GET("/events", eventHandler.List)
	router.GET("/events/categories", eventHandler.Categories)
	router.GET("/events/:id", eventHandler.Get)
	router.GET("/banners", bannerHandler.ListActive)
	router.GET("/certificates/verify/:serial", certificateHandler.Verify)

	// Authenticated
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/user", authHandler.Me)
		api.POST("/user/change-password", authHandler.ChangePassword)

		api.POST("/registrations", registrationHandler.Register)
		api.GET("/registrations/:id", registrationHandler.Get)
		api.POST("/registrations/:id/cancel", registrationHandler.Cancel)
		api.POST("/registrations/:id/resend-token", registrationHandler.ResendToken)
		api.GET("/registrations/:id/qr", registrationHandler.QR)
		api.POST("/registrations/:id/attendance", attendanceHandler.CheckIn)
		api.GET("/registrations/:id/attendance", attendanceHandler.Status)
		api.POST("/registrations/:id/certificate", certificateHandler.Issue)
		api.GET("/registrations/:id/certificate", certificateHandler.Status)

		api.POST("/events/:id/register", registrationHandler.RegisterForEvent)
		api.POST("/events/:id/attendance", attendanceHandler.CheckInForEvent)
		api.GET("/events/:id/attendance/status", attendanceHandler.StatusForEvent)
		api.POST("/events/:id/wishlist", wishlistHandler.Toggle)

		api.GET("/me/registrations", registrationHandler.Mine)
		api.GET("/me/certificates", certificateHandler.Mine)
		api.GET("/me/history", historyHandler.History)
		api.GET("/user/event-history", historyHandler.History)
		api.GET("/me/wishlist", wishlistHandler.List)
		api.GET("/wishlist", wishlistHandler.List)
		api.GET("/wishlist/check/:id", wishlistHandler.Check)

		api.GET("/certificates/:id/download", certificateHandler.Download)
		api.GET("/payments/:id/status", paymentHandler.Status)
	}

	// Admin
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/dashboard", analyticsHandler.Dashboard)
		admin.GET("/profile", authHandler.Me)
		admin.PUT("/profile", authHandler.UpdateProfile)
		admin.PUT("/profile/password", authHandler.ChangePassword)

		admin.GET("/events", eventHandler.AdminList)
		admin.POST("/events", eventHandler.Create)
		admin.GET("/events/:id", eventHandler.AdminGet)
		admin.PUT("/events/:id", eventHandler.Update)
		admin.DELETE("/events/:id", eventHandler.Delete)
		admin.POST("/events/:id/publish", eventHandler.Publish)
		admin.POST("/events/:id/flyer", eventHandler.UploadFlyer)
		admin.GET("/events/:id/attendances", attendanceHandler.ListForEvent)
		admin.GET("/events/:id/export", analyticsHandler.Export)
		admin.GET("/events/:id/emails", emailLogHandler.ListByEvent)
		admin.POST("/events/:id/emails/resend", emailLogHandler.Resend)
		admin.GET("/events/:id/live", realtime.ServeWs(hub, logger))

		admin.GET("/banners", bannerHandler.ListAll)
		admin.POST("/banners", bannerHandler.Create)
		admin.PUT("/banners/:id", bannerHandler.Update)
		admin.POST("/banners/:id/toggle", bannerHandler.Toggle)
		admin.DELETE("/banners/:id", bannerHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newFileStore returns S3 when a bucket is configured, otherwise the local
// directory, whose path is returned so the router can serve it.
func newFileStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.FileStore, string) {
	if cfg.AWS.UseS3() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.FilesBucket,
			PublicBaseURL:        cfg.AWS.PublicBaseURL,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		return s3Client, ""
	}
	local, err := storage.NewLocal(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL)
	if err != nil {
		logger.Fatal("local storage", zap.Error(err))
	}
	logger.Info("storing files locally", zap.String("dir", local.Root()))
	return local, local.Root()
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
