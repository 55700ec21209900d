// Package main runs the PhotoComp HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/photocomp/backend/config"
	"github.com/photocomp/backend/internal/auth"
	"github.com/photocomp/backend/internal/events"
	"github.com/photocomp/backend/internal/middleware"
	"github.com/photocomp/backend/internal/organizations"
	"github.com/photocomp/backend/internal/photos"
	"github.com/photocomp/backend/internal/policy"
	"github.com/photocomp/backend/internal/requests"
	"github.com/photocomp/backend/internal/tags"
	"github.com/photocomp/backend/internal/worker"
	"github.com/photocomp/backend/pkg/database"
	"github.com/photocomp/backend/pkg/imageproc"
	"github.com/photocomp/backend/pkg/kvstore"
	"github.com/photocomp/backend/pkg/mailer"
	"github.com/photocomp/backend/pkg/queue"
	"github.com/photocomp/backend/pkg/redis"
	"github.com/photocomp/backend/pkg/response"
	"github.com/photocomp/backend/pkg/storage"
	"github.com/photocomp/backend/pkg/weather"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer closeStore()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		Bucket:               cfg.AWS.PhotosBucket,
		Endpoint:             cfg.AWS.S3Endpoint,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	// Notifications are optional; without Redis decisions are not emailed.
	var notifier requests.Notifier
	var jobQueue *queue.Queue
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
		if err != nil {
			logger.Warn("redis unavailable, notifications disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			jobQueue = queue.NewQueue(rdb.Client, logger)
			notifier = jobQueue
		}
	}

	var forecasts weather.Provider
	if cfg.Weather.Enabled {
		forecasts = weather.NewClient(weather.Config{
			GeocodingURL: cfg.Weather.GeocodingURL,
			ForecastURL:  cfg.Weather.ForecastURL,
			Timeout:      cfg.Weather.Timeout,
		}, logger)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	responder := response.NewResponder(logger)

	// Users
	authSvc := auth.NewService(auth.NewRepository(store), jwtService, auth.NewBcryptHasher(), logger)
	authHandler := auth.NewHandler(authSvc, responder, logger)

	// Organizations
	orgSvc := organizations.NewService(organizations.NewRepository(store), s3Client, storage.NewHTTPFetcher(10*time.Second), authSvc, logger)
	orgHandler := organizations.NewHandler(orgSvc, responder, logger)

	// Events and photos depend on each other only through interfaces.
	eventRepo := events.NewRepository(store)
	tagRepo := tags.NewRepository(store)
	photoSvc := photos.NewService(photos.NewRepository(store), eventRepo, orgSvc, tagRepo, s3Client, imageproc.NewImaging(), logger)
	photoHandler := photos.NewHandler(photoSvc, responder, logger)
	eventSvc := events.NewService(eventRepo, forecasts, photoSvc, logger)
	eventHandler := events.NewHandler(eventSvc, responder, logger)

	// Membership requests
	requestSvc := requests.NewService(requests.NewRepository(store), orgSvc, eventSvc, authSvc, notifier, logger)
	requestHandler := requests.NewHandler(requestSvc, responder, logger)

	// Tags
	tagSvc := tags.NewService(tagRepo, photoSvc, eventSvc, authSvc, logger)
	tagHandler := tags.NewHandler(tagSvc, responder, logger)

	access := middleware.NewAccess(orgSvc, eventSvc, responder)
	metrics := middleware.NewMetrics()
	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(metrics.Middleware())

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", metrics.Handler())

	// Auth (public, rate limited)
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", authLimiter.Middleware(), authHandler.Register)
		authGroup.POST("/login", authLimiter.Middleware(), authHandler.Login)
		authGroup.PATCH("/password", middleware.JWT(jwtService), authHandler.ChangePassword)
		authGroup.DELETE("/users/:userId", middleware.JWT(jwtService), access.Require(policy.ActionManageAccount), authHandler.DeleteUser)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users/:userId/tagged-photos", access.Require(policy.ActionViewTaggedPhotos), tagHandler.UserTaggedPhotos)

		// Organizations
		api.POST("/organizations", orgHandler.CreateOrganization)
		api.GET("/organizations", orgHandler.ListOrganizations)
		api.GET("/organizations/mine", orgHandler.ListMyOrganizations)

		org := api.Group("/organizations/:orgId")
		org.GET("", access.Require(policy.ActionViewOrg), orgHandler.GetOrganization)
		org.PATCH("", access.Require(policy.ActionUpdateOrg), orgHandler.UpdateOrganization)

		// Members
		org.GET("/members", access.Require(policy.ActionManageMembers), orgHandler.ListMembers)
		org.GET("/members/:userId/status", access.Require(policy.ActionManageMembers), orgHandler.IsMember)
		org.PATCH("/members/:userId", access.Require(policy.ActionChangeMemberRole), orgHandler.UpdateMemberRole)
		org.DELETE("/members/:userId", access.Require(policy.ActionManageMembers), orgHandler.RemoveMember)
		org.DELETE("/members/:userId/leave", access.Require(policy.ActionLeaveOrg), orgHandler.LeaveOrganization)

		// Membership requests
		org.POST("/requests", requestHandler.Apply)
		org.GET("/requests", access.Require(policy.ActionReviewRequests), requestHandler.ListPending)
		org.PUT("/requests/:userId", access.Require(policy.ActionReviewRequests), requestHandler.Approve)
		org.DELETE("/requests/:userId", access.Require(policy.ActionReviewRequests), requestHandler.Deny)

		// Events (static segment before :eventId)
		org.GET("/events/public", eventHandler.ListPublicEvents)
		org.POST("/events", access.Require(policy.ActionManageEvents), eventHandler.CreateEvent)
		org.GET("/events", access.Require(policy.ActionViewEvents), eventHandler.ListEvents)

		ev := org.Group("/events/:eventId")
		ev.GET("", access.Require(policy.ActionViewEvents), eventHandler.GetEvent)
		ev.PATCH("", access.Require(policy.ActionManageEvents), eventHandler.UpdateEvent)
		ev.PATCH("/visibility", access.Require(policy.ActionManageEvents), eventHandler.ToggleVisibility)
		ev.DELETE("", access.Require(policy.ActionManageEvents), eventHandler.DeleteEvent)
		ev.POST("/attend", access.Require(policy.ActionAttendEvent), eventHandler.Attend)
		ev.DELETE("/attend", access.Require(policy.ActionAttendEvent), eventHandler.Unattend)
		ev.GET("/attendees", access.Require(policy.ActionManageEvents), eventHandler.ListAttendees)

		// Photos
		org.GET("/photos", access.Require(policy.ActionViewEvents), photoHandler.ListOrganizationPhotos)
		ev.POST("/photos", access.Require(policy.ActionManagePhotos), photoHandler.Upload)
		ev.GET("/photos", access.Require(policy.ActionViewPhotos), photoHandler.ListEventPhotos)
		ev.DELETE("/photos/:photoId", access.Require(policy.ActionManagePhotos), photoHandler.Delete)
		ev.GET("/photos/:photoId/download", access.Require(policy.ActionViewPhotos), photoHandler.Download)

		// Tags
		ev.GET("/photos/:photoId/tags", access.Require(policy.ActionViewPhotos), tagHandler.ListPhotoTags)
		ev.POST("/photos/:photoId/tags", access.Require(policy.ActionManagePhotos), tagHandler.TagUsers)
		ev.DELETE("/photos/:photoId/tags/:userId", access.Require(policy.ActionManagePhotos), tagHandler.RemoveTag)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (decision emails)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Server.RunWorker && jobQueue != nil {
		sender := mailer.NewSMTP(mailer.Config{
			Host:        cfg.Email.SMTPHost,
			Port:        cfg.Email.SMTPPort,
			Username:    cfg.Email.SMTPUser,
			Password:    cfg.Email.SMTPPass,
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
		})
		go worker.NewNotificationProcessor(jobQueue, sender, logger).Run(workerCtx)
		logger.Info("notification worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStore builds the single-table store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (kvstore.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, database.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxConns),
			MaxConnIdleTime: time.Duration(cfg.Database.MaxIdleMins) * time.Minute,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return kvstore.NewPostgres(pool), pool.Close, nil
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return kvstore.NewMemory(), func() {}, nil
	default:
		d, err := kvstore.NewDynamoFromConfig(ctx, kvstore.DynamoConfig{
			Region:          cfg.AWS.Region,
			Endpoint:        cfg.Store.Endpoint,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Table:           cfg.Store.Table,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
