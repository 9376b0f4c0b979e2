package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/internal/core/ports"
	"github.com/Akitash/opentogethertube/internal/core/services"
	"github.com/Akitash/opentogethertube/internal/infrastructure/auth"
	backupinfra "github.com/Akitash/opentogethertube/internal/infrastructure/backup"
	memorybus "github.com/Akitash/opentogethertube/internal/infrastructure/bus/memory"
	redisbus "github.com/Akitash/opentogethertube/internal/infrastructure/bus/redis"
	"github.com/Akitash/opentogethertube/internal/infrastructure/extractor"
	"github.com/Akitash/opentogethertube/internal/infrastructure/gateway"
	"github.com/Akitash/opentogethertube/internal/infrastructure/middleware"
	"github.com/Akitash/opentogethertube/internal/infrastructure/monitoring"
	roommemory "github.com/Akitash/opentogethertube/internal/infrastructure/roomstore/memory"
	"github.com/Akitash/opentogethertube/internal/infrastructure/userstore"
	"github.com/Akitash/opentogethertube/pkg/backup"
	"github.com/Akitash/opentogethertube/pkg/config"
	"github.com/Akitash/opentogethertube/pkg/distributed"
	"github.com/Akitash/opentogethertube/pkg/logger"
	"github.com/Akitash/opentogethertube/pkg/tracing"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/root/configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if cfg.Monitoring.TracingEnabled {
		tracingCfg := tracing.DefaultConfig()
		tracingCfg.Enabled = true
		tracingCfg.JaegerURL = cfg.Monitoring.JaegerEndpoint
		tracingCfg.ServiceName = "opentogethertube"
		tracerProvider, err := tracing.Init(tracingCfg)
		if err != nil {
			log.Warnw("failed to initialize tracing", "error", err)
		} else {
			defer tracerProvider.Shutdown(context.Background())
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled || cfg.Bus.Driver == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
	}

	var bus ports.MessageBus
	switch cfg.Bus.Driver {
	case "redis":
		bus = redisbus.NewBus(redisClient, log)
	default:
		bus = memorybus.NewBus()
	}

	var roomMetrics *services.RoomMetrics
	var clientMetrics *gateway.ClientMetrics
	if cfg.Monitoring.PrometheusEnabled {
		roomMetrics = services.NewRoomMetrics()
		clientMetrics = gateway.NewClientMetrics()
	} else {
		roomMetrics = services.NewNoopRoomMetrics()
		clientMetrics = gateway.NewNoopClientMetrics()
	}

	videoExtractor := extractor.NewHTTPExtractor(os.Getenv("OTTO_METADATA_API_URL"))
	userStore := userstore.NewHTTPUserStore(os.Getenv("OTTO_ACCOUNT_API_URL"))

	newDeps := func(name domain.RoomName) services.Deps {
		return services.Deps{
			Bus:                bus,
			Extractor:          videoExtractor,
			Users:              userStore,
			Metrics:            roomMetrics,
			Logger:             log,
			SyncCoalesceWindow: cfg.Room.SyncCoalesceWindow,
			StaleTimeout:       cfg.Room.StaleTimeout,
			TickInterval:       cfg.Room.TickInterval,
			RequestQueueDepth:  cfg.Room.RequestQueueDepth,
		}
	}

	rooms := roommemory.NewRoomManager(newDeps, log).WithMetrics(roomMetrics)
	if redisClient != nil {
		rooms = rooms.WithLeasing(distributed.NewLockManager(redisClient, "room-lease:"))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		rooms.Close(shutdownCtx)
	}()

	clients := gateway.NewClientManager(rooms, bus, log).WithMetrics(clientMetrics)
	defer clients.Close()

	sessionDecoder := auth.NewSessionDecoder(cfg.Auth.JWTSecret)

	var backupScheduler *backupinfra.Scheduler
	if cfg.Backup.Enabled {
		storage, err := newBackupStorage(cfg)
		if err != nil {
			log.Errorw("failed to initialize backup storage, disabling scheduled backups", "error", err)
		} else {
			backupService := backup.NewBackupService(storage, "1")
			backupScheduler = backupinfra.NewScheduler(backupService, rooms, bus, backupinfra.Config{
				Interval:      cfg.Backup.Interval,
				RetentionDays: 7,
			}, log)
			go backupScheduler.Start(context.Background())
			defer backupScheduler.Stop()
		}
	}

	healthChecker := monitoring.NewHealthChecker()
	if redisClient != nil {
		healthChecker.AddRedisCheck(redisClient, 30*time.Second, 2*time.Second)
	}
	healthChecker.AddBusCheck(bus, 30*time.Second, 2*time.Second)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := healthChecker.GetReadinessStatus(ctx)
		if status.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.GET("/api/room/:roomName", func(c *gin.Context) {
		session, err := sessionFromRequest(sessionDecoder, c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		clients.HandleUpgrade(c.Writer, c.Request, session)
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting room coordination server", "address", cfg.Server.Address, "bus_driver", cfg.Bus.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}
}

// sessionFromRequest decodes the session token carried on a WebSocket
// upgrade request, either as a "token" query parameter (browsers cannot
// set headers on a WS handshake) or, failing that, the "otto-session"
// cookie. The Authorization header is not read.
func sessionFromRequest(decoder *auth.SessionDecoder, r *http.Request) (domain.Session, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if cookie, err := r.Cookie("otto-session"); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return domain.Session{}, auth.ErrInvalidSessionToken
	}
	return decoder.Decode(token)
}

// newBackupStorage only ever returns a FileStorage: backup.S3Storage lives
// behind the "s3" build tag (it pulls in aws-sdk-go-v2) and is not wired
// in here under any build, so an "s3" driver errors out rather than
// silently falling back to file storage underneath the operator's back.
func newBackupStorage(cfg *config.Config) (backup.Storage, error) {
	if cfg.Backup.Driver == "s3" {
		return nil, fmt.Errorf("backup.driver=s3 is not supported by this server; use driver=file")
	}
	return backup.NewFileStorage(cfg.Backup.Path)
}
