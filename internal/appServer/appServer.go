package appServer

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/ewm/config"
	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/database/memory"
	repository "github.com/ds124wfegd/ewm/internal/database/postgres"
	"github.com/ds124wfegd/ewm/internal/service"
	"github.com/ds124wfegd/ewm/internal/transport"
	"github.com/ds124wfegd/ewm/internal/worker"

	"github.com/ds124wfegd/ewm/pkg/broker"
	"github.com/ds124wfegd/ewm/pkg/likes"
	"github.com/ds124wfegd/ewm/pkg/postgres"
	"github.com/ds124wfegd/ewm/pkg/queue"
	"github.com/ds124wfegd/ewm/pkg/redis"
	"github.com/ds124wfegd/ewm/pkg/scheduler"
	"github.com/ds124wfegd/ewm/pkg/stats"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},           // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags), // os.Stderr can be replaced with ElsasticSearch in the feature
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func setupLogger(cfg *config.ServerConfig) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// newStore opens the configured storage. The returned close func is never nil.
func newStore(cfg *config.Config) (database.TxManager, func(), error) {
	if cfg.Database.Driver == "memory" {
		logrus.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repository.NewStore(db, &cfg.Admission), func() { closeDB(db) }, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close database")
	}
}

func NewServer(cfg *config.Config) {

	setupLogger(&cfg.Server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, closeStore, err := newStore(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStore()

	// Collaborators backed by Redis
	var (
		statsClient   service.StatsClient
		statsReader   transport.StatsReader
		likesClient   service.LikesClient
		locationLikes service.LocationLikesClient
		taskPublisher service.TaskPublisher
		inspector     transport.QueueInspector
		healthChecks  = make(map[string]transport.HealthChecker)
	)
	if checker, ok := store.(transport.HealthChecker); ok {
		healthChecks["database"] = checker
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logrus.Errorf("Failed to initialize Redis: %v. Continuing without stats, likes and notifications...", err)
		} else {
			defer redisClient.Close()

			statsStore := stats.NewStore(redisClient, &cfg.Stats)
			statsClient, statsReader = statsStore, statsStore
			likesStore := likes.NewStore(redisClient, &cfg.Likes)
			likesClient, locationLikes = likesStore, likesStore.For(likes.Locations)

			redisQueue, err := queue.NewRedisQueue(redisClient, &queue.RedisQueueConfig{
				Prefix:       cfg.Queue.Prefix,
				MaxRetries:   cfg.Queue.MaxRetries,
				BaseDelay:    cfg.Queue.BaseDelay,
				QueueTimeout: cfg.Queue.QueueTimeout,
				EnableDLQ:    true,
			})
			if err != nil {
				logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
			} else {
				taskPublisher = service.NewQueueAdapter(redisQueue)
				inspector = redisQueue
				healthChecks["queue"] = redisQueue

				publisher, err := broker.New(&cfg.Broker)
				if err != nil {
					logrus.Errorf("Failed to initialize broker: %v. Notifications go to the log", err)
					publisher = broker.NewLogPublisher()
				}
				defer func() {
					redisQueue.Close()
					publisher.Close()
				}()

				relay := worker.NewNotificationRelay(redisQueue, publisher)
				if err := relay.Start(ctx); err != nil {
					logrus.Errorf("Queue subscriber error: %v", err)
				}
			}
		}
	} else {
		logrus.Warn("Redis disabled, stats, likes and notifications are off")
	}

	// Initialize services
	eventService := service.NewEventService(store, statsClient, likesClient, taskPublisher, &cfg.Lifecycle)
	requestService := service.NewRequestService(store, taskPublisher)
	userService := service.NewUserService(store.Repositories())
	categoryService := service.NewCategoryService(store.Repositories())
	compilationService := service.NewCompilationService(store.Repositories(), statsClient, likesClient)
	locationService := service.NewLocationService(store.Repositories(), locationLikes)

	// Initialize capacity reconciler
	reconcileWorker := worker.NewReconcileWorker(requestService, cfg.Worker.ReconcileInterval, cfg.Worker.BatchSize)
	jobs := scheduler.NewScheduler(reconcileWorker.Job())
	go jobs.Start(ctx)

	// Initialize handlers
	eventHandler := transport.NewEventHandler(eventService, categoryService, statsReader, cfg.Stats.App)
	userHandler := transport.NewUserHandler(eventService, requestService, locationService)
	adminHandler := transport.NewAdminHandler(eventService, userService, categoryService, inspector)
	compilationHandler := transport.NewCompilationHandler(compilationService)

	if cfg.Server.Mode == "release" || cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		router := transport.InitRoutes(eventHandler, userHandler, adminHandler, compilationHandler, healthChecks, cfg.Server.RequestTimeout)
		if err := srv.Run(cfg, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithField("port", cfg.Server.Port).Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
