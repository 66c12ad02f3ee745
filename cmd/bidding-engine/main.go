package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bidding-engine/internal/api/handlers"
	apimiddleware "bidding-engine/internal/api/middleware"
	"bidding-engine/internal/config"
	"bidding-engine/internal/engine"
	"bidding-engine/internal/infrastructure/leader"
	"bidding-engine/internal/infrastructure/mysql"
	"bidding-engine/internal/infrastructure/redis"
	"bidding-engine/internal/infrastructure/websocket"
	"bidding-engine/internal/services"
	"bidding-engine/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting bidding engine")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("Configuration loaded", "config", cfg.GetConfigString())

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	lotRepo := mysql.NewMySQLLotRepository(db)
	bidArchive := mysql.NewMySQLBidArchive(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)

	// Initialize Redis based components
	stateCache := redis.NewLotStateCache(rdb)
	eventPublisher := redis.NewEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)
	authorizer := redis.NewAuthorizer(rdb)

	// Initialize increment rules
	incrementRules := services.NewIncrementRuleDao(rdb)
	if err := incrementRules.LoadRules(ctx); err != nil {
		log.Error("Failed to load increment rules", "error", err)
		os.Exit(1)
	}

	// Initialize leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize the engine core
	eng, err := engine.New(authorizer, log, engine.Options{
		ExtensionWindow: cfg.Engine.ExtensionWindow,
		EventBuffer:     cfg.Engine.EventBuffer,
		PaddleLow:       cfg.Engine.PaddleLow,
		PaddleHigh:      cfg.Engine.PaddleHigh,
	})
	if err != nil {
		log.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}

	// Initialize lot manager and scheduler
	lotManager := services.NewLotManager(
		lotRepo,
		bidArchive,
		stateCache,
		nil, // scheduler is set below
		leaderElection,
		incrementRules,
		eng,
		cfg.Instance.ID,
		log,
	)

	scheduler := services.NewCronLotScheduler(schedulerRepo, lotManager, log)
	lotManager.SetScheduler(scheduler)

	// Replay archived bids for lots that were open before a restart
	if err := lotManager.RestoreOpenLots(ctx); err != nil {
		log.Error("Failed to restore open lots", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket fan-out
	connManager := websocket.NewConnectionManager(log)
	broadcaster := websocket.NewWebSocketNotifier(connManager)
	eventListener := services.NewEventListener(bidArchive, connManager, broadcaster, broadcaster, lotManager, eng, log)
	dispatcher := services.NewEventDispatcher(eng, eventPublisher, log)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	go dispatcher.Run(runCtx)

	go func() {
		if err := eventListener.Start(runCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	go func() {
		if err := scheduler.Start(runCtx); err != nil {
			log.Error("Failed to start scheduler", "error", err)
		}
	}()

	// Try to become leader, and keep trying
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(runCtx, cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}

			if became {
				log.Info("Became lifecycle leader", "instance_id", cfg.Instance.ID)
			}

			select {
			case <-runCtx.Done():
				return
			case <-time.After(10 * time.Second):
			}
		}
	}()

	// REST API (echo)
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	lotHandler := handlers.NewLotHandler(lotManager, eng, log)

	api := e.Group("/api/v1")
	api.POST("/lots", lotHandler.RegisterLot)
	api.GET("/lots/:id", lotHandler.GetLot)
	api.POST("/lots/:id/bids", lotHandler.SubmitBid)
	api.GET("/lots/:id/bids", lotHandler.GetHistory)
	api.GET("/lots/:id/leaderboard", lotHandler.GetLeaderboard)
	api.GET("/lots/:id/rank/:participantID", lotHandler.GetRank)
	api.GET("/deadline", lotHandler.GetDeadline)

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.RestPort)
		log.Info("Starting REST server", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("REST server failed", "error", err)
			os.Exit(1)
		}
	}()

	// WebSocket listener (gorilla)
	wsHandlers := handlers.NewWebSocketHandlers(eng, stateCache, connManager, log)

	router := mux.NewRouter()
	router.Use(apimiddleware.CORS)
	router.HandleFunc("/ws/lot/{lotID}", wsHandlers.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	wsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.WSPort),
		Handler: router,
	}

	go func() {
		log.Info("Starting WebSocket server", "address", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("WebSocket server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding engine...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stop()
	scheduler.Stop()
	leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID)

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("REST server forced to shutdown", "error", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("WebSocket server forced to shutdown", "error", err)
	}

	log.Info("Bidding engine stopped")
}
