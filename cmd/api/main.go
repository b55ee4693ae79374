package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spot-sandbox/internal/clock"
	"spot-sandbox/internal/config"
	"spot-sandbox/internal/events"
	"spot-sandbox/internal/health"
	"spot-sandbox/internal/httpserver"
	"spot-sandbox/internal/ids"
	"spot-sandbox/internal/ledger"
	"spot-sandbox/internal/logx"
	"spot-sandbox/internal/orders"
	"spot-sandbox/internal/pricing"
	"spot-sandbox/internal/store"
	"spot-sandbox/internal/store/memory"
	"spot-sandbox/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logx.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	pairs, err := config.LoadPairs(cfg.PairsFile)
	if err != nil {
		logger.Fatal("load pairs", zap.String("file", cfg.PairsFile), zap.Error(err))
	}

	startedAt := time.Now()
	ctx := context.Background()
	var uow store.UnitOfWork
	var pool *pgxpool.Pool
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err = postgres.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			logger.Fatal("connect database", zap.Error(err))
		}
		defer pool.Close()
		pg := postgres.New(pool)
		if err := pg.Migrate(ctx, pairs.List); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		uow = pg
	default:
		uow = memory.New(pairs.List...)
	}

	bus := events.NewBus()
	oracle := pricing.NewStatic(pairs.Prices)
	orderSvc := orders.NewService(uow, oracle, clock.System{}, ids.NewRandom(), bus, logger.Named("orders"), orders.Options{
		FeeRate:       cfg.FeeRate(),
		BandPct:       cfg.ExecutionBand,
		OracleTimeout: cfg.OracleTimeout,
		StoreTimeout:  cfg.StoreTimeout,
	})
	ledgerSvc := ledger.NewService(uow, bus, logger.Named("ledger"), ledger.Options{
		FaucetEnabled: cfg.FaucetEnabled,
		FaucetMax:     cfg.FaucetMax,
		StoreTimeout:  cfg.StoreTimeout,
	})
	router := httpserver.NewRouter(httpserver.RouterDeps{
		OrderHandler:  orders.NewHandler(orderSvc),
		LedgerHandler: ledger.NewHandler(ledgerSvc),
		StreamHandler: httpserver.NewStreamHandler(bus, cfg.WebSocketOrigin, logger.Named("stream")),
		HealthHandler: health.NewHandler(pool, cfg.StoreBackend, startedAt),
		Log:           logger.Named("http"),
		RateLimit:     cfg.RateLimit,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	logger.Info("server listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("backend", cfg.StoreBackend),
		zap.Int("pairs", len(pairs.List)))
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("serve", zap.Error(err))
	}
}
