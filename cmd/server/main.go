package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/heladeria/internal/adapter/handler"
	"github.com/rl1809/heladeria/internal/adapter/storage"
	"github.com/rl1809/heladeria/internal/auth"
	"github.com/rl1809/heladeria/internal/config"
	"github.com/rl1809/heladeria/internal/core/service"
	"github.com/rl1809/heladeria/internal/obs"
	"github.com/rl1809/heladeria/internal/port"
)

// store is everything the services need from the persistence layer.
type store interface {
	port.Transactor
	port.CatalogRepository
	port.OrderRepository
	port.AccountRepository
}

func fatal(msg string, err error) {
	obs.Logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	obs.InitLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the store
	var (
		st store
		db *sql.DB
	)
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			fatal("failed to open mysql", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			fatal("failed to ping mysql", err)
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			fatal("failed to migrate schema", err)
		}
		st = mysqlAdapter
		obs.Logger.Info("connected to mysql")
	default:
		st = storage.NewMemoryAdapter()
		obs.Logger.Warn("using in-memory store, data is lost on exit")
	}

	// Initialize Redis, optional
	var (
		rdb       *redis.Client
		guard     port.IdempotencyGuard
		board     port.SalesBoard
		projector *service.SalesProjector
		queueSize int
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal("failed to connect redis", err)
		}
		obs.Logger.Info("connected to redis", "addr", cfg.RedisAddr)

		redisAdapter := storage.NewRedisAdapter(rdb)
		guard, board = redisAdapter, redisAdapter
		queueSize = cfg.QueueSize

		projector = service.NewSalesProjector(board, st, cfg.WorkerCount)
		if err := projector.Rebuild(ctx); err != nil {
			obs.Logger.Error("sales board rebuild failed, reports fall back to the ledger", "error", err)
		}
	}

	// Initialize services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	orderService := service.NewOrderService(st, st, st, guard, queueSize)
	catalogService := service.NewCatalogService(st, st)
	accountService := service.NewAccountService(st, tokens)
	reportService := service.NewReportService(st, st, board)

	if projector != nil {
		projector.Start(orderService.SaleEvents())
	}

	// Initialize gRPC server
	grpcHandler := handler.NewGRPCHandler(orderService, reportService, accountService)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryLoggingInterceptor,
		grpcHandler.UnaryAuthInterceptor,
	))
	handler.RegisterOrderServiceServer(grpcServer, grpcHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		fatal("failed to listen", err)
	}

	go func() {
		obs.Logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			obs.Logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, catalogService, accountService, reportService)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(cfg.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obs.Logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			obs.Logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	obs.Logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		obs.Logger.Error("HTTP shutdown", "error", err)
	}
	obs.Logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	obs.Logger.Info("gRPC server stopped")

	// Close the sale queue and wait for the projector to drain it
	orderService.Close()
	if projector != nil {
		projector.Wait()
		obs.Logger.Info("sales projector stopped")
	}

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	obs.Logger.Info("connections closed")
}
