package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/energyflow/backend/internal/auth"
	"github.com/energyflow/backend/internal/billing"
	"github.com/energyflow/backend/internal/config"
	"github.com/energyflow/backend/internal/devices"
	"github.com/energyflow/backend/internal/gateway"
	"github.com/energyflow/backend/internal/tariff"
	"github.com/energyflow/backend/internal/telemetry"
	"github.com/energyflow/backend/pkg/lock"
	"github.com/energyflow/backend/pkg/logging"
	"github.com/energyflow/backend/pkg/messaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	msgClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATS.URL,
		Name:           "gateway",
		ReconnectWait:  cfg.NATS.ReconnectWait,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ConnectTimeout: cfg.NATS.ConnectTimeout,
	})
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer msgClient.Close()

	var locker lock.Locker = lock.NewKeyLocker()
	if cfg.Etcd.Enabled {
		etcdClient, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			logger.Fatal("failed to connect to etcd", zap.Error(err))
		}
		defer etcdClient.Close()
		locker = lock.NewEtcdLocker(etcdClient, cfg.Etcd.LockTTL)
		logger.Info("commit serialization backed by etcd",
			zap.Strings("endpoints", cfg.Etcd.Endpoints))
	}

	authSvc := auth.NewService(db, cfg.JWT.Secret, cfg.JWT.TokenTTL)
	directory := devices.NewDirectory(rdb)
	liveStore := telemetry.NewLiveStore(rdb)
	ledger := billing.NewPostgresLedger(db)
	engine := billing.NewEngine(ledger, directory, liveStore, tariff.Default(), locker, msgClient, logger)

	gw := gateway.NewGateway(gateway.Config{
		RateLimitMax:    cfg.HTTP.RateLimitMax,
		RateLimitWindow: cfg.HTTP.RateLimitWindow,
	}, authSvc, engine, directory, liveStore, msgClient, logger)

	if err := gw.StartUsageFeed(ctx, msgClient); err != nil {
		logger.Fatal("failed to start usage feed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.Service.Port,
		Handler:        gw.Handler(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gateway starting", zap.String("port", cfg.Service.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("gateway exited with error", zap.Error(err))
	}
	logger.Info("gateway stopped")
}
