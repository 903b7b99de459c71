package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/config"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/goldprice"
	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/poller"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Load config: %v", err)
	}
	logger := logging.New(cfg.Log.Level)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	var (
		cache  goldprice.QuoteCache
		locker poller.Locker
	)
	rdb, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatalf("Connect to redis: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
		cache = goldprice.NewRedisCache(rdb)
		locker = poller.NewRedisLocker(rdb)
	} else {
		logger.Warn("REDIS_ADDRESS not set; polling without a distributed lock")
	}

	provider, err := goldprice.NewProvider(cfg.Gold, nil)
	if err != nil {
		logger.Fatalf("Gold price provider: %v", err)
	}

	svc := goldprice.NewService(db, provider, cache, cfg.Gold, logger)
	p := poller.New(svc, locker, cfg.Gold.FetchInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Poller stopped")
	}
}
