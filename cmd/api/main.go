package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/backup"
	"github.com/safar/gold-ledger/internal/config"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/documents"
	"github.com/safar/gold-ledger/internal/goldprice"
	"github.com/safar/gold-ledger/internal/inventory"
	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/numbering"
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

	logger.Info("Connected to database successfully")

	var cache goldprice.QuoteCache
	rdb, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable; caching gold quotes in memory")
	} else if rdb != nil {
		defer rdb.Close()
		cache = goldprice.NewRedisCache(rdb)
	}

	provider, err := goldprice.NewProvider(cfg.Gold, nil)
	if err != nil {
		logger.Fatalf("Gold price provider: %v", err)
	}

	numbers := numbering.NewGenerator(cfg.Database.LockTimeout, cfg.Database.MaxRetries)
	srv := &server{
		docs:      documents.NewService(db, numbers, documents.PercentMarkup(cfg.Documents.PurchaseMarkupPercent), logger),
		inventory: inventory.NewService(db, logger),
		gold:      goldprice.NewService(db, provider, cache, cfg.Gold, logger),
		backup:    backup.NewService(db, cfg.Backup.Secret, logger),
		health: func(ctx context.Context) error {
			return database.Health(ctx, db, rdb)
		},
		logger: logger,
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
