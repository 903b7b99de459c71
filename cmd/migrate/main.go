package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/config"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		logrus.Fatal("Usage: migrate [up|down]")
	}

	direction := database.MigrateDirection(os.Args[1])
	if direction != database.MigrateUp && direction != database.MigrateDown {
		logrus.Fatal("Direction must be 'up' or 'down'")
	}

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

	if err := database.Migrate(db, direction); err != nil {
		logger.Fatalf("Run migrations: %v", err)
	}

	logger.WithField("direction", direction).Info("Migrations applied")
}
