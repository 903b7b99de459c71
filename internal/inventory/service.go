// Package inventory is the CRUD backend for clients, categories, items and
// staff users. Every mutation is audited in its own transaction.
package inventory

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service struct {
	db       *sql.DB
	logger   *logrus.Logger
	recorder *audit.Recorder
}

func NewService(db *sql.DB, logger *logrus.Logger) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{
		db:       db,
		logger:   logger,
		recorder: audit.NewRecorder(logger),
	}
}

func (s *Service) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), fn)
}

// conflictOnDuplicate turns a unique violation into a StateConflictError.
func conflictOnDuplicate(err error, entity string, key any) error {
	if _, ok := database.IsUniqueViolation(err); ok {
		return &apperr.StateConflictError{Entity: entity, ID: key, State: "duplicate", Op: "save"}
	}
	return err
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// History returns the audit trail of one record, oldest first.
func (s *Service) History(ctx context.Context, model string, id int64) ([]models.ActionLog, error) {
	if model == "" {
		return nil, apperr.Invalid("model", "is required")
	}
	return store.ListActionLogs(ctx, s.db, model, id)
}
