// Package backup exports the business data as a signed snapshot and imports
// such snapshots back, matching rows by natural key.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
)

// ErrNoSecret is returned when BACKUP_SECRET is not configured.
var ErrNoSecret = errors.New("backup secret is not configured")

type Mode string

const (
	ModeAppend  Mode = "append"
	ModeReplace Mode = "replace"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAppend, ModeReplace:
		return m, nil
	}
	return "", apperr.Invalid("mode", "must be append or replace, got %q", s)
}

type Counts struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Report holds per-table counts of an import.
type Report map[string]*Counts

func (r Report) entity(name string) *Counts {
	c, ok := r[name]
	if !ok {
		c = &Counts{}
		r[name] = c
	}
	return c
}

type Service struct {
	db       *sql.DB
	secret   string
	recorder *audit.Recorder
	logger   *logrus.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, secret string, logger *logrus.Logger) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{
		db:       db,
		secret:   secret,
		recorder: audit.NewRecorder(logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Export reads every business table in one consistent snapshot and signs the
// encoded payload.
func (s *Service) Export(ctx context.Context) (*Snapshot, error) {
	if s.secret == "" {
		return nil, ErrNoSecret
	}

	payload := Payload{Version: PayloadVersion, ExportedAt: s.now().UTC()}
	opts := database.TxOptions{IsolationLevel: sql.LevelRepeatableRead, ReadOnly: true}

	err := database.WithTransaction(ctx, s.db, opts, func(tx *sql.Tx) error {
		settings, err := store.GetSettings(ctx, tx)
		if err != nil {
			return err
		}
		payload.Data.StoreSettings = []models.StoreSetting{}
		if settings != nil {
			payload.Data.StoreSettings = append(payload.Data.StoreSettings, *settings)
		}

		if payload.Data.Categories, err = store.ListCategories(ctx, tx); err != nil {
			return err
		}
		if payload.Data.Clients, err = store.AllClients(ctx, tx); err != nil {
			return err
		}
		if payload.Data.Items, err = store.AllItems(ctx, tx); err != nil {
			return err
		}
		if payload.Data.Documents, err = store.AllDocuments(ctx, tx); err != nil {
			return err
		}
		payload.Data.DocumentItems, err = store.AllDocumentItems(ctx, tx)
		return err
	})
	if err != nil {
		logging.LogError(s.logger, "backup", "Export", "read tables", nil, err)
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"module":    "backup",
		"clients":   len(payload.Data.Clients),
		"items":     len(payload.Data.Items),
		"documents": len(payload.Data.Documents),
	}).Info("backup exported")

	return &Snapshot{Signature: sign(raw, s.secret), Payload: raw}, nil
}

// Import verifies the snapshot before touching the database, then applies it
// in a single transaction.
func (s *Service) Import(ctx context.Context, actor *int64, snap *Snapshot, mode Mode) (Report, error) {
	if s.secret == "" {
		return nil, ErrNoSecret
	}
	if err := Verify(snap, s.secret); err != nil {
		s.logger.WithField("module", "backup").Warn("backup signature rejected")
		return nil, err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(snap.Payload, &payload); err != nil {
		return nil, apperr.Invalid("payload", "malformed: %v", err)
	}
	if payload.Version != PayloadVersion {
		return nil, apperr.Invalid("version", "unsupported backup version %q", payload.Version)
	}

	im := &importer{
		recorder:   s.recorder,
		actor:      actor,
		mode:       mode,
		report:     Report{},
		categories: map[int64]int64{},
		clients:    map[int64]int64{},
		items:      map[int64]int64{},
		documents:  map[int64]int64{},
		outcomes:   map[int64]outcome{},
	}

	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return im.run(ctx, tx, &payload.Data)
	})
	if err != nil {
		logging.LogError(s.logger, "backup", "Import", "apply snapshot", map[string]any{"mode": mode}, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"module": "backup",
		"mode":   mode,
		"report": im.report,
	}).Info("backup imported")
	return im.report, nil
}
