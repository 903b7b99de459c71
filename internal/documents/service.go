// Package documents implements the purchase/sale document workflow:
// drafts are created and edited, then either confirmed (moving stock) or
// cancelled. Only drafts may change.
package documents

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/inventory"
	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/numbering"
	"github.com/safar/gold-ledger/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	db       *sql.DB
	logger   *logrus.Logger
	numbers  *numbering.Generator
	markup   MarkupPolicy
	recorder *audit.Recorder
	now      func() time.Time
}

func NewService(db *sql.DB, numbers *numbering.Generator, markup MarkupPolicy, logger *logrus.Logger) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{
		db:       db,
		logger:   logger,
		numbers:  numbers,
		markup:   markup,
		recorder: audit.NewRecorder(logger),
		now:      time.Now,
	}
}

func (s *Service) withRetry(ctx context.Context, fn func(*sql.Tx) error) error {
	opts := database.DefaultTxOptions()
	opts.MaxRetries = s.numbers.MaxRetries
	opts.LockTimeout = s.numbers.LockTimeout
	return database.WithRetry(ctx, s.db, opts, fn)
}

func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) Create(ctx context.Context, actor *int64, in CreateDocumentInput) (*models.Document, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	date := s.today()
	if in.Date != nil {
		date = *in.Date
	}

	var created *models.Document
	err := s.withRetry(ctx, func(tx *sql.Tx) error {
		if err := checkClient(ctx, tx, in.ClientID); err != nil {
			return err
		}
		lines, total, err := buildLines(ctx, tx, in.Type, in.Items)
		if err != nil {
			return err
		}
		created, err = s.insert(ctx, tx, actor, in.Type, date, in.ClientID, in.Notes, lines, total)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionCreated, Model: "document", ModelID: created.ID, After: created,
		})
	})
	if err != nil {
		s.logFailure("Create", in.Type, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"module": "documents",
		"number": created.Number,
		"type":   created.Type,
	}).Info("document created")
	return created, nil
}

// insert numbers and stores a new draft with already resolved lines.
func (s *Service) insert(ctx context.Context, tx *sql.Tx, actor *int64, docType models.DocumentType, date time.Time, clientID int64, notes string, lines []models.DocumentItem, total decimal.Decimal) (*models.Document, error) {
	number, err := s.numbers.Generate(ctx, tx, docType, date)
	if err != nil {
		return nil, err
	}

	doc, err := store.CreateDocument(ctx, tx, &models.Document{
		Type:       docType,
		Number:     number,
		Date:       date,
		ClientID:   clientID,
		TotalGross: total,
		TotalNet:   total,
		Notes:      notes,
		Status:     models.DocumentStatusDraft,
		CreatedBy:  actor,
		UpdatedBy:  actor,
	})
	if err != nil {
		return nil, err
	}

	doc.Items, err = insertLines(ctx, tx, doc.ID, lines)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func insertLines(ctx context.Context, tx *sql.Tx, documentID int64, lines []models.DocumentItem) ([]models.DocumentItem, error) {
	stored := make([]models.DocumentItem, 0, len(lines))
	for _, line := range lines {
		line.DocumentID = documentID
		created, err := store.InsertDocumentItem(ctx, tx, &line)
		if err != nil {
			return nil, err
		}
		stored = append(stored, *created)
	}
	return stored, nil
}

// lockDraft locks the document and fails unless it is a draft.
func lockDraft(ctx context.Context, tx *sql.Tx, id int64, op string) (*models.Document, error) {
	doc, err := store.LockDocument(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.DocumentStatusDraft {
		return nil, &apperr.StateConflictError{Entity: "document", ID: doc.Number, State: string(doc.Status), Op: op}
	}
	return doc, nil
}

// Update replaces the header fields and every line of a draft.
func (s *Service) Update(ctx context.Context, actor *int64, id int64, in UpdateDocumentInput) (*models.Document, error) {
	var updated *models.Document
	err := s.withRetry(ctx, func(tx *sql.Tx) error {
		before, err := lockDraft(ctx, tx, id, "update")
		if err != nil {
			return err
		}
		if err := validateUpdate(before.Type, in); err != nil {
			return err
		}
		if err := checkClient(ctx, tx, in.ClientID); err != nil {
			return err
		}

		lines, total, err := buildLines(ctx, tx, before.Type, in.Items)
		if err != nil {
			return err
		}

		next := *before
		if in.Date != nil {
			next.Date = *in.Date
		}
		next.ClientID = in.ClientID
		next.Notes = in.Notes
		next.TotalGross = total
		next.TotalNet = total
		next.UpdatedBy = actor

		updated, err = store.UpdateDocument(ctx, tx, &next)
		if err != nil {
			return err
		}
		if err := store.DeleteDocumentItems(ctx, tx, id); err != nil {
			return err
		}
		updated.Items, err = insertLines(ctx, tx, id, lines)
		if err != nil {
			return err
		}

		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionUpdated, Model: "document", ModelID: id, Before: before, After: updated,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Confirm finalizes a draft. A sale archives every referenced item; a
// purchase brings one new item per line into stock and links it back.
func (s *Service) Confirm(ctx context.Context, actor *int64, id int64) (*models.Document, error) {
	var confirmed *models.Document
	err := s.withRetry(ctx, func(tx *sql.Tx) error {
		before, err := lockDraft(ctx, tx, id, "confirm")
		if err != nil {
			return err
		}

		lines, err := store.ListDocumentItems(ctx, tx, id)
		if err != nil {
			return err
		}

		switch before.Type {
		case models.DocumentTypeSale:
			err = s.archiveSold(ctx, tx, actor, lines)
		case models.DocumentTypePurchase:
			err = s.stockPurchased(ctx, tx, actor, lines)
		}
		if err != nil {
			return err
		}

		now := s.now()
		next := *before
		next.Status = models.DocumentStatusConfirmed
		next.ConfirmedAt = &now
		next.ConfirmedBy = actor
		next.UpdatedBy = actor

		confirmed, err = store.UpdateDocument(ctx, tx, &next)
		if err != nil {
			return err
		}
		confirmed.Items, err = store.ListDocumentItems(ctx, tx, id)
		if err != nil {
			return err
		}

		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionConfirmed, Model: "document", ModelID: id, Before: before, After: confirmed,
		})
	})
	if err != nil {
		s.logFailure("Confirm", id, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"module": "documents",
		"number": confirmed.Number,
		"type":   confirmed.Type,
	}).Info("document confirmed")
	return confirmed, nil
}

func (s *Service) archiveSold(ctx context.Context, tx *sql.Tx, actor *int64, lines []models.DocumentItem) error {
	for _, line := range lines {
		if line.ItemID == nil {
			continue
		}
		before, err := store.LockItem(ctx, tx, *line.ItemID)
		if err != nil {
			return err
		}
		if before.Status != models.ItemStatusInStock {
			return &apperr.StateConflictError{Entity: "item", ID: before.Code, State: string(before.Status), Op: "sell"}
		}

		after, err := store.SetItemStatus(ctx, tx, before.ID, models.ItemStatusArchived, actor)
		if err != nil {
			return err
		}
		err = s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionArchived, Model: "item", ModelID: before.ID, Before: before, After: after,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) stockPurchased(ctx context.Context, tx *sql.Tx, actor *int64, lines []models.DocumentItem) error {
	for _, line := range lines {
		it, err := store.CreateItem(ctx, tx, &models.Item{
			Code:          inventory.NewItemCode(),
			Name:          line.Name,
			Material:      line.Material,
			Karat:         line.Karat,
			Purity:        line.Purity,
			WeightGrams:   line.WeightGrams,
			PricePurchase: line.PriceUnit,
			PriceSale:     s.markup(line.PriceUnit),
			Status:        models.ItemStatusInStock,
			CreatedBy:     actor,
			UpdatedBy:     actor,
		})
		if err != nil {
			return err
		}
		if err := store.LinkDocumentItem(ctx, tx, line.ID, it.ID); err != nil {
			return err
		}
		err = s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionCreated, Model: "item", ModelID: it.ID, After: it,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, actor *int64, id int64) (*models.Document, error) {
	var cancelled *models.Document
	err := s.withRetry(ctx, func(tx *sql.Tx) error {
		before, err := lockDraft(ctx, tx, id, "cancel")
		if err != nil {
			return err
		}

		next := *before
		next.Status = models.DocumentStatusCancelled
		next.UpdatedBy = actor

		cancelled, err = store.UpdateDocument(ctx, tx, &next)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionCancelled, Model: "document", ModelID: id, Before: before, After: cancelled,
		})
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Delete removes a draft or cancelled document with its lines. Confirmed
// documents are permanent.
func (s *Service) Delete(ctx context.Context, actor *int64, id int64) error {
	return s.withRetry(ctx, func(tx *sql.Tx) error {
		before, err := store.LockDocument(ctx, tx, id)
		if err != nil {
			return err
		}
		if before.Status == models.DocumentStatusConfirmed {
			return &apperr.StateConflictError{Entity: "document", ID: before.Number, State: string(before.Status), Op: "delete"}
		}

		if err := store.DeleteDocumentItems(ctx, tx, id); err != nil {
			return err
		}
		if err := store.DeleteDocument(ctx, tx, id); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionDeleted, Model: "document", ModelID: id, Before: before,
		})
	})
}

// Duplicate copies a document's client, notes and lines into a new draft
// dated today. Lines are copied as they are; purchase lines drop their item
// link because confirming the copy stocks new items. The source is left
// untouched.
func (s *Service) Duplicate(ctx context.Context, actor *int64, id int64) (*models.Document, error) {
	var dup *models.Document
	err := s.withRetry(ctx, func(tx *sql.Tx) error {
		src, err := store.GetDocumentWithItems(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkClient(ctx, tx, src.ClientID); err != nil {
			return err
		}

		lines := make([]models.DocumentItem, 0, len(src.Items))
		total := decimal.Zero
		for _, line := range src.Items {
			line.ID = 0
			line.DocumentID = 0
			if src.Type == models.DocumentTypePurchase {
				line.ItemID = nil
			}
			total = total.Add(line.Subtotal)
			lines = append(lines, line)
		}

		dup, err = s.insert(ctx, tx, actor, src.Type, s.today(), src.ClientID, src.Notes, lines, total)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionCreated, Model: "document", ModelID: dup.ID, After: dup,
		})
	})
	if err != nil {
		return nil, err
	}
	return dup, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Document, error) {
	return store.GetDocumentWithItems(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, filter store.DocumentFilter, cursor string, limit int) (*store.CursorPage, error) {
	if filter.Type != "" {
		if _, err := models.ParseDocumentType(string(filter.Type)); err != nil {
			return nil, apperr.Invalid("type", "must be purchase or sale")
		}
	}
	switch filter.Status {
	case "", models.DocumentStatusDraft, models.DocumentStatusConfirmed, models.DocumentStatusCancelled:
	default:
		return nil, apperr.Invalid("status", "must be draft, confirmed or cancelled")
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	if cursor != "" {
		if _, err := store.DecodeCursor(cursor); err != nil {
			return nil, apperr.Invalid("cursor", "malformed cursor")
		}
	}
	return store.ListDocumentsCursor(ctx, s.db, filter, cursor, limit)
}

func (s *Service) logFailure(funcName string, data any, err error) {
	if apperr.IsValidation(err) || apperr.IsStateConflict(err) || database.IsNotFound(err) {
		return
	}
	logging.LogError(s.logger, "documents", funcName, "transaction failed", data, err)
}
