package inventory

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
	"github.com/safar/gold-ledger/internal/validation"
)

type ClientInput struct {
	FirstName      string     `json:"first_name" validate:"required,max=255"`
	LastName       string     `json:"last_name" validate:"required,max=255"`
	BirthDate      *time.Time `json:"birth_date"`
	BirthPlace     string     `json:"birth_place" validate:"max=255"`
	TaxCode        string     `json:"tax_code" validate:"required,max=32"`
	IDDocType      string     `json:"id_doc_type" validate:"max=32"`
	IDDocNumber    string     `json:"id_doc_number" validate:"max=64"`
	IDDocIssuer    string     `json:"id_doc_issuer" validate:"max=255"`
	IDDocIssueDate *time.Time `json:"id_doc_issue_date"`
	Address        string     `json:"address"`
	City           string     `json:"city" validate:"max=255"`
	Zip            string     `json:"zip" validate:"max=16"`
	Province       string     `json:"province" validate:"max=8"`
	Phone          string     `json:"phone" validate:"max=64"`
	Email          string     `json:"email" validate:"omitempty,email,max=255"`
	Notes          string     `json:"notes"`
}

func (in ClientInput) apply(c *models.Client) {
	c.FirstName = strings.TrimSpace(in.FirstName)
	c.LastName = strings.TrimSpace(in.LastName)
	c.BirthDate = in.BirthDate
	c.BirthPlace = in.BirthPlace
	c.TaxCode = strings.ToUpper(strings.TrimSpace(in.TaxCode))
	c.IDDocType = in.IDDocType
	c.IDDocNumber = in.IDDocNumber
	c.IDDocIssuer = in.IDDocIssuer
	c.IDDocIssueDate = in.IDDocIssueDate
	c.Address = in.Address
	c.City = in.City
	c.Zip = in.Zip
	c.Province = in.Province
	c.Phone = in.Phone
	c.Email = in.Email
	c.Notes = in.Notes
}

func (s *Service) CreateClient(ctx context.Context, actor *int64, in ClientInput) (*models.Client, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	c := &models.Client{CreatedBy: actor, UpdatedBy: actor}
	in.apply(c)

	var created *models.Client
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = store.CreateClient(ctx, tx, c)
		if err != nil {
			return conflictOnDuplicate(err, "client", c.TaxCode)
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionCreated, Model: "client", ModelID: created.ID, After: created,
		})
	})
	if err != nil {
		if !apperr.IsStateConflict(err) {
			logging.LogError(s.logger, "inventory", "CreateClient", "create client", in.TaxCode, err)
		}
		return nil, err
	}
	return created, nil
}

func (s *Service) UpdateClient(ctx context.Context, actor *int64, id int64, in ClientInput) (*models.Client, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var updated *models.Client
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := store.GetClient(ctx, tx, id)
		if err != nil {
			return err
		}
		if before.DeletedAt != nil {
			return &apperr.StateConflictError{Entity: "client", ID: id, State: "deleted", Op: "update"}
		}

		next := *before
		in.apply(&next)
		next.UpdatedBy = actor

		updated, err = store.UpdateClient(ctx, tx, &next)
		if err != nil {
			return conflictOnDuplicate(err, "client", next.TaxCode)
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionUpdated, Model: "client", ModelID: id, Before: before, After: updated,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteClient soft-deletes. A client referenced by any document cannot be
// deleted.
func (s *Service) DeleteClient(ctx context.Context, actor *int64, id int64) error {
	return s.setClientDeleted(ctx, actor, id, true)
}

func (s *Service) RestoreClient(ctx context.Context, actor *int64, id int64) error {
	return s.setClientDeleted(ctx, actor, id, false)
}

func (s *Service) setClientDeleted(ctx context.Context, actor *int64, id int64, deleted bool) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := store.GetClient(ctx, tx, id)
		if err != nil {
			return err
		}

		action := audit.ActionDeleted
		op := "delete"
		if !deleted {
			action = audit.ActionRestored
			op = "restore"
		}
		if (before.DeletedAt != nil) == deleted {
			state := "active"
			if before.DeletedAt != nil {
				state = "deleted"
			}
			return &apperr.StateConflictError{Entity: "client", ID: id, State: state, Op: op}
		}

		if deleted {
			n, err := store.CountClientDocuments(ctx, tx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return &apperr.StateConflictError{Entity: "client", ID: id, State: "has_documents", Op: op}
			}
		}

		after, err := store.SetClientDeleted(ctx, tx, id, deleted, actor)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: action, Model: "client", ModelID: id, Before: before, After: after,
		})
	})
}

func (s *Service) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	return store.GetClient(ctx, s.db, id)
}

func (s *Service) ListClients(ctx context.Context, search string, page, pageSize int) (*store.OffsetPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	return store.ListClients(ctx, s.db, strings.TrimSpace(search), page, pageSize)
}
