package inventory

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
	"github.com/safar/gold-ledger/internal/validation"
)

var maxPurity = decimal.NewFromInt(1000)

type ItemInput struct {
	Code          string              `json:"code" validate:"max=64"`
	Name          string              `json:"name" validate:"required,max=255"`
	CategoryID    *int64              `json:"category_id"`
	Material      models.Material     `json:"material" validate:"required,oneof=gold silver platinum other"`
	Karat         *int                `json:"karat" validate:"omitempty,min=1,max=24"`
	Purity        decimal.NullDecimal `json:"purity"`
	WeightGrams   decimal.Decimal     `json:"weight_grams" validate:"gt=0"`
	PricePurchase decimal.Decimal     `json:"price_purchase" validate:"gte=0"`
	PriceSale     decimal.Decimal     `json:"price_sale" validate:"gte=0"`
	Description   string              `json:"description"`
	PhotoPath     string              `json:"photo_path" validate:"max=512"`
}

// NewItemCode returns a unique code for items created without one.
func NewItemCode() string {
	return "AUTO-" + uuid.NewString()
}

func (in ItemInput) validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}

	var errs apperr.ValidationErrors
	if !in.PriceSale.GreaterThan(in.PricePurchase) {
		errs = append(errs, &apperr.ValidationError{Field: "price_sale", Message: "must be greater than price_purchase"})
	}
	if in.Material == models.MaterialGold && in.Karat == nil {
		errs = append(errs, &apperr.ValidationError{Field: "karat", Message: "is required for gold"})
	}
	if in.Material != models.MaterialGold && in.Karat != nil {
		errs = append(errs, &apperr.ValidationError{Field: "karat", Message: "applies to gold only"})
	}
	if in.Purity.Valid && (in.Purity.Decimal.IsNegative() || in.Purity.Decimal.GreaterThan(maxPurity)) {
		errs = append(errs, &apperr.ValidationError{Field: "purity", Message: "must be between 0 and 1000"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (in ItemInput) apply(it *models.Item) {
	it.Name = strings.TrimSpace(in.Name)
	it.CategoryID = in.CategoryID
	it.Material = in.Material
	it.Karat = in.Karat
	it.Purity = in.Purity
	it.WeightGrams = in.WeightGrams
	it.PricePurchase = in.PricePurchase
	it.PriceSale = in.PriceSale
	it.Description = in.Description
	it.PhotoPath = in.PhotoPath
}

func checkCategory(ctx context.Context, q database.DBTX, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := store.GetCategory(ctx, q, *id); err != nil {
		if errors.Is(err, database.ErrCategoryNotFound) {
			return apperr.Invalid("category_id", "category %d does not exist", *id)
		}
		return err
	}
	return nil
}

func (s *Service) CreateItem(ctx context.Context, actor *int64, in ItemInput) (*models.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	it := &models.Item{
		Code:      strings.TrimSpace(in.Code),
		Status:    models.ItemStatusInStock,
		CreatedBy: actor,
		UpdatedBy: actor,
	}
	if it.Code == "" {
		it.Code = NewItemCode()
	}
	in.apply(it)

	var created *models.Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkCategory(ctx, tx, in.CategoryID); err != nil {
			return err
		}

		var err error
		created, err = store.CreateItem(ctx, tx, it)
		if err != nil {
			return conflictOnDuplicate(err, "item", it.Code)
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionCreated, Model: "item", ModelID: created.ID, After: created,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateItem edits an item's attributes. The code is kept when the input
// leaves it empty; status changes go through ArchiveItem and RestoreItem.
func (s *Service) UpdateItem(ctx context.Context, actor *int64, id int64, in ItemInput) (*models.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *models.Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := store.LockItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkCategory(ctx, tx, in.CategoryID); err != nil {
			return err
		}

		next := *before
		in.apply(&next)
		if code := strings.TrimSpace(in.Code); code != "" {
			next.Code = code
		}
		next.UpdatedBy = actor

		updated, err = store.UpdateItem(ctx, tx, &next)
		if err != nil {
			return conflictOnDuplicate(err, "item", next.Code)
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionUpdated, Model: "item", ModelID: id, Before: before, After: updated,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) ArchiveItem(ctx context.Context, actor *int64, id int64) (*models.Item, error) {
	return s.setItemStatus(ctx, actor, id, models.ItemStatusInStock, models.ItemStatusArchived, audit.ActionArchived, "archive")
}

func (s *Service) RestoreItem(ctx context.Context, actor *int64, id int64) (*models.Item, error) {
	return s.setItemStatus(ctx, actor, id, models.ItemStatusArchived, models.ItemStatusInStock, audit.ActionRestored, "restore")
}

func (s *Service) setItemStatus(ctx context.Context, actor *int64, id int64, from, to models.ItemStatus, action, op string) (*models.Item, error) {
	var updated *models.Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := store.LockItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if before.Status != from {
			return &apperr.StateConflictError{Entity: "item", ID: id, State: string(before.Status), Op: op}
		}

		updated, err = store.SetItemStatus(ctx, tx, id, to, actor)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: action, Model: "item", ModelID: id, Before: before, After: updated,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return store.GetItem(ctx, s.db, id)
}

func (s *Service) ListItems(ctx context.Context, filter store.ItemFilter, page, pageSize int) (*store.OffsetPage, error) {
	if filter.Status != "" && filter.Status != models.ItemStatusInStock && filter.Status != models.ItemStatusArchived {
		return nil, apperr.Invalid("status", "must be in_stock or archived")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	page, pageSize = normalizePage(page, pageSize)
	return store.ListItems(ctx, s.db, filter, page, pageSize)
}
