package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
	"github.com/safar/gold-ledger/internal/validation"
)

var maxPurity = decimal.NewFromInt(1000)

type LineInput struct {
	ItemID      *int64              `json:"item_id"`
	Name        string              `json:"name" validate:"required_without=ItemID,max=255"`
	Material    models.Material     `json:"material" validate:"omitempty,oneof=gold silver platinum other"`
	Karat       *int                `json:"karat" validate:"omitempty,min=1,max=24"`
	Purity      decimal.NullDecimal `json:"purity"`
	WeightGrams decimal.Decimal     `json:"weight_grams" validate:"gte=0"`
	PriceUnit   decimal.Decimal     `json:"price_unit" validate:"gte=0"`
	Qty         int                 `json:"qty" validate:"gte=1"`
}

type CreateDocumentInput struct {
	Type     models.DocumentType `json:"type" validate:"required,oneof=purchase sale"`
	Date     *time.Time          `json:"date"`
	ClientID int64               `json:"client_id" validate:"required,gt=0"`
	Notes    string              `json:"notes"`
	Items    []LineInput         `json:"items" validate:"min=1,dive"`
}

type UpdateDocumentInput struct {
	Date     *time.Time  `json:"date"`
	ClientID int64       `json:"client_id" validate:"required,gt=0"`
	Notes    string      `json:"notes"`
	Items    []LineInput `json:"items" validate:"min=1,dive"`
}

// checkLines applies the rules struct tags cannot express.
func checkLines(docType models.DocumentType, lines []LineInput) error {
	var errs apperr.ValidationErrors
	seen := map[int64]int{}
	for i, l := range lines {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

		if l.ItemID != nil {
			if first, dup := seen[*l.ItemID]; dup {
				errs = append(errs, &apperr.ValidationError{Field: field("item_id"), Message: fmt.Sprintf("item %d is already on line %d", *l.ItemID, first)})
			} else {
				seen[*l.ItemID] = i
			}
		}

		if l.ItemID == nil && l.Material == "" {
			errs = append(errs, &apperr.ValidationError{Field: field("material"), Message: "is required"})
		}
		if l.ItemID == nil && !l.WeightGrams.IsPositive() {
			errs = append(errs, &apperr.ValidationError{Field: field("weight_grams"), Message: "must be greater than 0"})
		}
		if l.ItemID != nil && docType == models.DocumentTypePurchase {
			errs = append(errs, &apperr.ValidationError{Field: field("item_id"), Message: "purchase lines create new items and cannot reference one"})
		}
		if l.Purity.Valid && (l.Purity.Decimal.IsNegative() || l.Purity.Decimal.GreaterThan(maxPurity)) {
			errs = append(errs, &apperr.ValidationError{Field: field("purity"), Message: "must be between 0 and 1000"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// buildLines resolves item references and computes subtotals. Referenced
// items are locked so a concurrent confirm cannot archive them mid-build.
func buildLines(ctx context.Context, tx *sql.Tx, docType models.DocumentType, inputs []LineInput) ([]models.DocumentItem, decimal.Decimal, error) {
	lines := make([]models.DocumentItem, 0, len(inputs))
	total := decimal.Zero

	for i, in := range inputs {
		line := models.DocumentItem{
			ItemID:      in.ItemID,
			Name:        strings.TrimSpace(in.Name),
			Material:    in.Material,
			Karat:       in.Karat,
			Purity:      in.Purity,
			WeightGrams: in.WeightGrams,
			PriceUnit:   in.PriceUnit.Round(2),
			Qty:         in.Qty,
		}

		if in.ItemID != nil {
			it, err := store.LockItem(ctx, tx, *in.ItemID)
			if err != nil {
				if errors.Is(err, database.ErrItemNotFound) {
					return nil, decimal.Zero, apperr.Invalid(fmt.Sprintf("items[%d].item_id", i), "item %d does not exist", *in.ItemID)
				}
				return nil, decimal.Zero, err
			}
			if it.DeletedAt != nil {
				return nil, decimal.Zero, apperr.Invalid(fmt.Sprintf("items[%d].item_id", i), "item %d is deleted", it.ID)
			}
			if docType == models.DocumentTypeSale && it.Status != models.ItemStatusInStock {
				return nil, decimal.Zero, apperr.Invalid(fmt.Sprintf("items[%d].item_id", i), "item %d is %s, not in stock", it.ID, it.Status)
			}
			line.Name = it.Name
			line.Material = it.Material
			line.Karat = it.Karat
			line.Purity = it.Purity
			line.WeightGrams = it.WeightGrams
		}

		line.Subtotal = line.PriceUnit.Mul(decimal.NewFromInt(int64(line.Qty))).Round(2)
		total = total.Add(line.Subtotal)
		lines = append(lines, line)
	}

	return lines, total, nil
}

func validateCreate(in CreateDocumentInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	return checkLines(in.Type, in.Items)
}

func validateUpdate(docType models.DocumentType, in UpdateDocumentInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	return checkLines(docType, in.Items)
}

func checkClient(ctx context.Context, q database.DBTX, clientID int64) error {
	ok, err := store.ActiveClientExists(ctx, q, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Invalid("client_id", "client %d does not exist", clientID)
	}
	return nil
}
