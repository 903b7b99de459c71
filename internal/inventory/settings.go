package inventory

import (
	"context"
	"database/sql"
	"strings"

	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
	"github.com/safar/gold-ledger/internal/validation"
)

// StoreProfileInput is the business profile printed on documents.
type StoreProfileInput struct {
	BusinessName string `json:"business_name" validate:"max=255"`
	VATNumber    string `json:"vat_number" validate:"max=20"`
	TaxCode      string `json:"tax_code" validate:"max=16"`
	Address      string `json:"address"`
	City         string `json:"city" validate:"max=255"`
	Zip          string `json:"zip" validate:"max=10"`
	Country      string `json:"country" validate:"max=255"`
	Phone        string `json:"phone" validate:"max=20"`
	Email        string `json:"email" validate:"omitempty,email,max=255"`
}

func (s *Service) GetStoreProfile(ctx context.Context) (*models.StoreSetting, error) {
	if err := store.EnsureSettings(ctx, s.db); err != nil {
		return nil, err
	}
	return store.GetSettings(ctx, s.db)
}

// UpdateStoreProfile rewrites the profile under the settings row lock so it
// cannot interleave with number generation.
func (s *Service) UpdateStoreProfile(ctx context.Context, actor *int64, in StoreProfileInput) (*models.StoreSetting, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var saved *models.StoreSetting
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := store.LockSettings(ctx, tx)
		if err != nil {
			return err
		}

		next := *before
		next.BusinessName = strings.TrimSpace(in.BusinessName)
		next.VATNumber = strings.TrimSpace(in.VATNumber)
		next.TaxCode = strings.ToUpper(strings.TrimSpace(in.TaxCode))
		next.Address = strings.TrimSpace(in.Address)
		next.City = strings.TrimSpace(in.City)
		next.Zip = strings.TrimSpace(in.Zip)
		next.Country = strings.TrimSpace(in.Country)
		next.Phone = strings.TrimSpace(in.Phone)
		next.Email = strings.TrimSpace(in.Email)

		saved, err = store.UpdateProfile(ctx, tx, &next)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionUpdated, Model: "store_settings", ModelID: int64(saved.ID), Before: before, After: saved,
		})
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
