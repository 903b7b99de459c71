package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
)

const settingsID = 1

const settingsColumns = `id, business_name, vat_number, tax_code, address, city, zip, country,
	phone, email, logo_path, doc_number_counters, currency, locale, created_at, updated_at`

func scanSettings(row rowScanner) (*models.StoreSetting, error) {
	s := &models.StoreSetting{}
	err := row.Scan(
		&s.ID,
		&s.BusinessName,
		&s.VATNumber,
		&s.TaxCode,
		&s.Address,
		&s.City,
		&s.Zip,
		&s.Country,
		&s.Phone,
		&s.Email,
		&s.LogoPath,
		&s.DocNumberCounters,
		&s.Currency,
		&s.Locale,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

// EnsureSettings creates the singleton row with empty counters if it is missing.
// Concurrent callers race harmlessly on the primary key.
func EnsureSettings(ctx context.Context, q database.DBTX) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO store_settings (id, doc_number_counters, created_at, updated_at)
		 VALUES ($1, '{}'::jsonb, NOW(), NOW())
		 ON CONFLICT (id) DO NOTHING`, settingsID)
	if err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	return nil
}

// LockSettings creates the singleton if needed and holds its row lock until
// the transaction ends. Callers should bound the wait with SetLockTimeout.
func LockSettings(ctx context.Context, tx *sql.Tx) (*models.StoreSetting, error) {
	if err := EnsureSettings(ctx, tx); err != nil {
		return nil, err
	}

	s, err := scanSettings(tx.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM store_settings WHERE id = $1 FOR UPDATE`, settingsID))
	if err != nil {
		if database.IsLockNotAvailable(err) {
			return nil, fmt.Errorf("lock settings: %w: %w", database.ErrLockTimeout, err)
		}
		return nil, fmt.Errorf("lock settings: %w", err)
	}
	return s, nil
}

// GetSettings returns the singleton, or nil when it has never been created.
func GetSettings(ctx context.Context, q database.DBTX) (*models.StoreSetting, error) {
	s, err := scanSettings(q.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM store_settings WHERE id = $1`, settingsID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// SaveSettings upserts the business profile and counters of the singleton.
func SaveSettings(ctx context.Context, q database.DBTX, s *models.StoreSetting) (*models.StoreSetting, error) {
	query := `
		INSERT INTO store_settings (id, business_name, vat_number, tax_code, address, city, zip, country,
			phone, email, logo_path, doc_number_counters, currency, locale, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET business_name = EXCLUDED.business_name, vat_number = EXCLUDED.vat_number,
		    tax_code = EXCLUDED.tax_code, address = EXCLUDED.address, city = EXCLUDED.city,
		    zip = EXCLUDED.zip, country = EXCLUDED.country, phone = EXCLUDED.phone,
		    email = EXCLUDED.email, logo_path = EXCLUDED.logo_path,
		    doc_number_counters = EXCLUDED.doc_number_counters,
		    currency = EXCLUDED.currency, locale = EXCLUDED.locale, updated_at = NOW()
		RETURNING ` + settingsColumns

	saved, err := scanSettings(q.QueryRowContext(ctx, query,
		settingsID, s.BusinessName, s.VATNumber, s.TaxCode, s.Address, s.City, s.Zip, s.Country,
		s.Phone, s.Email, s.LogoPath, s.DocNumberCounters, s.Currency, s.Locale,
	))
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return saved, nil
}

// UpdateProfile writes the business profile columns only. Counters belong to
// numbering and are left as they are.
func UpdateProfile(ctx context.Context, tx *sql.Tx, s *models.StoreSetting) (*models.StoreSetting, error) {
	query := `
		UPDATE store_settings
		SET business_name = $2, vat_number = $3, tax_code = $4, address = $5, city = $6,
		    zip = $7, country = $8, phone = $9, email = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + settingsColumns

	saved, err := scanSettings(tx.QueryRowContext(ctx, query,
		settingsID, s.BusinessName, s.VATNumber, s.TaxCode, s.Address, s.City, s.Zip, s.Country,
		s.Phone, s.Email,
	))
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return saved, nil
}

func SaveCounters(ctx context.Context, q database.DBTX, counters models.DocCounters) error {
	result, err := q.ExecContext(ctx,
		`UPDATE store_settings SET doc_number_counters = $2, updated_at = NOW() WHERE id = $1`,
		settingsID, counters)
	if err != nil {
		return fmt.Errorf("save counters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("save counters: settings row missing")
	}
	return nil
}
