package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
)

const itemColumns = `id, code, name, category_id, material, karat, purity, weight_grams,
	price_purchase, price_sale, description, photo_path, status,
	created_by, updated_by, created_at, updated_at, deleted_at`

func scanItem(row rowScanner) (*models.Item, error) {
	it := &models.Item{}
	err := row.Scan(
		&it.ID,
		&it.Code,
		&it.Name,
		&it.CategoryID,
		&it.Material,
		&it.Karat,
		&it.Purity,
		&it.WeightGrams,
		&it.PricePurchase,
		&it.PriceSale,
		&it.Description,
		&it.PhotoPath,
		&it.Status,
		&it.CreatedBy,
		&it.UpdatedBy,
		&it.CreatedAt,
		&it.UpdatedAt,
		&it.DeletedAt,
	)
	return it, err
}

func CreateItem(ctx context.Context, q database.DBTX, it *models.Item) (*models.Item, error) {
	query := `
		INSERT INTO items (code, name, category_id, material, karat, purity, weight_grams,
			price_purchase, price_sale, description, photo_path, status,
			created_by, updated_by, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW(), $15)
		RETURNING ` + itemColumns

	created, err := scanItem(q.QueryRowContext(ctx, query,
		it.Code, it.Name, it.CategoryID, it.Material, it.Karat, it.Purity, it.WeightGrams,
		it.PricePurchase, it.PriceSale, it.Description, it.PhotoPath, it.Status,
		it.CreatedBy, it.UpdatedBy, it.DeletedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return created, nil
}

func GetItem(ctx context.Context, q database.DBTX, id int64) (*models.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// LockItem reads the item and holds its row lock until the transaction ends.
func LockItem(ctx context.Context, tx *sql.Tx, id int64) (*models.Item, error) {
	it, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("lock item: %w", err)
	}
	return it, nil
}

func GetItemByCode(ctx context.Context, q database.DBTX, code string) (*models.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE code = $1`, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item by code: %w", err)
	}
	return it, nil
}

// UpdateItem overwrites every mutable column, status and deleted_at included.
func UpdateItem(ctx context.Context, q database.DBTX, it *models.Item) (*models.Item, error) {
	query := `
		UPDATE items
		SET code = $2, name = $3, category_id = $4, material = $5, karat = $6, purity = $7,
		    weight_grams = $8, price_purchase = $9, price_sale = $10, description = $11,
		    photo_path = $12, status = $13, updated_by = $14, deleted_at = $15, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + itemColumns

	updated, err := scanItem(q.QueryRowContext(ctx, query,
		it.ID, it.Code, it.Name, it.CategoryID, it.Material, it.Karat, it.Purity,
		it.WeightGrams, it.PricePurchase, it.PriceSale, it.Description,
		it.PhotoPath, it.Status, it.UpdatedBy, it.DeletedAt,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	return updated, nil
}

func SetItemStatus(ctx context.Context, q database.DBTX, id int64, status models.ItemStatus, actor *int64) (*models.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx,
		`UPDATE items SET status = $2, updated_by = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+itemColumns,
		id, status, actor))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("set item status: %w", err)
	}
	return it, nil
}

type ItemFilter struct {
	Status     models.ItemStatus
	CategoryID int64
	Search     string
}

// ListItems pages through items that are not soft-deleted.
func ListItems(ctx context.Context, q database.DBTX, filter ItemFilter, page, pageSize int) (*OffsetPage, error) {
	where := `WHERE deleted_at IS NULL
		AND ($1::text = '' OR status = $1)
		AND ($2::bigint = 0 OR category_id = $2)
		AND ($3::text = '' OR code ILIKE $4 OR name ILIKE $4 OR description ILIKE $4)`
	args := []any{string(filter.Status), filter.CategoryID, filter.Search, "%" + filter.Search + "%"}

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM items `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items `+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT $5 OFFSET $6`,
		append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(items, total, page, pageSize), nil
}

func AllItems(ctx context.Context, q database.DBTX) ([]models.Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all items: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
