package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
)

const categoryColumns = `id, name, slug, description, created_at, updated_at`

func scanCategory(row rowScanner) (*models.Category, error) {
	c := &models.Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func CreateCategory(ctx context.Context, q database.DBTX, name, slug, description string) (*models.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		`INSERT INTO categories (name, slug, description, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING `+categoryColumns,
		name, slug, description))
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func GetCategory(ctx context.Context, q database.DBTX, id int64) (*models.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func GetCategoryBySlug(ctx context.Context, q database.DBTX, slug string) (*models.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category by slug: %w", err)
	}
	return c, nil
}

func UpdateCategory(ctx context.Context, q database.DBTX, c *models.Category) (*models.Category, error) {
	updated, err := scanCategory(q.QueryRowContext(ctx,
		`UPDATE categories SET name = $2, slug = $3, description = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+categoryColumns,
		c.ID, c.Name, c.Slug, c.Description))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return updated, nil
}

func ListCategories(ctx context.Context, q database.DBTX) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return categories, nil
}
