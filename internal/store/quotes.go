package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
)

const quoteColumns = `id, provider, bid, ask, unit, currency, fetched_at, created_at`

func scanQuote(row rowScanner) (*models.GoldQuote, error) {
	gq := &models.GoldQuote{}
	err := row.Scan(
		&gq.ID,
		&gq.Provider,
		&gq.Bid,
		&gq.Ask,
		&gq.Unit,
		&gq.Currency,
		&gq.FetchedAt,
		&gq.CreatedAt,
	)
	return gq, err
}

func InsertQuote(ctx context.Context, q database.DBTX, gq *models.GoldQuote) (*models.GoldQuote, error) {
	query := `
		INSERT INTO gold_quotes (provider, bid, ask, unit, currency, fetched_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + quoteColumns

	created, err := scanQuote(q.QueryRowContext(ctx, query,
		gq.Provider, gq.Bid, gq.Ask, gq.Unit, gq.Currency, gq.FetchedAt))
	if err != nil {
		return nil, fmt.Errorf("insert gold quote: %w", err)
	}
	return created, nil
}

// LatestQuote returns the quote with the greatest fetched_at, ties broken by id.
func LatestQuote(ctx context.Context, q database.DBTX) (*models.GoldQuote, error) {
	gq, err := scanQuote(q.QueryRowContext(ctx,
		`SELECT `+quoteColumns+` FROM gold_quotes ORDER BY fetched_at DESC, id DESC LIMIT 1`))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrQuoteNotFound
		}
		return nil, fmt.Errorf("latest gold quote: %w", err)
	}
	return gq, nil
}

func ListQuotes(ctx context.Context, q database.DBTX, limit int) ([]models.GoldQuote, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+quoteColumns+` FROM gold_quotes ORDER BY fetched_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list gold quotes: %w", err)
	}
	defer rows.Close()

	quotes := []models.GoldQuote{}
	for rows.Next() {
		gq, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gold quote: %w", err)
		}
		quotes = append(quotes, *gq)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return quotes, nil
}

func CountQuotes(ctx context.Context, q database.DBTX) (int64, error) {
	var count int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM gold_quotes").Scan(&count); err != nil {
		return 0, fmt.Errorf("count gold quotes: %w", err)
	}
	return count, nil
}
