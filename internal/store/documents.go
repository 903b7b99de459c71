package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
)

const documentColumns = `id, type, number, date, client_id, total_gross, total_net, notes, status,
	created_by, updated_by, confirmed_by, confirmed_at, created_at, updated_at`

const documentItemColumns = `id, document_id, item_id, name, material, karat, purity,
	weight_grams, price_unit, qty, subtotal, created_at`

func scanDocument(row rowScanner) (*models.Document, error) {
	d := &models.Document{}
	err := row.Scan(
		&d.ID,
		&d.Type,
		&d.Number,
		&d.Date,
		&d.ClientID,
		&d.TotalGross,
		&d.TotalNet,
		&d.Notes,
		&d.Status,
		&d.CreatedBy,
		&d.UpdatedBy,
		&d.ConfirmedBy,
		&d.ConfirmedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}

func scanDocumentItem(row rowScanner) (*models.DocumentItem, error) {
	di := &models.DocumentItem{}
	err := row.Scan(
		&di.ID,
		&di.DocumentID,
		&di.ItemID,
		&di.Name,
		&di.Material,
		&di.Karat,
		&di.Purity,
		&di.WeightGrams,
		&di.PriceUnit,
		&di.Qty,
		&di.Subtotal,
		&di.CreatedAt,
	)
	return di, err
}

func CreateDocument(ctx context.Context, q database.DBTX, d *models.Document) (*models.Document, error) {
	query := `
		INSERT INTO documents (type, number, date, client_id, total_gross, total_net, notes, status,
			created_by, updated_by, confirmed_by, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING ` + documentColumns

	created, err := scanDocument(q.QueryRowContext(ctx, query,
		d.Type, d.Number, d.Date, d.ClientID, d.TotalGross, d.TotalNet, d.Notes, d.Status,
		d.CreatedBy, d.UpdatedBy, d.ConfirmedBy, d.ConfirmedAt,
	))
	if err != nil {
		if _, ok := database.IsUniqueViolation(err); ok {
			return nil, &apperr.StateConflictError{Entity: "document", ID: d.Number, State: "duplicate", Op: "create"}
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	return created, nil
}

func GetDocument(ctx context.Context, q database.DBTX, id int64) (*models.Document, error) {
	d, err := scanDocument(q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// LockDocument reads the document header and holds its row lock until the
// transaction ends.
func LockDocument(ctx context.Context, tx *sql.Tx, id int64) (*models.Document, error) {
	d, err := scanDocument(tx.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("lock document: %w", err)
	}
	return d, nil
}

func GetDocumentByNumber(ctx context.Context, q database.DBTX, number string) (*models.Document, error) {
	d, err := scanDocument(q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE number = $1`, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document by number: %w", err)
	}
	return d, nil
}

// GetDocumentWithItems loads the header and its lines.
func GetDocumentWithItems(ctx context.Context, q database.DBTX, id int64) (*models.Document, error) {
	d, err := GetDocument(ctx, q, id)
	if err != nil {
		return nil, err
	}

	d.Items, err = ListDocumentItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDocument overwrites the header. The number and type never change.
func UpdateDocument(ctx context.Context, q database.DBTX, d *models.Document) (*models.Document, error) {
	query := `
		UPDATE documents
		SET date = $2, client_id = $3, total_gross = $4, total_net = $5, notes = $6, status = $7,
		    updated_by = $8, confirmed_by = $9, confirmed_at = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + documentColumns

	updated, err := scanDocument(q.QueryRowContext(ctx, query,
		d.ID, d.Date, d.ClientID, d.TotalGross, d.TotalNet, d.Notes, d.Status,
		d.UpdatedBy, d.ConfirmedBy, d.ConfirmedAt,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("update document: %w", err)
	}
	return updated, nil
}

func DeleteDocument(ctx context.Context, q database.DBTX, id int64) error {
	result, err := q.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return database.ErrDocumentNotFound
	}
	return nil
}

type DocumentFilter struct {
	Type     models.DocumentType
	Status   models.DocumentStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// ListDocumentsCursor pages newest first by (created_at, id).
func ListDocumentsCursor(ctx context.Context, q database.DBTX, filter DocumentFilter, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE ($1::text = '' OR type = $1)
		  AND ($2::text = '' OR status = $2)
		  AND ($3::date IS NULL OR date >= $3)
		  AND ($4::date IS NULL OR date <= $4)
		  AND (created_at, id) < ($5, $6)
		ORDER BY created_at DESC, id DESC
		LIMIT $7`

	rows, err := q.QueryContext(ctx, query,
		string(filter.Type), string(filter.Status), filter.DateFrom, filter.DateTo,
		cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	var nextCursor string
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      docs,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func AllDocuments(ctx context.Context, q database.DBTX) ([]models.Document, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return docs, nil
}

func InsertDocumentItem(ctx context.Context, q database.DBTX, di *models.DocumentItem) (*models.DocumentItem, error) {
	query := `
		INSERT INTO document_items (document_id, item_id, name, material, karat, purity,
			weight_grams, price_unit, qty, subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING ` + documentItemColumns

	created, err := scanDocumentItem(q.QueryRowContext(ctx, query,
		di.DocumentID, di.ItemID, di.Name, di.Material, di.Karat, di.Purity,
		di.WeightGrams, di.PriceUnit, di.Qty, di.Subtotal,
	))
	if err != nil {
		return nil, fmt.Errorf("insert document item: %w", err)
	}
	return created, nil
}

// UpdateDocumentItem overwrites the snapshot columns of one line in place.
func UpdateDocumentItem(ctx context.Context, q database.DBTX, di *models.DocumentItem) (*models.DocumentItem, error) {
	query := `
		UPDATE document_items
		SET item_id = $2, name = $3, material = $4, karat = $5, purity = $6,
			weight_grams = $7, price_unit = $8, qty = $9, subtotal = $10
		WHERE id = $1 AND document_id = $11
		RETURNING ` + documentItemColumns

	updated, err := scanDocumentItem(q.QueryRowContext(ctx, query,
		di.ID, di.ItemID, di.Name, di.Material, di.Karat, di.Purity,
		di.WeightGrams, di.PriceUnit, di.Qty, di.Subtotal, di.DocumentID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("update document item: %w", err)
	}
	return updated, nil
}

func ListDocumentItems(ctx context.Context, q database.DBTX, documentID int64) ([]models.DocumentItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+documentItemColumns+` FROM document_items WHERE document_id = $1 ORDER BY id`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("list document items: %w", err)
	}
	defer rows.Close()

	return collectDocumentItems(rows)
}

func DeleteDocumentItems(ctx context.Context, q database.DBTX, documentID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM document_items WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("delete document items: %w", err)
	}
	return nil
}

func DeleteDocumentItem(ctx context.Context, q database.DBTX, id int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM document_items WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document item: %w", err)
	}
	return nil
}

// LinkDocumentItem points a line at the item created from it. Snapshot
// columns are left as they are.
func LinkDocumentItem(ctx context.Context, q database.DBTX, lineID, itemID int64) error {
	result, err := q.ExecContext(ctx, "UPDATE document_items SET item_id = $2 WHERE id = $1", lineID, itemID)
	if err != nil {
		return fmt.Errorf("link document item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("link document item: line %d not found", lineID)
	}
	return nil
}

func AllDocumentItems(ctx context.Context, q database.DBTX) ([]models.DocumentItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+documentItemColumns+` FROM document_items ORDER BY document_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list all document items: %w", err)
	}
	defer rows.Close()

	return collectDocumentItems(rows)
}

func collectDocumentItems(rows *sql.Rows) ([]models.DocumentItem, error) {
	lines := []models.DocumentItem{}
	for rows.Next() {
		di, err := scanDocumentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document item: %w", err)
		}
		lines = append(lines, *di)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return lines, nil
}
