package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
)

const clientColumns = `id, first_name, last_name, birth_date, birth_place, tax_code,
	id_doc_type, id_doc_number, id_doc_issuer, id_doc_issue_date,
	address, city, zip, province, phone, email, notes,
	created_by, updated_by, created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	c := &models.Client{}
	err := row.Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&c.BirthDate,
		&c.BirthPlace,
		&c.TaxCode,
		&c.IDDocType,
		&c.IDDocNumber,
		&c.IDDocIssuer,
		&c.IDDocIssueDate,
		&c.Address,
		&c.City,
		&c.Zip,
		&c.Province,
		&c.Phone,
		&c.Email,
		&c.Notes,
		&c.CreatedBy,
		&c.UpdatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.DeletedAt,
	)
	return c, err
}

func CreateClient(ctx context.Context, q database.DBTX, c *models.Client) (*models.Client, error) {
	query := `
		INSERT INTO clients (first_name, last_name, birth_date, birth_place, tax_code,
			id_doc_type, id_doc_number, id_doc_issuer, id_doc_issue_date,
			address, city, zip, province, phone, email, notes,
			created_by, updated_by, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW(), $19)
		RETURNING ` + clientColumns

	created, err := scanClient(q.QueryRowContext(ctx, query,
		c.FirstName, c.LastName, c.BirthDate, c.BirthPlace, c.TaxCode,
		c.IDDocType, c.IDDocNumber, c.IDDocIssuer, c.IDDocIssueDate,
		c.Address, c.City, c.Zip, c.Province, c.Phone, c.Email, c.Notes,
		c.CreatedBy, c.UpdatedBy, c.DeletedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return created, nil
}

// GetClient returns the client whether or not it is soft-deleted.
func GetClient(ctx context.Context, q database.DBTX, id int64) (*models.Client, error) {
	c, err := scanClient(q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func GetClientByTaxCode(ctx context.Context, q database.DBTX, taxCode string) (*models.Client, error) {
	c, err := scanClient(q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE tax_code = $1`, taxCode))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrClientNotFound
		}
		return nil, fmt.Errorf("get client by tax code: %w", err)
	}
	return c, nil
}

func ActiveClientExists(ctx context.Context, q database.DBTX, id int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1 AND deleted_at IS NULL)",
		id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check client exists: %w", err)
	}
	return exists, nil
}

// UpdateClient overwrites every mutable column, deleted_at included.
func UpdateClient(ctx context.Context, q database.DBTX, c *models.Client) (*models.Client, error) {
	query := `
		UPDATE clients
		SET first_name = $2, last_name = $3, birth_date = $4, birth_place = $5, tax_code = $6,
		    id_doc_type = $7, id_doc_number = $8, id_doc_issuer = $9, id_doc_issue_date = $10,
		    address = $11, city = $12, zip = $13, province = $14, phone = $15, email = $16, notes = $17,
		    updated_by = $18, deleted_at = $19, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + clientColumns

	updated, err := scanClient(q.QueryRowContext(ctx, query,
		c.ID, c.FirstName, c.LastName, c.BirthDate, c.BirthPlace, c.TaxCode,
		c.IDDocType, c.IDDocNumber, c.IDDocIssuer, c.IDDocIssueDate,
		c.Address, c.City, c.Zip, c.Province, c.Phone, c.Email, c.Notes,
		c.UpdatedBy, c.DeletedAt,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrClientNotFound
		}
		return nil, fmt.Errorf("update client: %w", err)
	}

	return updated, nil
}

func SetClientDeleted(ctx context.Context, q database.DBTX, id int64, deleted bool, actor *int64) (*models.Client, error) {
	query := `
		UPDATE clients
		SET deleted_at = CASE WHEN $2 THEN NOW() ELSE NULL END,
		    updated_by = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + clientColumns

	c, err := scanClient(q.QueryRowContext(ctx, query, id, deleted, actor))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrClientNotFound
		}
		return nil, fmt.Errorf("set client deleted: %w", err)
	}
	return c, nil
}

func CountClientDocuments(ctx context.Context, q database.DBTX, clientID int64) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE client_id = $1", clientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count client documents: %w", err)
	}
	return count, nil
}

// ListClients pages through active clients, optionally filtered by name or tax code.
func ListClients(ctx context.Context, q database.DBTX, search string, page, pageSize int) (*OffsetPage, error) {
	pattern := "%" + search + "%"
	where := `WHERE deleted_at IS NULL
		AND ($1::text = '' OR first_name ILIKE $2 OR last_name ILIKE $2 OR tax_code ILIKE $2)`

	var total int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients `+where, search, pattern).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := q.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients `+where+`
		 ORDER BY last_name, first_name, id
		 LIMIT $3 OFFSET $4`,
		search, pattern, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(clients, total, page, pageSize), nil
}

// AllClients returns every client, soft-deleted ones included, ordered by id.
func AllClients(ctx context.Context, q database.DBTX) ([]models.Client, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return clients, nil
}
