// Package numbering issues sequential document numbers of the form
// {year}-{TYPE}-{seq}, one sequence per year and document type.
package numbering

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
)

type Generator struct {
	LockTimeout time.Duration
	MaxRetries  int
}

func NewGenerator(lockTimeout time.Duration, maxRetries int) *Generator {
	return &Generator{LockTimeout: lockTimeout, MaxRetries: maxRetries}
}

// FormatNumber renders a sequence as e.g. 2025-PURCHASE-0001.
func FormatNumber(year int, docType models.DocumentType, seq int) string {
	return fmt.Sprintf("%d-%s-%04d", year, strings.ToUpper(string(docType)), seq)
}

// ParseNumber splits a number produced by FormatNumber.
func ParseNumber(number string) (year int, docType models.DocumentType, seq int, ok bool) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return 0, "", 0, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", 0, false
	}
	docType, err = models.ParseDocumentType(strings.ToLower(parts[1]))
	if err != nil {
		return 0, "", 0, false
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return 0, "", 0, false
	}
	return year, docType, seq, true
}

// Generate increments the counter for the reference date's year inside tx.
// The settings row stays locked until tx ends, so the number is only final
// once the caller commits.
func (g *Generator) Generate(ctx context.Context, tx *sql.Tx, docType models.DocumentType, referenceDate time.Time) (string, error) {
	if _, err := models.ParseDocumentType(string(docType)); err != nil {
		return "", apperr.Invalid("type", "must be purchase or sale, got %q", docType)
	}

	if err := database.SetLockTimeout(ctx, tx, g.LockTimeout); err != nil {
		return "", err
	}

	settings, err := store.LockSettings(ctx, tx)
	if err != nil {
		return "", err
	}

	year := referenceDate.Year()
	seq := settings.DocNumberCounters.Get(year, docType) + 1
	settings.DocNumberCounters.Set(year, docType, seq)

	if err := store.SaveCounters(ctx, tx, settings.DocNumberCounters); err != nil {
		return "", err
	}

	return FormatNumber(year, docType, seq), nil
}

// Next issues a number in its own transaction, retrying lock timeouts and
// serialization failures.
func (g *Generator) Next(ctx context.Context, db *sql.DB, docType models.DocumentType, referenceDate time.Time) (string, error) {
	opts := database.DefaultTxOptions()
	opts.MaxRetries = g.MaxRetries

	var number string
	err := database.WithRetry(ctx, db, opts, func(tx *sql.Tx) error {
		var err error
		number, err = g.Generate(ctx, tx, docType, referenceDate)
		return err
	})
	if err != nil {
		return "", err
	}
	return number, nil
}
