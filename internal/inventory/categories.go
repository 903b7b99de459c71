package inventory

import (
	"context"
	"database/sql"
	"strings"
	"unicode"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
	"github.com/safar/gold-ledger/internal/validation"
)

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"max=255"`
	Description string `json:"description"`
}

// Slugify lowercases s and collapses every run of non-alphanumerics to "-".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (s *Service) CreateCategory(ctx context.Context, actor *int64, in CategoryInput) (*models.Category, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}
	if slug == "" {
		return nil, apperr.Invalid("slug", "cannot be derived from name %q", in.Name)
	}

	var created *models.Category
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = store.CreateCategory(ctx, tx, strings.TrimSpace(in.Name), slug, in.Description)
		if err != nil {
			return conflictOnDuplicate(err, "category", slug)
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionCreated, Model: "category", ModelID: created.ID, After: created,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return store.ListCategories(ctx, s.db)
}
