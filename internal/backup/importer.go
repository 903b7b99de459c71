package backup

import (
	"context"
	"database/sql"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/numbering"
	"github.com/safar/gold-ledger/internal/store"
)

// importer carries the id remapping of one import. Keys are the ids found in
// the payload, values the ids in this database.
type importer struct {
	recorder *audit.Recorder
	actor    *int64
	mode     Mode
	report   Report

	categories map[int64]int64
	clients    map[int64]int64
	items      map[int64]int64
	documents  map[int64]int64
	// what happened to each payload document; lines follow their document
	outcomes map[int64]outcome
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeImported
	outcomeUpdated
)

// rowOps resolves one payload row against the database by natural key.
type rowOps[T any] struct {
	find   func() (*T, error)
	create func() (*T, error)
	update func(existing *T) (*T, error)
	id     func(*T) int64
}

// apply inserts, updates or skips one row and returns its local id and what
// was done with it.
func apply[T any](ctx context.Context, im *importer, tx *sql.Tx, entity string, ops rowOps[T]) (int64, outcome, error) {
	counts := im.report.entity(entity)

	existing, err := ops.find()
	if err != nil && !database.IsNotFound(err) {
		return 0, outcomeSkipped, err
	}

	if existing == nil || err != nil {
		created, err := ops.create()
		if err != nil {
			return 0, outcomeSkipped, err
		}
		counts.Imported++
		return ops.id(created), outcomeImported, im.audit(ctx, tx, entity, ops.id(created), nil, created)
	}

	if im.mode == ModeAppend {
		counts.Skipped++
		return ops.id(existing), outcomeSkipped, nil
	}

	updated, err := ops.update(existing)
	if err != nil {
		return 0, outcomeSkipped, err
	}
	counts.Updated++
	return ops.id(updated), outcomeUpdated, im.audit(ctx, tx, entity, ops.id(updated), existing, updated)
}

func (im *importer) audit(ctx context.Context, tx *sql.Tx, model string, id int64, before, after any) error {
	return im.recorder.Record(ctx, tx, audit.Entry{
		Actor: im.actor, Action: audit.ActionImported, Model: model, ModelID: id, Before: before, After: after,
	})
}

func (im *importer) run(ctx context.Context, tx *sql.Tx, data *Data) error {
	steps := []func(context.Context, *sql.Tx, *Data) error{
		im.settings,
		im.importCategories,
		im.importClients,
		im.importItems,
		im.importDocuments,
		im.importLines,
		im.raiseCounters,
	}
	for _, step := range steps {
		if err := step(ctx, tx, data); err != nil {
			return err
		}
	}
	return nil
}

// settings creates the profile when absent. In replace mode the profile is
// overwritten and counters keep the larger value per bucket.
func (im *importer) settings(ctx context.Context, tx *sql.Tx, data *Data) error {
	if len(data.StoreSettings) == 0 {
		return nil
	}
	incoming := data.StoreSettings[0]
	counts := im.report.entity("settings")

	current, err := store.GetSettings(ctx, tx)
	if err != nil {
		return err
	}

	if current != nil && im.mode == ModeAppend {
		counts.Skipped++
		return nil
	}

	if current != nil {
		current, err = store.LockSettings(ctx, tx)
		if err != nil {
			return err
		}
		counters := current.DocNumberCounters
		if counters == nil {
			counters = models.DocCounters{}
		}
		counters.MergeMax(incoming.DocNumberCounters)
		incoming.DocNumberCounters = counters
	}
	if incoming.DocNumberCounters == nil {
		incoming.DocNumberCounters = models.DocCounters{}
	}

	if _, err := store.SaveSettings(ctx, tx, &incoming); err != nil {
		return err
	}
	if current == nil {
		counts.Imported++
	} else {
		counts.Updated++
	}
	return nil
}

func (im *importer) importCategories(ctx context.Context, tx *sql.Tx, data *Data) error {
	for _, c := range data.Categories {
		id, _, err := apply(ctx, im, tx, "category", rowOps[models.Category]{
			find: func() (*models.Category, error) { return store.GetCategoryBySlug(ctx, tx, c.Slug) },
			create: func() (*models.Category, error) {
				return store.CreateCategory(ctx, tx, c.Name, c.Slug, c.Description)
			},
			update: func(existing *models.Category) (*models.Category, error) {
				c.ID = existing.ID
				return store.UpdateCategory(ctx, tx, &c)
			},
			id: func(c *models.Category) int64 { return c.ID },
		})
		if err != nil {
			return err
		}
		im.categories[c.ID] = id
	}
	return nil
}

func (im *importer) importClients(ctx context.Context, tx *sql.Tx, data *Data) error {
	for _, c := range data.Clients {
		payloadID := c.ID
		c.CreatedBy, c.UpdatedBy = im.actor, im.actor

		id, _, err := apply(ctx, im, tx, "client", rowOps[models.Client]{
			find:   func() (*models.Client, error) { return store.GetClientByTaxCode(ctx, tx, c.TaxCode) },
			create: func() (*models.Client, error) { return store.CreateClient(ctx, tx, &c) },
			update: func(existing *models.Client) (*models.Client, error) {
				c.ID = existing.ID
				return store.UpdateClient(ctx, tx, &c)
			},
			id: func(c *models.Client) int64 { return c.ID },
		})
		if err != nil {
			return err
		}
		im.clients[payloadID] = id
	}
	return nil
}

func (im *importer) importItems(ctx context.Context, tx *sql.Tx, data *Data) error {
	for _, it := range data.Items {
		payloadID := it.ID
		it.CreatedBy, it.UpdatedBy = im.actor, im.actor

		if it.CategoryID != nil {
			local, ok := im.categories[*it.CategoryID]
			if !ok {
				return apperr.Invalid("items", "item %s references unknown category %d", it.Code, *it.CategoryID)
			}
			it.CategoryID = &local
		}

		id, _, err := apply(ctx, im, tx, "item", rowOps[models.Item]{
			find:   func() (*models.Item, error) { return store.GetItemByCode(ctx, tx, it.Code) },
			create: func() (*models.Item, error) { return store.CreateItem(ctx, tx, &it) },
			update: func(existing *models.Item) (*models.Item, error) {
				it.ID = existing.ID
				return store.UpdateItem(ctx, tx, &it)
			},
			id: func(it *models.Item) int64 { return it.ID },
		})
		if err != nil {
			return err
		}
		im.items[payloadID] = id
	}
	return nil
}

func (im *importer) importDocuments(ctx context.Context, tx *sql.Tx, data *Data) error {
	for _, d := range data.Documents {
		payloadID := d.ID
		d.Items = nil
		d.CreatedBy, d.UpdatedBy = im.actor, im.actor
		if d.ConfirmedBy != nil {
			d.ConfirmedBy = im.actor
		}

		local, ok := im.clients[d.ClientID]
		if !ok {
			return apperr.Invalid("documents", "document %s references unknown client %d", d.Number, d.ClientID)
		}
		d.ClientID = local

		id, result, err := apply(ctx, im, tx, "document", rowOps[models.Document]{
			find:   func() (*models.Document, error) { return store.GetDocumentByNumber(ctx, tx, d.Number) },
			create: func() (*models.Document, error) { return store.CreateDocument(ctx, tx, &d) },
			update: func(existing *models.Document) (*models.Document, error) {
				if existing.Type != d.Type {
					return nil, apperr.Invalid("documents", "document %s changes type from %s to %s", d.Number, existing.Type, d.Type)
				}
				d.ID = existing.ID
				return store.UpdateDocument(ctx, tx, &d)
			},
			id: func(d *models.Document) int64 { return d.ID },
		})
		if err != nil {
			return err
		}
		im.documents[payloadID] = id
		im.outcomes[payloadID] = result
	}
	return nil
}

// importLines writes the lines of every document written by this import. Lines
// of an updated document overwrite its existing lines in order, so a repeated
// import inserts nothing. Existing lines beyond the payload are removed.
func (im *importer) importLines(ctx context.Context, tx *sql.Tx, data *Data) error {
	counts := im.report.entity("document_item")
	current := map[int64][]models.DocumentItem{}

	for _, line := range data.DocumentItems {
		docID, ok := im.documents[line.DocumentID]
		if !ok {
			return apperr.Invalid("document_items", "line %d references unknown document %d", line.ID, line.DocumentID)
		}
		result := im.outcomes[line.DocumentID]
		if result == outcomeSkipped {
			counts.Skipped++
			continue
		}

		line.DocumentID = docID
		if line.ItemID != nil {
			itemID, ok := im.items[*line.ItemID]
			if !ok {
				return apperr.Invalid("document_items", "line %d references unknown item %d", line.ID, *line.ItemID)
			}
			line.ItemID = &itemID
		}

		if result == outcomeUpdated {
			existing, loaded := current[docID]
			if !loaded {
				var err error
				existing, err = store.ListDocumentItems(ctx, tx, docID)
				if err != nil {
					return err
				}
			}
			if len(existing) > 0 {
				line.ID = existing[0].ID
				current[docID] = existing[1:]
				if _, err := store.UpdateDocumentItem(ctx, tx, &line); err != nil {
					return err
				}
				counts.Updated++
				continue
			}
			current[docID] = existing
		}

		if _, err := store.InsertDocumentItem(ctx, tx, &line); err != nil {
			return err
		}
		counts.Imported++
	}

	for payloadID, result := range im.outcomes {
		if result != outcomeUpdated {
			continue
		}
		docID := im.documents[payloadID]
		leftover, loaded := current[docID]
		if !loaded {
			// Updated document with no lines in the payload ends up with none.
			if err := store.DeleteDocumentItems(ctx, tx, docID); err != nil {
				return err
			}
			continue
		}
		for _, line := range leftover {
			if err := store.DeleteDocumentItem(ctx, tx, line.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// raiseCounters keeps numbering ahead of every imported document number.
func (im *importer) raiseCounters(ctx context.Context, tx *sql.Tx, data *Data) error {
	seen := models.DocCounters{}
	for _, d := range data.Documents {
		if year, docType, seq, ok := numbering.ParseNumber(d.Number); ok {
			if seq > seen.Get(year, docType) {
				seen.Set(year, docType, seq)
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	settings, err := store.LockSettings(ctx, tx)
	if err != nil {
		return err
	}
	counters := settings.DocNumberCounters
	if counters == nil {
		counters = models.DocCounters{}
	}
	counters.MergeMax(seen)
	return store.SaveCounters(ctx, tx, counters)
}
