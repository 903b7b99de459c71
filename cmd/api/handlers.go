package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/backup"
	"github.com/safar/gold-ledger/internal/documents"
	"github.com/safar/gold-ledger/internal/goldprice"
	"github.com/safar/gold-ledger/internal/inventory"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
)

type server struct {
	docs      *documents.Service
	inventory *inventory.Service
	gold      *goldprice.Service
	backup    *backup.Service
	health    func(context.Context) error
	logger    *logrus.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("POST /documents", s.handleCreateDocument)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("PUT /documents/{id}", s.handleUpdateDocument)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /documents/{id}/confirm", s.documentAction(s.docs.Confirm))
	mux.HandleFunc("POST /documents/{id}/cancel", s.documentAction(s.docs.Cancel))
	mux.HandleFunc("POST /documents/{id}/duplicate", s.documentAction(s.docs.Duplicate))

	mux.HandleFunc("GET /clients", s.handleListClients)
	mux.HandleFunc("POST /clients", s.handleCreateClient)
	mux.HandleFunc("GET /clients/{id}", s.handleGetClient)
	mux.HandleFunc("PUT /clients/{id}", s.handleUpdateClient)
	mux.HandleFunc("DELETE /clients/{id}", s.handleDeleteClient)
	mux.HandleFunc("POST /clients/{id}/restore", s.handleRestoreClient)

	mux.HandleFunc("GET /users", s.handleListUsers)
	mux.HandleFunc("POST /users", s.handleCreateUser)
	mux.HandleFunc("GET /users/{id}", s.handleGetUser)
	mux.HandleFunc("PUT /users/{id}", s.handleUpdateUser)
	mux.HandleFunc("DELETE /users/{id}", s.handleDeleteUser)

	mux.HandleFunc("GET /settings/store", s.handleGetStoreProfile)
	mux.HandleFunc("PUT /settings/store", s.handleUpdateStoreProfile)

	mux.HandleFunc("GET /action-logs", s.handleHistory)

	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)

	mux.HandleFunc("GET /items", s.handleListItems)
	mux.HandleFunc("POST /items", s.handleCreateItem)
	mux.HandleFunc("GET /items/{id}", s.handleGetItem)
	mux.HandleFunc("PUT /items/{id}", s.handleUpdateItem)
	mux.HandleFunc("POST /items/{id}/archive", s.itemAction(s.inventory.ArchiveItem))
	mux.HandleFunc("POST /items/{id}/restore", s.itemAction(s.inventory.RestoreItem))

	mux.HandleFunc("GET /gold/latest", s.handleGoldLatest)
	mux.HandleFunc("POST /gold/fetch", s.handleGoldFetch)
	mux.HandleFunc("GET /gold/history", s.handleGoldHistory)
	mux.HandleFunc("GET /gold/test", s.handleGoldTest)
	mux.HandleFunc("GET /gold/calculate", s.handleGoldCalculate)

	mux.HandleFunc("GET /backup/export", s.handleBackupExport)
	mux.HandleFunc("POST /backup/import", s.handleBackupImport)

	return withRequestMeta(s.logger, mux)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health(r.Context()); err != nil {
		s.logger.WithError(err).Warn("health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Documents

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DocumentFilter{
		Type:   models.DocumentType(q.Get("type")),
		Status: models.DocumentStatus(q.Get("status")),
	}
	for key, dst := range map[string]**time.Time{"date_from": &filter.DateFrom, "date_to": &filter.DateTo} {
		if raw := q.Get(key); raw != "" {
			d, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				writeError(w, s.logger, apperr.Invalid(key, "must be YYYY-MM-DD"))
				return
			}
			*dst = &d
		}
	}

	page, err := s.docs.List(r.Context(), filter, q.Get("cursor"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in documents.CreateDocumentInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	doc, err := s.docs.Create(r.Context(), actor, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (s *server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	doc, err := s.docs.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in documents.UpdateDocumentInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	doc, err := s.docs.Update(r.Context(), actor, id, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.docs.Delete(r.Context(), actor, id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// documentAction serves confirm, cancel and duplicate.
func (s *server) documentAction(op func(context.Context, *int64, int64) (*models.Document, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		id, err := pathID(r)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		doc, err := op(r.Context(), actor, id)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, doc)
	}
}

// Inventory

func (s *server) handleListClients(w http.ResponseWriter, r *http.Request) {
	page, err := s.inventory.ListClients(r.Context(), r.URL.Query().Get("search"), queryInt(r, "page", 1), queryInt(r, "page_size", 0))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in inventory.ClientInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	client, err := s.inventory.CreateClient(r.Context(), actor, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, client)
}

func (s *server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	client, err := s.inventory.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, client)
}

func (s *server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in inventory.ClientInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	client, err := s.inventory.UpdateClient(r.Context(), actor, id, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, client)
}

func (s *server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	s.idAction(w, r, s.inventory.DeleteClient)
}

func (s *server) handleRestoreClient(w http.ResponseWriter, r *http.Request) {
	s.idAction(w, r, s.inventory.RestoreClient)
}

func (s *server) idAction(w http.ResponseWriter, r *http.Request, op func(context.Context, *int64, int64) error) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := op(r.Context(), actor, id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := s.inventory.ListUsers(r.Context(), queryInt(r, "page", 1), queryInt(r, "page_size", 0))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in inventory.UserInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	user, err := s.inventory.CreateUser(r.Context(), in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	user, err := s.inventory.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in inventory.UserUpdateInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	user, err := s.inventory.UpdateUser(r.Context(), actor, id, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	s.idAction(w, r, s.inventory.DeleteUser)
}

func (s *server) handleGetStoreProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.inventory.GetStoreProfile(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *server) handleUpdateStoreProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in inventory.StoreProfileInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	profile, err := s.inventory.UpdateStoreProfile(r.Context(), actor, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logs, err := s.inventory.History(r.Context(), q.Get("model"), int64(queryInt(r, "model_id", 0)))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (s *server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.inventory.ListCategories(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (s *server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in inventory.CategoryInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	category, err := s.inventory.CreateCategory(r.Context(), actor, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

func (s *server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ItemFilter{
		Status:     models.ItemStatus(q.Get("status")),
		CategoryID: int64(queryInt(r, "category_id", 0)),
		Search:     q.Get("search"),
	}

	page, err := s.inventory.ListItems(r.Context(), filter, queryInt(r, "page", 1), queryInt(r, "page_size", 0))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in inventory.ItemInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	item, err := s.inventory.CreateItem(r.Context(), actor, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (s *server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	item, err := s.inventory.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var in inventory.ItemInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	item, err := s.inventory.UpdateItem(r.Context(), actor, id, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *server) itemAction(op func(context.Context, *int64, int64) (*models.Item, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		id, err := pathID(r)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		item, err := op(r.Context(), actor, id)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, item)
	}
}

// Gold price

func (s *server) handleGoldLatest(w http.ResponseWriter, r *http.Request) {
	quote, err := s.gold.GetLatest(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (s *server) handleGoldFetch(w http.ResponseWriter, r *http.Request) {
	quote, err := s.gold.FetchAndPersist(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if quote == nil {
		respondError(w, http.StatusBadGateway, "gold price provider unavailable")
		return
	}
	respondJSON(w, http.StatusCreated, quote)
}

func (s *server) handleGoldHistory(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.gold.History(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, quotes)
}

func (s *server) handleGoldTest(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.gold.TestConnection(r.Context()))
}

func (s *server) handleGoldCalculate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	weight, err := decimal.NewFromString(q.Get("weight_grams"))
	if err != nil {
		writeError(w, s.logger, apperr.Invalid("weight_grams", "must be a number"))
		return
	}

	v, err := s.gold.Valuate(r.Context(), weight, queryInt(r, "karat", 0))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// Backup

func (s *server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.backup.Export(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	name := "backup-" + time.Now().UTC().Format("20060102-150405") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	respondJSON(w, http.StatusOK, snap)
}

func (s *server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	mode, err := backup.ParseMode(strings.ToLower(r.URL.Query().Get("mode")))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var snap backup.Snapshot
	if err := decodeBody(r, &snap); err != nil {
		writeError(w, s.logger, err)
		return
	}

	report, err := s.backup.Import(r.Context(), actor, &snap, mode)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
