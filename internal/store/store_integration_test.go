package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
	"github.com/safar/gold-ledger/internal/testutil"
)

func TestClientSoftDelete(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	c, err := store.CreateClient(ctx, db, &models.Client{FirstName: "Mario", LastName: "Rossi", TaxCode: "RSSMRA80A01H501U"})
	if err != nil {
		t.Fatalf("Create client: %v", err)
	}

	if _, err := store.SetClientDeleted(ctx, db, c.ID, true, nil); err != nil {
		t.Fatalf("Delete client: %v", err)
	}

	active, err := store.ActiveClientExists(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("Active client exists: %v", err)
	}
	if active {
		t.Error("Soft-deleted client should not be active")
	}

	page, err := store.ListClients(ctx, db, "", 1, 20)
	if err != nil {
		t.Fatalf("List clients: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Expected soft-deleted client hidden from list, total %d", page.Total)
	}

	all, err := store.AllClients(ctx, db)
	if err != nil {
		t.Fatalf("All clients: %v", err)
	}
	if len(all) != 1 || all[0].DeletedAt == nil {
		t.Errorf("Expected the deleted client in the full listing, got %+v", all)
	}

	restored, err := store.SetClientDeleted(ctx, db, c.ID, false, nil)
	if err != nil {
		t.Fatalf("Restore client: %v", err)
	}
	if restored.DeletedAt != nil {
		t.Error("Restored client should have no deleted_at")
	}
}

func TestDuplicateTaxCodeIsUniqueViolation(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	c := &models.Client{FirstName: "Anna", LastName: "Bianchi", TaxCode: "BNCNNA90B41F205X"}
	if _, err := store.CreateClient(ctx, db, c); err != nil {
		t.Fatalf("Create client: %v", err)
	}

	_, err := store.CreateClient(ctx, db, c)
	if _, ok := database.IsUniqueViolation(err); !ok {
		t.Errorf("Expected unique violation, got: %v", err)
	}
}

func TestListItemsFilters(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	cat, err := store.CreateCategory(ctx, db, "Rings", "rings", "")
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}

	karat := 18
	for i, code := range []string{"RING-1", "RING-2", "CHAIN-1"} {
		it := &models.Item{
			Code:          code,
			Name:          code,
			Material:      models.MaterialGold,
			Karat:         &karat,
			WeightGrams:   decimal.RequireFromString("3.250"),
			PricePurchase: decimal.NewFromInt(100),
			PriceSale:     decimal.NewFromInt(150),
			Status:        models.ItemStatusInStock,
		}
		if i < 2 {
			it.CategoryID = &cat.ID
		}
		if _, err := store.CreateItem(ctx, db, it); err != nil {
			t.Fatalf("Create item %s: %v", code, err)
		}
	}

	ring, err := store.GetItemByCode(ctx, db, "RING-2")
	if err != nil {
		t.Fatalf("Get item by code: %v", err)
	}
	if _, err := store.SetItemStatus(ctx, db, ring.ID, models.ItemStatusArchived, nil); err != nil {
		t.Fatalf("Archive item: %v", err)
	}

	page, err := store.ListItems(ctx, db, store.ItemFilter{CategoryID: cat.ID}, 1, 10)
	if err != nil {
		t.Fatalf("List items: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Expected 2 items in category, got %d", page.Total)
	}

	page, err = store.ListItems(ctx, db, store.ItemFilter{Status: models.ItemStatusInStock, Search: "ring"}, 1, 10)
	if err != nil {
		t.Fatalf("List items: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Expected 1 in-stock ring, got %d", page.Total)
	}

	if !ring.WeightGrams.Equal(decimal.RequireFromString("3.25")) {
		t.Errorf("Expected weight 3.25, got %s", ring.WeightGrams)
	}
}

func TestListDocumentsCursor(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	c, err := store.CreateClient(ctx, db, &models.Client{FirstName: "Luca", LastName: "Verdi", TaxCode: "VRDLCU75C12L219K"})
	if err != nil {
		t.Fatalf("Create client: %v", err)
	}

	for i := 0; i < 15; i++ {
		docType := models.DocumentTypePurchase
		if i%3 == 0 {
			docType = models.DocumentTypeSale
		}
		_, err := store.CreateDocument(ctx, db, &models.Document{
			Type:       docType,
			Number:     "TEST-" + string(rune('A'+i)),
			Date:       time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC),
			ClientID:   c.ID,
			TotalGross: decimal.Zero,
			TotalNet:   decimal.Zero,
			Status:     models.DocumentStatusDraft,
		})
		if err != nil {
			t.Fatalf("Create document %d: %v", i, err)
		}
	}

	page1, err := store.ListDocumentsCursor(ctx, db, store.DocumentFilter{}, "", 10)
	if err != nil {
		t.Fatalf("List documents page 1: %v", err)
	}
	if !page1.HasMore || page1.NextCursor == "" {
		t.Error("Page 1 should have more results and a cursor")
	}

	page2, err := store.ListDocumentsCursor(ctx, db, store.DocumentFilter{}, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List documents page 2: %v", err)
	}
	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}
	if docs := page2.Items.([]models.Document); len(docs) != 5 {
		t.Errorf("Expected 5 documents on page 2, got %d", len(docs))
	}

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	sales, err := store.ListDocumentsCursor(ctx, db, store.DocumentFilter{
		Type:     models.DocumentTypeSale,
		DateFrom: &from,
		DateTo:   &to,
	}, "", 50)
	if err != nil {
		t.Fatalf("List sales: %v", err)
	}
	if docs := sales.Items.([]models.Document); len(docs) != 3 {
		t.Errorf("Expected 3 sales in the first week, got %d", len(docs))
	}
}

func TestDuplicateDocumentNumberIsConflict(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	c, err := store.CreateClient(ctx, db, &models.Client{FirstName: "Anna", LastName: "Bianchi", TaxCode: "BNCNNA82D41F205X"})
	if err != nil {
		t.Fatalf("Create client: %v", err)
	}

	doc := &models.Document{
		Type:       models.DocumentTypeSale,
		Number:     "2025-SALE-0001",
		Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ClientID:   c.ID,
		TotalGross: decimal.Zero,
		TotalNet:   decimal.Zero,
		Status:     models.DocumentStatusDraft,
	}
	if _, err := store.CreateDocument(ctx, db, doc); err != nil {
		t.Fatalf("Create document: %v", err)
	}

	_, err = store.CreateDocument(ctx, db, doc)
	if !apperr.IsStateConflict(err) {
		t.Errorf("Expected conflict on duplicate number, got: %v", err)
	}
}

func TestLockSettingsTimesOut(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	tx1, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Begin tx1: %v", err)
	}
	defer func() { _ = tx1.Rollback() }()

	if _, err := store.LockSettings(ctx, tx1); err != nil {
		t.Fatalf("Lock settings in tx1: %v", err)
	}

	tx2, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Begin tx2: %v", err)
	}
	defer func() { _ = tx2.Rollback() }()

	if err := database.SetLockTimeout(ctx, tx2, 100*time.Millisecond); err != nil {
		t.Fatalf("Set lock timeout: %v", err)
	}

	_, err = store.LockSettings(ctx, tx2)
	if !errors.Is(err, database.ErrLockTimeout) {
		t.Errorf("Expected lock timeout, got: %v", err)
	}
	if !database.IsRetryable(err) {
		t.Error("Lock timeout should be retryable")
	}

	opts := database.DefaultTxOptions()
	opts.MaxRetries = 1
	opts.LockTimeout = 50 * time.Millisecond
	attempts := 0
	err = database.WithRetry(ctx, db, opts, func(tx *sql.Tx) error {
		attempts++
		_, err := store.LockSettings(ctx, tx)
		return err
	})
	var concErr *apperr.ConcurrencyError
	if !errors.As(err, &concErr) {
		t.Errorf("Expected ConcurrencyError after retries, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestSettingsCounters(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	s, err := store.GetSettings(ctx, db)
	if err != nil {
		t.Fatalf("Get settings: %v", err)
	}
	if s != nil {
		t.Fatal("Settings should not exist before first use")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Begin tx: %v", err)
	}
	locked, err := store.LockSettings(ctx, tx)
	if err != nil {
		t.Fatalf("Lock settings: %v", err)
	}
	locked.DocNumberCounters.Set(2025, models.DocumentTypeSale, 7)
	if err := store.SaveCounters(ctx, tx, locked.DocNumberCounters); err != nil {
		t.Fatalf("Save counters: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	s, err = store.GetSettings(ctx, db)
	if err != nil {
		t.Fatalf("Get settings: %v", err)
	}
	if got := s.DocNumberCounters.Get(2025, models.DocumentTypeSale); got != 7 {
		t.Errorf("Expected sale counter 7, got %d", got)
	}
	if s.Currency != "EUR" {
		t.Errorf("Expected default currency EUR, got %q", s.Currency)
	}
}

func TestLatestQuote(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := store.LatestQuote(ctx, db); err != database.ErrQuoteNotFound {
		t.Errorf("Expected quote not found, got: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, bid := range []string{"64.3015", "65.0000", "63.1000"} {
		_, err := store.InsertQuote(ctx, db, &models.GoldQuote{
			Provider:  "mock",
			Bid:       decimal.RequireFromString(bid),
			Ask:       decimal.RequireFromString(bid).Add(decimal.NewFromInt(1)),
			Unit:      models.UnitGram,
			Currency:  "EUR",
			FetchedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Insert quote %d: %v", i, err)
		}
	}

	latest, err := store.LatestQuote(ctx, db)
	if err != nil {
		t.Fatalf("Latest quote: %v", err)
	}
	if !latest.Bid.Equal(decimal.RequireFromString("63.1")) {
		t.Errorf("Expected newest bid 63.1, got %s", latest.Bid)
	}

	history, err := store.ListQuotes(ctx, db, 2)
	if err != nil {
		t.Fatalf("List quotes: %v", err)
	}
	if len(history) != 2 || !history[1].Bid.Equal(decimal.NewFromInt(65)) {
		t.Errorf("Unexpected history: %+v", history)
	}
}

func TestActionLogRoundTrip(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := testutil.MustCreateUser(t, db, "auditor@example.com")

	_, err := store.InsertActionLog(ctx, db, &models.ActionLog{
		UserID:  &userID,
		Action:  "updated",
		Model:   "item",
		ModelID: 9,
		Diff:    []byte(`{"name":{"old":"a","new":"b"}}`),
		IP:      "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("Insert action log: %v", err)
	}

	logs, err := store.ListActionLogs(ctx, db, "item", 9)
	if err != nil {
		t.Fatalf("List action logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected 1 log, got %d", len(logs))
	}
	if logs[0].UserID == nil || *logs[0].UserID != userID {
		t.Errorf("Expected user %d, got %v", userID, logs[0].UserID)
	}
	if len(logs[0].Diff) == 0 {
		t.Error("Expected diff to be stored")
	}
}
