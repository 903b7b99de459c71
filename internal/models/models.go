package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

type LoginLog struct {
	ID             int64     `json:"id"`
	UserID         *int64    `json:"user_id,omitempty"`
	IP             string    `json:"ip"`
	UserAgent      string    `json:"user_agent"`
	Success        bool      `json:"success"`
	AttemptedEmail *string   `json:"attempted_email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Client struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	BirthPlace     string     `json:"birth_place"`
	TaxCode        string     `json:"tax_code"`
	IDDocType      string     `json:"id_doc_type"`
	IDDocNumber    string     `json:"id_doc_number"`
	IDDocIssuer    string     `json:"id_doc_issuer"`
	IDDocIssueDate *time.Time `json:"id_doc_issue_date,omitempty"`
	Address        string     `json:"address"`
	City           string     `json:"city"`
	Zip            string     `json:"zip"`
	Province       string     `json:"province"`
	Phone          string     `json:"phone"`
	Email          string     `json:"email"`
	Notes          string     `json:"notes"`
	CreatedBy      *int64     `json:"created_by,omitempty"`
	UpdatedBy      *int64     `json:"updated_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Item struct {
	ID            int64               `json:"id"`
	Code          string              `json:"code"`
	Name          string              `json:"name"`
	CategoryID    *int64              `json:"category_id,omitempty"`
	Material      Material            `json:"material"`
	Karat         *int                `json:"karat,omitempty"`
	Purity        decimal.NullDecimal `json:"purity"`
	WeightGrams   decimal.Decimal     `json:"weight_grams"`
	PricePurchase decimal.Decimal     `json:"price_purchase"`
	PriceSale     decimal.Decimal     `json:"price_sale"`
	Description   string              `json:"description"`
	PhotoPath     string              `json:"photo_path"`
	Status        ItemStatus          `json:"status"`
	CreatedBy     *int64              `json:"created_by,omitempty"`
	UpdatedBy     *int64              `json:"updated_by,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	DeletedAt     *time.Time          `json:"deleted_at,omitempty"`
}

type Document struct {
	ID          int64           `json:"id"`
	Type        DocumentType    `json:"type"`
	Number      string          `json:"number"`
	Date        time.Time       `json:"date"`
	ClientID    int64           `json:"client_id"`
	TotalGross  decimal.Decimal `json:"total_gross"`
	TotalNet    decimal.Decimal `json:"total_net"`
	Notes       string          `json:"notes"`
	Status      DocumentStatus  `json:"status"`
	CreatedBy   *int64          `json:"created_by,omitempty"`
	UpdatedBy   *int64          `json:"updated_by,omitempty"`
	ConfirmedBy *int64          `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Items       []DocumentItem  `json:"items,omitempty"`
}

// DocumentItem is a snapshot of an item's attributes at transaction time.
type DocumentItem struct {
	ID          int64               `json:"id"`
	DocumentID  int64               `json:"document_id"`
	ItemID      *int64              `json:"item_id,omitempty"`
	Name        string              `json:"name"`
	Material    Material            `json:"material"`
	Karat       *int                `json:"karat,omitempty"`
	Purity      decimal.NullDecimal `json:"purity"`
	WeightGrams decimal.Decimal     `json:"weight_grams"`
	PriceUnit   decimal.Decimal     `json:"price_unit"`
	Qty         int                 `json:"qty"`
	Subtotal    decimal.Decimal     `json:"subtotal"`
	CreatedAt   time.Time           `json:"created_at"`
}

type GoldQuote struct {
	ID        int64           `json:"id"`
	Provider  string          `json:"provider"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Unit      string          `json:"unit"`
	Currency  string          `json:"currency"`
	FetchedAt time.Time       `json:"fetched_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// StoreSetting is the singleton business profile row.
type StoreSetting struct {
	ID                int         `json:"id"`
	BusinessName      string      `json:"business_name"`
	VATNumber         string      `json:"vat_number"`
	TaxCode           string      `json:"tax_code"`
	Address           string      `json:"address"`
	City              string      `json:"city"`
	Zip               string      `json:"zip"`
	Country           string      `json:"country"`
	Phone             string      `json:"phone"`
	Email             string      `json:"email"`
	LogoPath          string      `json:"logo_path"`
	DocNumberCounters DocCounters `json:"doc_number_counters"`
	Currency          string      `json:"currency"`
	Locale            string      `json:"locale"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

type ActionLog struct {
	ID        int64           `json:"id"`
	UserID    *int64          `json:"user_id,omitempty"`
	Action    string          `json:"action"`
	Model     string          `json:"model"`
	ModelID   int64           `json:"model_id"`
	Diff      json.RawMessage `json:"diff,omitempty"`
	IP        string          `json:"ip"`
	UserAgent string          `json:"user_agent"`
	CreatedAt time.Time       `json:"created_at"`
}
