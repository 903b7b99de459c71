package models

import "fmt"

type Material string

const (
	MaterialGold     Material = "gold"
	MaterialSilver   Material = "silver"
	MaterialPlatinum Material = "platinum"
	MaterialOther    Material = "other"
)

func (m Material) Valid() bool {
	switch m {
	case MaterialGold, MaterialSilver, MaterialPlatinum, MaterialOther:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemStatusInStock  ItemStatus = "in_stock"
	ItemStatusArchived ItemStatus = "archived"
)

type DocumentType string

const (
	DocumentTypePurchase DocumentType = "purchase"
	DocumentTypeSale     DocumentType = "sale"
)

func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(s) {
	case DocumentTypePurchase, DocumentTypeSale:
		return DocumentType(s), nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusConfirmed DocumentStatus = "confirmed"
	DocumentStatusCancelled DocumentStatus = "cancelled"
)

const (
	UnitGram  = "g"
	UnitOunce = "oz"
)
