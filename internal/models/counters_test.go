package models

import (
	"encoding/json"
	"testing"
)

func TestDocCountersScanAndValue(t *testing.T) {
	var c DocCounters
	if err := c.Scan([]byte(`{"2025":{"purchase":2,"sale":1}}`)); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if got := c.Get(2025, DocumentTypePurchase); got != 2 {
		t.Errorf("Expected purchase 2, got %d", got)
	}
	if got := c.Get(2024, DocumentTypeSale); got != 0 {
		t.Errorf("Expected missing bucket to read 0, got %d", got)
	}

	c.Set(2024, DocumentTypeSale, 9)
	v, err := c.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var decoded map[string]map[string]int
	if err := json.Unmarshal(v.([]byte), &decoded); err != nil {
		t.Fatalf("Decode value: %v", err)
	}
	if decoded["2024"]["sale"] != 9 || decoded["2025"]["purchase"] != 2 {
		t.Errorf("Unexpected stored counters: %v", decoded)
	}
}

func TestDocCountersScanNil(t *testing.T) {
	c := DocCounters{"2025": {DocumentTypeSale: 3}}
	if err := c.Scan(nil); err != nil {
		t.Fatalf("Scan nil: %v", err)
	}
	if len(c) != 0 {
		t.Errorf("Expected empty counters, got %v", c)
	}
}

func TestDocCountersMergeMax(t *testing.T) {
	c := DocCounters{"2025": {DocumentTypeSale: 5, DocumentTypePurchase: 1}}
	c.MergeMax(DocCounters{
		"2025": {DocumentTypeSale: 3, DocumentTypePurchase: 4},
		"2024": {DocumentTypeSale: 7},
	})

	if c.Get(2025, DocumentTypeSale) != 5 {
		t.Errorf("Lower incoming value must not lower the counter, got %d", c.Get(2025, DocumentTypeSale))
	}
	if c.Get(2025, DocumentTypePurchase) != 4 {
		t.Errorf("Expected purchase raised to 4, got %d", c.Get(2025, DocumentTypePurchase))
	}
	if c.Get(2024, DocumentTypeSale) != 7 {
		t.Errorf("Expected new bucket 7, got %d", c.Get(2024, DocumentTypeSale))
	}
}

func TestMaterialValid(t *testing.T) {
	for _, m := range []Material{MaterialGold, MaterialSilver, MaterialPlatinum, MaterialOther} {
		if !m.Valid() {
			t.Errorf("Expected %s to be valid", m)
		}
	}
	if Material("argento").Valid() {
		t.Error("Expected argento to be invalid")
	}
}
