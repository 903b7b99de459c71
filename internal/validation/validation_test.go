package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/apperr"
)

type line struct {
	Qty    int             `json:"qty" validate:"gte=1"`
	Weight decimal.Decimal `json:"weight_grams" validate:"gt=0"`
}

type input struct {
	Material string `json:"material" validate:"required,oneof=gold silver"`
	Lines    []line `json:"lines" validate:"min=1,dive"`
}

func TestStructValid(t *testing.T) {
	in := input{
		Material: "gold",
		Lines:    []line{{Qty: 1, Weight: decimal.RequireFromString("2.5")}},
	}
	if err := Struct(in); err != nil {
		t.Errorf("Expected valid input, got: %v", err)
	}
}

func TestStructReportsEveryField(t *testing.T) {
	in := input{
		Material: "wood",
		Lines:    []line{{Qty: 0, Weight: decimal.Zero}},
	}

	err := Struct(in)
	var errs apperr.ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("Expected ValidationErrors, got %T: %v", err, err)
	}
	if len(errs) != 3 {
		t.Fatalf("Expected 3 failures, got %d: %v", len(errs), err)
	}

	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, f := range []string{"material", "lines[0].qty", "lines[0].weight_grams"} {
		if !fields[f] {
			t.Errorf("Expected failure on %s, got %v", f, err)
		}
	}

	if !apperr.IsValidation(err) {
		t.Error("ValidationErrors should satisfy IsValidation")
	}
}

func TestStructEmptyLines(t *testing.T) {
	err := Struct(input{Material: "silver"})
	if !apperr.IsValidation(err) {
		t.Errorf("Expected validation error for empty lines, got: %v", err)
	}
}
