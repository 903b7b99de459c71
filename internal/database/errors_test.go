package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient},
		{"wrapped lock not available", fmt.Errorf("lock settings: %w", &pq.Error{Code: "55P03"}), ErrorClassTransient},
		{"lock timeout sentinel", ErrLockTimeout, ErrorClassTransient},
		{"unique violation", &pq.Error{Code: "23505"}, ErrorClassPermanent},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent},
		{"plain", errors.New("boom"), ErrorClassPermanent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Errorf("ClassifyError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	constraint, ok := IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "documents_number_key"}))
	if !ok {
		t.Fatal("Expected unique violation")
	}
	if constraint != "documents_number_key" {
		t.Errorf("Expected documents_number_key, got %s", constraint)
	}

	if _, ok := IsUniqueViolation(errors.New("boom")); ok {
		t.Error("Plain error should not be a unique violation")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("get: %w", ErrDocumentNotFound)) {
		t.Error("Expected wrapped ErrDocumentNotFound to be not found")
	}
	if IsNotFound(ErrLockTimeout) {
		t.Error("ErrLockTimeout is not a not-found error")
	}
}
