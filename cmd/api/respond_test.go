package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/logging"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Invalid("qty", "must be positive"), http.StatusUnprocessableEntity},
		{"validation list", apperr.ValidationErrors{{Field: "a", Message: "b"}}, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("load: %w", database.ErrDocumentNotFound), http.StatusNotFound},
		{"conflict", &apperr.StateConflictError{Entity: "document", ID: 1, State: "confirmed", Op: "update"}, http.StatusConflict},
		{"integrity", apperr.ErrInvalidSignature, http.StatusBadRequest},
		{"concurrency", &apperr.ConcurrencyError{Err: database.ErrLockTimeout}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteErrorValidationBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, logging.Discard(), apperr.ValidationErrors{
		{Field: "items[0].qty", Message: "must be at least 1"},
		{Field: "client_id", Message: "is required"},
	})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", rec.Code)
	}
	var body struct {
		Error  string       `json:"error"`
		Fields []fieldError `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Fields) != 2 || body.Fields[0].Field != "items[0].qty" {
		t.Errorf("Unexpected fields: %+v", body.Fields)
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, logging.Discard(), errors.New("pq: password authentication failed"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["error"] != "internal error" {
		t.Errorf("Expected generic message, got %q", body["error"])
	}
}

func TestActorFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor, err := actorFrom(req); actor != nil || err != nil {
		t.Errorf("Expected anonymous actor, got %v, %v", actor, err)
	}

	req.Header.Set(actorHeader, "42")
	actor, err := actorFrom(req)
	if err != nil || actor == nil || *actor != 42 {
		t.Errorf("Expected actor 42, got %v, %v", actor, err)
	}

	for _, bad := range []string{"abc", "0", "-3"} {
		req.Header.Set(actorHeader, bad)
		if _, err := actorFrom(req); !apperr.IsValidation(err) {
			t.Errorf("Expected validation error for %q, got %v", bad, err)
		}
	}
}

func TestHealth(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{errors.New("postgres: connection refused"), http.StatusServiceUnavailable},
	} {
		srv := &server{logger: logging.Discard(), health: func(context.Context) error { return tt.err }}
		rec := httptest.NewRecorder()
		srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != tt.want {
			t.Errorf("Expected %d, got %d", tt.want, rec.Code)
		}
	}
}

func TestRoutesRejectBadInputBeforeServices(t *testing.T) {
	srv := &server{logger: logging.Discard()}
	handler := srv.routes()

	tests := []struct {
		method string
		path   string
		actor  string
		want   int
	}{
		{http.MethodGet, "/documents/abc", "", http.StatusUnprocessableEntity},
		{http.MethodPost, "/documents/1/confirm", "nobody", http.StatusUnprocessableEntity},
		{http.MethodPost, "/items/0/archive", "", http.StatusUnprocessableEntity},
		{http.MethodGet, "/users/abc", "", http.StatusUnprocessableEntity},
		{http.MethodDelete, "/users/2", "nobody", http.StatusUnprocessableEntity},
		{http.MethodPut, "/settings/store", "", http.StatusUnprocessableEntity},
		{http.MethodPost, "/backup/import?mode=merge", "", http.StatusUnprocessableEntity},
		{http.MethodGet, "/gold/calculate?weight_grams=abc&karat=18", "", http.StatusUnprocessableEntity},
		{http.MethodPatch, "/documents/1", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.actor != "" {
				req.Header.Set(actorHeader, tt.actor)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
