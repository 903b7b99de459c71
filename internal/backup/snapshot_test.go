package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/safar/gold-ledger/internal/apperr"
)

func TestVerify(t *testing.T) {
	payload := []byte(`{"version":"1","data":{}}`)
	snap := &Snapshot{Signature: sign(payload, "s3cret"), Payload: payload}

	if err := Verify(snap, "s3cret"); err != nil {
		t.Fatalf("Expected valid signature, got %v", err)
	}

	tests := []struct {
		name   string
		snap   *Snapshot
		secret string
	}{
		{"wrong secret", snap, "other"},
		{"tampered payload", &Snapshot{Signature: snap.Signature, Payload: bytes.Replace(payload, []byte(`"1"`), []byte(`"2"`), 1)}, "s3cret"},
		{"not hex", &Snapshot{Signature: "zz", Payload: payload}, "s3cret"},
		{"empty payload", &Snapshot{Signature: snap.Signature}, "s3cret"},
		{"nil", nil, "s3cret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.snap, tt.secret)
			if !errors.Is(err, apperr.ErrInvalidSignature) || !apperr.IsIntegrity(err) {
				t.Errorf("Expected invalid signature, got %v", err)
			}
		})
	}
}

func TestSnapshotKeepsSignedBytes(t *testing.T) {
	payload := []byte(`{"version":"1","exported_at":"2025-06-01T09:00:00Z","data":{"clients":[]}}`)
	snap := Snapshot{Signature: sign(payload, "k"), Payload: payload}

	encoded, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Snapshot
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("Payload bytes changed:\n got %s\nwant %s", decoded.Payload, payload)
	}
	if err := Verify(&decoded, "k"); err != nil {
		t.Errorf("Expected decoded snapshot to verify, got %v", err)
	}
}

func TestSecretRequired(t *testing.T) {
	svc := NewService(nil, "", nil)

	if _, err := svc.Export(context.Background()); !errors.Is(err, ErrNoSecret) {
		t.Errorf("Export: expected ErrNoSecret, got %v", err)
	}
	if _, err := svc.Import(context.Background(), nil, &Snapshot{}, ModeAppend); !errors.Is(err, ErrNoSecret) {
		t.Errorf("Import: expected ErrNoSecret, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []string{"append", "replace"} {
		if _, err := ParseMode(m); err != nil {
			t.Errorf("ParseMode(%q): %v", m, err)
		}
	}
	if _, err := ParseMode("merge"); !apperr.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}
