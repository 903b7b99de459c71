package store

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ID: 42}

	out, err := DecodeCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Errorf("Expected %+v, got %+v", in, out)
	}
}

func TestDecodeEmptyCursorStartsAtNewest(t *testing.T) {
	c, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !c.CreatedAt.After(time.Now()) {
		t.Error("Empty cursor should sort after every existing row")
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", base64.RawURLEncoding.EncodeToString([]byte("no-colon")), base64.RawURLEncoding.EncodeToString([]byte("1:x"))} {
		if _, err := DecodeCursor(token); !errors.Is(err, ErrBadCursor) {
			t.Errorf("Expected ErrBadCursor for %q, got %v", token, err)
		}
	}
}

func TestNewOffsetPage(t *testing.T) {
	page := newOffsetPage([]int{1, 2}, 21, 2, 10)
	if page.TotalPages != 3 {
		t.Errorf("Expected 3 pages, got %d", page.TotalPages)
	}
	if empty := newOffsetPage([]int{}, 0, 1, 10); empty.TotalPages != 0 {
		t.Errorf("Expected 0 pages, got %d", empty.TotalPages)
	}
}
