package event

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"
)

func TestNewIDFormat(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(id) != 26 {
		t.Fatalf("expected 26-character id, got %d", len(id))
	}
	if strings.Contains(id, "=") {
		t.Fatal("expected no padding")
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			t.Fatalf("unexpected character %q in id", r)
		}
	}

	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if len(decoded) != 16 {
		t.Fatalf("expected 16 decoded bytes, got %d", len(decoded))
	}
	if version := decoded[6] >> 4; version != 4 {
		t.Fatalf("expected version 4, got %d", version)
	}
	if variant := decoded[8] & 0xC0; variant != 0x80 {
		t.Fatalf("expected variant 0x80, got 0x%X", variant)
	}
}

func TestNewAssignsIdentityAndNormalizesTime(t *testing.T) {
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	evt, err := New(TypeCategoryChanged, "addr-1", "personality-archetypes", "creator-1", at)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if evt.ID == "" {
		t.Fatal("expected event id")
	}
	if evt.Type != TypeCategoryChanged {
		t.Fatalf("expected category changed type, got %s", evt.Type)
	}
	if evt.TokenAddress != "addr-1" || evt.Collection != "personality-archetypes" || evt.Actor != "creator-1" {
		t.Fatal("expected event fields to be set")
	}
	if evt.Timestamp.Location() != time.UTC {
		t.Fatal("expected UTC timestamp")
	}
	if !evt.Timestamp.Equal(at) {
		t.Fatalf("expected timestamp %v, got %v", at, evt.Timestamp)
	}
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
