// Package event defines the change notifications emitted by token
// transitions. Events are facts that have occurred, not commands: the storage
// layer persists them in the same transaction as the state change, and sinks
// fan them out after commit.
package event

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"
)

// Type identifies the type of a registry event.
type Type string

const (
	// TypeTokenMinted records the creation of a token.
	TypeTokenMinted Type = "token.minted"
	// TypeCategoryChanged records a category mutation, including same-value
	// rewrites, which still notify watchers.
	TypeCategoryChanged Type = "token.category_changed"
	// TypeTokenBurned records the destruction of a token.
	TypeTokenBurned Type = "token.burned"
)

// Event is one immutable entry in the token event journal.
type Event struct {
	// ID is a random identifier assigned at construction.
	ID string
	// TokenAddress is the derived address of the affected token.
	TokenAddress string
	// Collection is the parent collection name.
	Collection string
	// Type is the event type.
	Type Type
	// Actor is the identity that triggered the event.
	Actor string
	// OldCategory and NewCategory carry the category pair for
	// TypeCategoryChanged; for mint and burn only NewCategory and
	// OldCategory respectively are set.
	OldCategory string
	NewCategory string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// NewID generates a URL-safe event identifier: 16 random bytes with UUIDv4
// version and variant bits, base32-encoded without padding, lowercase.
func NewID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw[:])
	return strings.ToLower(encoded), nil
}

// New creates an event of the given type for a token. It returns an error
// only when the platform's random source fails.
func New(eventType Type, tokenAddress, collection, actor string, at time.Time) (Event, error) {
	id, err := NewID()
	if err != nil {
		return Event{}, fmt.Errorf("generate event id: %w", err)
	}
	return Event{
		ID:           id,
		TokenAddress: tokenAddress,
		Collection:   collection,
		Type:         eventType,
		Actor:        actor,
		Timestamp:    at.UTC(),
	}, nil
}
