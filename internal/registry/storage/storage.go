// Package storage defines the persistence contracts for the token registry.
//
// Stores return sentinel errors; the service layer maps them to registry
// error codes. Every mutating method that accepts events must persist the
// state change and the events in one transaction, so a notification can never
// outlive a rolled-back mutation or vice versa.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/typemint/typemint/internal/registry/domain"
	"github.com/typemint/typemint/internal/registry/event"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate indicates an insert collided with an existing identity.
var ErrDuplicate = errors.New("record already exists")

// ErrVersionConflict indicates a compare-and-swap update lost a race. The
// caller should re-read and retry.
var ErrVersionConflict = errors.New("record version conflict")

// Collection is the single parent grouping all tokens are minted under.
type Collection struct {
	Name        string
	Description string
	URI         string
	// NextTokenNumber is the counter backing auto-numbered mints.
	NextTokenNumber uint64
	CreatedAt       time.Time
}

// CollectionStore persists the collection record.
type CollectionStore interface {
	// CreateCollection inserts the collection exactly once; a second call
	// fails with ErrDuplicate.
	CreateCollection(ctx context.Context, collection Collection) error
	GetCollection(ctx context.Context, name string) (Collection, error)
	// AllocateTokenNumber atomically increments and returns the collection's
	// numbered-mint counter. Numbers are never reused; a failed mint after
	// allocation leaves a gap.
	AllocateTokenNumber(ctx context.Context, name string) (uint64, error)
}

// TokenStore persists token records, their property maps, and their event
// journal.
type TokenStore interface {
	// InsertToken stores a freshly minted token with its events. A token with
	// the same address, or the same (collection, name) pair, fails with
	// ErrDuplicate and writes nothing.
	InsertToken(ctx context.Context, token domain.Token, events []event.Event) error

	GetToken(ctx context.Context, collection, name string) (domain.Token, error)
	GetTokenByAddress(ctx context.Context, address string) (domain.Token, error)

	// UpdateToken replaces the stored token iff the stored version equals
	// expectedVersion, appending events in the same transaction. A lost race
	// fails with ErrVersionConflict; a missing token with ErrNotFound.
	UpdateToken(ctx context.Context, token domain.Token, expectedVersion uint64, events []event.Event) error

	// DeleteToken removes the token record and its property map atomically,
	// appending events in the same transaction. The event journal survives
	// the burn.
	DeleteToken(ctx context.Context, address string, events []event.Event) error

	// ListTokenEvents returns the journal for a token address in append
	// order. Burned tokens keep their history.
	ListTokenEvents(ctx context.Context, address string) ([]event.Event, error)
}
