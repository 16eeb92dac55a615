package domain

import (
	"strings"
	"time"

	apperrors "github.com/typemint/typemint/internal/platform/errors"
	"github.com/typemint/typemint/internal/registry/event"
)

// Token is a soulbound collectible tagged with a personality-type category.
//
// Owner is assigned exactly once at mint time. No mutator for it exists
// anywhere in this package or the layers above it: the soulbound guarantee is
// enforced by the API surface, not by a runtime flag.
type Token struct {
	// Address is the derived, globally unique identity. Immutable.
	Address string
	// Collection is the parent collection name. Immutable.
	Collection string
	// Name is the display name, unique within the collection. Immutable.
	Name string
	// Description is the mint-time description. Immutable.
	Description string
	// Category is the current personality-type code. Mutable, always valid.
	Category Category
	// Owner is the recipient fixed at mint time.
	Owner string
	// Creator is the sole identity permitted to mutate or burn the token.
	Creator string
	// BaseURI and URISuffix are the fixed pieces of the display URI.
	BaseURI   string
	URISuffix string
	// DisplayURI is BaseURI + category code + URISuffix, recomputed on every
	// category change.
	DisplayURI string
	// Properties is the token-scoped property map; it carries the
	// LastUpdateTime entry and is destroyed with the token.
	Properties Properties
	// CreatedAt is the mint timestamp.
	CreatedAt time.Time
	// UpdatedAt never decreases over the token's lifetime.
	UpdatedAt time.Time
	// Version is the optimistic concurrency token, starting at 1.
	Version uint64
}

// MintInput describes the metadata needed to mint a token. Category must
// already be parsed; raw codes are rejected at the service boundary.
type MintInput struct {
	Collection  string
	Name        string
	Description string
	BaseURI     string
	URISuffix   string
	Owner       string
	Creator     string
	Category    Category
}

// ComposeDisplayURI builds the display URI as a pure function of the base
// path, the category code, and the suffix policy.
func ComposeDisplayURI(baseURI string, category Category, suffix string) string {
	return baseURI + category.String() + suffix
}

// Mint creates a new token and the token.minted event. The address is derived
// from (creator, collection, name), so the caller can recompute it offline.
func Mint(input MintInput, now func() time.Time) (Token, []event.Event, error) {
	if now == nil {
		now = time.Now
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Token{}, nil, apperrors.New(apperrors.CodeTokenNameEmpty, "token name is required")
	}
	if strings.TrimSpace(input.Owner) == "" {
		return Token{}, nil, apperrors.New(apperrors.CodeTokenOwnerEmpty, "token owner is required")
	}
	if strings.TrimSpace(input.Creator) == "" {
		return Token{}, nil, apperrors.New(apperrors.CodeTokenCreatorEmpty, "token creator is required")
	}
	if !input.Category.Valid() {
		return Token{}, nil, apperrors.New(apperrors.CodeInvalidCategory, "mint category is invalid")
	}

	mintedAt := now().UTC()
	token := Token{
		Address:     DeriveTokenAddress(input.Creator, input.Collection, input.Name),
		Collection:  input.Collection,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Owner:       input.Owner,
		Creator:     input.Creator,
		BaseURI:     input.BaseURI,
		URISuffix:   input.URISuffix,
		DisplayURI:  ComposeDisplayURI(input.BaseURI, input.Category, input.URISuffix),
		Properties:  Properties{}.SetTime(PropertyLastUpdateTime, mintedAt),
		CreatedAt:   mintedAt,
		UpdatedAt:   mintedAt,
		Version:     1,
	}

	minted, err := event.New(event.TypeTokenMinted, token.Address, token.Collection, token.Creator, mintedAt)
	if err != nil {
		return Token{}, nil, err
	}
	minted.NewCategory = token.Category.String()

	return token, []event.Event{minted}, nil
}

// ChangeCategory returns the token with its category replaced, along with the
// token.category_changed event carrying the old/new pair. Setting the same
// category again is not a no-op: it still emits and refreshes UpdatedAt.
//
// Only the creator may change the category.
func (t Token) ChangeCategory(actor string, next Category, now func() time.Time) (Token, []event.Event, error) {
	if now == nil {
		now = time.Now
	}
	if actor != t.Creator {
		return Token{}, nil, apperrors.WithMetadata(
			apperrors.CodeTokenNotCreator,
			"only the token creator may change its category",
			map[string]string{"Actor": actor},
		)
	}
	if !next.Valid() {
		return Token{}, nil, apperrors.New(apperrors.CodeInvalidCategory, "replacement category is invalid")
	}

	changedAt := now().UTC()
	if changedAt.Before(t.UpdatedAt) {
		// Keep UpdatedAt non-decreasing even if the caller's clock stalls.
		changedAt = t.UpdatedAt
	}

	changed, err := event.New(event.TypeCategoryChanged, t.Address, t.Collection, actor, changedAt)
	if err != nil {
		return Token{}, nil, err
	}
	changed.OldCategory = t.Category.String()
	changed.NewCategory = next.String()

	updated := t
	updated.Category = next
	updated.DisplayURI = ComposeDisplayURI(t.BaseURI, next, t.URISuffix)
	updated.UpdatedAt = changedAt
	updated.Properties = t.Properties.SetTime(PropertyLastUpdateTime, changedAt)
	updated.Version = t.Version + 1

	return updated, []event.Event{changed}, nil
}

// Burn authorizes destruction of the token and returns the token.burned
// event. Removal of the token record, its property map, and its identity is
// the storage layer's transaction; after it commits the address is
// unresolvable.
func (t Token) Burn(actor string, now func() time.Time) ([]event.Event, error) {
	if now == nil {
		now = time.Now
	}
	if actor != t.Creator {
		return nil, apperrors.WithMetadata(
			apperrors.CodeTokenNotCreator,
			"only the token creator may burn it",
			map[string]string{"Actor": actor},
		)
	}

	burned, err := event.New(event.TypeTokenBurned, t.Address, t.Collection, actor, now().UTC())
	if err != nil {
		return nil, err
	}
	burned.OldCategory = t.Category.String()

	return []event.Event{burned}, nil
}
