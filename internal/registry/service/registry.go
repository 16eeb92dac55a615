// Package service orchestrates the token registry: collection bootstrap,
// minting, category updates, burns, and reads. It owns the mapping from
// storage sentinels to registry error codes and fans committed events out to
// sinks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/typemint/typemint/internal/platform/errors"
	"github.com/typemint/typemint/internal/registry/domain"
	"github.com/typemint/typemint/internal/registry/event"
	"github.com/typemint/typemint/internal/registry/storage"
)

const tracerName = "github.com/typemint/typemint/internal/registry/service"

// RegistryStore is the storage surface the registry needs.
type RegistryStore interface {
	storage.CollectionStore
	storage.TokenStore
}

// CollectionConfig fixes the single parent collection and the numbered-mint
// policy. The URI suffix applies to numbered mints only; named mints keep the
// bare base URI + category code.
type CollectionConfig struct {
	Name        string
	Description string
	URI         string
	// NumberedPrefix is the display-name prefix for auto-numbered mints.
	NumberedPrefix string
	// NumberedURISuffix is appended after the category code on numbered
	// mints, e.g. ".png".
	NumberedURISuffix string
}

// Registry implements the token registry operations.
type Registry struct {
	store      RegistryStore
	collection CollectionConfig
	grants     *domain.MintGrantConfig
	sinks      []EventSink
	clock      func() time.Time
	tracer     trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the registry clock.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithMintGrants enables mint grant verification. Without it any caller may
// mint, which is only acceptable for local tooling.
func WithMintGrants(cfg domain.MintGrantConfig) Option {
	return func(r *Registry) {
		r.grants = &cfg
	}
}

// WithEventSinks registers sinks that receive events after commit.
func WithEventSinks(sinks ...EventSink) Option {
	return func(r *Registry) {
		r.sinks = append(r.sinks, sinks...)
	}
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store RegistryStore, collection CollectionConfig, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		collection: collection,
		clock:      time.Now,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// InitializeCollection creates the parent collection. It is meant to run once
// at bootstrap; a second call fails with CodeCollectionExists.
func (r *Registry) InitializeCollection(ctx context.Context) (storage.Collection, error) {
	ctx, span := r.tracer.Start(ctx, "registry.InitializeCollection")
	defer span.End()

	collection := storage.Collection{
		Name:            r.collection.Name,
		Description:     r.collection.Description,
		URI:             r.collection.URI,
		NextTokenNumber: 1,
		CreatedAt:       r.clock().UTC(),
	}
	if err := r.store.CreateCollection(ctx, collection); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return storage.Collection{}, apperrors.WithMetadata(
				apperrors.CodeCollectionExists,
				"collection is already initialized",
				map[string]string{"Collection": collection.Name},
			)
		}
		return storage.Collection{}, fmt.Errorf("create collection: %w", err)
	}
	return collection, nil
}

// MintRequest describes a named mint.
type MintRequest struct {
	// Grant is the mint credential; required when grant verification is
	// configured.
	Grant       string
	Creator     string
	Name        string
	Description string
	BaseURI     string
	Owner       string
	Category    string
}

// MintToken mints a token whose identity derives from its display name.
func (r *Registry) MintToken(ctx context.Context, req MintRequest) (domain.Token, error) {
	ctx, span := r.tracer.Start(ctx, "registry.MintToken",
		trace.WithAttributes(attribute.String("token.name", req.Name)))
	defer span.End()

	return r.mint(ctx, req, "")
}

// NumberedMintRequest describes an auto-numbered mint. The display name is
// assigned from the collection counter.
type NumberedMintRequest struct {
	Grant       string
	Creator     string
	Description string
	BaseURI     string
	Owner       string
	Category    string
}

// MintNumberedToken mints a token named from the collection's counter and
// applies the configured URI suffix.
func (r *Registry) MintNumberedToken(ctx context.Context, req NumberedMintRequest) (domain.Token, error) {
	ctx, span := r.tracer.Start(ctx, "registry.MintNumberedToken")
	defer span.End()

	number, err := r.store.AllocateTokenNumber(ctx, r.collection.Name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Token{}, apperrors.New(
				apperrors.CodeCollectionNotFound,
				"collection is not initialized",
			)
		}
		return domain.Token{}, fmt.Errorf("allocate token number: %w", err)
	}

	named := MintRequest{
		Grant:       req.Grant,
		Creator:     req.Creator,
		Name:        fmt.Sprintf("%s #%d", r.collection.NumberedPrefix, number),
		Description: req.Description,
		BaseURI:     req.BaseURI,
		Owner:       req.Owner,
		Category:    req.Category,
	}
	return r.mint(ctx, named, r.collection.NumberedURISuffix)
}

func (r *Registry) mint(ctx context.Context, req MintRequest, uriSuffix string) (domain.Token, error) {
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		return domain.Token{}, err
	}

	if r.grants != nil {
		expected := domain.MintGrantExpectation{
			Creator:    req.Creator,
			Collection: r.collection.Name,
		}
		if _, err := domain.ValidateMintGrant(req.Grant, expected, *r.grants); err != nil {
			return domain.Token{}, err
		}
	}

	if _, err := r.store.GetCollection(ctx, r.collection.Name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Token{}, apperrors.New(
				apperrors.CodeCollectionNotFound,
				"collection is not initialized",
			)
		}
		return domain.Token{}, fmt.Errorf("get collection: %w", err)
	}

	token, events, err := domain.Mint(domain.MintInput{
		Collection:  r.collection.Name,
		Name:        req.Name,
		Description: req.Description,
		BaseURI:     req.BaseURI,
		URISuffix:   uriSuffix,
		Owner:       req.Owner,
		Creator:     req.Creator,
		Category:    category,
	}, r.clock)
	if err != nil {
		return domain.Token{}, err
	}

	if err := r.store.InsertToken(ctx, token, events); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return domain.Token{}, apperrors.WithMetadata(
				apperrors.CodeTokenDuplicateIdentity,
				"a token with this identity already exists",
				map[string]string{"Name": token.Name, "Address": token.Address},
			)
		}
		return domain.Token{}, fmt.Errorf("insert token: %w", err)
	}

	r.deliver(ctx, events)
	return token, nil
}

// UpdateCategory replaces a token's category. Only the creator may call it;
// setting the current category again still emits an event and refreshes the
// update timestamp.
func (r *Registry) UpdateCategory(ctx context.Context, actor, name, newCategory string) (domain.Token, error) {
	ctx, span := r.tracer.Start(ctx, "registry.UpdateCategory",
		trace.WithAttributes(
			attribute.String("token.name", name),
			attribute.String("token.category", newCategory),
		))
	defer span.End()

	category, err := domain.ParseCategory(newCategory)
	if err != nil {
		return domain.Token{}, err
	}

	token, err := r.store.GetToken(ctx, r.collection.Name, name)
	if err != nil {
		return domain.Token{}, r.mapTokenLookupErr(err, name)
	}

	updated, events, err := token.ChangeCategory(actor, category, r.clock)
	if err != nil {
		return domain.Token{}, err
	}

	if err := r.store.UpdateToken(ctx, updated, token.Version, events); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return domain.Token{}, r.mapTokenLookupErr(storage.ErrNotFound, name)
		case errors.Is(err, storage.ErrVersionConflict):
			return domain.Token{}, apperrors.WithMetadata(
				apperrors.CodeTokenVersionConflict,
				"token changed concurrently, retry the update",
				map[string]string{"Name": name},
			)
		default:
			return domain.Token{}, fmt.Errorf("update token: %w", err)
		}
	}

	r.deliver(ctx, events)
	return updated, nil
}

// BurnToken destroys a token, its metadata, and its property map. Only the
// creator may call it. The address becomes unresolvable afterwards.
func (r *Registry) BurnToken(ctx context.Context, actor, name string) error {
	ctx, span := r.tracer.Start(ctx, "registry.BurnToken",
		trace.WithAttributes(attribute.String("token.name", name)))
	defer span.End()

	token, err := r.store.GetToken(ctx, r.collection.Name, name)
	if err != nil {
		return r.mapTokenLookupErr(err, name)
	}

	events, err := token.Burn(actor, r.clock)
	if err != nil {
		return err
	}

	if err := r.store.DeleteToken(ctx, token.Address, events); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return r.mapTokenLookupErr(storage.ErrNotFound, name)
		}
		return fmt.Errorf("delete token: %w", err)
	}

	r.deliver(ctx, events)
	return nil
}

// GetToken returns a token by display name.
func (r *Registry) GetToken(ctx context.Context, name string) (domain.Token, error) {
	ctx, span := r.tracer.Start(ctx, "registry.GetToken",
		trace.WithAttributes(attribute.String("token.name", name)))
	defer span.End()

	token, err := r.store.GetToken(ctx, r.collection.Name, name)
	if err != nil {
		return domain.Token{}, r.mapTokenLookupErr(err, name)
	}
	return token, nil
}

// GetCategory returns the current category of a token by display name.
func (r *Registry) GetCategory(ctx context.Context, name string) (domain.Category, error) {
	token, err := r.GetToken(ctx, name)
	if err != nil {
		return domain.CategoryUnspecified, err
	}
	return token.Category, nil
}

// GetCategoryByAddress returns the current category of a token by its derived
// address.
func (r *Registry) GetCategoryByAddress(ctx context.Context, address string) (domain.Category, error) {
	ctx, span := r.tracer.Start(ctx, "registry.GetCategoryByAddress",
		trace.WithAttributes(attribute.String("token.address", address)))
	defer span.End()

	token, err := r.store.GetTokenByAddress(ctx, address)
	if err != nil {
		return domain.CategoryUnspecified, r.mapTokenLookupErr(err, address)
	}
	return token.Category, nil
}

// ListTokenEvents returns the persisted event journal for a token address.
// Burned tokens keep their history.
func (r *Registry) ListTokenEvents(ctx context.Context, address string) ([]event.Event, error) {
	ctx, span := r.tracer.Start(ctx, "registry.ListTokenEvents",
		trace.WithAttributes(attribute.String("token.address", address)))
	defer span.End()

	events, err := r.store.ListTokenEvents(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("list token events: %w", err)
	}
	return events, nil
}

func (r *Registry) mapTokenLookupErr(err error, ref string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(
			apperrors.CodeTokenNotFound,
			"token does not exist",
			map[string]string{"Token": ref},
		)
	}
	return fmt.Errorf("get token: %w", err)
}

// deliver fans committed events out to sinks. Failures are logged, not
// propagated: the journal row is the durable record.
func (r *Registry) deliver(ctx context.Context, events []event.Event) {
	for _, sink := range r.sinks {
		for _, evt := range events {
			if err := sink.Deliver(ctx, evt); err != nil {
				log.Printf("deliver event %s for token %s: %v", evt.Type, evt.TokenAddress, err)
			}
		}
	}
}
