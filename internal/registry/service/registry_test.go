package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	apperrors "github.com/typemint/typemint/internal/platform/errors"
	"github.com/typemint/typemint/internal/registry/domain"
	"github.com/typemint/typemint/internal/registry/event"
	"github.com/typemint/typemint/internal/registry/storage"
)

type fakeStore struct {
	collections map[string]storage.Collection
	tokens      map[string]domain.Token
	journal     []event.Event

	insertErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: make(map[string]storage.Collection),
		tokens:      make(map[string]domain.Token),
	}
}

func (f *fakeStore) CreateCollection(ctx context.Context, collection storage.Collection) error {
	if _, ok := f.collections[collection.Name]; ok {
		return storage.ErrDuplicate
	}
	f.collections[collection.Name] = collection
	return nil
}

func (f *fakeStore) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	collection, ok := f.collections[name]
	if !ok {
		return storage.Collection{}, storage.ErrNotFound
	}
	return collection, nil
}

func (f *fakeStore) AllocateTokenNumber(ctx context.Context, name string) (uint64, error) {
	collection, ok := f.collections[name]
	if !ok {
		return 0, storage.ErrNotFound
	}
	allocated := collection.NextTokenNumber
	collection.NextTokenNumber++
	f.collections[name] = collection
	return allocated, nil
}

func (f *fakeStore) InsertToken(ctx context.Context, token domain.Token, events []event.Event) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.tokens[token.Address]; ok {
		return storage.ErrDuplicate
	}
	for _, existing := range f.tokens {
		if existing.Collection == token.Collection && existing.Name == token.Name {
			return storage.ErrDuplicate
		}
	}
	f.tokens[token.Address] = token
	f.journal = append(f.journal, events...)
	return nil
}

func (f *fakeStore) GetToken(ctx context.Context, collection, name string) (domain.Token, error) {
	for _, token := range f.tokens {
		if token.Collection == collection && token.Name == name {
			return token, nil
		}
	}
	return domain.Token{}, storage.ErrNotFound
}

func (f *fakeStore) GetTokenByAddress(ctx context.Context, address string) (domain.Token, error) {
	token, ok := f.tokens[address]
	if !ok {
		return domain.Token{}, storage.ErrNotFound
	}
	return token, nil
}

func (f *fakeStore) UpdateToken(ctx context.Context, token domain.Token, expectedVersion uint64, events []event.Event) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.tokens[token.Address]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	f.tokens[token.Address] = token
	f.journal = append(f.journal, events...)
	return nil
}

func (f *fakeStore) DeleteToken(ctx context.Context, address string, events []event.Event) error {
	if _, ok := f.tokens[address]; !ok {
		return storage.ErrNotFound
	}
	delete(f.tokens, address)
	f.journal = append(f.journal, events...)
	return nil
}

func (f *fakeStore) ListTokenEvents(ctx context.Context, address string) ([]event.Event, error) {
	var events []event.Event
	for _, evt := range f.journal {
		if evt.TokenAddress == address {
			events = append(events, evt)
		}
	}
	return events, nil
}

type recordingSink struct {
	delivered []event.Event
}

func (s *recordingSink) Deliver(_ context.Context, evt event.Event) error {
	s.delivered = append(s.delivered, evt)
	return nil
}

var testCollection = CollectionConfig{
	Name:              "personality-archetypes",
	Description:       "Soulbound personality-type collectibles",
	URI:               "https://typemint.dev/collections/personality-archetypes",
	NumberedPrefix:    "Archetype",
	NumberedURISuffix: ".png",
}

func newTestRegistry(store *fakeStore, opts ...Option) *Registry {
	at := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		at = at.Add(time.Second)
		return at
	}
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewRegistry(store, testCollection, opts...)
}

func bootstrap(t *testing.T, registry *Registry) {
	t.Helper()
	if _, err := registry.InitializeCollection(context.Background()); err != nil {
		t.Fatalf("initialize collection: %v", err)
	}
}

func TestInitializeCollectionRunsOnce(t *testing.T) {
	store := newFakeStore()
	registry := newTestRegistry(store)

	collection, err := registry.InitializeCollection(context.Background())
	if err != nil {
		t.Fatalf("initialize collection: %v", err)
	}
	if collection.Name != "personality-archetypes" {
		t.Fatalf("unexpected collection name %q", collection.Name)
	}
	if collection.NextTokenNumber != 1 {
		t.Fatalf("expected counter starting at 1, got %d", collection.NextTokenNumber)
	}

	_, err = registry.InitializeCollection(context.Background())
	if apperrors.CodeOf(err) != apperrors.CodeCollectionExists {
		t.Fatalf("expected collection exists code, got %v", apperrors.CodeOf(err))
	}
}

func TestMintTokenRoundTrip(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}
	registry := newTestRegistry(store, WithEventSinks(sink))
	bootstrap(t, registry)

	token, err := registry.MintToken(context.Background(), MintRequest{
		Creator:  "creator-1",
		Name:     "First Light",
		BaseURI:  "https://cdn.example.com/types/",
		Owner:    "user-1",
		Category: "ESTP",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if token.Address != domain.DeriveTokenAddress("creator-1", "personality-archetypes", "First Light") {
		t.Fatal("expected derived address to be recomputable offline")
	}
	if token.DisplayURI != "https://cdn.example.com/types/ESTP" {
		t.Fatalf("unexpected display uri %q", token.DisplayURI)
	}

	category, err := registry.GetCategory(context.Background(), "First Light")
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if category != domain.CategoryESTP {
		t.Fatalf("expected ESTP, got %s", category)
	}

	byAddress, err := registry.GetCategoryByAddress(context.Background(), token.Address)
	if err != nil {
		t.Fatalf("get category by address: %v", err)
	}
	if byAddress != domain.CategoryESTP {
		t.Fatalf("expected ESTP by address, got %s", byAddress)
	}

	if len(sink.delivered) != 1 || sink.delivered[0].Type != event.TypeTokenMinted {
		t.Fatalf("expected one minted event delivered, got %+v", sink.delivered)
	}
}

func TestMintTokenInvalidCategoryCreatesNothing(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}
	registry := newTestRegistry(store, WithEventSinks(sink))
	bootstrap(t, registry)

	_, err := registry.MintToken(context.Background(), MintRequest{
		Creator:  "creator-1",
		Name:     "First Light",
		Owner:    "user-1",
		Category: "ABCD",
	})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidCategory {
		t.Fatalf("expected invalid category code, got %v", apperrors.CodeOf(err))
	}
	if len(store.tokens) != 0 {
		t.Fatal("expected no token state after failed mint")
	}
	if len(store.journal) != 0 || len(sink.delivered) != 0 {
		t.Fatal("expected no events after failed mint")
	}
}

func TestMintTokenRequiresCollection(t *testing.T) {
	registry := newTestRegistry(newFakeStore())

	_, err := registry.MintToken(context.Background(), MintRequest{
		Creator:  "creator-1",
		Name:     "First Light",
		Owner:    "user-1",
		Category: "ESTP",
	})
	if apperrors.CodeOf(err) != apperrors.CodeCollectionNotFound {
		t.Fatalf("expected collection not found code, got %v", apperrors.CodeOf(err))
	}
}

func TestMintTokenDuplicateIdentity(t *testing.T) {
	store := newFakeStore()
	registry := newTestRegistry(store)
	bootstrap(t, registry)

	req := MintRequest{
		Creator:  "creator-1",
		Name:     "First Light",
		Owner:    "user-1",
		Category: "ESTP",
	}
	if _, err := registry.MintToken(context.Background(), req); err != nil {
		t.Fatalf("first mint: %v", err)
	}
	_, err := registry.MintToken(context.Background(), req)
	if apperrors.CodeOf(err) != apperrors.CodeTokenDuplicateIdentity {
		t.Fatalf("expected duplicate identity code, got %v", apperrors.CodeOf(err))
	}
}

func TestMintNumberedTokenUsesCounterAndSuffix(t *testing.T) {
	store := newFakeStore()
	registry := newTestRegistry(store)
	bootstrap(t, registry)

	req := NumberedMintRequest{
		Creator:  "creator-1",
		BaseURI:  "https://cdn.example.com/types/",
		Owner:    "user-1",
		Category: "INFJ",
	}
	first, err := registry.MintNumberedToken(context.Background(), req)
	if err != nil {
		t.Fatalf("first numbered mint: %v", err)
	}
	second, err := registry.MintNumberedToken(context.Background(), req)
	if err != nil {
		t.Fatalf("second numbered mint: %v", err)
	}

	if first.Name != "Archetype #1" {
		t.Fatalf("expected Archetype #1, got %q", first.Name)
	}
	if second.Name != "Archetype #2" {
		t.Fatalf("expected Archetype #2, got %q", second.Name)
	}
	if first.DisplayURI != "https://cdn.example.com/types/INFJ.png" {
		t.Fatalf("expected suffixed display uri, got %q", first.DisplayURI)
	}
	if first.Address == second.Address {
		t.Fatal("expected distinct addresses for numbered mints")
	}
}

func TestMintTokenWithGrantVerification(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	grantCfg := domain.MintGrantConfig{
		Issuer:   "typemint-operator",
		Audience: "typemint-registry",
		Key:      publicKey,
		Now:      func() time.Time { return now },
	}

	store := newFakeStore()
	registry := newTestRegistry(store, WithMintGrants(grantCfg))
	bootstrap(t, registry)

	grant, err := domain.SignMintGrant(privateKey, grantCfg, domain.MintGrantExpectation{
		Creator:    "creator-1",
		Collection: "personality-archetypes",
	}, "grant-1", time.Hour)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}

	if _, err := registry.MintToken(context.Background(), MintRequest{
		Grant:    grant,
		Creator:  "creator-1",
		Name:     "First Light",
		Owner:    "user-1",
		Category: "ESTP",
	}); err != nil {
		t.Fatalf("mint with grant: %v", err)
	}

	// Missing grant.
	_, err = registry.MintToken(context.Background(), MintRequest{
		Creator:  "creator-1",
		Name:     "Second Light",
		Owner:    "user-1",
		Category: "ESTP",
	})
	if apperrors.CodeOf(err) != apperrors.CodeMintGrantInvalid {
		t.Fatalf("expected invalid grant code, got %v", apperrors.CodeOf(err))
	}

	// Grant bound to a different creator.
	_, err = registry.MintToken(context.Background(), MintRequest{
		Grant:    grant,
		Creator:  "creator-2",
		Name:     "Third Light",
		Owner:    "user-1",
		Category: "ESTP",
	})
	if apperrors.CodeOf(err) != apperrors.CodeMintGrantMismatch {
		t.Fatalf("expected grant mismatch code, got %v", apperrors.CodeOf(err))
	}
}

func TestUpdateCategoryLifecycleScenario(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}
	registry := newTestRegistry(store, WithEventSinks(sink))
	bootstrap(t, registry)

	token, err := registry.MintToken(context.Background(), MintRequest{
		Creator:  "creator-1",
		Name:     "First Light",
		BaseURI:  "https://cdn.example.com/types/",
		Owner:    "user-1",
		Category: "ESTP",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	updated, err := registry.UpdateCategory(context.Background(), "creator-1", "First Light", "ISFP")
	if err != nil {
		t.Fatalf("update category: %v", err)
	}
	if updated.Category != domain.CategoryISFP {
		t.Fatalf("expected ISFP, got %s", updated.Category)
	}
	if updated.DisplayURI != "https://cdn.example.com/types/ISFP" {
		t.Fatalf("expected recomputed display uri, got %q", updated.DisplayURI)
	}
	if !updated.UpdatedAt.After(token.UpdatedAt) {
		t.Fatal("expected update timestamp to advance")
	}

	category, err := registry.GetCategory(context.Background(), "First Light")
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if category != domain.CategoryISFP {
		t.Fatalf("expected ISFP after update, got %s", category)
	}

	// Non-creator update fails and leaves state unchanged.
	_, err = registry.UpdateCategory(context.Background(), "intruder", "First Light", "ENTP")
	if apperrors.CodeOf(err) != apperrors.CodeTokenNotCreator {
		t.Fatalf("expected not-creator code, got %v", apperrors.CodeOf(err))
	}
	category, err = registry.GetCategory(context.Background(), "First Light")
	if err != nil {
		t.Fatalf("get category after denied update: %v", err)
	}
	if category != domain.CategoryISFP {
		t.Fatalf("expected state unchanged after denied update, got %s", category)
	}

	// Burn, then all lookups fail.
	if err := registry.BurnToken(context.Background(), "creator-1", "First Light"); err != nil {
		t.Fatalf("burn token: %v", err)
	}
	if _, err := registry.GetCategory(context.Background(), "First Light"); apperrors.CodeOf(err) != apperrors.CodeTokenNotFound {
		t.Fatalf("expected not found after burn, got %v", apperrors.CodeOf(err))
	}
	if err := registry.BurnToken(context.Background(), "creator-1", "First Light"); apperrors.CodeOf(err) != apperrors.CodeTokenNotFound {
		t.Fatalf("expected not found on double burn, got %v", apperrors.CodeOf(err))
	}

	// minted, category_changed, burned — exactly one change notification with
	// the old/new pair.
	var changed []event.Event
	for _, evt := range sink.delivered {
		if evt.Type == event.TypeCategoryChanged {
			changed = append(changed, evt)
		}
	}
	if len(changed) != 1 {
		t.Fatalf("expected one category changed event, got %d", len(changed))
	}
	if changed[0].OldCategory != "ESTP" || changed[0].NewCategory != "ISFP" {
		t.Fatalf("expected ESTP -> ISFP, got %s -> %s", changed[0].OldCategory, changed[0].NewCategory)
	}

	// The journal survives the burn.
	journal, err := registry.ListTokenEvents(context.Background(), token.Address)
	if err != nil {
		t.Fatalf("list token events: %v", err)
	}
	if len(journal) != 3 {
		t.Fatalf("expected three journal entries, got %d", len(journal))
	}
}

func TestUpdateCategorySameValueStillNotifies(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}
	registry := newTestRegistry(store, WithEventSinks(sink))
	bootstrap(t, registry)

	if _, err := registry.MintToken(context.Background(), MintRequest{
		Creator:  "creator-1",
		Name:     "First Light",
		Owner:    "user-1",
		Category: "ESTP",
	}); err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if _, err := registry.UpdateCategory(context.Background(), "creator-1", "First Light", "ESTP"); err != nil {
		t.Fatalf("same-value update: %v", err)
	}

	var changed int
	for _, evt := range sink.delivered {
		if evt.Type == event.TypeCategoryChanged {
			changed++
		}
	}
	if changed != 1 {
		t.Fatalf("expected same-value update to notify, got %d events", changed)
	}
}

func TestUpdateCategoryNotFound(t *testing.T) {
	registry := newTestRegistry(newFakeStore())
	bootstrap(t, registry)

	_, err := registry.UpdateCategory(context.Background(), "creator-1", "missing", "ESTP")
	if apperrors.CodeOf(err) != apperrors.CodeTokenNotFound {
		t.Fatalf("expected not found code, got %v", apperrors.CodeOf(err))
	}
}

func TestUpdateCategoryVersionConflict(t *testing.T) {
	store := newFakeStore()
	registry := newTestRegistry(store)
	bootstrap(t, registry)

	if _, err := registry.MintToken(context.Background(), MintRequest{
		Creator:  "creator-1",
		Name:     "First Light",
		Owner:    "user-1",
		Category: "ESTP",
	}); err != nil {
		t.Fatalf("mint token: %v", err)
	}

	store.updateErr = storage.ErrVersionConflict
	_, err := registry.UpdateCategory(context.Background(), "creator-1", "First Light", "ISFP")
	if apperrors.CodeOf(err) != apperrors.CodeTokenVersionConflict {
		t.Fatalf("expected version conflict code, got %v", apperrors.CodeOf(err))
	}
}

func TestTwoTokensAreIndependent(t *testing.T) {
	store := newFakeStore()
	registry := newTestRegistry(store)
	bootstrap(t, registry)

	for _, name := range []string{"First Light", "Second Light"} {
		if _, err := registry.MintToken(context.Background(), MintRequest{
			Creator:  "creator-1",
			Name:     name,
			Owner:    "user-1",
			Category: "ESTP",
		}); err != nil {
			t.Fatalf("mint %q: %v", name, err)
		}
	}

	if _, err := registry.UpdateCategory(context.Background(), "creator-1", "First Light", "INTJ"); err != nil {
		t.Fatalf("update first token: %v", err)
	}

	first, err := registry.GetCategory(context.Background(), "First Light")
	if err != nil {
		t.Fatalf("get first category: %v", err)
	}
	second, err := registry.GetCategory(context.Background(), "Second Light")
	if err != nil {
		t.Fatalf("get second category: %v", err)
	}
	if first != domain.CategoryINTJ {
		t.Fatalf("expected INTJ, got %s", first)
	}
	if second != domain.CategoryESTP {
		t.Fatalf("expected second token untouched, got %s", second)
	}
}

func TestBurnRejectsNonCreator(t *testing.T) {
	store := newFakeStore()
	registry := newTestRegistry(store)
	bootstrap(t, registry)

	if _, err := registry.MintToken(context.Background(), MintRequest{
		Creator:  "creator-1",
		Name:     "First Light",
		Owner:    "user-1",
		Category: "ESTP",
	}); err != nil {
		t.Fatalf("mint token: %v", err)
	}

	err := registry.BurnToken(context.Background(), "user-1", "First Light")
	if apperrors.CodeOf(err) != apperrors.CodeTokenNotCreator {
		t.Fatalf("expected not-creator code, got %v", apperrors.CodeOf(err))
	}
	if _, err := registry.GetCategory(context.Background(), "First Light"); err != nil {
		t.Fatalf("expected token to survive denied burn: %v", err)
	}
}
