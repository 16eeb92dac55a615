// Package sqlite provides a SQLite-backed registry storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/typemint/typemint/internal/platform/storage/sqlitemigrate"
	"github.com/typemint/typemint/internal/registry/domain"
	"github.com/typemint/typemint/internal/registry/event"
	"github.com/typemint/typemint/internal/registry/storage"
	"github.com/typemint/typemint/internal/registry/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store persists registry state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite registry store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateCollection inserts the parent collection record.
func (s *Store) CreateCollection(ctx context.Context, collection storage.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	name := strings.TrimSpace(collection.Name)
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	nextNumber := collection.NextTokenNumber
	if nextNumber == 0 {
		nextNumber = 1
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO collections (name, description, uri, next_token_number, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		name,
		collection.Description,
		collection.URI,
		int64(nextNumber),
		toMillis(collection.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// GetCollection returns the collection record by name.
func (s *Store) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	if err := ctx.Err(); err != nil {
		return storage.Collection{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Collection{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT name, description, uri, next_token_number, created_at
		 FROM collections WHERE name = ?`,
		strings.TrimSpace(name),
	)
	var collection storage.Collection
	var nextNumber int64
	var createdAt int64
	err := row.Scan(&collection.Name, &collection.Description, &collection.URI, &nextNumber, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Collection{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	collection.NextTokenNumber = uint64(nextNumber)
	collection.CreatedAt = fromMillis(createdAt)
	return collection, nil
}

// AllocateTokenNumber increments and returns the numbered-mint counter.
func (s *Store) AllocateTokenNumber(ctx context.Context, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`UPDATE collections SET next_token_number = next_token_number + 1
		 WHERE name = ?
		 RETURNING next_token_number - 1`,
		strings.TrimSpace(name),
	)
	var allocated int64
	err := row.Scan(&allocated)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("allocate token number: %w", err)
	}
	return uint64(allocated), nil
}

// InsertToken stores a minted token, its property map, and its events in one
// transaction.
func (s *Store) InsertToken(ctx context.Context, token domain.Token, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert token: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO tokens (
		    address, collection, name, description, category, owner, creator,
		    base_uri, uri_suffix, display_uri, created_at, updated_at, version
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.Address,
		token.Collection,
		token.Name,
		token.Description,
		token.Category.String(),
		token.Owner,
		token.Creator,
		token.BaseURI,
		token.URISuffix,
		token.DisplayURI,
		toMillis(token.CreatedAt),
		toMillis(token.UpdatedAt),
		int64(token.Version),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert token: %w", err)
	}

	if err := replacePropertiesTx(ctx, tx, token.Address, token.Properties); err != nil {
		return err
	}
	if err := appendEventsTx(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert token: %w", err)
	}
	return nil
}

// GetToken returns a token by collection and display name.
func (s *Store) GetToken(ctx context.Context, collection, name string) (domain.Token, error) {
	return s.getToken(ctx, `collection = ? AND name = ?`, strings.TrimSpace(collection), strings.TrimSpace(name))
}

// GetTokenByAddress returns a token by its derived address.
func (s *Store) GetTokenByAddress(ctx context.Context, address string) (domain.Token, error) {
	return s.getToken(ctx, `address = ?`, strings.TrimSpace(address))
}

func (s *Store) getToken(ctx context.Context, where string, args ...any) (domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Token{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT address, collection, name, description, category, owner, creator,
		        base_uri, uri_suffix, display_uri, created_at, updated_at, version
		 FROM tokens WHERE `+where,
		args...,
	)
	var token domain.Token
	var category string
	var createdAt, updatedAt, version int64
	err := row.Scan(
		&token.Address,
		&token.Collection,
		&token.Name,
		&token.Description,
		&category,
		&token.Owner,
		&token.Creator,
		&token.BaseURI,
		&token.URISuffix,
		&token.DisplayURI,
		&createdAt,
		&updatedAt,
		&version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Token{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("get token: %w", err)
	}

	token.Category, err = domain.ParseCategory(category)
	if err != nil {
		return domain.Token{}, fmt.Errorf("decode stored category %q: %w", category, err)
	}
	token.CreatedAt = fromMillis(createdAt)
	token.UpdatedAt = fromMillis(updatedAt)
	token.Version = uint64(version)

	token.Properties, err = s.loadProperties(ctx, token.Address)
	if err != nil {
		return domain.Token{}, err
	}
	return token, nil
}

func (s *Store) loadProperties(ctx context.Context, address string) (domain.Properties, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT key, kind, value FROM token_properties
		 WHERE token_address = ? ORDER BY position`,
		address,
	)
	if err != nil {
		return nil, fmt.Errorf("load properties: %w", err)
	}
	defer rows.Close()

	var properties domain.Properties
	for rows.Next() {
		var entry domain.Property
		var kind string
		if err := rows.Scan(&entry.Key, &kind, &entry.Value); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		entry.Kind = domain.PropertyKind(kind)
		properties = append(properties, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return properties, nil
}

// UpdateToken replaces the stored token guarded by a version compare-and-swap
// and appends events in the same transaction.
func (s *Store) UpdateToken(ctx context.Context, token domain.Token, expectedVersion uint64, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update token: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE tokens SET
		    category = ?, display_uri = ?, updated_at = ?, version = ?
		 WHERE address = ? AND version = ?`,
		token.Category.String(),
		token.DisplayURI,
		toMillis(token.UpdatedAt),
		int64(token.Version),
		token.Address,
		int64(expectedVersion),
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update token rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing token from a lost CAS race.
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tokens WHERE address = ?`, token.Address).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check token presence: %w", err)
		}
		if exists == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	if err := replacePropertiesTx(ctx, tx, token.Address, token.Properties); err != nil {
		return err
	}
	if err := appendEventsTx(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update token: %w", err)
	}
	return nil
}

// DeleteToken removes the token and its property map, appending events in the
// same transaction. The event journal is retained.
func (s *Store) DeleteToken(ctx context.Context, address string, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete token: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM token_properties WHERE token_address = ?`, address); err != nil {
		return fmt.Errorf("delete token properties: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE address = ?`, address)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete token rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := appendEventsTx(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete token: %w", err)
	}
	return nil
}

// ListTokenEvents returns the event journal for a token address.
func (s *Store) ListTokenEvents(ctx context.Context, address string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, token_address, collection, event_type, actor, old_category, new_category, created_at
		 FROM token_events WHERE token_address = ? ORDER BY rowid`,
		strings.TrimSpace(address),
	)
	if err != nil {
		return nil, fmt.Errorf("list token events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var evt event.Event
		var eventType string
		var createdAt int64
		if err := rows.Scan(
			&evt.ID,
			&evt.TokenAddress,
			&evt.Collection,
			&eventType,
			&evt.Actor,
			&evt.OldCategory,
			&evt.NewCategory,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan token event: %w", err)
		}
		evt.Type = event.Type(eventType)
		evt.Timestamp = fromMillis(createdAt)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token events: %w", err)
	}
	return events, nil
}

func replacePropertiesTx(ctx context.Context, tx *sql.Tx, address string, properties domain.Properties) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM token_properties WHERE token_address = ?`, address); err != nil {
		return fmt.Errorf("clear token properties: %w", err)
	}
	for i, entry := range properties {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO token_properties (token_address, key, kind, value, position)
			 VALUES (?, ?, ?, ?, ?)`,
			address,
			entry.Key,
			string(entry.Kind),
			entry.Value,
			i,
		); err != nil {
			return fmt.Errorf("insert token property %q: %w", entry.Key, err)
		}
	}
	return nil
}

func appendEventsTx(ctx context.Context, tx *sql.Tx, events []event.Event) error {
	for _, evt := range events {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO token_events (id, token_address, collection, event_type, actor, old_category, new_category, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.ID,
			evt.TokenAddress,
			evt.Collection,
			string(evt.Type),
			evt.Actor,
			evt.OldCategory,
			evt.NewCategory,
			toMillis(evt.Timestamp),
		); err != nil {
			return fmt.Errorf("append token event: %w", err)
		}
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
