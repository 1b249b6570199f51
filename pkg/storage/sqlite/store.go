// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements storage.Store on SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/stacklok/wolfauth/pkg/storage"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the SQLite database at path, applies pending
// migrations, and returns a ready Store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The driver serializes access through a single connection; more
	// connections just contend on the write lock.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateClient inserts a new client credential row.
func (s *Store) CreateClient(ctx context.Context, name, secretHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (name, secret_hash) VALUES (?, ?)`,
		name, secretHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting client: %w", err)
	}
	return nil
}

// GetClient fetches a client by name.
func (s *Store) GetClient(ctx context.Context, name string) (storage.ClientRecord, error) {
	var rec storage.ClientRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT name, secret_hash, disabled FROM clients WHERE name = ?`,
		name,
	).Scan(&rec.Name, &rec.SecretHash, &rec.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ClientRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ClientRecord{}, fmt.Errorf("querying client: %w", err)
	}
	return rec, nil
}

// SetClientDisabled updates the disabled flag.
func (s *Store) SetClientDisabled(ctx context.Context, name string, disabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET disabled = ? WHERE name = ?`,
		disabled, name,
	)
	if err != nil {
		return fmt.Errorf("updating client disabled flag: %w", err)
	}
	return requireAffected(res)
}

// SetClientSecretHash replaces the stored secret hash.
func (s *Store) SetClientSecretHash(ctx context.Context, name, secretHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET secret_hash = ? WHERE name = ?`,
		secretHash, name,
	)
	if err != nil {
		return fmt.Errorf("updating client secret: %w", err)
	}
	return requireAffected(res)
}

// DeleteClient removes a client and its grants. Scopes it owns remain,
// with the owner column now naming a gone client.
func (s *Store) DeleteClient(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting client: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM access WHERE client = ?`, name); err != nil {
		return fmt.Errorf("deleting client grants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SearchClients returns matching client names, capped at SearchLimit.
func (s *Store) SearchClients(ctx context.Context, nameSubstr string, disabled bool) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM clients
		 WHERE instr(lower(name), lower(?)) > 0 AND disabled = ?
		 ORDER BY name LIMIT ?`,
		nameSubstr, disabled, storage.SearchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning client row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client rows: %w", err)
	}
	return names, nil
}

// CreateScopeWithGrant inserts a scope and the owner's self-grant in one
// transaction. A failed grant rolls back the scope row.
func (s *Store) CreateScopeWithGrant(ctx context.Context, name, owner string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scopes (name, owner) VALUES (?, ?)`,
		name, owner,
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting scope: %w", err)
	}

	// The owner may already hold the scope if it was granted before a
	// delete/recreate cycle; tolerate the duplicate.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO access (client, scope) VALUES (?, ?)`,
		owner, name,
	); err != nil {
		return fmt.Errorf("inserting owner grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetScopeOwner returns the owner recorded for a scope.
func (s *Store) GetScopeOwner(ctx context.Context, name string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner FROM scopes WHERE name = ?`, name,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying scope owner: %w", err)
	}
	return owner, nil
}

// DeleteScope removes a scope and every grant of it.
func (s *Store) DeleteScope(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `DELETE FROM scopes WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting scope: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM access WHERE scope = ?`, name); err != nil {
		return fmt.Errorf("deleting scope grants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SearchScopes returns matching scopes, capped at SearchLimit.
func (s *Store) SearchScopes(ctx context.Context, nameSubstr, ownerSubstr string) ([]storage.ScopeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, owner FROM scopes
		 WHERE instr(lower(name), lower(?)) > 0 AND instr(lower(owner), lower(?)) > 0
		 ORDER BY name LIMIT ?`,
		nameSubstr, ownerSubstr, storage.SearchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying scopes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []storage.ScopeRecord
	for rows.Next() {
		var rec storage.ScopeRecord
		if err := rows.Scan(&rec.Name, &rec.Owner); err != nil {
			return nil, fmt.Errorf("scanning scope row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scope rows: %w", err)
	}
	return recs, nil
}

// CreateAccess grants a scope to a client.
func (s *Store) CreateAccess(ctx context.Context, client, scope string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access (client, scope) VALUES (?, ?)`,
		client, scope,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting grant: %w", err)
	}
	return nil
}

// HasAccess reports whether the grant exists.
func (s *Store) HasAccess(ctx context.Context, client, scope string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM access WHERE client = ? AND scope = ?`,
		client, scope,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying grant: %w", err)
	}
	return true, nil
}

// ListClientScopes returns all scope names granted to a client.
func (s *Store) ListClientScopes(ctx context.Context, client string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scope FROM access WHERE client = ? ORDER BY scope`,
		client,
	)
	if err != nil {
		return nil, fmt.Errorf("querying client grants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning grant row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grant rows: %w", err)
	}
	return names, nil
}

// DeleteAccess revokes a grant.
func (s *Store) DeleteAccess(ctx context.Context, client, scope string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM access WHERE client = ? AND scope = ?`,
		client, scope,
	)
	if err != nil {
		return fmt.Errorf("deleting grant: %w", err)
	}
	return requireAffected(res)
}

// SearchAccess returns matching grants, capped at SearchLimit.
func (s *Store) SearchAccess(ctx context.Context, clientSubstr, scopeSubstr string) ([]storage.AccessRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT client, scope FROM access
		 WHERE instr(lower(client), lower(?)) > 0 AND instr(lower(scope), lower(?)) > 0
		 ORDER BY client, scope LIMIT ?`,
		clientSubstr, scopeSubstr, storage.SearchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []storage.AccessRecord
	for rows.Next() {
		var rec storage.AccessRecord
		if err := rows.Scan(&rec.Client, &rec.Scope); err != nil {
			return nil, fmt.Errorf("scanning grant row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grant rows: %w", err)
	}
	return recs, nil
}

// requireAffected maps a zero-row update or delete to ErrNotFound.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// isUniqueViolation checks for a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// rollback rolls back tx, ignoring errors (tx may already be committed).
func rollback(tx *sql.Tx) { _ = tx.Rollback() }
