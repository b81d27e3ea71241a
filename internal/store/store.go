// Package store is the durable client-state boundary: the session
// credential, the pending payment marker, and the cached document list
// all survive restarts through a local sqlite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/osolomko/doctran/internal/api"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- session holds at most one row: the current bearer credential and
	-- the serialized user snapshot.
	CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		token TEXT NOT NULL,
		user_json TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- pending_payment marks an upgrade attempt whose external payment
	-- step may complete in a different process lifetime.
	CREATE TABLE IF NOT EXISTS pending_payment (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		tier TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- documents is a read-only cache of the server's document list,
	-- replaced wholesale on every refresh.
	CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		upload_time TIMESTAMP,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_upload ON documents(upload_time);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSession persists the credential and user snapshot, replacing any
// previous session.
func (s *Store) SaveSession(ctx context.Context, token string, user api.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to serialize user: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO session (id, token, user_json, updated_at) VALUES (1, ?, ?, ?)`,
		token, string(userJSON), time.Now())
	return err
}

// LoadSession returns the persisted credential, or ("", nil, nil) when no
// session is stored.
func (s *Store) LoadSession(ctx context.Context) (string, *api.User, error) {
	var token, userJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_json FROM session WHERE id = 1`).Scan(&token, &userJSON)
	if err == sql.ErrNoRows {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	var user api.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return "", nil, fmt.Errorf("failed to deserialize user: %w", err)
	}
	return token, &user, nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session`)
	return err
}

// SavePendingTier records the tier an upgrade attempt targets.
func (s *Store) SavePendingTier(ctx context.Context, tier string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_payment (id, tier, created_at) VALUES (1, ?, ?)`,
		tier, time.Now())
	return err
}

// LoadPendingTier returns the persisted tier marker, or "" when none.
func (s *Store) LoadPendingTier(ctx context.Context) (string, error) {
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT tier FROM pending_payment WHERE id = 1`).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return tier, nil
}

func (s *Store) ClearPendingTier(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_payment`)
	return err
}

// ReplaceDocuments swaps the cached document list for the given one.
func (s *Store) ReplaceDocuments(ctx context.Context, docs []api.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return err
	}
	now := time.Now()
	for _, d := range docs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (doc_id, filename, status, upload_time, fetched_at) VALUES (?, ?, ?, ?, ?)`,
			d.DocID, d.Filename, d.Status, d.UploadTime, now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListDocuments returns the cached documents, most recent first.
func (s *Store) ListDocuments(ctx context.Context) ([]api.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, filename, status, upload_time FROM documents ORDER BY upload_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []api.Document
	for rows.Next() {
		var d api.Document
		if err := rows.Scan(&d.DocID, &d.Filename, &d.Status, &d.UploadTime); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
