package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/tensor-server/internal/store"
)

// Schema creates the clients table when missing.
const Schema = `
CREATE TABLE IF NOT EXISTS clients (
	uuid         TEXT PRIMARY KEY,
	token_digest TEXT NOT NULL UNIQUE,
	username     TEXT NOT NULL,
	display_name TEXT NOT NULL,
	about_me     TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath and ensures the schema exists.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectClient = `
	SELECT uuid, username, display_name, about_me, created_at
	FROM clients
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*store.ClientRecord, error) {
	var c store.ClientRecord
	if err := row.Scan(&c.UUID, &c.Username, &c.DisplayName, &c.AboutMe, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClientByTokenDigest retrieves a client by its token digest.
func (s *SQLiteStore) GetClientByTokenDigest(ctx context.Context, digest string) (*store.ClientRecord, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, selectClient+` WHERE token_digest = ? LIMIT 1`, digest))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrClientNotFound
		}
		return nil, fmt.Errorf("query client by token: %w", err)
	}
	return c, nil
}

// GetClientByUUID retrieves a client by uuid.
func (s *SQLiteStore) GetClientByUUID(ctx context.Context, uuid string) (*store.ClientRecord, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, selectClient+` WHERE uuid = ?`, uuid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrClientNotFound
		}
		return nil, fmt.Errorf("query client: %w", err)
	}
	return c, nil
}

// ListClients returns all registered clients.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]*store.ClientRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectClient+` ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []*store.ClientRecord
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}

	return clients, nil
}

// CreateClient inserts a new client row.
func (s *SQLiteStore) CreateClient(ctx context.Context, c store.NewClient) (*store.ClientRecord, error) {
	query := `
		INSERT INTO clients (uuid, token_digest, username, display_name, about_me)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, c.UUID, c.TokenDigest, c.Username, c.DisplayName, c.AboutMe); err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}

	return s.GetClientByUUID(ctx, c.UUID)
}

// UpdateTokenDigest rotates the stored token for a client.
func (s *SQLiteStore) UpdateTokenDigest(ctx context.Context, uuid, digest string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE clients SET token_digest = ? WHERE uuid = ?`, digest, uuid)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrClientNotFound
	}

	return nil
}

var _ store.Store = (*SQLiteStore)(nil)
