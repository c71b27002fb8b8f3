package store

import (
	"context"
	"errors"
	"time"
)

// ErrClientNotFound is returned when no client matches a lookup.
var ErrClientNotFound = errors.New("client not found")

// ClientRecord is a registered client identity.
type ClientRecord struct {
	UUID        string    `json:"uuid"`
	Token       string    `json:"-"` // plaintext, only set on records returned by a token lookup
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AboutMe     string    `json:"about_me"`
	CreatedAt   time.Time `json:"-"`
}

// NewClient describes a client to be persisted. TokenDigest is the stored form of the token.
type NewClient struct {
	UUID        string
	TokenDigest string
	Username    string
	DisplayName string
	AboutMe     string
}

// ClientStore handles client persistence.
type ClientStore interface {
	// GetClientByTokenDigest returns the client whose current token hashes to digest.
	GetClientByTokenDigest(ctx context.Context, digest string) (*ClientRecord, error)

	// GetClientByUUID retrieves a client by its uuid.
	GetClientByUUID(ctx context.Context, uuid string) (*ClientRecord, error)

	// ListClients returns every registered client ordered by registration time.
	ListClients(ctx context.Context) ([]*ClientRecord, error)

	// CreateClient persists a new client.
	CreateClient(ctx context.Context, c NewClient) (*ClientRecord, error)

	// UpdateTokenDigest replaces the stored token of a client.
	UpdateTokenDigest(ctx context.Context, uuid, digest string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	ClientStore

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
