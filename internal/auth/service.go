package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/tensor-server/internal/store"
	"github.com/vovakirdan/tensor-server/internal/utils"
)

var (
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidToken is returned when a token does not belong to any client.
	ErrInvalidToken = errors.New("invalid token")
)

// Service provides client registration and token operations.
type Service struct {
	store store.ClientStore
}

// NewService creates a new authentication service.
func NewService(clientStore store.ClientStore) *Service {
	return &Service{store: clientStore}
}

// Register creates a new client and returns it together with its plaintext token.
// The token is not recoverable afterwards.
func (s *Service) Register(ctx context.Context, username string) (*store.ClientRecord, string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 1 || len(username) > 32 {
		return nil, "", ErrInvalidUsername
	}

	token := utils.NewToken()
	client, err := s.store.CreateClient(ctx, store.NewClient{
		UUID:        utils.NewClientUUID(),
		TokenDigest: DigestToken(token),
		Username:    username,
		DisplayName: username,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create client: %w", err)
	}

	client.Token = token
	return client, token, nil
}

// RotateToken issues a new token for the client. Later validations of the old token fail;
// connections already authenticated with it are left alone.
func (s *Service) RotateToken(ctx context.Context, uuid string) (*store.ClientRecord, string, error) {
	client, err := s.store.GetClientByUUID(ctx, uuid)
	if err != nil {
		return nil, "", err
	}

	token := utils.NewToken()
	if err := s.store.UpdateTokenDigest(ctx, uuid, DigestToken(token)); err != nil {
		return nil, "", fmt.Errorf("rotate token: %w", err)
	}

	client.Token = token
	return client, token, nil
}

// ValidateToken returns the client owning token, with Token populated.
func (s *Service) ValidateToken(ctx context.Context, token string) (*store.ClientRecord, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, store.ErrClientNotFound)
	}

	client, err := s.store.GetClientByTokenDigest(ctx, DigestToken(token))
	if err != nil {
		if errors.Is(err, store.ErrClientNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}

	client.Token = token
	return client, nil
}

// ListClients returns every registered client.
func (s *Service) ListClients(ctx context.Context) ([]*store.ClientRecord, error) {
	return s.store.ListClients(ctx)
}
