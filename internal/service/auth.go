package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/arclight-ai/quarry/internal/domain"
)

const apiKeyPrefix = "qry_"

// APIKeyRepositoryInterface defines the repository interface for API key persistence
type APIKeyRepositoryInterface interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

// AuthService issues and validates the hashed API keys that carry tenant
// identity at the HTTP edge.
type AuthService struct {
	keyRepo APIKeyRepositoryInterface
	uuidGen UUIDGenerator
}

func NewAuthService(keyRepo APIKeyRepositoryInterface, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		keyRepo: keyRepo,
		uuidGen: uuidGen,
	}
}

// CreateAPIKey mints a new key for an owner and returns the plaintext token.
// Only the SHA-256 hash is stored.
func (s *AuthService) CreateAPIKey(ctx context.Context, ownerID, name string) (string, error) {
	if ownerID == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	if name == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		KeyHash:   hashToken(token),
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid api key", err)
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", err
	}

	return token, nil
}

// ImportAPIKey registers a caller-supplied token, used for bootstrap.
func (s *AuthService) ImportAPIKey(ctx context.Context, ownerID, name, token string) error {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return domain.NewDomainError(domain.ErrCodeValidation, "api key must start with "+apiKeyPrefix)
	}

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		KeyHash:   hashToken(token),
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid api key", err)
	}

	return s.keyRepo.Create(ctx, key)
}

// ValidateAPIKey resolves a bearer token to the owning tenant.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return "", domain.ErrInvalidAPIKey
	}

	key, err := s.keyRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		return "", domain.ErrInvalidAPIKey
	}

	if key.IsRevoked() {
		return "", domain.ErrAPIKeyRevoked
	}

	return key.OwnerID, nil
}

// ListAPIKeys returns an owner's keys (hashes only).
func (s *AuthService) ListAPIKeys(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	return s.keyRepo.ListByOwner(ctx, ownerID)
}

// RevokeAPIKey revokes a key by ID.
func (s *AuthService) RevokeAPIKey(ctx context.Context, id string) error {
	return s.keyRepo.Revoke(ctx, id)
}

func generateAPIToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
