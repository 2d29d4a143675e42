package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthService_CreateAPIKey(t *testing.T) {
	mockRepo := new(MockAPIKeyRepo)
	svc := NewAuthService(mockRepo, &stubUUIDGen{id: "key-1"})

	var created *domain.APIKey
	mockRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.APIKey)
		}).Return(nil)

	token, err := svc.CreateAPIKey(context.Background(), "owner-1", "ci key")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "qry_"))
	require.NotNil(t, created)
	assert.Equal(t, "owner-1", created.OwnerID)
	// Only the hash is persisted, never the plaintext.
	assert.NotEqual(t, token, created.KeyHash)
	assert.Equal(t, hashToken(token), created.KeyHash)
}

func TestAuthService_CreateAPIKey_Validation(t *testing.T) {
	svc := NewAuthService(new(MockAPIKeyRepo), &DefaultUUIDGenerator{})

	_, err := svc.CreateAPIKey(context.Background(), "", "name")
	assert.Error(t, err)

	_, err = svc.CreateAPIKey(context.Background(), "owner-1", "")
	assert.Error(t, err)
}

func TestAuthService_ValidateAPIKey(t *testing.T) {
	mockRepo := new(MockAPIKeyRepo)
	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})

	token := "qry_abc123"
	key := &domain.APIKey{
		ID:        "key-1",
		OwnerID:   "owner-1",
		Name:      "test",
		KeyHash:   hashToken(token),
		CreatedAt: time.Now().UTC(),
	}

	mockRepo.On("GetByHash", mock.Anything, hashToken(token)).Return(key, nil)

	ownerID, err := svc.ValidateAPIKey(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, "owner-1", ownerID)
}

func TestAuthService_ValidateAPIKey_WrongPrefix(t *testing.T) {
	mockRepo := new(MockAPIKeyRepo)
	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})

	_, err := svc.ValidateAPIKey(context.Background(), "sk_not_ours")

	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	mockRepo.AssertNotCalled(t, "GetByHash")
}

func TestAuthService_ValidateAPIKey_Unknown(t *testing.T) {
	mockRepo := new(MockAPIKeyRepo)
	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})

	mockRepo.On("GetByHash", mock.Anything, mock.Anything).Return(nil, domain.ErrAPIKeyNotFound)

	_, err := svc.ValidateAPIKey(context.Background(), "qry_unknown")
	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
}

func TestAuthService_ValidateAPIKey_Revoked(t *testing.T) {
	mockRepo := new(MockAPIKeyRepo)
	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})

	revokedAt := time.Now().UTC()
	token := "qry_revoked"
	key := &domain.APIKey{
		ID:        "key-1",
		OwnerID:   "owner-1",
		Name:      "old",
		KeyHash:   hashToken(token),
		CreatedAt: revokedAt.Add(-time.Hour),
		RevokedAt: &revokedAt,
	}

	mockRepo.On("GetByHash", mock.Anything, hashToken(token)).Return(key, nil)

	_, err := svc.ValidateAPIKey(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrAPIKeyRevoked)
}

func TestAuthService_ImportAPIKey(t *testing.T) {
	mockRepo := new(MockAPIKeyRepo)
	svc := NewAuthService(mockRepo, &stubUUIDGen{id: "key-1"})

	mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	err := svc.ImportAPIKey(context.Background(), "owner-1", "bootstrap", "qry_bootstraptoken")
	require.NoError(t, err)

	err = svc.ImportAPIKey(context.Background(), "owner-1", "bootstrap", "badprefix")
	assert.Error(t, err)
}
