package service

import (
	"context"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockEmbeddingClient mocks the embedding provider client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockDocumentRepo mocks the document repository
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, lastError string) error {
	args := m.Called(ctx, id, status, lastError)
	return args.Error(0)
}

func (m *MockDocumentRepo) MarkProcessed(ctx context.Context, id string, rawTextPreview string) error {
	args := m.Called(ctx, id, rawTextPreview)
	return args.Error(0)
}

func (m *MockDocumentRepo) SetLinked(ctx context.Context, ownerID, id string, linked bool) error {
	args := m.Called(ctx, ownerID, id, linked)
	return args.Error(0)
}

func (m *MockDocumentRepo) ListLinkedProcessedIDs(ctx context.Context, ownerID, collectionID string) ([]string, error) {
	args := m.Called(ctx, ownerID, collectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDocumentRepo) ListPending(ctx context.Context, limit int) ([]*domain.Document, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

// MockChunkRepo mocks the chunk repository
type MockChunkRepo struct {
	mock.Mock
}

func (m *MockChunkRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

func (m *MockChunkRepo) FetchSearchCandidates(ctx context.Context, ownerID, collectionID string, limit int) ([]domain.Chunk, error) {
	args := m.Called(ctx, ownerID, collectionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockChunkRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

// MockSearchLogRepo mocks the search log repository
type MockSearchLogRepo struct {
	mock.Mock
}

func (m *MockSearchLogRepo) CreateSearchLog(ctx context.Context, entry *domain.SearchLog) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

// MockAPIKeyRepo mocks the API key repository
type MockAPIKeyRepo struct {
	mock.Mock
}

func (m *MockAPIKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepo) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepo) ListByOwner(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepo) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRawTextStore mocks the raw text object store
type MockRawTextStore struct {
	mock.Mock
}

func (m *MockRawTextStore) PutDocumentText(ctx context.Context, ownerID, documentID, text string) (string, error) {
	args := m.Called(ctx, ownerID, documentID, text)
	return args.String(0), args.Error(1)
}

func (m *MockRawTextStore) GetDocumentText(ctx context.Context, storageKey string) (string, error) {
	args := m.Called(ctx, storageKey)
	return args.String(0), args.Error(1)
}

func (m *MockRawTextStore) DeleteDocumentText(ctx context.Context, storageKey string) error {
	args := m.Called(ctx, storageKey)
	return args.Error(0)
}

// stubTxRepos hands the same mocks back to transactional callers
type stubTxRepos struct {
	docs   DocumentRepositoryInterface
	chunks ChunkRepositoryInterface
}

func (s stubTxRepos) Documents() DocumentRepositoryInterface { return s.docs }
func (s stubTxRepos) Chunks() ChunkRepositoryInterface       { return s.chunks }

// stubTxRunner runs the callback directly, no real transaction
type stubTxRunner struct {
	repos  stubTxRepos
	err    error
	called bool
}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	s.called = true
	if s.err != nil {
		return s.err
	}
	return fn(s.repos)
}

// stubUUIDGen returns a fixed ID
type stubUUIDGen struct {
	id string
}

func (g *stubUUIDGen) NewString() string { return g.id }
