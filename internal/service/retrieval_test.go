package service

import (
	"context"
	"errors"
	"testing"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRetrievalService(client *MockEmbeddingClient, docs *MockDocumentRepo, chunks *MockChunkRepo, logs *MockSearchLogRepo) *RetrievalService {
	svc := NewRetrievalService(client, docs, chunks, logs)
	svc.uuidGen = &stubUUIDGen{id: "log-1"}
	return svc
}

func searchCandidate(id string, index int, embedding []float32) domain.Chunk {
	return domain.Chunk{
		ID:           id,
		DocumentID:   "doc-1",
		OwnerID:      "owner-1",
		CollectionID: "col-1",
		Index:        index,
		Text:         "candidate " + id,
		Embedding:    embedding,
	}
}

func baseSearchInput() SearchInput {
	return SearchInput{
		OwnerID:      "owner-1",
		CollectionID: "col-1",
		Query:        "what is the answer",
		Limit:        2,
		Threshold:    0.5,
	}
}

func TestRetrievalService_Search_Validation(t *testing.T) {
	svc := newTestRetrievalService(new(MockEmbeddingClient), new(MockDocumentRepo), new(MockChunkRepo), new(MockSearchLogRepo))

	_, err := svc.Search(context.Background(), SearchInput{CollectionID: "c", Query: "q"})
	assert.Error(t, err)

	_, err = svc.Search(context.Background(), SearchInput{OwnerID: "o", CollectionID: "c", Query: "   "})
	assert.Error(t, err)
}

func TestRetrievalService_Search_NoEligibleDocuments(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	input := baseSearchInput()
	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, input.OwnerID, input.CollectionID).Return([]string{}, nil)

	var logged *domain.SearchLog
	mockLogs.On("CreateSearchLog", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			logged = args.Get(1).(*domain.SearchLog)
		}).Return("log-1", nil)

	out, err := svc.Search(context.Background(), input)

	require.NoError(t, err)
	assert.Empty(t, out.Results)

	// No embedding credit is spent on an empty collection, but the search
	// is still logged.
	mockClient.AssertNotCalled(t, "GenerateEmbedding")
	mockChunks.AssertNotCalled(t, "FetchSearchCandidates")
	require.NotNil(t, logged)
	assert.Equal(t, 0, logged.ResultCount)
	assert.Nil(t, logged.QueryEmbedding)
	assert.Equal(t, input.Query, logged.Query)
}

func TestRetrievalService_Search_RanksAndTruncates(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	input := baseSearchInput()
	query := []float32{1, 0}

	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, input.OwnerID, input.CollectionID).Return([]string{"doc-1"}, nil)
	mockClient.On("GenerateEmbedding", mock.Anything, input.Query).Return(query, nil)
	mockChunks.On("FetchSearchCandidates", mock.Anything, input.OwnerID, input.CollectionID, input.Limit*3).Return([]domain.Chunk{
		searchCandidate("low", 0, []float32{0, 1}),        // score 0, below threshold
		searchCandidate("mid", 1, []float32{1, 1}),        // score ~0.707
		searchCandidate("high", 2, []float32{1, 0}),       // score 1
		searchCandidate("mid2", 3, []float32{0.9, 0.43}),  // score ~0.9
	}, nil)
	mockLogs.On("CreateSearchLog", mock.Anything, mock.Anything).Return("log-1", nil)

	out, err := svc.Search(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "high", out.Results[0].Chunk.ID)
	assert.Equal(t, "mid2", out.Results[1].Chunk.ID)
	assert.InDelta(t, 1.0, float64(out.TopScore), 1e-6)
	mockLogs.AssertExpectations(t)
}

func TestRetrievalService_Search_ThresholdFilter(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	input := baseSearchInput()
	input.Threshold = 0.9
	query := []float32{1, 0}

	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, mock.Anything, mock.Anything).Return([]string{"doc-1"}, nil)
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(query, nil)
	mockChunks.On("FetchSearchCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.Chunk{
		searchCandidate("exact", 0, []float32{1, 0}),
		searchCandidate("close", 1, []float32{1, 0.1}),
		searchCandidate("far", 2, []float32{1, 1}),
	}, nil)
	mockLogs.On("CreateSearchLog", mock.Anything, mock.Anything).Return("log-1", nil)

	out, err := svc.Search(context.Background(), input)

	require.NoError(t, err)
	for _, r := range out.Results {
		assert.GreaterOrEqual(t, r.Score, float32(0.9))
	}
	require.Len(t, out.Results, 2)
	assert.Equal(t, "exact", out.Results[0].Chunk.ID)
}

func TestRetrievalService_Search_NegativeThresholdDisablesCutoff(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	// A negative threshold must not fall back to the default cutoff; every
	// candidate qualifies, even one pointing the opposite way.
	input := baseSearchInput()
	input.Threshold = -1
	input.Limit = 3
	query := []float32{1, 0}

	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, mock.Anything, mock.Anything).Return([]string{"doc-1"}, nil)
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(query, nil)
	mockChunks.On("FetchSearchCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.Chunk{
		searchCandidate("exact", 0, []float32{1, 0}),
		searchCandidate("orthogonal", 1, []float32{0, 1}),
		searchCandidate("opposite", 2, []float32{-1, 0}),
	}, nil)
	mockLogs.On("CreateSearchLog", mock.Anything, mock.Anything).Return("log-1", nil)

	out, err := svc.Search(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "exact", out.Results[0].Chunk.ID)
	assert.Equal(t, "opposite", out.Results[2].Chunk.ID)
	assert.Less(t, out.Results[2].Score, float32(0))
}

func TestRetrievalService_Search_StableTieBreak(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	input := baseSearchInput()
	query := []float32{1, 0}
	same := []float32{1, 0}

	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, mock.Anything, mock.Anything).Return([]string{"doc-1"}, nil)
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(query, nil)
	mockChunks.On("FetchSearchCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.Chunk{
		searchCandidate("first", 0, same),
		searchCandidate("second", 1, same),
	}, nil)
	mockLogs.On("CreateSearchLog", mock.Anything, mock.Anything).Return("log-1", nil)

	out, err := svc.Search(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	// Equal scores keep candidate fetch order.
	assert.Equal(t, "first", out.Results[0].Chunk.ID)
	assert.Equal(t, "second", out.Results[1].Chunk.ID)
}

func TestRetrievalService_Search_SkipsDimensionMismatch(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	input := baseSearchInput()
	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, mock.Anything, mock.Anything).Return([]string{"doc-1"}, nil)
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	mockChunks.On("FetchSearchCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.Chunk{
		searchCandidate("stale", 0, []float32{1, 0, 0}), // wrong model dims
		searchCandidate("good", 1, []float32{1, 0}),
	}, nil)
	mockLogs.On("CreateSearchLog", mock.Anything, mock.Anything).Return("log-1", nil)

	out, err := svc.Search(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "good", out.Results[0].Chunk.ID)
}

func TestRetrievalService_Search_ScopeViolationAborts(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	input := baseSearchInput()
	leaked := searchCandidate("leaked", 0, []float32{1, 0})
	leaked.OwnerID = "other-owner"

	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, mock.Anything, mock.Anything).Return([]string{"doc-1"}, nil)
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	mockChunks.On("FetchSearchCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.Chunk{leaked}, nil)

	_, err := svc.Search(context.Background(), input)

	assert.ErrorIs(t, err, domain.ErrScopeViolation)
	mockLogs.AssertNotCalled(t, "CreateSearchLog")
}

func TestRetrievalService_Search_LogFailureDoesNotFailSearch(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	input := baseSearchInput()
	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, mock.Anything, mock.Anything).Return([]string{"doc-1"}, nil)
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	mockChunks.On("FetchSearchCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.Chunk{
		searchCandidate("good", 0, []float32{1, 0}),
	}, nil)
	mockLogs.On("CreateSearchLog", mock.Anything, mock.Anything).Return("", errors.New("disk full"))

	out, err := svc.Search(context.Background(), input)

	require.NoError(t, err)
	assert.Len(t, out.Results, 1)
}

func TestRetrievalService_Search_ProviderErrorPropagates(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	mockDocs := new(MockDocumentRepo)
	mockChunks := new(MockChunkRepo)
	mockLogs := new(MockSearchLogRepo)
	svc := newTestRetrievalService(mockClient, mockDocs, mockChunks, mockLogs)

	input := baseSearchInput()
	providerErr := domain.NewProviderError("embedding request failed", errors.New("401"))

	mockDocs.On("ListLinkedProcessedIDs", mock.Anything, mock.Anything, mock.Anything).Return([]string{"doc-1"}, nil)
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, providerErr)

	_, err := svc.Search(context.Background(), input)

	assert.Equal(t, providerErr, err)
	mockChunks.AssertNotCalled(t, "FetchSearchCandidates")
}
