package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/arclight-ai/quarry/internal/api"
	"github.com/arclight-ai/quarry/internal/api/middleware"
	"github.com/arclight-ai/quarry/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	CollectionID string  `json:"collection_id"`
	Query        string  `json:"query"`
	Limit        int     `json:"limit"`
	Threshold    float32 `json:"threshold"`
}

type SearchResultResponse struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	ChunkIndex   int     `json:"chunk_index"`
	Text         string  `json:"text"`
	Score        float32 `json:"score"`
	PageNumber   *int    `json:"page_number,omitempty"`
	SectionTitle string  `json:"section_title,omitempty"`
}

type SearchResponse struct {
	Results  []SearchResultResponse `json:"results"`
	TopScore float32                `json:"top_score"`
	Passages string                 `json:"passages"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CollectionID == "" {
		api.Error(w, http.StatusBadRequest, "collection_id is required")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	input := service.SearchInput{
		OwnerID:      ownerID,
		CollectionID: req.CollectionID,
		Query:        req.Query,
		Limit:        req.Limit,
		Threshold:    req.Threshold,
	}

	output, err := h.svc.Search(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]SearchResultResponse, len(output.Results))
	for i, scored := range output.Results {
		results[i] = SearchResultResponse{
			ChunkID:      scored.Chunk.ID,
			DocumentID:   scored.Chunk.DocumentID,
			ChunkIndex:   scored.Chunk.Index,
			Text:         scored.Chunk.Text,
			Score:        scored.Score,
			PageNumber:   scored.Chunk.PageNumber,
			SectionTitle: scored.Chunk.SectionTitle,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results:  results,
		TopScore: output.TopScore,
		Passages: service.FormatPassages(output.Results),
	})
}
