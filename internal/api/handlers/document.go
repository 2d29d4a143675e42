package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/arclight-ai/quarry/internal/api"
	"github.com/arclight-ai/quarry/internal/api/middleware"
	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/arclight-ai/quarry/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentService interface {
	Create(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, error)
	Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
	SetLinked(ctx context.Context, ownerID, documentID string, linked bool) (*domain.Document, error)
	Reprocess(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type CreateDocumentRequest struct {
	CollectionID string `json:"collection_id"`
	Filename     string `json:"filename"`
	Text         string `json:"text"`
	Linked       *bool  `json:"linked"`
}

type LinkDocumentRequest struct {
	Linked bool `json:"linked"`
}

type DocumentResponse struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	CollectionID   string `json:"collection_id"`
	Filename       string `json:"filename"`
	Status         string `json:"status"`
	Linked         bool   `json:"linked"`
	RawTextPreview string `json:"raw_text_preview,omitempty"`
	LastError      string `json:"last_error,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:             d.ID,
		OwnerID:        d.OwnerID,
		CollectionID:   d.CollectionID,
		Filename:       d.Filename,
		Status:         string(d.Status),
		Linked:         d.Linked,
		RawTextPreview: d.RawTextPreview,
		LastError:      d.LastError,
		CreatedAt:      d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:      d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CollectionID == "" {
		api.Error(w, http.StatusBadRequest, "collection_id is required")
		return
	}
	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	// New documents participate in search by default once processed.
	linked := true
	if req.Linked != nil {
		linked = *req.Linked
	}

	input := service.CreateDocumentInput{
		OwnerID:      ownerID,
		CollectionID: req.CollectionID,
		Filename:     req.Filename,
		Text:         req.Text,
		Linked:       linked,
	}

	doc, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Link(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req LinkDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.svc.SetLinked(r.Context(), ownerID, id, req.Linked)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Reprocess(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}
