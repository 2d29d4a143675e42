package service

import (
	"context"

	"github.com/arclight-ai/quarry/internal/domain"
)

// SearchLogRepositoryInterface persists append-only search telemetry.
type SearchLogRepositoryInterface interface {
	CreateSearchLog(ctx context.Context, entry *domain.SearchLog) (string, error)
}
