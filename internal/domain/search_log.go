package domain

import "time"

// SearchLog is an append-only record of one search call. Retention and
// cleanup are handled outside this service.
type SearchLog struct {
	ID             string
	OwnerID        string
	CollectionID   string
	Query          string
	QueryEmbedding []float32
	ResultCount    int
	TopScore       float32
	DurationMs     int
	CreatedAt      time.Time
}
