// Package storage defines the port interface for persisting recognition
// artifacts (result documents and source images).
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// StoredResult is one persisted result document with its envelope metadata.
type StoredResult struct {
	Result   json.RawMessage `json:"result"`
	Metadata Envelope        `json:"metadata"`
}

// Envelope identifies a stored result.
type Envelope struct {
	ImageHash string `json:"image_hash"`
	ModelName string `json:"model_name"`
	Timestamp int64  `json:"timestamp"`
}

// Store persists recognition artifacts. Durability is best effort; callers
// treat failures as non-fatal.
type Store interface {
	// SaveResult persists a result document labeled with the image hash
	// and the model (or stage label) that produced it.
	SaveResult(ctx context.Context, result any, imageHash, modelName string) (string, error)

	// SaveImage persists the original image bytes under its hash.
	SaveImage(ctx context.Context, data []byte, imageHash string) (string, error)

	// ResultsForImage returns all stored results for an image hash,
	// newest first.
	ResultsForImage(ctx context.Context, imageHash string) ([]StoredResult, error)

	// DeleteResultsForImage removes all results for an image hash and
	// reports how many were deleted.
	DeleteResultsForImage(ctx context.Context, imageHash string) (int, error)

	// PruneOlderThan removes results older than the given age and reports
	// how many were deleted.
	PruneOlderThan(ctx context.Context, age time.Duration) (int, error)
}
