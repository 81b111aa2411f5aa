// Package buffer implements the durable category buffers at the heart of the
// collector. Each category is a single-writer actor: appends, reads and clears
// against one category are processed strictly one at a time, backed by a
// persistent store so buffered records survive restarts.
package buffer

import (
	"context"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// Store persists the per-category record collections. Each category maps to
// one insertion-ordered collection of serialized records.
type Store interface {
	// Append adds one serialized record to the end of the category collection.
	Append(ctx context.Context, category telemetry.Category, payload []byte) error

	// List returns the category collection in append order.
	List(ctx context.Context, category telemetry.Category) ([][]byte, error)

	// Clear deletes the category collection. Idempotent.
	Clear(ctx context.Context, category telemetry.Category) error

	// Close releases store resources.
	Close() error
}
