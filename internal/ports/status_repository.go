package ports

import (
	"context"

	"github.com/bft-labs/tickship/internal/domain"
)

// StatusRepository stores the status snapshot written after each flush.
type StatusRepository interface {
	// Load returns the last saved status, or a zero Status and nil error
	// when none exists.
	Load(ctx context.Context) (domain.Status, error)

	// Save persists status atomically.
	Save(ctx context.Context, status domain.Status) error
}
