package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Reporter receives job events. Implementations must be safe for concurrent use.
//
//go:generate mockgen -source=reporter.go -destination=mocks/mock_reporter.go -package=mocks
type Reporter interface {
	// Report records a single state change.
	Report(ctx context.Context, ev domain.JobEvent)

	// Close flushes any pending output.
	Close() error
}
