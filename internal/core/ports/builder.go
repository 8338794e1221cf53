package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// PackageBuilder runs the fetch, extract, configure, compile and install
// pipeline of a single package.
//
//go:generate mockgen -source=builder.go -destination=mocks/mock_builder.go -package=mocks
type PackageBuilder interface {
	// Build advances job from Pending to Installing and returns the files the
	// install step added, relative to the layout root. It does not record
	// the package, and it leaves the final Done or Failed transition to the caller.
	Build(ctx context.Context, sess *domain.Session, job *domain.BuildJob) ([]string, error)
}
