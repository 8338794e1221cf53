// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Executor defines the interface for running recipe steps.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs cmd with the given environment and waits for it to exit.
	//
	// A non-zero exit or a timeout is reported as a *domain.StepError
	// carrying the exit code and the tail of the captured output.
	Execute(ctx context.Context, cmd domain.Command, env *domain.BuildEnvironment) error
}
