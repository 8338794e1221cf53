package app

import (
	"io"

	"go.trai.ch/kiln/internal/core/ports"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

// NewComponents creates a new Components struct from dependencies.
func NewComponents(app *App, logger ports.Logger) *Components {
	return &Components{
		App:    app,
		Logger: logger,
	}
}

// LogSettings is implemented by loggers whose output can be adjusted after
// construction.
type LogSettings interface {
	SetOutput(w io.Writer)
	SetJSON(enable bool)
	SetLevel(name string)
}
