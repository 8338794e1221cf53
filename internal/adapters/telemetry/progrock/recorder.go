// Package progrock reports build job progress as Progrock vertices.
package progrock

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

var _ ports.Reporter = (*Reporter)(nil)

// Reporter implements ports.Reporter. Each package becomes one vertex that
// receives a line per state change and completes on a terminal state.
type Reporter struct {
	w      progrock.Writer
	board  *Board
	rec    *progrock.Recorder
	logger ports.Logger

	mu       sync.Mutex
	vertices map[string]*progrock.VertexRecorder
}

// New creates a new Reporter recording to a Board that prints completed
// packages to out. A nil out records without rendering.
func New(logger ports.Logger, out io.Writer) *Reporter {
	return NewReporter(NewBoard(out), logger)
}

// NewReporter creates a new Reporter with the given writer.
func NewReporter(w progrock.Writer, logger ports.Logger) *Reporter {
	board, _ := w.(*Board)
	return &Reporter{
		w:        w,
		board:    board,
		rec:      progrock.NewRecorder(w),
		logger:   logger,
		vertices: make(map[string]*progrock.VertexRecorder),
	}
}

// Progress returns the recorded vertex states, or nil when the reporter
// does not write to a Board.
func (r *Reporter) Progress() []VertexState {
	if r.board == nil {
		return nil
	}
	return r.board.Vertices()
}

// Report records ev on the vertex of its package.
func (r *Reporter) Report(_ context.Context, ev domain.JobEvent) {
	id := ev.Package + "-" + ev.Version

	r.mu.Lock()
	v, ok := r.vertices[id]
	if !ok {
		v = r.rec.Vertex(digest.FromString(id), id)
		r.vertices[id] = v
	}
	if ev.State.Terminal() {
		delete(r.vertices, id)
	}
	r.mu.Unlock()

	if ev.Err != nil {
		_, _ = fmt.Fprintf(v.Stdout(), "%s: %v\n", ev.State, ev.Err)
	} else {
		_, _ = fmt.Fprintf(v.Stdout(), "%s\n", ev.State)
	}

	r.log(id, ev)

	switch ev.State {
	case domain.StateDone:
		v.Done(nil)
	case domain.StateFailed, domain.StateSkipped:
		v.Done(ev.Err)
	}
}

func (r *Reporter) log(id string, ev domain.JobEvent) {
	switch ev.State {
	case domain.StateDone:
		r.logger.Info("package installed", "package", id)
	case domain.StateFailed:
		r.logger.Warn("package failed", "package", id, "error", ev.Err)
	case domain.StateSkipped:
		r.logger.Warn("package skipped", "package", id, "reason", ev.Err)
	default:
		r.logger.Debug("package state", "package", id, "state", string(ev.State))
	}
}

// Close flushes and closes the recording session.
func (r *Reporter) Close() error {
	return r.w.Close()
}
