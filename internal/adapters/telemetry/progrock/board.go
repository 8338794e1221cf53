package progrock

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vito/progrock"
)

// Vertex status values tracked by a Board.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// VertexState is the folded view of one vertex on a Board.
type VertexState struct {
	ID     string
	Name   string
	Status string
	// Last is the most recent line the vertex wrote.
	Last  string
	Error string
}

// Board is a progrock.Writer that folds status updates into per-vertex
// state. When out is non-nil each completed vertex is printed to it once.
type Board struct {
	mu       sync.Mutex
	out      io.Writer
	order    []string
	vertices map[string]*VertexState
}

var _ progrock.Writer = (*Board)(nil)

// NewBoard creates a Board. A nil out disables rendering.
func NewBoard(out io.Writer) *Board {
	return &Board{out: out, vertices: make(map[string]*VertexState)}
}

// WriteStatus applies u to the board.
func (b *Board) WriteStatus(u *progrock.StatusUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, v := range u.Vertexes {
		b.applyVertex(v)
	}
	for _, l := range u.Logs {
		st, ok := b.vertices[l.Vertex]
		if !ok {
			continue
		}
		if line := lastLine(l.Data); line != "" {
			st.Last = line
		}
	}
	return nil
}

func (b *Board) applyVertex(v *progrock.Vertex) {
	st, ok := b.vertices[v.Id]
	if !ok {
		st = &VertexState{ID: v.Id, Name: v.Name, Status: StatusRunning}
		b.vertices[v.Id] = st
		b.order = append(b.order, v.Id)
	}
	if v.Completed == nil || st.Status != StatusRunning {
		return
	}
	st.Status = StatusCompleted
	if v.Error != nil {
		st.Status = StatusFailed
		st.Error = *v.Error
	}
	b.render(st)
}

func (b *Board) render(st *VertexState) {
	if b.out == nil {
		return
	}
	if st.Status == StatusFailed {
		_, _ = fmt.Fprintf(b.out, "✗ %s: %s\n", st.Name, st.Error)
		return
	}
	_, _ = fmt.Fprintf(b.out, "✓ %s\n", st.Name)
}

// Vertices returns a snapshot of every vertex in first-seen order.
func (b *Board) Vertices() []VertexState {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]VertexState, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.vertices[id])
	}
	return out
}

// Vertex returns the state of the vertex called name.
func (b *Board) Vertex(name string) (VertexState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.order {
		if st := b.vertices[id]; st.Name == name {
			return *st, true
		}
	}
	return VertexState{}, false
}

// Close implements progrock.Writer. The folded state stays readable.
func (b *Board) Close() error {
	return nil
}

func lastLine(data []byte) string {
	s := strings.TrimRight(string(data), "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
