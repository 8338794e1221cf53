package fetch

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/logger" //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/kiln/internal/core/ports"
	"golang.org/x/term"
)

// NodeID is the unique identifier for the source fetcher Graft node.
const NodeID graft.ID = "adapter.fetcher"

func init() {
	graft.Register(graft.Node[ports.SourceFetcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.SourceFetcher, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			var opts []Option
			if showProgress() {
				opts = append(opts, WithProgress(os.Stderr))
			}
			return NewFetcher(log, opts...), nil
		},
	})
}

// showProgress reports whether stderr is an interactive terminal outside CI.
func showProgress() bool {
	ci := os.Getenv("CI")
	return term.IsTerminal(int(os.Stderr.Fd())) && ci != "true" && ci != "1"
}
