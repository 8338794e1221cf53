// Package builder drives a single package through the recipe pipeline.
package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultRetryDelay is the wait before the first fetch retry. It doubles per attempt.
const DefaultRetryDelay = 2 * time.Second

var _ ports.PackageBuilder = (*Builder)(nil)

// Builder implements ports.PackageBuilder.
type Builder struct {
	fetcher   ports.SourceFetcher
	extractor ports.Extractor
	executor  ports.Executor
	tracker   ports.FileTracker
	reporter  ports.Reporter
	logger    ports.Logger

	retryDelay time.Duration

	// installMu serializes install steps so prefix snapshots see one install at a time.
	installMu sync.Mutex
}

// NewBuilder creates a new Builder.
func NewBuilder(
	fetcher ports.SourceFetcher,
	extractor ports.Extractor,
	executor ports.Executor,
	tracker ports.FileTracker,
	reporter ports.Reporter,
	logger ports.Logger,
) *Builder {
	return &Builder{
		fetcher:    fetcher,
		extractor:  extractor,
		executor:   executor,
		tracker:    tracker,
		reporter:   reporter,
		logger:     logger,
		retryDelay: DefaultRetryDelay,
	}
}

// WithRetryDelay sets the initial fetch retry delay.
func (b *Builder) WithRetryDelay(d time.Duration) *Builder {
	b.retryDelay = d
	return b
}

// Build runs fetch, verify, extract, configure, compile and install for job.
// Every state change is reported before the step runs. On success the job is
// left in StateInstalling and the files added to the prefix are returned.
func (b *Builder) Build(ctx context.Context, sess *domain.Session, job *domain.BuildJob) ([]string, error) {
	pkg := job.Package

	if err := b.advance(ctx, job, domain.StateFetching); err != nil {
		return nil, err
	}
	archive, err := b.fetch(ctx, sess, pkg)
	if err != nil {
		return nil, err
	}

	if err := b.advance(ctx, job, domain.StateVerifying); err != nil {
		return nil, err
	}
	if err := b.fetcher.Verify(pkg, archive); err != nil {
		return nil, err
	}

	if err := b.advance(ctx, job, domain.StateExtracting); err != nil {
		return nil, err
	}
	if err := b.extract(ctx, archive, job.Workspace); err != nil {
		return nil, err
	}

	if err := b.advance(ctx, job, domain.StateConfiguring); err != nil {
		return nil, err
	}
	configure, err := domain.ConfigureCommand(sess, pkg)
	if err != nil {
		return nil, err
	}
	if err := b.run(ctx, sess, pkg, configure); err != nil {
		return nil, err
	}

	if err := b.advance(ctx, job, domain.StateCompiling); err != nil {
		return nil, err
	}
	compile, err := domain.CompileCommand(sess, pkg)
	if err != nil {
		return nil, err
	}
	if err := b.run(ctx, sess, pkg, compile); err != nil {
		return nil, err
	}

	if err := b.advance(ctx, job, domain.StateInstalling); err != nil {
		return nil, err
	}
	return b.install(ctx, sess, pkg)
}

func (b *Builder) advance(ctx context.Context, job *domain.BuildJob, next domain.JobState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev, err := job.Transition(next)
	if err != nil {
		return err
	}
	b.reporter.Report(ctx, ev)
	return nil
}

// fetch downloads the source, retrying transport failures up to the configured count.
func (b *Builder) fetch(ctx context.Context, sess *domain.Session, pkg *domain.Package) (string, error) {
	delay := b.retryDelay
	for attempt := 0; ; attempt++ {
		archive, err := b.fetcher.Download(ctx, pkg, sess.Layout.Sources)
		if err == nil {
			return archive, nil
		}
		if !errors.Is(err, domain.ErrFetchFailed) || attempt >= sess.Config.FetchRetries {
			return "", err
		}

		b.logger.Warn("fetch failed, retrying",
			"package", pkg.ID(),
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (b *Builder) extract(ctx context.Context, archive, workspace string) error {
	if err := os.RemoveAll(workspace); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrWorkspacePrepareFailed.Error()), "workspace", workspace)
	}
	return b.extractor.Extract(ctx, archive, workspace)
}

func (b *Builder) run(ctx context.Context, sess *domain.Session, pkg *domain.Package, cmd domain.Command) error {
	b.logger.Debug("running step", "package", pkg.ID(), "command", cmd.String(), "dir", cmd.Dir)
	if err := b.executor.Execute(ctx, cmd, sess.Env); err != nil {
		return zerr.With(err, "package", pkg.ID())
	}
	return nil
}

// install runs the install step. With file tracking enabled it holds the
// install lock and returns the files that changed under the prefix,
// relative to the root.
func (b *Builder) install(ctx context.Context, sess *domain.Session, pkg *domain.Package) ([]string, error) {
	cmd := domain.InstallCommand(sess, pkg)
	if !sess.Config.TrackFiles {
		return nil, b.run(ctx, sess, pkg, cmd)
	}

	b.installMu.Lock()
	defer b.installMu.Unlock()

	prefix := sess.Layout.Prefix
	exclude := sess.Layout.Internal()

	before, err := b.tracker.Snapshot(prefix, exclude)
	if err != nil {
		return nil, err
	}
	if err := b.run(ctx, sess, pkg, cmd); err != nil {
		return nil, err
	}
	after, err := b.tracker.Snapshot(prefix, exclude)
	if err != nil {
		return nil, err
	}

	files := domain.ChangedFiles(before, after)
	if rel, err := filepath.Rel(sess.Layout.Root, prefix); err == nil && rel != "." {
		for i, f := range files {
			files[i] = filepath.ToSlash(filepath.Join(rel, f))
		}
	}
	return files, nil
}
