package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

var pipeline = []domain.JobState{
	domain.StateFetching,
	domain.StateVerifying,
	domain.StateExtracting,
	domain.StateConfiguring,
	domain.StateCompiling,
	domain.StateInstalling,
}

// advance walks job through the pipeline until it reaches target.
func advance(t *testing.T, job *domain.BuildJob, target domain.JobState) {
	for _, s := range pipeline {
		_, err := job.Transition(s)
		assert.NoError(t, err)
		if s == target {
			return
		}
	}
}

type committer struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (c *committer) Commit(pkg *domain.Package, _ []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.names = append(c.names, pkg.Name.String())
	return nil
}

func (c *committer) committed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

func pkg(name string, critical bool, deps ...string) *domain.Package {
	return &domain.Package{
		Name:         domain.NewInternedString(name),
		Version:      "1",
		Dependencies: domain.NewInternedStrings(deps),
		Recipe:       domain.Recipe{Critical: critical},
	}
}

func resolve(t *testing.T, pkgs ...*domain.Package) *domain.Plan {
	t.Helper()
	g := domain.NewGraph()
	for _, p := range pkgs {
		require.NoError(t, g.AddPackage(p))
	}
	plan, err := g.Resolve(nil)
	require.NoError(t, err)
	return plan
}

func session(jobs int) *domain.Session {
	layout := domain.NewLayout("/mnt/lfs")
	cfg := domain.BuildConfig{ParallelJobs: jobs}
	return &domain.Session{Layout: layout, Config: cfg, Env: domain.NewBuildEnvironment(nil, layout, cfg)}
}

type fixture struct {
	builder   *mocks.MockPackageBuilder
	scheduler *scheduler.Scheduler

	mu     sync.Mutex
	events []domain.JobEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{builder: mocks.NewMockPackageBuilder(ctrl)}

	reporter := mocks.NewMockReporter(ctrl)
	reporter.EXPECT().Report(gomock.Any(), gomock.Any()).Do(func(_ context.Context, ev domain.JobEvent) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, ev)
	}).AnyTimes()

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	f.scheduler = scheduler.NewScheduler(f.builder, reporter, log)
	return f
}

func (f *fixture) terminalEvent(name string) (domain.JobEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.Package == name && ev.State.Terminal() {
			return ev, true
		}
	}
	return domain.JobEvent{}, false
}

func TestScheduler_Run_SiblingsBuildConcurrentlyAfterSharedDependency(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		plan := resolve(t, pkg("A", false), pkg("B", false, "A"), pkg("C", false, "A"))

		var mu sync.Mutex
		var started []string
		release := make(chan struct{})

		f.builder.EXPECT().Build(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *domain.Session, job *domain.BuildJob) ([]string, error) {
				mu.Lock()
				started = append(started, job.Package.Name.String())
				mu.Unlock()
				if job.Package.Name.String() != "A" {
					<-release
				}
				advance(t, job, domain.StateInstalling)
				return nil, nil
			}).Times(3)

		c := &committer{}
		var report *domain.RunReport
		var runErr error
		finished := make(chan struct{})
		go func() {
			report, runErr = f.scheduler.Run(context.Background(), session(2), plan, c)
			close(finished)
		}()

		synctest.Wait()
		mu.Lock()
		assert.Equal(t, "A", started[0])
		assert.ElementsMatch(t, []string{"A", "B", "C"}, started)
		mu.Unlock()
		assert.Equal(t, []string{"A"}, c.committed())

		close(release)
		<-finished

		require.NoError(t, runErr)
		assert.Equal(t, []string{"A", "B", "C"}, report.Names(domain.StateDone))
		assert.ElementsMatch(t, []string{"A", "B", "C"}, c.committed())
	})
}

func TestScheduler_Run_FailureSkipsDependentsOnly(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		plan := resolve(t, pkg("P", false), pkg("Q", false, "P"), pkg("R", false))
		stepErr := &domain.StepError{Command: "make -j2", ExitCode: 2, Output: "cc: error"}

		f.builder.EXPECT().Build(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *domain.Session, job *domain.BuildJob) ([]string, error) {
				if job.Package.Name.String() == "P" {
					advance(t, job, domain.StateCompiling)
					return nil, stepErr
				}
				advance(t, job, domain.StateInstalling)
				return []string{"usr/bin/r"}, nil
			}).Times(2)

		c := &committer{}
		report, err := f.scheduler.Run(context.Background(), session(2), plan, c)

		require.ErrorIs(t, err, domain.ErrBuildFailed)
		require.ErrorIs(t, err, domain.ErrBuildStepFailed)
		assert.NotErrorIs(t, err, domain.ErrCriticalPackageFailed)

		assert.Equal(t, []string{"P"}, report.Names(domain.StateFailed))
		assert.Equal(t, []string{"Q"}, report.Names(domain.StateSkipped))
		assert.Equal(t, []string{"R"}, report.Names(domain.StateDone))
		assert.Equal(t, []string{"R"}, c.committed())

		q, ok := report.Job("Q")
		require.True(t, ok)
		require.ErrorIs(t, q.Err(), domain.ErrSkippedDueToFailedDependency)

		p, _ := report.Job("P")
		var got *domain.StepError
		require.ErrorAs(t, p.Err(), &got)
		assert.Equal(t, 2, got.ExitCode)

		ev, ok := f.terminalEvent("Q")
		require.True(t, ok)
		assert.Equal(t, domain.StateSkipped, ev.State)
		ev, ok = f.terminalEvent("P")
		require.True(t, ok)
		assert.Equal(t, domain.StateFailed, ev.State)
		assert.Equal(t, stepErr, ev.Err)
	})
}

func TestScheduler_Run_TransitiveSkip(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		plan := resolve(t, pkg("base", false), pkg("mid", false, "base"), pkg("top", false, "mid"))

		f.builder.EXPECT().Build(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *domain.Session, job *domain.BuildJob) ([]string, error) {
				advance(t, job, domain.StateFetching)
				return nil, errors.New("network down")
			}).Times(1)

		report, err := f.scheduler.Run(context.Background(), session(4), plan, &committer{})
		require.ErrorIs(t, err, domain.ErrBuildFailed)
		assert.Equal(t, []string{"mid", "top"}, report.Names(domain.StateSkipped))
	})
}

func TestScheduler_Run_CriticalFailureDrainsAndAborts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		plan := resolve(t, pkg("gcc", true), pkg("slow", false), pkg("later", false))

		release := make(chan struct{})
		f.builder.EXPECT().Build(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *domain.Session, job *domain.BuildJob) ([]string, error) {
				switch job.Package.Name.String() {
				case "gcc":
					advance(t, job, domain.StateConfiguring)
					return nil, &domain.StepError{Command: "./configure", ExitCode: 1}
				case "slow":
					<-release
					advance(t, job, domain.StateInstalling)
					return nil, nil
				default:
					t.Error("no package may start after a critical failure")
					return nil, nil
				}
			}).Times(2)

		c := &committer{}
		var report *domain.RunReport
		var runErr error
		finished := make(chan struct{})
		go func() {
			report, runErr = f.scheduler.Run(context.Background(), session(2), plan, c)
			close(finished)
		}()

		synctest.Wait()
		close(release)
		<-finished

		require.ErrorIs(t, runErr, domain.ErrCriticalPackageFailed)
		assert.Equal(t, []string{"gcc"}, report.Names(domain.StateFailed))
		assert.Equal(t, []string{"slow"}, report.Names(domain.StateDone))
		assert.Equal(t, []string{"later"}, report.Names(domain.StateSkipped))

		later, _ := report.Job("later")
		require.ErrorIs(t, later.Err(), domain.ErrRunAborted)
	})
}

func TestScheduler_Run_DispatchFollowsDeclarationOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		plan := resolve(t, pkg("zlib", false), pkg("acl", false, "attr"), pkg("attr", false), pkg("bzip2", false))

		var order []string
		f.builder.EXPECT().Build(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *domain.Session, job *domain.BuildJob) ([]string, error) {
				order = append(order, job.Package.Name.String())
				advance(t, job, domain.StateInstalling)
				return nil, nil
			}).Times(4)

		_, err := f.scheduler.Run(context.Background(), session(1), plan, &committer{})
		require.NoError(t, err)
		assert.Equal(t, []string{"zlib", "attr", "acl", "bzip2"}, order)
	})
}

func TestScheduler_Run_CommitFailureFailsPackage(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		plan := resolve(t, pkg("a", false), pkg("b", false, "a"))

		f.builder.EXPECT().Build(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *domain.Session, job *domain.BuildJob) ([]string, error) {
				advance(t, job, domain.StateInstalling)
				return nil, nil
			}).Times(1)

		c := &committer{err: domain.ErrStoreWriteFailed}
		report, err := f.scheduler.Run(context.Background(), session(1), plan, c)

		require.ErrorIs(t, err, domain.ErrStoreWriteFailed)
		assert.Equal(t, []string{"a"}, report.Names(domain.StateFailed))
		assert.Equal(t, []string{"b"}, report.Names(domain.StateSkipped))
	})
}

func TestScheduler_Run_CancelStopsDispatch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		plan := resolve(t, pkg("first", false), pkg("second", false))
		ctx, cancel := context.WithCancel(context.Background())

		f.builder.EXPECT().Build(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ *domain.Session, job *domain.BuildJob) ([]string, error) {
				advance(t, job, domain.StateCompiling)
				cancel()
				<-ctx.Done()
				return nil, ctx.Err()
			}).Times(1)

		report, err := f.scheduler.Run(ctx, session(1), plan, &committer{})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []string{"first"}, report.Names(domain.StateFailed))
		assert.Equal(t, []string{"second"}, report.Names(domain.StateSkipped))
		second, _ := report.Job("second")
		require.ErrorIs(t, second.Err(), domain.ErrRunAborted)
	})
}

func TestScheduler_Run_EmptyPlan(t *testing.T) {
	f := newFixture(t)
	report, err := f.scheduler.Run(context.Background(), session(2), resolve(t), &committer{})
	require.NoError(t, err)
	assert.Empty(t, report.Jobs)
}
