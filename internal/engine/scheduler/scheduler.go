// Package scheduler implements the build scheduler.
package scheduler

import (
	"context"
	"errors"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Committer records a package once its install step has succeeded.
type Committer interface {
	Commit(pkg *domain.Package, files []string) error
}

// Scheduler dispatches the packages of a plan to a bounded pool of builders.
type Scheduler struct {
	builder  ports.PackageBuilder
	reporter ports.Reporter
	logger   ports.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(builder ports.PackageBuilder, reporter ports.Reporter, logger ports.Logger) *Scheduler {
	return &Scheduler{
		builder:  builder,
		reporter: reporter,
		logger:   logger,
	}
}

// Run builds every package of plan with up to sess.Config.Jobs() concurrent
// builders. Ready packages are dispatched in declaration order. A failed
// package skips its dependents while independent packages continue. A failed
// critical package stops dispatch, lets in-flight jobs finish and skips the
// rest. The report always covers every planned package.
func (s *Scheduler) Run(
	ctx context.Context,
	sess *domain.Session,
	plan *domain.Plan,
	committer Committer,
) (*domain.RunReport, error) {
	state := s.newRunState(ctx, sess, plan, committer)
	done := ctx.Done()

	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-done:
			// Stop dispatching and drain in-flight jobs.
			done = nil
		}
	}

	state.skipRemaining()

	return state.report, state.err()
}

type result struct {
	job   *domain.BuildJob
	files []string
	err   error
}

type schedulerRunState struct {
	inDegree    map[domain.InternedString]int
	jobs        map[domain.InternedString]*domain.BuildJob
	byIndex     []*domain.BuildJob
	ready       domain.ReadyQueue
	active      int
	resultsCh   chan result
	errs        error
	failed      int
	critical    *domain.BuildJob
	ctx         context.Context
	sess        *domain.Session
	plan        *domain.Plan
	committer   Committer
	parallelism int
	report      *domain.RunReport
	s           *Scheduler
}

func (s *Scheduler) newRunState(
	ctx context.Context,
	sess *domain.Session,
	plan *domain.Plan,
	committer Committer,
) *schedulerRunState {
	parallelism := sess.Config.Jobs()
	state := &schedulerRunState{
		inDegree:    make(map[domain.InternedString]int, plan.Len()),
		jobs:        make(map[domain.InternedString]*domain.BuildJob, plan.Len()),
		byIndex:     make([]*domain.BuildJob, plan.Len()),
		resultsCh:   make(chan result, parallelism),
		ctx:         ctx,
		sess:        sess,
		plan:        plan,
		committer:   committer,
		parallelism: parallelism,
		report:      &domain.RunReport{},
		s:           s,
	}

	for pkg := range plan.Walk() {
		job := domain.NewBuildJob(pkg, sess.Layout.Workspace(pkg))
		state.jobs[pkg.Name] = job
		state.byIndex[plan.Index(pkg.Name)] = job
		state.report.Jobs = append(state.report.Jobs, job)

		state.inDegree[pkg.Name] = len(plan.Dependencies(pkg.Name))
		if state.inDegree[pkg.Name] == 0 {
			state.ready.Push(plan.Index(pkg.Name))
		}
	}
	return state
}

func (state *schedulerRunState) isDone() bool {
	return state.active == 0 && (state.ready.Len() == 0 || state.halted())
}

// halted reports whether no new job may start.
func (state *schedulerRunState) halted() bool {
	return state.critical != nil || state.ctx.Err() != nil
}

func (state *schedulerRunState) schedule() {
	for state.ready.Len() > 0 && state.active < state.parallelism && !state.halted() {
		job := state.byIndex[state.ready.Pop()]
		state.active++

		go func(job *domain.BuildJob) {
			files, err := state.s.builder.Build(state.ctx, state.sess, job)
			if err == nil {
				err = state.committer.Commit(job.Package, files)
			}
			state.resultsCh <- result{job: job, files: files, err: err}
		}(job)
	}
}

func (state *schedulerRunState) handleResult(res result) {
	state.active--
	name := res.job.Package.Name

	if res.err != nil {
		state.fail(res.job, res.err)
		return
	}

	ev, err := res.job.Transition(domain.StateDone)
	if err != nil {
		state.fail(res.job, err)
		return
	}
	state.s.reporter.Report(state.ctx, ev)

	for _, dependent := range state.plan.Dependents(name) {
		state.inDegree[dependent]--
		if state.inDegree[dependent] == 0 {
			state.ready.Push(state.plan.Index(dependent))
		}
	}
}

func (state *schedulerRunState) fail(job *domain.BuildJob, cause error) {
	name := job.Package.Name.String()
	failedIn := job.State()
	ev, err := job.Fail(cause)
	if err != nil {
		state.s.logger.Warn("cannot mark job failed", "package", name, "error", err)
	} else {
		state.s.reporter.Report(state.ctx, ev)
	}

	state.failed++
	state.errs = errors.Join(state.errs,
		zerr.With(zerr.With(zerr.Wrap(cause, "package build failed"), "package", name), "state", string(failedIn)))

	if job.Package.Recipe.Critical && state.critical == nil {
		state.critical = job
		state.s.logger.Warn("critical package failed, stopping dispatch", "package", name, "in_flight", state.active)
	}

	state.skipDependents(job.Package.Name, name)
}

// skipDependents marks every pending package downstream of name as skipped.
func (state *schedulerRunState) skipDependents(name domain.InternedString, failed string) {
	for _, dependent := range state.plan.Dependents(name) {
		job := state.jobs[dependent]
		if job.State() != domain.StatePending {
			continue
		}
		reason := zerr.With(zerr.Wrap(domain.ErrSkippedDueToFailedDependency, "dependency did not build"),
			"dependency", failed)
		if ev, err := job.Skip(reason); err == nil {
			state.s.reporter.Report(state.ctx, ev)
		}
		state.skipDependents(dependent, failed)
	}
}

// skipRemaining marks every job that never started as skipped after a halt.
func (state *schedulerRunState) skipRemaining() {
	for _, job := range state.report.Jobs {
		if job.State() != domain.StatePending {
			continue
		}

		reason := zerr.With(zerr.Wrap(domain.ErrRunAborted, "run canceled"), "cause", context.Cause(state.ctx))
		if state.critical != nil {
			reason = zerr.With(zerr.Wrap(domain.ErrRunAborted, "run stopped after critical failure"),
				"critical_package", state.critical.Package.Name.String())
		}
		if ev, err := job.Skip(reason); err == nil {
			state.s.reporter.Report(state.ctx, ev)
		}
	}
}

func (state *schedulerRunState) err() error {
	switch {
	case state.critical != nil:
		return errors.Join(zerr.With(zerr.Wrap(domain.ErrCriticalPackageFailed, "build aborted"),
			"package", state.critical.Package.Name.String()), state.errs)
	case state.ctx.Err() != nil:
		return errors.Join(state.errs, state.ctx.Err())
	case state.failed > 0:
		return errors.Join(zerr.With(zerr.Wrap(domain.ErrBuildFailed, "some packages failed"),
			"failed", state.failed), state.errs)
	default:
		return nil
	}
}
