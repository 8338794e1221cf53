package domain

import (
	"sync"
	"time"

	"go.trai.ch/zerr"
)

// JobState is the lifecycle state of a build job.
type JobState string

const (
	// StatePending indicates the job is waiting for its dependencies.
	StatePending JobState = "Pending"
	// StateFetching indicates the source archive is being downloaded.
	StateFetching JobState = "Fetching"
	// StateVerifying indicates the archive checksum is being computed.
	StateVerifying JobState = "Verifying"
	// StateExtracting indicates the archive is being unpacked into the workspace.
	StateExtracting JobState = "Extracting"
	// StateConfiguring indicates the configure step is running.
	StateConfiguring JobState = "Configuring"
	// StateCompiling indicates the compile step is running.
	StateCompiling JobState = "Compiling"
	// StateInstalling indicates the install step is running.
	StateInstalling JobState = "Installing"
	// StateDone indicates the package was built and recorded.
	StateDone JobState = "Done"
	// StateFailed indicates the job stopped with an error.
	StateFailed JobState = "Failed"
	// StateSkipped indicates the job never started.
	StateSkipped JobState = "Skipped"
)

var nextState = map[JobState]JobState{
	StatePending:     StateFetching,
	StateFetching:    StateVerifying,
	StateVerifying:   StateExtracting,
	StateExtracting:  StateConfiguring,
	StateConfiguring: StateCompiling,
	StateCompiling:   StateInstalling,
	StateInstalling:  StateDone,
}

// Terminal reports whether no further transition is possible.
func (s JobState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateSkipped
}

// CanTransition reports whether a job may move from s to next.
func (s JobState) CanTransition(next JobState) bool {
	switch next {
	case StateFailed:
		return !s.Terminal()
	case StateSkipped:
		return s == StatePending
	default:
		return nextState[s] == next
	}
}

// BuildJob tracks one package through the build pipeline.
// State changes are safe for concurrent readers.
type BuildJob struct {
	Package   *Package
	Workspace string

	mu    sync.RWMutex
	state JobState
	err   error
}

// NewBuildJob returns a pending job for pkg.
func NewBuildJob(pkg *Package, workspace string) *BuildJob {
	return &BuildJob{
		Package:   pkg,
		Workspace: workspace,
		state:     StatePending,
	}
}

// State returns the current state.
func (j *BuildJob) State() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Err returns the error recorded by Fail or Skip.
func (j *BuildJob) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Transition moves the job to next along the pipeline.
func (j *BuildJob) Transition(next JobState) (JobEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if next == StateFailed || next == StateSkipped {
		return JobEvent{}, zerr.With(zerr.Wrap(ErrInvalidTransition, "terminal failure states need a reason"),
			"state", string(next))
	}
	if err := j.move(next); err != nil {
		return JobEvent{}, err
	}
	return j.event(), nil
}

// Fail moves the job to StateFailed and records err.
func (j *BuildJob) Fail(err error) (JobEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if moveErr := j.move(StateFailed); moveErr != nil {
		return JobEvent{}, moveErr
	}
	j.err = err
	return j.event(), nil
}

// Skip moves a pending job to StateSkipped and records the reason.
func (j *BuildJob) Skip(reason error) (JobEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.move(StateSkipped); err != nil {
		return JobEvent{}, err
	}
	j.err = reason
	return j.event(), nil
}

func (j *BuildJob) move(next JobState) error {
	if !j.state.CanTransition(next) {
		return zerr.With(zerr.With(zerr.With(zerr.Wrap(ErrInvalidTransition, "cannot change job state"),
			"package", j.Package.Name.String()), "from", string(j.state)), "to", string(next))
	}
	j.state = next
	return nil
}

func (j *BuildJob) event() JobEvent {
	return JobEvent{
		Package: j.Package.Name.String(),
		Version: j.Package.Version,
		State:   j.state,
		Err:     j.err,
		Time:    time.Now(),
	}
}

// Event returns a report of the current state.
func (j *BuildJob) Event() JobEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.event()
}

// JobEvent is a structured progress report emitted on every state change.
type JobEvent struct {
	Package string
	Version string
	State   JobState
	Err     error
	Time    time.Time
}

// RunReport summarizes the final state of every job in a run, in plan order.
type RunReport struct {
	Jobs []*BuildJob
}

// Names returns the package names whose job ended in state.
func (r *RunReport) Names(state JobState) []string {
	var names []string
	for _, j := range r.Jobs {
		if j.State() == state {
			names = append(names, j.Package.Name.String())
		}
	}
	return names
}

// Job returns the job for the named package.
func (r *RunReport) Job(name string) (*BuildJob, bool) {
	for _, j := range r.Jobs {
		if j.Package.Name.String() == name {
			return j, true
		}
	}
	return nil, false
}
