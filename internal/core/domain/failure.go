package domain

import "fmt"

// StepError reports a recipe step that exited unsuccessfully.
// Output holds the tail of the combined stdout and stderr of the command.
type StepError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s exited with code %d", ErrBuildStepFailed.Error(), e.Command, e.ExitCode)
}

// Unwrap exposes ErrBuildStepFailed and the underlying process error.
func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuildStepFailed}
	}
	return []error{ErrBuildStepFailed, e.Err}
}

// ChecksumError reports a source archive whose digest differs from the declared content hash.
type ChecksumError struct {
	Path     string
	Expected string
	Computed string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: %s: expected %s, computed %s",
		ErrChecksumMismatch.Error(), e.Path, e.Expected, e.Computed)
}

// Unwrap returns ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}
