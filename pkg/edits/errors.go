package edits

import (
	"errors"
	"fmt"
)

// Sentinel errors for the build and validation paths. Callers match them
// with errors.Is.
var (
	// ErrSourceNotFound indicates no qualifying download link was found on
	// an index page.
	ErrSourceNotFound = errors.New("source not found")

	// ErrDownloadFailed indicates a distribution could not be fetched.
	ErrDownloadFailed = errors.New("download failed")

	// ErrDecodeFailed indicates a tabular archive entry could not be decoded.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrEmptyDataset indicates a kind produced no usable rows.
	ErrEmptyDataset = errors.New("no usable rows")

	// ErrRuleStoreUnavailable indicates the rule snapshot cannot be queried
	// or has not been built yet.
	ErrRuleStoreUnavailable = errors.New("rule store unavailable")
)

// BuildStage names the pipeline stage where a build failed.
type BuildStage string

const (
	StageLocate    BuildStage = "locate"
	StageDownload  BuildStage = "download"
	StageExtract   BuildStage = "extract"
	StageNormalize BuildStage = "normalize"
	StageCommit    BuildStage = "commit"
)

// BuildError describes a failed build of one edit kind.
type BuildError struct {
	Kind  Kind
	Stage BuildStage
	Cause error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s failed at %s: %v", e.Kind, e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// NewBuildError creates a new BuildError.
func NewBuildError(kind Kind, stage BuildStage, cause error) *BuildError {
	return &BuildError{Kind: kind, Stage: stage, Cause: cause}
}

// StoreError represents an error from the rule store backend.
type StoreError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// DecodeError records a tabular entry that was skipped during extraction.
type DecodeError struct {
	Entry string
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: entry %q: %v", ErrDecodeFailed, e.Entry, e.Cause)
}

// Unwrap allows errors.Is(err, ErrDecodeFailed) as well as matching the cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecodeFailed, e.Cause}
}
