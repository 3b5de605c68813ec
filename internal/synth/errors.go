package synth

import (
	"errors"
	"fmt"
)

// Stage identifies which step of the synthesis pipeline an error came from.
type Stage string

const (
	StageSerialize Stage = "serialize"
	StageGenerate  Stage = "generate"
	StageLoad      Stage = "load"
	StageLookup    Stage = "lookup"
	StageExtract   Stage = "extract"
)

// Sentinel errors for the synthesis pipeline.
var (
	// ErrInvalidSample is returned when the input sample cannot be serialized.
	ErrInvalidSample = errors.New("sample cannot be serialized")

	// ErrArtifactIO is returned when a scratch artifact cannot be written or
	// read back. Unlike ErrInvalidSample this is environmental (disk,
	// permissions) and may succeed on retry.
	ErrArtifactIO = errors.New("artifact store I/O failed")

	// ErrGenerationFailed is returned when the external code generator exits
	// nonzero, times out, or produces empty output.
	ErrGenerationFailed = errors.New("schema generation failed")

	// ErrLoadFailed is returned when generated source cannot be loaded as a unit.
	ErrLoadFailed = errors.New("generated source could not be loaded")

	// ErrModelAbsent is returned when a unit loads but declares no Model class.
	ErrModelAbsent = errors.New("no Model class in generated source")
)

// StageError wraps a pipeline failure with the stage it occurred in and any
// diagnostic text from the underlying tool. Callers can use errors.Is against
// the sentinel errors above to distinguish failure kinds.
type StageError struct {
	Stage Stage
	Err   error
	Diag  string
}

func (e *StageError) Error() string {
	if e.Diag != "" {
		return fmt.Sprintf("%s: %v: %s", e.Stage, e.Err, e.Diag)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageErr builds a StageError with optional formatted diagnostic text.
func stageErr(stage Stage, err error, format string, args ...any) *StageError {
	diag := format
	if len(args) > 0 {
		diag = fmt.Sprintf(format, args...)
	}
	return &StageError{Stage: stage, Err: err, Diag: diag}
}
