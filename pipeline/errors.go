package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a pipeline step that can fail.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageDecode   Stage = "decode"
	StageWrite    Stage = "write"
	StageDelivery Stage = "delivery"
)

// Sentinel errors, one per failing stage.
var (
	ErrFetch      = errors.New("pipeline: media fetch failed")
	ErrExtraction = errors.New("pipeline: frame extraction failed")
	ErrDecode     = errors.New("pipeline: image decode failed")
	ErrWrite      = errors.New("pipeline: image write failed")
	ErrDelivery   = errors.New("pipeline: reply delivery failed")
)

func (s Stage) sentinel() error {
	switch s {
	case StageFetch:
		return ErrFetch
	case StageExtract:
		return ErrExtraction
	case StageDecode:
		return ErrDecode
	case StageWrite:
		return ErrWrite
	case StageDelivery:
		return ErrDelivery
	default:
		return nil
	}
}

// StageError is returned by Run when a stage fails. It matches both the
// stage sentinel and the underlying cause.
type StageError struct {
	Stage      Stage
	RunID      string
	Diagnostic string // extra output from the failing step, e.g. ffmpeg stderr
	Err        error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("pipeline: %s failed (run %s)", e.Stage, e.RunID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Stage.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func stageErr(stage Stage, runID string, err error) *StageError {
	return &StageError{Stage: stage, RunID: runID, Err: err}
}

// StageOf returns the failing stage of err, or "" if err is not a StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
