package service

import (
	"errors"
	"fmt"

	"lecture-gen/constant"
)

var (
	// ErrSuperseded reports that a newer dispatch replaced the run.
	ErrSuperseded = errors.New("run superseded by a newer dispatch")
	ErrNoSlides   = errors.New("slide generation produced no slides")
)

// StageError carries the pipeline stage a run failed in.
type StageError struct {
	Stage constant.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
