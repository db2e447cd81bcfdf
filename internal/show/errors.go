// SPDX-License-Identifier: MIT
package show

import "fmt"

// Stage names the pipeline step a fatal error came from.
type Stage string

const (
	StageWindow    Stage = "window"
	StageAnalyze   Stage = "analyze"
	StageStore     Stage = "store"
	StageEncode    Stage = "encode"
	StageTransport Stage = "transport"
)

// StageError is a fatal run error tagged with the failing stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
