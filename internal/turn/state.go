package turn

import (
	"errors"
	"fmt"
)

// State is a step in the life of one turn. A turn moves forward through the
// states in declaration order and ends in [StateComplete] or [StateFailed].
type State int

const (
	StateReceived State = iota
	StateIngested
	StateTranscribed
	StateClassified
	StateResponded
	// StateSynthesized is only entered when a synthesizer is configured.
	StateSynthesized
	StateComplete
	StateFailed
)

var stateNames = [...]string{
	StateReceived:    "received",
	StateIngested:    "ingested",
	StateTranscribed: "transcribed",
	StateClassified:  "classified",
	StateResponded:   "responded",
	StateSynthesized: "synthesized",
	StateComplete:    "complete",
	StateFailed:      "failed",
}

// String returns the state's name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Stage names the pipeline step an error originated from.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StageTranscribe Stage = "transcribe"
	StageClassify   Stage = "classify"
	StageRespond    Stage = "respond"
	StageSynthesize Stage = "synthesize"
)

// ErrBusy is returned when the concurrency limit is reached and no slot
// frees up within the queue timeout.
var ErrBusy = errors.New("turn: pipeline busy")

// StageError is the only error type ProcessTurn returns for a turn that
// started. It tags the cause with the stage it came from.
type StageError struct {
	Stage  Stage
	TurnID string
	Err    error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("turn %s: %s: %v", e.TurnID, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage err was tagged with, or "" if err carries no
// *StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
