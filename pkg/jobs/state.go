package jobs

import "fmt"

type State string

const (
	StateQueued     State = "queued"
	StateParsing    State = "parsing"
	StateValidating State = "validating"
	StateEncoding   State = "encoding"
	StatePackaging  State = "packaging"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var pipelineOrder = []State{StateQueued, StateParsing, StateValidating, StateEncoding, StatePackaging, StateCompleted}

var progress = map[State]int{
	StateQueued:     0,
	StateParsing:    10,
	StateValidating: 30,
	StateEncoding:   50,
	StatePackaging:  80,
	StateCompleted:  100,
}

var stepNames = map[State]string{
	StateQueued:     "waiting for a worker",
	StateParsing:    "parsing input",
	StateValidating: "validating document",
	StateEncoding:   "encoding output",
	StatePackaging:  "packaging artifact",
	StateCompleted:  "done",
	StateFailed:     "failed",
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) Step() string {
	return stepNames[s]
}

// CanTransition allows the next pipeline state, or failure from any state
// that is not terminal
func (s State) CanTransition(to State) bool {
	if s.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}

	for i, state := range pipelineOrder[:len(pipelineOrder)-1] {
		if state == s {
			return pipelineOrder[i+1] == to
		}
	}

	return false
}

type FailureKind string

const (
	FailureParse      FailureKind = "parse"
	FailureValidation FailureKind = "validation"
	FailureEncode     FailureKind = "encode"
	FailureCancelled  FailureKind = "cancelled"
	FailureTimeout    FailureKind = "timeout"
	FailureInternal   FailureKind = "internal"
)

const internalFailureMessage = "internal failure, retry the request"

type Failure struct {
	Kind      FailureKind `json:"kind" groups:"basic,detailed"`
	Message   string      `json:"message" groups:"basic,detailed"`
	Retryable bool        `json:"retryable" groups:"basic,detailed"`

	Errors []Issue `json:"errors,omitempty" groups:"basic,detailed"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Issue is one parse error, validation finding or encode error of a job
type Issue struct {
	Code     string `json:"code" groups:"basic,detailed"`
	Severity string `json:"severity" groups:"basic,detailed"`
	Message  string `json:"message" groups:"basic,detailed"`
	Location string `json:"location,omitempty" groups:"basic,detailed"`
}
