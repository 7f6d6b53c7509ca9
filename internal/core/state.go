package core

import "time"

// State is a canonical node in the exploration Graph: the list of Observations
// that produced it, plus the checkpoint that can restore the World to exactly
// this point. Two States with the same ID are the same node — ID computation
// lives in package state (internal/state) to keep the hashing/canonicalization
// concern separate from the plain data type.
type State struct {
	ID           string
	Observations []Observation
	Checkpoint   *Checkpoint
	CreatedAt    time.Time
}

// Transition is a directed edge recorded by the Graph.
type Transition struct {
	FromStateID string
	ActionName  string
	ToStateID   string
	Result      *ActionResult
	Timestamp   time.Time
}

// ActionStatus tags the outcome of dispatching an Action, replacing
// exception-for-control-flow with an explicit result variant.
type ActionStatus int

const (
	ActionOK ActionStatus = iota
	ActionSkipped
	ActionErrored
)

// ActionResult is returned by World.Act.
type ActionResult struct {
	Status       ActionStatus
	StatusCode   int
	ResponseBody string
	Elapsed      time.Duration
	Err          error
}

// Skipped returns true if the action declined to execute (e.g. its
// preconditions on the live World were not actually met, distinct from the
// Graph-level precondition filter which prevents dispatch in the first place).
func (r *ActionResult) Skipped() bool {
	return r != nil && r.Status == ActionSkipped
}

func (r *ActionResult) Errored() bool {
	return r != nil && r.Status == ActionErrored
}

// Severity classifies an Invariant / Violation.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Timing selects when an Invariant is evaluated relative to an action.
type Timing int

const (
	PreAction Timing = iota
	PostAction
	BothTiming
)

// Violation is a recorded invariant failure with its reproduction path.
type Violation struct {
	InvariantName   string
	Severity        Severity
	Message         string
	StateID         string
	ActionName      string
	ReproPath       []string
	Timestamp       time.Time
}
