package core

import (
	"context"
	"io"
	"net/http"
)

// APIClient is the World's one non-rollbackable collaborator: it issues
// mutating HTTP requests against the System Under Test. It is intentionally
// narrow — Actions depend on this interface, not on *http.Client directly, so
// tests can substitute a recording/stub client.
type APIClient interface {
	Do(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Response, error)
	BaseURL() string
}

// WorldView is the read-only surface Invariant.Check depends on: it can observe
// every adapter and make (non-mutating, ideally) calls through the API client,
// but cannot checkpoint/rollback/act — those are orchestration concerns owned
// by internal/world and driven by internal/agent. Defined here (rather than in internal/world)
// so package core never needs to import internal/world, keeping
// Action/Invariant free of a dependency on the concrete World.
type WorldView interface {
	API() APIClient
	Observe(ctx context.Context) ([]Observation, error)
	Adapter(name string) (any, bool)
	AdapterNames() []string
}

// Action is a named, deterministic (within a path) unit of API interaction.
// Execute is a Go function value provided directly by the embedding code; a
// declarative HTTP-template frontend compiles down to this form at load time.
type Action struct {
	Name          string
	Execute       func(ctx context.Context, api APIClient, vars *Context) (*ActionResult, error)
	Preconditions []string
	MaxCalls      int // 0 means unlimited
	Requires      map[string]string
	Tags          []string
}

// CheckResult tags the outcome of an Invariant's Check: pass, fail with the
// default message, or fail with an explicit message.
type CheckResult int

const (
	CheckPass CheckResult = iota
	CheckFail
	CheckFailMsg
)

// CheckOutcome is returned by Invariant.Check.
type CheckOutcome struct {
	Result  CheckResult
	Message string
}

func Pass() CheckOutcome              { return CheckOutcome{Result: CheckPass} }
func Fail() CheckOutcome              { return CheckOutcome{Result: CheckFail} }
func FailWith(msg string) CheckOutcome { return CheckOutcome{Result: CheckFailMsg, Message: msg} }

// Invariant is a named predicate over the World. Check must be side-effect-free
// with respect to the System Under Test; it may read systems and the API.
type Invariant struct {
	Name     string
	Check    func(ctx context.Context, w WorldView) (CheckOutcome, error)
	Severity Severity
	Timing   Timing
}
