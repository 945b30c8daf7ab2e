// Package agent is the boundary to the code-execution agent that answers a
// query. The agent is opaque: it receives a task, may call back into the
// tools offered to it, and eventually returns a report.
package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
)

// Runner executes one task to completion. Run blocks until the agent
// returns its final answer, fails or ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, task Task) (*Result, error)
}

// Model is the handle of the language model the agent drives.
type Model struct {
	Provider string
	ID       string
	APIKey   string
	BaseURL  string
}

// Task is everything the agent is given.
type Task struct {
	ID     string
	Prompt string
	// Args are named values made available to the agent's code, here the
	// paths of the preprocessed files.
	Args              map[string]string
	Tools             []Tool
	AuthorizedImports []string
	// PlanningInterval is the number of steps between planning rounds.
	// Zero disables planning.
	PlanningInterval int
	Model            Model
}

// NewTaskID returns a fresh task identifier.
func NewTaskID() string { return uuid.NewString() }

// Result is the agent's outcome.
type Result struct {
	TaskID string
	Answer string
	Steps  int
	Usage  ai.Usage
}

// Event is a progress notification relayed while a task runs.
type Event struct {
	TaskID  string
	Kind    string // log, plan, tool_call
	Message string
}

// EventFunc receives progress events.
type EventFunc func(Event)

var (
	// ErrNoAnswer is returned when the agent stops without a final answer.
	ErrNoAnswer = errors.New("agent finished without a final answer")
	// ErrMaxSteps is returned when the step budget runs out.
	ErrMaxSteps = errors.New("agent exceeded its step budget")
)

func emit(ctx context.Context, fn EventFunc, ev Event) {
	if fn != nil {
		fn(ev)
		return
	}
	logEvent(ctx, ev)
}
