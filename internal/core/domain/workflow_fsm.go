package domain

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

type WorkflowEvent string

const (
	EventUpload   WorkflowEvent = "upload"
	EventComplete WorkflowEvent = "complete"
	EventFail     WorkflowEvent = "fail"
	EventRetry    WorkflowEvent = "retry"
	EventReset    WorkflowEvent = "reset"
)

var workflowEvents = []WorkflowEvent{EventUpload, EventComplete, EventFail, EventRetry, EventReset}

type workflowMachineContext struct {
	From WorkflowState
}

// newWorkflowInterpreter builds the transition table starting at initial.
// Idle has no reset edge: resetting an idle workflow is a no-op handled by
// Workflow.Reset.
func newWorkflowInterpreter(initial WorkflowState) (*statekit.Interpreter[workflowMachineContext], error) {
	builder := statekit.NewMachine[workflowMachineContext]("workflow-machine").
		WithInitial(statekit.StateID(initial)).
		WithContext(workflowMachineContext{From: initial})

	builder.State(statekit.StateID(StateIdle)).
		On(statekit.EventType(EventUpload)).Target(statekit.StateID(StateAnalyzing)).
		Done()

	builder.State(statekit.StateID(StateAnalyzing)).
		On(statekit.EventType(EventComplete)).Target(statekit.StateID(StatePresenting)).
		On(statekit.EventType(EventFail)).Target(statekit.StateID(StateFailed)).
		On(statekit.EventType(EventReset)).Target(statekit.StateID(StateIdle)).
		Done()

	builder.State(statekit.StateID(StatePresenting)).
		On(statekit.EventType(EventReset)).Target(statekit.StateID(StateIdle)).
		Done()

	builder.State(statekit.StateID(StateFailed)).
		On(statekit.EventType(EventRetry)).Target(statekit.StateID(StateAnalyzing)).
		On(statekit.EventType(EventReset)).Target(statekit.StateID(StateIdle)).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build workflow machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return interpreter, nil
}

// NextState returns the state reached from `from` on event, or
// ErrInvalidTransition when the machine has no such edge.
func NextState(from WorkflowState, event WorkflowEvent) (WorkflowState, error) {
	interpreter, err := newWorkflowInterpreter(from)
	if err != nil {
		return from, err
	}

	interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	to := WorkflowState(interpreter.State().Value)
	if to == from {
		return from, WrapError(
			ErrInvalidTransition,
			"workflow transition",
			fmt.Errorf("event %q is not allowed in state %q", event, from),
		)
	}
	return to, nil
}

// AvailableEvents lists the events accepted in state. Reset is always listed
// since it is idempotent.
func AvailableEvents(state WorkflowState) []WorkflowEvent {
	out := make([]WorkflowEvent, 0, len(workflowEvents))
	for _, event := range workflowEvents {
		if event == EventReset {
			out = append(out, event)
			continue
		}
		if _, err := NextState(state, event); err == nil {
			out = append(out, event)
		}
	}
	return out
}
