package workflow

import "fmt"

// Handler processes one event and returns zero or more output events. Output
// events are re-enqueued into the run; returning a StopEvent resolves the
// run's result; returning nothing ends the branch silently. Errors (and
// panics) are converted to an ErrorEvent which fails the whole run.
type Handler func(rc *RunContext, ev Event) ([]Event, error)

// Step registers a handler with the event kinds it accepts and an optional
// concurrency bound.
type Step struct {
	// Name is a human-readable identifier used in logs and errors.
	Name string

	// Inputs lists the event kinds this step accepts. An event is dispatched
	// to every step whose Inputs contain its kind.
	Inputs []string

	// Workers bounds concurrent invocations of this step. Zero or one means
	// serialized; greater than one allows that many in-flight invocations,
	// additional matching events queue until a slot frees.
	Workers int

	// Handle is the step body.
	Handle Handler
}

// stepRuntime is the registered form of a Step with its admission semaphore.
type stepRuntime struct {
	name    string
	inputs  map[string]struct{}
	sem     chan struct{}
	handler Handler
}

func newStepRuntime(s Step) (*stepRuntime, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("workflow: step requires a name")
	}
	if len(s.Inputs) == 0 {
		return nil, fmt.Errorf("workflow: step %s accepts no event kinds", s.Name)
	}
	if s.Handle == nil {
		return nil, fmt.Errorf("workflow: step %s has no handler", s.Name)
	}

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	inputs := make(map[string]struct{}, len(s.Inputs))
	for _, kind := range s.Inputs {
		inputs[kind] = struct{}{}
	}

	return &stepRuntime{
		name:    s.Name,
		inputs:  inputs,
		sem:     make(chan struct{}, workers),
		handler: s.Handle,
	}, nil
}

func (s *stepRuntime) accepts(kind string) bool {
	_, ok := s.inputs[kind]
	return ok
}
