package worker

import "fmt"

// UnknownWorkerError reports a delegation to a name absent from the
// registry.
type UnknownWorkerError struct {
	Name string
}

func (e *UnknownWorkerError) Error() string {
	return fmt.Sprintf("unknown worker: %s", e.Name)
}

// MalformedPlanError reports reasoner output that did not contain a
// parseable, schema-conforming plan. Fatal for the turn; no repair is
// attempted.
type MalformedPlanError struct {
	Raw string
	Err error
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed plan: %v", e.Err)
}

func (e *MalformedPlanError) Unwrap() error { return e.Err }

// DelegationExhaustedError reports that the delegation loop exceeded its
// depth bound.
type DelegationExhaustedError struct {
	Depth int
}

func (e *DelegationExhaustedError) Error() string {
	return fmt.Sprintf("delegation depth exceeded: %d", e.Depth)
}
