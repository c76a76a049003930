package worker

import "fmt"

// Status is the turn-local lifecycle marker of a conversation state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusAwaitingInput Status = "awaiting_input"
	StatusDelegating    Status = "delegating"
	StatusComplete      Status = "complete"
	StatusFailed        Status = "failed"
)

// Well-known Collected keys. Identity keys survive goal transitions;
// everything else is ephemeral and dropped by NewGoal.
const (
	KeyAccountID = "account_id"
	KeyUserName  = "user_name"
	KeyPrompt    = "prompt"

	KeySpecialistResults = "specialist_results"
	KeyAwaitingField     = "awaiting_field"
	KeyCurrentStep       = "current_step"
)

// DefaultIdentityKeys is the allow-list applied when a new goal is
// initialized and no override is configured.
var DefaultIdentityKeys = []string{KeyAccountID, KeyUserName}

// State is the conversation memory threaded through a multi-turn
// interaction. It is passed by value between hops; use Clone before
// writing into Collected so the caller's copy stays untouched.
type State struct {
	Goal      string         `json:"goal,omitempty"`
	Status    Status         `json:"status"`
	Collected map[string]any `json:"collected_info"`
	CallStack []string       `json:"call_stack"`
	History   []string       `json:"history"`
}

// ActiveWorker returns the worker responsible for the next continuation,
// the last entry on the call stack.
func (s State) ActiveWorker() string {
	if len(s.CallStack) == 0 {
		return ""
	}
	return s.CallStack[len(s.CallStack)-1]
}

// Clone returns a deep copy. Collected values are cloned recursively so
// no two hops share mutable map or slice internals.
func (s State) Clone() State {
	out := s
	out.Collected = make(map[string]any, len(s.Collected))
	for k, v := range s.Collected {
		out.Collected[k] = cloneValue(v)
	}
	out.CallStack = append([]string(nil), s.CallStack...)
	out.History = append([]string(nil), s.History...)
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		l := make([]any, len(val))
		for i, e := range val {
			l[i] = cloneValue(e)
		}
		return l
	default:
		return v
	}
}

// AppendHistory records a human-readable event. History is diagnostics
// only, never read by control logic.
func (s *State) AppendHistory(format string, args ...any) {
	s.History = append(s.History, fmt.Sprintf(format, args...))
}

// NewGoal builds a sanitized state for a brand-new goal: only the
// allow-listed keys survive from prev, plus the new prompt. Ephemeral
// data from the previous goal (specialist results, step markers) is
// dropped. prev may be nil on the first call of a session.
func NewGoal(prev *State, goal, prompt string, keep []string) State {
	if keep == nil {
		keep = DefaultIdentityKeys
	}

	st := State{
		Goal:      goal,
		Status:    StatusPending,
		Collected: make(map[string]any, len(keep)+1),
		CallStack: []string{goal},
	}
	if prev != nil {
		for _, k := range keep {
			if v, ok := prev.Collected[k]; ok {
				st.Collected[k] = cloneValue(v)
			}
		}
		st.History = append([]string(nil), prev.History...)
	}
	st.Collected[KeyPrompt] = prompt
	st.AppendHistory("goal %s started", goal)
	return st
}
