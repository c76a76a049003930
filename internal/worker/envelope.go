package worker

import (
	"context"
	"encoding/json"
)

// Outcome is the turn-local result of a single worker invocation. It is
// distinct from the conversation state's Status, though the two are kept
// consistent by the envelope constructors below.
type Outcome string

const (
	OutcomeDelegating    Outcome = "delegating"
	OutcomeAwaitingInput Outcome = "awaiting_input"
	OutcomeComplete      Outcome = "complete"
	OutcomeError         Outcome = "error"
)

// Envelope is the universal contract every worker returns, and the shape
// the router hands back to the external caller.
type Envelope struct {
	Outcome      Outcome `json:"status"`
	Speech       string  `json:"speech"`
	Presentation any     `json:"presentation,omitempty"`
	Action       Action  `json:"action"`
	State        State   `json:"state"`
}

// ActionKind enumerates the verbs the engine interprets. Anything else
// travels as a client action and is forwarded opaquely.
type ActionKind string

const (
	ActionCompleteGoal     ActionKind = "complete_goal"
	ActionRequestInput     ActionKind = "request_input"
	ActionDelegate         ActionKind = "delegate"
	ActionDelegateParallel ActionKind = "delegate_parallel"
	ActionClient           ActionKind = "client"
)

// Task names one unit of delegated work.
type Task struct {
	Worker string `json:"worker"`
	Prompt string `json:"prompt"`
}

// Action is the machine-actionable instruction attached to an envelope.
type Action struct {
	Kind    ActionKind      `json:"kind"`
	Worker  string          `json:"worker,omitempty"`
	Prompt  string          `json:"prompt,omitempty"`
	Tasks   []Task          `json:"tasks,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func CompleteGoal() Action {
	return Action{Kind: ActionCompleteGoal}
}

func RequestInput() Action {
	return Action{Kind: ActionRequestInput}
}

func Delegate(workerName, prompt string) Action {
	return Action{Kind: ActionDelegate, Worker: workerName, Prompt: prompt}
}

func DelegateParallel(tasks ...Task) Action {
	return Action{Kind: ActionDelegateParallel, Tasks: tasks}
}

// ClientAction builds an opaque client-directed verb. The engine never
// inspects the payload.
func ClientAction(name string, payload json.RawMessage) Action {
	return Action{Kind: ActionClient, Name: name, Payload: payload}
}

// Delegations normalizes both delegate kinds to a task list. Nil means
// the action is not a delegation.
func (a Action) Delegations() []Task {
	switch a.Kind {
	case ActionDelegate:
		return []Task{{Worker: a.Worker, Prompt: a.Prompt}}
	case ActionDelegateParallel:
		if a.Tasks == nil {
			return []Task{}
		}
		return a.Tasks
	default:
		return nil
	}
}

// Worker is a unit of delegatable capability.
type Worker interface {
	Name() string
	Execute(ctx context.Context, prompt string, st State) (Envelope, error)
}

// SpecialistResult is one delegated task's outcome, aggregated into
// Collected under KeySpecialistResults before the delegator resumes.
type SpecialistResult struct {
	Worker       string  `json:"worker"`
	Status       Outcome `json:"status"`
	Speech       string  `json:"speech"`
	Presentation any     `json:"presentation,omitempty"`
}

// SpecialistResults reads the aggregated results out of a state. Within a
// turn they are typed values; across turns they may have round-tripped
// through JSON, so the decoded-map form is accepted too.
func SpecialistResults(st State) ([]SpecialistResult, bool) {
	raw, ok := st.Collected[KeySpecialistResults]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case []SpecialistResult:
		return v, true
	case []any:
		out := make([]SpecialistResult, 0, len(v))
		for _, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			r := SpecialistResult{Presentation: m["presentation"]}
			if s, ok := m["worker"].(string); ok {
				r.Worker = s
			}
			if s, ok := m["status"].(string); ok {
				r.Status = Outcome(s)
			}
			if s, ok := m["speech"].(string); ok {
				r.Speech = s
			}
			out = append(out, r)
		}
		return out, true
	default:
		return nil, false
	}
}

// AskEnvelope pauses the turn: the worker needs the user to answer a
// question before it can continue. field is the worker-private marker
// naming which fact the next prompt answers.
func AskEnvelope(st State, question, field string) Envelope {
	st.Status = StatusAwaitingInput
	st.Collected[KeyAwaitingField] = field
	st.AppendHistory("%s asked for %s", st.ActiveWorker(), field)
	return Envelope{
		Outcome: OutcomeAwaitingInput,
		Speech:  question,
		Action:  RequestInput(),
		State:   st,
	}
}

// CompleteEnvelope finishes the goal with a final answer.
func CompleteEnvelope(st State, speech string, presentation any) Envelope {
	st.Status = StatusComplete
	delete(st.Collected, KeyAwaitingField)
	st.AppendHistory("goal %s completed", st.Goal)
	return Envelope{
		Outcome:      OutcomeComplete,
		Speech:       speech,
		Presentation: presentation,
		Action:       CompleteGoal(),
		State:        st,
	}
}

// DelegatingEnvelope hands work to other workers. speech is a terse
// status line, not a final answer.
func DelegatingEnvelope(st State, speech string, action Action) Envelope {
	st.Status = StatusDelegating
	return Envelope{
		Outcome: OutcomeDelegating,
		Speech:  speech,
		Action:  action,
		State:   st,
	}
}

// ErrorEnvelope is the single user-visible failure shape: apologetic
// speech, terminal action, failed state. Every failure path in the
// engine resolves to it.
func ErrorEnvelope(st State, note string) Envelope {
	st.Status = StatusFailed
	st.AppendHistory("failed: %s", note)
	return Envelope{
		Outcome: OutcomeError,
		Speech:  "Sorry, something went wrong handling that request. Please try again.",
		Action:  CompleteGoal(),
		State:   st,
	}
}
