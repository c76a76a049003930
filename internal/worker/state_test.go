package worker

import (
	"encoding/json"
	"testing"
)

func TestNewGoalSanitization(t *testing.T) {
	prev := &State{
		Goal:   "transfer",
		Status: StatusComplete,
		Collected: map[string]any{
			KeyAccountID:         "acct-1",
			KeyUserName:          "Ada",
			KeySpecialistResults: []any{map[string]any{"worker": "balance"}},
			KeyAwaitingField:     "transfer_amount",
			"transfer_recipient": "Bob",
		},
		CallStack: []string{"transfer"},
		History:   []string{"goal transfer started"},
	}

	st := NewGoal(prev, "balance", "what's my balance?", nil)

	if st.Goal != "balance" {
		t.Errorf("expected goal 'balance', got %q", st.Goal)
	}
	if st.Status != StatusPending {
		t.Errorf("expected pending status, got %q", st.Status)
	}
	if got := st.Collected[KeyAccountID]; got != "acct-1" {
		t.Errorf("identity key not carried: %v", got)
	}
	if got := st.Collected[KeyUserName]; got != "Ada" {
		t.Errorf("identity key not carried: %v", got)
	}
	if got := st.Collected[KeyPrompt]; got != "what's my balance?" {
		t.Errorf("prompt not set: %v", got)
	}

	// Ephemeral keys must not survive the goal transition.
	for _, k := range []string{KeySpecialistResults, KeyAwaitingField, "transfer_recipient"} {
		if _, ok := st.Collected[k]; ok {
			t.Errorf("key %q leaked into new goal", k)
		}
	}

	if st.ActiveWorker() != "balance" {
		t.Errorf("expected call stack [balance], got %v", st.CallStack)
	}
	if len(st.History) != 2 {
		t.Errorf("expected carried history plus start entry, got %v", st.History)
	}
}

func TestNewGoalNilPrev(t *testing.T) {
	st := NewGoal(nil, "onboarding", "hi", nil)
	if st.Collected[KeyPrompt] != "hi" {
		t.Errorf("prompt not set: %v", st.Collected)
	}
	if _, ok := st.Collected[KeyAccountID]; ok {
		t.Error("no identity should exist without a previous state")
	}
}

func TestNewGoalCustomKeep(t *testing.T) {
	prev := &State{Collected: map[string]any{
		KeyAccountID: "acct-1",
		"locale":     "en",
	}}
	st := NewGoal(prev, "g", "p", []string{"locale"})
	if st.Collected["locale"] != "en" {
		t.Error("configured key not kept")
	}
	if _, ok := st.Collected[KeyAccountID]; ok {
		t.Error("account_id kept despite override list")
	}
}

func TestCloneNoAliasing(t *testing.T) {
	st := State{
		Collected: map[string]any{
			"nested": map[string]any{"k": "v"},
			"list":   []any{"a", "b"},
		},
		CallStack: []string{"planner"},
		History:   []string{"one"},
	}

	cl := st.Clone()
	cl.Collected["nested"].(map[string]any)["k"] = "changed"
	cl.Collected["list"].([]any)[0] = "changed"
	cl.CallStack[0] = "changed"
	cl.History[0] = "changed"

	if st.Collected["nested"].(map[string]any)["k"] != "v" {
		t.Error("nested map aliased between clone and original")
	}
	if st.Collected["list"].([]any)[0] != "a" {
		t.Error("nested slice aliased between clone and original")
	}
	if st.CallStack[0] != "planner" {
		t.Error("call stack aliased between clone and original")
	}
	if st.History[0] != "one" {
		t.Error("history aliased between clone and original")
	}
}

func TestActiveWorker(t *testing.T) {
	var st State
	if st.ActiveWorker() != "" {
		t.Error("empty call stack should have no active worker")
	}
	st.CallStack = []string{"planner", "transfer"}
	if st.ActiveWorker() != "transfer" {
		t.Errorf("expected transfer, got %q", st.ActiveWorker())
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	st := State{
		Goal:      "transfer",
		Status:    StatusAwaitingInput,
		Collected: map[string]any{KeyAccountID: "acct-1", KeyAwaitingField: "transfer_amount"},
		CallStack: []string{"transfer"},
		History:   []string{"goal transfer started"},
	}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got State
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != StatusAwaitingInput {
		t.Errorf("status lost in round trip: %q", got.Status)
	}
	if got.ActiveWorker() != "transfer" {
		t.Errorf("call stack lost in round trip: %v", got.CallStack)
	}
	if got.Collected[KeyAwaitingField] != "transfer_amount" {
		t.Errorf("collected info lost in round trip: %v", got.Collected)
	}
}
