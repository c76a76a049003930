// Package planner implements the planning worker: the coordinator that
// classifies a prompt into a direct answer or a delegation, and later
// synthesizes delegated results into one final reply.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"concierge/internal/reasoner"
	"concierge/internal/registry"
	"concierge/internal/worker"
)

// Name is the registry name of the planning worker.
const Name = "planner"

type Planner struct {
	llm reasoner.Client
	reg *registry.Registry
}

func New(llm reasoner.Client, reg *registry.Registry) *Planner {
	return &Planner{llm: llm, reg: reg}
}

func (p *Planner) Name() string { return Name }

// Execute runs one planner phase. With specialist results present in
// the state this is the synthesis pass; otherwise the planning pass.
func (p *Planner) Execute(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
	if results, ok := worker.SpecialistResults(st); ok {
		return p.synthesize(ctx, prompt, st, results)
	}
	return p.plan(ctx, prompt, st)
}

// plan is the schema the reasoner must answer with during classification.
type plan struct {
	Action   string        `json:"action"`
	Response string        `json:"response,omitempty"`
	Worker   string        `json:"worker,omitempty"`
	Prompt   string        `json:"prompt,omitempty"`
	Tasks    []worker.Task `json:"tasks,omitempty"`
}

func (p *Planner) plan(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
	raw, err := p.llm.Complete(ctx, buildPlanPrompt(p.reg.Menu(), st.Collected, prompt))
	if err != nil {
		slog.Error("planner classification failed", "error", err)
		return worker.ErrorEnvelope(st, "reasoner failure during planning"), nil
	}

	obj, err := reasoner.ExtractObject(raw)
	if err != nil {
		return worker.Envelope{}, &worker.MalformedPlanError{Raw: raw, Err: err}
	}

	var pl plan
	if err := json.Unmarshal([]byte(obj), &pl); err != nil {
		return worker.Envelope{}, &worker.MalformedPlanError{Raw: raw, Err: err}
	}

	switch pl.Action {
	case "respond":
		slog.Info("planner answering directly", "goal", st.Goal)
		return worker.CompleteEnvelope(st, pl.Response, nil), nil

	case "delegate":
		if pl.Worker == "" {
			return worker.Envelope{}, &worker.MalformedPlanError{Raw: raw, Err: fmt.Errorf("delegate without worker")}
		}
		slog.Info("planner delegating", "worker", pl.Worker)
		st.AppendHistory("planner delegated to %s", pl.Worker)
		return worker.DelegatingEnvelope(st, "Working on it...", worker.Delegate(pl.Worker, pl.Prompt)), nil

	case "delegate_parallel":
		if len(pl.Tasks) == 0 {
			return worker.Envelope{}, &worker.MalformedPlanError{Raw: raw, Err: fmt.Errorf("delegate_parallel without tasks")}
		}
		names := make([]string, len(pl.Tasks))
		for i, t := range pl.Tasks {
			names[i] = t.Worker
		}
		slog.Info("planner delegating in parallel", "workers", names)
		st.AppendHistory("planner delegated to %s", strings.Join(names, ", "))
		return worker.DelegatingEnvelope(st, "Working on it...", worker.DelegateParallel(pl.Tasks...)), nil

	default:
		return worker.Envelope{}, &worker.MalformedPlanError{Raw: raw, Err: fmt.Errorf("unknown plan action %q", pl.Action)}
	}
}

func (p *Planner) synthesize(ctx context.Context, prompt string, st worker.State, results []worker.SpecialistResult) (worker.Envelope, error) {
	raw, err := p.llm.Complete(ctx, buildSynthesisPrompt(prompt, results))
	if err != nil {
		slog.Error("planner synthesis failed", "error", err)
		return worker.ErrorEnvelope(st, "reasoner failure during synthesis"), nil
	}

	// Prefer a structured {speech, presentation} reply; tolerate plain
	// text by using it verbatim as speech.
	speech := strings.TrimSpace(raw)
	var presentation any
	if obj, err := reasoner.ExtractObject(raw); err == nil {
		var reply struct {
			Speech       string `json:"speech"`
			Presentation any    `json:"presentation,omitempty"`
		}
		if err := json.Unmarshal([]byte(obj), &reply); err == nil && reply.Speech != "" {
			speech = reply.Speech
			presentation = reply.Presentation
		}
	}

	delete(st.Collected, worker.KeySpecialistResults)
	return worker.CompleteEnvelope(st, speech, presentation), nil
}

func buildPlanPrompt(menu []registry.Entry, collected map[string]any, prompt string) string {
	var sb strings.Builder
	sb.WriteString("You are the coordinator of a conversational assistant. Classify the user's request.\n\n")
	sb.WriteString("Available specialists:\n")
	for _, e := range menu {
		fmt.Fprintf(&sb, "- %s: %s\n", e.Name, e.Description)
	}

	if facts := renderFacts(collected); facts != "" {
		sb.WriteString("\nKnown facts:\n")
		sb.WriteString(facts)
	}

	sb.WriteString("\nUser request: ")
	sb.WriteString(prompt)
	sb.WriteString("\n\nRespond with ONLY a JSON object, one of:\n")
	sb.WriteString(`{"action":"respond","response":"<answer the user directly>"}` + "\n")
	sb.WriteString(`{"action":"delegate","worker":"<name>","prompt":"<task for the specialist>"}` + "\n")
	sb.WriteString(`{"action":"delegate_parallel","tasks":[{"worker":"<name>","prompt":"<task>"}]}` + "\n")
	return sb.String()
}

func buildSynthesisPrompt(prompt string, results []worker.SpecialistResult) string {
	var sb strings.Builder
	sb.WriteString("You are the coordinator of a conversational assistant. Specialists have finished; ")
	sb.WriteString("compose one coherent answer to the user's request.\n\n")
	fmt.Fprintf(&sb, "User request: %s\n\nSpecialist results:\n", prompt)
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Worker, r.Status, r.Speech)
		if r.Presentation != nil {
			if data, err := json.Marshal(r.Presentation); err == nil {
				fmt.Fprintf(&sb, "  data: %s\n", data)
			}
		}
	}
	sb.WriteString("\nRespond with a JSON object {\"speech\":\"<final answer>\",\"presentation\":<optional display data>} or plain text.")
	return sb.String()
}

// renderFacts flattens the collected info into a compact, stable-order
// listing. Ephemeral bookkeeping keys are omitted.
func renderFacts(collected map[string]any) string {
	keys := make([]string, 0, len(collected))
	for k := range collected {
		switch k {
		case worker.KeySpecialistResults, worker.KeyAwaitingField, worker.KeyCurrentStep:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %v\n", k, collected[k])
	}
	return sb.String()
}
