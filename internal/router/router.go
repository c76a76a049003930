// Package router owns the turn control plane: the bootstrap gate, the
// continuation protocol, and the delegation execution loop.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"concierge/internal/registry"
	"concierge/internal/worker"
)

// DefaultMaxDepth bounds the delegation loop so a delegator that always
// re-delegates terminates with a DelegationExhaustedError.
const DefaultMaxDepth = 25

// Config names the two workers the router dispatches to directly and
// the sanitization allow-list.
type Config struct {
	BootstrapWorker string   `yaml:"bootstrap_worker"`
	PlannerWorker   string   `yaml:"planner_worker"`
	IdentityKeys    []string `yaml:"identity_keys"`
	MaxDepth        int      `yaml:"max_depth"`
}

type Router struct {
	registry  *registry.Registry
	bootstrap string
	planner   string
	keep      []string
	maxDepth  int
}

func New(reg *registry.Registry, cfg Config) *Router {
	r := &Router{
		registry:  reg,
		bootstrap: cfg.BootstrapWorker,
		planner:   cfg.PlannerWorker,
		keep:      cfg.IdentityKeys,
		maxDepth:  cfg.MaxDepth,
	}
	if r.keep == nil {
		r.keep = worker.DefaultIdentityKeys
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}
	return r
}

// Route handles one external turn. prior is the state echoed back from
// the previous turn, nil on the first call of a session. First matching
// rule wins: bootstrap gate, continuation, new goal.
func (r *Router) Route(ctx context.Context, prompt string, prior *worker.State) worker.Envelope {
	// Bootstrap gate: no other worker may ever observe a state without
	// the identity key. Mid-bootstrap replies fall through to the
	// continuation rule so the flow can keep asking its questions.
	if !r.onboarded(prior) && !r.midBootstrap(prior) {
		st := worker.NewGoal(prior, r.bootstrap, prompt, r.keep)
		slog.Info("bootstrap gate engaged")
		return r.run(ctx, r.invoke(ctx, r.bootstrap, prompt, st), prompt)
	}

	// Continuation: the turn is a reply to a pending question. The
	// paused worker sees the prior state unmodified, no sanitization.
	if prior != nil && prior.Status == worker.StatusAwaitingInput {
		name := prior.ActiveWorker()
		slog.Info("resuming worker", "worker", name)
		return r.run(ctx, r.invoke(ctx, name, prompt, prior.Clone()), prompt)
	}

	// New goal: sanitized state, planner owns it.
	st := worker.NewGoal(prior, r.planner, prompt, r.keep)
	slog.Info("new goal", "worker", r.planner)
	return r.run(ctx, r.invoke(ctx, r.planner, prompt, st), prompt)
}

// onboarded reports whether the state carries the required identity key.
func (r *Router) onboarded(st *worker.State) bool {
	if st == nil {
		return false
	}
	v, ok := st.Collected[worker.KeyAccountID]
	if !ok {
		return false
	}
	s, isStr := v.(string)
	return !isStr || s != ""
}

func (r *Router) midBootstrap(st *worker.State) bool {
	return st != nil && st.Status == worker.StatusAwaitingInput && st.ActiveWorker() == r.bootstrap
}

// run is the delegation execution loop. It consumes envelopes until a
// terminal one appears, fanning delegations out in parallel and resuming
// the delegator with the aggregated results.
func (r *Router) run(ctx context.Context, env worker.Envelope, originalPrompt string) worker.Envelope {
	for depth := 0; ; depth++ {
		tasks := env.Action.Delegations()
		if tasks == nil {
			// Complete, awaiting input, error, or a client verb: the
			// loop passes terminal envelopes through unchanged.
			return env
		}
		if len(tasks) == 0 {
			// A delegation with no targets cannot be serviced.
			env.Action = worker.CompleteGoal()
			return env
		}
		if depth >= r.maxDepth {
			err := &worker.DelegationExhaustedError{Depth: depth}
			slog.Error("delegation loop exhausted", "depth", depth, "goal", env.State.Goal)
			return worker.ErrorEnvelope(env.State, err.Error())
		}

		results := r.fanOut(ctx, tasks, env.State)

		// Pausing preempts synthesis: the first task that needs user
		// input wins the turn; sibling results are discarded.
		for _, res := range results {
			if res.Outcome == worker.OutcomeAwaitingInput {
				return res
			}
		}
		for _, res := range results {
			if res.Outcome == worker.OutcomeError {
				return res
			}
		}

		aggregated := make([]worker.SpecialistResult, len(results))
		for i, res := range results {
			aggregated[i] = worker.SpecialistResult{
				Worker:       tasks[i].Worker,
				Status:       res.Outcome,
				Speech:       res.Speech,
				Presentation: res.Presentation,
			}
		}

		// The resuming worker is the delegator still on top of the call
		// stack, not any of the tasks.
		resumeState := env.State.Clone()
		resumeState.Collected[worker.KeySpecialistResults] = aggregated
		resumeState.Status = worker.StatusPending
		resumer := env.State.ActiveWorker()
		slog.Info("resuming delegator", "worker", resumer, "results", len(aggregated))

		env = r.invoke(ctx, resumer, originalPrompt, resumeState)
	}
}

// fanOut runs a delegation batch concurrently. Every task receives its
// own clone of the same pre-fan-out state snapshot; tasks never see each
// other's results.
func (r *Router) fanOut(ctx context.Context, tasks []worker.Task, st worker.State) []worker.Envelope {
	results := make([]worker.Envelope, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t worker.Task) {
			defer wg.Done()
			results[i] = r.invoke(ctx, t.Worker, t.Prompt, st.Clone())
		}(i, t)
	}
	wg.Wait()
	return results
}

// invoke is the single place unexpected failures become user-presentable
// responses: instantiation errors, worker error returns, and panics all
// collapse into the standard error envelope. Nothing is retried.
func (r *Router) invoke(ctx context.Context, name, prompt string, st worker.State) (env worker.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("worker panicked", "worker", name, "panic", rec)
			env = worker.ErrorEnvelope(st, fmt.Sprintf("worker %s panicked", name))
		}
	}()

	w, err := r.registry.Instantiate(name)
	if err != nil {
		slog.Error("worker instantiation failed", "worker", name, "error", err)
		return worker.ErrorEnvelope(st, err.Error())
	}

	env, err = w.Execute(ctx, prompt, st)
	if err != nil {
		slog.Error("worker failed", "worker", name, "error", err)
		return worker.ErrorEnvelope(st, err.Error())
	}
	return env
}
