package registry

import (
	"context"
	"errors"
	"testing"

	"concierge/internal/worker"
)

type nopWorker struct{ name string }

func (w *nopWorker) Name() string { return w.name }
func (w *nopWorker) Execute(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
	return worker.Envelope{}, nil
}

func TestRegisterAndInstantiate(t *testing.T) {
	r := New()
	r.Register("balance", "Reports the balance", func() (worker.Worker, error) {
		return &nopWorker{name: "balance"}, nil
	})

	w, err := r.Instantiate("balance")
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if w.Name() != "balance" {
		t.Errorf("expected balance, got %q", w.Name())
	}

	desc, ok := r.Describe("balance")
	if !ok || desc != "Reports the balance" {
		t.Errorf("unexpected description: %q (%v)", desc, ok)
	}
}

func TestInstantiateUnknown(t *testing.T) {
	r := New()
	_, err := r.Instantiate("ghost")
	if err == nil {
		t.Fatal("expected error for unknown worker")
	}
	var unknown *worker.UnknownWorkerError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownWorkerError, got %T", err)
	}
	if unknown.Name != "ghost" {
		t.Errorf("expected name ghost, got %q", unknown.Name)
	}
}

func TestMenuExcludesHidden(t *testing.T) {
	r := New()
	r.RegisterHidden("planner", "internal", func() (worker.Worker, error) { return &nopWorker{}, nil })
	r.Register("balance", "visible", func() (worker.Worker, error) { return &nopWorker{}, nil })
	r.Register("transfer", "visible", func() (worker.Worker, error) { return &nopWorker{}, nil })

	menu := r.Menu()
	if len(menu) != 2 {
		t.Fatalf("expected 2 visible entries, got %d", len(menu))
	}
	for _, e := range menu {
		if e.Name == "planner" {
			t.Error("hidden entry leaked into the menu")
		}
	}

	if len(r.List()) != 3 {
		t.Errorf("expected 3 total entries, got %d", len(r.List()))
	}
}

func TestReRegisterKeepsPosition(t *testing.T) {
	r := New()
	r.Register("a", "first", func() (worker.Worker, error) { return &nopWorker{}, nil })
	r.Register("b", "second", func() (worker.Worker, error) { return &nopWorker{}, nil })
	r.Register("a", "updated", func() (worker.Worker, error) { return &nopWorker{name: "a2"}, nil })

	entries := r.List()
	if len(entries) != 2 {
		t.Fatalf("re-registration must not duplicate, got %d entries", len(entries))
	}
	if entries[0].Name != "a" || entries[0].Description != "updated" {
		t.Errorf("expected a/updated first, got %+v", entries[0])
	}

	w, _ := r.Instantiate("a")
	if w.Name() != "a2" {
		t.Errorf("factory not replaced, got %q", w.Name())
	}
}
