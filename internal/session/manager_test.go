package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"concierge/internal/natsbus"
	"concierge/internal/registry"
	"concierge/internal/router"
	"concierge/internal/store"
	"concierge/internal/vault"
	"concierge/internal/worker"
	"concierge/internal/workers"
)

type stubWorker struct {
	name string
	fn   func(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error)
}

func (w *stubWorker) Name() string { return w.name }
func (w *stubWorker) Execute(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
	return w.fn(ctx, prompt, st)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(store.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestManager wires a manager over a router whose bootstrap completes
// immediately and whose planner echoes the prompt back.
func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	db := newTestStore(t)

	reg := registry.New()
	reg.RegisterHidden("boot", "test bootstrap", func() (worker.Worker, error) {
		return &stubWorker{name: "boot", fn: func(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
			st.Collected[worker.KeyAccountID] = "acct-1"
			payload, _ := json.Marshal(map[string]string{"account_id": "acct-1"})
			st.Status = worker.StatusComplete
			return worker.Envelope{
				Outcome: worker.OutcomeComplete,
				Speech:  "welcome",
				Action:  worker.ClientAction(workers.CredentialsVerb, payload),
				State:   st,
			}, nil
		}}, nil
	})
	reg.RegisterHidden("plan", "test planner", func() (worker.Worker, error) {
		return &stubWorker{name: "plan", fn: func(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
			return worker.CompleteEnvelope(st, "echo: "+prompt, nil), nil
		}}, nil
	})

	rtr := router.New(reg, router.Config{BootstrapWorker: "boot", PlannerWorker: "plan"})
	return NewManager(db, rtr), db
}

func TestTurnPersistsStateAndAudit(t *testing.T) {
	m, db := newTestManager(t)
	ctx := context.Background()

	env, err := m.Turn(ctx, "s1", "web", "hello")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if env.Speech != "welcome" {
		t.Errorf("expected bootstrap reply, got %q", env.Speech)
	}

	st, err := db.GetSessionState("s1")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st == nil || st.Collected[worker.KeyAccountID] != "acct-1" {
		t.Fatalf("state not persisted: %+v", st)
	}

	// Second turn must see the persisted state and skip bootstrap.
	env, err = m.Turn(ctx, "s1", "web", "what's up?")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if env.Speech != "echo: what's up?" {
		t.Errorf("expected planner reply, got %q", env.Speech)
	}

	turns, err := db.GetTurns("s1", 10)
	if err != nil {
		t.Fatalf("get turns: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 audit rows, got %d", len(turns))
	}
	var users, assistants int
	for _, tr := range turns {
		switch tr.Sender {
		case "user":
			users++
		case "assistant":
			assistants++
			if tr.Status != string(worker.OutcomeComplete) {
				t.Errorf("assistant row missing outcome: %+v", tr)
			}
		}
	}
	if users != 2 || assistants != 2 {
		t.Errorf("unexpected audit rows: %d user, %d assistant", users, assistants)
	}
}

func TestTurnStoresCredentialsWhenVaultSet(t *testing.T) {
	m, db := newTestManager(t)
	v := vault.New("test-passphrase")
	m.SetVault(v)

	if _, err := m.Turn(context.Background(), "s1", "web", "hi"); err != nil {
		t.Fatalf("turn: %v", err)
	}

	sealed, err := db.GetSecret("credentials:s1")
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if sealed == nil {
		t.Fatal("credentials not stored")
	}

	plain, err := v.Open(sealed)
	if err != nil {
		t.Fatalf("open sealed credentials: %v", err)
	}
	var creds map[string]string
	if err := json.Unmarshal(plain, &creds); err != nil {
		t.Fatalf("decode credentials: %v", err)
	}
	if creds["account_id"] != "acct-1" {
		t.Errorf("unexpected credentials: %v", creds)
	}
}

func TestTurnWithoutVaultSkipsCredentials(t *testing.T) {
	m, db := newTestManager(t)

	if _, err := m.Turn(context.Background(), "s1", "web", "hi"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	sealed, err := db.GetSecret("credentials:s1")
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if sealed != nil {
		t.Errorf("credentials stored without a vault: %v", sealed)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m, db := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Turn(ctx, "s1", "web", "hi"); err != nil {
		t.Fatalf("turn s1: %v", err)
	}
	if _, err := m.Turn(ctx, "s2", "telegram", "hi"); err != nil {
		t.Fatalf("turn s2: %v", err)
	}

	sessions, err := db.ListSessions()
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	channels := map[string]string{}
	for _, s := range sessions {
		channels[s.ID] = s.Channel
	}
	if channels["s1"] != "web" || channels["s2"] != "telegram" {
		t.Errorf("unexpected channels: %v", channels)
	}
}

func TestTurnPublishesSessionEvent(t *testing.T) {
	m, _ := newTestManager(t)

	bus, err := natsbus.New(natsbus.Config{Port: -1, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start bus: %v", err)
	}
	t.Cleanup(bus.Close)

	events, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer events.Close()
	m.SetEvents(events)

	received := make(chan []byte, 1)
	sub, err := events.Subscribe(natsbus.TopicSessionEvents("s1"), func(msg *nats.Msg) {
		received <- msg.Data
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if _, err := m.Turn(context.Background(), "s1", "web", "hello"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if err := events.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case data := <-received:
		var ev natsbus.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Type != "turn" || ev.SessionID != "s1" {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.Timestamp == "" {
			t.Error("expected a timestamped event")
		}
		payload, ok := ev.Data.(map[string]any)
		if !ok {
			t.Fatalf("unexpected event data: %#v", ev.Data)
		}
		if payload["speech"] != "welcome" || payload["status"] != string(worker.OutcomeComplete) {
			t.Errorf("unexpected event payload: %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turn event")
	}
}
