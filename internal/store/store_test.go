package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"concierge/internal/worker"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionStateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	st, err := s.GetSessionState("missing")
	if err != nil {
		t.Fatalf("get missing session: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil state for unknown session, got %+v", st)
	}

	in := worker.State{
		Goal:   "check balance",
		Status: worker.StatusAwaitingInput,
		Collected: map[string]any{
			worker.KeyAccountID:     "acct-1",
			worker.KeyAwaitingField: "transfer_amount",
		},
		CallStack: []string{"planner", "transfer"},
		History:   []string{"goal check balance started"},
	}
	if err := s.SaveSessionState("s1", "web", in); err != nil {
		t.Fatalf("save state: %v", err)
	}

	out, err := s.GetSessionState("s1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if out == nil {
		t.Fatal("expected state, got nil")
	}
	if out.Goal != in.Goal || out.Status != in.Status {
		t.Errorf("state mismatch: got %+v", out)
	}
	if out.Collected[worker.KeyAccountID] != "acct-1" {
		t.Errorf("collected info lost: %v", out.Collected)
	}
	if out.ActiveWorker() != "transfer" {
		t.Errorf("call stack lost: %v", out.CallStack)
	}

	// Upsert replaces, not duplicates.
	in.Status = worker.StatusComplete
	if err := s.SaveSessionState("s1", "web", in); err != nil {
		t.Fatalf("update state: %v", err)
	}
	out, err = s.GetSessionState("s1")
	if err != nil {
		t.Fatalf("get updated state: %v", err)
	}
	if out.Status != worker.StatusComplete {
		t.Errorf("expected updated status, got %q", out.Status)
	}

	sessions, err := s.ListSessions()
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" || sessions[0].Channel != "web" {
		t.Errorf("unexpected sessions: %+v", sessions)
	}
}

func TestTurns(t *testing.T) {
	s := newTestStore(t)

	st := worker.State{Status: worker.StatusPending, Collected: map[string]any{}}
	if err := s.SaveSessionState("s1", "web", st); err != nil {
		t.Fatalf("save state: %v", err)
	}

	turns := []*Turn{
		{SessionID: "s1", Sender: "user", Content: "what's my balance?"},
		{SessionID: "s1", Sender: "assistant", Content: "Your balance is 100.", Status: "complete"},
	}
	for _, tr := range turns {
		if err := s.SaveTurn(tr); err != nil {
			t.Fatalf("save turn: %v", err)
		}
		if tr.ID == 0 {
			t.Error("expected turn ID to be set after save")
		}
	}

	got, err := s.GetTurns("s1", 10)
	if err != nil {
		t.Fatalf("get turns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Sender != "user" || got[1].Sender != "assistant" {
		t.Errorf("turns not in chronological order: %+v", got)
	}
	if got[1].Status != "complete" {
		t.Errorf("turn status lost: %+v", got[1])
	}

	if err := s.DeleteSession("s1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err = s.GetTurns("s1", 10)
	if err != nil {
		t.Fatalf("get turns after delete: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no turns after session delete, got %d", len(got))
	}
}

func TestAccounts(t *testing.T) {
	s := newTestStore(t)

	a, err := s.CreateAccount("Ada")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if a.Balance != InitialBalance {
		t.Errorf("expected initial balance %d, got %d", InitialBalance, a.Balance)
	}

	got, err := s.GetAccount(a.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got == nil || got.Name != "Ada" {
		t.Errorf("unexpected account: %+v", got)
	}

	byName, err := s.GetAccountByName("Ada")
	if err != nil {
		t.Fatalf("get account by name: %v", err)
	}
	if byName == nil || byName.ID != a.ID {
		t.Errorf("lookup by name failed: %+v", byName)
	}

	missing, err := s.GetAccountByName("Nobody")
	if err != nil {
		t.Fatalf("get missing account: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown name, got %+v", missing)
	}
}

func TestTransfer(t *testing.T) {
	s := newTestStore(t)

	from, err := s.CreateAccount("Ada")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	to, err := s.CreateAccount("Bob")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	if err := s.Transfer(from.ID, to.ID, 30); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := s.GetAccount(from.ID)
	b, _ := s.GetAccount(to.ID)
	if a.Balance != InitialBalance-30 || b.Balance != InitialBalance+30 {
		t.Errorf("balances wrong after transfer: from=%d to=%d", a.Balance, b.Balance)
	}

	err = s.Transfer(from.ID, to.ID, InitialBalance*10)
	if err == nil || !strings.Contains(err.Error(), "insufficient balance") {
		t.Errorf("expected insufficient balance error, got %v", err)
	}
	err = s.Transfer("nope", to.ID, 1)
	if err == nil || !strings.Contains(err.Error(), "unknown account") {
		t.Errorf("expected unknown account error, got %v", err)
	}
	err = s.Transfer(from.ID, "nope", 1)
	if err == nil || !strings.Contains(err.Error(), "unknown account") {
		t.Errorf("expected unknown account error, got %v", err)
	}
	if err := s.Transfer(from.ID, to.ID, 0); err == nil {
		t.Error("expected error for non-positive amount")
	}

	// Failed transfers must not move money.
	a, _ = s.GetAccount(from.ID)
	if a.Balance != InitialBalance-30 {
		t.Errorf("balance changed by failed transfer: %d", a.Balance)
	}
}

func TestTopicMessages(t *testing.T) {
	s := newTestStore(t)

	a, err := s.CreateAccount("Ada")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	for _, msg := range []string{"first", "second", "third"} {
		if err := s.SaveTopicMessage(a.ID, msg); err != nil {
			t.Fatalf("save topic message: %v", err)
		}
	}

	msgs, err := s.GetTopicMessages(a.ID, 2)
	if err != nil {
		t.Fatalf("get topic messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	msgs, err = s.GetTopicMessages(a.ID, 0)
	if err != nil {
		t.Fatalf("get topic messages with default limit: %v", err)
	}
	if len(msgs) != 3 {
		t.Errorf("expected 3 messages with default limit, got %d", len(msgs))
	}
}

func TestScheduledPrompts(t *testing.T) {
	s := newTestStore(t)

	next := time.Now().Add(-time.Minute)
	p := &ScheduledPrompt{
		ID:        "p1",
		Name:      "morning digest",
		Schedule:  `{"kind":"cron","cron_expr":"0 8 * * *"}`,
		Prompt:    "summarize my messages",
		Status:    "active",
		NextRunAt: &next,
	}
	if err := s.SavePrompt(p); err != nil {
		t.Fatalf("save prompt: %v", err)
	}

	got, err := s.GetPrompt("p1")
	if err != nil {
		t.Fatalf("get prompt: %v", err)
	}
	if got == nil || got.Name != "morning digest" || got.Status != "active" {
		t.Errorf("unexpected prompt: %+v", got)
	}

	missing, err := s.GetPrompt("nope")
	if err != nil {
		t.Fatalf("get missing prompt: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown prompt, got %+v", missing)
	}

	due, err := s.GetDuePrompts(time.Now())
	if err != nil {
		t.Fatalf("get due prompts: %v", err)
	}
	if len(due) != 1 || due[0].ID != "p1" {
		t.Errorf("expected p1 due, got %+v", due)
	}

	// Paused prompts never come due.
	if err := s.UpdatePromptStatus("p1", "paused"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	due, err = s.GetDuePrompts(time.Now())
	if err != nil {
		t.Fatalf("get due prompts: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("paused prompt reported due: %+v", due)
	}

	future := time.Now().Add(time.Hour)
	if err := s.UpdatePromptRun("p1", "success", "", &future); err != nil {
		t.Fatalf("update prompt run: %v", err)
	}
	got, err = s.GetPrompt("p1")
	if err != nil {
		t.Fatalf("get prompt after run: %v", err)
	}
	if got.LastStatus != "success" || got.LastRunAt == nil {
		t.Errorf("run record not updated: %+v", got)
	}

	// Once-prompts drop their next run entirely.
	if err := s.UpdatePromptRun("p1", "success", "", nil); err != nil {
		t.Fatalf("clear next run: %v", err)
	}
	got, _ = s.GetPrompt("p1")
	if got.NextRunAt != nil {
		t.Errorf("expected cleared next run, got %v", got.NextRunAt)
	}

	if err := s.DeletePrompt("p1"); err != nil {
		t.Fatalf("delete prompt: %v", err)
	}
	got, _ = s.GetPrompt("p1")
	if got != nil {
		t.Errorf("expected prompt deleted, got %+v", got)
	}
}

func TestSecrets(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetSecret("missing")
	if err != nil {
		t.Fatalf("get missing secret: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown secret, got %v", got)
	}

	if err := s.SaveSecret("credentials:s1", []byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("save secret: %v", err)
	}
	got, err = s.GetSecret("credentials:s1")
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if string(got) != "\x01\x02\x03" {
		t.Errorf("secret round trip failed: %v", got)
	}

	// Upsert replaces the blob.
	if err := s.SaveSecret("credentials:s1", []byte{0xff}); err != nil {
		t.Fatalf("update secret: %v", err)
	}
	got, _ = s.GetSecret("credentials:s1")
	if len(got) != 1 || got[0] != 0xff {
		t.Errorf("secret not replaced: %v", got)
	}

	ids, err := s.ListSecretIDs()
	if err != nil {
		t.Fatalf("list secrets: %v", err)
	}
	if len(ids) != 1 || ids[0] != "credentials:s1" {
		t.Errorf("unexpected secret ids: %v", ids)
	}

	if err := s.DeleteSecret("credentials:s1"); err != nil {
		t.Fatalf("delete secret: %v", err)
	}
	got, _ = s.GetSecret("credentials:s1")
	if got != nil {
		t.Errorf("expected secret deleted, got %v", got)
	}
}
