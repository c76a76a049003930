// Package workers holds the specialist workers shipped with the
// gateway. Each one honors the shared re-entry contract: inspect the
// collected info for the facts it still needs, ask for the first
// missing one, and mark which field the next prompt answers.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"concierge/internal/store"
	"concierge/internal/worker"
)

// BootstrapName is the onboarding worker's registry name; the router's
// bootstrap gate dispatches to it directly.
const BootstrapName = "onboarding"

// CredentialsVerb is the opaque client action emitted once an account
// exists. The engine forwards it; the host persists the key material.
const CredentialsVerb = "store_credentials"

type Onboarding struct {
	db *store.Store
}

func NewOnboarding(db *store.Store) *Onboarding {
	return &Onboarding{db: db}
}

func (o *Onboarding) Name() string { return BootstrapName }

func (o *Onboarding) Execute(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
	prompt = strings.TrimSpace(prompt)

	if field, _ := st.Collected[worker.KeyAwaitingField].(string); field == worker.KeyUserName && prompt != "" {
		st.Collected[worker.KeyUserName] = prompt
		delete(st.Collected, worker.KeyAwaitingField)
	}

	name, _ := st.Collected[worker.KeyUserName].(string)
	if name == "" {
		return worker.AskEnvelope(st,
			"Hi! I'm your assistant. Before we start, what should I call you?",
			worker.KeyUserName), nil
	}

	account, err := o.db.CreateAccount(name)
	if err != nil {
		return worker.Envelope{}, fmt.Errorf("create account: %w", err)
	}
	_ = o.db.SaveTopicMessage(account.ID, "account created")
	slog.Info("account onboarded", "account", account.ID, "name", name)

	st.Collected[worker.KeyAccountID] = account.ID
	st.Status = worker.StatusComplete
	st.AppendHistory("onboarded %s as %s", name, account.ID)

	payload, err := json.Marshal(map[string]any{
		"account_id": account.ID,
		"user_name":  name,
	})
	if err != nil {
		return worker.Envelope{}, fmt.Errorf("encode credentials: %w", err)
	}

	return worker.Envelope{
		Outcome: worker.OutcomeComplete,
		Speech:  fmt.Sprintf("Welcome, %s! Your account is ready with a starting balance of %d. What can I do for you?", name, account.Balance),
		Presentation: map[string]any{
			"account_id": account.ID,
			"balance":    account.Balance,
		},
		Action: worker.ClientAction(CredentialsVerb, payload),
		State:  st,
	}, nil
}
