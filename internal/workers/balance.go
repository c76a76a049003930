package workers

import (
	"context"
	"fmt"

	"concierge/internal/store"
	"concierge/internal/worker"
)

const BalanceName = "balance"

type Balance struct {
	db *store.Store
}

func NewBalance(db *store.Store) *Balance {
	return &Balance{db: db}
}

func (b *Balance) Name() string { return BalanceName }

func (b *Balance) Execute(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
	accountID, _ := st.Collected[worker.KeyAccountID].(string)
	if accountID == "" {
		return worker.Envelope{}, fmt.Errorf("no account in state")
	}

	account, err := b.db.GetAccount(accountID)
	if err != nil {
		return worker.Envelope{}, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return worker.Envelope{}, fmt.Errorf("unknown account: %s", accountID)
	}

	return worker.CompleteEnvelope(st,
		fmt.Sprintf("The current balance is %d.", account.Balance),
		map[string]any{
			"account_id": account.ID,
			"balance":    account.Balance,
		}), nil
}
