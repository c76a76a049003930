package workers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"concierge/internal/store"
	"concierge/internal/worker"
)

const TransferName = "transfer"

// Worker-private collected keys; sanitization drops them when the next
// goal begins.
const (
	keyTransferRecipient = "transfer_recipient"
	keyTransferAmount    = "transfer_amount"
)

type Transfer struct {
	db *store.Store
}

func NewTransfer(db *store.Store) *Transfer {
	return &Transfer{db: db}
}

func (t *Transfer) Name() string { return TransferName }

func (t *Transfer) Execute(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
	prompt = strings.TrimSpace(prompt)

	// A continuation prompt answers whichever field we paused on.
	if field, _ := st.Collected[worker.KeyAwaitingField].(string); prompt != "" {
		switch field {
		case keyTransferRecipient, keyTransferAmount:
			st.Collected[field] = prompt
			delete(st.Collected, worker.KeyAwaitingField)
		}
	}

	recipient, _ := st.Collected[keyTransferRecipient].(string)
	if recipient == "" {
		return worker.AskEnvelope(st, "Who should receive the transfer?", keyTransferRecipient), nil
	}

	rawAmount, ok := st.Collected[keyTransferAmount]
	if !ok {
		return worker.AskEnvelope(st, "How much should I send?", keyTransferAmount), nil
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		delete(st.Collected, keyTransferAmount)
		return worker.AskEnvelope(st, "I couldn't read that amount. How much should I send? (a whole number)", keyTransferAmount), nil
	}

	to, err := t.db.GetAccountByName(recipient)
	if err != nil {
		return worker.Envelope{}, fmt.Errorf("resolve recipient: %w", err)
	}
	if to == nil {
		delete(st.Collected, keyTransferRecipient)
		return worker.AskEnvelope(st,
			fmt.Sprintf("I don't know an account called %q. Who should receive the transfer?", recipient),
			keyTransferRecipient), nil
	}

	fromID, _ := st.Collected[worker.KeyAccountID].(string)
	if fromID == "" {
		return worker.Envelope{}, fmt.Errorf("no account in state")
	}

	if err := t.db.Transfer(fromID, to.ID, amount); err != nil {
		// Business refusal, not an infrastructure failure: tell the
		// user and finish the goal.
		return worker.CompleteEnvelope(st,
			fmt.Sprintf("I couldn't complete the transfer: %v.", err), nil), nil
	}

	_ = t.db.SaveTopicMessage(fromID, fmt.Sprintf("sent %d to %s", amount, to.Name))
	_ = t.db.SaveTopicMessage(to.ID, fmt.Sprintf("received %d from account %s", amount, fromID))

	return worker.CompleteEnvelope(st,
		fmt.Sprintf("Done. Sent %d to %s.", amount, to.Name),
		map[string]any{
			"to":     to.ID,
			"amount": amount,
		}), nil
}

func parseAmount(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}
