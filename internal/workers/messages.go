package workers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"concierge/internal/store"
	"concierge/internal/worker"
)

const MessagesName = "messages"

const keyMessagesCount = "messages_count"

type Messages struct {
	db *store.Store
}

func NewMessages(db *store.Store) *Messages {
	return &Messages{db: db}
}

func (m *Messages) Name() string { return MessagesName }

func (m *Messages) Execute(ctx context.Context, prompt string, st worker.State) (worker.Envelope, error) {
	prompt = strings.TrimSpace(prompt)

	if field, _ := st.Collected[worker.KeyAwaitingField].(string); field == keyMessagesCount && prompt != "" {
		st.Collected[keyMessagesCount] = prompt
		delete(st.Collected, worker.KeyAwaitingField)
	}

	count, ok := resolveCount(st.Collected[keyMessagesCount], prompt)
	if !ok {
		return worker.AskEnvelope(st, "How many recent messages should I show?", keyMessagesCount), nil
	}

	accountID, _ := st.Collected[worker.KeyAccountID].(string)
	if accountID == "" {
		return worker.Envelope{}, fmt.Errorf("no account in state")
	}

	msgs, err := m.db.GetTopicMessages(accountID, count)
	if err != nil {
		return worker.Envelope{}, fmt.Errorf("get topic messages: %w", err)
	}

	if len(msgs) == 0 {
		return worker.CompleteEnvelope(st, "There are no messages on this account's topic yet.", nil), nil
	}

	lines := make([]string, len(msgs))
	items := make([]map[string]any, len(msgs))
	for i, msg := range msgs {
		lines[i] = "- " + msg.Content
		items[i] = map[string]any{
			"content": msg.Content,
			"at":      msg.CreatedAt,
		}
	}

	return worker.CompleteEnvelope(st,
		fmt.Sprintf("Here are the last %d messages:\n%s", len(msgs), strings.Join(lines, "\n")),
		map[string]any{"messages": items}), nil
}

// resolveCount takes the stored answer if present, otherwise the first
// integer in the prompt. (0, false) means a clarification is needed.
func resolveCount(stored any, prompt string) (int, bool) {
	switch v := stored.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int(v), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n, true
		}
	}

	for _, f := range strings.Fields(prompt) {
		if n, err := strconv.Atoi(strings.Trim(f, ".,!?")); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
