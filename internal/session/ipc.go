package session

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"concierge/internal/natsbus"
	"concierge/internal/schedule"
	"concierge/internal/store"
)

// StartIPC serves the request/reply surface used by the ctask CLI:
// one-shot turns and scheduled-prompt management.
func (m *Manager) StartIPC(client *natsbus.Client) error {
	if _, err := client.Subscribe(natsbus.TopicTurn, func(msg *nats.Msg) {
		m.ipcTurn(msg)
	}); err != nil {
		return err
	}
	if _, err := client.Subscribe(natsbus.TopicPromptCreate, func(msg *nats.Msg) {
		m.ipcPromptCreate(msg)
	}); err != nil {
		return err
	}
	if _, err := client.Subscribe(natsbus.TopicPromptList, func(msg *nats.Msg) {
		m.ipcPromptList(msg)
	}); err != nil {
		return err
	}
	if _, err := client.Subscribe(natsbus.TopicPromptDelete, func(msg *nats.Msg) {
		m.ipcPromptDelete(msg)
	}); err != nil {
		return err
	}
	return nil
}

func respondIPC(msg *nats.Msg, data any) {
	resp, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to marshal IPC response", "error", err)
		return
	}
	if err := msg.Respond(resp); err != nil {
		slog.Error("failed to respond to IPC", "error", err)
	}
}

func (m *Manager) ipcTurn(msg *nats.Msg) {
	var req struct {
		SessionID string `json:"session_id"`
		Prompt    string `json:"prompt"`
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.SessionID == "" {
		respondIPC(msg, map[string]any{"error": "session_id and prompt are required"})
		return
	}

	env, err := m.Turn(context.Background(), req.SessionID, "bus", req.Prompt)
	if err != nil {
		respondIPC(msg, map[string]any{"error": err.Error()})
		return
	}
	respondIPC(msg, env)
}

func (m *Manager) ipcPromptCreate(msg *nats.Msg) {
	var req struct {
		Name      string `json:"name"`
		Schedule  string `json:"schedule"`
		Prompt    string `json:"prompt"`
		SessionID string `json:"session_id,omitempty"`
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		respondIPC(msg, map[string]any{"error": "invalid payload"})
		return
	}
	if req.Name == "" || req.Schedule == "" || req.Prompt == "" {
		respondIPC(msg, map[string]any{"error": "name, schedule, and prompt are required"})
		return
	}

	normalized, err := schedule.Normalize(req.Schedule)
	if err != nil {
		respondIPC(msg, map[string]any{"error": "invalid schedule: " + err.Error()})
		return
	}

	p := &store.ScheduledPrompt{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Schedule:  normalized,
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
		Status:    "active",
		NextRunAt: schedule.NextRun(normalized),
	}
	if err := m.db.SavePrompt(p); err != nil {
		respondIPC(msg, map[string]any{"error": "save failed: " + err.Error()})
		return
	}

	slog.Info("scheduled prompt created via IPC", "id", p.ID, "name", p.Name)
	respondIPC(msg, map[string]any{"ok": true, "id": p.ID})
}

func (m *Manager) ipcPromptList(msg *nats.Msg) {
	prompts, err := m.db.ListPrompts()
	if err != nil {
		respondIPC(msg, map[string]any{"error": "list failed: " + err.Error()})
		return
	}
	respondIPC(msg, map[string]any{"ok": true, "prompts": prompts})
}

func (m *Manager) ipcPromptDelete(msg *nats.Msg) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.ID == "" {
		respondIPC(msg, map[string]any{"error": "id is required"})
		return
	}
	if err := m.db.DeletePrompt(req.ID); err != nil {
		respondIPC(msg, map[string]any{"error": "delete failed: " + err.Error()})
		return
	}
	slog.Info("scheduled prompt deleted via IPC", "id", req.ID)
	respondIPC(msg, map[string]any{"ok": true})
}
