// Package session drives engine turns for named sessions: it loads and
// persists conversation state, serializes turns per session, records
// the audit trail, and publishes turn events on the bus.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"concierge/internal/natsbus"
	"concierge/internal/router"
	"concierge/internal/store"
	"concierge/internal/vault"
	"concierge/internal/worker"
	"concierge/internal/workers"
)

type Manager struct {
	db     *store.Store
	router *router.Router
	events *natsbus.Client
	vault  *vault.Vault

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(db *store.Store, rtr *router.Router) *Manager {
	return &Manager{
		db:     db,
		router: rtr,
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetEvents attaches a bus client for turn event publication.
func (m *Manager) SetEvents(c *natsbus.Client) {
	m.events = c
}

// SetVault enables host-side handling of the store_credentials client
// verb.
func (m *Manager) SetVault(v *vault.Vault) {
	m.vault = v
}

// Turn runs one engine turn for a session. Turns within a session are
// strictly serialized; the engine assumes no concurrent calls share a
// state value.
func (m *Manager) Turn(ctx context.Context, sessionID, channel, prompt string) (worker.Envelope, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	prior, err := m.db.GetSessionState(sessionID)
	if err != nil {
		return worker.Envelope{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	_ = m.db.SaveTurn(&store.Turn{SessionID: sessionID, Sender: "user", Content: prompt})

	env := m.router.Route(ctx, prompt, prior)

	m.handleClientAction(sessionID, env)

	if err := m.db.SaveSessionState(sessionID, channel, env.State); err != nil {
		slog.Error("failed to persist session state", "session", sessionID, "error", err)
	}
	_ = m.db.SaveTurn(&store.Turn{
		SessionID: sessionID,
		Sender:    "assistant",
		Content:   env.Speech,
		Status:    string(env.Outcome),
	})

	m.publishTurnEvent(sessionID, env)
	return env, nil
}

func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

// handleClientAction interprets the opaque verbs this host understands.
// Unknown verbs pass through to the transport untouched.
func (m *Manager) handleClientAction(sessionID string, env worker.Envelope) {
	if env.Action.Kind != worker.ActionClient {
		return
	}

	switch env.Action.Name {
	case workers.CredentialsVerb:
		if m.vault == nil {
			slog.Warn("no vault configured, credentials not persisted", "session", sessionID)
			return
		}
		sealed, err := m.vault.Seal(env.Action.Payload)
		if err != nil {
			slog.Error("failed to seal credentials", "session", sessionID, "error", err)
			return
		}
		if err := m.db.SaveSecret("credentials:"+sessionID, sealed); err != nil {
			slog.Error("failed to store credentials", "session", sessionID, "error", err)
			return
		}
		slog.Info("credentials stored", "session", sessionID)
	default:
		slog.Debug("unhandled client action", "name", env.Action.Name)
	}
}

func (m *Manager) publishTurnEvent(sessionID string, env worker.Envelope) {
	if m.events == nil {
		return
	}

	_ = m.events.PublishEvent(natsbus.Event{
		Type:      "turn",
		SessionID: sessionID,
		Data: map[string]any{
			"status": env.Outcome,
			"speech": env.Speech,
			"goal":   env.State.Goal,
		},
	})
}
