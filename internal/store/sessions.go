package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"concierge/internal/worker"
)

type Session struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveSessionState upserts the serialized conversation state for a
// session. The engine treats the state as a value; this is the only
// place it is at rest.
func (s *Store) SaveSessionState(sessionID, channel string, st worker.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, channel, state)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP`,
		sessionID, channel, string(data))
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

// GetSessionState loads a session's state. Returns (nil, nil) when the
// session is unknown or has no state yet.
func (s *Store) GetSessionState(sessionID string) (*worker.State, error) {
	var raw sql.NullString
	err := s.db.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session state: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}

	var st worker.State
	if err := json.Unmarshal([]byte(raw.String), &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, nil
}

func (s *Store) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, channel, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Channel, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) DeleteSession(sessionID string) error {
	if _, err := s.db.Exec(`DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session turns: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type Turn struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveTurn appends one audit row: the user's prompt or the engine's
// reply. Never read by control logic.
func (s *Store) SaveTurn(t *Turn) error {
	result, err := s.db.Exec(`
		INSERT INTO turns (session_id, sender, content, status)
		VALUES (?, ?, ?, ?)`,
		t.SessionID, t.Sender, t.Content, t.Status)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	t.ID, _ = result.LastInsertId()
	return nil
}

func (s *Store) GetTurns(sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, sender, content, COALESCE(status, ''), created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Sender, &t.Content, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}

	// Chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, rows.Err()
}
