package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ScheduledPrompt is a prompt the scheduler feeds through the engine on
// a schedule, in an isolated session unless one is pinned.
type ScheduledPrompt struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Prompt     string     `json:"prompt"`
	SessionID  string     `json:"session_id,omitempty"`
	Status     string     `json:"status"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func scanPrompt(scanner interface {
	Scan(dest ...any) error
}) (*ScheduledPrompt, error) {
	p := &ScheduledPrompt{}
	var sessionID, lastStatus, lastError *string
	err := scanner.Scan(&p.ID, &p.Name, &p.Schedule, &p.Prompt, &sessionID, &p.Status,
		&p.NextRunAt, &p.LastRunAt, &lastStatus, &lastError, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sessionID != nil {
		p.SessionID = *sessionID
	}
	if lastStatus != nil {
		p.LastStatus = *lastStatus
	}
	if lastError != nil {
		p.LastError = *lastError
	}
	return p, nil
}

func (s *Store) SavePrompt(p *ScheduledPrompt) error {
	_, err := s.db.Exec(`
		INSERT INTO scheduled_prompts (id, name, schedule, prompt, session_id, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			prompt = excluded.prompt,
			session_id = excluded.session_id,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		p.ID, p.Name, p.Schedule, p.Prompt, p.SessionID, p.Status, p.NextRunAt)
	if err != nil {
		return fmt.Errorf("save prompt: %w", err)
	}
	return nil
}

func (s *Store) GetPrompt(id string) (*ScheduledPrompt, error) {
	row := s.db.QueryRow(`
		SELECT id, name, schedule, prompt, session_id, status,
		       next_run_at, last_run_at, last_status, last_error, created_at
		FROM scheduled_prompts WHERE id = ?`, id)
	p, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return p, nil
}

func (s *Store) ListPrompts() ([]ScheduledPrompt, error) {
	rows, err := s.db.Query(`
		SELECT id, name, schedule, prompt, session_id, status,
		       next_run_at, last_run_at, last_status, last_error, created_at
		FROM scheduled_prompts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []ScheduledPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

func (s *Store) GetDuePrompts(now time.Time) ([]ScheduledPrompt, error) {
	rows, err := s.db.Query(`
		SELECT id, name, schedule, prompt, session_id, status,
		       next_run_at, last_run_at, last_status, last_error, created_at
		FROM scheduled_prompts
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("get due prompts: %w", err)
	}
	defer rows.Close()

	var prompts []ScheduledPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

func (s *Store) UpdatePromptRun(id, lastStatus, lastError string, nextRun *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE scheduled_prompts
		SET last_run_at = CURRENT_TIMESTAMP, last_status = ?, last_error = ?, next_run_at = ?
		WHERE id = ?`,
		lastStatus, lastError, nextRun, id)
	if err != nil {
		return fmt.Errorf("update prompt run: %w", err)
	}
	return nil
}

func (s *Store) UpdatePromptStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE scheduled_prompts SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update prompt status: %w", err)
	}
	return nil
}

func (s *Store) DeletePrompt(id string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	return nil
}
