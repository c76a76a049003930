package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"concierge/internal/natsbus"
	"concierge/internal/schedule"
	"concierge/internal/session"
	"concierge/internal/store"
	"concierge/internal/worker"
)

type Config struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Scheduler polls for due scheduled prompts and runs each through the
// engine. Prompts without a pinned session run in a fresh, isolated
// session per execution.
type Scheduler struct {
	db           *store.Store
	sessions     *session.Manager
	events       *natsbus.Client
	pollInterval time.Duration
}

func New(db *store.Store, sessions *session.Manager, cfg Config) *Scheduler {
	return &Scheduler{
		db:           db,
		sessions:     sessions,
		pollInterval: cfg.PollInterval,
	}
}

func (s *Scheduler) SetEvents(c *natsbus.Client) {
	s.events = c
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	prompts, err := s.db.GetDuePrompts(time.Now())
	if err != nil {
		slog.Error("failed to get due prompts", "error", err)
		return
	}

	for _, p := range prompts {
		s.execute(ctx, p)
	}
}

func (s *Scheduler) execute(ctx context.Context, p store.ScheduledPrompt) {
	slog.Info("executing scheduled prompt", "id", p.ID, "name", p.Name)

	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("prompt:%s:%d", p.ID, time.Now().Unix())
	}

	env, err := s.sessions.Turn(ctx, sessionID, "scheduler", p.Prompt)

	var lastStatus, lastError string
	switch {
	case err != nil:
		lastStatus = "error"
		lastError = err.Error()
		slog.Error("scheduled prompt failed", "id", p.ID, "error", err)
	case env.Outcome == worker.OutcomeError:
		lastStatus = "error"
		lastError = env.Speech
	default:
		lastStatus = "success"
	}

	nextRun := schedule.NextRun(p.Schedule)

	if err := s.db.UpdatePromptRun(p.ID, lastStatus, lastError, nextRun); err != nil {
		slog.Error("failed to update prompt run", "id", p.ID, "error", err)
	}

	s.publishExecutedEvent(p, lastStatus)

	// One-off prompts with no future run are done.
	if nextRun == nil {
		slog.Info("no next run, marking prompt completed", "id", p.ID, "name", p.Name)
		if err := s.db.UpdatePromptStatus(p.ID, "completed"); err != nil {
			slog.Error("failed to complete prompt", "id", p.ID, "error", err)
		}
	}
}

func (s *Scheduler) publishExecutedEvent(p store.ScheduledPrompt, status string) {
	if s.events == nil {
		return
	}

	_ = s.events.PublishEvent(natsbus.Event{
		Type: "prompt_executed",
		Data: map[string]any{
			"id":     p.ID,
			"name":   p.Name,
			"status": status,
		},
	})
}
