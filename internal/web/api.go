package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"concierge/internal/schedule"
	"concierge/internal/store"
	"concierge/internal/worker"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Stateless routing (caller holds the conversation state)
	mux.HandleFunc("POST /api/route", s.routeTurn)

	// Sessions (server-held conversation state)
	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("GET /api/sessions/{id}/turns", s.getSessionTurns)
	mux.HandleFunc("POST /api/sessions/{id}/turns", s.createSessionTurn)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)

	// Workers
	mux.HandleFunc("GET /api/workers", s.listWorkers)

	// Scheduled prompts
	mux.HandleFunc("GET /api/prompts", s.listPrompts)
	mux.HandleFunc("POST /api/prompts", s.createPrompt)
	mux.HandleFunc("PUT /api/prompts/{id}", s.updatePrompt)
	mux.HandleFunc("DELETE /api/prompts/{id}", s.deletePrompt)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

// routeTurn runs a single turn without touching the session store. The
// caller carries the conversation state between requests.
func (s *Server) routeTurn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string        `json:"prompt"`
		State  *worker.State `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Prompt == "" {
		jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	env := s.router.Route(r.Context(), body.Prompt, body.State)
	jsonResponse(w, env)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		entry := map[string]any{
			"id":         sess.ID,
			"channel":    sess.Channel,
			"updated_at": formatMessageTime(sess.UpdatedAt),
		}
		if st, err := s.store.GetSessionState(sess.ID); err == nil && st != nil {
			entry["status"] = st.Status
			entry["goal"] = st.Goal
		}
		out = append(out, entry)
	}
	jsonResponse(w, out)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.store.GetSessionState(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if st == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, st)
}

func (s *Server) getSessionTurns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	turns, err := s.store.GetTurns(id, limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, map[string]string{
			"id":     fmt.Sprintf("%d", t.ID),
			"role":   mapSenderToRole(t.Sender),
			"text":   t.Content,
			"status": t.Status,
			"time":   formatMessageTime(t.CreatedAt),
		})
	}
	jsonResponse(w, out)
}

func (s *Server) createSessionTurn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Prompt == "" {
		jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	env, err := s.sessions.Turn(r.Context(), id, "web", body.Prompt)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, env)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteSession(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listWorkers(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.List()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"name":        e.Name,
			"description": e.Description,
			"hidden":      e.Hidden,
		})
	}
	jsonResponse(w, out)
}

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.store.ListPrompts()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, promptToAPI(p))
	}
	jsonResponse(w, out)
}

func (s *Server) createPrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		Schedule  string `json:"schedule"`
		Prompt    string `json:"prompt"`
		SessionID string `json:"session_id"`
		Enabled   *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Schedule == "" || body.Prompt == "" {
		jsonError(w, "name, schedule, and prompt are required", http.StatusBadRequest)
		return
	}

	normalized, err := schedule.Normalize(body.Schedule)
	if err != nil {
		jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
		return
	}

	status := "active"
	if body.Enabled != nil && !*body.Enabled {
		status = "paused"
	}

	p := store.ScheduledPrompt{
		ID:        uuid.New().String(),
		Name:      body.Name,
		Schedule:  normalized,
		Prompt:    body.Prompt,
		SessionID: body.SessionID,
		Status:    status,
	}

	// Calculate initial next_run_at
	if status == "active" {
		p.NextRunAt = schedule.NextRun(normalized)
	}

	if err := s.store.SavePrompt(&p); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, promptToAPI(p))
}

func (s *Server) updatePrompt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := s.store.GetPrompt(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		jsonError(w, "prompt not found", http.StatusNotFound)
		return
	}

	var body struct {
		Name      *string `json:"name"`
		Schedule  *string `json:"schedule"`
		Prompt    *string `json:"prompt"`
		SessionID *string `json:"session_id"`
		Enabled   *bool   `json:"enabled"`
		Status    *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Apply updates
	if body.Name != nil {
		existing.Name = *body.Name
	}
	if body.Prompt != nil {
		existing.Prompt = *body.Prompt
	}
	if body.SessionID != nil {
		existing.SessionID = *body.SessionID
	}

	// Handle enabled bool → status mapping
	if body.Enabled != nil {
		if *body.Enabled {
			existing.Status = "active"
		} else if existing.Status != "completed" {
			existing.Status = "paused"
		}
	} else if body.Status != nil {
		existing.Status = *body.Status
	}

	// Handle schedule change
	if body.Schedule != nil {
		normalized, err := schedule.Normalize(*body.Schedule)
		if err != nil {
			jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
			return
		}
		existing.Schedule = normalized
	}

	// Recalculate next_run_at
	if existing.Status == "active" {
		existing.NextRunAt = schedule.NextRun(existing.Schedule)
	} else {
		existing.NextRunAt = nil
	}

	if err := s.store.SavePrompt(existing); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, promptToAPI(*existing))
}

func (s *Server) deletePrompt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePrompt(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	sessions, _ := s.store.ListSessions()
	prompts, _ := s.store.ListPrompts()

	activePrompts := 0
	for _, p := range prompts {
		if p.Status == "active" {
			activePrompts++
		}
	}

	awaiting := 0
	for _, sess := range sessions {
		if st, err := s.store.GetSessionState(sess.ID); err == nil && st != nil {
			if st.Status == worker.StatusAwaitingInput {
				awaiting++
			}
		}
	}

	status := map[string]any{
		"status":         "ok",
		"sessions_count": len(sessions),
		"awaiting_input": awaiting,
		"workers_count":  len(s.registry.List()),
		"active_prompts": activePrompts,
		"uptime":         formatUptime(time.Since(s.startedAt)),
		"nats":           "ok",
		"timestamp":      time.Now().UTC(),
		"version":        s.version,
	}

	jsonResponse(w, status)
}

func promptToAPI(p store.ScheduledPrompt) map[string]any {
	m := map[string]any{
		"id":               p.ID,
		"name":             p.Name,
		"schedule":         p.Schedule,
		"schedule_display": schedule.Describe(p.Schedule),
		"prompt":           p.Prompt,
		"session_id":       p.SessionID,
		"enabled":          p.Status == "active",
		"status":           p.Status,
	}
	if p.LastRunAt != nil {
		m["last_run"] = formatMessageTime(*p.LastRunAt)
	}
	if p.NextRunAt != nil {
		m["next_run"] = formatMessageTime(*p.NextRunAt)
	}
	if p.LastError != "" {
		m["last_error"] = p.LastError
	}
	return m
}

func mapSenderToRole(sender string) string {
	if sender == "user" {
		return "user"
	}
	return "assistant"
}

func formatMessageTime(t time.Time) string {
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("Jan 2 15:04")
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
