// Package schedule normalizes the three schedule kinds scheduled
// prompts accept: cron expressions, fixed intervals, and one-shots.
package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

type Schedule struct {
	Kind       string `json:"kind"`        // "cron", "interval", "once"
	CronExpr   string `json:"cron_expr,omitempty"`
	IntervalMs int64  `json:"interval_ms,omitempty"`
	AtMs       int64  `json:"at_ms,omitempty"`
}

// Normalize validates a schedule JSON string and returns its canonical
// encoding.
func Normalize(raw string) (string, error) {
	s, err := Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse schedule: %w", err)
	}

	switch s.Kind {
	case "cron":
		if !gronx.New().IsValid(s.CronExpr) {
			return "", fmt.Errorf("invalid cron expression: %s", s.CronExpr)
		}
	case "interval":
		if s.IntervalMs <= 0 {
			return "", fmt.Errorf("interval must be positive")
		}
	case "once":
		if s.AtMs <= 0 {
			return "", fmt.Errorf("one-shot timestamp required")
		}
	default:
		return "", fmt.Errorf("unknown schedule kind: %s", s.Kind)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode schedule: %w", err)
	}
	return string(data), nil
}

func Parse(raw string) (*Schedule, error) {
	var s Schedule
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// NextRun computes the next execution time, or nil when the schedule
// has no future run (bad schedule or an elapsed one-shot).
func NextRun(scheduleJSON string) *time.Time {
	s, err := Parse(scheduleJSON)
	if err != nil {
		return nil
	}

	now := time.Now()
	var next time.Time

	switch s.Kind {
	case "cron":
		tick, err := gronx.NextTick(s.CronExpr, false)
		if err != nil {
			return nil
		}
		next = tick
	case "interval":
		next = now.Add(time.Duration(s.IntervalMs) * time.Millisecond)
	case "once":
		t := time.UnixMilli(s.AtMs)
		if !t.After(now) {
			return nil
		}
		next = t
	default:
		return nil
	}

	return &next
}

// Describe returns a human-readable rendering for listings.
func Describe(scheduleJSON string) string {
	s, err := Parse(scheduleJSON)
	if err != nil {
		return scheduleJSON
	}

	switch s.Kind {
	case "cron":
		if strings.HasPrefix(s.CronExpr, "@") {
			return s.CronExpr
		}
		return "cron: " + s.CronExpr
	case "interval":
		return "every " + (time.Duration(s.IntervalMs) * time.Millisecond).String()
	case "once":
		return "once at " + time.UnixMilli(s.AtMs).Format(time.RFC3339)
	default:
		return scheduleJSON
	}
}
