package natsbus

import "fmt"

// Topic patterns for pub/sub and request/reply traffic.

func TopicSessionEvents(sessionID string) string {
	return fmt.Sprintf("events.session.%s", sessionID)
}

// TopicTurn is the request/reply subject for running one engine turn
// from the ctask CLI or other bus-side callers.
const TopicTurn = "engine.turn"

// Scheduled-prompt management over request/reply.
const (
	TopicPromptCreate = "engine.prompts.create"
	TopicPromptList   = "engine.prompts.list"
	TopicPromptDelete = "engine.prompts.delete"
)

const (
	TopicEventsAll      = "events.>"
	TopicEventsSessions = "events.session.*"
	TopicEventsPrompt   = "events.prompt.executed"
)
