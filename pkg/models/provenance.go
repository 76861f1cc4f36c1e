// Package models contains domain types for hodlisma-engine.
package models

import "context"

// triggerKey is the context key for storing the trigger source.
type triggerKey struct{}

// WithTrigger returns a new context carrying the trigger source for audit entries.
func WithTrigger(ctx context.Context, t AuditTrigger) context.Context {
	return context.WithValue(ctx, triggerKey{}, t)
}

// WithAgentTrigger marks operations as initiated by the chat agent.
// Use this for LLM tool execution and MCP tool handlers.
func WithAgentTrigger(ctx context.Context) context.Context {
	return WithTrigger(ctx, TriggerAIAgent)
}

// GetTrigger retrieves the trigger source from the context.
// Returns false if none was set.
func GetTrigger(ctx context.Context) (AuditTrigger, bool) {
	t, ok := ctx.Value(triggerKey{}).(AuditTrigger)
	return t, ok
}

// TriggerFromContext returns the trigger source in ctx, defaulting to
// USER_MANUAL for requests that come straight from the UI or CLI.
func TriggerFromContext(ctx context.Context) AuditTrigger {
	if t, ok := GetTrigger(ctx); ok && t.IsValid() {
		return t
	}
	return TriggerUserManual
}
