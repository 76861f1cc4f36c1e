package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, TriggerUserManual, TriggerFromContext(ctx))

	_, ok := GetTrigger(ctx)
	assert.False(t, ok)

	agent := WithAgentTrigger(ctx)
	assert.Equal(t, TriggerAIAgent, TriggerFromContext(agent))

	bogus := WithTrigger(ctx, AuditTrigger("CRON"))
	assert.Equal(t, TriggerUserManual, TriggerFromContext(bogus))
}
