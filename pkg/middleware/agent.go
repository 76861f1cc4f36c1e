package middleware

import (
	"net/http"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// AgentTrigger marks every request through it as agent-initiated, so audit
// entries written while serving it carry the AI_AGENT trigger.
func AgentTrigger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(models.WithAgentTrigger(r.Context())))
	})
}
