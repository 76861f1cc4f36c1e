package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditLogEntry_CanRollback(t *testing.T) {
	tests := []struct {
		name  string
		entry AuditLogEntry
		want  bool
	}{
		{"creation without before-state", AuditLogEntry{Action: AuditActionAddAsset}, true},
		{"update with before-state", AuditLogEntry{Action: AuditActionUpdateTransaction, OldData: Snapshot{"amount": 1.0}}, true},
		{"update without before-state", AuditLogEntry{Action: AuditActionUpdateTransaction}, false},
		{"rollback entry", AuditLogEntry{Action: AuditActionRollback, OldData: Snapshot{"amount": 1.0}}, false},
		{"rollback of a deletion", AuditLogEntry{Action: AuditActionRollbackDelete}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.CanRollback())
		})
	}
}

func TestSnapshot_Clone(t *testing.T) {
	var empty Snapshot
	assert.Nil(t, empty.Clone())

	orig := Snapshot{"quantity": 2.0}
	clone := orig.Clone()
	clone["quantity"] = 3.0
	assert.Equal(t, 2.0, orig["quantity"])
}

func TestAuditModule_IsValid(t *testing.T) {
	assert.True(t, AuditModuleCrypto.IsValid())
	assert.True(t, AuditModuleSystem.IsValid())
	assert.False(t, AuditModule("crypto").IsValid())
}
