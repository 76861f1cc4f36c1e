package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditModule identifies which domain produced an audit entry.
type AuditModule string

const (
	AuditModuleCrypto  AuditModule = "CRYPTO"
	AuditModuleFinance AuditModule = "FINANCE"
	AuditModuleSystem  AuditModule = "SYSTEM"
)

// IsValid returns true if the module is one of the known modules.
func (m AuditModule) IsValid() bool {
	switch m {
	case AuditModuleCrypto, AuditModuleFinance, AuditModuleSystem:
		return true
	default:
		return false
	}
}

// AuditTrigger distinguishes human-initiated mutations from agent-initiated ones.
type AuditTrigger string

const (
	TriggerUserManual AuditTrigger = "USER_MANUAL"
	TriggerAIAgent    AuditTrigger = "AI_AGENT"
)

// IsValid returns true if the trigger is one of the known trigger sources.
func (t AuditTrigger) IsValid() bool {
	switch t {
	case TriggerUserManual, TriggerAIAgent:
		return true
	default:
		return false
	}
}

// Entity types recorded in audit entries.
const (
	AuditEntityAsset       = "asset"
	AuditEntityTransaction = "transaction"
	AuditEntityCategory    = "category"
	AuditEntitySavings     = "savings"
)

// Audit actions. Actions containing "ADD" are creation events and actions
// containing "ROLLBACK" are not offered as rollback targets by the UI.
const (
	AuditActionAddTransaction    = "ADD_TRANSACTION"
	AuditActionUpdateTransaction = "UPDATE_TRANSACTION"
	AuditActionDeleteTransaction = "DELETE_TRANSACTION"
	AuditActionUnlinkCategory    = "UNLINK_CATEGORY"

	AuditActionAddCategory    = "ADD_CATEGORY"
	AuditActionUpdateCategory = "UPDATE_CATEGORY"
	AuditActionDeleteCategory = "DELETE_CATEGORY"

	AuditActionAddSavings     = "ADD_SAVINGS"
	AuditActionUpdateSavings  = "UPDATE_SAVINGS"
	AuditActionDepositSavings = "DEPOSIT_SAVINGS"
	AuditActionDeleteSavings  = "DELETE_SAVINGS"

	AuditActionAddAsset       = "ADD_ASSET"
	AuditActionBuyMore        = "BUY_MORE"
	AuditActionSellCrypto     = "SELL_CRYPTO"
	AuditActionUpdateQuantity = "UPDATE_QUANTITY"
	AuditActionRemoveAsset    = "REMOVE_ASSET"

	AuditActionRollback       = "ROLLBACK"
	AuditActionRollbackDelete = "ROLLBACK_DELETE"
)

// IsCreationAction reports whether an action describes the creation of a row.
func IsCreationAction(action string) bool {
	return strings.Contains(action, "ADD")
}

// IsRollbackAction reports whether an action was itself produced by a rollback.
func IsRollbackAction(action string) bool {
	return strings.Contains(action, "ROLLBACK")
}

// Snapshot is a partial capture of a row: only the fields the mutating call
// site chose to record. Rollback applies it as a field-level patch.
type Snapshot map[string]any

// Clone returns a shallow copy of the snapshot. A nil snapshot stays nil.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// AuditLogInput is what a mutating code path hands to the recorder.
// ID and CreatedAt are assigned by the recorder.
type AuditLogInput struct {
	Module      AuditModule
	Action      string
	EntityType  string
	EntityID    *uuid.UUID
	OldData     Snapshot
	NewData     Snapshot
	TriggeredBy AuditTrigger
	Description *string
}

// AuditLogEntry is one immutable row of the audit_logs table.
type AuditLogEntry struct {
	ID          uuid.UUID    `json:"id"`
	Module      AuditModule  `json:"module"`
	Action      string       `json:"action"`
	EntityType  string       `json:"entity_type"`
	EntityID    *uuid.UUID   `json:"entity_id,omitempty"`
	OldData     Snapshot     `json:"old_data"`
	NewData     Snapshot     `json:"new_data"`
	TriggeredBy AuditTrigger `json:"triggered_by"`
	Description *string      `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CanRollback mirrors the history feed rule: an entry is offered for rollback
// when it has a before-state or describes a creation, and is not itself a rollback.
func (e *AuditLogEntry) CanRollback() bool {
	if IsRollbackAction(e.Action) {
		return false
	}
	return e.OldData != nil || IsCreationAction(e.Action)
}

// AuditLogFilter selects a page of the audit history.
type AuditLogFilter struct {
	Module *AuditModule
	Limit  int
	Offset int
}

// DefaultAuditPageSize is used when a filter does not specify a limit.
const DefaultAuditPageSize = 50

// StringPtr is a small helper for optional descriptions.
func StringPtr(s string) *string {
	return &s
}
