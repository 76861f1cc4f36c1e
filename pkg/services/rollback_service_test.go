package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

type rollbackFixture struct {
	t     *testing.T
	repo  *mockAuditRepository
	store *mockCollectionStore
	svc   RollbackService
}

func newRollbackFixture(t *testing.T, cfg RollbackConfig) *rollbackFixture {
	repo := &mockAuditRepository{}
	store := newMockCollectionStore()
	audit := NewAuditService(repo, zap.NewNop())
	return &rollbackFixture{
		t:     t,
		repo:  repo,
		store: store,
		svc:   NewRollbackService(audit, store, database.NoTx{}, cfg, zap.NewNop()),
	}
}

// seed writes an audit entry straight into the repository.
func (f *rollbackFixture) seed(module models.AuditModule, action, entityType string, entityID *uuid.UUID, oldData, newData models.Snapshot) *models.AuditLogEntry {
	f.t.Helper()
	entry := &models.AuditLogEntry{
		Module:      module,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		OldData:     oldData,
		NewData:     newData,
		TriggeredBy: models.TriggerAIAgent,
	}
	require.NoError(f.t, f.repo.Create(context.Background(), entry))
	return entry
}

func TestRollback_CreationRoundTrip(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})
	ctx := context.Background()

	txID := uuid.New()
	created := models.Snapshot{"amount": 50.0, "type": "expense", "date": "2024-03-01", "category_id": nil, "note": nil}
	f.store.put(models.CollectionTransactions, txID, created.Clone())
	entry := f.seed(models.AuditModuleFinance, models.AuditActionAddTransaction, models.AuditEntityTransaction, &txID, nil, created)

	result := f.svc.Rollback(ctx, entry.ID)
	require.True(t, result.Success, result.Message)

	assert.Nil(t, f.store.get(models.CollectionTransactions, txID))

	trailing := f.repo.last()
	require.NotEqual(t, entry.ID, trailing.ID)
	assert.Equal(t, models.AuditActionRollbackDelete, trailing.Action)
	assert.Equal(t, entry.NewData, trailing.OldData)
	assert.Nil(t, trailing.NewData)
	assert.Equal(t, models.TriggerUserManual, trailing.TriggeredBy)
	assert.Equal(t, &txID, trailing.EntityID)
	assert.Equal(t, models.AuditEntityTransaction, trailing.EntityType)
}

func TestRollback_UpdateRoundTrip(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})
	ctx := context.Background()

	assetID := uuid.New()
	f.store.put(models.CollectionAssets, assetID, models.Snapshot{"symbol": "BTC", "quantity": 2.0, "buy_price": 15.0})
	entry := f.seed(models.AuditModuleCrypto, models.AuditActionBuyMore, models.AuditEntityAsset, &assetID,
		models.Snapshot{"quantity": 1.0, "buy_price": 10.0},
		models.Snapshot{"quantity": 2.0, "buy_price": 15.0})

	result := f.svc.Rollback(ctx, entry.ID)
	require.True(t, result.Success, result.Message)

	row := f.store.get(models.CollectionAssets, assetID)
	assert.Equal(t, 1.0, row["quantity"])
	assert.Equal(t, 10.0, row["buy_price"])
	assert.Equal(t, "BTC", row["symbol"], "fields outside the snapshot are left untouched")

	trailing := f.repo.last()
	assert.Equal(t, models.AuditActionRollback, trailing.Action)
	assert.Equal(t, entry.NewData, trailing.OldData)
	assert.Equal(t, entry.OldData, trailing.NewData)
	assert.Equal(t, models.TriggerUserManual, trailing.TriggeredBy)
}

func TestRollback_PartialSnapshotLeavesOtherFields(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	txID := uuid.New()
	f.store.put(models.CollectionTransactions, txID, models.Snapshot{"amount": 80.0, "note": "edited", "type": "expense"})
	// The update changed amount and note, but only amount was captured.
	entry := f.seed(models.AuditModuleFinance, models.AuditActionUpdateTransaction, models.AuditEntityTransaction, &txID,
		models.Snapshot{"amount": 50.0},
		models.Snapshot{"amount": 80.0})

	result := f.svc.Rollback(context.Background(), entry.ID)
	require.True(t, result.Success, result.Message)

	row := f.store.get(models.CollectionTransactions, txID)
	assert.Equal(t, 50.0, row["amount"])
	assert.Equal(t, "edited", row["note"])
}

func TestRollback_CreationTwice(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})
	ctx := context.Background()

	vaultID := uuid.New()
	f.store.put(models.CollectionSavings, vaultID, models.Snapshot{"name": "Trip", "target_amount": 100.0})
	entry := f.seed(models.AuditModuleFinance, models.AuditActionAddSavings, models.AuditEntitySavings, &vaultID,
		nil, models.Snapshot{"name": "Trip", "target_amount": 100.0})

	first := f.svc.Rollback(ctx, entry.ID)
	require.True(t, first.Success, first.Message)
	entriesAfterFirst := len(f.repo.entries)

	second := f.svc.Rollback(ctx, entry.ID)
	assert.False(t, second.Success)
	assert.Equal(t, MsgTargetNotFound, second.Message)
	assert.Len(t, f.repo.entries, entriesAfterFirst, "failed rollback writes no trailing entry")
}

func TestRollback_UpdateTwice(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})
	ctx := context.Background()

	catID := uuid.New()
	f.store.put(models.CollectionCategories, catID, models.Snapshot{"name": "Groceries", "type": "expense"})
	entry := f.seed(models.AuditModuleFinance, models.AuditActionUpdateCategory, models.AuditEntityCategory, &catID,
		models.Snapshot{"name": "Food"},
		models.Snapshot{"name": "Groceries"})

	require.True(t, f.svc.Rollback(ctx, entry.ID).Success)
	require.True(t, f.svc.Rollback(ctx, entry.ID).Success)

	assert.Equal(t, "Food", f.store.get(models.CollectionCategories, catID)["name"])
	require.Len(t, f.repo.entries, 3)
	assert.Equal(t, models.AuditActionRollback, f.repo.entries[1].Action)
	assert.Equal(t, models.AuditActionRollback, f.repo.entries[2].Action)
}

func TestRollback_MissingDataRejected(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	txID := uuid.New()
	f.store.put(models.CollectionTransactions, txID, models.Snapshot{"amount": 5.0})
	entry := f.seed(models.AuditModuleFinance, models.AuditActionDeleteTransaction, models.AuditEntityTransaction, &txID, nil, nil)

	result := f.svc.Rollback(context.Background(), entry.ID)
	assert.False(t, result.Success)
	assert.Equal(t, MsgNoPriorData, result.Message)
	assert.Empty(t, f.store.calls)
	assert.Len(t, f.repo.entries, 1)
}

func TestRollback_CreationWithoutEntityID(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	entry := f.seed(models.AuditModuleFinance, models.AuditActionAddTransaction, models.AuditEntityTransaction, nil,
		nil, models.Snapshot{"amount": 5.0})

	result := f.svc.Rollback(context.Background(), entry.ID)
	assert.False(t, result.Success)
	assert.Equal(t, MsgNoPriorData, result.Message)
	assert.Empty(t, f.store.calls)
}

func TestRollback_MissingEntityID(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	entry := f.seed(models.AuditModuleFinance, models.AuditActionUpdateSavings, models.AuditEntitySavings, nil,
		models.Snapshot{"current_amount": 10.0}, models.Snapshot{"current_amount": 20.0})

	result := f.svc.Rollback(context.Background(), entry.ID)
	assert.False(t, result.Success)
	assert.Equal(t, MsgMissingEntityID, result.Message)
	assert.Empty(t, f.store.calls)
}

func TestRollback_EntryNotFound(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	result := f.svc.Rollback(context.Background(), uuid.New())
	assert.False(t, result.Success)
	assert.Equal(t, MsgAuditEntryNotFound, result.Message)
	assert.Empty(t, f.store.calls)
	assert.Empty(t, f.repo.entries)
}

func TestRollback_Routing(t *testing.T) {
	tests := []struct {
		name       string
		module     models.AuditModule
		entityType string
		want       models.Collection
	}{
		{"crypto asset", models.AuditModuleCrypto, models.AuditEntityAsset, models.CollectionAssets},
		{"finance transaction", models.AuditModuleFinance, models.AuditEntityTransaction, models.CollectionTransactions},
		{"finance category", models.AuditModuleFinance, models.AuditEntityCategory, models.CollectionCategories},
		{"finance savings", models.AuditModuleFinance, models.AuditEntitySavings, models.CollectionSavings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRollbackFixture(t, RollbackConfig{})
			id := uuid.New()
			f.store.put(tt.want, id, models.Snapshot{})
			entry := f.seed(tt.module, "ADD_SOMETHING", tt.entityType, &id, nil, models.Snapshot{})

			result := f.svc.Rollback(context.Background(), entry.ID)
			require.True(t, result.Success, result.Message)

			require.Len(t, f.store.calls, 1)
			assert.Equal(t, storeCall{op: "delete", coll: tt.want, id: id}, f.store.calls[0])
		})
	}
}

func TestRouteCollection(t *testing.T) {
	tests := []struct {
		module     models.AuditModule
		entityType string
		want       models.Collection
	}{
		{models.AuditModuleCrypto, models.AuditEntityAsset, models.CollectionAssets},
		{models.AuditModuleCrypto, models.AuditEntityTransaction, models.CollectionAssets},
		{models.AuditModuleCrypto, "anything", models.CollectionAssets},
		{models.AuditModuleFinance, models.AuditEntityTransaction, models.CollectionTransactions},
		{models.AuditModuleFinance, models.AuditEntityCategory, models.CollectionCategories},
		{models.AuditModuleFinance, models.AuditEntitySavings, models.CollectionSavings},
		{models.AuditModuleFinance, "unknown", models.CollectionSavings},
		{models.AuditModuleSystem, models.AuditEntityTransaction, models.CollectionTransactions},
		{models.AuditModuleSystem, models.AuditEntityCategory, models.CollectionCategories},
		{models.AuditModuleSystem, "", models.CollectionSavings},
	}

	for _, tt := range tests {
		t.Run(string(tt.module)+"/"+tt.entityType, func(t *testing.T) {
			assert.Equal(t, tt.want, RouteCollection(tt.module, tt.entityType))
		})
	}
}

func TestRollback_StorageErrorWritesNoEntry(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	txID := uuid.New()
	entry := f.seed(models.AuditModuleFinance, models.AuditActionUpdateTransaction, models.AuditEntityTransaction, &txID,
		models.Snapshot{"amount": 1.0}, models.Snapshot{"amount": 2.0})
	f.store.err = errStorage

	result := f.svc.Rollback(context.Background(), entry.ID)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "connection reset by peer")
	assert.Len(t, f.repo.entries, 1)
}

func TestRollback_UnknownSnapshotFieldFails(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	txID := uuid.New()
	f.store.put(models.CollectionTransactions, txID, models.Snapshot{"amount": 2.0})
	entry := f.seed(models.AuditModuleFinance, models.AuditActionUpdateTransaction, models.AuditEntityTransaction, &txID,
		models.Snapshot{"amount": 1.0, "category": "Food"}, models.Snapshot{"amount": 2.0})

	result := f.svc.Rollback(context.Background(), entry.ID)
	assert.False(t, result.Success)
	assert.Equal(t, 2.0, f.store.get(models.CollectionTransactions, txID)["amount"])
	assert.Len(t, f.repo.entries, 1)
}

func TestRollback_UpdateTargetMissing(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	vaultID := uuid.New()
	entry := f.seed(models.AuditModuleFinance, models.AuditActionDepositSavings, models.AuditEntitySavings, &vaultID,
		models.Snapshot{"current_amount": 10.0}, models.Snapshot{"current_amount": 20.0})

	result := f.svc.Rollback(context.Background(), entry.ID)
	assert.False(t, result.Success)
	assert.Equal(t, MsgTargetNotFound, result.Message)
	assert.Len(t, f.repo.entries, 1)
}

func TestRollback_DeletionReinsertsRow(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})
	ctx := context.Background()

	txID := uuid.New()
	snapshot := models.Snapshot{"amount": 42.0, "type": "income", "date": "2024-02-01", "category_id": nil, "note": "salary"}
	entry := f.seed(models.AuditModuleFinance, models.AuditActionDeleteTransaction, models.AuditEntityTransaction, &txID, snapshot, nil)

	result := f.svc.Rollback(ctx, entry.ID)
	require.True(t, result.Success, result.Message)

	assert.Equal(t, snapshot, f.store.get(models.CollectionTransactions, txID))
	assert.Equal(t, []storeCall{
		{op: "patch", coll: models.CollectionTransactions, id: txID},
		{op: "insert", coll: models.CollectionTransactions, id: txID},
	}, f.store.mutations())

	trailing := f.repo.last()
	assert.Equal(t, models.AuditActionRollback, trailing.Action)
	assert.Nil(t, trailing.OldData)
	assert.Equal(t, snapshot, trailing.NewData)
}

func TestRollback_RestoredDeletionCannotBeUndone(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})
	ctx := context.Background()

	vaultID := uuid.New()
	snapshot := models.Snapshot{"name": "Trip", "target_amount": 500.0, "current_amount": 120.0, "is_completed": false}
	deleted := f.seed(models.AuditModuleFinance, models.AuditActionDeleteSavings, models.AuditEntitySavings, &vaultID, snapshot, nil)

	require.True(t, f.svc.Rollback(ctx, deleted.ID).Success)
	restore := f.repo.last()
	require.Equal(t, models.AuditActionRollback, restore.Action)
	require.Nil(t, restore.OldData)

	before := len(f.repo.entries)
	result := f.svc.Rollback(ctx, restore.ID)
	assert.False(t, result.Success)
	assert.Equal(t, MsgNoPriorData, result.Message)
	assert.Equal(t, snapshot, f.store.get(models.CollectionSavings, vaultID))
	assert.Len(t, f.repo.entries, before)
}

func TestRollback_OfRollbackIsPermitted(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})
	ctx := context.Background()

	assetID := uuid.New()
	f.store.put(models.CollectionAssets, assetID, models.Snapshot{"symbol": "ETH", "quantity": 3.0})
	original := f.seed(models.AuditModuleCrypto, models.AuditActionSellCrypto, models.AuditEntityAsset, &assetID,
		models.Snapshot{"quantity": 5.0}, models.Snapshot{"quantity": 3.0})

	require.True(t, f.svc.Rollback(ctx, original.ID).Success)
	assert.Equal(t, 5.0, f.store.get(models.CollectionAssets, assetID)["quantity"])

	rollbackEntry := f.repo.last()
	require.Equal(t, models.AuditActionRollback, rollbackEntry.Action)
	assert.False(t, rollbackEntry.CanRollback(), "history feed hides rollback entries")

	// Called directly, the engine still reverses the rollback.
	result := f.svc.Rollback(ctx, rollbackEntry.ID)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, 3.0, f.store.get(models.CollectionAssets, assetID)["quantity"])
	assert.Equal(t, models.AuditActionRollback, f.repo.last().Action)
}

func TestRollback_OfRollbackDeleteRestoresCreatedRow(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})
	ctx := context.Background()

	catID := uuid.New()
	row := models.Snapshot{"name": "Food", "type": "expense", "icon": "circle", "color": "#6366f1"}
	f.store.put(models.CollectionCategories, catID, row.Clone())
	created := f.seed(models.AuditModuleFinance, models.AuditActionAddCategory, models.AuditEntityCategory, &catID, nil, row)

	require.True(t, f.svc.Rollback(ctx, created.ID).Success)
	undo := f.repo.last()
	require.Equal(t, models.AuditActionRollbackDelete, undo.Action)

	result := f.svc.Rollback(ctx, undo.ID)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, row, f.store.get(models.CollectionCategories, catID))
}

func TestRollback_RequireUnchanged(t *testing.T) {
	t.Run("applies when row still matches", func(t *testing.T) {
		f := newRollbackFixture(t, RollbackConfig{RequireUnchanged: true})

		vaultID := uuid.New()
		f.store.put(models.CollectionSavings, vaultID, models.Snapshot{"current_amount": 150.0})
		entry := f.seed(models.AuditModuleFinance, models.AuditActionDepositSavings, models.AuditEntitySavings, &vaultID,
			models.Snapshot{"current_amount": 100.0}, models.Snapshot{"current_amount": 150.0})

		result := f.svc.Rollback(context.Background(), entry.ID)
		require.True(t, result.Success, result.Message)
		assert.Equal(t, 100.0, f.store.get(models.CollectionSavings, vaultID)["current_amount"])
	})

	t.Run("conflicts when row changed", func(t *testing.T) {
		f := newRollbackFixture(t, RollbackConfig{RequireUnchanged: true})

		vaultID := uuid.New()
		f.store.put(models.CollectionSavings, vaultID, models.Snapshot{"current_amount": 175.0})
		entry := f.seed(models.AuditModuleFinance, models.AuditActionDepositSavings, models.AuditEntitySavings, &vaultID,
			models.Snapshot{"current_amount": 100.0}, models.Snapshot{"current_amount": 150.0})

		result := f.svc.Rollback(context.Background(), entry.ID)
		assert.False(t, result.Success)
		assert.Equal(t, MsgRowChanged, result.Message)
		assert.Equal(t, 175.0, f.store.get(models.CollectionSavings, vaultID)["current_amount"])
		assert.Len(t, f.repo.entries, 1)
	})

	t.Run("missing row is not a conflict", func(t *testing.T) {
		f := newRollbackFixture(t, RollbackConfig{RequireUnchanged: true})

		vaultID := uuid.New()
		entry := f.seed(models.AuditModuleFinance, models.AuditActionDepositSavings, models.AuditEntitySavings, &vaultID,
			models.Snapshot{"current_amount": 100.0}, models.Snapshot{"current_amount": 150.0})

		result := f.svc.Rollback(context.Background(), entry.ID)
		assert.False(t, result.Success)
		assert.Equal(t, MsgTargetNotFound, result.Message)
	})

	t.Run("second update rollback conflicts", func(t *testing.T) {
		f := newRollbackFixture(t, RollbackConfig{RequireUnchanged: true})

		vaultID := uuid.New()
		f.store.put(models.CollectionSavings, vaultID, models.Snapshot{"current_amount": 150.0})
		entry := f.seed(models.AuditModuleFinance, models.AuditActionDepositSavings, models.AuditEntitySavings, &vaultID,
			models.Snapshot{"current_amount": 100.0}, models.Snapshot{"current_amount": 150.0})

		require.True(t, f.svc.Rollback(context.Background(), entry.ID).Success)
		result := f.svc.Rollback(context.Background(), entry.ID)
		assert.False(t, result.Success)
		assert.Equal(t, MsgRowChanged, result.Message)
	})
}

func TestRollback_TrailingAuditFailureStillSucceedsWithoutTx(t *testing.T) {
	f := newRollbackFixture(t, RollbackConfig{})

	txID := uuid.New()
	f.store.put(models.CollectionTransactions, txID, models.Snapshot{"amount": 2.0})
	entry := f.seed(models.AuditModuleFinance, models.AuditActionUpdateTransaction, models.AuditEntityTransaction, &txID,
		models.Snapshot{"amount": 1.0}, models.Snapshot{"amount": 2.0})
	f.repo.createErr = errStorage

	result := f.svc.Rollback(context.Background(), entry.ID)
	assert.True(t, result.Success)
	assert.Equal(t, 1.0, f.store.get(models.CollectionTransactions, txID)["amount"])
}
