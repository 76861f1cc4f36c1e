package handlers

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

func TestAuditHandler_List(t *testing.T) {
	entityID := uuid.New()
	var gotFilter models.AuditLogFilter
	audit := &mockAuditService{
		listFn: func(_ context.Context, filter models.AuditLogFilter) ([]*models.AuditLogEntry, error) {
			gotFilter = filter
			return []*models.AuditLogEntry{
				{ID: uuid.New(), Module: models.AuditModuleCrypto, Action: models.AuditActionAddAsset, EntityID: &entityID},
				{ID: uuid.New(), Module: models.AuditModuleCrypto, Action: "ROLLBACK_UPDATE_QUANTITY", OldData: models.Snapshot{"quantity": 1.0}},
			}, nil
		},
	}
	h := NewAuditHandler(audit, &mockRollbackService{}, nil, zap.NewNop())

	rec := serve(t, h, http.MethodGet, "/api/audit?module=crypto&limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Entries []struct {
			Action      string `json:"action"`
			CanRollback bool   `json:"can_rollback"`
		} `json:"entries"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	resp := decodeResponse(t, rec, &data)
	assert.True(t, resp.Success)
	require.Len(t, data.Entries, 2)
	assert.True(t, data.Entries[0].CanRollback)
	assert.False(t, data.Entries[1].CanRollback, "rollback entries are not offered for rollback")
	assert.Equal(t, 10, data.Limit)
	assert.Equal(t, 5, data.Offset)

	require.NotNil(t, gotFilter.Module)
	assert.Equal(t, models.AuditModuleCrypto, *gotFilter.Module)
}

func TestAuditHandler_List_BadLimit(t *testing.T) {
	h := NewAuditHandler(&mockAuditService{}, &mockRollbackService{}, nil, zap.NewNop())

	rec := serve(t, h, http.MethodGet, "/api/audit?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditHandler_EntityHistory(t *testing.T) {
	entityID := uuid.New()
	var gotType string
	var gotID uuid.UUID
	audit := &mockAuditService{
		historyFn: func(_ context.Context, entityType string, id uuid.UUID) ([]*models.AuditLogEntry, error) {
			gotType, gotID = entityType, id
			return []*models.AuditLogEntry{}, nil
		},
	}
	h := NewAuditHandler(audit, &mockRollbackService{}, nil, zap.NewNop())

	rec := serve(t, h, http.MethodGet, "/api/audit/entities/savings/"+entityID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "savings", gotType)
	assert.Equal(t, entityID, gotID)
}

func TestAuditHandler_Rollback(t *testing.T) {
	tests := []struct {
		name       string
		result     services.RollbackResult
		wantStatus int
	}{
		{"success", services.RollbackResult{Success: true, Message: "Rolled back UPDATE_QUANTITY"}, http.StatusOK},
		{"missing entry", services.RollbackResult{Message: services.MsgAuditEntryNotFound}, http.StatusNotFound},
		{"nothing to restore", services.RollbackResult{Message: services.MsgNoPriorData}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := &mockRollbackService{result: tt.result}
			h := NewAuditHandler(&mockAuditService{}, rb, nil, zap.NewNop())
			id := uuid.New()

			rec := serve(t, h, http.MethodPost, "/api/audit/"+id.String()+"/rollback", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, id, rb.gotID)

			var data services.RollbackResult
			resp := decodeResponse(t, rec, &data)
			assert.Equal(t, tt.result.Success, resp.Success)
			assert.Equal(t, tt.result.Message, data.Message)
		})
	}
}

func TestAuditHandler_Rollback_InvalidID(t *testing.T) {
	rb := &mockRollbackService{}
	h := NewAuditHandler(&mockAuditService{}, rb, nil, zap.NewNop())

	rec := serve(t, h, http.MethodPost, "/api/audit/not-a-uuid/rollback", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, rb.gotID)
}

func TestAuditHandler_Stream(t *testing.T) {
	sub := &stubSubscriber{ch: make(chan *models.AuditLogEntry, 1)}
	h := NewAuditHandler(&mockAuditService{}, &mockRollbackService{}, sub, zap.NewNop())

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/audit/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	entry := &models.AuditLogEntry{ID: uuid.New(), Module: models.AuditModuleFinance, Action: models.AuditActionAddTransaction}
	sub.ch <- entry

	scanner := bufio.NewScanner(resp.Body)
	var dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			dataLine = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, dataLine)
	assert.Contains(t, dataLine, entry.ID.String())
	assert.Contains(t, dataLine, `"can_rollback":true`)
}

func TestAuditHandler_StreamEndsOnServerShutdown(t *testing.T) {
	sub := &stubSubscriber{ch: make(chan *models.AuditLogEntry)}
	h := NewAuditHandler(&mockAuditService{}, &mockRollbackService{}, sub, zap.NewNop())

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srv.Config.RegisterOnShutdown(h.CloseStreams)

	resp, err := http.Get(srv.URL + "/api/audit/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Config.Shutdown(ctx))

	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
	assert.True(t, sub.cancelled.Load())
}

func TestAuditHandler_StreamNotRegisteredWithoutSubscriber(t *testing.T) {
	h := NewAuditHandler(&mockAuditService{}, &mockRollbackService{}, nil, zap.NewNop())

	rec := serve(t, h, http.MethodGet, "/api/audit/stream", "")
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
