package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

// streamKeepAlive is how often an idle SSE stream sends a comment line.
const streamKeepAlive = 25 * time.Second

// AuditEntryResponse is an audit entry plus whether the UI may offer rollback.
type AuditEntryResponse struct {
	*models.AuditLogEntry
	CanRollback bool `json:"can_rollback"`
}

// AuditListResponse for GET /api/audit
type AuditListResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// AuditSubscriber hands out live audit entry subscriptions. *realtime.Hub satisfies it.
type AuditSubscriber interface {
	Subscribe() (<-chan *models.AuditLogEntry, func())
}

// AuditHandler serves the activity history, rollback and the live feed.
type AuditHandler struct {
	audit    services.AuditService
	rollback services.RollbackService
	stream   AuditSubscriber
	logger   *zap.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewAuditHandler creates a new audit handler. stream may be nil, in which
// case the SSE endpoint is not registered.
func NewAuditHandler(
	audit services.AuditService,
	rollback services.RollbackService,
	stream AuditSubscriber,
	logger *zap.Logger,
) *AuditHandler {
	return &AuditHandler{
		audit:    audit,
		rollback: rollback,
		stream:   stream,
		logger:   logger,
		closing:  make(chan struct{}),
	}
}

// CloseStreams ends every open SSE stream. http.Server.Shutdown does not
// cancel request contexts, so register this with RegisterOnShutdown or
// shutdown waits on connected clients until it times out.
func (h *AuditHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// RegisterRoutes registers the audit handler's routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/audit", h.List)
	mux.HandleFunc("GET /api/audit/entities/{type}/{id}", h.EntityHistory)
	mux.HandleFunc("POST /api/audit/{id}/rollback", h.Rollback)
	if h.stream != nil {
		mux.HandleFunc("GET /api/audit/stream", h.Stream)
	}
}

func toEntryResponses(entries []*models.AuditLogEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{AuditLogEntry: e, CanRollback: e.CanRollback()}
	}
	return out
}

// List handles GET /api/audit?module=&limit=&offset=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", models.DefaultAuditPageSize, h.logger)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0, h.logger)
	if !ok {
		return
	}

	filter := models.AuditLogFilter{Limit: limit, Offset: offset}
	if m := strings.TrimSpace(r.URL.Query().Get("module")); m != "" {
		module := models.AuditModule(strings.ToUpper(m))
		filter.Module = &module
	}

	entries, err := h.audit.ListRecent(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "list_audit_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, AuditListResponse{
		Entries: toEntryResponses(entries),
		Limit:   limit,
		Offset:  offset,
	}, h.logger)
}

// EntityHistory handles GET /api/audit/entities/{type}/{id}
func (h *AuditHandler) EntityHistory(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	entries, err := h.audit.History(r.Context(), r.PathValue("type"), entityID)
	if err != nil {
		writeServiceError(w, err, "entity_history_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, toEntryResponses(entries), h.logger)
}

// Rollback handles POST /api/audit/{id}/rollback. A failed rollback is
// answered with 422, or 404 for an unknown entry.
func (h *AuditHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	auditID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	result := h.rollback.Rollback(r.Context(), auditID)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
		if result.Message == services.MsgAuditEntryNotFound {
			status = http.StatusNotFound
		}
	}

	if err := WriteJSON(w, status, ApiResponse{
		Success: result.Success,
		Data:    result,
		Message: result.Message,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stream handles GET /api/audit/stream, pushing each new audit entry as a
// server-sent event until the client disconnects or CloseStreams is called.
func (h *AuditHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming is not supported", h.logger)
		return
	}

	entries, cancel := h.stream.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case entry, ok := <-entries:
			if !ok {
				return
			}
			data, err := json.Marshal(AuditEntryResponse{AuditLogEntry: entry, CanRollback: entry.CanRollback()})
			if err != nil {
				h.logger.Error("Failed to encode audit entry", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: audit\ndata: %s\n\n", entry.ID, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
