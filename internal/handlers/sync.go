package handlers

import (
	"log/slog"
	"net/http"

	"reviewhub-console/internal/models"
	viewsync "reviewhub-console/internal/sync"
)

// SyncHandler exposes view reconciliation
type SyncHandler struct {
	reconciler *viewsync.Reconciler
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(reconciler *viewsync.Reconciler) *SyncHandler {
	return &SyncHandler{reconciler: reconciler}
}

type forceSyncResponse struct {
	models.SyncStatus
	Error string `json:"error,omitempty"`
}

// ForceSync handles POST /v1/sync/force - refresh every loaded view now
func (h *SyncHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	slog.Info("Force sync requested", "remote_addr", r.RemoteAddr)

	if err := h.reconciler.ForceSync(r.Context()); err != nil {
		slog.Warn("Force sync failed", "error", err, "remote_addr", r.RemoteAddr)
		writeJSONResponse(w, http.StatusBadGateway, forceSyncResponse{
			SyncStatus: h.reconciler.GetSyncStatus(),
			Error:      err.Error(),
		})
		return
	}
	writeJSONResponse(w, http.StatusOK, forceSyncResponse{SyncStatus: h.reconciler.GetSyncStatus()})
}

// Status handles GET /v1/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.reconciler.GetSyncStatus())
}
