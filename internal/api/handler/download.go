package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/response"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
)

// DownloadHandler streams export packages to requesters.
type DownloadHandler struct {
	delivery *export.DeliveryManager
	logger   zerolog.Logger
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(delivery *export.DeliveryManager, logger zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{delivery: delivery, logger: logger}
}

// Download handles GET /v1/dsr/requests/{requestId}/download/{token}.
// The token is single-use: it is spent before the first byte is streamed,
// and the file is deleted once the transfer ends.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")
	token := chi.URLParam(r, "token")
	if requestID == "" || token == "" {
		response.BadRequest(w, r, "requestId and token are required", nil)
		return
	}

	dl, err := h.delivery.HandleDownload(r.Context(), requestID, token, RequestMeta(r))
	if err != nil {
		writeDownloadError(w, r, err)
		return
	}
	defer dl.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", dl.SizeBytes))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "data-export-"+requestID+".zip"))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl); err != nil {
		// Headers are gone; all we can do is log the broken transfer.
		h.logger.Warn().Err(err).Str("request_id", requestID).Msg("export download interrupted")
	}
}
