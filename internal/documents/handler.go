package documents

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
)

// Enqueuer schedules an export on the background worker.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, kind string, id int64) error
}

// Handler exposes export endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer Enqueuer
}

// NewHandler constructs Handler. A nil enqueuer makes ?async=1 run inline.
func NewHandler(logger *slog.Logger, service *Service, enqueuer Enqueuer) *Handler {
	return &Handler{logger: logger, service: service, enqueuer: enqueuer}
}

// MountDeliveryRoutes registers POST /{id}/export under the deliveries router.
func (h *Handler) MountDeliveryRoutes(r chi.Router) {
	r.Post("/{id}/export", h.export(KindDelivery, h.service.ExportDelivery))
}

// MountInvoiceRoutes registers POST /{id}/export under the invoices router.
func (h *Handler) MountInvoiceRoutes(r chi.Router) {
	r.Post("/{id}/export", h.export(KindInvoice, h.service.ExportInvoice))
}

func (h *Handler) export(kind string, run func(context.Context, int64) (Document, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			h.fail(w, err)
			return
		}
		if h.enqueuer != nil && r.URL.Query().Get("async") == "1" {
			if err := h.enqueuer.EnqueueExport(r.Context(), kind, id); err != nil {
				h.fail(w, err)
				return
			}
			httpx.JSON(w, http.StatusAccepted, map[string]any{"kind": kind, "id": id, "status": "queued"})
			return
		}
		doc, err := run(r.Context(), id)
		if err != nil {
			h.fail(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("documents request failed", slog.Any("error", err))
	}
}
