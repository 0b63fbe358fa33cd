package audithttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harvest-erp/harvest/internal/audit"
	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/reports/export"
	"github.com/harvest-erp/harvest/internal/shared"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 50
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit timeline to administrators.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds the audit timeline handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.fail(w, "timeline", err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.fail(w, "timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.fail(w, "export", err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "export", err)
		return
	}
	table := export.Table{Columns: []string{"at", "actor_id", "actor_email", "action", "entity", "entity_id", "meta"}}
	for _, row := range rows {
		meta := ""
		if len(row.Meta) > 0 {
			raw, err := json.Marshal(row.Meta)
			if err != nil {
				h.fail(w, "export", err)
				return
			}
			meta = string(raw)
		}
		actor := ""
		if row.ActorID > 0 {
			actor = strconv.FormatInt(row.ActorID, 10)
		}
		table.AddRow(row.At.UTC().Format(time.RFC3339), actor, row.ActorEmail, row.Action, row.Entity, row.EntityID, meta)
	}
	filename := "audit_" + filters.From.Format("20060102") + "_" + filters.To.Format("20060102") + ".csv"
	if err := export.ServeCSV(w, filename, table); err != nil {
		h.logger.Warn("write audit csv", slog.Any("error", err))
	}
}

// parseFilters defaults to the last seven days and rejects windows longer
// than ninety.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format(time.DateOnly)
	}
	toTime, err := time.Parse(time.DateOnly, toStr)
	if err != nil {
		return audit.TimelineFilters{}, shared.NewValidationError("to", "must be YYYY-MM-DD")
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format(time.DateOnly)
	}
	fromTime, err := time.Parse(time.DateOnly, fromStr)
	if err != nil {
		return audit.TimelineFilters{}, shared.NewValidationError("from", "must be YYYY-MM-DD")
	}
	if fromTime.After(toTime) {
		return audit.TimelineFilters{}, shared.NewValidationError("from", "must not be after to")
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, shared.NewValidationError("from", "range must not exceed 90 days")
	}

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, shared.NewValidationError("page", "must be a positive integer")
		}
		page = parsed
	}
	pageSize := defaultPageSize
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, shared.NewValidationError("page_size", "must be a positive integer")
		}
		pageSize = min(parsed, maxPageSize)
	}
	actor, err := httpx.QueryInt64(r, "actor_id")
	if err != nil {
		return audit.TimelineFilters{}, err
	}

	filters := audit.TimelineFilters{
		From:     fromTime,
		To:       toTime,
		Entity:   strings.TrimSpace(q.Get("entity")),
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}
	if actor != nil {
		filters.ActorID = *actor
	}
	return filters, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("audit "+op+" failed", slog.Any("error", err))
	}
}
