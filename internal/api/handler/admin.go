package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/models"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/response"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/erasure"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/worker"
)

// ErasureQueue hands live erasure runs off to the worker.
type ErasureQueue interface {
	EnqueueErasure(ctx context.Context, requestID string, actor dsr.Actor) error
}

// AdminHandler handles the staff endpoints for working privacy requests.
type AdminHandler struct {
	requests *dsr.Service
	auditSvc *audit.Service
	erasures *erasure.Orchestrator
	exports  *export.Orchestrator
	reporter *worker.SLAReporter
	queue    ErasureQueue
}

// AdminHandlerConfig holds configuration for creating an AdminHandler.
type AdminHandlerConfig struct {
	Requests *dsr.Service
	Audit    *audit.Service
	Erasures *erasure.Orchestrator
	Exports  *export.Orchestrator
	Reporter *worker.SLAReporter

	// Queue, when set, runs live erasures in the worker instead of inline.
	Queue ErasureQueue
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{
		requests: cfg.Requests,
		auditSvc: cfg.Audit,
		erasures: cfg.Erasures,
		exports:  cfg.Exports,
		reporter: cfg.Reporter,
		queue:    cfg.Queue,
	}
}

// ListRequests handles GET /v1/admin/dsr/requests - filterable listing.
func (h *AdminHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filters dsr.ListFilters
	if v := q.Get("status"); v != "" {
		status := dsr.Status(v)
		if !status.Valid() {
			response.BadRequest(w, r, "unknown status filter", nil)
			return
		}
		filters.Status = &status
	}
	if v := q.Get("type"); v != "" {
		requestType := dsr.RequestType(v)
		if !requestType.Valid() {
			response.BadRequest(w, r, "unknown type filter", nil)
			return
		}
		filters.Type = &requestType
	}
	if v := q.Get("regulation"); v != "" {
		regulation := dsr.Regulation(v)
		if !regulation.Valid() {
			response.BadRequest(w, r, "unknown regulation filter", nil)
			return
		}
		filters.Regulation = &regulation
	}
	filters.OverdueOnly = q.Get("overdue") == "true"

	limit, offset := pageParams(q.Get("limit"), q.Get("offset"))

	requests, err := h.requests.List(r.Context(), filters, limit, offset)
	if err != nil {
		writeDSRError(w, r, err)
		return
	}

	now := time.Now().UTC()
	items := make([]models.DSRRequest, 0, len(requests))
	for _, req := range requests {
		items = append(items, toDSRRequest(req, now))
	}

	response.JSON(w, r, http.StatusOK, models.PagedDSRRequests{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: limit, Offset: offset},
	})
}

// GetRequest handles GET /v1/admin/dsr/requests/{requestId}.
func (h *AdminHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), chi.URLParam(r, "requestId"))
	if err != nil {
		writeDSRError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toDSRRequest(req, time.Now().UTC()))
}

// Transition handles POST /v1/admin/dsr/requests/{requestId}/status.
func (h *AdminHandler) Transition(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	var input models.DSRTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	next := dsr.Status(input.Status)
	if !next.Valid() {
		response.BadRequest(w, r, "unknown status", []models.FieldError{
			{Field: "status", Message: "must be a valid lifecycle status", Code: "invalid_enum"},
		})
		return
	}

	actor := StaffActor(r.Context())
	meta := RequestMeta(r)

	if err := h.requests.Transition(r.Context(), requestID, next, actor, meta); err != nil {
		writeDSRError(w, r, err)
		return
	}
	if input.Note != "" {
		if err := h.requests.AddNote(r.Context(), requestID, input.Note, actor, meta); err != nil {
			writeDSRError(w, r, err)
			return
		}
	}

	req, err := h.requests.Get(r.Context(), requestID)
	if err != nil {
		writeDSRError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toDSRRequest(req, time.Now().UTC()))
}

// Assign handles POST /v1/admin/dsr/requests/{requestId}/assign.
func (h *AdminHandler) Assign(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	var input models.DSRAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.AssigneeID == "" {
		response.BadRequest(w, r, "assigneeId is required", nil)
		return
	}

	assignee := dsr.Actor{ID: input.AssigneeID, Role: input.AssigneeRole}
	if err := h.requests.Assign(r.Context(), requestID, assignee, StaffActor(r.Context()), RequestMeta(r)); err != nil {
		writeDSRError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// AddNote handles POST /v1/admin/dsr/requests/{requestId}/notes.
func (h *AdminHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	var input models.DSRNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.Note == "" {
		response.BadRequest(w, r, "note is required", nil)
		return
	}

	if err := h.requests.AddNote(r.Context(), requestID, input.Note, StaffActor(r.Context()), RequestMeta(r)); err != nil {
		writeDSRError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// ExecuteErasure handles POST /v1/admin/dsr/requests/{requestId}/erasure.
// With a worker queue configured the run happens asynchronously and the
// endpoint returns 202; otherwise it runs inline and returns the summary.
func (h *AdminHandler) ExecuteErasure(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")
	actor := StaffActor(r.Context())

	if h.queue != nil {
		// Eligibility is re-checked by the worker; reject the obvious
		// cases here so the caller gets an immediate error.
		if _, err := h.requests.Get(r.Context(), requestID); err != nil {
			writeDSRError(w, r, err)
			return
		}
		if err := h.queue.EnqueueErasure(r.Context(), requestID, actor); err != nil {
			response.InternalError(w, r, "failed to schedule erasure")
			return
		}
		response.Accepted(w, r, fmt.Sprintf("/v1/admin/dsr/requests/%s", requestID), nil)
		return
	}

	summary, err := h.erasures.Execute(r.Context(), requestID, actor, RequestMeta(r))
	if err != nil {
		writeDSRError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toErasureSummary(summary, false))
}

// PreviewErasure handles POST /v1/admin/dsr/requests/{requestId}/erasure/preview.
// Dry run: no handler mutates anything and the request status is untouched.
func (h *AdminHandler) PreviewErasure(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	preview, err := h.erasures.Preview(r.Context(), requestID, StaffActor(r.Context()), RequestMeta(r))
	if err != nil {
		writeDSRError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toErasureSummary(preview.Summary, true))
}

// RequestExport handles POST /v1/admin/dsr/requests/{requestId}/export.
func (h *AdminHandler) RequestExport(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	token, err := h.exports.RequestExport(r.Context(), requestID, StaffActor(r.Context()), RequestMeta(r))
	if err != nil {
		writeDSRError(w, r, err)
		return
	}

	ack := models.DSRExportAck{
		RequestID:   requestID,
		Token:       token,
		DownloadURL: fmt.Sprintf("/v1/dsr/requests/%s/download/%s", requestID, token),
	}
	response.Accepted(w, r, ack.DownloadURL, ack)
}

// AuditTrail handles GET /v1/admin/dsr/requests/{requestId}/audit.
func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	// 404 for unknown requests rather than an empty trail.
	if _, err := h.requests.Get(r.Context(), requestID); err != nil {
		writeDSRError(w, r, err)
		return
	}

	limit, offset := pageParams(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	entries, total, err := h.auditSvc.Query(r.Context(), audit.Filters{
		RequestID: requestID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		response.InternalError(w, r, "failed to query audit log")
		return
	}

	items := make([]models.AuditEntry, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toAuditEntry(entry))
	}
	response.JSON(w, r, http.StatusOK, models.PagedAuditEntries{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: limit, Offset: offset, Total: total},
	})
}

// ScrubPII handles POST /v1/admin/dsr/requests/{requestId}/scrub - erase the
// request's own stored PII and audit trail once the retention window lapses.
func (h *AdminHandler) ScrubPII(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	removed, err := h.requests.EraseEvidence(r.Context(), requestID)
	if err != nil {
		writeDSRError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"requestId":          requestID,
		"auditEntriesErased": removed,
	})
}

// Stats handles GET /v1/admin/dsr/stats?by=status|type|regulation.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	column := r.URL.Query().Get("by")
	if column == "" {
		column = "status"
	}

	counts, err := h.requests.Stats(r.Context(), column)
	if err != nil {
		response.BadRequest(w, r, "unsupported stats column", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, models.DSRStats{Column: column, Counts: counts})
}

// SLAReport handles GET /v1/admin/dsr/reports/sla?year=&month=.
func (h *AdminHandler) SLAReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		response.BadRequest(w, r, "year is required", nil)
		return
	}
	monthNum, err := strconv.Atoi(q.Get("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		response.BadRequest(w, r, "month must be 1-12", nil)
		return
	}

	report, genErr := h.reporter.Generate(r.Context(), year, time.Month(monthNum))
	if genErr != nil {
		response.InternalError(w, r, "failed to generate report")
		return
	}
	response.JSON(w, r, http.StatusOK, report)
}

func pageParams(limitStr, offsetStr string) (int, int) {
	limit := 50
	if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
		limit = v
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if v, err := strconv.Atoi(offsetStr); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func toDSRRequest(req *dsr.Request, now time.Time) models.DSRRequest {
	out := models.DSRRequest{
		ID:          req.ID,
		Type:        string(req.Type),
		Status:      string(req.Status),
		Email:       req.RequesterEmail,
		UserID:      req.UserID,
		Regulation:  string(req.Regulation),
		Details:     req.Details,
		SubmittedAt: models.Timestamp(req.SubmittedAt),
		SLADays:     req.SLADays,
		SLADeadline: models.Timestamp(req.SLADeadline),
		ProcessedBy: req.ProcessedBy,
		AdminNotes:  req.AdminNotes,
		Overdue:     req.Overdue(now),
	}
	if req.VerifiedAt != nil {
		ts := models.Timestamp(*req.VerifiedAt)
		out.VerifiedAt = &ts
	}
	if req.CompletedAt != nil {
		ts := models.Timestamp(*req.CompletedAt)
		out.CompletedAt = &ts
	}
	return out
}

func toErasureSummary(summary *erasure.Summary, dryRun bool) models.ErasureSummary {
	out := models.ErasureSummary{
		Succeeded:     summary.Succeeded,
		Failed:        summary.Failed,
		Skipped:       summary.Skipped,
		ItemsAffected: summary.ItemsAffected,
		DryRun:        dryRun,
	}
	for _, hr := range summary.Handlers {
		result := models.ErasureHandlerResult{
			Key:     hr.Key,
			Label:   hr.Label,
			Skipped: hr.Skipped,
		}
		if hr.Err != nil {
			result.Error = hr.Err.Error()
		}
		for _, item := range hr.Items {
			result.Items = append(result.Items, models.ErasureItem{
				Store: item.Store,
				Kind:  item.Kind,
				ID:    item.ID,
			})
		}
		out.Handlers = append(out.Handlers, result)
	}
	return out
}

func toAuditEntry(entry *audit.Entry) models.AuditEntry {
	return models.AuditEntry{
		ID:        entry.ID,
		RequestID: entry.RequestID,
		Action:    string(entry.Action),
		ActorID:   entry.ActorID,
		Note:      entry.Note,
		Metadata:  entry.Metadata,
		CreatedAt: models.Timestamp(entry.CreatedAt),
	}
}
