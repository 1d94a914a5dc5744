// Package handler provides HTTP handlers for the privacy requests API.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/models"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/response"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

// DSRHandler handles the public request endpoints: submission and email
// verification.
type DSRHandler struct {
	requests *dsr.Service
}

// NewDSRHandler creates a new DSRHandler.
func NewDSRHandler(requests *dsr.Service) *DSRHandler {
	return &DSRHandler{requests: requests}
}

// Submit handles POST /v1/dsr/requests - open a new privacy request.
func (h *DSRHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var input models.SubmitDSRRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	regulation := dsr.Regulation(input.Regulation)
	if input.Regulation == "" {
		regulation = dsr.RegulationGDPR
	}

	req, err := h.requests.Submit(r.Context(), dsr.SubmitInput{
		Type:       dsr.RequestType(input.Type),
		Email:      input.Email,
		UserID:     input.UserID,
		Regulation: regulation,
		Details:    input.Details,
		Meta:       RequestMeta(r),
	})
	if err != nil {
		writeDSRError(w, r, err)
		return
	}

	ack := models.DSRSubmitAck{
		ID:          req.ID,
		Status:      string(req.Status),
		Regulation:  string(req.Regulation),
		SLADays:     req.SLADays,
		SLADeadline: models.Timestamp(req.SLADeadline),
		Message:     "Request received. Check your inbox for a verification link.",
	}
	location := fmt.Sprintf("/v1/admin/dsr/requests/%s", req.ID)
	response.Created(w, r, location, ack)
}

// Verify handles GET /v1/dsr/verify/{token} - confirm the requester controls
// the email address. Each token works exactly once.
func (h *DSRHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		response.BadRequest(w, r, "token is required", nil)
		return
	}

	req, err := h.requests.VerifyEmail(r.Context(), token, RequestMeta(r))
	if err != nil {
		writeDSRError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.DSRVerifyAck{
		ID:      req.ID,
		Status:  string(req.Status),
		Message: "Email verified. Your request is now being processed.",
	})
}
