package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/service"
	"voluntia-backend/internal/validation"
)

type ApplicationHandler struct {
	intake   service.IntakeService
	workflow service.WorkflowService
}

func NewApplicationHandler(intake service.IntakeService, workflow service.WorkflowService) *ApplicationHandler {
	return &ApplicationHandler{intake: intake, workflow: workflow}
}

type submitApplicationResponse struct {
	ID                    int32                    `json:"id"`
	Status                domain.ApplicationStatus `json:"status"`
	DesiredMembershipType domain.MembershipType    `json:"desired_membership_type"`
	CreatedAt             time.Time                `json:"created_at"`
}

// Submit handles the public application form.
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	app, err := h.intake.SubmitApplication(r.Context(), service.SubmitApplicationInput{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.PhoneNumber,
		MembershipType: domain.MembershipType(req.DesiredMembershipType),
		Motivation:     req.Motivation,
		AdditionalData: req.AdditionalData(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitApplicationResponse{
		ID:                    app.ID,
		Status:                app.Status,
		DesiredMembershipType: app.DesiredMembershipType,
		CreatedAt:             app.CreatedAt,
	})
}

func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, ok := pageParams(w, r, q)
	if !ok {
		return
	}
	query := validation.ApplicationQuery{
		Status: q.Get("status"),
		Search: strings.TrimSpace(q.Get("search")),
		Page:   page,
		Limit:  limit,
	}
	if err := validation.Struct(&query); err != nil {
		writeError(w, r, err)
		return
	}

	filter := domain.ApplicationFilter{Search: query.Search, Page: query.Page, Limit: query.Limit}
	if query.Status != "" {
		status := domain.ApplicationStatus(query.Status)
		filter.Status = &status
	}

	result, err := h.workflow.ListApplications(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.workflow.GetApplication(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *ApplicationHandler) ScheduleCall(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	var req validation.ScheduleCallRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	app, err := h.workflow.ScheduleCall(r.Context(), id, req.CallScheduledAt, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type approvalResponse struct {
	Application       *domain.Application `json:"application"`
	GrantedRole       domain.RoleSlug     `json:"granted_role"`
	TemporaryPassword string              `json:"temporary_password"`
}

// Approve returns the temporary password once so staff can hand it over
// when email delivery is off.
func (h *ApplicationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	var req validation.DecisionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	result, err := h.workflow.Approve(r.Context(), id, req.DecisionNotes, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result.Application.User = result.User
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, approvalResponse{
		Application:       result.Application,
		GrantedRole:       result.GrantedRole,
		TemporaryPassword: result.TemporaryPassword,
	})
}

func (h *ApplicationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	var req validation.DecisionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	app, err := h.workflow.Decline(r.Context(), id, req.DecisionNotes, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func applicationID(w http.ResponseWriter, r *http.Request) (int32, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	if err != nil || id < 1 {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_id", "application id must be a positive integer")
		return 0, false
	}
	return int32(id), true
}

// decodeOptionalJSON accepts an empty body for decisions without notes.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decodeJSON(w, r, dst)
}

// pageParams reads page and limit, defaulting to the first page of ten.
func pageParams(w http.ResponseWriter, r *http.Request, q url.Values) (int32, int32, bool) {
	page, limit := int32(1), int32(10)
	fieldErrs := map[string]string{}
	if v := q.Get("page"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			fieldErrs["page"] = "must be a number"
		}
		page = int32(n)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			fieldErrs["limit"] = "must be a number"
		}
		limit = int32(n)
	}
	if len(fieldErrs) > 0 {
		writeError(w, r, &validation.Error{Fields: fieldErrs})
		return 0, 0, false
	}
	return page, limit, true
}
