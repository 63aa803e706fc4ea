package performancehandler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pmds/internal/domain/performance"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

type agreementPayload struct {
	performance.AgreementInput
	AgreementDate       *string `json:"agreementDate"`
	PlanStartDate       *string `json:"planStartDate"`
	PlanEndDate         *string `json:"planEndDate"`
	MidyearReviewDate   *string `json:"midyearReviewDate"`
	FinalAssessmentDate *string `json:"finalAssessmentDate"`
}

// input parses the date fields and checks their order.
func (p agreementPayload) input(v *shared.Validator) performance.AgreementInput {
	in := p.AgreementInput
	in.AgreementDate = v.OptionalDate("agreementDate", p.AgreementDate)
	in.PlanStartDate = v.OptionalDate("planStartDate", p.PlanStartDate)
	in.PlanEndDate = v.OptionalDate("planEndDate", p.PlanEndDate)
	in.MidyearReviewDate = v.OptionalDate("midyearReviewDate", p.MidyearReviewDate)
	in.FinalAssessmentDate = v.OptionalDate("finalAssessmentDate", p.FinalAssessmentDate)
	if in.PlanStartDate != nil && in.PlanEndDate != nil {
		v.DateOrder("planStartDate", *in.PlanStartDate, "planEndDate", *in.PlanEndDate)
	}
	return in
}

type kraPayload struct {
	performance.KRAInput
	TargetDate *string `json:"targetDate"`
}

func (p kraPayload) input(v *shared.Validator) performance.KRAInput {
	in := p.KRAInput
	in.TargetDate = v.OptionalDate("targetDate", p.TargetDate)
	if in.Weighting != nil {
		v.Percent("weighting", *in.Weighting)
		if !in.Weighting.Equal(in.Weighting.Round(2)) {
			v.Add("weighting", "must have at most two decimal places")
		}
	}
	v.Rating("employeeRating", in.EmployeeRating)
	v.Rating("supervisorRating", in.SupervisorRating)
	v.Rating("agreedRating", in.AgreedRating)
	return in
}

func (h *Handler) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter, ok := agreementFilter(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Service.ListAgreements(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, r, err, "agreement_list_failed", "failed to list agreements")
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func agreementFilter(w http.ResponseWriter, r *http.Request) (performance.AgreementFilter, bool) {
	q := r.URL.Query()
	filter := performance.AgreementFilter{
		EmployeeID: q.Get("employeeId"),
		Status:     q.Get("status"),
	}
	if raw := q.Get("year"); raw != "" {
		year, err := shared.ParseYear(raw)
		if err != nil {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "year", Reason: err.Error()}})
			return filter, false
		}
		filter.Year = year
	}
	return filter, true
}

func (h *Handler) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload agreementPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	a, err := h.Service.CreateAgreement(r.Context(), user, in)
	if err != nil {
		shared.WriteError(w, r, err, "agreement_create_failed", "failed to create agreement")
		return
	}
	api.Created(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	a, err := h.Service.GetAgreement(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err, "agreement_get_failed", "failed to load agreement")
		return
	}
	api.Success(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateAgreement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload agreementPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	a, err := h.Service.UpdateAgreement(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		shared.WriteError(w, r, err, "agreement_update_failed", "failed to update agreement")
		return
	}
	api.Success(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteAgreement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Service.DeleteAgreement(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		shared.WriteError(w, r, err, "agreement_delete_failed", "failed to delete agreement")
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddKRA(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload kraPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if in.Description == nil {
		v.Add("description", "is required")
	} else {
		v.Required("description", *in.Description, "is required")
	}
	if in.Weighting == nil {
		v.Add("weighting", "is required")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	kra, err := h.Service.AddKRA(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		shared.WriteError(w, r, err, "kra_create_failed", "failed to add kra")
		return
	}
	api.Created(w, kra, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateKRA(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload kraPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	kra, err := h.Service.UpdateKRA(r.Context(), user, chi.URLParam(r, "id"), chi.URLParam(r, "kraID"), in)
	if err != nil {
		shared.WriteError(w, r, err, "kra_update_failed", "failed to update kra")
		return
	}
	api.Success(w, kra, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteKRA(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Service.DeleteKRA(r.Context(), user, chi.URLParam(r, "id"), chi.URLParam(r, "kraID")); err != nil {
		shared.WriteError(w, r, err, "kra_delete_failed", "failed to delete kra")
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleKRAEvidence(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	up, done, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer done()

	kra, err := h.Service.AttachKRAEvidence(r.Context(), user, chi.URLParam(r, "id"), chi.URLParam(r, "kraID"), up)
	if err != nil {
		shared.WriteError(w, r, err, "evidence_upload_failed", "failed to store evidence")
		return
	}
	api.Success(w, kra, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateGAFs(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload []performance.GAFInput
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	for i, g := range payload {
		if _, ok := performance.LookupFactor(g.Factor); !ok {
			v.Add(fmt.Sprintf("[%d].factor", i), "unknown assessment factor")
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	gafs, err := h.Service.UpdateGAFs(r.Context(), user, chi.URLParam(r, "id"), payload)
	if err != nil {
		shared.WriteError(w, r, err, "gaf_update_failed", "failed to update assessment factors")
		return
	}
	api.Success(w, gafs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	data, filename, err := h.Service.ExportAgreementPDF(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err, "agreement_export_failed", "failed to export agreement")
		return
	}
	api.File(w, "application/pdf", filename, data)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter, ok := agreementFilter(w, r)
	if !ok {
		return
	}
	buf, err := h.Service.ExportAgreementsXLSX(r.Context(), user, filter)
	if err != nil {
		shared.WriteError(w, r, err, "agreement_export_failed", "failed to export agreements")
		return
	}
	filename := fmt.Sprintf("performance-scores-%s.xlsx", time.Now().Format("20060102"))
	api.File(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename, buf.Bytes())
}
