package performancehandler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pmds/internal/domain/performance"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

type reviewPayload struct {
	performance.ReviewInput
	ReviewDate *string `json:"reviewDate"`
}

func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	q := r.URL.Query()
	cycle, err := performance.ParseCycle(q.Get("cycle"))
	if err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "cycle", Reason: "must be midyear or final"}})
		return
	}
	filter := performance.ReviewFilter{
		Cycle:       cycle,
		Status:      q.Get("status"),
		AgreementID: q.Get("agreementId"),
	}
	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Service.ListReviews(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, r, err, "review_list_failed", "failed to list reviews")
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload reviewPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	if payload.Cycle == "" {
		payload.Cycle = r.URL.Query().Get("cycle")
	}
	v := shared.NewValidator()
	v.Required("agreementId", payload.AgreementID, "is required")
	v.Required("cycle", payload.Cycle, "is required")
	v.Enum("cycle", payload.Cycle, performance.Cycles, "must be midyear or final")
	in := payload.ReviewInput
	in.ReviewDate = v.OptionalDate("reviewDate", payload.ReviewDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	review, err := h.Service.CreateReview(r.Context(), user, in)
	if err != nil {
		shared.WriteError(w, r, err, "review_create_failed", "failed to create review")
		return
	}
	api.Created(w, review, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	review, err := h.Service.GetReview(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err, "review_get_failed", "failed to load review")
		return
	}
	api.Success(w, review, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload reviewPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.ReviewInput
	in.ReviewDate = v.OptionalDate("reviewDate", payload.ReviewDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	review, err := h.Service.UpdateReview(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		shared.WriteError(w, r, err, "review_update_failed", "failed to update review")
		return
	}
	api.Success(w, review, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Service.DeleteReview(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		shared.WriteError(w, r, err, "review_delete_failed", "failed to delete review")
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRatings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload []performance.RatingInput
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	for i, in := range payload {
		prefix := "[" + strconv.Itoa(i) + "]."
		v.Required(prefix+"id", in.ID, "is required")
		v.Rating(prefix+"employeeRating", in.EmployeeRating)
		v.Rating(prefix+"supervisorRating", in.SupervisorRating)
		v.Rating(prefix+"agreedRating", in.AgreedRating)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	review, err := h.Service.UpdateRatings(r.Context(), user, chi.URLParam(r, "id"), payload)
	if err != nil {
		shared.WriteError(w, r, err, "rating_update_failed", "failed to update ratings")
		return
	}
	api.Success(w, review, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRatingEvidence(w http.ResponseWriter, r *http.Request) {
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

	review, err := h.Service.AttachRatingEvidence(r.Context(), user, chi.URLParam(r, "id"), chi.URLParam(r, "ratingID"), up)
	if err != nil {
		shared.WriteError(w, r, err, "evidence_upload_failed", "failed to store evidence")
		return
	}
	api.Success(w, review, middleware.GetRequestID(r.Context()))
}
