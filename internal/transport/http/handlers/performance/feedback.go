package performancehandler

import (
	"net/http"

	"pmds/internal/domain/performance"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

func (h *Handler) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	items, err := h.Service.ListFeedback(r.Context(), user, r.URL.Query().Get("employeeId"), page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, r, err, "feedback_list_failed", "failed to list feedback")
		return
	}
	if items == nil {
		items = []performance.Feedback{}
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGiveFeedback(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload performance.FeedbackInput
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	v.Required("feedback", payload.Body, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	fb, err := h.Service.GiveFeedback(r.Context(), user, payload)
	if err != nil {
		shared.WriteError(w, r, err, "feedback_create_failed", "failed to record feedback")
		return
	}
	api.Created(w, fb, middleware.GetRequestID(r.Context()))
}
