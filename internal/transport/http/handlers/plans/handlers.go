package planshandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/plans"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

type Handler struct {
	Service *plans.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *plans.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/improvement-plans", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPlansRead, h.Perms)).Get("/", h.handleListImprovementPlans)
		r.With(middleware.RequirePermission(auth.PermPlansWrite, h.Perms)).Post("/", h.handleCreateImprovementPlan)
		r.With(middleware.RequirePermission(auth.PermPlansRead, h.Perms)).Get("/{id}", h.handleGetImprovementPlan)
		r.With(middleware.RequirePermission(auth.PermPlansWrite, h.Perms)).Put("/{id}", h.handleUpdateImprovementPlan)
		r.With(middleware.RequirePermission(auth.PermPlansWrite, h.Perms)).Post("/{id}/items", h.handleAddItem)
		r.With(middleware.RequirePermission(auth.PermPlansWrite, h.Perms)).Put("/{id}/items/{itemID}", h.handleUpdateItem)
	})
	r.Route("/development-plans", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPlansRead, h.Perms)).Get("/", h.handleListDevelopmentPlans)
		r.With(middleware.RequirePermission(auth.PermPlansWrite, h.Perms)).Post("/", h.handleCreateDevelopmentPlan)
		r.With(middleware.RequirePermission(auth.PermPlansRead, h.Perms)).Get("/{id}", h.handleGetDevelopmentPlan)
		r.With(middleware.RequirePermission(auth.PermPlansWrite, h.Perms)).Put("/{id}", h.handleUpdateDevelopmentPlan)
		r.With(middleware.RequirePermission(auth.PermPlansWrite, h.Perms)).Delete("/{id}", h.handleDeleteDevelopmentPlan)
	})
}

type itemPayload struct {
	plans.ItemInput
	TargetDate *string `json:"targetDate"`
}

type developmentPayload struct {
	plans.DevelopmentInput
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

func (p developmentPayload) input(v *shared.Validator) plans.DevelopmentInput {
	in := p.DevelopmentInput
	in.StartDate = v.OptionalDate("startDate", p.StartDate)
	in.EndDate = v.OptionalDate("endDate", p.EndDate)
	if in.StartDate != nil && in.EndDate != nil {
		v.DateOrder("startDate", *in.StartDate, "endDate", *in.EndDate)
	}
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > 100) {
		v.Add("progress", "must be between 0 and 100")
	}
	return in
}

func (h *Handler) handleListImprovementPlans(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter := plans.Filter{EmployeeID: r.URL.Query().Get("employeeId"), Status: r.URL.Query().Get("status")}
	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Service.ListImprovementPlans(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, r, err, "plan_list_failed", "failed to list improvement plans")
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateImprovementPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload plans.PlanInput
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	if payload.Status != nil {
		v.Enum("status", *payload.Status, plans.Statuses, "must be DRAFT, IN_PROGRESS or COMPLETED")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	plan, err := h.Service.CreateImprovementPlan(r.Context(), user, payload)
	if err != nil {
		shared.WriteError(w, r, err, "plan_create_failed", "failed to create improvement plan")
		return
	}
	h.record(r, user, audit.ActionCreate, audit.EntityImprovementPlan, plan.ID, plan.String(), nil, plan)
	api.Created(w, plan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetImprovementPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	plan, err := h.Service.GetImprovementPlan(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err, "plan_get_failed", "failed to load improvement plan")
		return
	}
	api.Success(w, plan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateImprovementPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload plans.PlanInput
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	if payload.Status != nil {
		v := shared.NewValidator()
		v.Enum("status", *payload.Status, plans.Statuses, "must be DRAFT, IN_PROGRESS or COMPLETED")
		if v.Reject(w, middleware.GetRequestID(r.Context())) {
			return
		}
	}

	before, after, err := h.Service.UpdateImprovementPlan(r.Context(), user, chi.URLParam(r, "id"), payload)
	if err != nil {
		shared.WriteError(w, r, err, "plan_update_failed", "failed to update improvement plan")
		return
	}
	h.record(r, user, audit.ActionUpdate, audit.EntityImprovementPlan, after.ID, after.String(), before, after)
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload itemPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.ItemInput
	in.TargetDate = v.OptionalDate("targetDate", payload.TargetDate)
	if in.AreaForDevelopment == nil {
		v.Add("areaForDevelopment", "is required")
	} else {
		v.Required("areaForDevelopment", *in.AreaForDevelopment, "is required")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	planID := chi.URLParam(r, "id")
	item, err := h.Service.AddItem(r.Context(), user, planID, in)
	if err != nil {
		shared.WriteError(w, r, err, "plan_item_create_failed", "failed to add plan item")
		return
	}
	h.record(r, user, audit.ActionCreate, audit.EntityImprovementPlan, planID, item.AreaForDevelopment, nil, item)
	api.Created(w, item, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload itemPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.ItemInput
	in.TargetDate = v.OptionalDate("targetDate", payload.TargetDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	planID := chi.URLParam(r, "id")
	before, after, err := h.Service.UpdateItem(r.Context(), user, planID, chi.URLParam(r, "itemID"), in)
	if err != nil {
		shared.WriteError(w, r, err, "plan_item_update_failed", "failed to update plan item")
		return
	}
	h.record(r, user, audit.ActionUpdate, audit.EntityImprovementPlan, planID, after.AreaForDevelopment, before, after)
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDevelopmentPlans(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter := plans.Filter{EmployeeID: r.URL.Query().Get("employeeId")}
	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Service.ListDevelopmentPlans(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, r, err, "development_plan_list_failed", "failed to list development plans")
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDevelopmentPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload developmentPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if in.CompetencyGap == nil {
		v.Add("competencyGap", "is required")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	plan, err := h.Service.CreateDevelopmentPlan(r.Context(), user, in)
	if err != nil {
		shared.WriteError(w, r, err, "development_plan_create_failed", "failed to create development plan")
		return
	}
	h.record(r, user, audit.ActionCreate, audit.EntityDevelopmentPlan, plan.ID, plan.String(), nil, plan)
	api.Created(w, plan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetDevelopmentPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	plan, err := h.Service.GetDevelopmentPlan(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err, "development_plan_get_failed", "failed to load development plan")
		return
	}
	api.Success(w, plan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateDevelopmentPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload developmentPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, after, err := h.Service.UpdateDevelopmentPlan(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		shared.WriteError(w, r, err, "development_plan_update_failed", "failed to update development plan")
		return
	}
	h.record(r, user, audit.ActionUpdate, audit.EntityDevelopmentPlan, after.ID, after.String(), before, after)
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteDevelopmentPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	deleted, err := h.Service.DeleteDevelopmentPlan(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err, "development_plan_delete_failed", "failed to delete development plan")
		return
	}
	h.record(r, user, audit.ActionDelete, audit.EntityDevelopmentPlan, deleted.ID, deleted.String(), deleted, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID, repr string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), audit.Entry{
		TenantID:       user.TenantID,
		ActorID:        user.UserID,
		ImpersonatorID: user.ImpersonatorID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		ObjectRepr:     repr,
		Before:         before,
		After:          after,
	}); err != nil {
		slog.Warn("audit failed", "action", action, "entity", entityType, "err", err)
	}
}
