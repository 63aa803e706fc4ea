package usershandler

import (
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/v5"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/users"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

type Handler struct {
	Service *users.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *users.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGetProfile)
	r.Put("/profile", h.handleUpdateProfile)
	r.Get("/salary-levels", h.handleSalaryLevels)

	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/{userID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Put("/{userID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Delete("/{userID}", h.handleDeactivate)
		r.Get("/{userID}/reports", h.handleDirectReports)
	})
}

type userPayload struct {
	users.Input
	DateOfAppointment *string `json:"dateOfAppointment"`
}

func (p userPayload) input(v *shared.Validator) users.Input {
	in := p.Input
	in.DateOfAppointment = v.OptionalDate("dateOfAppointment", p.DateOfAppointment)
	if in.Email != nil {
		if _, err := mail.ParseAddress(*in.Email); err != nil {
			v.Add("email", "must be a valid email address")
		}
	}
	if in.SalaryLevel != nil && (*in.SalaryLevel < 1 || *in.SalaryLevel > 16) {
		v.Add("salaryLevel", "must be between 1 and 16")
	}
	if in.Role != nil && !auth.ValidRole(*in.Role) {
		v.Add("role", "unknown role")
	}
	if in.Status != nil {
		v.Enum("status", *in.Status, users.Statuses, "must be active or inactive")
	}
	return in
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	q := r.URL.Query()
	filter := users.ListFilter{
		Role:       q.Get("role"),
		Department: q.Get("department"),
		ManagerID:  q.Get("managerId"),
		Status:     q.Get("status"),
		Search:     q.Get("q"),
	}
	page := shared.ParsePagination(r, 100, 500)
	items, total, err := h.Service.List(r.Context(), user.TenantID, filter, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, r, err, "user_list_failed", "failed to list users")
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload userPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if in.Email == nil {
		v.Add("email", "is required")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		v.Add("password", err.Error())
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.Create(r.Context(), user.TenantID, in)
	if err != nil {
		shared.WriteError(w, r, err, "user_create_failed", "failed to create user")
		return
	}
	h.record(r, user, audit.ActionCreate, created.ID, created.String(), nil, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	found, err := h.Service.Get(r.Context(), user.TenantID, chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, r, err, "user_get_failed", "failed to load user")
		return
	}
	api.Success(w, found, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload userPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, after, err := h.Service.Update(r.Context(), user.TenantID, chi.URLParam(r, "userID"), in)
	if err != nil {
		shared.WriteError(w, r, err, "user_update_failed", "failed to update user")
		return
	}
	h.record(r, user, audit.ActionUpdate, after.ID, after.String(), before, after)
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	userID := chi.URLParam(r, "userID")
	before, err := h.Service.Get(r.Context(), user.TenantID, userID)
	if err != nil {
		shared.WriteError(w, r, err, "user_delete_failed", "failed to deactivate user")
		return
	}
	if err := h.Service.Deactivate(r.Context(), user, userID); err != nil {
		shared.WriteError(w, r, err, "user_delete_failed", "failed to deactivate user")
		return
	}
	h.record(r, user, audit.ActionDelete, userID, before.String(), before, nil)
	api.Success(w, map[string]string{"status": users.StatusInactive}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDirectReports(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	managerID := chi.URLParam(r, "userID")
	if managerID != user.UserID && user.RoleName != auth.RoleHR && !auth.IsAdmin(user.RoleName) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}
	reports, err := h.Service.DirectReports(r.Context(), user.TenantID, managerID)
	if err != nil {
		shared.WriteError(w, r, err, "user_reports_failed", "failed to list direct reports")
		return
	}
	if reports == nil {
		reports = []users.User{}
	}
	api.Success(w, reports, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	profile, err := h.Service.Get(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		shared.WriteError(w, r, err, "profile_failed", "failed to load profile")
		return
	}
	api.Success(w, map[string]any{
		"user":            profile,
		"profileComplete": profile.ProfileComplete(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload userPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, after, err := h.Service.UpdateProfile(r.Context(), user.TenantID, user.UserID, in)
	if err != nil {
		shared.WriteError(w, r, err, "profile_update_failed", "failed to update profile")
		return
	}
	h.record(r, user, audit.ActionUpdate, after.ID, after.String(), before, after)
	api.Success(w, map[string]any{
		"user":            after,
		"profileComplete": after.ProfileComplete(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSalaryLevels(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	levels, err := h.Service.SalaryLevels(r.Context())
	if err != nil {
		shared.WriteError(w, r, err, "salary_levels_failed", "failed to list salary levels")
		return
	}
	api.Success(w, levels, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityID, repr string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), audit.Entry{
		TenantID:       user.TenantID,
		ActorID:        user.UserID,
		ImpersonatorID: user.ImpersonatorID,
		Action:         action,
		EntityType:     audit.EntityUser,
		EntityID:       entityID,
		ObjectRepr:     repr,
		Before:         before,
		After:          after,
	}); err != nil {
		slog.Warn("audit failed", "action", action, "entity", audit.EntityUser, "err", err)
	}
}
