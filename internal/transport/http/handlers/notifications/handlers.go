package notificationshandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/platform/realtime"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

// ReminderRunner runs the reminder sweep for one tenant on demand.
type ReminderRunner interface {
	RunReminders(ctx context.Context, tenantID string) (any, error)
}

type Handler struct {
	Service   *notifications.Service
	Perms     middleware.PermissionStore
	Audit     *audit.Service
	Hub       *realtime.Hub
	Secret    string
	Sessions  middleware.SessionChecker
	Reminders ReminderRunner
}

func NewHandler(service *notifications.Service, perms middleware.PermissionStore, auditSvc *audit.Service, hub *realtime.Hub, secret string, sessions middleware.SessionChecker) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Hub: hub, Secret: secret, Sessions: sessions}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/unread-count", h.handleUnreadCount)
		r.Post("/read-all", h.handleMarkAllRead)
		r.Post("/{notificationID}/read", h.handleMarkRead)
		r.Get("/preferences", h.handlePreferences)
		r.Put("/preferences", h.handleUpdatePreferences)
		r.With(middleware.RequirePermission(auth.PermNotificationsConfig, h.Perms)).Get("/settings", h.handleSettings)
		r.With(middleware.RequirePermission(auth.PermNotificationsConfig, h.Perms)).Put("/settings", h.handleUpdateSettings)
		r.With(middleware.RequirePermission(auth.PermNotificationsConfig, h.Perms)).Post("/reminders/run", h.handleRunReminders)
		r.Get("/stream", h.handleStream)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter := notifications.ListFilter{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Type:       r.URL.Query().Get("type"),
	}
	page := shared.ParsePagination(r, 100, 500)
	total, err := h.Service.Count(r.Context(), user.TenantID, user.UserID, filter)
	if err != nil {
		slog.Warn("notification count failed", "err", err)
	}

	items, err := h.Service.List(r.Context(), user.TenantID, user.UserID, filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_list_failed", "failed to list notifications", middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []notifications.Notification{}
	}

	page.WriteTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	count, err := h.Service.UnreadCount(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_count_failed", "failed to count notifications", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]int{"count": count}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	if err := h.Service.MarkRead(r.Context(), user.TenantID, user.UserID, notificationID); err != nil {
		shared.WriteError(w, r, err, "notification_update_failed", "failed to update notification")
		return
	}

	api.Success(w, map[string]string{"status": "read"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	updated, err := h.Service.MarkAllRead(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_update_failed", "failed to update notifications", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]int64{"updated": updated}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	prefs, err := h.Service.GetPreferences(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "preferences_failed", "failed to load preferences", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, prefs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload notifications.Preferences
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Enum("reminderFrequency", payload.ReminderFrequency, notifications.Frequencies, "must be DAILY, WEEKLY or MONTHLY")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	prefs, err := h.Service.UpdatePreferences(r.Context(), user.TenantID, user.UserID, payload)
	if err != nil {
		shared.WriteError(w, r, err, "preferences_failed", "failed to update preferences")
		return
	}
	api.Success(w, prefs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	settings, err := h.Service.GetSettings(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to load settings", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload notifications.Settings
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Email("emailFrom", payload.EmailFrom)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, err := h.Service.GetSettings(r.Context(), user.TenantID)
	if err != nil {
		slog.Warn("settings lookup failed", "err", err)
	}
	if err := h.Service.UpdateSettings(r.Context(), user.TenantID, payload); err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to update settings", middleware.GetRequestID(r.Context()))
		return
	}
	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), audit.Entry{
			TenantID:       user.TenantID,
			ActorID:        user.UserID,
			ImpersonatorID: user.ImpersonatorID,
			Action:         audit.ActionUpdate,
			EntityType:     audit.EntityTenantSettings,
			EntityID:       user.TenantID,
			ObjectRepr:     "Email settings",
			Before:         before,
			After:          payload,
		}); err != nil {
			slog.Warn("audit tenant settings failed", "err", err)
		}
	}
	api.Success(w, payload, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRunReminders(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if h.Reminders == nil {
		api.Fail(w, http.StatusServiceUnavailable, "reminders_unavailable", "reminder job is not configured", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Reminders.RunReminders(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "reminders_failed", "failed to send reminders", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

// handleStream upgrades to a websocket. Browsers cannot set headers on the
// handshake, so the token may also come from the query string.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		token := r.URL.Query().Get("token")
		claims, err := auth.ParseToken(h.Secret, token)
		if token == "" || err != nil {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
			return
		}
		if h.Sessions != nil {
			active, err := h.Sessions.SessionActive(r.Context(), claims)
			if err != nil || !active {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "session expired", middleware.GetRequestID(r.Context()))
				return
			}
		}
		user = claims.Context()
	}
	if h.Hub == nil {
		api.Fail(w, http.StatusServiceUnavailable, "stream_unavailable", "live updates are disabled", middleware.GetRequestID(r.Context()))
		return
	}
	h.Hub.Serve(w, r, user.TenantID, user.UserID)
}
