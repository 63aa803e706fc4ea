package authhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/users"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

const defaultBaseURL = "http://localhost:8080"

// EmailSender delivers mail off the request path.
type EmailSender interface {
	SendEmail(ctx context.Context, tenantID, from, to, subject, body string, sent func(context.Context))
}

type Handler struct {
	Service        *auth.Service
	JWTSecret      string
	Users          *users.Service
	Perms          middleware.PermissionStore
	Audit          *audit.Service
	Mailer         EmailSender
	EmailFrom      string
	BaseURL        string
	LoginRateLimit int
}

func NewHandler(service *auth.Service, secret string, usersSvc *users.Service, auditSvc *audit.Service, mailer EmailSender, emailFrom, baseURL string) *Handler {
	return &Handler{
		Service:        service,
		JWTSecret:      secret,
		Users:          usersSvc,
		Perms:          service,
		Audit:          auditSvc,
		Mailer:         mailer,
		EmailFrom:      emailFrom,
		BaseURL:        baseURL,
		LoginRateLimit: 10,
	}
}

// loginRequest takes either an email or a username.
type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

func (p loginRequest) login() string {
	if email := strings.TrimSpace(p.Email); email != "" {
		return email
	}
	return strings.TrimSpace(p.Username)
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(h.LoginRateLimit, time.Minute, middleware.WithKeyFunc(middleware.LoginKey()))).Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.Post("/refresh", h.HandleRefresh)
		r.With(middleware.RateLimit(h.LoginRateLimit, time.Minute, middleware.WithKeyFunc(middleware.LoginKey("email")))).Post("/request-reset", h.HandleRequestReset)
		r.Post("/reset", h.HandleResetPassword)
		r.Post("/mfa/setup", h.HandleMFASetup)
		r.Post("/mfa/enable", h.HandleMFAEnable)
		r.Post("/mfa/disable", h.HandleMFADisable)
		r.Get("/me", h.HandleMe)
		r.Post("/impersonate/stop", h.HandleStopImpersonation)
		r.With(middleware.RequirePermission(auth.PermUsersImpersonate, h.Perms)).Post("/impersonate/{userID}", h.HandleStartImpersonation)
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}

	if payload.login() == "" || payload.Password == "" {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "email", Reason: "email or username and password are required"}})
		return
	}
	user, err := h.Service.Authenticate(r.Context(), payload.login(), payload.Password, payload.MFACode)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, auth.ErrMFARequired):
		api.Fail(w, http.StatusUnauthorized, "mfa_required", "mfa code required", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, auth.ErrMFAInvalid):
		api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		slog.Error("login failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to authenticate", middleware.GetRequestID(r.Context()))
		return
	}

	session, err := h.Service.IssueSession(r.Context(), user, "")
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, auth.UserContext{UserID: user.ID, TenantID: user.TenantID}, audit.ActionLogin, user.ID, payload.login())

	api.Success(w, map[string]any{
		"token": session.Token,
		"user":  map[string]string{"id": user.ID, "tenantId": user.TenantID, "roleId": user.RoleID, "role": user.RoleName},
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := middleware.GetUser(r.Context()); ok {
		if err := h.Service.Logout(r.Context(), user); err != nil {
			slog.Warn("logout session revoke failed", "userId", user.UserID, "err", err)
		}
		h.record(r, user, audit.ActionLogout, user.UserID, "")
	}
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	claims, err := auth.ParseToken(h.JWTSecret, token)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	next, err := h.Service.Refresh(r.Context(), claims)
	if errors.Is(err, auth.ErrSessionExpired) {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "session expired", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "session_error", "failed to rotate session", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"token": next}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	profile, err := h.Users.Get(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		shared.WriteError(w, r, err, "me_failed", "failed to load current user")
		return
	}
	permissions, err := h.Service.Permissions(r.Context(), user.RoleID)
	if err != nil {
		shared.WriteError(w, r, err, "me_failed", "failed to load permissions")
		return
	}
	api.Success(w, map[string]any{
		"user":            profile,
		"role":            user.RoleName,
		"permissions":     permissions,
		"impersonatorId":  user.ImpersonatorID,
		"profileComplete": profile.ProfileComplete(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	account := user.UserID
	if profile, err := h.Users.Get(r.Context(), user.TenantID, user.UserID); err == nil {
		account = profile.Email
	}
	key, err := h.Service.SetupMFA(r.Context(), user.UserID, account)
	if errors.Is(err, auth.ErrMFAUnavailable) {
		api.Fail(w, http.StatusBadRequest, "mfa_unavailable", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to generate mfa secret", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"secret": key.Secret(), "otpauthUrl": key.URL()}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.setMFA(w, r, true)
}

func (h *Handler) HandleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.setMFA(w, r, false)
}

func (h *Handler) setMFA(w http.ResponseWriter, r *http.Request, enabled bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload mfaCodeRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	err := h.Service.SetMFA(r.Context(), user.UserID, payload.Code, enabled)
	switch {
	case errors.Is(err, auth.ErrMFAUnavailable):
		api.Fail(w, http.StatusBadRequest, "mfa_unavailable", err.Error(), middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, auth.ErrMFAInvalid):
		api.Fail(w, http.StatusBadRequest, "mfa_invalid", "invalid mfa code", middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		api.Fail(w, http.StatusInternalServerError, "mfa_update_failed", "failed to update mfa", middleware.GetRequestID(r.Context()))
		return
	}

	status := "disabled"
	if enabled {
		status = "enabled"
	}
	api.Success(w, map[string]string{"status": status}, middleware.GetRequestID(r.Context()))
}

// HandleRequestReset always answers the same way so the endpoint cannot be
// used to discover accounts.
func (h *Handler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	var payload resetRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}

	email := strings.TrimSpace(payload.Email)
	token, err := h.Service.RequestPasswordReset(r.Context(), email)
	if err != nil {
		slog.Warn("password reset request failed", "err", err)
	}
	if token != "" && h.Mailer != nil {
		link := buildResetLink(h.BaseURL, token)
		h.Mailer.SendEmail(r.Context(), "", h.EmailFrom, email, "Password reset", buildResetEmailMessage(link, auth.PasswordResetTTL), nil)
	}
	api.Success(w, map[string]string{"status": "reset_requested"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload resetPasswordRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("token", payload.Token, "is required")
	if err := auth.ValidatePassword(payload.NewPassword); err != nil {
		v.Add("newPassword", err.Error())
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if err := h.Service.ResetPassword(r.Context(), payload.Token, payload.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "newPassword", Reason: err.Error()}})
		case errors.Is(err, auth.ErrResetTokenInvalid):
			api.Fail(w, http.StatusBadRequest, "invalid_token", err.Error(), middleware.GetRequestID(r.Context()))
		default:
			shared.WriteError(w, r, err, "reset_failed", "failed to reset password")
		}
		return
	}
	api.Success(w, map[string]string{"status": "password_reset"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleStartImpersonation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	targetID := chi.URLParam(r, "userID")
	session, err := h.Service.StartImpersonation(r.Context(), user, targetID)
	if err != nil {
		shared.WriteError(w, r, err, "impersonation_failed", "failed to switch user")
		return
	}
	h.record(r, user, audit.ActionImpersonate, targetID, "start")
	api.Success(w, map[string]any{
		"token":          session.Token,
		"user":           map[string]string{"id": session.User.ID, "role": session.User.RoleName},
		"impersonatorId": user.UserID,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleStopImpersonation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	session, err := h.Service.StopImpersonation(r.Context(), user)
	if err != nil {
		shared.WriteError(w, r, err, "impersonation_failed", "failed to switch back")
		return
	}
	h.record(r, user, audit.ActionImpersonate, user.UserID, "stop")
	api.Success(w, map[string]any{
		"token": session.Token,
		"user":  map[string]string{"id": session.User.ID, "role": session.User.RoleName},
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityID, repr string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), audit.Entry{
		TenantID:       user.TenantID,
		ActorID:        user.UserID,
		ImpersonatorID: user.ImpersonatorID,
		Action:         action,
		EntityType:     audit.EntitySession,
		EntityID:       entityID,
		ObjectRepr:     repr,
	}); err != nil {
		slog.Warn("audit failed", "action", action, "err", err)
	}
}

// buildResetLink points at the frontend reset page. An unusable base URL
// falls back to the local default.
func buildResetLink(baseURL, token string) string {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		parsed, _ = url.Parse(defaultBaseURL)
	}
	parsed.Path = path.Join("/", parsed.Path, "reset")
	q := parsed.Query()
	q.Set("token", token)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func buildResetEmailMessage(link string, ttl time.Duration) string {
	hours := int(ttl.Hours())
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("A password reset was requested for your account.\n\nOpen the link below to choose a new password:\n%s\n\nThe link expires in %d hour(s). If you did not ask for this, ignore this email.\n", link, hours)
}
