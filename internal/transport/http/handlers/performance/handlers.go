package performancehandler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"pmds/internal/domain/auth"
	"pmds/internal/domain/performance"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

type Handler struct {
	Service        *performance.Service
	Perms          middleware.PermissionStore
	Idempotency    *middleware.IdempotencyStore
	MaxUploadBytes int64
}

func NewHandler(service *performance.Service, perms middleware.PermissionStore, idempotency *middleware.IdempotencyStore, maxUploadBytes int64) *Handler {
	return &Handler{Service: service, Perms: perms, Idempotency: idempotency, MaxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermAgreementsRead, h.Perms)).Get("/dashboard", h.handleDashboard)
	r.With(middleware.RequirePermission(auth.PermAgreementsRead, h.Perms)).Get("/gaf-catalogue", h.handleGAFCatalogue)
	r.With(middleware.RequireAnyPermission(h.Perms, auth.PermAgreementsRead, auth.PermReviewsRead)).Get("/evidence/*", h.handleDownloadEvidence)

	r.Route("/agreements", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAgreementsRead, h.Perms)).Get("/", h.handleListAgreements)
		r.With(middleware.RequirePermission(auth.PermAgreementsWrite, h.Perms)).Post("/", h.handleCreateAgreement)
		r.With(middleware.RequirePermission(auth.PermAgreementsExport, h.Perms)).Get("/export.xlsx", h.handleExportXLSX)
		r.With(middleware.RequirePermission(auth.PermAgreementsRead, h.Perms)).Get("/{id}", h.handleGetAgreement)
		r.With(middleware.RequirePermission(auth.PermAgreementsWrite, h.Perms)).Put("/{id}", h.handleUpdateAgreement)
		r.With(middleware.RequirePermission(auth.PermAgreementsWrite, h.Perms)).Delete("/{id}", h.handleDeleteAgreement)
		r.With(middleware.RequirePermission(auth.PermAgreementsWrite, h.Perms)).Post("/{id}/kras", h.handleAddKRA)
		r.With(middleware.RequirePermission(auth.PermAgreementsWrite, h.Perms)).Put("/{id}/kras/{kraID}", h.handleUpdateKRA)
		r.With(middleware.RequirePermission(auth.PermAgreementsWrite, h.Perms)).Delete("/{id}/kras/{kraID}", h.handleDeleteKRA)
		r.With(middleware.RequirePermission(auth.PermAgreementsWrite, h.Perms)).Post("/{id}/kras/{kraID}/evidence", h.handleKRAEvidence)
		r.With(middleware.RequirePermission(auth.PermAgreementsWrite, h.Perms)).Put("/{id}/gafs", h.handleUpdateGAFs)
		r.With(middleware.RequirePermission(auth.PermAgreementsRead, h.Perms)).Post("/{id}/transitions/{action}", h.handleAgreementTransition)
		r.With(middleware.RequirePermission(auth.PermAgreementsExport, h.Perms)).Get("/{id}/export.pdf", h.handleExportPDF)
	})

	r.Route("/reviews", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/", h.handleListReviews)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite, h.Perms)).Post("/", h.handleCreateReview)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/{id}", h.handleGetReview)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite, h.Perms)).Put("/{id}", h.handleUpdateReview)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite, h.Perms)).Delete("/{id}", h.handleDeleteReview)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Put("/{id}/ratings", h.handleUpdateRatings)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Post("/{id}/ratings/{ratingID}/evidence", h.handleRatingEvidence)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Post("/{id}/transitions/{action}", h.handleReviewTransition)
	})

	r.Route("/feedback", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermFeedbackRead, h.Perms)).Get("/", h.handleListFeedback)
		r.With(middleware.RequirePermission(auth.PermFeedbackWrite, h.Perms)).Post("/", h.handleGiveFeedback)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	dash, err := h.Service.Dashboard(r.Context(), user)
	if err != nil {
		shared.WriteError(w, r, err, "dashboard_failed", "failed to build dashboard")
		return
	}
	api.Success(w, dash, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGAFCatalogue(w http.ResponseWriter, r *http.Request) {
	api.Success(w, performance.GAFCatalogue(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadEvidence(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	key := chi.URLParam(r, "*")
	body, err := h.Service.OpenEvidence(r.Context(), user, key)
	if err != nil {
		shared.WriteError(w, r, err, "evidence_failed", "failed to open evidence")
		return
	}
	defer body.Close()

	api.Attachment(w, mime.TypeByExtension(path.Ext(key)), path.Base(key))
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("evidence download failed", "key", key, "err", err)
	}
}

// readUpload turns the multipart "file" field into a service upload. It
// writes the error response itself.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (performance.Upload, func(), bool) {
	up, err := shared.ReadUpload(w, r, "file", h.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, shared.ErrUploadTooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "upload_too_large", err.Error(), middleware.GetRequestID(r.Context()))
			return performance.Upload{}, nil, false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_upload", "a file field is required", middleware.GetRequestID(r.Context()))
		return performance.Upload{}, nil, false
	}
	closer := func() {
		if err := up.File.Close(); err != nil {
			slog.Warn("upload close failed", "err", err)
		}
	}
	return performance.Upload{
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Size:        up.Size,
		Body:        up.File,
	}, closer, true
}
