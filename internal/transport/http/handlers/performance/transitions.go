package performancehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pmds/internal/domain/auth"
	"pmds/internal/domain/performance"
	"pmds/internal/domain/workflow"
	"pmds/internal/transport/http/api"
	"pmds/internal/transport/http/middleware"
	"pmds/internal/transport/http/shared"
)

type transitionFunc func(ctx context.Context, user auth.UserContext, id string, req performance.TransitionRequest) (any, error)

func (h *Handler) handleAgreementTransition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "agreements.transition", func(ctx context.Context, user auth.UserContext, id string, req performance.TransitionRequest) (any, error) {
		return h.Service.TransitionAgreement(ctx, user, id, req)
	})
}

func (h *Handler) handleReviewTransition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reviews.transition", func(ctx context.Context, user auth.UserContext, id string, req performance.TransitionRequest) (any, error) {
		return h.Service.TransitionReview(ctx, user, id, req)
	})
}

// transition fires a workflow action. A repeated Idempotency-Key with the
// same body replays the first response instead of firing again.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, endpoint string, fire transitionFunc) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	id := chi.URLParam(r, "id")
	action := workflow.Action(chi.URLParam(r, "action"))
	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	var req performance.TransitionRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}
	req.Action = action

	scope := middleware.IdempotencyScope{
		TenantID: user.TenantID,
		UserID:   user.UserID,
		Endpoint: endpoint,
		Key:      r.Header.Get("Idempotency-Key"),
	}
	requestHash := middleware.RequestHash(append([]byte(id+"|"+string(action)+"|"), body...))
	if scope.Key != "" {
		stored, found, err := h.Idempotency.Check(r.Context(), scope, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "endpoint", endpoint, "err", err)
		}
		if found {
			api.Success(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
			return
		}
	}

	result, err := fire(r.Context(), user, id, req)
	if err != nil {
		shared.WriteError(w, r, err, "transition_failed", "failed to apply transition")
		return
	}

	if scope.Key != "" {
		encoded, err := json.Marshal(result)
		if err != nil {
			slog.Warn("idempotency response marshal failed", "err", err)
		} else if err := h.Idempotency.Save(r.Context(), scope, requestHash, encoded); err != nil {
			slog.Warn("idempotency save failed", "endpoint", endpoint, "err", err)
		}
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}
