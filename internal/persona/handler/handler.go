// Package handler wires persona endpoints to the aggregation service.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"persona-gateway/internal/persona/models"
	"persona-gateway/internal/persona/service"
	"persona-gateway/internal/proof"
	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
	"persona-gateway/pkg/platform/httputil"
	"persona-gateway/pkg/platform/sentinel"
	"persona-gateway/pkg/requestcontext"
)

// Service defines the persona operations the handler depends on.
type Service interface {
	Get(ctx context.Context, account id.AccountID) (service.PersonaView, error)
	RecordVerification(ctx context.Context, account id.AccountID, key id.ProviderKey, supplied []proof.Proof) (models.PersonaDocument, error)
	Providers() []proof.ProviderInfo
}

// Handler wires persona endpoints to the persona service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a persona handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated persona endpoints. The public provider
// catalog (HandleProviders) is mounted separately, outside the auth group.
func (h *Handler) Register(r chi.Router) {
	r.Get("/persona", h.HandleGet)
	r.Post("/persona/verifications", h.HandleRecordVerification)
}

// HandleGet handles GET /persona requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account := requestcontext.Account(ctx)
	if account == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	view, err := h.service.Get(ctx, account)
	if err != nil {
		h.logger.ErrorContext(ctx, "persona read failed",
			"request_id", requestcontext.RequestID(ctx),
			"account", account,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleRecordVerification handles POST /persona/verifications requests. The
// call blocks for the duration of the external verification session.
func (h *Handler) HandleRecordVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	account := requestcontext.Account(ctx)
	if account == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RecordVerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	persona, err := h.service.RecordVerification(ctx, account, req.ProviderKey(), req.Proofs)
	if err != nil {
		// User aborted the session: nothing changed, nothing failed.
		if errors.Is(err, sentinel.ErrCancelled) {
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
			return
		}
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestID,
			"account", account,
			"provider", req.Provider,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification recorded",
		"request_id", requestID,
		"account", account,
		"provider", req.Provider,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, persona)
}

// HandleProviders handles GET /providers requests. Public catalog, no auth.
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"providers": h.service.Providers()})
}
