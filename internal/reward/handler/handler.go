// Package handler wires reward endpoints to the reward service.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"persona-gateway/internal/reward/service"
	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
	"persona-gateway/pkg/platform/httputil"
	"persona-gateway/pkg/requestcontext"
)

// Service defines the reward operations the handler depends on.
type Service interface {
	Create(ctx context.Context, creator id.AccountID, params service.CreateParams, now time.Time) (service.RewardView, error)
	List(ctx context.Context, account id.AccountID) ([]service.RewardView, error)
	ListMine(ctx context.Context, account id.AccountID) ([]service.RewardView, error)
	Get(ctx context.Context, account id.AccountID, rewardID id.RewardID) (service.RewardView, error)
	Delete(ctx context.Context, account id.AccountID, rewardID id.RewardID) error
	Purchase(ctx context.Context, buyer id.AccountID, rewardID id.RewardID) (service.Receipt, error)
}

// Handler wires reward endpoints to the reward service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a reward handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts reward endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/rewards", h.HandleCreate)
	r.Get("/rewards", h.HandleList)
	r.Get("/rewards/mine", h.HandleListMine)
	r.Get("/rewards/{rewardID}", h.HandleGet)
	r.Delete("/rewards/{rewardID}", h.HandleDelete)
	r.Post("/rewards/{rewardID}/purchase", h.HandlePurchase)
}

// HandleCreate handles POST /rewards requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	account, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRewardRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Create(ctx, account, req.Params(), requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "reward creation failed",
			"request_id", requestID,
			"account", account,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, view)
}

// HandleList handles GET /rewards requests (the marketplace).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	views, err := h.service.List(ctx, account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"rewards": views})
}

// HandleListMine handles GET /rewards/mine requests.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	views, err := h.service.ListMine(ctx, account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"rewards": views})
}

// HandleGet handles GET /rewards/{rewardID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}
	rewardID, ok := h.rewardID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(ctx, account, rewardID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleDelete handles DELETE /rewards/{rewardID} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}
	rewardID, ok := h.rewardID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, account, rewardID); err != nil {
		h.logger.ErrorContext(ctx, "reward deletion failed",
			"request_id", requestcontext.RequestID(ctx),
			"account", account,
			"reward_id", rewardID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePurchase handles POST /rewards/{rewardID}/purchase requests.
func (h *Handler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	account, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}
	rewardID, ok := h.rewardID(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.Purchase(ctx, account, rewardID)
	if err != nil {
		var perr *service.PurchaseError
		if errors.As(err, &perr) {
			h.writePurchaseError(w, ctx, perr, account)
			return
		}
		h.logger.ErrorContext(ctx, "purchase failed",
			"request_id", requestID,
			"account", account,
			"reward_id", rewardID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "reward purchased",
		"request_id", requestID,
		"account", account,
		"reward_id", rewardID,
		"tx_hash", receipt.TxHash,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

// writePurchaseError maps each purchase failure kind to its own status and
// wire shape. The access-grant case includes the tx hash so the client can
// reference the charge in a support flow.
func (h *Handler) writePurchaseError(w http.ResponseWriter, ctx context.Context, perr *service.PurchaseError, account id.AccountID) {
	body := map[string]string{"error": string(perr.Kind)}
	status := http.StatusInternalServerError
	switch perr.Kind {
	case service.KindAlreadyUnlocked:
		status = http.StatusConflict
	case service.KindInsufficientFunds:
		status = http.StatusPaymentRequired
	case service.KindPaymentFailed:
		status = http.StatusBadGateway
	case service.KindAccessGrantFailed:
		body["txHash"] = perr.TxHash
		h.logger.ErrorContext(ctx, "purchase charged without access grant",
			"request_id", requestcontext.RequestID(ctx),
			"account", account,
			"reward_id", perr.RewardID,
			"tx_hash", perr.TxHash,
		)
	}
	httputil.WriteJSON(w, status, body)
}

func (h *Handler) requireAccount(w http.ResponseWriter, ctx context.Context) (id.AccountID, bool) {
	account := requestcontext.Account(ctx)
	if account == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return account, true
}

func (h *Handler) rewardID(w http.ResponseWriter, r *http.Request) (id.RewardID, bool) {
	rewardID, err := id.ParseRewardID(chi.URLParam(r, "rewardID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid reward id"))
		return "", false
	}
	return rewardID, true
}
