package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"persona-gateway/internal/audit"
	"persona-gateway/internal/docustore"
	"persona-gateway/internal/ledger"
	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
)

// PurchaseErrorKind classifies purchase failures. Callers must be able to
// tell a rejected charge from a charge whose access grant failed; the two
// demand opposite user guidance.
type PurchaseErrorKind string

const (
	// KindInsufficientFunds: the ledger rejected the charge for lack of
	// funds. Nothing was moved.
	KindInsufficientFunds PurchaseErrorKind = "insufficient_funds"
	// KindPaymentFailed: the charge did not go through for any other
	// reason. Nothing was moved.
	KindPaymentFailed PurchaseErrorKind = "payment_failed"
	// KindAccessGrantFailed: the charge went through but the paid-users
	// append did not. Money moved without access; TxHash identifies the
	// charge for reconciliation.
	KindAccessGrantFailed PurchaseErrorKind = "access_grant_failed"
	// KindAlreadyUnlocked: the buyer already has access (creator, paid, or
	// eligible by score). Refused before any charge.
	KindAlreadyUnlocked PurchaseErrorKind = "already_unlocked"
)

// PurchaseError is the typed failure of the unlock protocol.
type PurchaseError struct {
	Kind     PurchaseErrorKind
	RewardID id.RewardID
	TxHash   string
	cause    error
}

func (e *PurchaseError) Error() string {
	msg := fmt.Sprintf("purchase reward %s: %s", e.RewardID, e.Kind)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *PurchaseError) Unwrap() error { return e.cause }

// Receipt is the outcome of a completed purchase.
type Receipt struct {
	RewardID    id.RewardID `json:"rewardId"`
	TxHash      string      `json:"txHash"`
	AmountMicro int64       `json:"amountMicro"`
	Denom       string      `json:"denom"`
}

// grantAttempts bounds the access-grant retry loop. Each attempt re-reads
// the document, so concurrent purchases of the same reward converge.
const grantAttempts = 3

// Purchase runs the two-phase unlock: charge the buyer, then append them to
// the reward's paid-users list.
//
// The phases are not atomic (the ledger transfer is irreversible), so the
// ordering and failure handling are strict:
//   - before charging, the buyer's access is re-checked; anyone already
//     unlocked is refused without a ledger call;
//   - a failed charge ends the protocol with nothing moved;
//   - a failed grant after a successful charge is KindAccessGrantFailed,
//     carrying the tx hash. It is never silently swallowed.
func (s *Service) Purchase(ctx context.Context, buyer id.AccountID, rewardID id.RewardID) (Receipt, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "reward.purchase",
		trace.WithAttributes(attribute.String("reward_id", rewardID.String())))
	defer span.End()

	reward, err := s.loadReward(ctx, rewardID)
	if err != nil {
		return Receipt{}, err
	}
	if reward.Price == "" {
		return Receipt{}, dErrors.New(dErrors.CodeValidation, "reward is not purchasable")
	}
	amount, err := ledger.ParseDisplayAmount(reward.Price)
	if err != nil || amount <= 0 {
		return Receipt{}, dErrors.New(dErrors.CodeValidation, "reward has an invalid price")
	}

	// Hardened pre-check: never charge an account that would gain nothing.
	if reward.AccessibleBy(buyer, s.currentScore(ctx, buyer)) {
		return Receipt{}, s.failPurchase(ctx, &PurchaseError{Kind: KindAlreadyUnlocked, RewardID: rewardID}, buyer)
	}

	// Phase one: the charge. Irreversible once the chain accepts it.
	result, err := s.ledger.Transfer(ctx, buyer, reward.CreatorAddress, amount, s.denom)
	if err != nil {
		kind := KindPaymentFailed
		if ledger.IsInsufficientFunds(err.Error()) {
			kind = KindInsufficientFunds
		}
		return Receipt{}, s.failPurchase(ctx, &PurchaseError{Kind: kind, RewardID: rewardID, cause: err}, buyer)
	}
	if result.Code != 0 {
		kind := KindPaymentFailed
		if ledger.IsInsufficientFunds(result.RawLog) {
			kind = KindInsufficientFunds
		}
		return Receipt{}, s.failPurchase(ctx, &PurchaseError{
			Kind:     kind,
			RewardID: rewardID,
			cause:    fmt.Errorf("transfer rejected with code %d: %s", result.Code, result.RawLog),
		}, buyer)
	}

	// Phase two: the grant. From here on every failure must surface with
	// the tx hash attached.
	if err := s.grantAccess(ctx, buyer, rewardID); err != nil {
		return Receipt{}, s.failPurchase(ctx, &PurchaseError{
			Kind:     KindAccessGrantFailed,
			RewardID: rewardID,
			TxHash:   result.TxHash,
			cause:    err,
		}, buyer)
	}

	s.emitAudit(ctx, audit.Event{
		Account: buyer,
		Action:  audit.ActionRewardPurchased,
		Subject: rewardID.String(),
		Outcome: audit.OutcomeSuccess,
		Detail:  result.TxHash,
	})
	if s.metrics != nil {
		s.metrics.Purchases.Inc()
		s.metrics.ObservePurchase(start)
	}
	s.logger.InfoContext(ctx, "reward purchased",
		slog.String("reward_id", rewardID.String()),
		slog.String("buyer", buyer.String()),
		slog.String("tx_hash", result.TxHash),
		slog.Int64("amount_micro", amount))

	return Receipt{
		RewardID:    rewardID,
		TxHash:      result.TxHash,
		AmountMicro: amount,
		Denom:       s.denom,
	}, nil
}

// grantAccess appends buyer to the reward's paid users. The write goes
// through the non-owner Update path and retries with a fresh read so a
// concurrent purchase of the same reward does not clobber another buyer's
// grant.
func (s *Service) grantAccess(ctx context.Context, buyer id.AccountID, rewardID id.RewardID) error {
	var lastErr error
	for attempt := 1; attempt <= grantAttempts; attempt++ {
		reward, err := s.loadReward(ctx, rewardID)
		if err != nil {
			lastErr = err
			continue
		}
		if reward.HasPaid(buyer) {
			return nil
		}
		if err := reward.RecordPayment(buyer); err != nil {
			return err
		}
		data, err := json.Marshal(reward)
		if err != nil {
			return err
		}
		if err := s.docs.Update(ctx, buyer, docustore.CollectionRewards, rewardID.String(), string(data)); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// failPurchase audits and counts a purchase failure, then returns the error.
func (s *Service) failPurchase(ctx context.Context, perr *PurchaseError, buyer id.AccountID) error {
	detail := string(perr.Kind)
	if perr.TxHash != "" {
		detail += " tx=" + perr.TxHash
	}
	s.emitAudit(ctx, audit.Event{
		Account: buyer,
		Action:  audit.ActionPurchaseFailed,
		Subject: perr.RewardID.String(),
		Outcome: audit.OutcomeFailure,
		Detail:  detail,
	})
	if s.metrics != nil {
		s.metrics.PurchaseFailures.WithLabelValues(string(perr.Kind)).Inc()
	}
	if perr.Kind == KindAccessGrantFailed {
		s.logger.ErrorContext(ctx, "charge succeeded but access grant failed",
			slog.String("reward_id", perr.RewardID.String()),
			slog.String("buyer", buyer.String()),
			slog.String("tx_hash", perr.TxHash),
			slog.String("error", perr.Error()))
	}
	return perr
}
