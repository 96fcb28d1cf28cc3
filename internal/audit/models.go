package audit

import (
	"time"

	"github.com/google/uuid"

	id "persona-gateway/pkg/domain"
)

// Actions recorded by the gateway. The persona side covers the verification
// pipeline, the reward side covers the unlock protocol. Purchase failures
// are first-class events because a charge without an access grant is the one
// state operators must be able to reconstruct.
const (
	ActionVerificationRecorded = "persona.verification_recorded"
	ActionScoreMarkedStale     = "persona.score_stale"
	ActionRewardCreated        = "reward.created"
	ActionRewardDeleted        = "reward.deleted"
	ActionRewardPurchased      = "reward.purchased"
	ActionPurchaseFailed       = "reward.purchase_failed"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Account   id.AccountID
	Action    string
	Subject   string
	Outcome   string
	Detail    string
	RequestID string
}
