// Package models defines the reward aggregate: a score- or payment-gated
// piece of content created by a community account.
package models

import (
	"strings"
	"time"

	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
)

// RewardDocument is persisted under a timestamp-derived ID in the rewards
// collection.
//
// Invariants:
//   - CreatorAddress is immutable after creation.
//   - PaidUsers only grows (append-only, no removal) and never contains
//     duplicates. Only the unlock coordinator appends to it.
//   - RequiredScore is 0-100.
type RewardDocument struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	ImageURL       string         `json:"imageUrl"`
	RequiredScore  int            `json:"requiredScore"`
	Value          string         `json:"value"`
	Price          string         `json:"price"`
	CreatorAddress id.AccountID   `json:"creatorAddress"`
	CreatedAt      time.Time      `json:"createdAt"`
	PaidUsers      []id.AccountID `json:"paidUsers,omitempty"`
}

// NewReward validates and constructs a reward document.
func NewReward(creator id.AccountID, title, description, imageURL, value, price string, requiredScore int, now time.Time) (*RewardDocument, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reward title cannot be empty")
	}
	if len(title) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reward title must be 128 characters or less")
	}
	if description == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reward description cannot be empty")
	}
	if requiredScore < 0 || requiredScore > 100 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "required score must be between 0 and 100")
	}
	if creator.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reward creator is required")
	}
	return &RewardDocument{
		Title:          title,
		Description:    description,
		ImageURL:       strings.TrimSpace(imageURL),
		RequiredScore:  requiredScore,
		Value:          strings.TrimSpace(value),
		Price:          strings.TrimSpace(price),
		CreatorAddress: creator,
		CreatedAt:      now,
	}, nil
}

// IsCreator reports whether account created this reward.
func (r *RewardDocument) IsCreator(account id.AccountID) bool {
	return account == r.CreatorAddress
}

// HasPaid reports whether account already purchased access.
func (r *RewardDocument) HasPaid(account id.AccountID) bool {
	for _, paid := range r.PaidUsers {
		if paid == account {
			return true
		}
	}
	return false
}

// AccessibleBy computes eligibility: the creator, anyone whose persona score
// meets the threshold (>= comparison, no rounding ambiguity), and anyone who
// purchased access. Pure, no side effects.
func (r *RewardDocument) AccessibleBy(account id.AccountID, score int) bool {
	return r.IsCreator(account) || score >= r.RequiredScore || r.HasPaid(account)
}

// RecordPayment appends account to PaidUsers. Appending an account that is
// already present is an invariant violation: the coordinator pre-checks
// before charging, so reaching this is a bug.
func (r *RewardDocument) RecordPayment(account id.AccountID) error {
	if r.HasPaid(account) {
		return dErrors.New(dErrors.CodeInvariantViolation, "account already recorded as paid")
	}
	r.PaidUsers = append(r.PaidUsers, account)
	return nil
}
