// Package models defines the persona aggregate: the per-account document
// combining normalized verification records and the computed reputation score.
package models

import (
	"time"

	id "persona-gateway/pkg/domain"
)

// VerificationRecord holds the normalized facts derived from one provider
// proof. Facts is a provider-specific attribute bag (follower counts, KYC
// status, ...); raw proof material is never retained, only what scoring needs.
//
// Invariant: at most one record per provider key per persona. A
// re-verification fully replaces the prior record for that key; fields are
// never merged across two proofs of the same provider.
type VerificationRecord struct {
	Facts      map[string]any `json:"facts"`
	VerifiedAt time.Time      `json:"verifiedAt"`
}

// Score breakdown categories. The scoring engine is prompted for exactly
// these four; the baseline breakdown zero-fills them and the failure fallback
// leaves the map empty, so the two are distinguishable.
const (
	CategoryDeveloperReputation = "developerReputation"
	CategorySocialInfluence     = "socialInfluence"
	CategoryFinancialTrust      = "financialTrust"
	CategoryProfessionalism     = "professionalism"
)

// Categories lists the four breakdown categories in presentation order.
var Categories = []string{
	CategoryDeveloperReputation,
	CategorySocialInfluence,
	CategoryFinancialTrust,
	CategoryProfessionalism,
}

// ScoreBreakdown is the computed reputation artifact. Score is 0-100 and is
// intended to equal the mean of the four category sub-scores; the policy
// re-derives it locally when the engine disagrees.
type ScoreBreakdown struct {
	Score            int                `json:"score"`
	Breakdown        map[string]float64 `json:"breakdown"`
	Explanation      string             `json:"explanation"`
	LastCalculatedAt time.Time          `json:"lastCalculatedAt"`
}

// Complete reports whether the breakdown carries all four categories.
func (s ScoreBreakdown) Complete() bool {
	if len(s.Breakdown) < len(Categories) {
		return false
	}
	for _, c := range Categories {
		if _, ok := s.Breakdown[c]; !ok {
			return false
		}
	}
	return true
}

// Mean returns the mean of the four category sub-scores. Only meaningful
// when Complete() is true.
func (s ScoreBreakdown) Mean() float64 {
	if len(s.Breakdown) == 0 {
		return 0
	}
	var sum float64
	for _, c := range Categories {
		sum += s.Breakdown[c]
	}
	return sum / float64(len(Categories))
}

// PersonaDocument is the aggregate persisted under the owning account's
// address in the personas collection.
//
// Invariants:
//   - PersonaScore, when present and not marked stale, was computed from
//     exactly the Verifications map persisted in the same document version.
//   - Verifications and PersonaScore are written atomically as one document;
//     there is no partial-field update for personas.
//   - ScoreStale is the explicit marker for the one permitted exception:
//     a verification committed while the scoring engine was unavailable.
type PersonaDocument struct {
	Address       id.AccountID                              `json:"address"`
	Verifications map[id.ProviderKey]VerificationRecord     `json:"verifications"`
	PersonaScore  *ScoreBreakdown                           `json:"personaScore,omitempty"`
	ScoreStale    bool                                      `json:"scoreStale,omitempty"`
	LastUpdatedAt time.Time                                 `json:"lastUpdatedAt"`
}

// NewPersona returns an empty persona for an account that has not verified
// anything yet.
func NewPersona(address id.AccountID) PersonaDocument {
	return PersonaDocument{
		Address:       address,
		Verifications: make(map[id.ProviderKey]VerificationRecord),
	}
}

// Score returns the current numeric score, 0 when the persona has never been
// scored. The reward eligibility comparison runs against this value.
func (p PersonaDocument) Score() int {
	if p.PersonaScore == nil {
		return 0
	}
	return p.PersonaScore.Score
}

// WithVerification returns a copy of the persona with the record stored under
// key. Replace-by-key: the incoming record overwrites any existing record for
// that provider; every other provider key is preserved unchanged. The
// receiver is not mutated.
func (p PersonaDocument) WithVerification(key id.ProviderKey, rec VerificationRecord) PersonaDocument {
	next := p
	next.Verifications = make(map[id.ProviderKey]VerificationRecord, len(p.Verifications)+1)
	for k, v := range p.Verifications {
		next.Verifications[k] = v
	}
	next.Verifications[key] = rec
	return next
}

// WithScore attaches a freshly computed score and stamps the update time.
func (p PersonaDocument) WithScore(score ScoreBreakdown, now time.Time) PersonaDocument {
	next := p
	next.PersonaScore = &score
	next.ScoreStale = false
	next.LastUpdatedAt = now
	return next
}

// WithStaleScore stamps the update time while keeping the previous score (or
// the given fallback when the persona was never scored) and raises the
// explicit staleness marker. Used when the scoring engine is unavailable:
// the verification still commits, but the document says the score does not
// reflect it.
func (p PersonaDocument) WithStaleScore(fallback ScoreBreakdown, now time.Time) PersonaDocument {
	next := p
	if next.PersonaScore == nil {
		next.PersonaScore = &fallback
	}
	next.ScoreStale = true
	next.LastUpdatedAt = now
	return next
}
