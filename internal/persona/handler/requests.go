package handler

import (
	"fmt"
	"strings"

	"persona-gateway/internal/proof"
	id "persona-gateway/pkg/domain"
)

// RecordVerificationRequest is the body of POST /persona/verifications.
// Proofs is optional: clients that already ran the verification SDK submit
// their proofs directly; an empty list asks the gateway to drive a hosted
// session instead.
type RecordVerificationRequest struct {
	Provider string        `json:"provider"`
	Proofs   []proof.Proof `json:"proofs,omitempty"`
}

func (r *RecordVerificationRequest) Normalize() {
	r.Provider = strings.TrimSpace(r.Provider)
}

func (r *RecordVerificationRequest) Validate() error {
	if r.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if _, err := id.ParseProviderKey(r.Provider); err != nil {
		return err
	}
	return nil
}

// ProviderKey returns the parsed provider key. Only valid after Validate.
func (r *RecordVerificationRequest) ProviderKey() id.ProviderKey {
	key, _ := id.ParseProviderKey(r.Provider)
	return key
}
