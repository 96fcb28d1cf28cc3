// Package proof models the proof-acquisition collaborator: the external
// attestation service that walks a user through proving facts about a
// provider account and hands back opaque proof payloads.
//
// The payloads are treated as black boxes here; extraction of scoring facts
// is the normalizer's job, and raw proofs are never persisted.
package proof

import (
	"context"
	"encoding/json"

	id "persona-gateway/pkg/domain"
)

// Proof is one opaque attestation payload as returned by the collaborator.
type Proof = json.RawMessage

// Acquirer starts a verification session for an external provider and blocks
// until it produces proofs or terminates.
//
// A user abort surfaces as sentinel.ErrCancelled (wrapped); callers treat it
// as a no-op, not a failure. Any other error is a hard acquisition failure.
type Acquirer interface {
	StartVerification(ctx context.Context, providerID string) ([]Proof, error)
}

// ProviderInfo is one entry of the provider catalog: the stable key used in
// persona documents, the collaborator's provider ID, and display copy for
// clients. The catalog is data, not code: adding a provider here (plus a
// normalizer extractor) is all it takes.
type ProviderInfo struct {
	ID          string         `json:"id"`
	Key         id.ProviderKey `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
}

var catalog = []ProviderInfo{
	{
		ID:          "e6fe962d-8b4e-4ce5-abcc-3d21c88bd64a",
		Key:         id.ProviderTwitter,
		Name:        "Twitter / X Profile",
		Description: "Verify your followers and account age",
	},
	{
		ID:          "76afcf07-4c8f-4a63-b545-0d4c4f955164",
		Key:         id.ProviderGithub,
		Name:        "GitHub Profile",
		Description: "Verify your contributions and followers",
	},
	{
		ID:          "2b22db5c-78d9-4d82-84f0-a9e0a4ed0470",
		Key:         id.ProviderBinance,
		Name:        "Binance KYC",
		Description: "Verify your account KYC status",
	},
	{
		ID:          "a9f1063c-06b7-476a-8410-9ff6e427e637",
		Key:         id.ProviderLinkedin,
		Name:        "LinkedIn Profile",
		Description: "Verify your professional connections",
	},
	{
		ID:          "8f548df0-4a8b-4672-b1fb-f103cbf51832",
		Key:         id.ProviderTwitterTweets,
		Name:        "Twitter Activity",
		Description: "Verify you are an active user",
	},
}

// Catalog returns the provider catalog in presentation order.
func Catalog() []ProviderInfo {
	out := make([]ProviderInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ByKey looks up a catalog entry by persona provider key.
func ByKey(key id.ProviderKey) (ProviderInfo, bool) {
	for _, p := range catalog {
		if p.Key == key {
			return p, true
		}
	}
	return ProviderInfo{}, false
}
