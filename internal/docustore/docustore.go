// Package docustore is the typed wrapper over the external document
// collection store. Persona and reward documents live in two logical
// collections; each document's payload is a JSON blob stored as an opaque
// string alongside the key, and this package's callers serialize and
// deserialize that blob themselves.
//
// Two implementations exist: the chain smart-contract client (Contract) and
// an in-memory store used by tests and local runs. Both enforce the same
// permission model:
//   - Set: full overwrite, issued by the document's owner. The first Set
//     establishes ownership.
//   - Update: full overwrite permitted from a non-owner. This is what lets a
//     buyer append itself to a reward's paid-users list while the creator
//     retains ownership for deletion.
//   - Delete: owner only.
package docustore

import (
	"context"

	id "persona-gateway/pkg/domain"
)

// Logical collections. Persona documents are keyed by the owning account's
// address; reward documents by a timestamp-derived ID.
const (
	CollectionPersonas = "personas"
	CollectionRewards  = "rewards"
)

// Document is one entry of a collection: the key, the owning account, and
// the serialized payload.
type Document struct {
	ID    string
	Owner id.AccountID
	Data  string
}

// Store is the abstract contract consumed by the persona and reward services.
// Implementations return sentinel.ErrNotFound for missing documents and
// sentinel.ErrUnavailable when the backend cannot be reached.
type Store interface {
	// Read returns a single document by key.
	Read(ctx context.Context, collection, documentID string) (Document, error)

	// ListByOwner returns every document in the collection owned by owner.
	ListByOwner(ctx context.Context, collection string, owner id.AccountID) ([]Document, error)

	// ListCollection returns every document in the collection.
	ListCollection(ctx context.Context, collection string) ([]Document, error)

	// Set writes a document as its owner (full overwrite, no partial-field
	// update). Overwriting a document owned by someone else fails.
	Set(ctx context.Context, sender id.AccountID, collection, documentID, data string) error

	// Update writes a document from any sender (full overwrite). The store's
	// collection policy allows non-owner updates; ownership is unchanged.
	Update(ctx context.Context, sender id.AccountID, collection, documentID, data string) error

	// Delete removes a document. Owner only.
	Delete(ctx context.Context, sender id.AccountID, collection, documentID string) error
}
