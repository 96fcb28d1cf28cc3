package sentinel

import "errors"

// Sentinel errors for infrastructure facts. The docustore, ledger, and proof
// clients return these (optionally wrapped) so services can translate them
// into domain errors without knowing which backend produced them.
//
// These represent factual states about external resources:
// - ErrNotFound: document does not exist in the store
// - ErrConflict: write rejected because the resource changed underneath
// - ErrCancelled: the user aborted a verification session (not a failure)
// - ErrUnavailable: collaborator temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrCancelled   = errors.New("cancelled")
	ErrUnavailable = errors.New("unavailable")
)
