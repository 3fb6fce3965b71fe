package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and ledger clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: record does not exist in the store or on the ledger
//   - ErrConflict: conditional write lost (duplicate key or stale version)
//   - ErrAlreadyUsed: a unique value (reference code) is already reserved
//   - ErrUnavailable: backing service temporarily unavailable
//
// "Not found" is always distinct from other failures.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
