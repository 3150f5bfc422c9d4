package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors:
//   - ErrNotFound: record does not exist in the store
//   - ErrAlreadyUsed: a create-once key (pid, document id) is already taken
//   - ErrIntegrity: stored data failed an integrity check (hash chain, seal)
//   - ErrUnavailable: backend temporarily unavailable
//
// Validation failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrIntegrity   = errors.New("integrity check failed")
	ErrUnavailable = errors.New("unavailable")
)
