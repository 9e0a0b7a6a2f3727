package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Ledger hosts and collaborators return
// these (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: entry does not exist or its retention window has lapsed
// - ErrConflict: a concurrent transaction touched the same entries; retry is safe
// - ErrInvalidState: entry in wrong state for requested operation
// - ErrUnavailable: backing store temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
