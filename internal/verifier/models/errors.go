package models

import "errors"

// Failure reasons. Services wrap these in coded errors; match them with errors.Is.
var (
	ErrAlreadyInitialized   = errors.New("already initialized")
	ErrUninitialized        = errors.New("not initialized")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNullifierAlreadyUsed = errors.New("nullifier already used")
	ErrNoPrepaidCredits     = errors.New("no prepaid credits")
	ErrInvalidDocumentType  = errors.New("invalid document type")
	ErrUnsupportedAsset     = errors.New("unsupported payment asset")
	ErrPolicyNotSupported   = errors.New("operation not offered under the active payment policy")
)
