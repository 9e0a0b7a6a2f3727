package models

// Event topics published to the ledger event log.
const (
	EventVerified = "verified"
	EventPrepaid  = "prepaid"
)
