package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PaymentMode names how a registration was paid for.
type PaymentMode string

const (
	PaymentFree       PaymentMode = "free"
	PaymentPayPerCall PaymentMode = "pay_per_call"
	PaymentPrepaid    PaymentMode = "prepaid"
)

// Registration is the outcome of a successful registration.
type Registration struct {
	User     common.Address
	Index    uint32
	Record   IdentityRecord
	DocCount uint32
	Payment  PaymentMode
}

// PaymentPreflight tells a client whether its next registration will charge.
type PaymentPreflight struct {
	DocCount        uint32
	PaymentRequired bool
	Policy          PaymentMode
	Amount          *uint256.Int
	PrepaidCredits  uint32
}

// UserSummary is the read model behind the user lookup endpoint.
type UserSummary struct {
	User           common.Address
	Latest         *IdentityRecord
	DocCount       uint32
	PrepaidCredits uint32
}
