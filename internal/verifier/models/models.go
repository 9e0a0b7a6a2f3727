package models

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// DocumentType is the kind of identity document a proof was made over.
type DocumentType uint32

const (
	DocumentPassport       DocumentType = 1
	DocumentPAN            DocumentType = 2
	DocumentDriversLicense DocumentType = 3
	DocumentAadhaar        DocumentType = 4
	DocumentOther          DocumentType = 5
)

var documentTypeNames = map[DocumentType]string{
	DocumentPassport:       "Passport",
	DocumentPAN:            "PAN Card",
	DocumentDriversLicense: "Driver's License",
	DocumentAadhaar:        "Aadhaar Card",
	DocumentOther:          "Other ID",
}

func (d DocumentType) IsValid() bool {
	_, ok := documentTypeNames[d]
	return ok
}

func (d DocumentType) String() string {
	if name, ok := documentTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DocumentType(%d)", uint32(d))
}

// VerifiedAttributes are the facts a registration asserts about a user.
// They are only ever produced by DeriveAttributes.
type VerifiedAttributes struct {
	AgeOver18        bool         `json:"age_over_18"`
	AgeOver21        bool         `json:"age_over_21"`
	DocumentType     DocumentType `json:"document_type"`
	GenderVerified   bool         `json:"gender_verified"`
	VerificationDate uint64       `json:"verification_date"`
}

// DeriveAttributes maps the proof's public outputs onto attributes.
func DeriveAttributes(minAgeVerified uint32, docType DocumentType, genderVerified bool, verifiedAt uint64) VerifiedAttributes {
	return VerifiedAttributes{
		AgeOver18:        minAgeVerified >= 18,
		AgeOver21:        minAgeVerified >= 21,
		DocumentType:     docType,
		GenderVerified:   genderVerified,
		VerificationDate: verifiedAt,
	}
}

// IdentityRecord is one committed verification. Records are never mutated;
// a later verification for the same user appends a new one.
type IdentityRecord struct {
	CommitmentHash common.Hash        `json:"commitment_hash"`
	Timestamp      uint64             `json:"timestamp"`
	Attributes     VerifiedAttributes `json:"attributes_verified"`
}
