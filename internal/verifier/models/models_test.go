package models

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	dErrors "idverifier/pkg/domain-errors"
)

func TestDeriveAttributes(t *testing.T) {
	tests := []struct {
		minAge         uint32
		over18, over21 bool
	}{
		{minAge: 16},
		{minAge: 17},
		{minAge: 18, over18: true},
		{minAge: 20, over18: true},
		{minAge: 21, over18: true, over21: true},
		{minAge: 65, over18: true, over21: true},
	}
	for _, tt := range tests {
		got := DeriveAttributes(tt.minAge, DocumentAadhaar, true, 42)
		assert.Equal(t, tt.over18, got.AgeOver18, "age_over_18 for %d", tt.minAge)
		assert.Equal(t, tt.over21, got.AgeOver21, "age_over_21 for %d", tt.minAge)
		assert.Equal(t, DocumentAadhaar, got.DocumentType)
		assert.True(t, got.GenderVerified)
		assert.Equal(t, uint64(42), got.VerificationDate)
	}
}

func TestDocumentType(t *testing.T) {
	assert.Equal(t, "Passport", DocumentPassport.String())
	assert.Equal(t, "PAN Card", DocumentPAN.String())
	assert.Equal(t, "Driver's License", DocumentDriversLicense.String())
	assert.Equal(t, "Aadhaar Card", DocumentAadhaar.String())
	assert.Equal(t, "Other ID", DocumentOther.String())
	assert.False(t, DocumentType(0).IsValid())
	assert.False(t, DocumentType(6).IsValid())
	assert.Equal(t, "DocumentType(9)", DocumentType(9).String())
}

func TestRegisterRequestValidate(t *testing.T) {
	valid := RegisterRequest{
		User:         common.HexToAddress("0xaa"),
		Nullifier:    common.HexToHash("0x01"),
		DocumentType: DocumentPassport,
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.DocumentType = 7
	err := bad.Validate()
	assert.ErrorIs(t, err, ErrInvalidDocumentType)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	bad = valid
	bad.Nullifier = common.Hash{}
	assert.True(t, dErrors.HasCode(bad.Validate(), dErrors.CodeBadRequest))
}

func TestSigningPayloadCoversEveryArgument(t *testing.T) {
	base := RegisterRequest{
		Admin:          common.HexToAddress("0xad"),
		User:           common.HexToAddress("0xaa"),
		CommitmentHash: common.HexToHash("0xc0"),
		Nullifier:      common.HexToHash("0x01"),
		MinAgeVerified: 18,
		DocumentType:   DocumentPassport,
	}
	p0, err := base.SigningPayload()
	assert.NoError(t, err)

	changed := base
	changed.MinAgeVerified = 21
	p1, err := changed.SigningPayload()
	assert.NoError(t, err)
	assert.NotEqual(t, p0, p1)

	changed = base
	changed.GenderVerified = true
	p2, err := changed.SigningPayload()
	assert.NoError(t, err)
	assert.NotEqual(t, p0, p2)

	// Signature and nonce travel beside the payload, not inside it.
	changed = base
	changed.Signature = []byte{1}
	p3, err := changed.SigningPayload()
	assert.NoError(t, err)
	assert.Equal(t, p0, p3)
}
