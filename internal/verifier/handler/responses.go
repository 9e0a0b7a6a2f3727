package handler

import (
	"github.com/ethereum/go-ethereum/common"

	"idverifier/internal/verifier/models"
)

type attributesResponse struct {
	AgeOver18        bool   `json:"age_over_18"`
	AgeOver21        bool   `json:"age_over_21"`
	DocumentType     uint32 `json:"document_type"`
	DocumentTypeName string `json:"document_type_name"`
	GenderVerified   bool   `json:"gender_verified"`
	VerificationDate uint64 `json:"verification_date"`
}

type recordResponse struct {
	CommitmentHash string             `json:"commitment_hash"`
	Timestamp      uint64             `json:"timestamp"`
	Attributes     attributesResponse `json:"attributes_verified"`
}

func toRecordResponse(rec *models.IdentityRecord) *recordResponse {
	if rec == nil {
		return nil
	}
	a := rec.Attributes
	return &recordResponse{
		CommitmentHash: rec.CommitmentHash.Hex(),
		Timestamp:      rec.Timestamp,
		Attributes: attributesResponse{
			AgeOver18:        a.AgeOver18,
			AgeOver21:        a.AgeOver21,
			DocumentType:     uint32(a.DocumentType),
			DocumentTypeName: a.DocumentType.String(),
			GenderVerified:   a.GenderVerified,
			VerificationDate: a.VerificationDate,
		},
	}
}

type registerResponse struct {
	User     string          `json:"user"`
	Index    uint32          `json:"index"`
	DocCount uint32          `json:"doc_count"`
	Payment  string          `json:"payment"`
	Record   *recordResponse `json:"record"`
}

type userResponse struct {
	Address        string          `json:"address"`
	Verified       bool            `json:"verified"`
	AgeOver18      bool            `json:"age_over_18"`
	AgeOver21      bool            `json:"age_over_21"`
	DocumentType   uint32          `json:"document_type"`
	DocCount       uint32          `json:"doc_count"`
	PrepaidCredits uint32          `json:"prepaid_credits"`
	Latest         *recordResponse `json:"latest,omitempty"`
}

func toUserResponse(s *models.UserSummary) userResponse {
	out := userResponse{
		Address:        s.User.Hex(),
		DocCount:       s.DocCount,
		PrepaidCredits: s.PrepaidCredits,
		Latest:         toRecordResponse(s.Latest),
	}
	if s.Latest != nil {
		out.Verified = true
		out.AgeOver18 = s.Latest.Attributes.AgeOver18
		out.AgeOver21 = s.Latest.Attributes.AgeOver21
		out.DocumentType = uint32(s.Latest.Attributes.DocumentType)
	}
	return out
}

type paymentResponse struct {
	DocCount        uint32 `json:"doc_count"`
	PaymentRequired bool   `json:"payment_required"`
	Policy          string `json:"policy"`
	Amount          string `json:"amount"`
	PrepaidCredits  uint32 `json:"prepaid_credits"`
}

type prepayResponse struct {
	User           string `json:"user"`
	PrepaidCredits uint32 `json:"prepaid_credits"`
}

type statsResponse struct {
	TotalVerifications uint64 `json:"total_verifications"`
	PaymentPolicy      string `json:"payment_policy"`
	PaymentAsset       string `json:"payment_asset"`
	Admin              string `json:"admin,omitempty"`
}

type nonceResponse struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

func hexOrEmpty(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}
