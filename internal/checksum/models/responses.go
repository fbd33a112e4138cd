package models

import "time"

type ChecksumResponse struct {
	Checksum int `json:"checksum"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

type CheckDigitResponse struct {
	CheckDigit int `json:"check_digit"`
}

type VerificationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Masked    string    `json:"masked"`
	Valid     bool      `json:"valid"`
	Checksum  int       `json:"checksum"`
	CheckedAt time.Time `json:"checked_at"`
}

// BatchItemResponse reports one batch input, in input order. Malformed input
// yields Error instead of a verification.
type BatchItemResponse struct {
	Index            int                   `json:"index"`
	Verification     *VerificationResponse `json:"verification,omitempty"`
	Error            string                `json:"error,omitempty"`
	ErrorDescription string                `json:"error_description,omitempty"`
}

type BatchResponse struct {
	Results []BatchItemResponse `json:"results"`
	Total   int                 `json:"total"`
	Valid   int                 `json:"valid"`
}

type VerificationListResponse struct {
	Verifications []VerificationResponse `json:"verifications"`
	Count         int                    `json:"count"`
}

// ToResponse renders v for the API. SubjectHash and RequestID stay internal.
func ToResponse(v *Verification) VerificationResponse {
	return VerificationResponse{
		ID:        v.ID.String(),
		Kind:      string(v.Kind),
		Masked:    v.Masked,
		Valid:     v.Valid,
		Checksum:  v.Checksum,
		CheckedAt: v.CheckedAt,
	}
}
