package models

import (
	"time"

	id "idcheck/pkg/domain"
)

// Kind identifies what was checked.
type Kind string

const KindAadhaar Kind = "aadhaar"

// MaxBatchSize bounds a single batch verification request.
const MaxBatchSize = 100

// Verification is one entry in the verification ledger. The raw identifier
// is never stored: only its SHA-256 hash and a masked form.
type Verification struct {
	ID          id.VerificationID
	SubjectHash string
	Masked      string
	Valid       bool
	// Checksum is the Verhoeff checksum over all digits; 0 when Valid.
	Checksum  int
	Kind      Kind
	RequestID string
	CheckedAt time.Time
}

// Outcome is the cacheable part of a verification.
type Outcome struct {
	Valid    bool `json:"valid"`
	Checksum int  `json:"checksum"`
}

// BatchResult pairs each batch input with its verification or error.
// Exactly one of Verification and Err is set.
type BatchResult struct {
	Verification *Verification
	Err          error
}
