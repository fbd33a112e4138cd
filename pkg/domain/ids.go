package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "idcheck/pkg/domain-errors"
)

// VerificationID identifies one entry in the verification ledger.
type VerificationID uuid.UUID

// NewVerificationID returns a fresh random ID.
func NewVerificationID() VerificationID {
	return VerificationID(uuid.New())
}

// ParseVerificationID parses s as a non-nil UUID.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return VerificationID{}, err
	}
	return VerificationID(u), nil
}

func (v VerificationID) String() string {
	return uuid.UUID(v).String()
}

// IsNil reports whether v is the nil UUID.
func (v VerificationID) IsNil() bool {
	return uuid.UUID(v) == uuid.Nil
}

// MarshalText lets VerificationID appear as a plain UUID string in JSON.
func (v VerificationID) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts the same forms as ParseVerificationID.
func (v *VerificationID) UnmarshalText(b []byte) error {
	parsed, err := ParseVerificationID(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be nil")
	}
	return u, nil
}
