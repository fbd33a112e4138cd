package domain

import (
	"strings"
	"unicode"

	dErrors "idcheck/pkg/domain-errors"
	"idcheck/pkg/verhoeff"
)

// AadhaarLength is the number of digits in an Aadhaar number, check digit included.
const AadhaarLength = 12

// maxAadhaarInput bounds raw input before any parsing work is done.
const maxAadhaarInput = 64

// AadhaarNumber is a 12-digit Aadhaar number whose trailing Verhoeff check
// digit has been verified.
//
// Invariants:
//   - Exactly 12 ASCII digits once whitespace is removed
//   - Verhoeff checksum over all 12 digits is 0
type AadhaarNumber struct {
	value string
}

// ParseAadhaarNumber normalises s (whitespace removed) and validates it.
// Format problems return CodeInvalidInput; a checksum mismatch returns
// CodeValidation so callers can tell a mistyped number from garbage.
func ParseAadhaarNumber(s string) (AadhaarNumber, error) {
	digits, err := aadhaarDigits(s)
	if err != nil {
		return AadhaarNumber{}, err
	}
	ok, err := verhoeff.Verify(digits)
	if err != nil {
		return AadhaarNumber{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid aadhaar number")
	}
	if !ok {
		return AadhaarNumber{}, dErrors.New(dErrors.CodeValidation, "aadhaar number checksum mismatch")
	}
	return AadhaarNumber{value: NormalizeAadhaar(s)}, nil
}

// MustAadhaarNumber is ParseAadhaarNumber for tests and fixtures; it panics on error.
func MustAadhaarNumber(s string) AadhaarNumber {
	n, err := ParseAadhaarNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

// NormalizeAadhaar strips all whitespace from s.
func NormalizeAadhaar(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// AadhaarDigits checks the shape of s (12 digits after whitespace removal)
// without checking the checksum.
func AadhaarDigits(s string) ([]int, error) {
	return aadhaarDigits(s)
}

func aadhaarDigits(s string) ([]int, error) {
	if len(s) > maxAadhaarInput {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "aadhaar number is too long")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "aadhaar number is required")
	}
	digits, err := verhoeff.ParseDigits(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "aadhaar number must contain only digits")
	}
	if len(digits) != AadhaarLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "aadhaar number must be 12 digits")
	}
	return digits, nil
}

// String returns the 12 digits without separators.
func (n AadhaarNumber) String() string {
	return n.value
}

// Formatted returns the number in the printed "dddd dddd dddd" layout.
func (n AadhaarNumber) Formatted() string {
	if n.IsZero() {
		return ""
	}
	return n.value[0:4] + " " + n.value[4:8] + " " + n.value[8:12]
}

// Masked hides all but the last four digits.
func (n AadhaarNumber) Masked() string {
	return MaskAadhaar(n.value)
}

// MaskAadhaar masks a normalised 12-digit string whether or not its checksum
// holds. Any other length yields "".
func MaskAadhaar(normalized string) string {
	if len(normalized) != AadhaarLength {
		return ""
	}
	return "XXXX XXXX " + normalized[8:12]
}

// Hash returns the keyed subject hash of the normalised number. Stores and
// audit events keep this instead of the raw identifier.
func (n AadhaarNumber) Hash(h *SubjectHasher) string {
	if n.IsZero() {
		return ""
	}
	return h.Hash(n.value)
}

// IsZero reports whether n is the zero value.
func (n AadhaarNumber) IsZero() bool {
	return n.value == ""
}
