// Package verhoeff implements the Verhoeff check digit scheme.
//
// The scheme works over the dihedral group D5 using three fixed tables: a
// multiplication table, a position-dependent permutation table and an inverse
// table. It detects every single-digit substitution and every adjacent
// transposition of two distinct digits. Swapping two equal digits leaves the
// sequence unchanged and so cannot be detected.
//
// All functions are pure. The tables are package-level and read-only, so the
// package is safe for concurrent use without synchronization.
package verhoeff

import (
	"errors"
	"fmt"
	"unicode"
)

// multiplication is the D5 group operation table.
var multiplication = [10][10]uint8{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
	{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
	{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
	{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
	{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
	{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
	{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
	{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
	{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
}

// permutation is applied to the digit at reversed position i using row i mod 8.
var permutation = [8][10]uint8{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
	{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
	{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
	{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
	{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
	{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
	{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
}

// inverse maps each group element to its inverse under multiplication.
var inverse = [10]uint8{0, 4, 3, 2, 1, 5, 6, 7, 8, 9}

// ErrInvalidInput is matched by every *InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("verhoeff: invalid input")

// InvalidInputError reports a digit sequence that cannot be checksummed.
// Position is -1 when the sequence is empty.
type InvalidInputError struct {
	Position int
	Value    int
	Reason   string
}

func (e *InvalidInputError) Error() string {
	if e.Position < 0 {
		return "verhoeff: invalid input: " + e.Reason
	}
	return fmt.Sprintf("verhoeff: invalid input at position %d (%d): %s", e.Position, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidInput) hold for any InvalidInputError.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func validate(digits []int) error {
	if len(digits) == 0 {
		return &InvalidInputError{Position: -1, Reason: "empty digit sequence"}
	}
	for i, d := range digits {
		if d < 0 || d > 9 {
			return &InvalidInputError{Position: i, Value: d, Reason: "digit out of range [0,9]"}
		}
	}
	return nil
}

// checksum assumes digits has already been validated.
func checksum(digits []int) int {
	var c uint8
	for i := 0; i < len(digits); i++ {
		n := digits[len(digits)-1-i]
		c = multiplication[c][permutation[i%8][n]]
	}
	return int(c)
}

// Generate computes the Verhoeff checksum of digits, which are expected to
// include their trailing check digit. A correct sequence yields 0.
func Generate(digits []int) (int, error) {
	if err := validate(digits); err != nil {
		return 0, err
	}
	return checksum(digits), nil
}

// Verify reports whether digits, including their trailing check digit, carry a
// valid Verhoeff checksum.
func Verify(digits []int) (bool, error) {
	c, err := Generate(digits)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// CheckDigit returns the digit that must be appended to payload so that the
// resulting sequence verifies.
func CheckDigit(payload []int) (int, error) {
	if err := validate(payload); err != nil {
		return 0, err
	}
	padded := make([]int, len(payload)+1)
	copy(padded, payload)
	return int(inverse[checksum(padded)]), nil
}

// ParseDigits converts s to a digit sequence, ignoring any whitespace.
// Positions in a returned InvalidInputError refer to runes of s.
func ParseDigits(s string) ([]int, error) {
	digits := make([]int, 0, len(s))
	pos := 0
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		default:
			return nil, &InvalidInputError{Position: pos, Value: int(r), Reason: fmt.Sprintf("non-digit character %q", r)}
		}
		pos++
	}
	if len(digits) == 0 {
		return nil, &InvalidInputError{Position: -1, Reason: "no digits in input"}
	}
	return digits, nil
}

// ValidString reports whether s, after whitespace is removed, is a non-empty
// digit string with a valid Verhoeff checksum.
func ValidString(s string) bool {
	digits, err := ParseDigits(s)
	if err != nil {
		return false
	}
	return checksum(digits) == 0
}
