package verhoeff

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digitsOf(t *testing.T, s string) []int {
	t.Helper()
	d, err := ParseDigits(s)
	require.NoError(t, err)
	return d
}

func TestGenerate_KnownVectors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		payload string
		check   int
	}{
		{"short", "2363", "236", 3},
		{"five digits", "123451", "12345", 1},
		{"zero check digit", "1428570", "142857", 0},
		{"twelve digits", "234566169842", "23456616984", 2},
		{"long", "847364309548372845678922", "84736430954837284567892", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := Generate(digitsOf(t, tt.input))
			require.NoError(t, err)
			assert.Equal(t, 0, sum)

			check, err := CheckDigit(digitsOf(t, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.check, check)
		})
	}
}

func TestVerify_SequenceFromSourceData(t *testing.T) {
	digits := []int{2, 3, 4, 5, 6, 6, 1, 6, 9, 8, 4, 5}

	sum, err := Generate(digits)
	require.NoError(t, err)
	assert.Equal(t, 7, sum)

	ok, err := Verify(digits)
	require.NoError(t, err)
	assert.False(t, ok, "trailing 5 is not the check digit")

	check, err := CheckDigit(digits[:11])
	require.NoError(t, err)
	assert.Equal(t, 2, check)

	fixed := append(append([]int{}, digits[:11]...), check)
	ok, err = Verify(fixed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		digits []int
		pos    int
	}{
		{"nil", nil, -1},
		{"empty", []int{}, -1},
		{"ten", []int{1, 2, 10}, 2},
		{"negative", []int{-1, 2, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(tt.digits)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var inputErr *InvalidInputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, tt.pos, inputErr.Position)

			_, err = Generate(tt.digits)
			assert.ErrorIs(t, err, ErrInvalidInput)

			_, err = CheckDigit(tt.digits)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

// Every correctly generated 12-digit sequence verifies, and every substitution
// of the final digit is rejected.
func TestVerify_DetectsLastDigitSubstitution(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for range 500 {
		payload := make([]int, 11)
		for i := range payload {
			payload[i] = rng.IntN(10)
		}
		check, err := CheckDigit(payload)
		require.NoError(t, err)

		full := append(append([]int{}, payload...), check)
		ok, err := Verify(full)
		require.NoError(t, err)
		require.True(t, ok, "payload %v check %d", payload, check)

		for alt := 0; alt <= 9; alt++ {
			if alt == check {
				continue
			}
			full[11] = alt
			ok, err := Verify(full)
			require.NoError(t, err)
			require.False(t, ok, "substituted last digit %d accepted for %v", alt, payload)
		}
	}
}

func TestVerify_DetectsAnySingleSubstitution(t *testing.T) {
	base := digitsOf(t, "234566169842")

	for pos := range base {
		for alt := 0; alt <= 9; alt++ {
			if alt == base[pos] {
				continue
			}
			mutated := append([]int{}, base...)
			mutated[pos] = alt
			ok, err := Verify(mutated)
			require.NoError(t, err)
			assert.False(t, ok, "substitution at %d to %d not detected", pos, alt)
		}
	}
}

func TestVerify_AdjacentTransposition(t *testing.T) {
	t.Run("distinct digits are detected", func(t *testing.T) {
		base := digitsOf(t, "234566169842")
		for i := 0; i+1 < len(base); i++ {
			if base[i] == base[i+1] {
				continue
			}
			swapped := append([]int{}, base...)
			swapped[i], swapped[i+1] = swapped[i+1], swapped[i]
			ok, err := Verify(swapped)
			require.NoError(t, err)
			assert.False(t, ok, "transposition at %d not detected", i)
		}
	})

	t.Run("equal digits are indistinguishable", func(t *testing.T) {
		// positions 4 and 5 both hold 6; the swap is a no-op
		base := digitsOf(t, "234566169842")
		swapped := append([]int{}, base...)
		swapped[4], swapped[5] = swapped[5], swapped[4]
		ok, err := Verify(swapped)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestGenerate_DoesNotMutateInput(t *testing.T) {
	payload := []int{2, 3, 6}
	_, err := CheckDigit(payload)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 6}, payload)
}

func TestParseDigits(t *testing.T) {
	t.Run("strips whitespace", func(t *testing.T) {
		d, err := ParseDigits(" 2345 6616\t9842 ")
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3, 4, 5, 6, 6, 1, 6, 9, 8, 4, 2}, d)
	})

	t.Run("rejects letters", func(t *testing.T) {
		_, err := ParseDigits("2345 66A6")
		var inputErr *InvalidInputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, 7, inputErr.Position)
		assert.Equal(t, int('A'), inputErr.Value)
	})

	t.Run("rejects non-ASCII digits", func(t *testing.T) {
		_, err := ParseDigits("२३४")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects blank input", func(t *testing.T) {
		_, err := ParseDigits("   ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestValidString(t *testing.T) {
	assert.True(t, ValidString("2345 6616 9842"))
	assert.False(t, ValidString("2345 6616 9845"))
	assert.False(t, ValidString(""))
	assert.False(t, ValidString("abc"))
}

func BenchmarkVerify12(b *testing.B) {
	digits := []int{2, 3, 4, 5, 6, 6, 1, 6, 9, 8, 4, 2}
	for b.Loop() {
		_, _ = Verify(digits)
	}
}
