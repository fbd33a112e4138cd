package models

import (
	"strings"

	dErrors "idcheck/pkg/domain-errors"
)

// maxDigits bounds a raw digit sequence accepted over HTTP.
const maxDigits = 4096

// DigitsRequest carries a raw digit sequence. Range checking of each digit
// is left to the checksum service so errors carry the offending position.
type DigitsRequest struct {
	Digits []int `json:"digits"`
}

func (r *DigitsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Digits) == 0 {
		return dErrors.New(dErrors.CodeValidation, "digits is required")
	}
	if len(r.Digits) > maxDigits {
		return dErrors.New(dErrors.CodeValidation, "too many digits")
	}
	return nil
}

type AadhaarRequest struct {
	Number string `json:"number"`
}

func (r *AadhaarRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Number = strings.TrimSpace(r.Number)
	if r.Number == "" {
		return dErrors.New(dErrors.CodeValidation, "number is required")
	}
	return nil
}

type BatchRequest struct {
	Numbers []string `json:"numbers"`
}

func (r *BatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Numbers) == 0 {
		return dErrors.New(dErrors.CodeValidation, "numbers is required")
	}
	if len(r.Numbers) > MaxBatchSize {
		return dErrors.New(dErrors.CodeValidation, "at most 100 numbers per batch")
	}
	return nil
}
