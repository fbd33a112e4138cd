package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"idcheck/internal/checksum/handler/mocks"
	"idcheck/internal/checksum/models"
	id "idcheck/pkg/domain"
	dErrors "idcheck/pkg/domain-errors"
	"idcheck/pkg/requestcontext"
	"idcheck/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func sampleVerification(valid bool) *models.Verification {
	return &models.Verification{
		ID:          id.NewVerificationID(),
		SubjectHash: testSubjectHash,
		Masked:      "XXXX XXXX 9842",
		Valid:       valid,
		Kind:        models.KindAadhaar,
		RequestID:   "req-1",
		CheckedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (s *HandlerSuite) TestGenerate() {
	s.service.EXPECT().Generate(gomock.Any(), []int{2, 3, 4, 5, 6, 6, 1, 6, 9, 8, 4, 5}).Return(7, nil)

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/checksum/generate",
		models.DigitsRequest{Digits: []int{2, 3, 4, 5, 6, 6, 1, 6, 9, 8, 4, 5}}))

	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"checksum":7}`, rr.Body.String())
}

func (s *HandlerSuite) TestVerify() {
	s.Run("valid sequence", func() {
		s.service.EXPECT().Verify(gomock.Any(), []int{2, 3, 6, 3}).Return(true, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/checksum/verify",
			models.DigitsRequest{Digits: []int{2, 3, 6, 3}}))

		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"valid":true}`, rr.Body.String())
	})

	s.Run("out of range digit", func() {
		s.service.EXPECT().Verify(gomock.Any(), []int{1, 10}).
			Return(false, dErrors.New(dErrors.CodeValidation, "digit at position 1 must be between 0 and 9, got 10"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/checksum/verify",
			models.DigitsRequest{Digits: []int{1, 10}}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("empty digits rejected before the service", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/checksum/verify", `{"digits":[]}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("malformed JSON", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/checksum/verify", `{"digits":`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown field", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/checksum/verify", `{"digits":[1],"extra":true}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestPropagatesRequestContext() {
	var gotRequestID string
	s.service.EXPECT().CheckDigit(gomock.Any(), []int{1, 2, 3, 4, 5}).
		DoAndReturn(func(ctx context.Context, _ []int) (int, error) {
			gotRequestID = requestcontext.RequestID(ctx)
			return 1, nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checksum/check-digit",
		models.DigitsRequest{Digits: []int{1, 2, 3, 4, 5}})
	rr := s.do(testutil.WithRequestID(req, "req-42"))

	testutil.AssertStatusOK(s.T(), rr)
	s.Equal("req-42", gotRequestID)
}

func (s *HandlerSuite) TestCheckDigit() {
	s.service.EXPECT().CheckDigit(gomock.Any(), []int{2, 3, 6}).Return(3, nil)

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/checksum/check-digit",
		models.DigitsRequest{Digits: []int{2, 3, 6}}))

	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"check_digit":3}`, rr.Body.String())
}

func (s *HandlerSuite) TestVerifyAadhaar() {
	s.Run("returns the masked verification", func() {
		v := sampleVerification(true)
		s.service.EXPECT().VerifyAadhaar(gomock.Any(), "2345 6616 9842").Return(v, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/aadhaar/verify",
			models.AadhaarRequest{Number: "  2345 6616 9842 "}))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.VerificationResponse](s.T(), rr)
		s.Equal(v.ID.String(), resp.ID)
		s.Equal("XXXX XXXX 9842", resp.Masked)
		s.True(resp.Valid)
		s.Equal("aadhaar", resp.Kind)
		s.NotContains(rr.Body.String(), v.SubjectHash)
	})

	s.Run("malformed number", func() {
		s.service.EXPECT().VerifyAadhaar(gomock.Any(), "1234").
			Return(nil, dErrors.New(dErrors.CodeInvalidInput, "aadhaar number must be 12 digits"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/aadhaar/verify",
			models.AadhaarRequest{Number: "1234"}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("internal error hides its description", func() {
		s.service.EXPECT().VerifyAadhaar(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to record verification"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/aadhaar/verify",
			models.AadhaarRequest{Number: "2345 6616 9842"}))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(rr.Body.String(), "pq:")
	})

	s.Run("missing number", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/aadhaar/verify", `{"number":"   "}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
	})
}

func (s *HandlerSuite) TestVerifyBatch() {
	valid := sampleVerification(true)
	invalid := sampleVerification(false)
	s.service.EXPECT().VerifyBatch(gomock.Any(), []string{"a", "b", "c"}).Return([]models.BatchResult{
		{Verification: valid},
		{Err: dErrors.New(dErrors.CodeInvalidInput, "aadhaar number must contain only digits")},
		{Verification: invalid},
	}, nil)

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/aadhaar/verify/batch",
		models.BatchRequest{Numbers: []string{"a", "b", "c"}}))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[models.BatchResponse](s.T(), rr)
	s.Equal(3, resp.Total)
	s.Equal(1, resp.Valid)
	s.Require().Len(resp.Results, 3)
	s.Equal(0, resp.Results[0].Index)
	s.Require().NotNil(resp.Results[0].Verification)
	s.Equal(valid.ID.String(), resp.Results[0].Verification.ID)
	s.Equal("invalid_input", resp.Results[1].Error)
	s.Nil(resp.Results[1].Verification)
	s.False(resp.Results[2].Verification.Valid)
}

func (s *HandlerSuite) TestVerifyBatchTooLarge() {
	numbers := make([]string, models.MaxBatchSize+1)
	for i := range numbers {
		numbers[i] = "234566169842"
	}
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/aadhaar/verify/batch",
		models.BatchRequest{Numbers: numbers}))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
}

func (s *HandlerSuite) TestListVerifications() {
	s.Run("passes limit through", func() {
		s.service.EXPECT().ListRecent(gomock.Any(), 2).Return([]*models.Verification{
			sampleVerification(true), sampleVerification(false),
		}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/admin/verifications?limit=2"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.VerificationListResponse](s.T(), rr)
		s.Equal(2, resp.Count)
		s.Len(resp.Verifications, 2)
	})

	s.Run("empty ledger renders an empty list", func() {
		s.service.EXPECT().ListRecent(gomock.Any(), 0).Return(nil, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/admin/verifications"))

		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"verifications":[],"count":0}`, rr.Body.String())
	})

	s.Run("non-numeric limit", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/admin/verifications?limit=ten"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestGetVerification() {
	s.Run("found", func() {
		v := sampleVerification(true)
		s.service.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/admin/verifications/"+v.ID.String()))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "id", v.ID.String())
	})

	s.Run("not found", func() {
		vid := id.NewVerificationID()
		s.service.EXPECT().Get(gomock.Any(), vid).Return(nil, dErrors.New(dErrors.CodeNotFound, "verification not found"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/admin/verifications/"+vid.String()))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/admin/verifications/not-a-uuid"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

// testSubjectHash stands in for a keyed subject hash; stores treat it as opaque.
const testSubjectHash = "5f0c3a9e7d21b84c6e93f0a1d2c4b5e6f708192a3b4c5d6e7f8091a2b3c4d5e6"
