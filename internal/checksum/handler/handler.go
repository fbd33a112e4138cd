package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"idcheck/internal/checksum/models"
	id "idcheck/pkg/domain"
	dErrors "idcheck/pkg/domain-errors"
	"idcheck/pkg/platform/httputil"
	request "idcheck/pkg/platform/middleware/request"
)

// Service defines the checksum operations used by the handler.
type Service interface {
	Generate(ctx context.Context, digits []int) (int, error)
	Verify(ctx context.Context, digits []int) (bool, error)
	CheckDigit(ctx context.Context, payload []int) (int, error)
	VerifyAadhaar(ctx context.Context, raw string) (*models.Verification, error)
	VerifyBatch(ctx context.Context, raws []string) ([]models.BatchResult, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Verification, error)
	Get(ctx context.Context, vid id.VerificationID) (*models.Verification, error)
}

// Handler serves the checksum and Aadhaar verification endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/checksum/generate", h.HandleGenerate)
	r.Post("/checksum/verify", h.HandleVerify)
	r.Post("/checksum/check-digit", h.HandleCheckDigit)
	r.Post("/aadhaar/verify", h.HandleVerifyAadhaar)
	r.Post("/aadhaar/verify/batch", h.HandleVerifyBatch)
}

// RegisterAdmin mounts the ledger routes. The caller is responsible for
// guarding them with admin authentication.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/verifications", h.HandleListVerifications)
	r.Get("/admin/verifications/{id}", h.HandleGetVerification)
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.DigitsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sum, err := h.service.Generate(ctx, req.Digits)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "generate checksum", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.ChecksumResponse{Checksum: sum})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.DigitsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	valid, err := h.service.Verify(ctx, req.Digits)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "verify checksum", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.VerifyResponse{Valid: valid})
}

func (h *Handler) HandleCheckDigit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.DigitsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.CheckDigit(ctx, req.Digits)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "compute check digit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.CheckDigitResponse{CheckDigit: d})
}

func (h *Handler) HandleVerifyAadhaar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.AadhaarRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	v, err := h.service.VerifyAadhaar(ctx, req.Number)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "verify aadhaar", err)
		return
	}

	h.logger.InfoContext(ctx, "aadhaar verified",
		"request_id", requestID,
		"verification_id", v.ID.String(),
		"valid", v.Valid,
	)
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(v))
}

func (h *Handler) HandleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.VerifyBatch(ctx, req.Numbers)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "verify aadhaar batch", err)
		return
	}

	resp := models.BatchResponse{
		Results: make([]models.BatchItemResponse, len(results)),
		Total:   len(results),
	}
	for i, res := range results {
		item := models.BatchItemResponse{Index: i}
		if res.Err != nil {
			item.Error = string(dErrors.CodeOf(res.Err))
			item.ErrorDescription = dErrors.Message(res.Err)
		} else {
			vr := models.ToResponse(res.Verification)
			item.Verification = &vr
			if vr.Valid {
				resp.Valid++
			}
		}
		resp.Results[i] = item
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleListVerifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeServiceError(ctx, w, requestID, "list verifications",
				dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		limit = n
	}

	list, err := h.service.ListRecent(ctx, limit)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "list verifications", err)
		return
	}

	resp := models.VerificationListResponse{
		Verifications: make([]models.VerificationResponse, 0, len(list)),
		Count:         len(list),
	}
	for _, v := range list {
		resp.Verifications = append(resp.Verifications, models.ToResponse(v))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	vid, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "get verification", err)
		return
	}

	v, err := h.service.Get(ctx, vid)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "get verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(v))
}

// writeServiceError logs client errors at warn and everything else at error.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, requestID, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestID,
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, op+" rejected",
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
