// Package service exposes Verhoeff checksum operations and Aadhaar number
// verification with a hashed ledger, an outcome cache and audit events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"idcheck/internal/checksum/metrics"
	"idcheck/internal/checksum/models"
	id "idcheck/pkg/domain"
	dErrors "idcheck/pkg/domain-errors"
	"idcheck/pkg/platform/audit"
	"idcheck/pkg/platform/privacy"
	"idcheck/pkg/platform/sentinel"
	txcontext "idcheck/pkg/platform/tx"
	"idcheck/pkg/requestcontext"
	"idcheck/pkg/verhoeff"
)

const (
	tracerName = "idcheck/internal/checksum"

	defaultListLimit        = 50
	maxListLimit            = 500
	defaultBatchConcurrency = 8
)

type Service struct {
	store            Store
	tx               txcontext.Runner
	cache            Cache
	auditPublisher   AuditPublisher
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
	hasher           *id.SubjectHasher
	batchConcurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithTxRunner makes the ledger append and its audit event atomic.
func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithSubjectHasher sets the keyed hash used for ledger, audit and cache
// keys. Without it the service hashes with a random per-process key.
func WithSubjectHasher(h *id.SubjectHasher) Option {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithBatchConcurrency bounds parallel verifications within one batch.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("verification store is required")
	}
	svc := &Service{
		store:            store,
		tx:               txcontext.NopRunner{},
		logger:           slog.Default(),
		tracer:           otel.Tracer(tracerName),
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.hasher == nil {
		h, err := id.NewRandomSubjectHasher()
		if err != nil {
			return nil, err
		}
		svc.hasher = h
	}
	return svc, nil
}

// Generate returns the Verhoeff checksum of digits, check digit included.
func (s *Service) Generate(ctx context.Context, digits []int) (int, error) {
	ctx, span := s.startSpan(ctx, "checksum.Generate", attribute.Int("digits.count", len(digits)))
	defer span.End()
	defer s.observe("generate", time.Now())

	sum, err := verhoeff.Generate(digits)
	if err != nil {
		return 0, s.inputError(ctx, span, err)
	}
	span.SetAttributes(attribute.Int("checksum", sum))
	return sum, nil
}

// Verify reports whether digits carry a valid trailing check digit.
func (s *Service) Verify(ctx context.Context, digits []int) (bool, error) {
	ctx, span := s.startSpan(ctx, "checksum.Verify", attribute.Int("digits.count", len(digits)))
	defer span.End()
	defer s.observe("verify", time.Now())

	ok, err := verhoeff.Verify(digits)
	if err != nil {
		s.incrementVerification("digits", "malformed")
		return false, s.inputError(ctx, span, err)
	}
	s.incrementVerification("digits", resultLabel(ok))
	span.SetAttributes(attribute.Bool("valid", ok))
	return ok, nil
}

// CheckDigit returns the digit to append to payload.
func (s *Service) CheckDigit(ctx context.Context, payload []int) (int, error) {
	ctx, span := s.startSpan(ctx, "checksum.CheckDigit", attribute.Int("digits.count", len(payload)))
	defer span.End()
	defer s.observe("check_digit", time.Now())

	d, err := verhoeff.CheckDigit(payload)
	if err != nil {
		return 0, s.inputError(ctx, span, err)
	}
	return d, nil
}

// VerifyAadhaar checks a 12-digit Aadhaar number. A checksum mismatch is a
// result with Valid false; only malformed input is an error. Every result is
// audited and then appended to the ledger. With a SQL runner both writes
// commit together; otherwise a failed audit leaves no ledger row, while a
// failed append after a recorded audit event leaves that event behind.
func (s *Service) VerifyAadhaar(ctx context.Context, raw string) (*models.Verification, error) {
	ctx, span := s.startSpan(ctx, "checksum.VerifyAadhaar")
	defer span.End()
	defer s.observe("verify_aadhaar", time.Now())

	digits, err := id.AadhaarDigits(raw)
	if err != nil {
		s.incrementVerification(string(models.KindAadhaar), "malformed")
		recordSpanError(span, "malformed aadhaar number", err)
		return nil, err
	}

	normalized := id.NormalizeAadhaar(raw)
	hash := s.hasher.Hash(normalized)

	outcome, err := s.outcome(ctx, hash, digits)
	if err != nil {
		recordSpanError(span, "compute checksum", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify aadhaar number")
	}

	v := &models.Verification{
		ID:          id.NewVerificationID(),
		SubjectHash: hash,
		Masked:      id.MaskAadhaar(normalized),
		Valid:       outcome.Valid,
		Checksum:    outcome.Checksum,
		Kind:        models.KindAadhaar,
		RequestID:   requestcontext.RequestID(ctx),
		CheckedAt:   requestcontext.Now(ctx),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.emitVerification(ctx, v); err != nil {
			return err
		}
		if err := s.store.Append(ctx, v); err != nil {
			return fmt.Errorf("append verification: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record verification",
			"verification_id", v.ID.String(),
			"request_id", v.RequestID,
			"error", err,
		)
		recordSpanError(span, "record verification", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification")
	}

	s.incrementVerification(string(models.KindAadhaar), resultLabel(v.Valid))
	span.SetAttributes(
		attribute.String("verification.id", v.ID.String()),
		attribute.Bool("valid", v.Valid),
	)
	return v, nil
}

// VerifyBatch verifies up to models.MaxBatchSize numbers concurrently.
// Results keep input order. Malformed entries are reported per item; any
// other failure aborts the batch.
func (s *Service) VerifyBatch(ctx context.Context, raws []string) ([]models.BatchResult, error) {
	if len(raws) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "numbers is required")
	}
	if len(raws) > models.MaxBatchSize {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d numbers per batch", models.MaxBatchSize))
	}

	ctx, span := s.startSpan(ctx, "checksum.VerifyBatch", attribute.Int("batch.size", len(raws)))
	defer span.End()
	defer s.observe("verify_batch", time.Now())
	if s.metrics != nil {
		s.metrics.ObserveBatchSize(len(raws))
	}

	results := make([]models.BatchResult, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, raw := range raws {
		g.Go(func() error {
			v, err := s.VerifyAadhaar(gctx, raw)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvalidInput) || dErrors.HasCode(err, dErrors.CodeValidation) {
					results[i] = models.BatchResult{Err: err}
					return nil
				}
				return err
			}
			results[i] = models.BatchResult{Verification: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordSpanError(span, "batch verification", err)
		return nil, err
	}
	return results, nil
}

// ListRecent returns the newest ledger entries. limit 0 selects the default.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*models.Verification, error) {
	if limit < 0 || limit > maxListLimit {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
	}
	if limit == 0 {
		limit = defaultListLimit
	}

	ctx, span := s.startSpan(ctx, "checksum.ListRecent", attribute.Int("limit", limit))
	defer span.End()

	list, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		recordSpanError(span, "list verifications", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
	}
	s.emitLedgerAccess(ctx, "list")
	return list, nil
}

// Get returns one ledger entry.
func (s *Service) Get(ctx context.Context, vid id.VerificationID) (*models.Verification, error) {
	ctx, span := s.startSpan(ctx, "checksum.Get", attribute.String("verification.id", vid.String()))
	defer span.End()

	v, err := s.store.FindByID(ctx, vid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		recordSpanError(span, "find verification", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}
	s.emitLedgerAccess(ctx, "get")
	return v, nil
}

// outcome consults the cache before computing. Cache failures only cost
// the lookup.
func (s *Service) outcome(ctx context.Context, hash string, digits []int) (models.Outcome, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, hash)
		switch {
		case err == nil:
			s.incrementCacheLookup("hit")
			return cached, nil
		case errors.Is(err, sentinel.ErrNotFound):
			s.incrementCacheLookup("miss")
		default:
			s.incrementCacheLookup("error")
			s.logger.WarnContext(ctx, "verification cache lookup failed", "error", err)
		}
	}

	sum, err := verhoeff.Generate(digits)
	if err != nil {
		return models.Outcome{}, err
	}
	outcome := models.Outcome{Valid: sum == 0, Checksum: sum}

	if s.cache != nil {
		if err := s.cache.Set(ctx, hash, outcome); err != nil {
			s.logger.WarnContext(ctx, "verification cache write failed", "error", err)
		}
	}
	return outcome, nil
}

func (s *Service) emitVerification(ctx context.Context, v *models.Verification) error {
	if s.auditPublisher == nil {
		return nil
	}
	event := audit.Event{
		Action:        string(audit.EventAadhaarVerified),
		SubjectIDHash: v.SubjectHash,
		Decision:      "valid",
		RequestID:     v.RequestID,
		Timestamp:     v.CheckedAt,
		ClientIP:      anonymizedClientIP(ctx),
	}
	if !v.Valid {
		event.Action = string(audit.EventAadhaarRejected)
		event.Decision = "invalid"
		event.Reason = "checksum_mismatch"
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return fmt.Errorf("emit audit event: %w", err)
	}
	return nil
}

// emitLedgerAccess is best effort: a read is not failed for a lost audit event.
func (s *Service) emitLedgerAccess(ctx context.Context, operation string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(audit.EventLedgerAccessed),
		Decision:  operation,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  anonymizedClientIP(ctx),
		ActorID:   "admin",
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit ledger access event", "error", err)
	}
}

// inputError converts a verhoeff input error into a validation error that
// names the offending position.
func (s *Service) inputError(ctx context.Context, span trace.Span, err error) error {
	recordSpanError(span, "invalid digits", err)
	var inputErr *verhoeff.InvalidInputError
	if !errors.As(err, &inputErr) {
		s.logger.ErrorContext(ctx, "unexpected checksum error", "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "checksum failed")
	}
	if inputErr.Position < 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "digits must not be empty")
	}
	return dErrors.Wrap(err, dErrors.CodeValidation,
		fmt.Sprintf("digit at position %d must be between 0 and 9, got %d", inputErr.Position, inputErr.Value))
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, start)
	}
}

func (s *Service) incrementVerification(kind, result string) {
	if s.metrics != nil {
		s.metrics.IncrementVerification(kind, result)
	}
}

func (s *Service) incrementCacheLookup(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementCacheLookup(outcome)
	}
}

func recordSpanError(span trace.Span, msg string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func resultLabel(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}

func anonymizedClientIP(ctx context.Context) string {
	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		return ""
	}
	return privacy.AnonymizeIP(ip)
}
