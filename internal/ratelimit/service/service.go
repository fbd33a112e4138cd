// Package service decides whether a client may make another request in the
// current fixed window.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"idcheck/internal/ratelimit/metrics"
	"idcheck/internal/ratelimit/models"
	"idcheck/internal/ratelimit/observability"
	"idcheck/pkg/platform/audit"
	"idcheck/pkg/platform/circuit"
	"idcheck/pkg/platform/privacy"
	"idcheck/pkg/requestcontext"
)

const (
	defaultLimit  = 120
	defaultWindow = time.Minute
)

// WindowStore counts requests in fixed windows.
type WindowStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
}

type Service struct {
	primary  WindowStore
	fallback WindowStore
	breaker  *circuit.Breaker
	limit    int
	window   time.Duration

	auditPublisher observability.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher observability.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimit sets the number of requests allowed per window.
func WithLimit(limit int, window time.Duration) Option {
	return func(s *Service) {
		if limit > 0 {
			s.limit = limit
		}
		if window > 0 {
			s.window = window
		}
	}
}

// WithFallback serves counters from fallback while breaker is open.
func WithFallback(fallback WindowStore, breaker *circuit.Breaker) Option {
	return func(s *Service) {
		s.fallback = fallback
		s.breaker = breaker
	}
}

func New(primary WindowStore, opts ...Option) (*Service, error) {
	if primary == nil {
		return nil, errors.New("window store is required")
	}
	svc := &Service{
		primary: primary,
		limit:   defaultLimit,
		window:  defaultWindow,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.fallback != nil && svc.breaker == nil {
		svc.breaker = circuit.New("ratelimit")
	}
	return svc, nil
}

// CheckIP counts one request for ip. A store error is returned to the caller,
// which is expected to fail open.
func (s *Service) CheckIP(ctx context.Context, ip string) (*models.Result, error) {
	now := requestcontext.Now(ctx)
	windowStart := now.Truncate(s.window)
	resetAt := windowStart.Add(s.window)
	key := models.NewWindowKey(models.KeyPrefixIP, ip, windowStart)

	count, degraded, err := s.increment(ctx, key)
	if err != nil {
		s.incrementDecision("error")
		return nil, err
	}

	result := &models.Result{
		Allowed:   count <= s.limit,
		Limit:     s.limit,
		Remaining: max(s.limit-count, 0),
		ResetAt:   resetAt,
		Degraded:  degraded,
	}
	if result.Allowed {
		s.incrementDecision("allowed")
		return result, nil
	}

	result.RetryAfter = retryAfterSeconds(resetAt.Sub(now))
	s.incrementDecision("denied")
	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventRateLimitExceeded,
		"ip_prefix", privacy.AnonymizeIP(ip),
		"decision", "denied",
		"reason", "ip_window_exceeded",
		"limit", s.limit,
	)
	return result, nil
}

// increment tries the primary store first. While the breaker is open the
// primary is still tried so it can close again, but the fallback count wins.
func (s *Service) increment(ctx context.Context, key string) (count int, degraded bool, err error) {
	count, err = s.primary.Increment(ctx, key, s.window)
	if s.fallback == nil {
		return count, false, err
	}

	if err != nil {
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback", "error", err)
			if s.metrics != nil {
				s.metrics.CircuitOpened()
			}
		}
		if !useFallback {
			return 0, false, err
		}
		count, err = s.fallback.Increment(ctx, key, s.window)
		return count, true, err
	}

	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "rate limit store recovered")
		if s.metrics != nil {
			s.metrics.CircuitClosed()
		}
	}
	if usePrimary {
		return count, false, nil
	}
	count, err = s.fallback.Increment(ctx, key, s.window)
	return count, true, err
}

func (s *Service) incrementDecision(decision string) {
	if s.metrics != nil {
		s.metrics.IncrementDecision(decision)
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
