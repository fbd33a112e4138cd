package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"idcheck/internal/ratelimit/metrics"
	"idcheck/internal/ratelimit/store/window"
	"idcheck/pkg/platform/audit"
	auditmemory "idcheck/pkg/platform/audit/store/memory"
	"idcheck/pkg/platform/audit/publisher"
	"idcheck/pkg/platform/circuit"
	"idcheck/pkg/requestcontext"
)

// flakyStore fails while down is set and otherwise delegates to a memory store.
type flakyStore struct {
	down  bool
	calls int
	inner *window.InMemoryStore
}

func (f *flakyStore) Increment(ctx context.Context, key string, w time.Duration) (int, error) {
	f.calls++
	if f.down {
		return 0, errors.New("connection refused")
	}
	return f.inner.Increment(ctx, key, w)
}

type ServiceSuite struct {
	suite.Suite
	primary    *flakyStore
	auditStore *auditmemory.InMemoryStore
	metrics    *metrics.Metrics
	svc        *Service
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.primary = &flakyStore{inner: window.NewInMemoryStore()}
	s.auditStore = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	svc, err := New(s.primary,
		WithLimit(3, time.Minute),
		WithFallback(window.NewInMemoryStore(), circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(2))),
		WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.svc = svc

	// 12:00:20, forty seconds before the window resets
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 20, 0, time.UTC))
}

func (s *ServiceSuite) TestCheckIP() {
	s.Run("allows up to the limit", func() {
		for i := 1; i <= 3; i++ {
			res, err := s.svc.CheckIP(s.ctx, "203.0.113.1")
			s.Require().NoError(err)
			s.True(res.Allowed)
			s.Equal(3-i, res.Remaining)
			s.Equal(time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC), res.ResetAt)
		}
	})

	s.Run("denies over the limit with retry after", func() {
		res, err := s.svc.CheckIP(s.ctx, "203.0.113.1")
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(0, res.Remaining)
		s.Equal(40, res.RetryAfter)
	})

	s.Run("emits a security audit event on denial", func() {
		events, err := s.auditStore.ListRecent(context.Background(), 10)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventRateLimitExceeded), events[0].Action)
		s.Equal(audit.CategorySecurity, events[0].Category)
		s.Equal("203.0.113.0/24", events[0].ClientIP)
	})

	s.Run("next window starts fresh", func() {
		next := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC))
		res, err := s.svc.CheckIP(next, "203.0.113.1")
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2, res.Remaining)
	})

	s.Run("other clients are independent", func() {
		res, err := s.svc.CheckIP(s.ctx, "198.51.100.9")
		s.Require().NoError(err)
		s.True(res.Allowed)
	})

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Decisions.WithLabelValues("denied")))
}

func (s *ServiceSuite) TestStoreFailureBelowThresholdReturnsError() {
	s.primary.down = true

	_, err := s.svc.CheckIP(s.ctx, "203.0.113.1")
	s.Error(err)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Decisions.WithLabelValues("error")))
}

func (s *ServiceSuite) TestFallbackWhileCircuitOpen() {
	s.primary.down = true
	_, _ = s.svc.CheckIP(s.ctx, "203.0.113.1")

	res, err := s.svc.CheckIP(s.ctx, "203.0.113.1")
	s.Require().NoError(err)
	s.True(res.Degraded)
	s.True(res.Allowed)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.FallbackActive))

	s.Run("still enforces the limit in fallback", func() {
		for range 2 {
			_, err := s.svc.CheckIP(s.ctx, "203.0.113.1")
			s.Require().NoError(err)
		}
		res, err := s.svc.CheckIP(s.ctx, "203.0.113.1")
		s.Require().NoError(err)
		s.False(res.Allowed)
	})

	s.Run("closes after consecutive primary successes", func() {
		s.primary.down = false
		res, err := s.svc.CheckIP(s.ctx, "198.51.100.1")
		s.Require().NoError(err)
		s.True(res.Degraded)

		res, err = s.svc.CheckIP(s.ctx, "198.51.100.1")
		s.Require().NoError(err)
		s.False(res.Degraded)
		s.Equal(float64(0), testutil.ToFloat64(s.metrics.FallbackActive))
	})
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}
