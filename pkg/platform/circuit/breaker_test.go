package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome int

const (
	fail outcome = iota
	succeed
)

func TestBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		steps     []outcome
		wantState State
		wantLast  bool // useFallback for a failure, usePrimary for a success
	}{
		{
			name:      "stays closed below the failure threshold",
			opts:      []Option{WithFailureThreshold(3)},
			steps:     []outcome{fail, fail},
			wantState: StateClosed,
			wantLast:  false,
		},
		{
			name:      "opens on the threshold failure",
			opts:      []Option{WithFailureThreshold(3)},
			steps:     []outcome{fail, fail, fail},
			wantState: StateOpen,
			wantLast:  true,
		},
		{
			name:      "success in between resets the failure run",
			opts:      []Option{WithFailureThreshold(3)},
			steps:     []outcome{fail, fail, succeed, fail, fail},
			wantState: StateClosed,
			wantLast:  false,
		},
		{
			name:      "open circuit keeps the fallback until enough successes",
			opts:      []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps:     []outcome{fail, succeed, succeed},
			wantState: StateOpen,
			wantLast:  false,
		},
		{
			name:      "closes after the success threshold",
			opts:      []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps:     []outcome{fail, succeed, succeed, succeed},
			wantState: StateClosed,
			wantLast:  true,
		},
		{
			name:      "failure while recovering restarts the success run",
			opts:      []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps:     []outcome{fail, succeed, fail, succeed},
			wantState: StateOpen,
			wantLast:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("redis", tt.opts...)
			var last bool
			for _, step := range tt.steps {
				if step == fail {
					last, _ = b.RecordFailure()
				} else {
					last, _ = b.RecordSuccess()
				}
			}
			assert.Equal(t, tt.wantState, b.State())
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestBreaker_ReportsEachTransitionOnce(t *testing.T) {
	b := New("redis", WithFailureThreshold(2), WithSuccessThreshold(1))

	_, change := b.RecordFailure()
	assert.Equal(t, StateChange{}, change)
	_, change = b.RecordFailure()
	assert.True(t, change.Opened)
	_, change = b.RecordFailure()
	assert.False(t, change.Opened, "already open")

	_, change = b.RecordSuccess()
	assert.True(t, change.Closed)
	_, change = b.RecordSuccess()
	assert.Equal(t, StateChange{}, change)
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("ratelimit-redis", WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, "ratelimit-redis", b.Name())
	assert.Equal(t, "closed", b.State().String())

	for range defaultFailureThreshold - 1 {
		b.RecordFailure()
	}
	require.False(t, b.IsOpen())
	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.False(t, b.IsOpen())
}

func TestBreaker_ConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("redis", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.True(t, b.IsOpen())
	assert.Equal(t, 1, opened)
}
