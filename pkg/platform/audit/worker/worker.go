package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "idcheck/pkg/platform/audit"
	txcontext "idcheck/pkg/platform/tx"
)

// Sink receives relayed outbox entries, typically a Kafka producer.
type Sink interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Worker relays pending outbox entries to a Sink on a fixed interval.
// Entries are marked published only after the sink accepts them, so delivery
// is at-least-once.
type Worker struct {
	outbox    audit.Outbox
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
	tx        txcontext.Runner
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithTxRunner claims, publishes and marks each batch inside one transaction
// so row locks taken by the outbox hold until the batch is marked. Required
// when several relays share a PostgreSQL outbox.
func WithTxRunner(runner txcontext.Runner) Option {
	return func(w *Worker) {
		if runner != nil {
			w.tx = runner
		}
	}
}

func NewWorker(outbox audit.Outbox, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		sink:      sink,
		logger:    slog.Default(),
		interval:  time.Second,
		batchSize: 100,
		now:       time.Now,
		tx:        txcontext.NopRunner{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled. Relay errors are logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were relayed.
// Entries published before a sink failure are still marked.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	var (
		relayed    int
		publishErr error
	)
	err := w.tx.RunInTx(ctx, func(ctx context.Context) error {
		pending, err := w.outbox.PendingOutbox(ctx, w.batchSize)
		if err != nil {
			return err
		}
		done := make([]uuid.UUID, 0, len(pending))
		for _, e := range pending {
			if err := w.sink.Publish(ctx, e.AggregateID, e.Payload); err != nil {
				publishErr = err
				break
			}
			done = append(done, e.ID)
		}
		if err := w.outbox.MarkPublished(ctx, done, w.now()); err != nil {
			return err
		}
		relayed = len(done)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return relayed, publishErr
}
