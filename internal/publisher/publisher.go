// Package publisher delivers committed outbox events to a downstream sink.
//
// The command runtime guarantees at-least-once delivery by writing events in
// the mutation's transaction; this worker claims unpublished rows in batches,
// hands them to a Sink, and marks them published. Consumers must dedupe on
// the outbox row id. Exactly-once downstream effects are the sink's problem.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/storage"
	"github.com/angriff36/manifest/internal/telemetry"
)

// Sink receives claimed outbox events. Publish must be idempotent with
// respect to event IDs: a crash between Publish and MarkPublished redelivers.
type Sink interface {
	Publish(ctx context.Context, events []model.OutboxEvent) error
}

// LogSink writes events to the logger. The default sink for development and
// for deployments that scrape events from logs.
type LogSink struct {
	Logger *slog.Logger
}

// Publish logs each event at info level.
func (s *LogSink) Publish(_ context.Context, events []model.OutboxEvent) error {
	for _, ev := range events {
		s.Logger.Info("domain event",
			"outbox_id", ev.ID,
			"event_type", ev.EventType,
			"tenant_id", ev.TenantID,
			"aggregate_id", ev.AggregateID,
		)
	}
	return nil
}

// Worker polls the outbox table and pushes batches to the sink. A
// LISTEN/NOTIFY nudge from the runtime wakes it between polls when the
// storage layer has a notify connection.
type Worker struct {
	db           *storage.DB
	sink         Sink
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
	lease        time.Duration

	started     atomic.Bool
	cancelLoop  context.CancelFunc
	done        chan struct{}
	once        sync.Once
	wake        chan struct{}
	lastCleanup time.Time
	drainCh     chan context.Context // carries the drain context to pollLoop for the final poll
}

// NewWorker creates an outbox publisher worker.
func NewWorker(db *storage.DB, sink Sink, logger *slog.Logger, pollInterval time.Duration, batchSize int) *Worker {
	return &Worker{
		db:           db,
		sink:         sink,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		lease:        time.Minute,
		done:         make(chan struct{}),
		wake:         make(chan struct{}, 1),
		drainCh:      make(chan context.Context, 1),
	}
}

// Start begins the background poll loop. Safe to call only once; subsequent
// calls are no-ops and log a warning.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Warn("publisher: Start called more than once, ignoring")
		return
	}
	w.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancelLoop = cancel
	go w.pollLoop(loopCtx)
	go w.listenLoop(loopCtx)
}

// Drain signals the poll loop to stop, publishes remaining events, and blocks
// until done or the context expires.
func (w *Worker) Drain(ctx context.Context) {
	select {
	case w.drainCh <- ctx:
	default:
	}
	if w.cancelLoop != nil {
		w.cancelLoop()
	}
	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn("publisher: drain timed out")
	}
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain: prefer the drain context so the last poll respects
			// the caller's deadline.
			var drainCtx context.Context
			select {
			case drainCtx = <-w.drainCh:
			default:
			}
			if drainCtx != nil {
				w.processBatch(drainCtx)
			} else {
				fallbackCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				w.processBatch(fallbackCtx)
				cancel()
			}
			w.once.Do(func() { close(w.done) })
			return
		case <-w.wake:
			w.runBatch(ctx)
		case <-ticker.C:
			w.runBatch(ctx)
		}
	}
}

func (w *Worker) runBatch(ctx context.Context) {
	batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	w.processBatch(batchCtx)
	cancel()
}

// listenLoop waits for outbox notifications and nudges the poll loop. Purely
// an optimization: if the notify connection is missing or drops, the ticker
// still drives delivery.
func (w *Worker) listenLoop(ctx context.Context) {
	if err := w.db.Listen(ctx, storage.ChannelOutbox); err != nil {
		w.logger.Debug("publisher: notifications unavailable, polling only", "error", err)
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := w.db.WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("publisher: notification wait failed", "error", err)
			return
		}
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	for {
		events, err := w.db.ClaimUnpublished(ctx, w.batchSize, w.lease)
		if err != nil {
			w.logger.Error("publisher: claim unpublished", "error", err)
			return
		}
		if len(events) == 0 {
			break
		}

		ids := make([]int64, len(events))
		for i, ev := range events {
			ids[i] = ev.ID
		}

		if err := w.sink.Publish(ctx, events); err != nil {
			w.logger.Error("publisher: sink publish failed", "error", err, "count", len(events))
			if relErr := w.db.ReleaseOutboxEvents(ctx, ids, err.Error()); relErr != nil {
				w.logger.Error("publisher: release failed", "error", relErr)
			}
			return
		}

		if err := w.db.MarkPublished(ctx, ids); err != nil {
			// The sink already saw the batch; rows stay unpublished and will
			// be redelivered, which at-least-once permits.
			w.logger.Error("publisher: mark published failed", "error", err)
			return
		}
		w.logger.Debug("publisher: batch delivered", "count", len(events))

		if len(events) < w.batchSize {
			break
		}
	}

	if time.Since(w.lastCleanup) > time.Hour {
		if deleted, err := w.db.CleanupPublishedOutbox(ctx, 7*24*time.Hour); err != nil {
			w.logger.Error("publisher: cleanup failed", "error", err)
		} else if deleted > 0 {
			w.logger.Info("publisher: cleaned published events", "deleted", deleted)
		}
		if deleted, err := w.db.CleanupIdempotencyKeys(ctx); err != nil {
			w.logger.Error("publisher: idempotency cleanup failed", "error", err)
		} else if deleted > 0 {
			w.logger.Info("publisher: cleaned expired idempotency keys", "deleted", deleted)
		}
		w.lastCleanup = time.Now()
	}
}

// registerMetrics registers an observable OTEL gauge for outbox depth.
func (w *Worker) registerMetrics() {
	meter := telemetry.Meter("manifest/publisher")

	_, _ = meter.Int64ObservableGauge("manifest.outbox.depth",
		metric.WithDescription("Number of unpublished events in the outbox"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			count, err := w.db.UnpublishedOutboxCount(ctx)
			if err != nil {
				return nil // Non-fatal: just skip this observation.
			}
			o.Observe(count)
			return nil
		}),
	)
}
