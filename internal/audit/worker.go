package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"govlink/checkin-service/internal/models"
)

var ErrQueueFull = errors.New("audit queue full")

const (
	deliveryTimeout     = 5 * time.Second
	defaultDrainTimeout = 5 * time.Second
)

type WorkerConfig struct {
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	// DrainTimeout bounds how long queued entries are still delivered after
	// shutdown starts. Each drained entry gets a single attempt.
	DrainTimeout time.Duration
	Logger       *slog.Logger
}

// Worker moves audit delivery off the scan path. Record only enqueues; the
// goroutine started by Start hands entries to the wrapped sink, retrying up
// to MaxAttempts times.
type Worker struct {
	sink         Sink
	queue        chan models.AuditEntry
	maxAttempts  int
	backoff      time.Duration
	drainTimeout time.Duration
	logger       *slog.Logger
	done         chan struct{}
}

func NewWorker(sink Sink, cfg WorkerConfig) *Worker {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		sink:         sink,
		queue:        make(chan models.AuditEntry, size),
		maxAttempts:  maxAttempts,
		backoff:      backoff,
		drainTimeout: drainTimeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

func (w *Worker) Record(_ context.Context, entry models.AuditEntry) error {
	select {
	case w.queue <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start delivers entries on a background goroutine until ctx is done, then
// gives what is already queued one attempt each within DrainTimeout. Start
// must be called once.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			if ctx.Err() != nil {
				w.drain(nil)
				return
			}
			select {
			case entry := <-w.queue:
				made, err := w.deliver(ctx, entry, w.maxAttempts)
				if err == nil {
					continue
				}
				if made < w.maxAttempts {
					// Interrupted by shutdown; it gets a last attempt in the drain.
					w.drain(&entry)
					return
				}
				w.dropped(entry, made, err)
			case <-ctx.Done():
				w.drain(nil)
				return
			}
		}
	}()
}

// Wait blocks until the worker has stopped or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) drain(pending *models.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	if pending != nil {
		if _, err := w.deliver(ctx, *pending, 1); err != nil {
			w.dropped(*pending, 1, err)
		}
	}
	for {
		if ctx.Err() != nil {
			if n := len(w.queue); n > 0 {
				w.logger.Error("audit drain timed out", "dropped", n)
			}
			return
		}
		select {
		case entry := <-w.queue:
			if _, err := w.deliver(ctx, entry, 1); err != nil {
				w.dropped(entry, 1, err)
			}
		default:
			return
		}
	}
}

// deliver tries entry up to attempts times with linear backoff and reports
// how many attempts it made. It gives up early once ctx is done.
func (w *Worker) deliver(ctx context.Context, entry models.AuditEntry, attempts int) (int, error) {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		err = w.sink.Record(attemptCtx, entry)
		cancel()
		if err == nil {
			return attempt, nil
		}
		if attempt == attempts || ctx.Err() != nil {
			return attempt, err
		}
		timer := time.NewTimer(w.backoff * time.Duration(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, err
		}
	}
	return attempts, err
}

func (w *Worker) dropped(entry models.AuditEntry, attempts int, err error) {
	w.logger.Error("audit entry dropped", "entry_id", entry.EntryID, "terminal", entry.TerminalID, "attempts", attempts, "error", err)
}
