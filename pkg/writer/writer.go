// Package writer decouples measurement producers from the sink. Producers
// Submit into a bounded buffer without blocking; a single flush actor started
// with Run drains the buffer on a fixed period, or when asked through Flush,
// and ships each batch to the sink with bounded retries.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/vjranagit/tickstats/pkg/types"
)

var (
	// ErrWriterStopped is returned by Flush once Run has returned
	ErrWriterStopped = errors.New("writer stopped")
	// ErrAlreadyRunning is returned by a second call to Run
	ErrAlreadyRunning = errors.New("writer already running")
)

// Sink receives batches of measurements. Write may block on network I/O.
type Sink interface {
	Write(ctx context.Context, batch []types.Measurement) error
}

// Retryable is implemented by sink errors that know whether another attempt
// could succeed. Errors that do not implement it are retried.
type Retryable interface {
	Retryable() bool
}

// Config holds writer configuration
type Config struct {
	FlushInterval        time.Duration
	BufferSize           int
	MaxRetries           uint
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	WriteTimeout         time.Duration
	ShutdownTimeout      time.Duration
	// BlockWindow suppresses series written within this window; 0 disables it
	BlockWindow    time.Duration
	FilterCapacity int
	DisabledSeries []string
}

// DefaultConfig returns default writer configuration
func DefaultConfig() Config {
	return Config{
		FlushInterval:        15 * time.Second,
		BufferSize:           50_000,
		MaxRetries:           3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		WriteTimeout:         10 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		BlockWindow:          0,
		FilterCapacity:       4096,
	}
}

// Health is a point-in-time view of the writer
type Health struct {
	Healthy   bool
	Running   bool
	LastError error
	LastFlush time.Time
	Buffered  int
	Submitted uint64
	Flushed   uint64
	Dropped   uint64
}

type flushRequest struct {
	done chan error
}

// Writer buffers measurements and flushes them to a Sink
type Writer struct {
	cfg     Config
	sink    Sink
	logger  logr.Logger
	buffer  *Buffer
	filter  *Filter
	metrics *writerMetrics
	now     func() time.Time

	flushReq chan flushRequest
	stopped  chan struct{}
	running  atomic.Bool
	started  atomic.Bool

	// Drop warnings on the producer path are throttled
	dropWarn rate.Sometimes

	submitted atomic.Uint64
	flushed   atomic.Uint64
	dropped   atomic.Uint64
	lastFlush atomic.Int64
	lastError atomic.Pointer[error]
}

// NewWriter creates a writer. reg may be nil to skip metric registration.
func NewWriter(cfg Config, sink Sink, logger logr.Logger, reg prometheus.Registerer) (*Writer, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive")
	}

	buffer := NewBuffer(cfg.BufferSize)
	metrics := newWriterMetrics(buffer)
	if err := metrics.register(reg); err != nil {
		return nil, err
	}

	return &Writer{
		cfg:      cfg,
		sink:     sink,
		logger:   logger.WithName("writer"),
		buffer:   buffer,
		filter:   NewFilter(cfg.BlockWindow, cfg.FilterCapacity, cfg.DisabledSeries...),
		metrics:  metrics,
		now:      time.Now,
		flushReq: make(chan flushRequest),
		stopped:  make(chan struct{}),
		dropWarn: rate.Sometimes{Interval: 10 * time.Second},
	}, nil
}

// Filter exposes the writer's series filter
func (w *Writer) Filter() *Filter {
	return w.filter
}

// Submit stamps m with the current time and queues it. It never blocks on
// I/O. A measurement without fields, a full buffer or a writer that has
// already stopped drops m and counts it.
func (w *Writer) Submit(m types.Measurement) {
	if m.Len() == 0 {
		w.drop(dropEmpty, 1)
		return
	}

	err := w.buffer.Push(m.WithTime(w.now()))
	if errors.Is(err, ErrBufferClosed) {
		w.drop(dropStopped, 1)
		return
	}
	if err != nil {
		w.drop(dropFull, 1)
		w.dropWarn.Do(func() {
			w.logger.Info("write buffer full, dropping measurements",
				"capacity", w.buffer.Cap(),
				"dropped", w.dropped.Load())
		})
		return
	}

	w.submitted.Add(1)
	w.metrics.submitted.Inc()
}

// IsBlocked reports whether s was written within the block window or has
// its measurement name disabled
func (w *Writer) IsBlocked(s types.Series) bool {
	blocked := w.filter.IsBlocked(s, w.now())
	if blocked {
		w.metrics.blocked.Inc()
	}
	return blocked
}

// Run drives periodic flushes until ctx is cancelled, then performs a final
// flush bounded by the shutdown timeout. It is the only caller of Drain.
func (w *Writer) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	w.running.Store(true)
	defer func() {
		w.running.Store(false)
		close(w.stopped)
	}()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	w.logger.Info("flush loop started", "interval", w.cfg.FlushInterval.String())

	for {
		select {
		case <-ctx.Done():
			return w.shutdown()

		case <-ticker.C:
			if err := w.flush(ctx); err != nil {
				w.logger.Error(err, "periodic flush failed")
			}

		case req := <-w.flushReq:
			req.done <- w.flush(ctx)
		}
	}
}

func (w *Writer) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownTimeout)
	defer cancel()

	// Close before draining so nothing can be queued behind the final batch
	w.buffer.Close()
	err := w.flush(ctx)
	if err != nil {
		w.logger.Error(err, "final flush failed, buffered measurements lost")
	}
	w.logger.Info("flush loop stopped")
	return err
}

// Flush asks the running flush actor to flush now and waits for the result.
// It returns ErrWriterStopped after Run has returned, and blocks until ctx
// is done if Run was never started.
func (w *Writer) Flush(ctx context.Context) error {
	req := flushRequest{done: make(chan error, 1)}

	select {
	case w.flushReq <- req:
	case <-w.stopped:
		return ErrWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush drains the buffer and writes one batch
func (w *Writer) flush(ctx context.Context) error {
	drained := w.buffer.Drain()
	if len(drained) == 0 {
		return nil
	}

	batch := collapse(drained)
	if n := len(drained) - len(batch); n > 0 {
		w.metrics.collapsed.Add(float64(n))
	}

	start := time.Now()
	err := w.write(ctx, batch)
	w.metrics.flushDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		w.metrics.flushErrors.Inc()
		w.drop(dropSink, len(batch))
		w.lastError.Store(&err)
		return fmt.Errorf("failed to write batch of %d measurements: %w", len(batch), err)
	}

	now := w.now()
	for _, m := range batch {
		w.filter.Record(m.Series(), now)
	}

	w.flushed.Add(uint64(len(batch)))
	w.metrics.flushed.Add(float64(len(batch)))
	w.lastFlush.Store(now.UnixNano())
	w.lastError.Store(nil)

	w.logger.V(1).Info("flushed batch",
		"measurements", len(batch),
		"collapsed", len(drained)-len(batch),
		"duration", time.Since(start).String())

	return nil
}

// write sends batch to the sink, retrying with exponential backoff until it
// succeeds, fails permanently or runs out of attempts
func (w *Writer) write(ctx context.Context, batch []types.Measurement) error {
	b := backoff.NewExponentialBackOff()
	if w.cfg.RetryInitialInterval > 0 {
		b.InitialInterval = w.cfg.RetryInitialInterval
	}
	if w.cfg.RetryMaxInterval > 0 {
		b.MaxInterval = w.cfg.RetryMaxInterval
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		wctx := ctx
		if w.cfg.WriteTimeout > 0 {
			var cancel context.CancelFunc
			wctx, cancel = context.WithTimeout(ctx, w.cfg.WriteTimeout)
			defer cancel()
		}

		err := w.sink.Write(wctx, batch)
		if err == nil {
			return struct{}{}, nil
		}

		var r Retryable
		if errors.As(err, &r) && !r.Retryable() {
			return struct{}{}, backoff.Permanent(err)
		}

		w.logger.V(1).Info("sink write failed", "attempt", attempt, "error", err.Error())
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(w.cfg.MaxRetries+1),
	)
	return err
}

func (w *Writer) drop(reason string, n int) {
	w.dropped.Add(uint64(n))
	w.metrics.dropped.WithLabelValues(reason).Add(float64(n))
}

// Health returns the current writer status
func (w *Writer) Health() Health {
	h := Health{
		Running:   w.running.Load(),
		Buffered:  w.buffer.Len(),
		Submitted: w.submitted.Load(),
		Flushed:   w.flushed.Load(),
		Dropped:   w.dropped.Load(),
	}
	if ts := w.lastFlush.Load(); ts > 0 {
		h.LastFlush = time.Unix(0, ts)
	}
	if errPtr := w.lastError.Load(); errPtr != nil {
		h.LastError = *errPtr
	}
	h.Healthy = h.Running && h.LastError == nil
	return h
}
