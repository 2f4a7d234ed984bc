package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
)

// ErrQueueFull indicates the recorder could not accept an entry within the
// bounded enqueue timeout. Callers log it; they never fail the business
// operation over it.
var ErrQueueFull = errors.New("audit queue full, entry dropped")

// ErrRecorderClosed indicates Record was called after Close
var ErrRecorderClosed = errors.New("audit recorder closed")

// AlertSink receives entries that could not be persisted after all retries.
// This is the operational escape hatch: a dropped audit entry must be
// visible somewhere.
type AlertSink interface {
	AuditWriteFailed(entry *Entry, err error)
}

// logAlertSink is the default alert sink, logging at error level
type logAlertSink struct {
	logger *observability.Logger
}

func (s *logAlertSink) AuditWriteFailed(entry *Entry, err error) {
	s.logger.WithError(err).WithFields(map[string]interface{}{
		"log_id":      entry.LogID,
		"tenant_id":   entry.TenantID,
		"actor_id":    entry.ActorID,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"action":      entry.Action,
	}).Error("audit entry dropped after exhausting retries")
}

// RecorderConfig tunes the recorder's queue and retry behaviour
type RecorderConfig struct {
	QueueSize      int
	MaxRetries     int
	RetryBackoff   time.Duration
	EnqueueTimeout time.Duration
}

// DefaultRecorderConfig returns the defaults used when fields are zero
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		QueueSize:      1024,
		MaxRetries:     3,
		RetryBackoff:   250 * time.Millisecond,
		EnqueueTimeout: 50 * time.Millisecond,
	}
}

// Recorder persists audit entries off the request path through a bounded
// queue drained by a single worker. The single worker is what gives
// submitted-order persistence per entity; cross-entity ordering is not
// guaranteed to observers reading by timestamp.
type Recorder struct {
	sink    Sink
	config  RecorderConfig
	logger  *observability.Logger
	metrics *observability.Metrics
	alerts  AlertSink

	queue     chan *Entry
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewRecorder creates and starts a recorder draining into sink
func NewRecorder(sink Sink, config RecorderConfig, metrics *observability.Metrics, logger *observability.Logger, alerts AlertSink) *Recorder {
	defaults := DefaultRecorderConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.EnqueueTimeout <= 0 {
		config.EnqueueTimeout = defaults.EnqueueTimeout
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if alerts == nil {
		alerts = &logAlertSink{logger: logger}
	}

	r := &Recorder{
		sink:    sink,
		config:  config,
		logger:  logger,
		metrics: metrics,
		alerts:  alerts,
		queue:   make(chan *Entry, config.QueueSize),
		done:    make(chan struct{}),
	}

	go r.drain()
	return r
}

// Record enqueues an entry for persistence. It blocks at most the enqueue
// timeout; when the queue stays full the entry is dropped with a warning
// rather than holding up the request.
func (r *Recorder) Record(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return nil
	}
	entry.normalize()

	// The read lock pairs with Close's write lock so the queue can never be
	// closed mid-send.
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}

	select {
	case r.queue <- entry:
		r.metrics.AuditQueueDepth.Set(float64(len(r.queue)))
		return nil
	default:
	}

	// Queue is full: wait out the bounded enqueue window, then drop
	timer := time.NewTimer(r.config.EnqueueTimeout)
	defer timer.Stop()

	select {
	case r.queue <- entry:
		r.metrics.AuditQueueDepth.Set(float64(len(r.queue)))
		return nil
	case <-timer.C:
		r.metrics.AuditDroppedTotal.WithLabelValues("queue_full").Inc()
		r.logger.WithFields(map[string]interface{}{
			"log_id": entry.LogID,
			"action": entry.Action,
		}).Warn("audit queue full, dropping entry")
		return ErrQueueFull
	case <-ctx.Done():
		r.metrics.AuditDroppedTotal.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

// drain is the single persistence worker
func (r *Recorder) drain() {
	defer close(r.done)

	for entry := range r.queue {
		r.persist(entry)
		r.metrics.AuditQueueDepth.Set(float64(len(r.queue)))
	}
}

// persist writes one entry with bounded retries and backoff
func (r *Recorder) persist(entry *Entry) {
	backoff := r.config.RetryBackoff

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			r.metrics.AuditRetriesTotal.Inc()
			time.Sleep(backoff)
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lastErr = r.sink.Insert(ctx, entry)
		cancel()

		if lastErr == nil {
			r.metrics.AuditPersistedTotal.Inc()
			return
		}
	}

	r.metrics.AuditDroppedTotal.WithLabelValues("persist_failed").Inc()
	r.alerts.AuditWriteFailed(entry, lastErr)
}

// Close stops accepting entries and drains what is already queued
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.queue)
	})
	<-r.done
	return nil
}
