package notification

import (
	"context"
	"sync"
	"time"

	obsmetrics "github.com/smallbiznis/dreamline/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultDispatchTimeout = 3 * time.Second
	defaultQueueSize       = 256
	defaultWorkers         = 4
)

type DispatcherParams struct {
	fx.In

	Log        *zap.Logger
	Notifier   Notifier
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Dispatcher publishes events off the request path through a fixed worker
// pool. Events that find the queue full are dropped and counted. Callers never
// observe publication errors.
type Dispatcher struct {
	log        *zap.Logger
	notifier   Notifier
	obsMetrics *obsmetrics.Metrics
	timeout    time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	workers sync.WaitGroup
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	return newDispatcher(p, defaultWorkers, defaultQueueSize)
}

func newDispatcher(p DispatcherParams, workers, queueSize int) *Dispatcher {
	d := &Dispatcher{
		log:        p.Log.Named("notification.dispatcher"),
		notifier:   p.Notifier,
		obsMetrics: p.ObsMetrics,
		timeout:    defaultDispatchTimeout,
		queue:      make(chan Event, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.workers.Add(1)
		go d.work()
	}
	return d
}

// Dispatch enqueues event and reports whether it was accepted.
func (d *Dispatcher) Dispatch(event Event) bool {
	if d == nil || d.notifier == nil {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		d.obsMetrics.RecordNotificationDropped()
		d.log.Warn("notification queue full, dropping event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
		)
		return false
	}
}

func (d *Dispatcher) work() {
	defer d.workers.Done()
	for event := range d.queue {
		d.publish(event)
	}
}

func (d *Dispatcher) publish(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, event); err != nil {
		d.obsMetrics.RecordNotificationFailure()
		d.log.Warn("notification failed",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
