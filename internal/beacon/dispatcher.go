package beacon

import (
	"context"
	"time"

	"github.com/alitto/pond"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

// WorkerPool runs submitted tasks asynchronously.
type WorkerPool interface {
	TrySubmit(task func()) bool
	StopAndWait()
}

// Dispatcher fans each event out to every sink on a bounded worker pool.
// Callers never wait for delivery; a full queue drops the event.
type Dispatcher struct {
	pool    WorkerPool
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewDispatcher creates a Dispatcher backed by a pond pool with the given worker
// count and queue capacity. timeout bounds each sink call.
func NewDispatcher(sinks []Sink, workers, queueSize int, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return newDispatcher(pond.New(workers, queueSize), sinks, timeout, logger, metrics)
}

func newDispatcher(pool WorkerPool, sinks []Sink, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Dispatcher {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		pool:    pool,
		sinks:   sinks,
		timeout: timeout,
		logger:  logger.Named("beacon"),
		metrics: metrics,
	}
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch queues event for every sink and returns immediately. It reports
// whether every sink task was accepted.
func (d *Dispatcher) Dispatch(event Event, network models.Network, space string) bool {
	accepted := true
	for _, sink := range d.sinks {
		sink := sink
		ok := d.pool.TrySubmit(func() {
			d.deliver(sink, event, network, space)
		})
		if !ok {
			accepted = false
			d.metrics.IncrementBeaconDeliveries(string(event), sink.Name(), "dropped")
			d.logger.Warn("beacon queue full, dropping event",
				zap.String("event", string(event)),
				zap.String("sink", sink.Name()),
				zap.String("space_id", space))
		}
	}
	return accepted
}

func (d *Dispatcher) deliver(sink Sink, event Event, network models.Network, space string) {
	// detached from the request, which has usually finished by now
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := sink.Record(ctx, event, network, space); err != nil {
		d.metrics.IncrementBeaconDeliveries(string(event), sink.Name(), "failure")
		d.logger.Warn("beacon delivery failed",
			zap.Error(err),
			zap.String("event", string(event)),
			zap.String("sink", sink.Name()),
			zap.String("space_id", space))
		return
	}
	d.metrics.IncrementBeaconDeliveries(string(event), sink.Name(), "success")
}

// Close waits for queued deliveries to finish.
func (d *Dispatcher) Close() {
	d.pool.StopAndWait()
}
