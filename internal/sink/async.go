package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lox/envmon/internal/metrics"
	"github.com/lox/envmon/internal/models"
)

const DefaultQueueSize = 16

var ErrQueueFull = errors.New("sink queue full, point dropped")

// Async hands points to a background writer so a slow store never delays
// ingestion. When the queue is full the newest point is dropped and logged.
type Async struct {
	next    Sink
	queue   chan models.OutputPoint
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

func NewAsync(next Sink, size int, timeout time.Duration, logger *slog.Logger) *Async {
	if size < 1 {
		size = DefaultQueueSize
	}
	a := &Async{
		next:    next,
		queue:   make(chan models.OutputPoint, size),
		timeout: timeout,
		log:     logger,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Write enqueues p. It only fails when the queue is full.
func (a *Async) Write(_ context.Context, p models.OutputPoint) error {
	select {
	case a.queue <- p:
		return nil
	default:
		metrics.SinkDropped.Inc()
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer a.wg.Done()
	for p := range a.queue {
		ctx := context.Background()
		cancel := func() {}
		if a.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
		}
		if err := a.next.Write(ctx, p); err != nil {
			a.log.Error("sink: point lost", "time", p.Time, "error", err)
		}
		cancel()
	}
}

// Close stops accepting points and waits for queued points to be written.
func (a *Async) Close() {
	a.once.Do(func() { close(a.queue) })
	a.wg.Wait()
}
