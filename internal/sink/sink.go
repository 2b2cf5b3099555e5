package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lox/envmon/internal/metrics"
	"github.com/lox/envmon/internal/models"
)

// Sink persists output points.
type Sink interface {
	Write(ctx context.Context, p models.OutputPoint) error
}

// Instrumented records write outcomes and latency for a named sink.
type Instrumented struct {
	name string
	next Sink
}

func Instrument(name string, next Sink) *Instrumented {
	return &Instrumented{name: name, next: next}
}

func (s *Instrumented) Write(ctx context.Context, p models.OutputPoint) error {
	start := time.Now()
	err := s.next.Write(ctx, p)
	metrics.SinkLatency.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SinkWrites.WithLabelValues(s.name, "error").Inc()
		return fmt.Errorf("%s: %w", s.name, err)
	}
	metrics.SinkWrites.WithLabelValues(s.name, "ok").Inc()
	return nil
}

// Multi writes every point to all sinks; one failing sink does not stop the
// others.
type Multi []Sink

func (m Multi) Write(ctx context.Context, p models.OutputPoint) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
