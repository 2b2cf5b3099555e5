package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/envmon/internal/metrics"
	"github.com/lox/envmon/internal/models"
)

// Reconnecting wraps a Dialer and re-dials with exponential backoff whenever
// the connection fails. Without it a transport failure ends the process.
type Reconnecting struct {
	name       string
	dial       Dialer
	maxElapsed time.Duration
	newBackOff func() backoff.BackOff
	conn       Conn
	closed     bool
	log        *slog.Logger
}

// NewReconnecting returns a source that keeps dialing for up to maxElapsed per
// outage; zero retries forever.
func NewReconnecting(name string, dial Dialer, maxElapsed time.Duration, logger *slog.Logger) *Reconnecting {
	r := &Reconnecting{
		name:       name,
		dial:       dial,
		maxElapsed: maxElapsed,
		log:        logger,
	}
	r.newBackOff = func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = r.maxElapsed
		bo.MaxInterval = 30 * time.Second
		return bo
	}
	return r
}

// SetBackOff overrides the backoff policy used for each outage.
func (r *Reconnecting) SetBackOff(newBackOff func() backoff.BackOff) {
	r.newBackOff = newBackOff
}

func (r *Reconnecting) Next(ctx context.Context) (models.RawReading, error) {
	for {
		if r.closed {
			return models.RawReading{}, ErrClosed
		}
		if r.conn == nil {
			if err := r.connect(ctx); err != nil {
				return models.RawReading{}, err
			}
		}

		reading, err := r.conn.Next(ctx)
		if err == nil {
			return reading, nil
		}
		if ctx.Err() != nil {
			return models.RawReading{}, ctx.Err()
		}

		r.log.Warn("source: connection lost, reconnecting", "source", r.name, "error", err)
		r.conn.Close()
		r.conn = nil
	}
}

func (r *Reconnecting) connect(ctx context.Context) error {
	attempt := 0
	operation := func() error {
		attempt++
		conn, err := r.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			metrics.SourceReconnects.WithLabelValues(r.name, "failure").Inc()
			r.log.Warn("source: dial failed", "source", r.name, "attempt", attempt, "error", err)
			return err
		}
		r.conn = conn
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(r.newBackOff(), ctx)); err != nil {
		return err
	}
	metrics.SourceReconnects.WithLabelValues(r.name, "success").Inc()
	return nil
}

func (r *Reconnecting) Close() error {
	r.closed = true
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
