package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lox/envmon/internal/metrics"
	"github.com/lox/envmon/internal/models"
)

var ErrClosed = errors.New("source closed")

// Conn is one live connection to the sensor feed.
type Conn interface {
	Next(ctx context.Context) (models.RawReading, error)
	Close() error
}

// Dialer opens a new Conn.
type Dialer func(ctx context.Context) (Conn, error)

// accept decodes and checks one payload. ok is false when the payload must be
// skipped.
func accept(name string, payload []byte, receivedAt time.Time, log *slog.Logger) (models.RawReading, bool) {
	r, err := Decode(payload, receivedAt)
	if err != nil {
		reason := "decode"
		if errors.Is(err, ErrNoChannels) {
			reason = "empty"
		}
		metrics.ReadingsRejected.WithLabelValues(name, reason).Inc()
		log.Warn("source: dropping message", "source", name, "error", err, "bytes", len(payload))
		return r, false
	}

	if flags := ValidateReading(r); len(flags) > 0 {
		for _, f := range flags {
			metrics.QualityFlags.WithLabelValues(f).Inc()
		}
		log.Debug("source: implausible values", "source", name, "flags", flags)
	}
	return r, true
}
