package pipeline

import (
	"time"

	"github.com/lox/envmon/internal/models"
)

// Buffer accumulates readings for one aggregation interval. The boundary is
// checked on arrival rather than by a timer, so a flush can lag the nominal
// interval by up to the gap between two readings.
type Buffer struct {
	interval time.Duration
	start    time.Time
	readings []models.RawReading
}

func NewBuffer(interval time.Duration, start time.Time) *Buffer {
	return &Buffer{interval: interval, start: start}
}

func (b *Buffer) Append(r models.RawReading) {
	b.readings = append(b.readings, r)
}

// Due reports whether the interval has elapsed since the last drain.
func (b *Buffer) Due(now time.Time) bool {
	return now.Sub(b.start) >= b.interval
}

// Drain hands over the current batch and starts a new one at now.
func (b *Buffer) Drain(now time.Time) []models.RawReading {
	batch := b.readings
	b.readings = nil
	b.start = now
	return batch
}

func (b *Buffer) Len() int {
	return len(b.readings)
}

// Started returns when the current batch began.
func (b *Buffer) Started() time.Time {
	return b.start
}
