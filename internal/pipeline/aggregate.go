package pipeline

import (
	"time"

	"github.com/lox/envmon/internal/models"
)

// Aggregate reduces a batch to per-channel avg/min/max over the readings that
// carry each channel. A channel missing from the whole batch reports zeros,
// which is indistinguishable from a true zero reading; Count tells them apart.
func Aggregate(readings []models.RawReading, at time.Time) models.AggregateBatch {
	batch := models.AggregateBatch{
		Timestamp: at,
		Readings:  len(readings),
		Channels:  make(map[models.Channel]models.ChannelAggregate, len(models.Channels)),
	}

	for _, ch := range models.Channels {
		var agg models.ChannelAggregate
		var sum float64
		for _, r := range readings {
			v, ok := r.Value(ch)
			if !ok {
				continue
			}
			if agg.Count == 0 || v < agg.Min {
				agg.Min = v
			}
			if agg.Count == 0 || v > agg.Max {
				agg.Max = v
			}
			sum += v
			agg.Count++
		}
		if agg.Count > 0 {
			agg.Avg = sum / float64(agg.Count)
			// Guard against rounding pushing the mean past an extreme.
			if agg.Avg < agg.Min {
				agg.Avg = agg.Min
			}
			if agg.Avg > agg.Max {
				agg.Avg = agg.Max
			}
		}
		batch.Channels[ch] = agg
	}

	return batch
}
