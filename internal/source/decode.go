package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lox/envmon/internal/models"
)

var ErrNoChannels = errors.New("message carries no known channel")

// Decode parses one feed message: a flat JSON object keyed by channel name.
// Unknown keys and non-numeric values are ignored, and any timestamp in the
// payload is replaced by the arrival time.
func Decode(payload []byte, receivedAt time.Time) (models.RawReading, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return models.RawReading{}, fmt.Errorf("unmarshal: %w", err)
	}

	r := models.RawReading{
		ReceivedAt: receivedAt,
		Values:     make(map[models.Channel]float64, len(models.Channels)),
	}
	for key, raw := range fields {
		ch, ok := models.ParseChannel(key)
		if !ok {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		r.Values[ch] = v
	}

	if len(r.Values) == 0 {
		return r, ErrNoChannels
	}
	return r, nil
}

// Encode renders a reading in the feed's wire format.
func Encode(r models.RawReading) ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	out["timestamp"] = r.ReceivedAt.Format("2006-01-02 15:04:05")
	for ch, v := range r.Values {
		out[string(ch)] = v
	}
	return json.Marshal(out)
}
