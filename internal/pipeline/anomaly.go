package pipeline

import (
	"fmt"
	"math"

	"github.com/lox/envmon/internal/models"
)

const DefaultZScoreEpsilon = 1e-4

// ChannelView is the per-channel history a policy classifies against.
type ChannelView struct {
	Previous    float64
	HasPrevious bool
	Past        []float64 // excludes the current batch
}

// Policy decides whether a batch average is anomalous for one channel.
type Policy interface {
	Classify(h ChannelView, current float64) bool
	Name() string
}

// DeltaPolicy flags a batch whose average moved more than Threshold from the
// previous batch. The first batch is never anomalous.
type DeltaPolicy struct {
	Threshold float64
}

func (p DeltaPolicy) Classify(h ChannelView, current float64) bool {
	if !h.HasPrevious {
		return false
	}
	return math.Abs(current-h.Previous) > p.Threshold
}

func (p DeltaPolicy) Name() string { return "delta" }

// ZScorePolicy flags a batch whose average lies more than Threshold sample
// standard deviations from the mean of the past averages.
type ZScorePolicy struct {
	Threshold float64
	Epsilon   float64
}

func (p ZScorePolicy) Classify(h ChannelView, current float64) bool {
	z, ok := ZScore(h.Past, current, p.epsilon())
	if !ok {
		return false
	}
	return math.Abs(z) > p.Threshold
}

func (p ZScorePolicy) Name() string { return "zscore" }

func (p ZScorePolicy) epsilon() float64 {
	if p.Epsilon <= 0 {
		return DefaultZScoreEpsilon
	}
	return p.Epsilon
}

// ZScore standardises current against past using the Bessel-corrected sample
// standard deviation. A zero deviation is replaced by eps. ok is false with
// fewer than two past values.
func ZScore(past []float64, current, eps float64) (z float64, ok bool) {
	n := len(past)
	if n < 2 {
		return 0, false
	}
	var sum float64
	for _, v := range past {
		sum += v
	}
	mean := sum / float64(n)

	var ss float64
	for _, v := range past {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n-1))
	if std == 0 {
		std = eps
	}
	return (current - mean) / std, true
}

// Default thresholds per channel for each policy. Delta thresholds exist only
// for the channels the delta detector has been tuned on.
var (
	DefaultDeltaThresholds = map[models.Channel]float64{
		models.Temperature: 0.15,
		models.Humidity:    0.85,
		models.Pressure:    0.18,
	}
	DefaultZScoreThresholds = map[models.Channel]float64{
		models.Temperature:   2.0,
		models.Humidity:      2.5,
		models.Pressure:      1.8,
		models.GasResistance: 3.5,
		models.UVRaw:         3.5,
		models.AmbientLight:  3.0,
	}
)

// NewPolicy builds a policy by name. A threshold of zero or less selects the
// channel default.
func NewPolicy(name string, ch models.Channel, threshold, epsilon float64) (Policy, error) {
	switch name {
	case "delta":
		if threshold <= 0 {
			t, ok := DefaultDeltaThresholds[ch]
			if !ok {
				return nil, fmt.Errorf("no default delta threshold for %s", ch)
			}
			threshold = t
		}
		return DeltaPolicy{Threshold: threshold}, nil
	case "zscore", "z-score":
		if threshold <= 0 {
			threshold = DefaultZScoreThresholds[ch]
		}
		return ZScorePolicy{Threshold: threshold, Epsilon: epsilon}, nil
	}
	return nil, fmt.Errorf("unknown anomaly policy %q", name)
}

// AnomalyDetector applies the configured policy of each monitored channel.
type AnomalyDetector struct {
	policies map[models.Channel]Policy
}

func NewAnomalyDetector(policies map[models.Channel]Policy) *AnomalyDetector {
	p := make(map[models.Channel]Policy, len(policies))
	for ch, policy := range policies {
		p[ch] = policy
	}
	return &AnomalyDetector{policies: p}
}

// Monitored returns the channels with a policy, in output order.
func (d *AnomalyDetector) Monitored() []models.Channel {
	var chans []models.Channel
	for _, ch := range models.Channels {
		if _, ok := d.policies[ch]; ok {
			chans = append(chans, ch)
		}
	}
	return chans
}

func (d *AnomalyDetector) Detect(v View) models.AnomalyFlags {
	flags := make(models.AnomalyFlags, len(d.policies))
	for ch, policy := range d.policies {
		flags[ch] = policy.Classify(v.Channel(ch), v.Current.Avg(ch))
	}
	return flags
}
