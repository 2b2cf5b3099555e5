package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/envmon/internal/models"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultLocation = "office"
)

// Config holds the tunables of the processing loop.
type Config struct {
	Interval time.Duration
	Location string
	TimeZone *time.Location

	HistoryDepth  int
	ZScoreEpsilon float64
	Policies      map[models.Channel]Policy

	UVWindow         int
	UVOnThreshold    float64
	UVMinOn          time.Duration
	UVDeltaThreshold float64

	LightCutoff         float64
	LightDeltaThreshold float64
	LightDebounce       time.Duration // zero means one interval
}

// DefaultConfig matches the deployed office station: delta anomalies on
// temperature, humidity and pressure, 30 s intervals.
func DefaultConfig() Config {
	policies := make(map[models.Channel]Policy, len(DefaultDeltaThresholds))
	for ch, t := range DefaultDeltaThresholds {
		policies[ch] = DeltaPolicy{Threshold: t}
	}
	return Config{
		Interval:            DefaultInterval,
		Location:            DefaultLocation,
		TimeZone:            time.UTC,
		HistoryDepth:        DefaultHistoryDepth,
		ZScoreEpsilon:       DefaultZScoreEpsilon,
		Policies:            policies,
		UVWindow:            DefaultUVWindow,
		UVOnThreshold:       DefaultUVOnThreshold,
		UVMinOn:             DefaultUVMinOn,
		UVDeltaThreshold:    DefaultUVDeltaThreshold,
		LightCutoff:         DefaultLightCutoff,
		LightDeltaThreshold: DefaultLightDeltaThreshold,
	}
}

// MinSustainedSamples is the run length, in intervals, that fires the
// sustained sunlight event.
func (c Config) MinSustainedSamples() int {
	if c.Interval <= 0 {
		return 0
	}
	return int(c.UVMinOn / c.Interval)
}

func (c Config) debounce() time.Duration {
	if c.LightDebounce > 0 {
		return c.LightDebounce
	}
	return c.Interval
}

func (c Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Location == "" {
		errs = append(errs, errors.New("location is required"))
	}
	if c.HistoryDepth < 2 {
		errs = append(errs, fmt.Errorf("history depth must be at least 2, got %d", c.HistoryDepth))
	}
	if c.UVWindow < 1 {
		errs = append(errs, fmt.Errorf("uv window must be at least 1, got %d", c.UVWindow))
	}
	if c.Interval > 0 && c.MinSustainedSamples() < 1 {
		errs = append(errs, fmt.Errorf("uv minimum on time %s is shorter than one interval", c.UVMinOn))
	}
	if c.UVDeltaThreshold <= 0 {
		errs = append(errs, errors.New("uv delta threshold must be positive"))
	}
	if c.LightDeltaThreshold <= 0 {
		errs = append(errs, errors.New("light delta threshold must be positive"))
	}
	if c.LightDebounce < 0 {
		errs = append(errs, errors.New("light debounce must not be negative"))
	}
	return errors.Join(errs...)
}
