package pipeline

import (
	"sort"
	"time"

	"github.com/lox/envmon/internal/models"
)

const (
	DefaultUVOnThreshold       = 0.85
	DefaultUVMinOn             = 20 * time.Minute
	DefaultUVDeltaThreshold    = 2.0
	DefaultLightCutoff         = 20.0
	DefaultLightDeltaThreshold = 15.0
)

// SunlightDetector raises the sunlight-exposure event from the UV channel:
// once when the median-smoothed UV has stayed at or above OnThreshold for
// exactly MinSamples consecutive batches, and whenever the raw batch average
// jumps by DeltaThreshold or more.
type SunlightDetector struct {
	OnThreshold    float64
	MinSamples     int
	DeltaThreshold float64

	runLength int
}

type SunlightResult struct {
	Smoothed  float64
	RunLength int
	Sustained bool
	DeltaJump bool
}

func (r SunlightResult) Exposure() bool {
	return r.Sustained || r.DeltaJump
}

// Step advances the detector by one batch. window is the UV smoothing window
// including the current batch.
func (d *SunlightDetector) Step(window []float64, current, previous float64, hasPrevious bool) SunlightResult {
	smooth := median(window)
	if smooth >= d.OnThreshold {
		d.runLength++
	} else {
		d.runLength = 0
	}

	var delta float64
	if hasPrevious {
		delta = current - previous
	}

	return SunlightResult{
		Smoothed:  smooth,
		RunLength: d.runLength,
		Sustained: d.MinSamples > 0 && d.runLength == d.MinSamples,
		DeltaJump: hasPrevious && delta >= d.DeltaThreshold,
	}
}

func (d *SunlightDetector) RunLength() int {
	return d.runLength
}

// LightDetector emits debounced ambient light on/off events. An event of each
// kind is suppressed if the same kind was emitted less than Debounce ago.
type LightDetector struct {
	Cutoff         float64
	DeltaThreshold float64
	Debounce       time.Duration

	on      bool
	lastOn  time.Time
	lastOff time.Time
}

type LightResult struct {
	OnMask bool
	RawOn  bool
	RawOff bool
	On     bool
	Off    bool
}

// Step advances the detector by one batch timed at at.
func (d *LightDetector) Step(at time.Time, current, previous float64, hasPrevious bool) LightResult {
	var delta float64
	if hasPrevious {
		delta = current - previous
	}

	onMask := current >= d.Cutoff
	res := LightResult{
		OnMask: onMask,
		RawOn:  (onMask && !d.on) || delta >= d.DeltaThreshold,
		RawOff: (!onMask && d.on) || -delta >= d.DeltaThreshold,
	}

	if res.RawOn && d.elapsed(d.lastOn, at) {
		res.On = true
		d.lastOn = at
	}
	if res.RawOff && d.elapsed(d.lastOff, at) {
		res.Off = true
		d.lastOff = at
	}

	d.on = onMask
	return res
}

func (d *LightDetector) elapsed(last, at time.Time) bool {
	return last.IsZero() || at.Sub(last) >= d.Debounce
}

// EventDetector combines the UV and ambient light detectors.
type EventDetector struct {
	Sunlight *SunlightDetector
	Light    *LightDetector
}

func (e *EventDetector) Detect(v View) (models.EventFlags, SunlightResult, LightResult) {
	uvPrev, uvOK := v.Previous(models.UVRaw)
	sun := e.Sunlight.Step(v.UVWindow, v.Current.Avg(models.UVRaw), uvPrev, uvOK)

	lightPrev, lightOK := v.Previous(models.AmbientLight)
	light := e.Light.Step(v.Current.Timestamp, v.Current.Avg(models.AmbientLight), lightPrev, lightOK)

	return models.EventFlags{
		SunlightExposure: sun.Exposure(),
		LightOn:          light.On,
		LightOff:         light.Off,
	}, sun, light
}

// State snapshots the state carried between intervals.
func (e *EventDetector) State() models.EventState {
	return models.EventState{
		UVRunLength:  e.Sunlight.runLength,
		LightOn:      e.Light.on,
		LastLightOn:  e.Light.lastOn,
		LastLightOff: e.Light.lastOff,
	}
}

// Restore replaces the carried state, for tests and warm restarts.
func (e *EventDetector) Restore(s models.EventState) {
	e.Sunlight.runLength = s.UVRunLength
	e.Light.on = s.LightOn
	e.Light.lastOn = s.LastLightOn
	e.Light.lastOff = s.LastLightOff
}

// median of values; the mean of the two middle values for an even count.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
