package pipeline

import (
	"testing"
	"time"

	"github.com/lox/envmon/internal/models"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		values []float64
		want   float64
	}{
		{nil, 0},
		{[]float64{3}, 3},
		{[]float64{5, 1, 3}, 3},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{0.9, 0.9, 100, 0.9, 0.1}, 0.9},
	}
	for _, tt := range tests {
		if got := median(tt.values); got != tt.want {
			t.Errorf("median(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

// stepUV feeds one UV average through a history and detector the same way the
// processor does.
func stepUV(h *History, d *SunlightDetector, uv float64) SunlightResult {
	view := h.Observe(batchWith(map[models.Channel]float64{models.UVRaw: uv}))
	prev, ok := view.Previous(models.UVRaw)
	return d.Step(view.UVWindow, uv, prev, ok)
}

func TestSunlightDetector_SustainedFiresOncePerRun(t *testing.T) {
	h := NewHistory(10, 21)
	d := &SunlightDetector{OnThreshold: 0.85, MinSamples: 40, DeltaThreshold: 2.0}

	// Fill the window with bright readings so the median is above threshold
	// from the first batch.
	var fired []int
	for i := 1; i <= 60; i++ {
		res := stepUV(h, d, 1.0)
		if res.Sustained {
			fired = append(fired, i)
		}
		if res.DeltaJump {
			t.Fatalf("unexpected delta jump at batch %d", i)
		}
	}
	if len(fired) != 1 || fired[0] != 40 {
		t.Fatalf("sustained fired at %v, want [40]", fired)
	}

	// Drop below threshold long enough for the median to follow, then start a
	// new run that must fire again on its 40th qualifying batch.
	for i := 0; i < 21; i++ {
		stepUV(h, d, 0.1)
	}
	if d.RunLength() != 0 {
		t.Fatalf("RunLength = %d after dark period, want 0", d.RunLength())
	}

	fired = nil
	for i := 1; i <= 80; i++ {
		res := stepUV(h, d, 1.0)
		if res.Sustained {
			fired = append(fired, res.RunLength)
		}
	}
	if len(fired) != 1 || fired[0] != 40 {
		t.Fatalf("second run fired at run lengths %v, want [40]", fired)
	}
}

func TestSunlightDetector_MedianSuppressesSpike(t *testing.T) {
	h := NewHistory(10, 21)
	d := &SunlightDetector{OnThreshold: 0.85, MinSamples: 3, DeltaThreshold: 100}

	for i := 0; i < 10; i++ {
		stepUV(h, d, 0.2)
	}
	res := stepUV(h, d, 50)
	if res.Smoothed >= 0.85 {
		t.Errorf("Smoothed = %v, single spike should not lift the median", res.Smoothed)
	}
	if res.RunLength != 0 {
		t.Errorf("RunLength = %d, want 0", res.RunLength)
	}
}

func TestSunlightDetector_DeltaJump(t *testing.T) {
	h := NewHistory(10, 21)
	d := &SunlightDetector{OnThreshold: 0.85, MinSamples: 40, DeltaThreshold: 2.0}

	if res := stepUV(h, d, 5); res.DeltaJump || res.Exposure() {
		t.Error("first batch has no previous average and must not jump")
	}
	if res := stepUV(h, d, 6.5); res.DeltaJump {
		t.Error("rise of 1.5 should not jump")
	}
	res := stepUV(h, d, 8.5)
	if !res.DeltaJump || !res.Exposure() {
		t.Error("rise of 2.0 should jump")
	}
	if res := stepUV(h, d, 3); res.DeltaJump {
		t.Error("falls never jump")
	}
}

func TestLightDetector_RiseAndFall(t *testing.T) {
	d := &LightDetector{Cutoff: 20, DeltaThreshold: 15, Debounce: 30 * time.Second}
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		lux     float64
		wantOn  bool
		wantOff bool
	}{
		{5, false, false},   // first batch, dark
		{8, false, false},   // still dark
		{25, true, false},   // crosses cutoff
		{26, false, false},  // stays on
		{10, false, true},   // drops below cutoff
		{12, false, false},  // stays off
		{400, true, false},  // on again
		{390, false, false}, // small dip
		{300, false, true},  // fall of 90 lux while still above cutoff
	}

	prev, hasPrev := 0.0, false
	for i, tt := range tests {
		at := t0.Add(time.Duration(i) * 30 * time.Second)
		res := d.Step(at, tt.lux, prev, hasPrev)
		if res.On != tt.wantOn || res.Off != tt.wantOff {
			t.Errorf("batch %d (%v lux): on=%v off=%v, want on=%v off=%v", i, tt.lux, res.On, res.Off, tt.wantOn, tt.wantOff)
		}
		prev, hasPrev = tt.lux, true
	}
}

func TestLightDetector_Debounce(t *testing.T) {
	d := &LightDetector{Cutoff: 20, DeltaThreshold: 15, Debounce: 30 * time.Second}
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	first := d.Step(t0, 25, 5, true)
	if !first.RawOn || !first.On {
		t.Fatalf("first candidate: %+v, want emitted", first)
	}

	second := d.Step(t0.Add(10*time.Second), 45, 25, true)
	if !second.RawOn {
		t.Fatalf("second step should be a raw on candidate: %+v", second)
	}
	if second.On {
		t.Error("second on candidate 10s later should be debounced")
	}

	third := d.Step(t0.Add(30*time.Second), 65, 45, true)
	if !third.On {
		t.Error("candidate a full interval after the last event should emit")
	}
}

func TestLightDetector_OnAndOffDebouncedIndependently(t *testing.T) {
	d := &LightDetector{Cutoff: 20, DeltaThreshold: 15, Debounce: 30 * time.Second}
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	if res := d.Step(t0, 50, 0, true); !res.On {
		t.Fatal("expected on")
	}
	if res := d.Step(t0.Add(5*time.Second), 2, 50, true); !res.Off {
		t.Error("off must not be suppressed by a recent on")
	}
}

func TestEventDetector_StateRoundTrip(t *testing.T) {
	e := &EventDetector{
		Sunlight: &SunlightDetector{OnThreshold: 0.85, MinSamples: 40, DeltaThreshold: 2},
		Light:    &LightDetector{Cutoff: 20, DeltaThreshold: 15, Debounce: 30 * time.Second},
	}
	last := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	want := models.EventState{UVRunLength: 39, LightOn: true, LastLightOn: last}
	e.Restore(want)

	if got := e.State(); got != want {
		t.Errorf("State = %+v, want %+v", got, want)
	}

	h := NewHistory(10, 21)
	view := h.Observe(models.AggregateBatch{
		Timestamp: last.Add(30 * time.Second),
		Channels: map[models.Channel]models.ChannelAggregate{
			models.UVRaw:        {Avg: 1, Count: 1},
			models.AmbientLight: {Avg: 100, Count: 1},
		},
	})
	flags, sun, _ := e.Detect(view)
	if !sun.Sustained || !flags.SunlightExposure {
		t.Errorf("restored run length 39 should reach 40: %+v", sun)
	}
	if flags.LightOn {
		t.Error("light already on, no rise edge and no previous average")
	}
}
