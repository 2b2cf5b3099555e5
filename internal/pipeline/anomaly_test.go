package pipeline

import (
	"math"
	"testing"

	"github.com/lox/envmon/internal/models"
)

func TestDeltaPolicy(t *testing.T) {
	p := DeltaPolicy{Threshold: 0.15}
	tests := []struct {
		name    string
		view    ChannelView
		current float64
		want    bool
	}{
		{"no previous", ChannelView{}, 99, false},
		{"large rise", ChannelView{Previous: 20, HasPrevious: true}, 20.30, true},
		{"small rise", ChannelView{Previous: 20, HasPrevious: true}, 20.10, false},
		{"large fall", ChannelView{Previous: 20, HasPrevious: true}, 19.70, true},
		{"unchanged", ChannelView{Previous: 20, HasPrevious: true}, 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Classify(tt.view, tt.current); got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZScorePolicy(t *testing.T) {
	p := ZScorePolicy{Threshold: 2.0}
	tests := []struct {
		name    string
		past    []float64
		current float64
		want    bool
	}{
		{"no history", nil, 50, false},
		{"one point", []float64{10}, 50, false},
		{"flat history uses epsilon", []float64{10, 10, 10}, 10.5, true},
		{"flat history exact match", []float64{10, 10, 10}, 10, false},
		{"within spread", []float64{9, 10, 11, 10, 9, 11}, 10.5, false},
		{"outside spread", []float64{9, 10, 11, 10, 9, 11}, 14, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Classify(ChannelView{Past: tt.past}, tt.current); got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZScore_SampleStdDev(t *testing.T) {
	// mean 5, sample variance 32/7 for the classic 2,4,4,4,5,5,7,9 set.
	z, ok := ZScore([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 7, DefaultZScoreEpsilon)
	if !ok {
		t.Fatal("expected ok")
	}
	want := 2 / math.Sqrt(32.0/7.0)
	if math.Abs(z-want) > 1e-12 {
		t.Errorf("z = %v, want %v", z, want)
	}
}

func TestZScore_Epsilon(t *testing.T) {
	z, _ := ZScore([]float64{10, 10, 10}, 10.5, 1e-4)
	if math.Abs(z-5000) > 1e-6 {
		t.Errorf("z = %v, want 5000", z)
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("delta", models.Humidity, 0, 0)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	if d, ok := p.(DeltaPolicy); !ok || d.Threshold != 0.85 {
		t.Errorf("policy = %#v, want DeltaPolicy{0.85}", p)
	}

	p, err = NewPolicy("zscore", models.AmbientLight, 0, 0)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	if z, ok := p.(ZScorePolicy); !ok || z.Threshold != 3.0 {
		t.Errorf("policy = %#v, want ZScorePolicy{3.0}", p)
	}

	if _, err := NewPolicy("delta", models.UVRaw, 0, 0); err == nil {
		t.Error("expected error for delta without default threshold")
	}
	if _, err := NewPolicy("median", models.Temperature, 1, 0); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestAnomalyDetector_ComparesBeforeAppend(t *testing.T) {
	h := NewHistory(10, 21)
	h.Seed(models.Temperature, 10, 10, 10)
	d := NewAnomalyDetector(map[models.Channel]Policy{
		models.Temperature: ZScorePolicy{Threshold: 2.0},
		models.Pressure:    DeltaPolicy{Threshold: 0.18},
	})

	view := h.Observe(batchWith(map[models.Channel]float64{models.Temperature: 10.5, models.Pressure: 1000}))
	flags := d.Detect(view)

	if !flags[models.Temperature] {
		t.Error("temperature should be anomalous against history excluding the current batch")
	}
	if flags[models.Pressure] {
		t.Error("pressure has no previous average and must not be anomalous")
	}
	if _, ok := flags[models.Humidity]; ok {
		t.Error("unmonitored channel should have no flag")
	}
	if n := len(h.Past(models.Temperature)); n != 4 {
		t.Errorf("history length = %d, want 4 after append", n)
	}
}

func TestAnomalyDetector_Monitored(t *testing.T) {
	d := NewAnomalyDetector(map[models.Channel]Policy{
		models.AmbientLight: ZScorePolicy{Threshold: 3},
		models.Temperature:  DeltaPolicy{Threshold: 0.15},
	})
	got := d.Monitored()
	if len(got) != 2 || got[0] != models.Temperature || got[1] != models.AmbientLight {
		t.Errorf("Monitored = %v", got)
	}
}
