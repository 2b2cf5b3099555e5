package pipeline

import (
	"slices"
	"testing"
	"time"

	"github.com/lox/envmon/internal/models"
)

func batchWith(values map[models.Channel]float64) models.AggregateBatch {
	b := models.AggregateBatch{Timestamp: time.Now(), Channels: map[models.Channel]models.ChannelAggregate{}}
	for ch, v := range values {
		b.Channels[ch] = models.ChannelAggregate{Avg: v, Min: v, Max: v, Count: 1}
	}
	return b
}

func TestHistory_ObserveReturnsPriorState(t *testing.T) {
	h := NewHistory(10, 21)

	v1 := h.Observe(batchWith(map[models.Channel]float64{models.Temperature: 20}))
	if _, ok := v1.Previous(models.Temperature); ok {
		t.Error("first view should have no previous average")
	}
	if len(v1.Past(models.Temperature)) != 0 {
		t.Errorf("first view past = %v, want empty", v1.Past(models.Temperature))
	}

	v2 := h.Observe(batchWith(map[models.Channel]float64{models.Temperature: 21}))
	prev, ok := v2.Previous(models.Temperature)
	if !ok || prev != 20 {
		t.Errorf("Previous = %v, %v; want 20, true", prev, ok)
	}
	if got := v2.Past(models.Temperature); !slices.Equal(got, []float64{20}) {
		t.Errorf("Past = %v, want [20]", got)
	}

	if got := h.Past(models.Temperature); !slices.Equal(got, []float64{20, 21}) {
		t.Errorf("tracker Past = %v, want [20 21]", got)
	}
}

func TestHistory_BoundedFIFO(t *testing.T) {
	h := NewHistory(10, 21)
	for i := 1; i <= 25; i++ {
		h.Observe(batchWith(map[models.Channel]float64{models.Humidity: float64(i)}))
		if n := len(h.Past(models.Humidity)); n > 10 {
			t.Fatalf("history length %d exceeds 10", n)
		}
	}
	want := []float64{16, 17, 18, 19, 20, 21, 22, 23, 24, 25}
	if got := h.Past(models.Humidity); !slices.Equal(got, want) {
		t.Errorf("Past = %v, want %v", got, want)
	}
}

func TestHistory_UVWindowIncludesCurrent(t *testing.T) {
	h := NewHistory(10, 3)
	var view View
	for _, v := range []float64{1, 2, 3, 4} {
		view = h.Observe(batchWith(map[models.Channel]float64{models.UVRaw: v}))
	}
	if !slices.Equal(view.UVWindow, []float64{2, 3, 4}) {
		t.Errorf("UVWindow = %v, want [2 3 4]", view.UVWindow)
	}
}

func TestHistory_ViewIsIsolated(t *testing.T) {
	h := NewHistory(10, 21)
	h.Seed(models.Pressure, 1000, 1001)
	view := h.Observe(batchWith(map[models.Channel]float64{models.Pressure: 1002}))
	h.Observe(batchWith(map[models.Channel]float64{models.Pressure: 1003}))

	if got := view.Past(models.Pressure); !slices.Equal(got, []float64{1000, 1001}) {
		t.Errorf("view Past mutated: %v", got)
	}
}

func TestHistory_Seed(t *testing.T) {
	h := NewHistory(3, 21)
	h.Seed(models.Temperature, 1, 2, 3, 4)
	if got := h.Past(models.Temperature); !slices.Equal(got, []float64{2, 3, 4}) {
		t.Errorf("Past = %v, want [2 3 4]", got)
	}
	if prev, ok := h.Previous(models.Temperature); !ok || prev != 4 {
		t.Errorf("Previous = %v, %v; want 4, true", prev, ok)
	}
}
