package pipeline

import (
	"testing"
	"time"

	"github.com/lox/envmon/internal/models"
)

func reading(values map[models.Channel]float64) models.RawReading {
	return models.RawReading{ReceivedAt: time.Unix(0, 0), Values: values}
}

func TestAggregate(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	readings := []models.RawReading{
		reading(map[models.Channel]float64{models.Temperature: 20, models.Humidity: 50}),
		reading(map[models.Channel]float64{models.Temperature: 22}),
		reading(map[models.Channel]float64{models.Temperature: 24, models.Humidity: 54}),
	}

	batch := Aggregate(readings, at)

	if !batch.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", batch.Timestamp, at)
	}
	if batch.Readings != 3 {
		t.Errorf("Readings = %d, want 3", batch.Readings)
	}

	tests := []struct {
		ch    models.Channel
		avg   float64
		min   float64
		max   float64
		count int
	}{
		{models.Temperature, 22, 20, 24, 3},
		{models.Humidity, 52, 50, 54, 2},
		{models.Pressure, 0, 0, 0, 0},
		{models.GasResistance, 0, 0, 0, 0},
		{models.UVRaw, 0, 0, 0, 0},
		{models.AmbientLight, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.ch), func(t *testing.T) {
			got := batch.Channels[tt.ch]
			if got.Avg != tt.avg || got.Min != tt.min || got.Max != tt.max || got.Count != tt.count {
				t.Errorf("got %+v, want avg=%v min=%v max=%v count=%d", got, tt.avg, tt.min, tt.max, tt.count)
			}
		})
	}
}

func TestAggregate_EmptyBatch(t *testing.T) {
	batch := Aggregate(nil, time.Now())
	if len(batch.Channels) != len(models.Channels) {
		t.Fatalf("len(Channels) = %d, want %d", len(batch.Channels), len(models.Channels))
	}
	for _, ch := range models.Channels {
		agg := batch.Channels[ch]
		if agg.Avg != 0 || agg.Min != 0 || agg.Max != 0 {
			t.Errorf("%s = %+v, want zeros", ch, agg)
		}
	}
}

func TestAggregate_MinAvgMaxOrdering(t *testing.T) {
	values := []float64{0.1, 0.7, 0.3, 1013.25, -4.2, 0.1, 0.1, 17.9}
	var readings []models.RawReading
	for i, v := range values {
		readings = append(readings, reading(map[models.Channel]float64{models.Pressure: v}))
		batch := Aggregate(readings, time.Now())
		agg := batch.Channels[models.Pressure]
		if !(agg.Min <= agg.Avg && agg.Avg <= agg.Max) {
			t.Errorf("after %d readings: min=%v avg=%v max=%v", i+1, agg.Min, agg.Avg, agg.Max)
		}
	}
}

func TestAggregate_RepeatedValueIsExact(t *testing.T) {
	for _, v := range []float64{0.1, 1.0 / 3.0, 1013.27, 0.85} {
		var readings []models.RawReading
		for i := 0; i < 30; i++ {
			readings = append(readings, reading(map[models.Channel]float64{models.UVRaw: v}))
		}
		agg := Aggregate(readings, time.Now()).Channels[models.UVRaw]
		if agg.Avg != v || agg.Min != v || agg.Max != v {
			t.Errorf("value %v: got avg=%v min=%v max=%v", v, agg.Avg, agg.Min, agg.Max)
		}
	}
}
