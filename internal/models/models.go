package models

import (
	"time"
)

// Channel identifies one sensor quantity. The string value is the key used
// both in the upstream feed and in output field names.
type Channel string

const (
	Temperature   Channel = "temperature"
	Humidity      Channel = "humidity"
	Pressure      Channel = "pressure"
	GasResistance Channel = "AQI"
	UVRaw         Channel = "uv_data"
	AmbientLight  Channel = "ambient_light"
)

// Channels lists every channel in output order.
var Channels = []Channel{Temperature, Humidity, Pressure, GasResistance, UVRaw, AmbientLight}

// ParseChannel accepts a channel key or one of its common aliases.
func ParseChannel(s string) (Channel, bool) {
	switch s {
	case "temperature", "temp":
		return Temperature, true
	case "humidity":
		return Humidity, true
	case "pressure":
		return Pressure, true
	case "AQI", "aqi", "gas", "gas_resistance":
		return GasResistance, true
	case "uv_data", "uv", "uv_raw":
		return UVRaw, true
	case "ambient_light", "light", "lux":
		return AmbientLight, true
	}
	return "", false
}

// RawReading is one message from the sensor feed. Channels absent from the
// message are absent from Values.
type RawReading struct {
	ReceivedAt time.Time
	Values     map[Channel]float64
}

func (r RawReading) Value(ch Channel) (float64, bool) {
	v, ok := r.Values[ch]
	return v, ok
}

type ChannelAggregate struct {
	Avg   float64
	Min   float64
	Max   float64
	Count int
}

// AggregateBatch is the reduction of one interval's readings. A channel with
// no readings aggregates to zeros with Count 0.
type AggregateBatch struct {
	Timestamp time.Time
	Readings  int
	Channels  map[Channel]ChannelAggregate
}

func (b AggregateBatch) Avg(ch Channel) float64 {
	return b.Channels[ch].Avg
}

// AnomalyFlags holds one flag per monitored channel.
type AnomalyFlags map[Channel]bool

type EventFlags struct {
	SunlightExposure bool
	LightOn          bool
	LightOff         bool
}

// EventState is the event detectors' state carried between intervals.
type EventState struct {
	UVRunLength  int
	LightOn      bool
	LastLightOn  time.Time // zero if never emitted
	LastLightOff time.Time
}

// OutputPoint is the record handed to a sink once per interval.
type OutputPoint struct {
	Location  string
	Time      time.Time
	Readings  int
	Aggregate map[Channel]ChannelAggregate
	Anomalies AnomalyFlags
	Events    EventFlags
}

const Measurement = "environment"

// Fields flattens the point into the field set written to the time-series
// store.
func (p OutputPoint) Fields() map[string]any {
	fields := make(map[string]any, len(Channels)*3+len(p.Anomalies)+3)
	for _, ch := range Channels {
		agg := p.Aggregate[ch]
		fields[string(ch)+"_avg"] = agg.Avg
		fields[string(ch)+"_min"] = agg.Min
		fields[string(ch)+"_max"] = agg.Max
	}
	for ch, flagged := range p.Anomalies {
		fields[string(ch)+"_anomaly"] = flagged
	}
	fields["sunlight_exposure"] = p.Events.SunlightExposure
	fields["light_on_event"] = p.Events.LightOn
	fields["light_off_event"] = p.Events.LightOff
	return fields
}
