package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lox/envmon/internal/metrics"
	"github.com/lox/envmon/internal/models"
)

// Source yields raw readings in arrival order. Next blocks until a reading
// arrives, the context is cancelled or the transport fails.
type Source interface {
	Next(ctx context.Context) (models.RawReading, error)
}

// Sink persists one point per interval.
type Sink interface {
	Write(ctx context.Context, p models.OutputPoint) error
}

// Processor owns the buffer, history and detector state and runs every step of
// an interval on the caller's goroutine. It is not safe for concurrent use.
type Processor struct {
	cfg       Config
	sink      Sink
	log       *slog.Logger
	now       func() time.Time
	buffer    *Buffer
	history   *History
	anomalies *AnomalyDetector
	events    *EventDetector
}

func New(cfg Config, sink Sink, logger *slog.Logger) *Processor {
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		cfg:       cfg,
		sink:      sink,
		log:       logger,
		now:       time.Now,
		history:   NewHistory(cfg.HistoryDepth, cfg.UVWindow),
		anomalies: NewAnomalyDetector(cfg.Policies),
		events: &EventDetector{
			Sunlight: &SunlightDetector{
				OnThreshold:    cfg.UVOnThreshold,
				MinSamples:     cfg.MinSustainedSamples(),
				DeltaThreshold: cfg.UVDeltaThreshold,
			},
			Light: &LightDetector{
				Cutoff:         cfg.LightCutoff,
				DeltaThreshold: cfg.LightDeltaThreshold,
				Debounce:       cfg.debounce(),
			},
		},
	}
	p.buffer = NewBuffer(cfg.Interval, p.now())
	return p
}

// SetClock replaces the wall clock and restarts the current interval from it.
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
	p.buffer = NewBuffer(p.cfg.Interval, now())
}

func (p *Processor) History() *History { return p.history }

func (p *Processor) Events() *EventDetector { return p.events }

// Pending returns the number of readings in the current interval.
func (p *Processor) Pending() int { return p.buffer.Len() }

// Run consumes src until ctx is cancelled or the source fails. Cancellation
// discards the partial interval and returns nil; a source failure is returned.
// Sink failures are logged and do not stop the loop.
func (p *Processor) Run(ctx context.Context, src Source) error {
	p.log.Info("pipeline: started",
		"interval", p.cfg.Interval,
		"location", p.cfg.Location,
		"monitored", p.anomalies.Monitored(),
		"uv_min_samples", p.events.Sunlight.MinSamples)

	for {
		r, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info("pipeline: shutting down", "discarded_readings", p.buffer.Len())
				return nil
			}
			return fmt.Errorf("read source: %w", err)
		}

		if _, err := p.Ingest(ctx, r); err != nil {
			p.log.Error("pipeline: point lost", "error", err)
		}
	}
}

// Ingest appends r to the current interval and flushes when the interval has
// elapsed. The flushed point is returned, or nil if no flush happened.
func (p *Processor) Ingest(ctx context.Context, r models.RawReading) (*models.OutputPoint, error) {
	now := p.now()
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = now
	}
	p.buffer.Append(r)
	metrics.ReadingsReceived.Inc()

	if !p.buffer.Due(now) {
		return nil, nil
	}
	point, err := p.Flush(ctx)
	return &point, err
}

// Flush closes the current interval: aggregate, update history, detect and
// write. The point is returned even when the write fails.
func (p *Processor) Flush(ctx context.Context) (models.OutputPoint, error) {
	now := p.now()
	readings := p.buffer.Drain(now)

	batch := Aggregate(readings, now.In(p.cfg.TimeZone))
	view := p.history.Observe(batch)
	anomalies := p.anomalies.Detect(view)
	events, sun, light := p.events.Detect(view)

	point := models.OutputPoint{
		Location:  p.cfg.Location,
		Time:      batch.Timestamp,
		Readings:  batch.Readings,
		Aggregate: batch.Channels,
		Anomalies: anomalies,
		Events:    events,
	}

	p.record(point, sun)
	p.log.Debug("pipeline: flushed",
		"readings", batch.Readings,
		"uv_smooth", sun.Smoothed,
		"uv_run", sun.RunLength,
		"light_on_mask", light.OnMask)

	start := time.Now()
	if err := p.sink.Write(ctx, point); err != nil {
		return point, fmt.Errorf("write point %s: %w", point.Time.Format(time.RFC3339), err)
	}
	p.log.Debug("pipeline: point written", "took", time.Since(start))
	return point, nil
}

func (p *Processor) record(point models.OutputPoint, sun SunlightResult) {
	metrics.BatchesFlushed.Inc()
	metrics.BatchSize.Observe(float64(point.Readings))
	metrics.UVRunLength.Set(float64(sun.RunLength))

	for _, ch := range models.Channels {
		if point.Aggregate[ch].Count == 0 {
			metrics.EmptyChannels.WithLabelValues(string(ch)).Inc()
		}
	}

	for ch, flagged := range point.Anomalies {
		if !flagged {
			continue
		}
		metrics.Anomalies.WithLabelValues(string(ch), p.anomalies.policies[ch].Name()).Inc()
		p.log.Info("pipeline: anomaly",
			"channel", ch,
			"avg", point.Aggregate[ch].Avg,
			"policy", p.anomalies.policies[ch].Name())
	}

	if point.Events.SunlightExposure {
		metrics.Events.WithLabelValues("sunlight_exposure").Inc()
		p.log.Info("pipeline: sunlight exposure",
			"sustained", sun.Sustained,
			"delta_jump", sun.DeltaJump,
			"uv_smooth", sun.Smoothed)
	}
	if point.Events.LightOn {
		metrics.Events.WithLabelValues("light_on").Inc()
		p.log.Info("pipeline: light on", "lux", point.Aggregate[models.AmbientLight].Avg)
	}
	if point.Events.LightOff {
		metrics.Events.WithLabelValues("light_off").Inc()
		p.log.Info("pipeline: light off", "lux", point.Aggregate[models.AmbientLight].Avg)
	}
}

// Warm seeds the rolling history and light state from points written before a
// restart, oldest first. The UV smoothing window and sunlight run start empty.
func (p *Processor) Warm(points []models.OutputPoint) {
	if len(points) == 0 {
		return
	}

	values := make(map[models.Channel][]float64, len(models.Channels))
	var state models.EventState
	for _, pt := range points {
		for _, ch := range models.Channels {
			values[ch] = append(values[ch], pt.Aggregate[ch].Avg)
		}
		if pt.Events.LightOn {
			state.LastLightOn = pt.Time
		}
		if pt.Events.LightOff {
			state.LastLightOff = pt.Time
		}
	}
	for ch, v := range values {
		p.history.Seed(ch, v...)
	}

	last := points[len(points)-1]
	state.LightOn = last.Aggregate[models.AmbientLight].Avg >= p.events.Light.Cutoff
	p.events.Restore(state)

	p.log.Info("pipeline: warm start", "points", len(points), "since", points[0].Time, "light_on", state.LightOn)
}
