// Package config holds the command-line option groups and turns them into
// component configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lox/envmon/internal/models"
	"github.com/lox/envmon/internal/pipeline"
	"github.com/lox/envmon/internal/sink"
	"github.com/lox/envmon/internal/source"
)

const DefaultTimeZone = "Asia/Kolkata"

// Pipeline options. Field names map one-to-one onto pipeline.Config.
type Pipeline struct {
	Interval            time.Duration `name:"interval" default:"30s" env:"ENVMON_INTERVAL" help:"Aggregation interval."`
	Location            string        `name:"location" default:"office" env:"ENVMON_LOCATION" help:"Location tag written with every point."`
	TimeZone            string        `name:"timezone" default:"Asia/Kolkata" env:"ENVMON_TIMEZONE" help:"IANA time zone for output timestamps."`
	Anomaly             []string      `name:"anomaly" default:"temperature=delta:0.15,humidity=delta:0.85,pressure=delta:0.18" help:"Monitored channels as channel=policy[:threshold]; policy is delta or zscore."`
	HistoryDepth        int           `name:"history-depth" default:"10" help:"Past averages kept per channel."`
	ZScoreEpsilon       float64       `name:"zscore-epsilon" default:"1e-4" help:"Standard deviation floor for z-scores."`
	UVWindow            int           `name:"uv-window" default:"21" help:"Median window for UV smoothing."`
	UVOnThreshold       float64       `name:"uv-on-threshold" default:"0.85" help:"Smoothed UV level counted as sunlight."`
	UVMinOn             time.Duration `name:"uv-min-on" default:"20m" help:"Sustained sunlight duration."`
	UVDeltaThreshold    float64       `name:"uv-delta-threshold" default:"2.0" help:"UV jump between intervals counted as sunlight."`
	LightCutoff         float64       `name:"light-cutoff" default:"20" help:"Lux above which the light is considered on."`
	LightDeltaThreshold float64       `name:"light-delta-threshold" default:"15" help:"Lux change required for a light event."`
	LightDebounce       time.Duration `name:"light-debounce" help:"Minimum spacing between light events (default one interval)."`
}

// ParseAnomaly parses "channel=policy[:threshold]". A missing threshold
// selects the channel default for the policy.
func ParseAnomaly(arg string, epsilon float64) (models.Channel, pipeline.Policy, error) {
	name, rest, ok := strings.Cut(strings.TrimSpace(arg), "=")
	if !ok {
		return "", nil, fmt.Errorf("anomaly %q: want channel=policy[:threshold]", arg)
	}
	ch, ok := models.ParseChannel(name)
	if !ok {
		return "", nil, fmt.Errorf("anomaly %q: unknown channel %q", arg, name)
	}

	policyName, thresholdStr, hasThreshold := strings.Cut(rest, ":")
	var threshold float64
	if hasThreshold {
		t, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil || t <= 0 {
			return "", nil, fmt.Errorf("anomaly %q: threshold must be a positive number", arg)
		}
		threshold = t
	}

	policy, err := pipeline.NewPolicy(strings.ToLower(policyName), ch, threshold, epsilon)
	if err != nil {
		return "", nil, fmt.Errorf("anomaly %q: %w", arg, err)
	}
	return ch, policy, nil
}

// LoadTimeZone falls back to UTC with a warning when name cannot be loaded.
func LoadTimeZone(name string, logger *slog.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("config: could not load timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}

// Build converts the options into a validated pipeline configuration.
func (p Pipeline) Build(logger *slog.Logger) (pipeline.Config, error) {
	cfg := pipeline.Config{
		Interval:            p.Interval,
		Location:            p.Location,
		TimeZone:            LoadTimeZone(p.TimeZone, logger),
		HistoryDepth:        p.HistoryDepth,
		ZScoreEpsilon:       p.ZScoreEpsilon,
		Policies:            make(map[models.Channel]pipeline.Policy, len(p.Anomaly)),
		UVWindow:            p.UVWindow,
		UVOnThreshold:       p.UVOnThreshold,
		UVMinOn:             p.UVMinOn,
		UVDeltaThreshold:    p.UVDeltaThreshold,
		LightCutoff:         p.LightCutoff,
		LightDeltaThreshold: p.LightDeltaThreshold,
		LightDebounce:       p.LightDebounce,
	}

	var errs []error
	for _, arg := range p.Anomaly {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		ch, policy, err := ParseAnomaly(arg, p.ZScoreEpsilon)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := cfg.Policies[ch]; dup {
			errs = append(errs, fmt.Errorf("anomaly: %s configured more than once", ch))
			continue
		}
		cfg.Policies[ch] = policy
	}
	if err := errors.Join(errs...); err != nil {
		return pipeline.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg, nil
}

// Source selects and configures the reading transport.
type Source struct {
	Kind                string        `name:"source" default:"websocket" enum:"websocket,mqtt" env:"ENVMON_SOURCE" help:"Reading transport."`
	URL                 string        `name:"source-url" default:"ws://localhost:6789" env:"ENVMON_SOURCE_URL" help:"WebSocket feed URL."`
	MQTTBroker          string        `name:"mqtt-broker" default:"tcp://localhost:1883" env:"ENVMON_MQTT_BROKER" help:"MQTT broker URL."`
	MQTTTopic           string        `name:"mqtt-topic" default:"sensors/environment" env:"ENVMON_MQTT_TOPIC" help:"MQTT topic carrying readings."`
	MQTTClientID        string        `name:"mqtt-client-id" default:"envmon" help:"MQTT client identifier."`
	Reconnect           bool          `name:"reconnect" help:"Re-dial with backoff when the transport fails instead of exiting."`
	ReconnectMaxElapsed time.Duration `name:"reconnect-max-elapsed" help:"Give up after this long without a connection (0 retries forever)."`
}

func (s Source) dialer(logger *slog.Logger) (source.Dialer, error) {
	switch s.Kind {
	case "websocket", "":
		return source.WebSocketDialer(s.URL, logger), nil
	case "mqtt":
		return source.MQTTDialer(s.MQTTBroker, s.MQTTTopic, s.MQTTClientID, logger), nil
	}
	return nil, fmt.Errorf("unknown source %q", s.Kind)
}

// Open connects the configured transport. With Reconnect set the first dial
// is deferred to the first read and retried with backoff.
func (s Source) Open(ctx context.Context, logger *slog.Logger) (source.Conn, error) {
	dial, err := s.dialer(logger)
	if err != nil {
		return nil, err
	}
	if s.Reconnect {
		return source.NewReconnecting(s.Kind, dial, s.ReconnectMaxElapsed, logger), nil
	}
	return dial(ctx)
}

// Storage selects the sinks output points are written to.
type Storage struct {
	DB           string `name:"db" default:"data/envmon.db" env:"ENVMON_DB" help:"Path to SQLite database."`
	InfluxURL    string `name:"influx-url" env:"INFLUXDB_URL" help:"InfluxDB URL; enables the InfluxDB sink."`
	InfluxToken  string `name:"influx-token" env:"INFLUXDB_TOKENCLOUD" help:"InfluxDB API token."`
	InfluxOrg    string `name:"influx-org" default:"BTP Project" env:"INFLUXDB_ORG" help:"InfluxDB organisation."`
	InfluxBucket string `name:"influx-bucket" default:"Weather Data" env:"INFLUXDB_BUCKET" help:"InfluxDB bucket."`
	AsyncSink    bool   `name:"async-sink" help:"Write points from a background queue so slow sinks never delay ingestion."`
	SinkQueue    int    `name:"sink-queue" default:"16" help:"Queue size for --async-sink."`
}

func (s Storage) InfluxEnabled() bool {
	return s.InfluxURL != ""
}

func (s Storage) Influx() sink.InfluxConfig {
	return sink.InfluxConfig{
		URL:    s.InfluxURL,
		Token:  s.InfluxToken,
		Org:    s.InfluxOrg,
		Bucket: s.InfluxBucket,
	}
}
