package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/lox/envmon/internal/httputil"
	"github.com/lox/envmon/internal/models"
)

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (c InfluxConfig) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("influx url is required"))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("influx token is required"))
	}
	if c.Org == "" {
		errs = append(errs, errors.New("influx org is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("influx bucket is required"))
	}
	return errors.Join(errs...)
}

// Influx writes output points to an InfluxDB v2 bucket, one point per
// interval, tagged with the deployment location.
type Influx struct {
	client influxdb2.Client
	cfg    InfluxConfig
	log    *slog.Logger
}

func NewInflux(cfg InfluxConfig, logger *slog.Logger) (*Influx, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := influxdb2.DefaultOptions().SetHTTPClient(httputil.NewClient())
	return &Influx{
		client: influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts),
		cfg:    cfg,
		log:    logger,
	}, nil
}

func (s *Influx) Write(ctx context.Context, p models.OutputPoint) error {
	point := influxdb2.NewPoint(models.Measurement,
		map[string]string{"location": p.Location},
		p.Fields(),
		p.Time,
	)
	if err := s.client.WriteAPIBlocking(s.cfg.Org, s.cfg.Bucket).WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	s.log.Debug("influx: wrote point", "time", p.Time, "bucket", s.cfg.Bucket)
	return nil
}

// Purge deletes the measurement's points in [start, stop). An empty location
// matches every location.
func (s *Influx) Purge(ctx context.Context, location string, start, stop time.Time) error {
	predicate := fmt.Sprintf(`_measurement="%s"`, models.Measurement)
	if location != "" {
		predicate += fmt.Sprintf(` AND location="%s"`, location)
	}
	if err := s.client.DeleteAPI().DeleteWithName(ctx, s.cfg.Org, s.cfg.Bucket, start, stop, predicate); err != nil {
		return fmt.Errorf("influx delete: %w", err)
	}
	s.log.Info("influx: purged points", "bucket", s.cfg.Bucket, "start", start, "stop", stop, "predicate", predicate)
	return nil
}

func (s *Influx) Close() {
	s.client.Close()
}
