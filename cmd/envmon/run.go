package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/lox/envmon/internal/api"
	"github.com/lox/envmon/internal/config"
	"github.com/lox/envmon/internal/pipeline"
	"github.com/lox/envmon/internal/sink"
)

type RunCmd struct {
	Pipeline config.Pipeline `embed:""`
	Source   config.Source   `embed:""`
	Storage  config.Storage  `embed:""`

	Port      string `name:"port" default:"8080" env:"PORT" help:"HTTP server port."`
	NoHTTP    bool   `name:"no-http" help:"Disable the HTTP server."`
	WarmStart bool   `name:"warm-start" help:"Seed anomaly history from the newest stored points."`
}

func (c *RunCmd) Run(g *Globals) error {
	logger := g.Logger()

	cfg, err := c.Pipeline.Build(logger)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	st, db, err := openStore(c.Storage.DB, cfg.TimeZone, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	sinks := sink.Multi{sink.Instrument("sqlite", st)}
	if c.Storage.InfluxEnabled() {
		influx, err := sink.NewInflux(c.Storage.Influx(), logger)
		if err != nil {
			return fmt.Errorf("influx: %w", err)
		}
		defer influx.Close()
		sinks = append(sinks, sink.Instrument("influx", influx))
		logger.Info("sink: influx enabled", "url", c.Storage.InfluxURL, "bucket", c.Storage.InfluxBucket)
	}

	var out pipeline.Sink = sinks
	if c.Storage.AsyncSink {
		async := sink.NewAsync(sinks, c.Storage.SinkQueue, cfg.Interval, logger)
		defer async.Close()
		out = async
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	proc := pipeline.New(cfg, out, logger)
	if c.WarmStart {
		end := time.Now()
		start := end.Add(-3 * time.Duration(cfg.HistoryDepth) * cfg.Interval)
		points, err := st.GetPoints(ctx, cfg.Location, start, end)
		if err != nil {
			return fmt.Errorf("warm start: %w", err)
		}
		if n := len(points); n > cfg.HistoryDepth {
			points = points[n-cfg.HistoryDepth:]
		}
		proc.Warm(points)
	}

	if !c.NoHTTP {
		server := api.NewServer(st, api.Config{
			Port:     c.Port,
			Location: cfg.Location,
			Interval: cfg.Interval,
			TimeZone: cfg.TimeZone,
		}, logger)
		go func() {
			if err := server.Run(ctx); err != nil {
				logger.Error("api: server failed", "error", err)
				cancel()
			}
		}()
	} else {
		logger.Info("api: http disabled (--no-http)")
	}

	src, err := c.Source.Open(ctx, logger)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()

	return proc.Run(ctx, src)
}
