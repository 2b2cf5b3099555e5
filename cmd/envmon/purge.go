package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/envmon/internal/config"
	"github.com/lox/envmon/internal/sink"
)

type PurgeCmd struct {
	Storage config.Storage `embed:""`

	Location     string `name:"location" default:"office" env:"ENVMON_LOCATION" help:"Location whose points are deleted."`
	AllLocations bool   `name:"all-locations" help:"Delete points of every location."`
	Start        string `name:"start" default:"1970-01-01T00:00:00Z" help:"Range start (RFC 3339 or YYYY-MM-DD, inclusive)."`
	Stop         string `name:"stop" help:"Range end (RFC 3339 or YYYY-MM-DD, exclusive; default now)."`
	TimeZone     string `name:"timezone" default:"Asia/Kolkata" env:"ENVMON_TIMEZONE" help:"Time zone for dates without an offset."`
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func (c *PurgeCmd) Run(g *Globals) error {
	logger := g.Logger()
	loc := config.LoadTimeZone(c.TimeZone, logger)

	start, err := parseTime(c.Start, loc)
	if err != nil {
		return err
	}
	stop := time.Now()
	if c.Stop != "" {
		if stop, err = parseTime(c.Stop, loc); err != nil {
			return err
		}
	}
	if !stop.After(start) {
		return fmt.Errorf("stop %s is not after start %s", stop, start)
	}

	location := c.Location
	if c.AllLocations {
		location = ""
	}

	ctx := context.Background()

	st, db, err := openStore(c.Storage.DB, loc, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	deleted, err := st.DeletePoints(ctx, location, start, stop)
	if err != nil {
		return err
	}
	logger.Info("purge: sqlite points deleted", "count", deleted, "start", start, "stop", stop, "location", location)

	if c.Storage.InfluxEnabled() {
		influx, err := sink.NewInflux(c.Storage.Influx(), logger)
		if err != nil {
			return fmt.Errorf("influx: %w", err)
		}
		defer influx.Close()
		if err := influx.Purge(ctx, location, start, stop); err != nil {
			return err
		}
	}
	return nil
}
