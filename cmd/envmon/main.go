package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/envmon/internal/store"
)

type Globals struct {
	EnvFile   kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file.'"`
	LogLevel  string                   `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"ENVMON_LOG_LEVEL" help:"Log level."`
	LogFormat string                   `name:"log-format" default:"text" enum:"text,json" env:"ENVMON_LOG_FORMAT" help:"Log output format."`
}

type CLI struct {
	Globals

	Run      RunCmd      `cmd:"" default:"1" help:"Aggregate the sensor feed and write output points."`
	Simulate SimulateCmd `cmd:"" help:"Serve a synthetic sensor feed for development."`
	Purge    PurgeCmd    `cmd:"" help:"Delete stored points in a time range."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("envmon"),
		kong.Description("Environmental sensor aggregation with anomaly and event detection."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

func (g *Globals) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if g.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func openStore(path string, loc *time.Location, logger *slog.Logger) (*store.Store, *sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("store: database ready", "path", path)
	return st, db, nil
}
