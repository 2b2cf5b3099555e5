package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/envmon/internal/store"
)

type Config struct {
	Port     string
	Location string
	Interval time.Duration
	TimeZone *time.Location
}

type Server struct {
	store *store.Store
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
}

func NewServer(st *store.Store, cfg Config, logger *slog.Logger) *Server {
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.UTC
	}
	return &Server{
		store: st,
		cfg:   cfg,
		log:   logger,
		now:   time.Now,
	}
}

// SetClock replaces the time source used for staleness and history windows.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/latest", s.handleAPILatest)
	mux.HandleFunc("/api/history", s.handleAPIHistory)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.log.Info("api: listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
