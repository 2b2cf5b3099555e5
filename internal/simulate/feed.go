package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/lox/envmon/internal/source"
)

const DefaultTick = time.Second

// Feed serves the generator over WebSocket, one JSON message per tick to
// each connected client.
type Feed struct {
	gen      *Generator
	tick     time.Duration
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewFeed(gen *Generator, tick time.Duration, logger *slog.Logger) *Feed {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Feed{
		gen:  gen,
		tick: tick,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn("simulate: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	f.log.Info("simulate: client connected", "remote", r.RemoteAddr)

	ticker := time.NewTicker(f.tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case now := <-ticker.C:
			payload, err := source.Encode(f.gen.Next(now))
			if err != nil {
				f.log.Error("simulate: encode", "error", err)
				return
			}
			conn.SetWriteDeadline(now.Add(f.tick))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				f.log.Info("simulate: client gone", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func (f *Feed) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           f,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	f.log.Info("simulate: serving feed", "addr", addr, "tick", f.tick)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Publisher is the subset of mqtt.Client used to publish readings.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// PublishMQTT publishes one reading per tick to topic until ctx is done.
func PublishMQTT(ctx context.Context, pub Publisher, topic string, gen *Generator, tick time.Duration, logger *slog.Logger) error {
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	logger.Info("simulate: publishing", "topic", topic, "tick", tick)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			payload, err := source.Encode(gen.Next(now))
			if err != nil {
				return err
			}
			tok := pub.Publish(topic, 1, false, payload)
			select {
			case <-ctx.Done():
				return nil
			case <-tok.Done():
			}
			if err := tok.Error(); err != nil {
				return fmt.Errorf("publish %s: %w", topic, err)
			}
		}
	}
}
