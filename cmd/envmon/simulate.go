package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lox/envmon/internal/simulate"
)

type SimulateCmd struct {
	Addr        string        `name:"addr" default:"localhost:6789" help:"Listen address for the WebSocket feed."`
	Tick        time.Duration `name:"tick" default:"1s" help:"Time between readings."`
	Seed        uint64        `name:"seed" help:"Random seed (default time based)."`
	LightToggle float64       `name:"light-toggle" default:"0.002" help:"Per-reading probability of switching the light."`
	MQTTBroker  string        `name:"mqtt-broker" help:"Publish to this MQTT broker instead of serving WebSocket."`
	MQTTTopic   string        `name:"mqtt-topic" default:"sensors/environment" help:"MQTT topic to publish on."`
}

func (c *SimulateCmd) Run(g *Globals) error {
	logger := g.Logger()

	seed := c.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	gen := simulate.NewGenerator(seed, c.LightToggle)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if c.MQTTBroker == "" {
		return simulate.NewFeed(gen, c.Tick, logger).Run(ctx, c.Addr)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(c.MQTTBroker).
		SetClientID(fmt.Sprintf("envmon-sim-%d", seed%100000)).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.WaitTimeout(15*time.Second) && tok.Error() != nil {
		return fmt.Errorf("connect %s: %w", c.MQTTBroker, tok.Error())
	}
	if !client.IsConnected() {
		return fmt.Errorf("connect %s: timed out", c.MQTTBroker)
	}
	defer client.Disconnect(250)

	return simulate.PublishMQTT(ctx, client, c.MQTTTopic, gen, c.Tick, logger)
}
