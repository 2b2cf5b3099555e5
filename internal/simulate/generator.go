// Package simulate produces a synthetic sensor feed for development without
// the hardware attached.
package simulate

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lox/envmon/internal/models"
)

// Walk is a bounded random walk. Each step moves the value by a uniform amount
// in [-Delta, Delta], clamps it to [Min, Max] and rounds to two decimals.
type Walk struct {
	Min, Max float64
	Delta    float64
	Current  float64
}

func (w *Walk) Step(rng *rand.Rand) float64 {
	v := w.Current + (rng.Float64()*2-1)*w.Delta
	v = math.Max(w.Min, math.Min(v, w.Max))
	w.Current = math.Round(v*100) / 100
	return w.Current
}

// DefaultWalks approximate an indoor office. Gas resistance follows the
// 110-170 band with steps of 2.
func DefaultWalks() map[models.Channel]Walk {
	return map[models.Channel]Walk{
		models.Temperature:   {Min: 18, Max: 32, Delta: 0.1, Current: 24},
		models.Humidity:      {Min: 30, Max: 80, Delta: 0.5, Current: 55},
		models.Pressure:      {Min: 995, Max: 1025, Delta: 0.1, Current: 1010},
		models.GasResistance: {Min: 110, Max: 170, Delta: 2, Current: 140},
		models.UVRaw:         {Min: 0, Max: 10, Delta: 0.3, Current: 0},
		models.AmbientLight:  {Min: 0, Max: 1000, Delta: 5, Current: 5},
	}
}

const (
	lightOnLevel  = 320
	lightOffLevel = 5
)

// Generator emits one reading per call. Ambient light occasionally jumps
// between an off and an on level so the light detector has edges to find.
type Generator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	walks       map[models.Channel]*Walk
	lightToggle float64
}

func NewGenerator(seed uint64, lightToggle float64) *Generator {
	g := &Generator{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		walks:       make(map[models.Channel]*Walk),
		lightToggle: lightToggle,
	}
	for ch, w := range DefaultWalks() {
		g.walks[ch] = &w
	}
	return g
}

func (g *Generator) Next(at time.Time) models.RawReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	if light := g.walks[models.AmbientLight]; light != nil && g.rng.Float64() < g.lightToggle {
		if light.Current < lightOnLevel/2 {
			light.Current = lightOnLevel
		} else {
			light.Current = lightOffLevel
		}
	}

	r := models.RawReading{
		ReceivedAt: at,
		Values:     make(map[models.Channel]float64, len(g.walks)),
	}
	for _, ch := range models.Channels {
		if w, ok := g.walks[ch]; ok {
			r.Values[ch] = w.Step(g.rng)
		}
	}
	return r
}
