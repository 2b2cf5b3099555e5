package pipeline

import (
	"github.com/lox/envmon/internal/models"
)

const (
	DefaultHistoryDepth = 10
	DefaultUVWindow     = 21
)

// History is the rolling state shared by the detectors: the previous batch
// average, a bounded FIFO of past averages per channel, and the UV smoothing
// window. It is owned by the processing loop and is not safe for concurrent
// use.
type History struct {
	depth    int
	uvSize   int
	previous map[models.Channel]float64
	past     map[models.Channel][]float64
	uv       []float64
}

func NewHistory(depth, uvWindow int) *History {
	if depth < 1 {
		depth = DefaultHistoryDepth
	}
	if uvWindow < 1 {
		uvWindow = DefaultUVWindow
	}
	return &History{
		depth:    depth,
		uvSize:   uvWindow,
		previous: make(map[models.Channel]float64),
		past:     make(map[models.Channel][]float64),
	}
}

// View is what detectors evaluate a batch against. Previous and Past reflect
// history before the batch; UVWindow already includes the batch's UV average.
type View struct {
	Current  models.AggregateBatch
	previous map[models.Channel]float64
	past     map[models.Channel][]float64
	UVWindow []float64
}

func (v View) Previous(ch models.Channel) (float64, bool) {
	p, ok := v.previous[ch]
	return p, ok
}

func (v View) Past(ch models.Channel) []float64 {
	return v.past[ch]
}

func (v View) Channel(ch models.Channel) ChannelView {
	prev, ok := v.previous[ch]
	return ChannelView{Previous: prev, HasPrevious: ok, Past: v.past[ch]}
}

// Observe folds a new batch into the history exactly once and returns the view
// the detectors use for that batch.
func (h *History) Observe(batch models.AggregateBatch) View {
	view := View{
		Current:  batch,
		previous: make(map[models.Channel]float64, len(h.previous)),
		past:     make(map[models.Channel][]float64, len(h.past)),
	}
	for ch, p := range h.previous {
		view.previous[ch] = p
	}
	for ch, values := range h.past {
		view.past[ch] = append([]float64(nil), values...)
	}

	for _, ch := range models.Channels {
		avg := batch.Avg(ch)
		h.previous[ch] = avg
		h.past[ch] = pushBounded(h.past[ch], avg, h.depth)
	}
	h.uv = pushBounded(h.uv, batch.Avg(models.UVRaw), h.uvSize)
	view.UVWindow = append([]float64(nil), h.uv...)

	return view
}

// Previous returns the last observed average for ch.
func (h *History) Previous(ch models.Channel) (float64, bool) {
	p, ok := h.previous[ch]
	return p, ok
}

// Past returns a copy of the bounded average history for ch, oldest first.
func (h *History) Past(ch models.Channel) []float64 {
	return append([]float64(nil), h.past[ch]...)
}

func (h *History) UVWindow() []float64 {
	return append([]float64(nil), h.uv...)
}

// Seed replaces the history of ch. The last value becomes the previous average.
func (h *History) Seed(ch models.Channel, values ...float64) {
	h.past[ch] = nil
	delete(h.previous, ch)
	for _, v := range values {
		h.past[ch] = pushBounded(h.past[ch], v, h.depth)
		h.previous[ch] = v
	}
}

func pushBounded(values []float64, v float64, limit int) []float64 {
	values = append(values, v)
	if over := len(values) - limit; over > 0 {
		values = append(values[:0], values[over:]...)
	}
	return values
}
