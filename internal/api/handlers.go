package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/envmon/internal/models"
)

const maxHistoryHours = 7 * 24

// PointResponse is the JSON form of a stored point. Fields uses the same
// names as the time-series output.
type PointResponse struct {
	Time     time.Time      `json:"time"`
	Location string         `json:"location"`
	Readings int            `json:"readings"`
	Fields   map[string]any `json:"fields"`
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status     string     `json:"status"`
	Location   string     `json:"location"`
	LastPoint  *time.Time `json:"last_point,omitempty"`
	AgeSeconds int        `json:"age_seconds"`
	Stale      bool       `json:"stale"`
	Error      string     `json:"error,omitempty"`
}

func (s *Server) pointResponse(p models.OutputPoint) PointResponse {
	return PointResponse{
		Time:     p.Time.In(s.cfg.TimeZone),
		Location: p.Location,
		Readings: p.Readings,
		Fields:   p.Fields(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("api: write response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok", Location: s.cfg.Location, AgeSeconds: -1}

	p, err := s.store.LatestPoint(r.Context(), s.cfg.Location)
	if err != nil {
		health.Status = "error"
		health.Error = err.Error()
		s.writeJSON(w, http.StatusInternalServerError, health)
		return
	}

	staleAfter := 3 * s.cfg.Interval
	if p == nil {
		health.Stale = true
	} else {
		age := s.now().Sub(p.Time)
		last := p.Time.In(s.cfg.TimeZone)
		health.LastPoint = &last
		health.AgeSeconds = int(age.Seconds())
		health.Stale = age > staleAfter
	}

	status := http.StatusOK
	if health.Stale {
		health.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *Server) handleAPILatest(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.LatestPoint(r.Context(), s.cfg.Location)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "no data", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.pointResponse(*p))
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryHours {
			http.Error(w, "hours must be between 1 and 168", http.StatusBadRequest)
			return
		}
		hours = n
	}

	end := s.now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	points, err := s.store.GetPoints(r.Context(), s.cfg.Location, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]PointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, s.pointResponse(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}
