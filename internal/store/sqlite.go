package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lox/envmon/internal/models"
)

// Store is the SQLite time-series store for output points.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

func column(ch models.Channel, suffix string) string {
	return strings.ToLower(string(ch)) + "_" + suffix
}

var (
	pointColumns = buildPointColumns()
	selectPoints = "SELECT location, observed_at, readings, " + strings.Join(pointColumns, ", ") + " FROM points"
)

func buildPointColumns() []string {
	var cols []string
	for _, ch := range models.Channels {
		cols = append(cols, column(ch, "avg"), column(ch, "min"), column(ch, "max"), column(ch, "count"))
	}
	for _, ch := range models.Channels {
		cols = append(cols, column(ch, "anomaly"))
	}
	return append(cols, "sunlight_exposure", "light_on_event", "light_off_event")
}

// Write implements the pipeline sink.
func (s *Store) Write(ctx context.Context, p models.OutputPoint) error {
	return s.InsertPoint(ctx, p)
}

func (s *Store) InsertPoint(ctx context.Context, p models.OutputPoint) error {
	args := []any{models.Measurement, p.Location, p.Time.UTC(), p.Readings}
	for _, ch := range models.Channels {
		agg := p.Aggregate[ch]
		args = append(args, agg.Avg, agg.Min, agg.Max, agg.Count)
	}
	for _, ch := range models.Channels {
		flagged, ok := p.Anomalies[ch]
		args = append(args, sql.NullBool{Bool: flagged, Valid: ok})
	}
	args = append(args, p.Events.SunlightExposure, p.Events.LightOn, p.Events.LightOff)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points (measurement, location, observed_at, readings, `+strings.Join(pointColumns, ", ")+`)
		VALUES (`+placeholders+`)
		ON CONFLICT(location, observed_at) DO NOTHING
	`, args...)
	if err != nil {
		return fmt.Errorf("insert point: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanPoint(row scanner) (models.OutputPoint, error) {
	p := models.OutputPoint{
		Aggregate: make(map[models.Channel]models.ChannelAggregate, len(models.Channels)),
		Anomalies: make(models.AnomalyFlags),
	}

	aggs := make([]models.ChannelAggregate, len(models.Channels))
	anomalies := make([]sql.NullBool, len(models.Channels))
	dest := []any{&p.Location, &p.Time, &p.Readings}
	for i := range models.Channels {
		dest = append(dest, &aggs[i].Avg, &aggs[i].Min, &aggs[i].Max, &aggs[i].Count)
	}
	for i := range models.Channels {
		dest = append(dest, &anomalies[i])
	}
	dest = append(dest, &p.Events.SunlightExposure, &p.Events.LightOn, &p.Events.LightOff)

	if err := row.Scan(dest...); err != nil {
		return p, err
	}

	for i, ch := range models.Channels {
		p.Aggregate[ch] = aggs[i]
		if anomalies[i].Valid {
			p.Anomalies[ch] = anomalies[i].Bool
		}
	}
	p.Time = p.Time.In(s.loc)
	return p, nil
}

// LatestPoint returns the newest point for location, or nil if none exist.
func (s *Store) LatestPoint(ctx context.Context, location string) (*models.OutputPoint, error) {
	row := s.db.QueryRowContext(ctx, selectPoints+`
		WHERE location = ?
		ORDER BY observed_at DESC
		LIMIT 1
	`, location)

	p, err := s.scanPoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPoints returns points for location in [start, end], oldest first.
func (s *Store) GetPoints(ctx context.Context, location string, start, end time.Time) ([]models.OutputPoint, error) {
	rows, err := s.db.QueryContext(ctx, selectPoints+`
		WHERE location = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`, location, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.OutputPoint
	for rows.Next() {
		p, err := s.scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// DeletePoints removes points in [start, end). An empty location matches all.
func (s *Store) DeletePoints(ctx context.Context, location string, start, end time.Time) (int64, error) {
	query := `DELETE FROM points WHERE measurement = ? AND observed_at >= ? AND observed_at < ?`
	args := []any{models.Measurement, start.UTC(), end.UTC()}
	if location != "" {
		query += ` AND location = ?`
		args = append(args, location)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete points: %w", err)
	}
	return result.RowsAffected()
}

// CountPoints returns the number of stored points for location.
func (s *Store) CountPoints(ctx context.Context, location string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points WHERE location = ?`, location).Scan(&n)
	return n, err
}
