package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    measurement TEXT NOT NULL DEFAULT 'environment',
    location TEXT NOT NULL,
    observed_at DATETIME NOT NULL,
    readings INTEGER NOT NULL DEFAULT 0,
    temperature_avg REAL,
    temperature_min REAL,
    temperature_max REAL,
    humidity_avg REAL,
    humidity_min REAL,
    humidity_max REAL,
    pressure_avg REAL,
    pressure_min REAL,
    pressure_max REAL,
    aqi_avg REAL,
    aqi_min REAL,
    aqi_max REAL,
    uv_data_avg REAL,
    uv_data_min REAL,
    uv_data_max REAL,
    ambient_light_avg REAL,
    ambient_light_min REAL,
    ambient_light_max REAL,
    temperature_anomaly BOOLEAN,
    humidity_anomaly BOOLEAN,
    pressure_anomaly BOOLEAN,
    aqi_anomaly BOOLEAN,
    uv_data_anomaly BOOLEAN,
    ambient_light_anomaly BOOLEAN,
    sunlight_exposure BOOLEAN NOT NULL DEFAULT FALSE,
    light_on_event BOOLEAN NOT NULL DEFAULT FALSE,
    light_off_event BOOLEAN NOT NULL DEFAULT FALSE,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(location, observed_at)
);

CREATE INDEX IF NOT EXISTS idx_points_location_time ON points(location, observed_at);
`,
	},
	{
		Version:     2,
		Description: "Add per-channel reading counts",
		SQL: `
ALTER TABLE points ADD COLUMN temperature_count INTEGER NOT NULL DEFAULT 0;
ALTER TABLE points ADD COLUMN humidity_count INTEGER NOT NULL DEFAULT 0;
ALTER TABLE points ADD COLUMN pressure_count INTEGER NOT NULL DEFAULT 0;
ALTER TABLE points ADD COLUMN aqi_count INTEGER NOT NULL DEFAULT 0;
ALTER TABLE points ADD COLUMN uv_data_count INTEGER NOT NULL DEFAULT 0;
ALTER TABLE points ADD COLUMN ambient_light_count INTEGER NOT NULL DEFAULT 0;
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		slog.Info("migrations: applying", "version", m.Version, "description", m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		slog.Info("migrations: completed", "version", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
