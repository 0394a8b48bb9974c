package postgres

import (
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/ewm/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DriverName maps the configured driver onto a registered database/sql driver.
func DriverName(driver string) (string, error) {
	switch driver {
	case "", "postgres", "pq":
		return "postgres", nil
	case "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	driverName, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("driver", driverName).Info("Successfully connected to PostgreSQL")
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(250) NOT NULL,
		email VARCHAR(254) NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS locations (
		id BIGSERIAL PRIMARY KEY,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		initiator_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category_id BIGINT NOT NULL REFERENCES categories(id),
		location_id BIGINT NOT NULL REFERENCES locations(id),
		title VARCHAR(120) NOT NULL,
		annotation VARCHAR(2000) NOT NULL,
		description VARCHAR(7000) NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		participant_limit INTEGER NOT NULL DEFAULT 0 CHECK (participant_limit >= 0),
		request_moderation BOOLEAN NOT NULL DEFAULT TRUE,
		state VARCHAR(20) NOT NULL DEFAULT 'PENDING'
			CHECK (state IN ('PENDING', 'PUBLISHED', 'CANCELED')),
		event_date TIMESTAMP NOT NULL,
		created_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		published_on TIMESTAMP,
		confirmed_requests INTEGER NOT NULL DEFAULT 0 CHECK (confirmed_requests >= 0),
		CHECK (participant_limit = 0 OR confirmed_requests <= participant_limit)
	)`,

	`CREATE TABLE IF NOT EXISTS requests (
		id BIGSERIAL PRIMARY KEY,
		event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		requester_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING'
			CHECK (status IN ('PENDING', 'CONFIRMED', 'REJECTED', 'CANCELED')),
		created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS compilations (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(50) NOT NULL,
		pinned BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS compilation_events (
		compilation_id BIGINT NOT NULL REFERENCES compilations(id) ON DELETE CASCADE,
		event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (compilation_id, event_id)
	)`,

	// Indexes
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_requests_active
		ON requests(event_id, requester_id) WHERE status <> 'CANCELED'`,
	`CREATE INDEX IF NOT EXISTS idx_requests_event_status ON requests(event_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests(requester_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_initiator ON events(initiator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_state_date ON events(state, event_date)`,
	`CREATE INDEX IF NOT EXISTS idx_events_category ON events(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_compilations_pinned ON compilations(pinned)`,
}

func RunMigrations(db *sql.DB) error {
	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", i, err)
		}
	}

	logrus.WithField("count", len(migrations)).Info("Database migrations completed successfully")
	return nil
}
