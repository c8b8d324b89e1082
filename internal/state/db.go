// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS score_weights (
			weights_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			health_weight DECIMAL(10, 4) NOT NULL, return_weight DECIMAL(10, 4) NOT NULL, risk_weight_cap DECIMAL(10, 4) NOT NULL,
			min_tvl_usd DECIMAL(20, 8) NOT NULL, min_volume_24h_usd DECIMAL(20, 8) NOT NULL,
			suspect_apr_ceiling DECIMAL(10, 4) NOT NULL, suspect_volume_tvl_multiple DECIMAL(10, 4) NOT NULL,
			z_score_defensive DECIMAL(10, 4) NOT NULL, z_score_normal DECIMAL(10, 4) NOT NULL, z_score_aggressive DECIMAL(10, 4) NOT NULL,
			active_fraction_defensive DECIMAL(10, 8) NOT NULL,
			active_fraction_normal DECIMAL(10, 8) NOT NULL,
			active_fraction_aggressive DECIMAL(10, 8) NOT NULL,
			stable_width_cap DECIMAL(10, 8) NOT NULL,
			stable_volatility_threshold DECIMAL(10, 4) NOT NULL,
			default_volatility_threshold DECIMAL(10, 4) NOT NULL,
			CONSTRAINT uq_score_weights_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_score_weights_config_active_timestamp ON score_weights(config_name, is_active, activated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_score_weights_config_timestamp ON score_weights(config_name, activated_at DESC);

		CREATE TABLE IF NOT EXISTS pool_scores (
			score_id SERIAL PRIMARY KEY,
			pass_id VARCHAR(64) NOT NULL,
			pass_number INTEGER NOT NULL DEFAULT 0,
			pool_id VARCHAR(255) NOT NULL,
			computed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			weights_id INTEGER REFERENCES score_weights(weights_id),

			total_score DECIMAL(10, 4) NOT NULL,
			health_score DECIMAL(10, 4) NOT NULL,
			return_score DECIMAL(10, 4) NOT NULL,
			risk_penalty DECIMAL(10, 4) NOT NULL,
			recommended_mode VARCHAR(20) NOT NULL,
			suspect BOOLEAN NOT NULL DEFAULT FALSE,
			suspect_reasons TEXT[],

			components JSONB,
			penalties JSONB,
			volatility JSONB,
			fee_apr JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_pool_scores_pool_timestamp ON pool_scores(pool_id, computed_at DESC);
		CREATE INDEX IF NOT EXISTS idx_pool_scores_pass ON pool_scores(pass_id);
		CREATE INDEX IF NOT EXISTS idx_pool_scores_timestamp ON pool_scores(computed_at DESC);

		-- Pass counter table for persistent global pass tracking
		CREATE TABLE IF NOT EXISTS pass_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_pass INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO pass_counter (id, current_pass)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
