package config

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func InitDB() (*sql.DB, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

		// One-shot authorization sessions. The id is the provider's
		// requisition id so callback references can be matched directly.
		`CREATE TABLE IF NOT EXISTS requisitions (
			id VARCHAR(255) PRIMARY KEY,
			user_id UUID NOT NULL,
			institution_id VARCHAR(255) NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'CR',
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS account_links (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			account_id VARCHAR(255) NOT NULL,
			bank_name VARCHAR(255) NOT NULL,
			active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(user_id, account_id)
		)`,

		// (user_id, account_id, external_id) is the idempotence key: re-syncing
		// the same window must never create a second row.
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			account_id VARCHAR(255) NOT NULL,
			external_id VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			amount NUMERIC(14,2) NOT NULL,
			currency VARCHAR(10) NOT NULL,
			booked_at DATE NOT NULL,
			category VARCHAR(64) NOT NULL,
			color_hint VARCHAR(16) NOT NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(user_id, account_id, external_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_requisitions_user_id ON requisitions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_account_links_user_id ON account_links(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(user_id, account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_booked_at ON transactions(booked_at)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
