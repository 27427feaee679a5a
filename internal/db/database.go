package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the availability store and the lesson ledger.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations. Transactions start
// with BEGIN IMMEDIATE so concurrent validate-then-insert bookings serialize
// instead of deadlocking on lock upgrade.
func NewDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// One availability profile per tutor
		`CREATE TABLE IF NOT EXISTS availability_profiles (
            tutor_id INTEGER PRIMARY KEY,
            timezone TEXT NOT NULL,
            slot_interval INTEGER NOT NULL,
            slot_start_policy TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Weekly recurring rules, at most one row per (tutor, day)
		`CREATE TABLE IF NOT EXISTS availability_rules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tutor_id INTEGER NOT NULL,
            day_of_week INTEGER NOT NULL,
            ranges TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(tutor_id, day_of_week),
            FOREIGN KEY (tutor_id) REFERENCES availability_profiles(tutor_id) ON DELETE CASCADE
        )`,

		// Date exceptions, full-day overrides keyed by (tutor, date)
		`CREATE TABLE IF NOT EXISTS availability_exceptions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tutor_id INTEGER NOT NULL,
            date TEXT NOT NULL,
            closed BOOLEAN NOT NULL DEFAULT 0,
            ranges TEXT NOT NULL DEFAULT '[]',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(tutor_id, date),
            FOREIGN KEY (tutor_id) REFERENCES availability_profiles(tutor_id) ON DELETE CASCADE
        )`,

		// Lesson ledger
		`CREATE TABLE IF NOT EXISTS lessons (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tutor_id INTEGER NOT NULL,
            student_id INTEGER NOT NULL,
            start_time DATETIME NOT NULL,
            end_time DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'confirmed',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_exceptions_tutor_date ON availability_exceptions(tutor_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_tutor_times ON lessons(tutor_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_status ON lessons(status)`,

		// Exclusivity backstop: two live lessons can never share a start.
		// Cancelled and expired rows stay out so the slot can be rebooked.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_lessons_live_start
            ON lessons(tutor_id, start_time)
            WHERE status NOT IN ('cancelled', 'expired')`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
