package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tutorbook/internal/model"
	"tutorbook/internal/slots"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so profile reads can run
// inside the booking transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetProfile returns the tutor's availability profile with weekly rules and
// exceptions, or slots.ErrProfileNotFound.
func (db *DB) GetProfile(ctx context.Context, tutorID int64) (*model.AvailabilityProfile, error) {
	return getProfile(ctx, db.DB, tutorID)
}

func getProfile(ctx context.Context, q querier, tutorID int64) (*model.AvailabilityProfile, error) {
	var p model.AvailabilityProfile
	err := q.QueryRowContext(ctx, `
		SELECT tutor_id, timezone, slot_interval, slot_start_policy, created_at, updated_at
		FROM availability_profiles WHERE tutor_id = ?`,
		tutorID,
	).Scan(&p.TutorID, &p.Timezone, &p.SlotInterval, &p.SlotStartPolicy, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, slots.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT day_of_week, ranges FROM availability_rules
		WHERE tutor_id = ? ORDER BY day_of_week`,
		tutorID,
	)
	if err != nil {
		return nil, fmt.Errorf("load weekly rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rule model.WeeklyRule
		var raw string
		if err := rows.Scan(&rule.DayOfWeek, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &rule.Ranges); err != nil {
			return nil, fmt.Errorf("decode ranges for day %d: %w", rule.DayOfWeek, err)
		}
		p.Weekly = append(p.Weekly, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	excRows, err := q.QueryContext(ctx, `
		SELECT date, closed, ranges FROM availability_exceptions
		WHERE tutor_id = ? ORDER BY date`,
		tutorID,
	)
	if err != nil {
		return nil, fmt.Errorf("load exceptions: %w", err)
	}
	defer excRows.Close()

	for excRows.Next() {
		var exc model.DateException
		var raw string
		if err := excRows.Scan(&exc.Date, &exc.Closed, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &exc.Ranges); err != nil {
			return nil, fmt.Errorf("decode ranges for %s: %w", exc.Date, err)
		}
		p.Exceptions = append(p.Exceptions, exc)
	}
	if err := excRows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}

// SaveProfile replaces the tutor's whole profile: settings row, all weekly
// rules and all exceptions, atomically.
func (db *DB) SaveProfile(ctx context.Context, p *model.AvailabilityProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO availability_profiles (tutor_id, timezone, slot_interval, slot_start_policy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tutor_id) DO UPDATE SET
			timezone = excluded.timezone,
			slot_interval = excluded.slot_interval,
			slot_start_policy = excluded.slot_start_policy,
			updated_at = excluded.updated_at`,
		p.TutorID, p.Timezone, p.SlotInterval, p.SlotStartPolicy, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM availability_rules WHERE tutor_id = ?", p.TutorID); err != nil {
		return fmt.Errorf("clear weekly rules: %w", err)
	}
	for _, rule := range p.Weekly {
		raw, err := json.Marshal(rule.Ranges)
		if err != nil {
			return fmt.Errorf("encode ranges: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO availability_rules (tutor_id, day_of_week, ranges, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			p.TutorID, rule.DayOfWeek, string(raw), now, now,
		)
		if err != nil {
			return fmt.Errorf("insert weekly rule day %d: %w", rule.DayOfWeek, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM availability_exceptions WHERE tutor_id = ?", p.TutorID); err != nil {
		return fmt.Errorf("clear exceptions: %w", err)
	}
	for _, exc := range p.Exceptions {
		if err := insertException(ctx, tx, p.TutorID, exc, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertException creates or replaces the exception for one date.
func (db *DB) UpsertException(ctx context.Context, tutorID int64, exc model.DateException) error {
	if err := exc.Validate(); err != nil {
		return err
	}
	if err := db.profileExists(ctx, tutorID); err != nil {
		return err
	}
	return insertException(ctx, db.DB, tutorID, exc, time.Now())
}

func insertException(ctx context.Context, q querier, tutorID int64, exc model.DateException, now time.Time) error {
	raw, err := json.Marshal(exc.Ranges)
	if err != nil {
		return fmt.Errorf("encode ranges: %w", err)
	}
	if exc.Ranges == nil {
		raw = []byte("[]")
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO availability_exceptions (tutor_id, date, closed, ranges, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tutor_id, date) DO UPDATE SET
			closed = excluded.closed,
			ranges = excluded.ranges,
			updated_at = excluded.updated_at`,
		tutorID, exc.Date, exc.Closed, string(raw), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert exception %s: %w", exc.Date, err)
	}
	return nil
}

// DeleteException removes the exception for a date. Missing rows are not an
// error: the weekly rule simply applies again.
func (db *DB) DeleteException(ctx context.Context, tutorID int64, date string) error {
	if _, err := time.Parse(model.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	_, err := db.ExecContext(ctx,
		"DELETE FROM availability_exceptions WHERE tutor_id = ? AND date = ?",
		tutorID, date,
	)
	return err
}

func (db *DB) profileExists(ctx context.Context, tutorID int64) error {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM availability_profiles WHERE tutor_id = ?",
		tutorID,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return slots.ErrProfileNotFound
	}
	return nil
}
