package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// Repository persists rental records.
type Repository interface {
	SaveRecords(ctx context.Context, records []models.RentalRecord) error
	LoadRecords(ctx context.Context) ([]models.RentalRecord, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db   *sql.DB
	Path string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS rental_records (
		day TEXT NOT NULL,
		year INTEGER NOT NULL,
		hour INTEGER NOT NULL,
		season TEXT NOT NULL,
		weekday TEXT NOT NULL,
		working_day INTEGER NOT NULL,
		weather INTEGER NOT NULL,
		casual INTEGER NOT NULL,
		registered INTEGER NOT NULL,
		cnt INTEGER NOT NULL,
		UNIQUE(day, hour)
	);
	CREATE INDEX IF NOT EXISTS idx_rental_day ON rental_records(day);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteRepository{db: db, Path: path}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRecords upserts records in a single transaction.
func (r *SQLiteRepository) SaveRecords(ctx context.Context, records []models.RentalRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rental_records(day, year, hour, season, weekday, working_day, weather, casual, registered, cnt)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day, hour) DO UPDATE SET
		year=excluded.year, season=excluded.season, weekday=excluded.weekday,
		working_day=excluded.working_day, weather=excluded.weather,
		casual=excluded.casual, registered=excluded.registered, cnt=excluded.cnt
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		working := 0
		if rec.WorkingDay {
			working = 1
		}
		_, err := stmt.ExecContext(ctx,
			rec.Date.Format(models.DateLayout), rec.Year, rec.Hour, rec.Season, rec.Weekday,
			working, rec.Weather, rec.Casual, rec.Registered, rec.Count,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s hour %d: %w", rec.Date.Format(models.DateLayout), rec.Hour, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadRecords returns all records ordered by day and hour.
func (r *SQLiteRepository) LoadRecords(ctx context.Context) ([]models.RentalRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day, year, hour, season, weekday, working_day, weather, casual, registered, cnt
		FROM rental_records ORDER BY day, hour`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.RentalRecord
	for rows.Next() {
		var rec models.RentalRecord
		var day string
		var working int
		if err := rows.Scan(&day, &rec.Year, &rec.Hour, &rec.Season, &rec.Weekday,
			&working, &rec.Weather, &rec.Casual, &rec.Registered, &rec.Count); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if rec.Date, err = time.Parse(models.DateLayout, day); err != nil {
			return nil, fmt.Errorf("%w: stored day %q: %v", ErrMalformed, day, err)
		}
		rec.WorkingDay = working == 1
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rental_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
