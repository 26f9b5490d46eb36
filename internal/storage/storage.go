// Package storage provides SQLite-backed persistence for daily coupon prices
// and buydown ROI results.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/mbsbuydown/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations. Writes use
// replace semantics per trade date: reingesting a date deletes that date's
// rows before inserting, so a rerun never duplicates a (date, rate) key.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/mbsbuydown/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "mbsbuydown", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prices (
			date        TEXT NOT NULL,
			coupon_rate REAL NOT NULL,
			price       REAL NOT NULL,
			PRIMARY KEY (date, coupon_rate)
		)`,
		`CREATE TABLE IF NOT EXISTS roi_results (
			date             TEXT NOT NULL,
			original_rate    REAL NOT NULL,
			buydown_rate     REAL NOT NULL,
			roi              REAL NOT NULL,
			breakeven_months REAL NOT NULL,
			PRIMARY KEY (date, original_rate, buydown_rate)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_date ON prices(date)`,
		`CREATE INDEX IF NOT EXISTS idx_roi_date ON roi_results(date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SavePrices replaces all price rows for the date with the given points.
func (s *Storage) SavePrices(date time.Time, points []models.PricePoint) error {
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return fmt.Errorf("invalid price point: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	key := dateKey(date)
	if _, err := tx.Exec(`DELETE FROM prices WHERE date = ?`, key); err != nil {
		return fmt.Errorf("failed to clear prices for %s: %w", key, err)
	}
	for _, p := range points {
		if _, err := tx.Exec(`
			INSERT INTO prices (date, coupon_rate, price) VALUES (?,?,?)`,
			key, p.CouponRate, p.Price,
		); err != nil {
			return fmt.Errorf("failed to insert price (%s, %.2f): %w", key, p.CouponRate, err)
		}
	}
	return tx.Commit()
}

// LoadPrices returns the stored price curve for a date. A date with no rows
// yields an empty curve, not an error.
func (s *Storage) LoadPrices(date time.Time) (*models.PriceCurve, error) {
	rows, err := s.db.Query(`
		SELECT coupon_rate, price FROM prices WHERE date = ? ORDER BY coupon_rate`,
		dateKey(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		p := models.PricePoint{Date: date}
		if err := rows.Scan(&p.CouponRate, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.NewPriceCurve(date, points)
}

// LatestDateBefore returns the most recent date strictly before the given
// date that has any stored prices. ok is false when no earlier date exists.
func (s *Storage) LatestDateBefore(date time.Time) (time.Time, bool, error) {
	row := s.db.QueryRow(`SELECT MAX(date) FROM prices WHERE date < ?`, dateKey(date))
	var key sql.NullString
	if err := row.Scan(&key); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest date: %w", err)
	}
	if !key.Valid {
		return time.Time{}, false, nil
	}
	earlier, err := time.ParseInLocation(models.DateLayout, key.String, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed date key %q: %w", key.String, err)
	}
	return earlier, true, nil
}

// PriceHistory returns up to limit stored prices for a coupon rate on dates
// strictly before the given date, most recent first.
func (s *Storage) PriceHistory(couponRate float64, before time.Time, limit int) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT price FROM prices WHERE coupon_rate = ? AND date < ?
		ORDER BY date DESC LIMIT ?`,
		couponRate, dateKey(before), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// SaveROI replaces all ROI rows for the date with the given results.
func (s *Storage) SaveROI(date time.Time, results []models.BuydownResult) error {
	for i := range results {
		if err := results[i].Validate(); err != nil {
			return fmt.Errorf("invalid buydown result: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	key := dateKey(date)
	if _, err := tx.Exec(`DELETE FROM roi_results WHERE date = ?`, key); err != nil {
		return fmt.Errorf("failed to clear ROI results for %s: %w", key, err)
	}
	for _, r := range results {
		if _, err := tx.Exec(`
			INSERT INTO roi_results (date, original_rate, buydown_rate, roi, breakeven_months)
			VALUES (?,?,?,?,?)`,
			key, r.OriginalRate, r.BuydownRate, r.ROIPercent, r.BreakevenMonths,
		); err != nil {
			return fmt.Errorf("failed to insert ROI result (%s, %.2f, %.2f): %w",
				key, r.OriginalRate, r.BuydownRate, err)
		}
	}
	return tx.Commit()
}

// LoadROI returns the stored buydown results for a date, ordered by
// original then buydown rate.
func (s *Storage) LoadROI(date time.Time) ([]models.BuydownResult, error) {
	rows, err := s.db.Query(`
		SELECT original_rate, buydown_rate, roi, breakeven_months
		FROM roi_results WHERE date = ?
		ORDER BY original_rate, buydown_rate`,
		dateKey(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query ROI results: %w", err)
	}
	defer rows.Close()

	var results []models.BuydownResult
	for rows.Next() {
		r := models.BuydownResult{Date: date}
		if err := rows.Scan(&r.OriginalRate, &r.BuydownRate, &r.ROIPercent, &r.BreakevenMonths); err != nil {
			return nil, fmt.Errorf("failed to scan ROI result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// PruneBefore deletes price and ROI rows dated strictly before cutoff and
// reclaims the freed space. Returns the number of rows removed.
func (s *Storage) PruneBefore(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	key := dateKey(cutoff)
	var deleted int64
	for _, table := range []string{"prices", "roi_results"} {
		res, err := tx.Exec(`DELETE FROM `+table+` WHERE date < ?`, key)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count pruned %s rows: %w", table, err)
		}
		deleted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	// VACUUM cannot run inside a transaction.
	if deleted > 0 {
		if _, err := s.db.Exec(`VACUUM`); err != nil {
			return deleted, fmt.Errorf("failed to vacuum after prune: %w", err)
		}
	}
	return deleted, nil
}

func dateKey(t time.Time) string {
	return t.Format(models.DateLayout)
}
