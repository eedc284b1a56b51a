package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

const alertColumns = `id, email, origin, destination, departure_date, return_date,
	target_price, currency, travel_class, adults, children, infants, frequency, active,
	current_price, last_checked, price_history, triggered_at, created_at, updated_at`

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the ops API read while a scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) CreateAlert(ctx context.Context, a *model.PriceAlert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	a.Frequency = model.ParseFrequency(string(a.Frequency))
	if a.TravelClass == "" {
		a.TravelClass = model.ClassEconomy
	}
	if a.Currency == "" {
		a.Currency = "USD"
	}
	if a.PriceHistory == nil {
		a.PriceHistory = []model.PricePoint{}
	}

	hist, err := json.Marshal(a.PriceHistory)
	if err != nil {
		return fmt.Errorf("encode price history: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO price_alerts (`+alertColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, strings.ToUpper(a.Route.From), strings.ToUpper(a.Route.To),
		a.Route.DepartureDate, a.Route.ReturnDate,
		a.TargetPrice.String(), a.Currency, string(a.TravelClass),
		a.Passengers.Adults, a.Passengers.Children, a.Passengers.Infants,
		string(a.Frequency), a.Active,
		nullDecimal(a.CurrentPrice), nullTime(a.LastChecked), string(hist), nullTime(a.TriggeredAt),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *SQLite) GetAlert(ctx context.Context, id string) (*model.PriceAlert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM price_alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %q: %w", id, ErrAlertNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *SQLite) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.PriceAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM price_alerts`
	var conditions []string
	var args []any
	if filter.ActiveOnly {
		conditions = append(conditions, "active = 1")
	}
	if filter.Email != "" {
		conditions = append(conditions, "email = ?")
		args = append(args, filter.Email)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"

	return s.queryAlerts(ctx, query, args...)
}

func (s *SQLite) QueryActiveAlerts(ctx context.Context) ([]model.PriceAlert, error) {
	alerts, err := s.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM price_alerts WHERE active = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	return alerts, nil
}

func (s *SQLite) UpdateObservation(ctx context.Context, id string, obs model.Observation) error {
	points := obs.PriceHistory
	if points == nil {
		points = []model.PricePoint{}
	}
	hist, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encode price history: %w", err)
	}

	checked := obs.LastChecked.UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE price_alerts
		 SET current_price = ?, price_history = ?, last_checked = ?, updated_at = ?
		 WHERE id = ? AND active = 1 AND (last_checked IS NULL OR last_checked <= ?)`,
		obs.CurrentPrice.String(), string(hist), checked, obs.UpdatedAt.UTC(), id, checked,
	)
	if err != nil {
		return fmt.Errorf("update observation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var active bool
	err = s.db.QueryRowContext(ctx, `SELECT active FROM price_alerts WHERE id = ?`, id).Scan(&active)
	switch {
	case errors.Is(err, sql.ErrNoRows) || (err == nil && !active):
		return fmt.Errorf("alert %q: %w", id, ErrAlertNotFound)
	case err != nil:
		return fmt.Errorf("update observation: %w", err)
	}
	return fmt.Errorf("alert %q checked at %s: %w", id, checked.Format(time.RFC3339), ErrStaleObservation)
}

func (s *SQLite) Deactivate(ctx context.Context, id string, triggeredAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE price_alerts SET active = 0, triggered_at = ?, updated_at = ? WHERE id = ? AND active = 1`,
		triggeredAt.UTC(), triggeredAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate alert: %w", err)
	}
	return checkAffected(result, id)
}

func (s *SQLite) Reactivate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE price_alerts SET active = 1, triggered_at = NULL, updated_at = ? WHERE id = ? AND active = 0`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("reactivate alert: %w", err)
	}
	return checkAffected(result, id)
}

func (s *SQLite) DeleteAlert(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM price_alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return checkAffected(result, id)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) queryAlerts(ctx context.Context, query string, args ...any) ([]model.PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.PriceAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*model.PriceAlert, error) {
	var (
		a            model.PriceAlert
		target       string
		class        string
		frequency    string
		currentPrice decimal.NullDecimal
		lastChecked  sql.NullTime
		triggeredAt  sql.NullTime
		hist         string
	)
	err := row.Scan(&a.ID, &a.Email, &a.Route.From, &a.Route.To,
		&a.Route.DepartureDate, &a.Route.ReturnDate,
		&target, &a.Currency, &class,
		&a.Passengers.Adults, &a.Passengers.Children, &a.Passengers.Infants,
		&frequency, &a.Active,
		&currentPrice, &lastChecked, &hist, &triggeredAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.TargetPrice, err = decimal.NewFromString(target)
	if err != nil {
		return nil, fmt.Errorf("parse target price %q: %w", target, err)
	}
	a.TravelClass = model.TravelClass(class)
	a.Frequency = model.ParseFrequency(frequency)
	if currentPrice.Valid {
		p := currentPrice.Decimal
		a.CurrentPrice = &p
	}
	if lastChecked.Valid {
		t := lastChecked.Time.UTC()
		a.LastChecked = &t
	}
	if triggeredAt.Valid {
		t := triggeredAt.Time.UTC()
		a.TriggeredAt = &t
	}
	if err := json.Unmarshal([]byte(hist), &a.PriceHistory); err != nil {
		return nil, fmt.Errorf("decode price history: %w", err)
	}
	if a.PriceHistory == nil {
		a.PriceHistory = []model.PricePoint{}
	}
	return &a, nil
}

func checkAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert %q: %w", id, ErrAlertNotFound)
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
