package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"alertd/internal/models"
)

// Fixed-width UTC layout so stored timestamps compare correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type sqliteStore struct {
	db *sql.DB
}

// NewSQLite opens an embedded sqlite store.
func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:alertd.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Concurrent API handlers share this handle; sqlite wants one writer.
	db.SetMaxOpenConns(1)
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			value REAL NOT NULL,
			threshold REAL NOT NULL,
			created_at TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
		`CREATE TABLE IF NOT EXISTS config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			temp_max REAL NOT NULL,
			humidity_max REAL NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) Insert(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if !alert.Type.IsValid() {
		return models.Alert{}, models.ErrInvalidChannel
	}
	a := normalize(alert)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, type, value, threshold, created_at, status) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Type), a.Value, a.Threshold, a.CreatedAt.Format(sqliteTimeLayout), string(a.Status),
	)
	if err != nil {
		return models.Alert{}, err
	}
	return a, nil
}

func (s *sqliteStore) GetByID(ctx context.Context, id string) (models.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, value, threshold, created_at, status FROM alerts WHERE id = ?`, id)
	return scanSQLiteAlert(row)
}

func (s *sqliteStore) SetAcknowledged(ctx context.Context, id string) (models.Alert, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = ? WHERE id = ?`, string(models.StatusAcknowledged), id)
	if err != nil {
		return models.Alert{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Alert{}, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *sqliteStore) Query(ctx context.Context, f Filter) ([]models.Alert, error) {
	q := `SELECT id, type, value, threshold, created_at, status FROM alerts`
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC().Format(sqliteTimeLayout))
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UTC().Format(sqliteTimeLayout))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Alert, 0)
	for rows.Next() {
		a, err := scanSQLiteAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetConfig(ctx context.Context) (models.ThresholdConfig, error) {
	var cfg models.ThresholdConfig
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT temp_max, humidity_max, updated_at FROM config WHERE id = 1`).
		Scan(&cfg.TempMax, &cfg.HumidityMax, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		seed := models.ThresholdConfig{
			TempMax:     DefaultTempMax,
			HumidityMax: DefaultHumidityMax,
			UpdatedAt:   nowUTC(),
		}
		return s.UpsertConfig(ctx, seed)
	}
	if err != nil {
		return models.ThresholdConfig{}, err
	}
	cfg.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return models.ThresholdConfig{}, err
	}
	return cfg, nil
}

func (s *sqliteStore) UpsertConfig(ctx context.Context, cfg models.ThresholdConfig) (models.ThresholdConfig, error) {
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = nowUTC()
	} else {
		cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (id, temp_max, humidity_max, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET temp_max = excluded.temp_max,
			humidity_max = excluded.humidity_max, updated_at = excluded.updated_at`,
		cfg.TempMax, cfg.HumidityMax, cfg.UpdatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return models.ThresholdConfig{}, err
	}
	return cfg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAlert(row rowScanner) (models.Alert, error) {
	var a models.Alert
	var typ, created, status string
	err := row.Scan(&a.ID, &typ, &a.Value, &a.Threshold, &created, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Alert{}, ErrNotFound
	}
	if err != nil {
		return models.Alert{}, err
	}
	a.Type = models.Channel(typ)
	a.Status = models.Status(status)
	a.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return models.Alert{}, err
	}
	return a, nil
}
