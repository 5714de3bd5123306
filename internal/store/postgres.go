package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"alertd/internal/models"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgres opens a postgres-backed store through the pgx stdlib adapter.
func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/alertd?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
		`CREATE TABLE IF NOT EXISTS config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			temp_max DOUBLE PRECISION NOT NULL,
			humidity_max DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func (s *postgresStore) Insert(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if !alert.Type.IsValid() {
		return models.Alert{}, models.ErrInvalidChannel
	}
	a := normalize(alert)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, type, value, threshold, created_at, status) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, string(a.Type), a.Value, a.Threshold, a.CreatedAt, string(a.Status),
	)
	if err != nil {
		return models.Alert{}, err
	}
	return a, nil
}

func (s *postgresStore) GetByID(ctx context.Context, id string) (models.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, value, threshold, created_at, status FROM alerts WHERE id = $1`, id)
	return scanPostgresAlert(row)
}

func (s *postgresStore) SetAcknowledged(ctx context.Context, id string) (models.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE alerts SET status = $1 WHERE id = $2
		RETURNING id, type, value, threshold, created_at, status`,
		string(models.StatusAcknowledged), id)
	return scanPostgresAlert(row)
}

func (s *postgresStore) Query(ctx context.Context, f Filter) ([]models.Alert, error) {
	q := `SELECT id, type, value, threshold, created_at, status FROM alerts`
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, f.From.UTC())
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, f.To.UTC())
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
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
		a, err := scanPostgresAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *postgresStore) GetConfig(ctx context.Context) (models.ThresholdConfig, error) {
	var cfg models.ThresholdConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT temp_max, humidity_max, updated_at FROM config WHERE id = 1`).
		Scan(&cfg.TempMax, &cfg.HumidityMax, &cfg.UpdatedAt)
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
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return cfg, nil
}

func (s *postgresStore) UpsertConfig(ctx context.Context, cfg models.ThresholdConfig) (models.ThresholdConfig, error) {
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = nowUTC()
	} else {
		cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (id, temp_max, humidity_max, updated_at) VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET temp_max = EXCLUDED.temp_max,
			humidity_max = EXCLUDED.humidity_max, updated_at = EXCLUDED.updated_at`,
		cfg.TempMax, cfg.HumidityMax, cfg.UpdatedAt,
	)
	if err != nil {
		return models.ThresholdConfig{}, err
	}
	return cfg, nil
}

func scanPostgresAlert(row rowScanner) (models.Alert, error) {
	var a models.Alert
	var typ, status string
	err := row.Scan(&a.ID, &typ, &a.Value, &a.Threshold, &a.CreatedAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Alert{}, ErrNotFound
	}
	if err != nil {
		return models.Alert{}, err
	}
	a.Type = models.Channel(typ)
	a.Status = models.Status(status)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
