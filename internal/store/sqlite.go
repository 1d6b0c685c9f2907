package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS provider_features (
	npi         TEXT PRIMARY KEY,
	org_name    TEXT NOT NULL DEFAULT '',
	numeric     TEXT NOT NULL,
	categorical TEXT NOT NULL,
	label       REAL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS training_runs (
	id           TEXT PRIMARY KEY,
	bundle_key   TEXT NOT NULL,
	target_rule  TEXT NOT NULL,
	test_roc_auc REAL NOT NULL,
	test_f1      REAL NOT NULL,
	row_count    INTEGER NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provider_features_org_name ON provider_features(org_name);
CREATE INDEX IF NOT EXISTS idx_training_runs_created_at ON training_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertFeatures(ctx context.Context, rows []ProviderFeatures) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO provider_features (npi, org_name, numeric, categorical, label, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(npi) DO UPDATE SET
			org_name = excluded.org_name,
			numeric = excluded.numeric,
			categorical = excluded.categorical,
			label = excluded.label,
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for i := range rows {
		r := &rows[i]
		numJSON, catJSON, err := marshalFeatureMaps(r)
		if err != nil {
			return err
		}
		var label any
		if r.HasLabel {
			label = r.Label
		}
		if _, err := stmt.ExecContext(ctx, r.NPI, r.OrgName, numJSON, catJSON, label, now); err != nil {
			return eris.Wrapf(err, "sqlite: upsert features %s", r.NPI)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert")
}

func (s *SQLiteStore) GetFeatures(ctx context.Context, npis []string) ([]ProviderFeatures, error) {
	if len(npis) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(npis)), ",")
	args := make([]any, len(npis))
	for i, n := range npis {
		args[i] = n
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT npi, org_name, numeric, categorical, label, updated_at
		 FROM provider_features WHERE npi IN (`+placeholders+`) ORDER BY npi`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get features")
	}
	defer rows.Close() //nolint:errcheck

	var out []ProviderFeatures
	for rows.Next() {
		var (
			r       ProviderFeatures
			numJSON string
			catJSON string
			label   sql.NullFloat64
		)
		if err := rows.Scan(&r.NPI, &r.OrgName, &numJSON, &catJSON, &label, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan features")
		}
		if err := unmarshalFeatureMaps(&r, numJSON, catJSON); err != nil {
			return nil, err
		}
		if label.Valid {
			r.Label = label.Float64
			r.HasLabel = true
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate features")
}

func (s *SQLiteStore) AllFeatures(ctx context.Context) ([]ProviderFeatures, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT npi, org_name, numeric, categorical, label, updated_at
		 FROM provider_features ORDER BY npi`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all features")
	}
	defer rows.Close() //nolint:errcheck

	var out []ProviderFeatures
	for rows.Next() {
		var (
			r       ProviderFeatures
			numJSON string
			catJSON string
			label   sql.NullFloat64
		)
		if err := rows.Scan(&r.NPI, &r.OrgName, &numJSON, &catJSON, &label, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan features")
		}
		if err := unmarshalFeatureMaps(&r, numJSON, catJSON); err != nil {
			return nil, err
		}
		if label.Valid {
			r.Label = label.Float64
			r.HasLabel = true
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate features")
}

func (s *SQLiteStore) SearchProviders(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT npi, org_name FROM provider_features
		 WHERE npi LIKE ? OR org_name LIKE ? COLLATE NOCASE
		 ORDER BY npi LIMIT ?`,
		q+"%", "%"+q+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search providers")
	}
	defer rows.Close() //nolint:errcheck

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.NPI, &r.OrgName); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate search results")
}

func (s *SQLiteStore) CountProviders(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provider_features`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count providers")
}

func (s *SQLiteStore) RecordTrainingRun(ctx context.Context, run *TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, bundle_key, target_rule, test_roc_auc, test_f1, row_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BundleKey, run.TargetRule, run.TestROCAUC, run.TestF1, run.RowCount, run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: record training run")
}

func (s *SQLiteStore) ListTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bundle_key, target_rule, test_roc_auc, test_f1, row_count, created_at
		 FROM training_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list training runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []TrainingRun
	for rows.Next() {
		var r TrainingRun
		if err := rows.Scan(&r.ID, &r.BundleKey, &r.TargetRule, &r.TestROCAUC, &r.TestF1, &r.RowCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan training run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate training runs")
}

func marshalFeatureMaps(r *ProviderFeatures) (string, string, error) {
	numJSON, err := json.Marshal(r.Numeric)
	if err != nil {
		return "", "", eris.Wrapf(err, "store: marshal numeric features %s", r.NPI)
	}
	catJSON, err := json.Marshal(r.Categorical)
	if err != nil {
		return "", "", eris.Wrapf(err, "store: marshal categorical features %s", r.NPI)
	}
	return string(numJSON), string(catJSON), nil
}

func unmarshalFeatureMaps(r *ProviderFeatures, numJSON, catJSON string) error {
	if err := json.Unmarshal([]byte(numJSON), &r.Numeric); err != nil {
		return eris.Wrapf(err, "store: parse numeric features %s", r.NPI)
	}
	if err := json.Unmarshal([]byte(catJSON), &r.Categorical); err != nil {
		return eris.Wrapf(err, "store: parse categorical features %s", r.NPI)
	}
	return nil
}
