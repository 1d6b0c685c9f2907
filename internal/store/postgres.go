package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// pgxPool is the minimal pool surface PostgresStore uses, satisfied by
// both pgxpool.Pool and pgxmock.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// NewPostgresFromPool wraps an existing pool, which the caller owns.
func NewPostgresFromPool(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS provider_features (
	npi         TEXT PRIMARY KEY,
	org_name    TEXT NOT NULL DEFAULT '',
	numeric     JSONB NOT NULL,
	categorical JSONB NOT NULL,
	label       DOUBLE PRECISION,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS training_runs (
	id           TEXT PRIMARY KEY,
	bundle_key   TEXT NOT NULL,
	target_rule  TEXT NOT NULL,
	test_roc_auc DOUBLE PRECISION NOT NULL,
	test_f1      DOUBLE PRECISION NOT NULL,
	row_count    INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provider_features_org_name ON provider_features(org_name);
CREATE INDEX IF NOT EXISTS idx_training_runs_created_at ON training_runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertFeatures(ctx context.Context, rows []ProviderFeatures) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

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
		_, err = tx.Exec(ctx, `
			INSERT INTO provider_features (npi, org_name, numeric, categorical, label, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (npi) DO UPDATE SET
				org_name = EXCLUDED.org_name,
				numeric = EXCLUDED.numeric,
				categorical = EXCLUDED.categorical,
				label = EXCLUDED.label,
				updated_at = EXCLUDED.updated_at`,
			r.NPI, r.OrgName, numJSON, catJSON, label, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert features %s", r.NPI)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit upsert")
}

func (s *PostgresStore) GetFeatures(ctx context.Context, npis []string) ([]ProviderFeatures, error) {
	if len(npis) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT npi, org_name, numeric, categorical, label, updated_at
		 FROM provider_features WHERE npi = ANY($1) ORDER BY npi`,
		npis,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get features")
	}
	defer rows.Close()

	var out []ProviderFeatures
	for rows.Next() {
		var (
			r       ProviderFeatures
			numJSON []byte
			catJSON []byte
			label   *float64
		)
		if err := rows.Scan(&r.NPI, &r.OrgName, &numJSON, &catJSON, &label, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan features")
		}
		if err := unmarshalFeatureMaps(&r, string(numJSON), string(catJSON)); err != nil {
			return nil, err
		}
		if label != nil {
			r.Label = *label
			r.HasLabel = true
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate features")
}

func (s *PostgresStore) AllFeatures(ctx context.Context) ([]ProviderFeatures, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT npi, org_name, numeric, categorical, label, updated_at
		 FROM provider_features ORDER BY npi`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all features")
	}
	defer rows.Close()

	var out []ProviderFeatures
	for rows.Next() {
		var (
			r       ProviderFeatures
			numJSON []byte
			catJSON []byte
			label   *float64
		)
		if err := rows.Scan(&r.NPI, &r.OrgName, &numJSON, &catJSON, &label, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan features")
		}
		if err := unmarshalFeatureMaps(&r, string(numJSON), string(catJSON)); err != nil {
			return nil, err
		}
		if label != nil {
			r.Label = *label
			r.HasLabel = true
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate features")
}

func (s *PostgresStore) SearchProviders(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if query == "" {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT npi, org_name FROM provider_features
		 WHERE npi LIKE $1 OR org_name ILIKE $2
		 ORDER BY npi LIMIT $3`,
		query+"%", "%"+query+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search providers")
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.NPI, &r.OrgName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan search result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate search results")
}

func (s *PostgresStore) CountProviders(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM provider_features`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count providers")
}

func (s *PostgresStore) RecordTrainingRun(ctx context.Context, run *TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO training_runs (id, bundle_key, target_rule, test_roc_auc, test_f1, row_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.BundleKey, run.TargetRule, run.TestROCAUC, run.TestF1, run.RowCount, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: record training run")
}

func (s *PostgresStore) ListTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, bundle_key, target_rule, test_roc_auc, test_f1, row_count, created_at
		 FROM training_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list training runs")
	}
	defer rows.Close()

	var out []TrainingRun
	for rows.Next() {
		var r TrainingRun
		if err := rows.Scan(&r.ID, &r.BundleKey, &r.TargetRule, &r.TestROCAUC, &r.TestF1, &r.RowCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan training run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate training runs")
}
