package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_Migrate(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectExec("CREATE TABLE IF NOT EXISTS provider_features").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s := NewPostgresFromPool(pool)
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgres_UpsertFeatures(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectBegin()
	pool.ExpectExec("INSERT INTO provider_features").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO provider_features").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	s := NewPostgresFromPool(pool)
	require.NoError(t, s.UpsertFeatures(context.Background(), sampleRows()))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgres_UpsertFeaturesEmpty(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	s := NewPostgresFromPool(pool)
	require.NoError(t, s.UpsertFeatures(context.Background(), nil))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgres_SearchProviders(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	rows := pgxmock.NewRows([]string{"npi", "org_name"}).
		AddRow("1000000001", "GENERAL HOSPITAL")
	pool.ExpectQuery("SELECT npi, org_name FROM provider_features").
		WithArgs("general%", "%general%", 5).
		WillReturnRows(rows)

	s := NewPostgresFromPool(pool)
	got, err := s.SearchProviders(context.Background(), "general", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1000000001", got[0].NPI)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgres_CountProviders(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	s := NewPostgresFromPool(pool)
	n, err := s.CountProviders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestPostgres_TrainingRuns(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectExec("INSERT INTO training_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created := time.Date(2026, time.February, 10, 14, 30, 5, 0, time.UTC)
	listRows := pgxmock.NewRows([]string{"id", "bundle_key", "target_rule", "test_roc_auc", "test_f1", "row_count", "created_at"}).
		AddRow("run-1", "20260210_143005", "claims_denial", 0.9, 0.4, 100, created)
	pool.ExpectQuery("SELECT id, bundle_key, target_rule").
		WithArgs(20).
		WillReturnRows(listRows)

	s := NewPostgresFromPool(pool)
	ctx := context.Background()

	run := &TrainingRun{BundleKey: "20260210_143005", TargetRule: "claims_denial"}
	require.NoError(t, s.RecordTrainingRun(ctx, run))
	assert.NotEmpty(t, run.ID)

	runs, err := s.ListTrainingRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, created, runs[0].CreatedAt)
	assert.NoError(t, pool.ExpectationsWereMet())
}
