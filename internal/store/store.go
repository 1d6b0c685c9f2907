// Package store persists engineered provider features and training-run
// history behind a driver-selectable interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ProviderFeatures is one stored feature row, keyed by NPI. Numeric and
// categorical features are kept as maps so schema changes in the feature
// builder never require a migration.
type ProviderFeatures struct {
	NPI         string             `json:"npi"`
	OrgName     string             `json:"org_name"`
	Numeric     map[string]float64 `json:"numeric"`
	Categorical map[string]string  `json:"categorical"`
	Label       float64            `json:"label"`
	HasLabel    bool               `json:"has_label"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// SearchResult is one provider match from SearchProviders.
type SearchResult struct {
	NPI     string `json:"npi"`
	OrgName string `json:"org_name"`
}

// TrainingRun records one completed training run and the bundle it
// produced.
type TrainingRun struct {
	ID         string    `json:"id"`
	BundleKey  string    `json:"bundle_key"`
	TargetRule string    `json:"target_rule"`
	TestROCAUC float64   `json:"test_roc_auc"`
	TestF1     float64   `json:"test_f1"`
	RowCount   int       `json:"row_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store defines the persistence interface shared by the trainer and the
// scorer.
type Store interface {
	// Features
	UpsertFeatures(ctx context.Context, rows []ProviderFeatures) error
	GetFeatures(ctx context.Context, npis []string) ([]ProviderFeatures, error)
	AllFeatures(ctx context.Context) ([]ProviderFeatures, error)
	SearchProviders(ctx context.Context, query string, limit int) ([]SearchResult, error)
	CountProviders(ctx context.Context) (int, error)

	// Training history
	RecordTrainingRun(ctx context.Context, run *TrainingRun) error
	ListTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
