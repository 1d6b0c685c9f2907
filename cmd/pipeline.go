package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/provider-risk/internal/bundle"
	"github.com/sells-group/provider-risk/internal/claims"
	"github.com/sells-group/provider-risk/internal/features"
	"github.com/sells-group/provider-risk/internal/mrf"
	"github.com/sells-group/provider-risk/internal/nppes"
	"github.com/sells-group/provider-risk/internal/store"
	"github.com/sells-group/provider-risk/internal/track"
	"github.com/sells-group/provider-risk/internal/train"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full load-build-train pipeline",
	Long: `Run the end-to-end pipeline: load the NPPES extract, filter to
hospital organizations, engineer features, derive the denial target,
train the risk model, and persist both the feature store and the model
bundle.

Examples:
  # Full run with files from config.yaml
  provider-risk pipeline

  # Smoke test on the first 50k rows
  provider-risk pipeline --sample-size 50000

  # Include claims history and negotiated-rate signals
  provider-risk pipeline --claims-file claims.csv --rates-file in_network.json.gz`,
	RunE: runPipeline,
}

func init() {
	f := pipelineCmd.Flags()
	f.String("nppes-file", "", "NPPES extract CSV (overrides config)")
	f.String("claims-file", "", "claims history CSV (overrides config)")
	f.String("rates-file", "", "in-network rates MRF, optionally gzipped (overrides config)")
	f.Int("sample-size", 0, "cap on NPPES rows read, 0 = unlimited (overrides config)")

	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zap.L().With(zap.String("command", "pipeline"))
	pr := message.NewPrinter(language.English)
	started := time.Now()

	nppesFile := stringFlagOr(cmd, "nppes-file", cfg.Data.NPPESFile)
	claimsFile := stringFlagOr(cmd, "claims-file", cfg.Data.ClaimsFile)
	ratesFile := stringFlagOr(cmd, "rates-file", cfg.Data.RatesFile)
	sampleSize := intFlagOr(cmd, "sample-size", cfg.Data.SampleSize)

	// Load and filter the registry extract.
	records, err := nppes.ReadFile(ctx, nppesFile, nppes.Options{SampleSize: sampleSize})
	if err != nil {
		return err
	}
	records = nppes.TagHospitals(nppes.FilterOrganizations(records))
	if len(records) == 0 {
		return eris.New("pipeline: no hospital organizations in extract")
	}
	pr.Printf("Loaded %d hospital organizations\n", len(records))

	tbl, err := features.Build(records, time.Now().UTC())
	if err != nil {
		return err
	}

	// Optional external signals.
	if claimsFile != "" {
		claimRecords, err := claims.LoadFile(ctx, claimsFile)
		if err != nil {
			return err
		}
		if err := features.MergeClaims(tbl, claims.AggregateByProvider(claimRecords)); err != nil {
			return err
		}
		pr.Printf("Merged %d claim records\n", len(claimRecords))
	}
	if ratesFile != "" {
		rateRecords, err := mrf.ParseFile(ctx, ratesFile)
		if err != nil {
			return err
		}
		if err := features.MergeRates(tbl, mrf.AggregateByProvider(rateRecords)); err != nil {
			return err
		}
		pr.Printf("Merged %d negotiated rates\n", len(rateRecords))
	}

	res, err := train.Run(tbl, trainOptions())
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	// Persist the post-guard feature rows so predict and serve can score
	// exactly what the model was trained on.
	orgNames := make(map[string]string, len(records))
	for i := range records {
		orgNames[records[i].NPI] = records[i].OrgName
	}
	if err := st.UpsertFeatures(ctx, rowsFromTable(tbl, orgNames)); err != nil {
		return err
	}

	b := bundle.New(res, time.Now().UTC())
	if err := b.Save(cfg.Models.Dir); err != nil {
		return err
	}

	run := &store.TrainingRun{
		BundleKey:  b.Meta.Key,
		TargetRule: res.TargetRule,
		TestROCAUC: res.TestMetrics.ROCAUC,
		TestF1:     res.TestMetrics.F1,
		RowCount:   tbl.Len(),
	}
	if err := st.RecordTrainingRun(ctx, run); err != nil {
		return err
	}

	track.New(cfg.Track.WebhookURL, cfg.Track.Project).Report(ctx, track.Event{
		BundleKey:    b.Meta.Key,
		TargetRule:   res.TargetRule,
		TrainMetrics: res.TrainMetrics,
		TestMetrics:  res.TestMetrics,
		TrainRows:    b.Meta.TrainRows,
		TestRows:     b.Meta.TestRows,
		SMOTEApplied: res.SMOTEApplied,
	})

	log.Info("pipeline complete",
		zap.String("bundle_key", b.Meta.Key),
		zap.String("target_rule", res.TargetRule),
		zap.Float64("test_roc_auc", res.TestMetrics.ROCAUC),
		zap.Duration("elapsed", time.Since(started)),
	)
	pr.Printf("Trained %s on %d providers (test ROC-AUC %.3f), saved bundle %s\n",
		res.TargetRule, tbl.Len(), res.TestMetrics.ROCAUC, b.Meta.Key)
	return nil
}

// trainOptions builds training options from config.
func trainOptions() train.Options {
	return train.Options{
		Seed:            int64(cfg.Train.Seed),
		TestFraction:    cfg.Train.TestFraction,
		ValFraction:     cfg.Train.ValFraction,
		UseSMOTE:        cfg.Train.UseSMOTE,
		UseClassWeights: cfg.Train.UseClassWeights,
	}
}

func stringFlagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

func intFlagOr(cmd *cobra.Command, name string, fallback int) int {
	if v, _ := cmd.Flags().GetInt(name); v != 0 {
		return v
	}
	return fallback
}
