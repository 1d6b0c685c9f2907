package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/provider-risk/internal/bundle"
	"github.com/sells-group/provider-risk/internal/store"
	"github.com/sells-group/provider-risk/internal/track"
	"github.com/sells-group/provider-risk/internal/train"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain the risk model from stored features",
	Long: `Retrain the denial-risk model from feature rows already in the
store, without re-reading the raw extracts. Produces a new model bundle
and records the run.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zap.L().With(zap.String("command", "train"))
	pr := message.NewPrinter(language.English)

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	rows, err := st.AllFeatures(ctx)
	if err != nil {
		return err
	}
	tbl, err := tableFromRows(rows)
	if err != nil {
		return err
	}
	pr.Printf("Loaded %d labeled providers from store\n", tbl.Len())

	res, err := train.Run(tbl, trainOptions())
	if err != nil {
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

	log.Info("retrain complete",
		zap.String("bundle_key", b.Meta.Key),
		zap.Float64("test_roc_auc", res.TestMetrics.ROCAUC),
	)
	pr.Printf("Saved bundle %s (test ROC-AUC %.3f, F1 %.3f)\n",
		b.Meta.Key, res.TestMetrics.ROCAUC, res.TestMetrics.F1)
	return nil
}
