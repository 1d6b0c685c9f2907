package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/bundle"
	"github.com/sells-group/provider-risk/internal/model"
	"github.com/sells-group/provider-risk/internal/scorer"
)

var predictCmd = &cobra.Command{
	Use:   "predict NPI [NPI...]",
	Short: "Score providers with the trained model",
	Long: `Score one or more providers by NPI using stored features and the
latest (or a named) model bundle.

Examples:
  # Score two providers to stdout
  provider-risk predict 1234567890 9876543210

  # Score against a specific bundle and export to Excel
  provider-risk predict --model 20260210_143005 --format xlsx --output scores.xlsx 1234567890`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.String("model", "", "bundle key to score with (default: latest)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv, or xlsx")

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	if format != "table" && format != "csv" && format != "xlsx" {
		return eris.Errorf("predict: --format must be table, csv, or xlsx (got %q)", format)
	}
	if format == "xlsx" && outputPath == "" {
		return eris.New("predict: --format xlsx requires --output")
	}

	b, err := loadBundle(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	preds, err := scorer.New(b, st).ScoreNPIs(ctx, args)
	if err != nil {
		return err
	}
	if len(preds) == 0 {
		return eris.New("predict: no stored features for the given NPIs; run the pipeline first")
	}
	if len(preds) < len(args) {
		zap.L().Warn("predict: some NPIs had no stored features",
			zap.Int("requested", len(args)),
			zap.Int("scored", len(preds)),
		)
	}

	switch format {
	case "csv":
		return writePredictionsCSV(outputPath, preds)
	case "xlsx":
		return writePredictionsXLSX(outputPath, preds)
	default:
		return writePredictionsTable(outputPath, preds)
	}
}

// loadBundle opens the bundle named by --model, or the latest one.
func loadBundle(cmd *cobra.Command) (*bundle.Bundle, error) {
	key, _ := cmd.Flags().GetString("model")
	if key != "" {
		return bundle.Load(cfg.Models.Dir, key)
	}
	return bundle.Latest(cfg.Models.Dir)
}

func outputWriter(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "predict: create %s", path)
	}
	return f, func() { f.Close() }, nil //nolint:errcheck
}

func writePredictionsTable(path string, preds []model.Prediction) error {
	out, done, err := outputWriter(path)
	if err != nil {
		return err
	}
	defer done()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NPI\tORGANIZATION\tRISK\tLEVEL\tINTERPRETATION")
	for _, p := range preds {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\t%s\n",
			p.NPI, p.OrgName, p.PredictedRisk, p.RiskLevel, p.Interpretation)
	}
	return tw.Flush()
}

func writePredictionsCSV(path string, preds []model.Prediction) error {
	out, done, err := outputWriter(path)
	if err != nil {
		return err
	}
	defer done()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"npi", "org_name", "predicted_risk", "predicted_class", "risk_level", "interpretation"}); err != nil {
		return eris.Wrap(err, "predict: write csv header")
	}
	for _, p := range preds {
		row := []string{
			p.NPI,
			p.OrgName,
			strconv.FormatFloat(p.PredictedRisk, 'f', 6, 64),
			strconv.Itoa(p.PredictedClass),
			string(p.RiskLevel),
			p.Interpretation,
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "predict: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "predict: flush csv")
}

func writePredictionsXLSX(path string, preds []model.Prediction) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Predictions")
	if err != nil {
		return eris.Wrap(err, "predict: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"NPI", "Organization", "Predicted Risk", "Predicted Class", "Risk Level", "Interpretation"} {
		header.AddCell().SetString(h)
	}
	for _, p := range preds {
		row := sheet.AddRow()
		row.AddCell().SetString(p.NPI)
		row.AddCell().SetString(p.OrgName)
		row.AddCell().SetFloat(p.PredictedRisk)
		row.AddCell().SetInt(p.PredictedClass)
		row.AddCell().SetString(string(p.RiskLevel))
		row.AddCell().SetString(p.Interpretation)
	}

	return eris.Wrapf(file.Save(path), "predict: save %s", path)
}
