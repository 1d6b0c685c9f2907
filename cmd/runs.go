package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := st.ListTrainingRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No training runs recorded.")
		return nil
	}

	pr := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tBUNDLE\tRULE\tROC-AUC\tF1\tROWS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%.3f\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.BundleKey, r.TargetRule, r.TestROCAUC, r.TestF1,
			pr.Sprintf("%d", r.RowCount),
		)
	}
	return tw.Flush()
}
