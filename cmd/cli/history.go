package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/averlane/osprey/internal/report"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved scan runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the findings of one saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	history, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()

	runs, err := history.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if jsonOut {
		return report.NewPrinter(os.Stdout).JSON(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no saved runs")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Kind", "Target", "Units", "Findings", "Started")
	for i := range runs {
		run := &runs[i]
		_ = table.Append([]string{
			run.ID.String()[:8],
			run.Kind,
			run.Target,
			fmt.Sprintf("%d", run.Units),
			fmt.Sprintf("%d", run.Findings),
			run.StartedAt.Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", args[0], err)
	}

	history, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()

	findings, err := history.RunFindings(cmd.Context(), runID)
	if err != nil {
		return err
	}

	if jsonOut {
		return report.NewPrinter(os.Stdout).JSON(findings)
	}

	if len(findings) == 0 {
		fmt.Println("no findings for this run")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Value", "Detail")
	for _, finding := range findings {
		_ = table.Append([]string{finding.Value, finding.Detail})
	}
	return table.Render()
}
