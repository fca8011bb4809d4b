package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/courtrush/courtrush/pkg/storage"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Prints past runs from the history database.",
	Long:  "Prints past runs from the history database, or the results of one run with --run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		db, err := openDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		if id, _ := cmd.Flags().GetString("run"); id != "" {
			run, err := db.GetRun(ctx, id)
			if err != nil {
				return err
			}
			printRun(run)
			return nil
		}

		opts := storage.ListOptions{}
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.OnlySuccess, _ = cmd.Flags().GetBool("success")
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			if opts.Since, err = time.Parse(time.RFC3339, since); err != nil {
				return fmt.Errorf("--since must be RFC3339: %w", err)
			}
		}

		runs, err := db.ListRuns(ctx, opts)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs in the database.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tMODE\tRESULT\tDROPPED\t")
		for _, r := range runs {
			mode := "live"
			if r.DryRun {
				mode = "dry-run"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), mode, r.Message, r.Dropped)
		}
		w.Flush()

		stats, err := db.GetStats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\n%d live run(s), %d successful, %d/%d slot(s) booked\n", stats.Runs, stats.SuccessfulRuns, stats.Booked, stats.Attempts)
		return nil
	},
}

func printRun(run *storage.Run) {
	fmt.Printf("Run %s (%s, %s)\n", run.ID, run.StartedAt.Local().Format(time.RFC3339), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "DATE\tHOUR\tCOURT\tSUCCESS\tMESSAGE\t")
	for _, r := range run.Results {
		fmt.Fprintf(w, "%s\t%02d:00\t%d\t%v\t%s\t\n", r.Date, r.Hour, r.Court, r.Success, r.Message)
	}
	w.Flush()
	fmt.Println(run.Message)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("dbpath", "", "Path to the history database (default: db.path or ~/.config/courtrush/courtrush.sqlite)")
	historyCmd.Flags().String("since", "", "Only runs started at or after this RFC3339 time")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs")
	historyCmd.Flags().Bool("success", false, "Only runs with at least one booking")
	historyCmd.Flags().String("run", "", "Show the results of one run")
}
