package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"time"

	"github.com/courtrush/courtrush/internal/utils"
	"github.com/courtrush/courtrush/pkg/facility/daehwa"
	"github.com/courtrush/courtrush/pkg/search"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "List free slots over a month without booking",
}

var searchWeekendCmd = &cobra.Command{
	Use:     "weekend MONTH",
	Short:   "Search Saturdays and Sundays (06:00-12:00 by default)",
	Example: "  courtrush search weekend 2\n  courtrush search weekend 2026-02 --court 1 --court 2",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], true)
	},
}

var searchAllCmd = &cobra.Command{
	Use:     "all MONTH",
	Short:   "Search every day and every hour",
	Example: "  courtrush search all 2026-02",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], false)
	},
}

func runSearch(cmd *cobra.Command, month string, weekendsOnly bool) error {
	year, m, err := search.ParseMonth(month, time.Now())
	if err != nil {
		return err
	}
	creds := credentials(cmd)
	if err := requireCredentials(creds); err != nil {
		return err
	}

	opts := search.Options{WeekendsOnly: weekendsOnly, Log: utils.Log}
	opts.Courts, _ = cmd.Flags().GetIntSlice("court")
	if weekendsOnly {
		opts.Hours, _ = cmd.Flags().GetIntSlice("hour")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := search.Search(ctx, daehwa.NewScannerFactory(siteConfig(cmd), utils.Log), creds, year, m, opts)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printSearch(os.Stdout, report)
	return nil
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchWeekendCmd)
	searchCmd.AddCommand(searchAllCmd)

	searchCmd.PersistentFlags().IntSliceP("court", "c", nil, "Court number (1-4), repeatable (default: all courts)")
	searchCmd.PersistentFlags().Bool("json", false, "Print the report as JSON")
	searchWeekendCmd.Flags().IntSlice("hour", nil, "Start hour, repeatable (default: 6, 8, 10)")
}
